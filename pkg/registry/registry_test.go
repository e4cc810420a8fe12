/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
)

func TestRegisterIdempotent(t *testing.T) {
	r := New(logger.NewTestLogger())

	first := r.Register("10.0.0.5:5555", "10.0.0.5", 5555)
	assert.Equal(t, models.StatusDisconnected, first.Status)
	assert.Equal(t, models.ConnectionNetwork, first.ConnectionType)
	assert.NotEmpty(t, first.ColorTag)

	_, err := r.SetNickname("10.0.0.5:5555", "Dev Quest")
	require.NoError(t, err)

	_, err = r.ApplyRecord("10.0.0.5:5555", models.SeverityInfo)
	require.NoError(t, err)

	// Second register must not reset nickname or counters.
	second := r.Register("10.0.0.5:5555", "10.0.0.5", 5555)
	assert.Equal(t, "Dev Quest", second.Nickname)
	assert.Equal(t, uint64(1), second.Counters.Total)
	assert.Equal(t, first.ColorTag, second.ColorTag)

	assert.Len(t, r.List(), 1)
}

func TestListInsertionOrder(t *testing.T) {
	r := New(logger.NewTestLogger())

	ids := []string{"c:5555", "a:5555", "b:5555"}
	for _, id := range ids {
		r.Register(id, "", 5555)
	}

	list := r.List()
	require.Len(t, list, 3)

	for i, id := range ids {
		assert.Equal(t, id, list[i].ID)
	}

	require.NoError(t, r.Remove("a:5555"))

	list = r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "c:5555", list[0].ID)
	assert.Equal(t, "b:5555", list[1].ID)
}

func TestNotFound(t *testing.T) {
	r := New(logger.NewTestLogger())

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.UpdateStatus("missing", models.StatusOnline)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.ApplyRecord("missing", models.SeverityInfo)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, r.Remove("missing"), ErrNotFound)
}

func TestApplyRecordCounters(t *testing.T) {
	r := New(logger.NewTestLogger())
	r.Register("dev1", "", 0)

	for _, sev := range []models.Severity{
		models.SeverityInfo, models.SeverityInfo, models.SeverityError,
	} {
		_, err := r.ApplyRecord("dev1", sev)
		require.NoError(t, err)
	}

	dev, err := r.Get("dev1")
	require.NoError(t, err)

	assert.Equal(t, uint64(2), dev.Counters.Info)
	assert.Equal(t, uint64(1), dev.Counters.Error)
	assert.Equal(t, uint64(3), dev.Counters.Total)
	assert.False(t, dev.LastSeen.IsZero())

	cleared, err := r.ClearStats("dev1")
	require.NoError(t, err)
	assert.Equal(t, models.Counters{}, cleared.Counters)
}

func TestConcurrentCounterUpdates(t *testing.T) {
	r := New(logger.NewTestLogger())
	r.Register("dev1:5555", "dev1", 5555)
	r.Register("dev2:5555", "dev2", 5555)

	const perDevice = 500

	var wg sync.WaitGroup

	for _, id := range []string{"dev1:5555", "dev2:5555"} {
		wg.Add(1)

		go func(id string) {
			defer wg.Done()

			for i := 0; i < perDevice; i++ {
				_, err := r.ApplyRecord(id, models.SeverityDebug)
				assert.NoError(t, err)
			}
		}(id)
	}

	wg.Wait()

	for _, id := range []string{"dev1:5555", "dev2:5555"} {
		dev, err := r.Get(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(perDevice), dev.Counters.Total)
	}
}

func TestSaveHookFiresOnStructuralChanges(t *testing.T) {
	r := New(logger.NewTestLogger())

	var (
		mu    sync.Mutex
		saves [][]models.PersistedDevice
	)

	r.OnSave(func(devices []models.PersistedDevice) {
		mu.Lock()
		saves = append(saves, devices)
		mu.Unlock()
	})

	r.Register("10.0.0.5:5555", "10.0.0.5", 5555)

	_, err := r.SetNickname("10.0.0.5:5555", "Dev Quest")
	require.NoError(t, err)

	// Counter updates are not structural and must not trigger saves.
	_, err = r.ApplyRecord("10.0.0.5:5555", models.SeverityInfo)
	require.NoError(t, err)

	require.NoError(t, r.Remove("10.0.0.5:5555"))

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, saves, 3)
	assert.Equal(t, "Dev Quest", saves[1][0].Nickname)
	assert.Empty(t, saves[2])
}

func TestRestoreDoesNotSave(t *testing.T) {
	r := New(logger.NewTestLogger())

	saved := 0
	r.OnSave(func([]models.PersistedDevice) { saved++ })

	dev := r.Restore(models.PersistedDevice{
		ID:             "10.0.0.5:5555",
		Nickname:       "Dev Quest",
		ConnectionType: models.ConnectionNetwork,
	})

	assert.Equal(t, 0, saved)
	assert.Equal(t, "Dev Quest", dev.Nickname)
	assert.Equal(t, "10.0.0.5", dev.Host)
	assert.Equal(t, 5555, dev.Port)
	assert.Equal(t, models.StatusDisconnected, dev.Status)
}

func TestColorAssignmentIsStable(t *testing.T) {
	assert.Equal(t, colorFor("10.0.0.5:5555"), colorFor("10.0.0.5:5555"))
	assert.Contains(t, colorPalette, colorFor("anything"))
}
