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

package logcat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/logstream/pkg/models"
)

func newFixedParser() *Parser {
	p := NewParser()
	p.now = func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}

	return p
}

func TestParseSeverityCodes(t *testing.T) {
	tests := []struct {
		code string
		want models.Severity
	}{
		{"V", models.SeverityVerbose},
		{"D", models.SeverityDebug},
		{"I", models.SeverityInfo},
		{"W", models.SeverityWarning},
		{"E", models.SeverityError},
		// Unrecognized codes still produce a record, classified at the
		// lowest priority.
		{"F", models.SeverityVerbose},
		{"S", models.SeverityVerbose},
	}

	p := newFixedParser()

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec, ok := p.Parse("dev1", "12:00:01.000 "+tt.code+"/Unity(123): hello")
			require.True(t, ok)
			assert.Equal(t, tt.want, rec.Severity)
		})
	}
}

func TestParseTimeFormat(t *testing.T) {
	p := newFixedParser()

	rec, ok := p.Parse("10.0.0.5:5555", "12:00:01.000 I/Quantum(123): hello")
	require.True(t, ok)

	assert.Equal(t, "10.0.0.5:5555", rec.DeviceID)
	assert.Equal(t, models.SeverityInfo, rec.Severity)
	assert.Equal(t, "Quantum", rec.Tag)
	assert.Equal(t, "hello", rec.Message)
	assert.Equal(t, "Quantum", rec.Category)
	assert.Equal(t, 12, rec.Timestamp.Hour())
	assert.Equal(t, 1, rec.Timestamp.Second())
	assert.Equal(t, 2025, rec.Timestamp.Year())
}

func TestParseThreadtimeFormat(t *testing.T) {
	p := newFixedParser()

	rec, ok := p.Parse("dev1", "06-15 09:30:00.123  1234  5678 W Vivox: channel dropped")
	require.True(t, ok)

	assert.Equal(t, models.SeverityWarning, rec.Severity)
	assert.Equal(t, "Vivox", rec.Tag)
	assert.Equal(t, "channel dropped", rec.Message)
	assert.Equal(t, "Vivox", rec.Category)
	assert.Equal(t, time.June, rec.Timestamp.Month())
	assert.Equal(t, 15, rec.Timestamp.Day())
}

func TestParseSkipsNonLogLines(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"--------- beginning of main",
		"some continuation text without a prefix",
		"12:00:01 I/Unity(123): missing millis",
	}

	p := newFixedParser()

	for _, line := range lines {
		_, ok := p.Parse("dev1", line)
		assert.False(t, ok, "line %q should be skipped", line)
	}
}

func TestParseUnityTagOverride(t *testing.T) {
	p := newFixedParser()

	rec, ok := p.Parse("dev1", "12:00:01.000 I/Unity(123): [Bootstrap] services ready")
	require.True(t, ok)
	assert.Equal(t, "Bootstrap", rec.Tag)

	// Playtime-looking brackets are not tags.
	rec, ok = p.Parse("dev1", "12:00:01.000 I/Unity(123): [2h 15m] session length")
	require.True(t, ok)
	assert.Equal(t, "Unity", rec.Tag)
}

func TestParseStripsColorMarkup(t *testing.T) {
	p := newFixedParser()

	rec, ok := p.Parse("dev1", "12:00:01.000 I/Unity(123): state <color=#00ff00>ready</color> now")
	require.True(t, ok)
	assert.Equal(t, "state ready now", rec.Message)
}

func TestParseTimestampFallback(t *testing.T) {
	p := newFixedParser()

	// Prefix matches but the clock is nonsense for the layout; record
	// still produced with the arrival time.
	rec, ok := p.Parse("dev1", "99:99:99.999 I/Unity(123): odd clock")
	require.True(t, ok)
	assert.Equal(t, p.now(), rec.Timestamp)
}

func TestCategorizeOrderIsDeterministic(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		message string
		want    string
	}{
		{"quantum beats network", "Unity", "Quantum connection established", "Quantum"},
		{"vivox beats network", "Unity", "vivox http request", "Vivox"},
		{"tag scanned too", "NetworkManager", "ready", "Network"},
		{"analytics", "Unity", "Firebase event queued", "Analytics"},
		{"camera", "Unity", "follower locked on", "Camera"},
		{"player", "Unity", "roy spawned", "Player"},
		{"no match", "Unity", "frame time 11ms", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.tag, tt.message))
		})
	}
}
