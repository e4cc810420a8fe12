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

// Package registry owns the authoritative set of known devices. All
// reads return snapshot copies; live state is only mutated through the
// registry so capture sessions for different devices never contend.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
)

// SaveFunc is invoked after every structural change (register, remove,
// rename) with the durable subset of the registry. Persistence failures
// are the hook's problem; the registry never blocks on them.
type SaveFunc func(devices []models.PersistedDevice)

// Registry is the process-wide device table. Structural operations are
// serialized; per-device status and counter updates take only that
// device's lock.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry
	order   []string
	save    SaveFunc
	logger  logger.Logger
}

type deviceEntry struct {
	mu  sync.Mutex
	dev models.Device
}

func New(log logger.Logger) *Registry {
	return &Registry{
		devices: make(map[string]*deviceEntry),
		logger:  log,
	}
}

// OnSave installs the persistence hook. Pass nil to disable saving.
func (r *Registry) OnSave(save SaveFunc) {
	r.mu.Lock()
	r.save = save
	r.mu.Unlock()
}

// Register adds a device or returns the existing one. Idempotent: a
// second Register with a known id never resets nickname, counters or
// status. Host and port may be empty/zero for USB-attached devices.
func (r *Registry) Register(id, host string, port int) models.Device {
	return r.register(id, host, port, "", true)
}

// Restore re-adds a persisted device without firing the save hook.
// Restored devices always start disconnected.
func (r *Registry) Restore(pd models.PersistedDevice) models.Device {
	host := ""
	port := 0

	if pd.ConnectionType == models.ConnectionNetwork {
		host, port = splitHostPort(pd.ID)
	}

	return r.register(pd.ID, host, port, pd.Nickname, false)
}

func (r *Registry) register(id, host string, port int, nickname string, persist bool) models.Device {
	r.mu.Lock()

	entry, exists := r.devices[id]
	if !exists {
		connType := models.ConnectionUSB
		if strings.Contains(id, ":") {
			connType = models.ConnectionNetwork
		}

		entry = &deviceEntry{dev: models.Device{
			ID:             id,
			Host:           host,
			Port:           port,
			Nickname:       nickname,
			Status:         models.StatusDisconnected,
			ColorTag:       colorFor(id),
			ConnectionType: connType,
		}}
		r.devices[id] = entry
		r.order = append(r.order, id)
	}

	r.mu.Unlock()

	if !exists {
		r.logger.Info().Str("device_id", id).Msg("device registered")

		if persist {
			r.persist()
		}
	}

	return r.snapshot(entry)
}

// Remove deletes a device. The caller is responsible for stopping any
// active capture session first. No-op aside from ErrNotFound if absent.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()

	if _, ok := r.devices[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	delete(r.devices, id)

	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.mu.Unlock()

	r.logger.Info().Str("device_id", id).Msg("device removed")
	r.persist()

	return nil
}

// SetNickname assigns the user override and persists it.
func (r *Registry) SetNickname(id, nickname string) (models.Device, error) {
	dev, err := r.update(id, func(d *models.Device) {
		d.Nickname = nickname
	})
	if err != nil {
		return models.Device{}, err
	}

	r.persist()

	return dev, nil
}

// SetDisplayName records the product name reported on first connection.
func (r *Registry) SetDisplayName(id, name string) (models.Device, error) {
	return r.update(id, func(d *models.Device) {
		d.DisplayName = name
	})
}

// UpdateStatus moves a device to a new lifecycle status.
func (r *Registry) UpdateStatus(id string, status models.DeviceStatus) (models.Device, error) {
	return r.update(id, func(d *models.Device) {
		d.Status = status
	})
}

// ApplyRecord folds one record's severity into the device counters and
// returns the resulting snapshot, which carries the display identity the
// broadcast path attaches to the record.
func (r *Registry) ApplyRecord(id string, severity models.Severity) (models.Device, error) {
	return r.update(id, func(d *models.Device) {
		switch severity {
		case models.SeverityVerbose:
			d.Counters.Verbose++
		case models.SeverityDebug:
			d.Counters.Debug++
		case models.SeverityInfo:
			d.Counters.Info++
		case models.SeverityWarning:
			d.Counters.Warning++
		case models.SeverityError:
			d.Counters.Error++
		}

		d.Counters.Total++
		d.LastSeen = time.Now()
	})
}

// ClearStats zeroes the per-severity counters.
func (r *Registry) ClearStats(id string) (models.Device, error) {
	return r.update(id, func(d *models.Device) {
		d.Counters = models.Counters{}
	})
}

// Get returns a snapshot of one device.
func (r *Registry) Get(id string) (models.Device, error) {
	r.mu.RLock()
	entry, ok := r.devices[id]
	r.mu.RUnlock()

	if !ok {
		return models.Device{}, ErrNotFound
	}

	return r.snapshot(entry), nil
}

// List returns snapshots of all devices in insertion order.
func (r *Registry) List() []models.Device {
	r.mu.RLock()

	entries := make([]*deviceEntry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.devices[id])
	}

	r.mu.RUnlock()

	devices := make([]models.Device, 0, len(entries))
	for _, entry := range entries {
		devices = append(devices, r.snapshot(entry))
	}

	return devices
}

// Persisted returns the durable subset in insertion order.
func (r *Registry) Persisted() []models.PersistedDevice {
	devices := r.List()

	persisted := make([]models.PersistedDevice, 0, len(devices))
	for i := range devices {
		persisted = append(persisted, models.PersistedDevice{
			ID:             devices[i].ID,
			Nickname:       devices[i].Nickname,
			ConnectionType: devices[i].ConnectionType,
		})
	}

	return persisted
}

func (r *Registry) update(id string, fn func(*models.Device)) (models.Device, error) {
	r.mu.RLock()
	entry, ok := r.devices[id]
	r.mu.RUnlock()

	if !ok {
		return models.Device{}, ErrNotFound
	}

	entry.mu.Lock()
	fn(&entry.dev)
	dev := entry.dev
	entry.mu.Unlock()

	return dev, nil
}

func (r *Registry) snapshot(entry *deviceEntry) models.Device {
	entry.mu.Lock()
	dev := entry.dev
	entry.mu.Unlock()

	return dev
}

func (r *Registry) persist() {
	r.mu.RLock()
	save := r.save
	r.mu.RUnlock()

	if save != nil {
		save(r.Persisted())
	}
}

func splitHostPort(id string) (host string, port int) {
	idx := strings.LastIndex(id, ":")
	if idx < 0 {
		return id, 0
	}

	host = id[:idx]
	for _, c := range id[idx+1:] {
		if c < '0' || c > '9' {
			return host, 0
		}

		port = port*10 + int(c-'0')
	}

	return host, port
}
