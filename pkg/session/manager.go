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

package session

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/carverauto/logstream/pkg/adb"
	"github.com/carverauto/logstream/pkg/hub"
	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
	"github.com/carverauto/logstream/pkg/registry"
	"github.com/carverauto/logstream/pkg/scan"
)

// Manager is the command surface the transport layer talks to. It ties
// the registry, the broadcast hub and the adb boundary together and
// enforces the one-session-per-device invariant.
type Manager struct {
	registry *registry.Registry
	hub      *hub.Hub
	runner   adb.Runner
	scanner  *scan.Scanner
	grace    time.Duration
	logger   logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a manager. grace bounds how long Disconnect waits
// for an ingestion loop before force-killing; 0 selects the default.
func NewManager(reg *registry.Registry, h *hub.Hub, runner adb.Runner,
	scanner *scan.Scanner, grace time.Duration, log logger.Logger) *Manager {
	return &Manager{
		registry: reg,
		hub:      h,
		runner:   runner,
		scanner:  scanner,
		grace:    grace,
		logger:   log,
		sessions: make(map[string]*Session),
	}
}

// AddDevice registers a device id without connecting it.
func (m *Manager) AddDevice(id string) models.Device {
	host, port := "", 0
	if h, p, err := net.SplitHostPort(id); err == nil {
		host = h

		if n, aerr := strconv.Atoi(p); aerr == nil {
			port = n
		}
	}

	device := m.registry.Register(id, host, port)
	m.hub.PublishDevice(device)

	return device
}

// Connect starts a capture session for a registered device. Connecting
// an already-active device is a no-op; reconnecting a stopped or errored
// device builds a fresh session.
func (m *Manager) Connect(ctx context.Context, id string) error {
	if _, err := m.registry.Get(id); err != nil {
		return err
	}

	m.mu.Lock()

	if existing, ok := m.sessions[id]; ok && existing.active() {
		m.mu.Unlock()
		return nil
	}

	s := newSession(id, m.registry, m.hub, m.runner, m.grace,
		m.logger.WithComponent("session"))
	m.sessions[id] = s

	m.mu.Unlock()

	return s.Connect(ctx)
}

// Disconnect stops the device's capture session if one is active.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	if _, err := m.registry.Get(id); err != nil {
		return err
	}

	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	return s.Disconnect(ctx)
}

// Remove stops any capture session, deletes the device and broadcasts
// the removal.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if s != nil {
		if err := s.Disconnect(ctx); err != nil {
			m.logger.Warn().Err(err).Str("device_id", id).Msg("session stop during remove failed")
		}
	}

	if err := m.registry.Remove(id); err != nil {
		return err
	}

	m.hub.PublishDeviceRemoved(id)

	return nil
}

// SetNickname updates the persisted nickname and broadcasts the change.
func (m *Manager) SetNickname(id, nickname string) error {
	device, err := m.registry.SetNickname(id, nickname)
	if err != nil {
		return err
	}

	m.hub.PublishDevice(device)

	return nil
}

// ClearStats zeroes a device's counters and broadcasts the change.
func (m *Manager) ClearStats(id string) error {
	device, err := m.registry.ClearStats(id)
	if err != nil {
		return err
	}

	m.hub.PublishDevice(device)

	return nil
}

// Devices returns registry snapshots in insertion order.
func (m *Manager) Devices() []models.Device {
	return m.registry.List()
}

// Device returns one registry snapshot.
func (m *Manager) Device(id string) (models.Device, error) {
	return m.registry.Get(id)
}

// ListUSB lists locally attached devices.
func (m *Manager) ListUSB(ctx context.Context) ([]models.USBDevice, error) {
	return m.runner.Devices(ctx)
}

// EnableRemoteMode switches a USB-attached device to TCP listening mode
// and returns the address it will be reachable on. The device is not
// registered; that is a separate explicit action.
func (m *Manager) EnableRemoteMode(ctx context.Context, serial string) (string, error) {
	if err := m.runner.EnableRemote(ctx, serial, adb.DefaultPort); err != nil {
		return "", err
	}

	ip, err := m.runner.DeviceIP(ctx, serial)
	if err != nil {
		return "", fmt.Errorf("remote mode enabled but address unknown: %w", err)
	}

	return fmt.Sprintf("%s:%d", ip, adb.DefaultPort), nil
}

// Scan sweeps the local /24 for capture-capable devices and streams
// candidates. Candidates are not registered automatically.
func (m *Manager) Scan(ctx context.Context) (<-chan models.Candidate, error) {
	localAddr, err := localIPv4()
	if err != nil {
		return nil, err
	}

	return m.scanner.Scan(ctx, localAddr)
}

// Restore re-registers persisted devices as disconnected and, when
// autoConnect is set, starts sessions for the network ones.
func (m *Manager) Restore(ctx context.Context, devices []models.PersistedDevice, autoConnect bool) {
	for _, pd := range devices {
		device := m.registry.Restore(pd)

		if autoConnect && device.ConnectionType == models.ConnectionNetwork {
			if err := m.Connect(ctx, device.ID); err != nil {
				m.logger.Warn().Err(err).Str("device_id", device.ID).Msg("auto-connect failed")
			}
		}
	}
}

// Close disconnects every active session. Scans in flight are cancelled.
func (m *Manager) Close(ctx context.Context) error {
	if m.scanner != nil {
		m.scanner.Stop()
	}

	m.mu.Lock()

	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}

	m.mu.Unlock()

	var firstErr error

	for _, s := range sessions {
		if err := s.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// localIPv4 discovers the outbound interface address used to derive the
// scan subnet. No packets are sent; the dial only resolves a route.
func localIPv4() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("discover local address: %w", err)
	}

	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", fmt.Errorf("discover local address: unexpected %T", conn.LocalAddr())
	}

	return addr.IP.String(), nil
}
