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

// Package session runs one capture session per connected device: it
// performs the connect handshake, spawns the logcat process, and feeds
// parsed records into the registry and the broadcast hub.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carverauto/logstream/pkg/adb"
	"github.com/carverauto/logstream/pkg/hub"
	"github.com/carverauto/logstream/pkg/logcat"
	"github.com/carverauto/logstream/pkg/models"
	"github.com/carverauto/logstream/pkg/registry"
)

// State is the capture session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
	StateErrored    State = "errored"
)

const (
	defaultGracePeriod = 3 * time.Second
	// maxLineSize bounds a single logcat line; anything longer is split
	// by the scanner rather than growing without bound.
	maxLineSize = 1 << 20
)

// Session owns one device's capture process. Sessions are single-use:
// after Stopped or Errored a fresh Session must be created to reconnect.
type Session struct {
	deviceID string
	registry *registry.Registry
	hub      *hub.Hub
	runner   adb.Runner
	parser   *logcat.Parser
	grace    time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	proc   adb.Process
	done   chan struct{}
}

func newSession(deviceID string, reg *registry.Registry, h *hub.Hub, runner adb.Runner,
	grace time.Duration, log zerolog.Logger) *Session {
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	return &Session{
		deviceID: deviceID,
		registry: reg,
		hub:      h,
		runner:   runner,
		parser:   logcat.NewParser(),
		grace:    grace,
		logger:   log.With().Str("device_id", deviceID).Logger(),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// active reports whether the session holds, or is about to hold, the
// device's one capture slot.
func (s *Session) active() bool {
	switch s.State() {
	case StateIdle, StateConnecting, StateStreaming, StateStopping:
		return true
	default:
		return false
	}
}

// Connect performs the handshake and starts the ingestion loop. The
// passed context bounds the handshake only; the capture process outlives
// it and is stopped by Disconnect.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrSessionUsed, s.state)
	}

	s.state = StateConnecting
	s.mu.Unlock()

	s.setStatus(models.StatusConnecting)

	// Network devices need an explicit connect to the discovery port;
	// USB-attached devices are already reachable through the local adb.
	if strings.Contains(s.deviceID, ":") {
		if err := s.runner.Connect(ctx, s.deviceID); err != nil {
			s.fail()
			return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
	}

	if model, err := s.runner.Model(ctx, s.deviceID); err == nil && model != "" {
		if _, err := s.registry.SetDisplayName(s.deviceID, model); err != nil &&
			!errors.Is(err, registry.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to record display name")
		}
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("device identity query failed")
	}

	procCtx, cancel := context.WithCancel(context.Background())

	proc, err := s.runner.Logcat(procCtx, s.deviceID)
	if err != nil {
		cancel()
		s.fail()

		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Disconnected while the handshake was in flight.
		s.state = StateStopped
		s.mu.Unlock()

		cancel()

		if kerr := proc.Kill(); kerr != nil {
			s.logger.Debug().Err(kerr).Msg("failed to kill capture process")
		}

		s.setStatus(models.StatusDisconnected)
		close(s.done)

		return nil
	}

	s.cancel = cancel
	s.proc = proc
	s.state = StateStreaming
	s.mu.Unlock()

	s.setStatus(models.StatusOnline)
	s.logger.Info().Msg("capture session streaming")

	go s.ingest(proc)

	return nil
}

// Disconnect stops the capture process and waits for the ingestion loop
// to exit, forcing a kill after the grace period. Safe to call from any
// state; terminal states are a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case StateStopped, StateErrored:
		s.mu.Unlock()
		return nil
	case StateIdle:
		s.state = StateStopped
		s.mu.Unlock()

		return nil
	case StateStopping:
		// Another caller is already stopping; just wait below.
	default:
		s.state = StateStopping
	}

	cancel := s.cancel
	proc := s.proc
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-s.done:
	case <-time.After(s.grace):
		s.logger.Warn().Msg("capture process did not exit in grace period, killing")

		if proc != nil {
			if err := proc.Kill(); err != nil {
				s.logger.Error().Err(err).Msg("failed to kill capture process")
			}
		}

		select {
		case <-s.done:
		case <-time.After(s.grace):
			return ErrStopTimeout
		}
	}

	// Drop the adb-level network link so the device is not left half
	// attached. Best effort.
	if strings.Contains(s.deviceID, ":") {
		if err := s.runner.Disconnect(ctx, s.deviceID); err != nil {
			s.logger.Debug().Err(err).Msg("adb disconnect failed")
		}
	}

	return nil
}

// ingest is the per-device loop: read one line, parse, merge counters,
// broadcast. It owns the Streaming→(Stopped|Errored) transition.
func (s *Session) ingest(proc adb.Process) {
	scanner := bufio.NewScanner(proc.Output())
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		record, ok := s.parser.Parse(s.deviceID, scanner.Text())
		if !ok {
			continue
		}

		device, err := s.registry.ApplyRecord(s.deviceID, record.Severity)
		if err != nil {
			// Device was removed while lines were in flight: drop.
			continue
		}

		record.DeviceName = device.Name()
		record.ColorTag = device.ColorTag

		s.hub.PublishRecord(&record)
	}

	err := proc.Wait()

	s.mu.Lock()
	wasStreaming := s.state == StateStreaming

	if wasStreaming {
		s.state = StateErrored
	} else {
		s.state = StateStopped
	}
	s.mu.Unlock()

	if wasStreaming {
		// The process died out from under us. This device is errored;
		// nothing else is affected.
		s.logger.Error().Err(err).Msg("capture process terminated unexpectedly")
		s.setStatus(models.StatusError)
	} else {
		s.setStatus(models.StatusDisconnected)
		s.logger.Info().Msg("capture session stopped")
	}

	close(s.done)
}

// fail marks a handshake failure: session Errored, device status error.
// Not retried automatically; reconnecting is an explicit caller action.
// A failure that races with Disconnect resolves as a clean stop.
func (s *Session) fail() {
	s.mu.Lock()
	stopping := s.state == StateStopping

	if stopping {
		s.state = StateStopped
	} else {
		s.state = StateErrored
	}
	s.mu.Unlock()

	if stopping {
		s.setStatus(models.StatusDisconnected)
	} else {
		s.setStatus(models.StatusError)
	}

	close(s.done)
}

func (s *Session) setStatus(status models.DeviceStatus) {
	device, err := s.registry.UpdateStatus(s.deviceID, status)
	if err != nil {
		// Removed concurrently; nothing to report.
		return
	}

	s.hub.PublishDevice(device)
}
