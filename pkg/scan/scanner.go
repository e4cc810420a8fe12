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

// Package scan probes the local /24 for hosts listening on the capture
// discovery port. A scan reports candidates only; it never touches the
// device registry.
package scan

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/logstream/pkg/adb"
	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
)

const (
	defaultTimeout     = 300 * time.Millisecond
	defaultConcurrency = 32
	identityTimeout    = 2 * time.Second
	subnetHosts        = 254
)

// Scanner probes candidate hosts concurrently with a bounded worker pool
// and an aggressive per-host timeout. Unreachable hosts are the common
// case and are simply excluded from results.
type Scanner struct {
	port        int
	timeout     time.Duration
	concurrency int
	runner      adb.Runner

	mu     sync.Mutex
	cancel context.CancelFunc

	logger logger.Logger
}

func NewScanner(cfg models.ScanConfig, runner adb.Runner, log logger.Logger) *Scanner {
	port := cfg.Port
	if port == 0 {
		port = adb.DefaultPort
	}

	timeout := time.Duration(cfg.Timeout)
	if timeout == 0 {
		timeout = defaultTimeout
	}

	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = defaultConcurrency
	}

	return &Scanner{
		port:        port,
		timeout:     timeout,
		concurrency: concurrency,
		runner:      runner,
		logger:      log,
	}
}

// Scan probes every host in the /24 derived from localAddr and streams
// reachable candidates on the returned channel. The channel closes when
// the sweep completes. Starting a new scan cancels any scan still in
// flight.
func (s *Scanner) Scan(ctx context.Context, localAddr string) (<-chan models.Candidate, error) {
	prefix, err := subnetPrefix(localAddr)
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	resultCh := make(chan models.Candidate, subnetHosts)
	workCh := make(chan string, s.concurrency)

	var wg sync.WaitGroup

	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s.worker(scanCtx, workCh, resultCh)
		}()
	}

	go func() {
		defer close(workCh)

		for i := 1; i <= subnetHosts; i++ {
			select {
			case <-scanCtx.Done():
				return
			case workCh <- fmt.Sprintf("%s.%d", prefix, i):
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	s.logger.Info().Str("subnet", prefix+".0/24").Int("port", s.port).Msg("scan started")

	return resultCh, nil
}

// Stop cancels any in-flight scan.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scanner) worker(ctx context.Context, workCh <-chan string, resultCh chan<- models.Candidate) {
	for host := range workCh {
		if !s.checkPort(ctx, host) {
			continue
		}

		candidate := models.Candidate{Host: host, Port: s.port}
		// Identity is best effort: a host that won't identify is still a
		// candidate, just an anonymous one.
		candidate.Model = s.identify(ctx, host)

		select {
		case <-ctx.Done():
			return
		case resultCh <- candidate:
		}
	}
}

func (s *Scanner) checkPort(ctx context.Context, host string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var dialer net.Dialer

	conn, err := dialer.DialContext(probeCtx, "tcp", fmt.Sprintf("%s:%d", host, s.port))
	if err != nil {
		return false
	}

	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Str("host", host).Msg("failed to close probe connection")
	}

	return true
}

func (s *Scanner) identify(ctx context.Context, host string) string {
	if s.runner == nil {
		return ""
	}

	idCtx, cancel := context.WithTimeout(ctx, identityTimeout)
	defer cancel()

	hostPort := fmt.Sprintf("%s:%d", host, s.port)

	if err := s.runner.Connect(idCtx, hostPort); err != nil {
		return ""
	}

	model, err := s.runner.Model(idCtx, hostPort)
	if err != nil {
		return ""
	}

	return model
}

// subnetPrefix extracts the first three octets of an IPv4 address.
func subnetPrefix(localAddr string) (string, error) {
	ip := net.ParseIP(localAddr)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocalAddr, localAddr)
	}

	parts := strings.Split(ip.To4().String(), ".")

	return strings.Join(parts[:3], "."), nil
}
