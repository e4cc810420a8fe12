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

// Package adb is the boundary to the external adb tool. Everything the
// core needs from a device goes through the Runner interface so tests can
// substitute a fake without spawning processes.
package adb

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
)

// DefaultPort is the fixed TCP port capture-capable devices listen on
// once remote mode is enabled.
const DefaultPort = 5555

// Runner abstracts the adb binary. All calls are one-shot except Logcat,
// which returns a long-running capture process.
type Runner interface {
	// Connect performs the network handshake (`adb connect host:port`).
	Connect(ctx context.Context, hostPort string) error
	// Disconnect drops the network link. Best-effort; errors are advisory.
	Disconnect(ctx context.Context, hostPort string) error
	// Devices lists locally attached devices (`adb devices -l`).
	Devices(ctx context.Context) ([]models.USBDevice, error)
	// Model queries the device product name.
	Model(ctx context.Context, deviceID string) (string, error)
	// EnableRemote switches a USB-attached device to TCP listening mode.
	EnableRemote(ctx context.Context, serial string, port int) error
	// DeviceIP reports the device's LAN address, for remote-mode results.
	DeviceIP(ctx context.Context, serial string) (string, error)
	// Logcat spawns the capture process streaming every severity.
	Logcat(ctx context.Context, deviceID string) (Process, error)
}

// Process is a running capture subprocess. Output yields merged
// stdout/stderr line data; Wait reports process exit.
type Process interface {
	Output() io.Reader
	Wait() error
	Kill() error
}

// ExecRunner runs the real adb binary.
type ExecRunner struct {
	path   string
	logger logger.Logger
}

var _ Runner = (*ExecRunner)(nil)

func NewExecRunner(path string, log logger.Logger) *ExecRunner {
	if path == "" {
		path = "adb"
	}

	return &ExecRunner{path: path, logger: log}
}

func (r *ExecRunner) Connect(ctx context.Context, hostPort string) error {
	out, err := exec.CommandContext(ctx, r.path, "connect", hostPort).CombinedOutput()
	if err != nil {
		return fmt.Errorf("adb connect %s: %w", hostPort, err)
	}

	// adb connect exits 0 even when the device is unreachable; the
	// outcome is only in the output text.
	text := strings.ToLower(string(out))
	if !strings.Contains(text, "connected to") {
		return fmt.Errorf("%w: %s", ErrConnectFailed, strings.TrimSpace(string(out)))
	}

	return nil
}

func (r *ExecRunner) Disconnect(ctx context.Context, hostPort string) error {
	if err := exec.CommandContext(ctx, r.path, "disconnect", hostPort).Run(); err != nil {
		return fmt.Errorf("adb disconnect %s: %w", hostPort, err)
	}

	return nil
}

func (r *ExecRunner) Devices(ctx context.Context) ([]models.USBDevice, error) {
	out, err := exec.CommandContext(ctx, r.path, "devices", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}

	return ParseDevicesOutput(string(out)), nil
}

func (r *ExecRunner) Model(ctx context.Context, deviceID string) (string, error) {
	out, err := exec.CommandContext(ctx, r.path, "-s", deviceID,
		"shell", "getprop", "ro.product.model").Output()
	if err != nil {
		return "", fmt.Errorf("adb getprop %s: %w", deviceID, err)
	}

	return strings.TrimSpace(string(out)), nil
}

func (r *ExecRunner) EnableRemote(ctx context.Context, serial string, port int) error {
	out, err := exec.CommandContext(ctx, r.path, "-s", serial,
		"tcpip", fmt.Sprintf("%d", port)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("adb tcpip %s: %w (%s)", serial, err, strings.TrimSpace(string(out)))
	}

	return nil
}

func (r *ExecRunner) DeviceIP(ctx context.Context, serial string) (string, error) {
	out, err := exec.CommandContext(ctx, r.path, "-s", serial,
		"shell", "ip", "route").Output()
	if err != nil {
		return "", fmt.Errorf("adb ip route %s: %w", serial, err)
	}

	ip := parseRouteOutput(string(out))
	if ip == "" {
		return "", ErrDeviceIPNotFound
	}

	return ip, nil
}

func (r *ExecRunner) Logcat(ctx context.Context, deviceID string) (Process, error) {
	//nolint:gosec // deviceID comes from the registry, not raw user input
	cmd := exec.CommandContext(ctx, r.path, "-s", deviceID, "logcat", "-v", "time", "*:V")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("logcat stdout pipe: %w", err)
	}

	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start logcat for %s: %w", deviceID, err)
	}

	r.logger.Debug().Str("device_id", deviceID).Int("pid", cmd.Process.Pid).Msg("logcat started")

	return &execProcess{cmd: cmd, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (p *execProcess) Output() io.Reader { return p.stdout }

func (p *execProcess) Wait() error { return p.cmd.Wait() }

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}

	return p.cmd.Process.Kill()
}

// parseRouteOutput pulls the `src <ip>` address out of `ip route` output.
func parseRouteOutput(out string) string {
	fields := strings.Fields(out)
	for i, f := range fields {
		if f == "src" && i+1 < len(fields) {
			return fields[i+1]
		}
	}

	return ""
}
