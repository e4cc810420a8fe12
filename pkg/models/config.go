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

package models

import "github.com/carverauto/logstream/pkg/logger"

// ServerConfig is the service configuration for the logstream daemon.
type ServerConfig struct {
	ListenAddr  string         `json:"listen_addr"`
	ADBPath     string         `json:"adb_path"`
	AutoConnect bool           `json:"auto_connect"`
	DevicesFile string         `json:"devices_file,omitempty"`
	Scan        ScanConfig     `json:"scan"`
	Logging     *logger.Config `json:"logging,omitempty"`
}

// ScanConfig tunes the subnet scanner.
type ScanConfig struct {
	Port        int             `json:"port"`
	Concurrency int             `json:"concurrency"`
	Timeout     logger.Duration `json:"timeout"`
}

// PersistedDevice is the durable subset of Device written to the devices
// file: identity plus the user-assigned nickname. Live state is not
// persisted; restored devices always come back disconnected.
type PersistedDevice struct {
	ID             string         `json:"id"`
	Nickname       string         `json:"nickname,omitempty"`
	ConnectionType ConnectionType `json:"connection_type"`
}

// DeviceFile is the on-disk document holding known devices.
type DeviceFile struct {
	Devices []PersistedDevice `json:"devices"`
}

// Candidate is one reachable host reported by a subnet scan. Model may be
// empty when the identity query failed; the host is still a candidate.
type Candidate struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Model string `json:"model,omitempty"`
}

// USBDevice is one entry from the local `adb devices` listing.
type USBDevice struct {
	Serial string `json:"serial"`
	State  string `json:"state"`
	Model  string `json:"model,omitempty"`
}
