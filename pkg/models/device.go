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

import "time"

// DeviceStatus is the lifecycle state of a device's capture session.
type DeviceStatus string

const (
	StatusDisconnected DeviceStatus = "disconnected"
	StatusConnecting   DeviceStatus = "connecting"
	StatusOnline       DeviceStatus = "online"
	StatusError        DeviceStatus = "error"
)

// ConnectionType distinguishes network devices (id "<host>:<port>") from
// USB-attached devices (id is the hardware serial).
type ConnectionType string

const (
	ConnectionNetwork ConnectionType = "network"
	ConnectionUSB     ConnectionType = "usb"
)

// Counters holds per-severity running totals for one device. Mutated only
// by the device's owning capture session; read through registry snapshots.
type Counters struct {
	Verbose uint64 `json:"verbose"`
	Debug   uint64 `json:"debug"`
	Info    uint64 `json:"info"`
	Warning uint64 `json:"warning"`
	Error   uint64 `json:"error"`
	Total   uint64 `json:"total"`
}

// Device is an immutable snapshot of one registered log source.
type Device struct {
	ID             string         `json:"id"`
	Host           string         `json:"host,omitempty"`
	Port           int            `json:"port,omitempty"`
	DisplayName    string         `json:"display_name,omitempty"`
	Nickname       string         `json:"nickname,omitempty"`
	Status         DeviceStatus   `json:"status"`
	ColorTag       string         `json:"color_tag"`
	ConnectionType ConnectionType `json:"connection_type"`
	Counters       Counters       `json:"counters"`
	LastSeen       time.Time      `json:"last_seen,omitempty"`
}

// Name returns the label viewers should show: nickname wins over the
// reported product name, which wins over the raw id.
func (d *Device) Name() string {
	if d.Nickname != "" {
		return d.Nickname
	}

	if d.DisplayName != "" {
		return d.DisplayName
	}

	return d.ID
}
