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

package api

import "github.com/carverauto/logstream/pkg/models"

// Command is one client request over the WebSocket.
type Command struct {
	Action   string `json:"action"`
	ID       string `json:"id,omitempty"`
	Nickname string `json:"nickname"`
	Serial   string `json:"serial,omitempty"`
}

// Client actions.
const (
	actionGetDevices   = "get_devices"
	actionAddDevice    = "add_device"
	actionConnect      = "connect"
	actionDisconnect   = "disconnect"
	actionRemove       = "remove"
	actionSetNickname  = "set_nickname"
	actionClearStats   = "clear_stats"
	actionScan         = "scan"
	actionListUSB      = "list_usb"
	actionEnableRemote = "enable_remote"
)

// Server message types. Device and log events reuse the hub's event type
// strings so subscribers see one vocabulary.
const (
	msgDevices       = "devices"
	msgDevice        = string(models.EventDeviceUpdated)
	msgDeviceRemoved = string(models.EventDeviceRemoved)
	msgLog           = string(models.EventLogRecord)
	msgScanResults   = "scan_results"
	msgUSBDevices    = "usb_devices"
	msgRemoteMode    = "remote_mode"
	msgError         = "error"
)

// Message is one server push over the WebSocket. Type selects which
// payload fields are set.
type Message struct {
	Type       string             `json:"type"`
	Devices    []models.Device    `json:"devices,omitempty"`
	Device     *models.Device     `json:"device,omitempty"`
	DeviceID   string             `json:"device_id,omitempty"`
	Record     *models.LogRecord  `json:"record,omitempty"`
	Candidates []models.Candidate `json:"candidates,omitempty"`
	USBDevices []models.USBDevice `json:"usb_devices,omitempty"`
	Address    string             `json:"address,omitempty"`
	Action     string             `json:"action,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// eventMessage maps a hub event onto the wire shape.
func eventMessage(ev models.Event) Message {
	return Message{
		Type:     string(ev.Type),
		Device:   ev.Device,
		DeviceID: ev.DeviceID,
		Record:   ev.Record,
	}
}
