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

// EventType discriminates events flowing through the broadcast hub.
type EventType string

const (
	EventDeviceUpdated EventType = "device"
	EventDeviceRemoved EventType = "device_removed"
	EventLogRecord     EventType = "log"
)

// Event is one broadcast hub message: either a device-state change or a
// log record. Exactly one payload field is set per type.
type Event struct {
	Type     EventType  `json:"type"`
	Device   *Device    `json:"device,omitempty"`
	DeviceID string     `json:"device_id,omitempty"`
	Record   *LogRecord `json:"record,omitempty"`
}
