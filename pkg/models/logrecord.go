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

// LogRecord is one parsed diagnostic line. Immutable once constructed;
// records are transient and live only in the broadcast path.
type LogRecord struct {
	DeviceID string `json:"device_id"`
	// DeviceName and ColorTag are a snapshot of the producing device's
	// display identity at publish time, so viewers can render without a
	// registry lookup.
	DeviceName string    `json:"device_name,omitempty"`
	ColorTag   string    `json:"color_tag,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Severity   Severity  `json:"severity"`
	Tag        string    `json:"tag,omitempty"`
	Message    string    `json:"message"`
	Category   string    `json:"category"`
	Raw        string    `json:"raw,omitempty"`
}
