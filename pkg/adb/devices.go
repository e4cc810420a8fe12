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

package adb

import (
	"strings"

	"github.com/carverauto/logstream/pkg/models"
)

// ParseDevicesOutput parses `adb devices -l` output. Network devices
// (serials containing a colon) are excluded; those are managed through
// explicit registration, not the local device list.
func ParseDevicesOutput(out string) []models.USBDevice {
	devices := make([]models.USBDevice, 0)

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		serial, state := fields[0], fields[1]
		if strings.Contains(serial, ":") {
			continue
		}

		device := models.USBDevice{Serial: serial, State: state}

		for _, f := range fields[2:] {
			if m, ok := strings.CutPrefix(f, "model:"); ok {
				device.Model = strings.ReplaceAll(m, "_", " ")
			}
		}

		devices = append(devices, device)
	}

	return devices
}
