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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/logstream/pkg/models"
)

func TestParseDevicesOutput(t *testing.T) {
	out := `List of devices attached
1WMHH123456789         device usb:1-1 product:hollywood model:Quest_3 device:eureka transport_id:1
2ABCD987654321         unauthorized usb:1-2 transport_id:2
10.0.0.5:5555          device product:hollywood model:Quest_3 device:eureka transport_id:3
* daemon started successfully
`

	devices := ParseDevicesOutput(out)
	require.Len(t, devices, 2)

	assert.Equal(t, models.USBDevice{
		Serial: "1WMHH123456789",
		State:  "device",
		Model:  "Quest 3",
	}, devices[0])

	assert.Equal(t, "2ABCD987654321", devices[1].Serial)
	assert.Equal(t, "unauthorized", devices[1].State)
	assert.Empty(t, devices[1].Model)
}

func TestParseDevicesOutputEmpty(t *testing.T) {
	assert.Empty(t, ParseDevicesOutput("List of devices attached\n\n"))
	assert.Empty(t, ParseDevicesOutput(""))
}

func TestParseRouteOutput(t *testing.T) {
	out := "192.168.1.0/24 dev wlan0 proto kernel scope link src 192.168.1.42\n"
	assert.Equal(t, "192.168.1.42", parseRouteOutput(out))
	assert.Empty(t, parseRouteOutput("no source here"))
}
