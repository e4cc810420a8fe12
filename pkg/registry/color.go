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

package registry

import "hash/fnv"

// colorPalette is the fixed set of display colors. Assignment is by
// hashing the device id so a device keeps its color across restarts.
var colorPalette = []string{
	"#3fb950", // green
	"#58a6ff", // blue
	"#f0883e", // orange
	"#a371f7", // purple
	"#56d4dd", // cyan
	"#f9c513", // yellow
	"#f85149", // red
	"#d29922", // amber
}

func colorFor(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))

	return colorPalette[h.Sum32()%uint32(len(colorPalette))]
}
