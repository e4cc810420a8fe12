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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
)

// DeviceStore persists the registry's durable subset. Load never fails:
// a missing or malformed file means "no known devices". Save is atomic
// (write temp, then rename) so a crash mid-write cannot corrupt the file.
type DeviceStore struct {
	path   string
	logger logger.Logger
}

func NewDeviceStore(path string, log logger.Logger) *DeviceStore {
	return &DeviceStore{path: path, logger: log}
}

// Load reads the known devices file.
func (s *DeviceStore) Load() []models.PersistedDevice {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("failed to read devices file")
		}

		return nil
	}

	var file models.DeviceFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("devices file is malformed, starting empty")
		return nil
	}

	return file.Devices
}

// Save writes the full device list, replacing the previous file.
func (s *DeviceStore) Save(devices []models.PersistedDevice) error {
	if devices == nil {
		devices = []models.PersistedDevice{}
	}

	data, err := json.MarshalIndent(models.DeviceFile{Devices: devices}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal devices: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".devices-*.json")
	if err != nil {
		return fmt.Errorf("create temp devices file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("write temp devices file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp devices file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace devices file: %w", err)
	}

	return nil
}
