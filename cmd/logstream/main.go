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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/logstream/pkg/adb"
	"github.com/carverauto/logstream/pkg/api"
	"github.com/carverauto/logstream/pkg/config"
	"github.com/carverauto/logstream/pkg/hub"
	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
	"github.com/carverauto/logstream/pkg/registry"
	"github.com/carverauto/logstream/pkg/scan"
	"github.com/carverauto/logstream/pkg/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	listenAddr := flag.String("listen", ":8765", "HTTP listen address")
	adbPath := flag.String("adb", "adb", "path to the adb binary")
	configPath := flag.String("config", "", "path to the server config file")
	autoConnect := flag.Bool("auto-connect", true, "reconnect known network devices on startup")
	flag.Parse()

	if err := run(*listenAddr, *adbPath, *configPath, *autoConnect); err != nil {
		fmt.Fprintf(os.Stderr, "logstream: %v\n", err)
		os.Exit(1)
	}
}

func run(listenAddr, adbPath, configPath string, autoConnect bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &models.ServerConfig{
		ListenAddr:  listenAddr,
		ADBPath:     adbPath,
		AutoConnect: autoConnect,
	}

	if configPath != "" {
		loader := &config.FileConfigLoader{}
		if err := loader.Load(ctx, configPath, cfg); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if cfg.Logging == nil {
		cfg.Logging = logger.DefaultConfig()
	}

	log, err := logger.NewLogger(ctx, cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	defer func() {
		if err := logger.ShutdownOTEL(); err != nil {
			fmt.Fprintf(os.Stderr, "logstream: otel shutdown: %v\n", err)
		}
	}()

	devicesPath := cfg.DevicesFile
	if devicesPath == "" {
		devicesPath, err = config.DefaultDevicesPath()
		if err != nil {
			return err
		}
	}

	store := config.NewDeviceStore(devicesPath, log)

	reg := registry.New(log)
	reg.OnSave(func(devices []models.PersistedDevice) {
		if err := store.Save(devices); err != nil {
			log.Error().Err(err).Str("path", devicesPath).Msg("failed to persist devices")
		}
	})

	h := hub.New(0, log)

	runner := adb.NewExecRunner(cfg.ADBPath, log)
	scanner := scan.NewScanner(cfg.Scan, runner, log)
	manager := session.NewManager(reg, h, runner, scanner, 0, log)

	manager.Restore(ctx, store.Load(), cfg.AutoConnect)

	srv := api.NewServer(manager, h, log)

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Start(cfg.ListenAddr)
	}()

	log.Info().
		Str("listen_addr", cfg.ListenAddr).
		Str("adb_path", cfg.ADBPath).
		Str("devices_file", devicesPath).
		Msg("logstream started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
	}

	if err := manager.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("session shutdown did not complete cleanly")
	}

	h.Close()

	log.Info().Msg("logstream stopped")

	return nil
}
