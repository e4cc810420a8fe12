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

// Package api serves the viewer UI: a WebSocket endpoint carrying the
// live event stream plus a small REST surface for snapshots.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/carverauto/logstream/pkg/hub"
	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/registry"
	"github.com/carverauto/logstream/pkg/session"
	"github.com/carverauto/logstream/web"
)

// Server is the HTTP front end. It owns no device state; every command
// delegates to the session manager and every push originates in the hub.
type Server struct {
	manager  *session.Manager
	hub      *hub.Hub
	router   *mux.Router
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	logger   logger.Logger
}

// NewServer wires routes for the given manager and hub.
func NewServer(manager *session.Manager, h *hub.Hub, log logger.Logger) *Server {
	s := &Server{
		manager: manager,
		hub:     h,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The viewer binds to the LAN and carries no credentials.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/api/devices", s.handleListDevices).Methods(http.MethodGet)
	s.router.HandleFunc("/api/devices/{id}", s.handleGetDevice).Methods(http.MethodGet)
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(web.Static)))
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(listenAddr string) error {
	s.httpSrv = &http.Server{
		Addr:              listenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("listen_addr", listenAddr).Msg("API server listening")

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}

	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	sub := s.hub.Subscribe()

	ctx, cancel := context.WithCancel(r.Context())

	c := &client{
		conn:    conn,
		sub:     sub,
		replies: make(chan Message, replyQueueSize),
		server:  s,
		cancel:  cancel,
		logger:  s.logger.WithFields(map[string]interface{}{"remote_addr": r.RemoteAddr}),
	}

	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Str("subscriber_id", sub.ID).Msg("viewer joined")

	c.run(ctx)

	s.hub.Unsubscribe(sub.ID)
	conn.Close()

	if dropped := sub.Dropped(); dropped > 0 {
		s.logger.Warn().
			Str("remote_addr", r.RemoteAddr).
			Uint64("dropped", dropped).
			Msg("viewer fell behind during its session")
	}

	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("viewer left")
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.manager.Devices())
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	device, err := s.manager.Device(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, "device not found", http.StatusNotFound)
			return
		}

		writeError(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, device)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
