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

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/carverauto/logstream/pkg/hub"
	"github.com/carverauto/logstream/pkg/models"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second

	// replyQueueSize bounds command replies queued behind the live event
	// stream.
	replyQueueSize = 16
)

// client is one attached WebSocket viewer. All writes to the connection
// happen on the writePump goroutine; the read loop only dispatches
// commands.
type client struct {
	conn    *websocket.Conn
	sub     *hub.Subscriber
	replies chan Message
	server  *Server
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

// run services the connection until the client disconnects or the server
// shuts down.
func (c *client) run(ctx context.Context) {
	defer c.cancel()

	// The snapshot is written before the pump starts so the client never
	// sees an update for a device it does not know.
	if !c.write(Message{Type: msgDevices, Devices: c.server.manager.Devices()}) {
		return
	}

	go c.writePump(ctx)

	c.readLoop(ctx)
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-c.sub.Events():
			if !ok {
				// Hub shut down.
				deadline := time.Now().Add(writeWait)
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)

				return
			}

			if !c.write(eventMessage(ev)) {
				return
			}

		case msg := <-c.replies:
			if !c.write(msg) {
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug().Err(err).Msg("keepalive ping failed")
				return
			}
		}
	}
}

func (c *client) write(msg Message) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Msg("write failed, dropping client")
		return false
	}

	return true
}

func (c *client) readLoop(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command

		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}

			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		c.dispatch(ctx, cmd)
	}
}

// dispatch executes one command. Anything that can block on a device or
// the network runs on its own goroutine so the read loop stays
// responsive.
func (c *client) dispatch(ctx context.Context, cmd Command) {
	m := c.server.manager

	switch cmd.Action {
	case actionGetDevices:
		c.reply(ctx, Message{Type: msgDevices, Devices: m.Devices()})

	case actionAddDevice:
		if cmd.ID == "" {
			c.fail(ctx, cmd, errEmptyDeviceID)
			return
		}

		m.AddDevice(cmd.ID)

	case actionConnect:
		go func() {
			if err := m.Connect(ctx, cmd.ID); err != nil {
				c.fail(ctx, cmd, err)
			}
		}()

	case actionDisconnect:
		go func() {
			if err := m.Disconnect(ctx, cmd.ID); err != nil {
				c.fail(ctx, cmd, err)
			}
		}()

	case actionRemove:
		go func() {
			if err := m.Remove(ctx, cmd.ID); err != nil {
				c.fail(ctx, cmd, err)
			}
		}()

	case actionSetNickname:
		if err := m.SetNickname(cmd.ID, cmd.Nickname); err != nil {
			c.fail(ctx, cmd, err)
		}

	case actionClearStats:
		if err := m.ClearStats(cmd.ID); err != nil {
			c.fail(ctx, cmd, err)
		}

	case actionScan:
		go c.runScan(ctx, cmd)

	case actionListUSB:
		go func() {
			devices, err := m.ListUSB(ctx)
			if err != nil {
				c.fail(ctx, cmd, err)
				return
			}

			c.reply(ctx, Message{Type: msgUSBDevices, USBDevices: devices})
		}()

	case actionEnableRemote:
		go func() {
			addr, err := m.EnableRemoteMode(ctx, cmd.Serial)
			if err != nil {
				c.fail(ctx, cmd, err)
				return
			}

			c.reply(ctx, Message{Type: msgRemoteMode, Address: addr})
		}()

	default:
		c.fail(ctx, cmd, errUnknownAction)
	}
}

// runScan drains the candidate stream and reports the full result set
// once the sweep finishes.
func (c *client) runScan(ctx context.Context, cmd Command) {
	candidates, err := c.server.manager.Scan(ctx)
	if err != nil {
		c.fail(ctx, cmd, err)
		return
	}

	found := make([]models.Candidate, 0, 8)
	for cand := range candidates {
		found = append(found, cand)
	}

	c.reply(ctx, Message{Type: msgScanResults, Candidates: found})
}

func (c *client) reply(ctx context.Context, msg Message) {
	select {
	case c.replies <- msg:
	case <-ctx.Done():
	}
}

func (c *client) fail(ctx context.Context, cmd Command, err error) {
	c.logger.Debug().Err(err).Str("action", cmd.Action).Str("device_id", cmd.ID).Msg("command failed")

	c.reply(ctx, Message{
		Type:     msgError,
		Action:   cmd.Action,
		DeviceID: cmd.ID,
		Error:    err.Error(),
	})
}
