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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/logstream/pkg/adb"
	"github.com/carverauto/logstream/pkg/hub"
	"github.com/carverauto/logstream/pkg/logger"
	"github.com/carverauto/logstream/pkg/models"
	"github.com/carverauto/logstream/pkg/registry"
	"github.com/carverauto/logstream/pkg/session"
)

// stubProcess never emits output until fed.
type stubProcess struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	exit chan error
	once sync.Once
}

func newStubProcess() *stubProcess {
	pr, pw := io.Pipe()

	return &stubProcess{pr: pr, pw: pw, exit: make(chan error, 1)}
}

func (p *stubProcess) Output() io.Reader { return p.pr }
func (p *stubProcess) Wait() error       { return <-p.exit }

func (p *stubProcess) Kill() error {
	p.once.Do(func() {
		p.pw.Close()
		p.exit <- context.Canceled
	})

	return nil
}

func (p *stubProcess) writeLine(line string) {
	fmt.Fprintln(p.pw, line)
}

type stubRunner struct {
	mu    sync.Mutex
	procs map[string]*stubProcess
	usb   []models.USBDevice
}

func newStubRunner() *stubRunner {
	return &stubRunner{procs: make(map[string]*stubProcess)}
}

func (r *stubRunner) Connect(context.Context, string) error    { return nil }
func (r *stubRunner) Disconnect(context.Context, string) error { return nil }
func (r *stubRunner) Model(context.Context, string) (string, error) {
	return "Quest 3", nil
}
func (r *stubRunner) EnableRemote(context.Context, string, int) error { return nil }
func (r *stubRunner) DeviceIP(context.Context, string) (string, error) {
	return "10.0.0.9", nil
}

func (r *stubRunner) Devices(context.Context) ([]models.USBDevice, error) {
	return r.usb, nil
}

func (r *stubRunner) Logcat(ctx context.Context, deviceID string) (adb.Process, error) {
	p := newStubProcess()

	r.mu.Lock()
	r.procs[deviceID] = p
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = p.Kill()
	}()

	return p, nil
}

func (r *stubRunner) proc(deviceID string) *stubProcess {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.procs[deviceID]
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager, *stubRunner) {
	t.Helper()

	runner := newStubRunner()
	reg := registry.New(logger.NewTestLogger())
	h := hub.New(1024, logger.NewTestLogger())
	manager := session.NewManager(reg, h, runner, nil, 200*time.Millisecond, logger.NewTestLogger())

	srv := NewServer(manager, h, logger.NewTestLogger())
	ts := httptest.NewServer(srv.Router())

	t.Cleanup(func() {
		ts.Close()
		_ = manager.Close(context.Background())
		h.Close()
	})

	return ts, manager, runner
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg Message

	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

// readUntil drains messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()

	for i := 0; i < 50; i++ {
		msg := readMessage(t, conn)
		if msg.Type == msgType {
			return msg
		}
	}

	t.Fatalf("never received a %q message", msgType)

	return Message{}
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func TestSnapshotOnJoin(t *testing.T) {
	ts, manager, _ := newTestServer(t)

	manager.AddDevice("10.0.0.5:5555")

	conn := dialWS(t, ts)

	msg := readMessage(t, conn)
	require.Equal(t, msgDevices, msg.Type)
	require.Len(t, msg.Devices, 1)
	assert.Equal(t, "10.0.0.5:5555", msg.Devices[0].ID)
	assert.Equal(t, models.StatusDisconnected, msg.Devices[0].Status)
}

func TestAddConnectAndStream(t *testing.T) {
	ts, _, runner := newTestServer(t)

	conn := dialWS(t, ts)
	require.Equal(t, msgDevices, readMessage(t, conn).Type)

	const id = "10.0.0.5:5555"

	sendCommand(t, conn, Command{Action: actionAddDevice, ID: id})

	msg := readUntil(t, conn, msgDevice)
	assert.Equal(t, id, msg.Device.ID)

	sendCommand(t, conn, Command{Action: actionConnect, ID: id})

	// connecting, then online.
	for {
		msg = readUntil(t, conn, msgDevice)
		if msg.Device.Status == models.StatusOnline {
			break
		}
		assert.Equal(t, models.StatusConnecting, msg.Device.Status)
	}

	runner.proc(id).writeLine("12:00:01.000 I/Quantum(123): hello")

	msg = readUntil(t, conn, msgLog)
	require.NotNil(t, msg.Record)
	assert.Equal(t, models.SeverityInfo, msg.Record.Severity)
	assert.Equal(t, "Quantum", msg.Record.Category)
	assert.Equal(t, "hello", msg.Record.Message)
}

func TestSetNicknameBroadcast(t *testing.T) {
	ts, manager, _ := newTestServer(t)

	const id = "10.0.0.5:5555"

	manager.AddDevice(id)

	conn := dialWS(t, ts)
	require.Equal(t, msgDevices, readMessage(t, conn).Type)

	sendCommand(t, conn, Command{Action: actionSetNickname, ID: id, Nickname: "Dev Quest"})

	msg := readUntil(t, conn, msgDevice)
	assert.Equal(t, "Dev Quest", msg.Device.Nickname)
}

func TestRemoveBroadcast(t *testing.T) {
	ts, manager, _ := newTestServer(t)

	const id = "10.0.0.5:5555"

	manager.AddDevice(id)

	conn := dialWS(t, ts)
	require.Equal(t, msgDevices, readMessage(t, conn).Type)

	sendCommand(t, conn, Command{Action: actionRemove, ID: id})

	msg := readUntil(t, conn, msgDeviceRemoved)
	assert.Equal(t, id, msg.DeviceID)
}

func TestCommandErrors(t *testing.T) {
	ts, _, _ := newTestServer(t)

	conn := dialWS(t, ts)
	require.Equal(t, msgDevices, readMessage(t, conn).Type)

	sendCommand(t, conn, Command{Action: "reboot"})

	msg := readUntil(t, conn, msgError)
	assert.Equal(t, "reboot", msg.Action)
	assert.Equal(t, errUnknownAction.Error(), msg.Error)

	sendCommand(t, conn, Command{Action: actionAddDevice})

	msg = readUntil(t, conn, msgError)
	assert.Equal(t, actionAddDevice, msg.Action)

	sendCommand(t, conn, Command{Action: actionConnect, ID: "missing"})

	msg = readUntil(t, conn, msgError)
	assert.Equal(t, actionConnect, msg.Action)
	assert.Equal(t, "missing", msg.DeviceID)
}

func TestListUSB(t *testing.T) {
	ts, _, runner := newTestServer(t)

	runner.usb = []models.USBDevice{
		{Serial: "1WMHH123456789", State: "device", Model: "Quest 3"},
	}

	conn := dialWS(t, ts)
	require.Equal(t, msgDevices, readMessage(t, conn).Type)

	sendCommand(t, conn, Command{Action: actionListUSB})

	msg := readUntil(t, conn, msgUSBDevices)
	require.Len(t, msg.USBDevices, 1)
	assert.Equal(t, "1WMHH123456789", msg.USBDevices[0].Serial)
}

func TestEnableRemote(t *testing.T) {
	ts, _, _ := newTestServer(t)

	conn := dialWS(t, ts)
	require.Equal(t, msgDevices, readMessage(t, conn).Type)

	sendCommand(t, conn, Command{Action: actionEnableRemote, Serial: "1WMHH123456789"})

	msg := readUntil(t, conn, msgRemoteMode)
	assert.Equal(t, "10.0.0.9:5555", msg.Address)
}

func TestTwoViewersSeeSameStream(t *testing.T) {
	ts, manager, runner := newTestServer(t)

	const id = "10.0.0.5:5555"

	manager.AddDevice(id)
	require.NoError(t, manager.Connect(context.Background(), id))

	a := dialWS(t, ts)
	b := dialWS(t, ts)

	require.Equal(t, msgDevices, readMessage(t, a).Type)
	require.Equal(t, msgDevices, readMessage(t, b).Type)

	runner.proc(id).writeLine("12:00:01.000 W/Vivox(7): login timeout")

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readUntil(t, conn, msgLog)
		assert.Equal(t, models.SeverityWarning, msg.Record.Severity)
		assert.Equal(t, "Vivox", msg.Record.Category)
	}
}

func TestRESTDevices(t *testing.T) {
	ts, manager, _ := newTestServer(t)

	manager.AddDevice("10.0.0.5:5555")

	resp, err := http.Get(ts.URL + "/api/devices")
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var devices []models.Device

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "10.0.0.5:5555", devices[0].ID)

	single, err := http.Get(ts.URL + "/api/devices/10.0.0.5:5555")
	require.NoError(t, err)

	defer single.Body.Close()

	assert.Equal(t, http.StatusOK, single.StatusCode)

	missing, err := http.Get(ts.URL + "/api/devices/nope")
	require.NoError(t, err)

	defer missing.Body.Close()

	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestIndexServed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "logstream")
}
