package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capture-broker/broker"
)

type emitted struct {
	event string
	args  []any
}

// fakeSIOConn stands in for a Socket.IO connection. Methods the handlers do
// not use fall through to the nil embedded interface.
type fakeSIOConn struct {
	socketio.Conn

	mu      sync.Mutex
	ctx     any
	emits   []emitted
	onClose func()
}

func (c *fakeSIOConn) Context() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *fakeSIOConn) SetContext(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = v
}

func (c *fakeSIOConn) Emit(event string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emits = append(c.emits, emitted{event: event, args: args})
}

func (c *fakeSIOConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (c *fakeSIOConn) Close() error {
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

func (c *fakeSIOConn) sent() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.emits...)
}

func (c *fakeSIOConn) waitEmit(t *testing.T, event string) emitted {
	t.Helper()
	var found emitted
	require.Eventually(t, func() bool {
		for _, e := range c.sent() {
			if e.event == event {
				found = e
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "no %s emitted", event)
	return found
}

func connectSIOAgent(t *testing.T, env *testEnv, address string, live string) *fakeSIOConn {
	t.Helper()
	conn := &fakeSIOConn{}
	require.NoError(t, env.srv.onSIOConnect(conn))
	env.srv.onSIOIdentify(conn, address)
	env.srv.onSIOStatus(conn, json.RawMessage(live))
	require.Eventually(t, func() bool {
		_, ok := env.srv.Broker().Snapshot().CameraAgents[address]
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestSocketIOAgentSession(t *testing.T) {
	env := newTestEnv(t)
	conn := connectSIOAgent(t, env, "10.0.0.7", `[true,false]`)

	id, ok := sioConnID(conn)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(id), "sio-"))
	require.Eventually(t, func() bool {
		return env.srv.Broker().Snapshot().CameraAgents["10.0.0.7"] == broker.AgentStatus{NumCameras: 2, CamerasUp: 1}
	}, 2*time.Second, 10*time.Millisecond)

	status, _ := env.do(t, http.MethodPut, "/api/selection", `{"address":"10.0.0.7"}`)
	require.Equal(t, http.StatusOK, status)
	sub := conn.waitEmit(t, broker.CmdSubscribe)
	assert.Equal(t, []any{"10.0.0.7"}, sub.args)

	status, _ = env.do(t, http.MethodPost, "/api/frames/1/request", "")
	require.Equal(t, http.StatusAccepted, status)
	req := conn.waitEmit(t, broker.CmdFrameRequest)
	assert.Equal(t, []any{"10.0.0.7", 1}, req.args)

	env.srv.onSIOFrame(conn, 1, sioFrame{Attachment: parser.Buffer{Data: []byte{0x01, 0x02}}})
	require.Eventually(t, func() bool {
		return env.srv.Broker().Snapshot().FrameSlots[1] == "data:image/jpeg;base64,AQI="
	}, 2*time.Second, 10*time.Millisecond)

	var text sioFrame
	require.NoError(t, json.Unmarshal([]byte(`"AwQ="`), &text))
	env.srv.onSIOFrame(conn, 2, text)
	require.Eventually(t, func() bool {
		return env.srv.Broker().Snapshot().FrameSlots[2] == "data:image/jpeg;base64,AwQ="
	}, 2*time.Second, 10*time.Millisecond)

	env.srv.onSIODisconnect(conn, "client namespace disconnect")
	require.Eventually(t, func() bool {
		return len(env.srv.Broker().Snapshot().CameraAgents) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, env.srv.agents.Send(id, broker.Command{Name: broker.CmdStopCapture}), errAgentGone)
}

func TestSocketIORecordingEmit(t *testing.T) {
	env := newTestEnv(t)
	conn := connectSIOAgent(t, env, "10.0.0.7", `[true]`)

	status, _ := env.do(t, http.MethodPost, "/api/recording/start", "")
	require.Equal(t, http.StatusOK, status)
	start := conn.waitEmit(t, broker.CmdStartCapture)
	assert.Equal(t, []any{broker.RecordingScope}, start.args)
}

func TestSocketIOEventsBeforeConnectAreIgnored(t *testing.T) {
	env := newTestEnv(t)
	conn := &fakeSIOConn{}
	env.srv.onSIOIdentify(conn, "10.0.0.7")
	env.srv.onSIOFrame(conn, 0, sioFrame{Text: []byte{1}})
	env.srv.onSIODisconnect(conn, "gone")

	status, body := env.do(t, http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["agents"])
}

func TestSocketIOFrameWithoutImageDropped(t *testing.T) {
	env := newTestEnv(t)
	conn := connectSIOAgent(t, env, "10.0.0.7", `[true]`)
	env.do(t, http.MethodPut, "/api/selection", `{"address":"10.0.0.7"}`)

	env.srv.onSIOFrame(conn, 0, sioFrame{})
	// A later frame is stored, so the empty one never reached the broker.
	env.srv.onSIOFrame(conn, 1, sioFrame{Text: []byte{1}})
	require.Eventually(t, func() bool {
		return env.srv.Broker().Snapshot().FrameSlots[1] != ""
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, env.srv.Broker().Snapshot().FrameSlots[0])
}

func TestShutdownWithSocketIOAgent(t *testing.T) {
	env := newTestEnv(t)
	conn := connectSIOAgent(t, env, "10.0.0.7", `[true]`)
	// go-socket.io runs the disconnect handler inside Close.
	conn.onClose = func() { env.srv.onSIODisconnect(conn, "client namespace disconnect") }

	done := make(chan struct{})
	go func() {
		env.srv.agents.closeAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("closeAll did not return")
	}
	require.Eventually(t, func() bool {
		return len(env.srv.Broker().Snapshot().CameraAgents) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSIOFrameDecoding(t *testing.T) {
	var f sioFrame
	require.NoError(t, json.Unmarshal([]byte(`"AQI="`), &f))
	assert.Equal(t, []byte{1, 2}, f.Bytes())

	var placeholder sioFrame
	require.NoError(t, json.Unmarshal([]byte(`{"_placeholder":true,"num":0}`), &placeholder))
	assert.Empty(t, placeholder.Bytes(), "attachment data is filled in by the decoder")

	attached := sioFrame{Attachment: parser.Buffer{Data: []byte{0xff, 0xd8}}}
	assert.Equal(t, []byte{0xff, 0xd8}, attached.Bytes())

	var bad sioFrame
	assert.Error(t, json.Unmarshal([]byte(`"not base64!"`), &bad))
}
