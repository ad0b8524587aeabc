package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/parser"
	"github.com/rs/zerolog"

	"capture-broker/broker"
)

// sioAgent is an agent connected through the Socket.IO endpoint. Emit may
// block on the engine.io writer, so commands are queued and emitted by run.
type sioAgent struct {
	conn   socketio.Conn
	send   chan broker.Command
	log    zerolog.Logger
	closed bool
	mu     sync.Mutex
}

func newSIOAgent(conn socketio.Conn, buffer int, log zerolog.Logger) *sioAgent {
	return &sioAgent{
		conn: conn,
		send: make(chan broker.Command, buffer),
		log:  log,
	}
}

func (a *sioAgent) run() {
	for cmd := range a.send {
		payload := cmd.Payload()
		if args, ok := payload.([]any); ok {
			a.conn.Emit(cmd.Name, args...)
			continue
		}
		a.conn.Emit(cmd.Name, payload)
	}
}

func (a *sioAgent) deliver(cmd broker.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClientClosed
	}
	select {
	case a.send <- cmd:
		return nil
	default:
		return errBufferFull
	}
}

func (a *sioAgent) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.send)
	}
}

func (a *sioAgent) hangup() { a.conn.Close() }

func sioConnID(conn socketio.Conn) (broker.ConnID, bool) {
	if conn == nil {
		return "", false
	}
	id, ok := conn.Context().(broker.ConnID)
	return id, ok
}

// sioFrame is the image argument of a frame event. Agents send either a
// binary attachment with the raw JPEG or a base64 string.
type sioFrame struct {
	Attachment parser.Buffer
	Text       []byte
}

func (f *sioFrame) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("decode base64 frame: %w", err)
		}
		f.Text = data
		return nil
	}
	return json.Unmarshal(b, &f.Attachment)
}

// Bytes returns the image, whichever form it arrived in.
func (f sioFrame) Bytes() []byte {
	if f.Text != nil {
		return f.Text
	}
	return f.Attachment.Data
}

// newSocketIO serves agents speaking Socket.IO with the event names of the
// websocket endpoint.
func (s *Server) newSocketIO() *socketio.Server {
	sio := socketio.NewServer(nil)
	sio.OnConnect("/", s.onSIOConnect)
	sio.OnEvent("/", broker.MsgIdentify, s.onSIOIdentify)
	sio.OnEvent("/", broker.MsgStatus, s.onSIOStatus)
	sio.OnEvent("/", broker.MsgFrame, s.onSIOFrame)
	sio.OnError("/", s.onSIOError)
	sio.OnDisconnect("/", s.onSIODisconnect)
	return sio
}

func (s *Server) sioLog() zerolog.Logger {
	return s.log.With().Str("component", "socketio").Logger()
}

func (s *Server) onSIOConnect(conn socketio.Conn) error {
	id := broker.ConnID("sio-" + uuid.NewString())
	conn.SetContext(id)
	agent := newSIOAgent(conn, s.cfg.AgentSendBuffer, s.sioLog().With().Str("conn_id", string(id)).Logger())
	s.agents.add(id, agent)
	go agent.run()
	s.submitLifecycle(broker.ConnectEvent{ConnID: id})
	agent.log.Info().Str("remote", remoteAddr(conn)).Msg("socket.io agent connected")
	return nil
}

func (s *Server) onSIOIdentify(conn socketio.Conn, address string) {
	if id, ok := sioConnID(conn); ok {
		s.submitLifecycle(broker.IdentifyEvent{ConnID: id, Address: address})
	}
}

func (s *Server) onSIOStatus(conn socketio.Conn, raw json.RawMessage) {
	if id, ok := sioConnID(conn); ok {
		live, err := broker.ParseLiveVector(raw)
		s.submit(broker.StatusEvent{ConnID: id, Live: live, Malformed: err != nil})
	}
}

func (s *Server) onSIOFrame(conn socketio.Conn, index int, frame sioFrame) {
	id, ok := sioConnID(conn)
	if !ok {
		return
	}
	data := frame.Bytes()
	if len(data) == 0 {
		log := s.sioLog()
		log.Warn().Str("conn_id", string(id)).Int("index", index).Msg("socket.io frame without image dropped")
		return
	}
	s.submit(broker.FrameEvent{ConnID: id, Index: index, Data: data})
}

func (s *Server) onSIOError(conn socketio.Conn, err error) {
	id, _ := sioConnID(conn)
	log := s.sioLog()
	log.Warn().Err(err).Str("conn_id", string(id)).Msg("socket.io error")
}

func (s *Server) onSIODisconnect(conn socketio.Conn, reason string) {
	id, ok := sioConnID(conn)
	if !ok {
		return
	}
	s.agents.remove(id)
	s.submitLifecycle(broker.DisconnectEvent{ConnID: id})
	log := s.sioLog()
	log.Info().Str("conn_id", string(id)).Str("reason", reason).Msg("socket.io agent disconnected")
}

func remoteAddr(conn socketio.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
