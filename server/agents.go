package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"capture-broker/broker"
)

func newAgentHub(log zerolog.Logger) *agentHub {
	return &agentHub{
		conns: make(map[broker.ConnID]agentConn),
		log:   log.With().Str("component", "agents").Logger(),
	}
}

// Send implements broker.Transport
func (h *agentHub) Send(id broker.ConnID, cmd broker.Command) error {
	h.mu.RLock()
	conn, exists := h.conns[id]
	h.mu.RUnlock()
	if !exists {
		return fmt.Errorf("agent %s: %w", id, errAgentGone)
	}
	if err := conn.deliver(cmd); err != nil {
		return fmt.Errorf("agent %s: %w", id, err)
	}
	return nil
}

func (h *agentHub) add(id broker.ConnID, conn agentConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = conn
}

// remove forgets an agent connection and stops its outbound queue
func (h *agentHub) remove(id broker.ConnID) {
	h.mu.Lock()
	conn, exists := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if exists {
		conn.stop()
	}
}

// closeAll hangs up every agent. Their read loops report the disconnects.
// Socket.IO runs its disconnect handler inside Close, which calls remove, so
// the lock must not be held while hanging up.
func (h *agentHub) closeAll() {
	h.mu.RLock()
	conns := make([]agentConn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		conn.hangup()
	}
}

// wsAgent is an agent connected over the plain websocket endpoint
type wsAgent struct {
	*client
}

func (a wsAgent) deliver(cmd broker.Command) error {
	msg, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	return a.trySend(msg)
}

func (a wsAgent) stop()   { a.close() }
func (a wsAgent) hangup() { a.conn.Close() }

// handleAgentWS upgrades an agent connection and feeds its messages to the broker
func (s *Server) handleAgentWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("agent websocket upgrade failed")
		return
	}

	id := broker.ConnID(uuid.NewString())
	cl := newClient(string(id), conn, s.cfg.AgentSendBuffer, s.log)
	s.agents.add(id, wsAgent{cl})
	s.submitLifecycle(broker.ConnectEvent{ConnID: id})
	cl.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("agent websocket connected")

	go cl.writePump()
	go func() {
		cl.readPump(s.cfg.AgentReadLimit, func(msgType int, data []byte) {
			ev, err := decodeAgentMessage(id, msgType, data)
			if err != nil {
				cl.log.Warn().Err(err).Msg("agent message dropped")
				return
			}
			if _, ok := ev.(broker.IdentifyEvent); ok {
				s.submitLifecycle(ev)
				return
			}
			s.submit(ev)
		})
		s.agents.remove(id)
		s.submitLifecycle(broker.DisconnectEvent{ConnID: id})
	}()
}
