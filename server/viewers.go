package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"capture-broker/broker"
	"capture-broker/internal/observability"
)

func newViewerHub(log zerolog.Logger, metrics *observability.Metrics) *viewerHub {
	return &viewerHub{
		clients: make(map[string]*client),
		log:     log.With().Str("component", "viewers").Logger(),
		metrics: metrics,
	}
}

// Publish implements broker.Publisher. It runs on the broker loop and never
// waits on a viewer.
func (h *viewerHub) Publish(u broker.Update) {
	msg, err := encodeUpdate(u)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(u.Kind)).Msg("encode update")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if err := c.trySend(msg); err != nil {
			c.log.Debug().Err(err).Str("kind", string(u.Kind)).Msg("viewer update dropped")
		}
	}
}

// register queues the current state for c and then subscribes it to updates.
// Holding the lock across both keeps the snapshot ahead of any later update.
func (h *viewerHub) register(c *client, snapshot func() broker.State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg, err := encodeState(snapshot())
	if err != nil {
		return err
	}
	if err := c.trySend(msg); err != nil {
		return err
	}
	h.clients[c.id] = c
	h.metrics.ViewerConnected(1)
	return nil
}

func (h *viewerHub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.clients[id]; exists {
		delete(h.clients, id)
		h.metrics.ViewerConnected(-1)
	}
}

func (h *viewerHub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.conn.Close()
	}
}

// handleViewerWS upgrades a viewer connection, sends it the current state and
// forwards its inputs to the broker
func (s *Server) handleViewerWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("viewer websocket upgrade failed")
		return
	}

	cl := newClient(uuid.NewString(), conn, s.cfg.ViewerSendBuffer, s.log)
	if err := s.viewers.register(cl, s.broker.Snapshot); err != nil {
		cl.log.Error().Err(err).Msg("viewer registration failed")
		conn.Close()
		return
	}
	cl.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("viewer connected")

	go cl.writePump()
	go func() {
		cl.readPump(ViewerReadLimit, func(_ int, data []byte) {
			events, err := decodeViewerAction(data)
			if err != nil {
				cl.log.Warn().Err(err).Msg("viewer action dropped")
				return
			}
			for _, ev := range events {
				s.submit(ev)
			}
		})
		s.viewers.unregister(cl.id)
		cl.log.Info().Msg("viewer disconnected")
	}()
}
