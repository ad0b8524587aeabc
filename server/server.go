// Package server carries broker traffic over HTTP: agent websockets, a
// Socket.IO agent endpoint, the viewer websocket and a small REST API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"capture-broker/broker"
	"capture-broker/internal/config"
	"capture-broker/internal/observability"
)

// New wires the broker to its agent and viewer transports
func New(cfg config.Config, log zerolog.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.With().Str("component", "server").Logger(),
		metrics: metrics,
		agents:  newAgentHub(log),
		viewers: newViewerHub(log, metrics),

		submitTimeout: EventSubmitTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Agents and the viewer connect from anywhere on the capture network
			},
		},
	}
	s.broker = broker.New(broker.Options{
		Logger:            log,
		Metrics:           metrics,
		Transport:         s.agents,
		Publisher:         s.viewers,
		QueueSize:         cfg.EventQueueSize,
		Title:             cfg.Title,
		ImageWidth:        cfg.DefaultImageWidth,
		RejectStaleFrames: cfg.RejectStaleFrames,
	})
	if cfg.SocketIOEnabled {
		s.sio = s.newSocketIO()
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Broker() *broker.Broker { return s.broker }

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())

	api := r.Group("/api")
	{
		api.GET("/version", s.handleVersion)
		api.GET("/state", s.handleGetState)
		api.GET("/agents", s.handleListAgents)
		api.PUT("/selection", s.handleSelectAgent)
		api.DELETE("/selection", s.handleDeselectAgent)
		api.POST("/frames/:index/request", s.handleRequestFrame)
		api.GET("/frames/:index", s.handleGetFrame)
		api.POST("/resize/begin", s.handleResizeBegin)
		api.POST("/resize/end", s.handleResizeEnd)
		api.POST("/recording/start", s.handleRecording(true))
		api.POST("/recording/stop", s.handleRecording(false))
	}

	r.GET(AgentWSPath, s.handleAgentWS)
	r.GET(ViewerWSPath, s.handleViewerWS)
	if s.sio != nil {
		r.GET(SocketIOPath+"*any", gin.WrapH(s.sio))
		r.POST(SocketIOPath+"*any", gin.WrapH(s.sio))
	}

	r.GET("/health", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	}
	return r
}

// cors allows the viewer to be served from another origin
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", s.cfg.CORSAllowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

// Start runs the broker loop and the Socket.IO engine until ctx is done.
// It does not listen; use Run or mount Handler yourself.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("broker loop exited")
		}
	}()
	if s.sio == nil {
		return
	}
	go func() {
		if err := s.sio.Serve(); err != nil {
			s.log.Error().Err(err).Msg("socket.io server exited")
		}
	}()
	go func() {
		<-ctx.Done()
		s.sio.Close()
	}()
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Start(loopCtx)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("capture broker listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancelShutdown()
	err := srv.Shutdown(shutdownCtx)
	// Hijacked websocket connections are not closed by Shutdown
	s.agents.closeAll()
	s.viewers.closeAll()
	return err
}
