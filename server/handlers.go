package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"capture-broker/broker"
	"capture-broker/internal/observability"
)

// writeError responds with the API error envelope
func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// call hands events to the broker and waits until they are applied, so the
// response reflects the new state
func (s *Server) call(c *gin.Context, events ...broker.Event) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), EventSubmitTimeout)
	defer cancel()
	for _, ev := range events {
		if err := s.broker.Call(ctx, ev); err != nil {
			status := http.StatusServiceUnavailable
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			writeError(c, status, "broker_unavailable", err.Error())
			return false
		}
	}
	return true
}

// submit queues an event from a connection without waiting for it. Events
// that cannot be queued within submitTimeout are dropped.
func (s *Server) submit(ev broker.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()
	if err := s.broker.Submit(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", ev.Kind()).Msg("event dropped")
	}
}

// submitLifecycle queues a connect or disconnect. These are never dropped for
// a full queue; only a stopped broker refuses them.
func (s *Server) submitLifecycle(ev broker.Event) {
	if err := s.broker.Submit(context.Background(), ev); err != nil {
		s.log.Warn().Err(err).Str("kind", ev.Kind()).Msg("lifecycle event dropped")
	}
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "capture-broker",
		"version": observability.Version,
		"commit":  observability.Commit,
		"date":    observability.Date,
	})
}

// handleGetState returns the full viewer state
func (s *Server) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, s.broker.Snapshot())
}

// handleListAgents returns identified agents and their camera counts, sorted by address
func (s *Server) handleListAgents(c *gin.Context) {
	st := s.broker.Snapshot()
	agents := make([]gin.H, 0, len(st.CameraAgents))
	for addr, status := range st.CameraAgents {
		agents = append(agents, gin.H{
			"address":  addr,
			"num_cams": status.NumCameras,
			"cams_up":  status.CamerasUp,
			"selected": addr == st.SelectedAgent,
		})
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i]["address"].(string) < agents[j]["address"].(string)
	})
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// handleSelectAgent selects the agent to watch
func (s *Server) handleSelectAgent(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !s.call(c, broker.SelectEvent{Address: req.Address}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected_agent": s.broker.Snapshot().SelectedAgent})
}

// handleDeselectAgent returns the viewer to the overview
func (s *Server) handleDeselectAgent(c *gin.Context) {
	if !s.call(c, broker.SelectEvent{}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected_agent": ""})
}

// frameIndex parses the :index route parameter
func frameIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 || idx >= broker.MaxCameras {
		writeError(c, http.StatusBadRequest, "invalid_index", "index must be within 0.."+strconv.Itoa(broker.MaxCameras-1))
		return 0, false
	}
	return idx, true
}

// handleRequestFrame asks the selected agent for the next frame of one tile
func (s *Server) handleRequestFrame(c *gin.Context) {
	idx, ok := frameIndex(c)
	if !ok {
		return
	}
	if !s.call(c, broker.NeedFrameEvent{Index: idx}) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"index": idx})
}

// handleGetFrame returns the encoded frame held in one slot
func (s *Server) handleGetFrame(c *gin.Context) {
	idx, ok := frameIndex(c)
	if !ok {
		return
	}
	frame := s.broker.Snapshot().FrameSlots[idx]
	if frame == "" {
		// Empty slot: 204 rather than an error, the viewer simply keeps its placeholder
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": idx, "frame": frame})
}

// handleResizeBegin suspends frame traffic for a layout gesture
func (s *Server) handleResizeBegin(c *gin.Context) {
	if !s.call(c, broker.SuspendEvent{Begin: true}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"suspended": true})
}

// handleResizeEnd applies the final width and resumes frame traffic
func (s *Server) handleResizeEnd(c *gin.Context) {
	var req struct {
		Width int `json:"width"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	events := []broker.Event{broker.SuspendEvent{}}
	if req.Width > 0 {
		events = []broker.Event{broker.ImageWidthEvent{Width: req.Width}, broker.SuspendEvent{}}
	}
	if !s.call(c, events...) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"suspended": false, "image_width": s.broker.Snapshot().ImageWidth})
}

// handleRecording starts or stops capture on every connected agent
func (s *Server) handleRecording(start bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.call(c, broker.RecordingEvent{Start: start}) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"recording": start})
	}
}
