package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"capture-broker/broker"
	"capture-broker/internal/config"
	"capture-broker/internal/observability"
)

var (
	errClientClosed = errors.New("client closed")
	errBufferFull   = errors.New("client buffer full")
	errAgentGone    = errors.New("agent not connected")
)

// Server exposes the broker to capture agents and the viewer
type Server struct {
	cfg      config.Config
	log      zerolog.Logger
	metrics  *observability.Metrics
	broker   *broker.Broker
	agents   *agentHub
	viewers  *viewerHub
	sio      *socketio.Server
	router   *gin.Engine
	upgrader websocket.Upgrader

	submitTimeout time.Duration
}

// client represents one websocket peer, either an agent or a viewer
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	log    zerolog.Logger
	closed bool
	mu     sync.Mutex
}

// agentConn is an agent connection as seen by the broker's transport
type agentConn interface {
	// deliver queues cmd without waiting for the network
	deliver(cmd broker.Command) error
	// stop ends outbound delivery once the connection is gone
	stop()
	// hangup closes the underlying connection
	hangup()
}

// agentHub routes broker commands to agent connections
type agentHub struct {
	conns map[broker.ConnID]agentConn
	mu    sync.RWMutex
	log   zerolog.Logger
}

// viewerHub fans broker updates out to viewer websockets
type viewerHub struct {
	clients map[string]*client
	mu      sync.RWMutex
	log     zerolog.Logger
	metrics *observability.Metrics
}

// agentMessage is a text message sent by an agent
type agentMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// framePayload is the data of a JSON encoded frame message
type framePayload struct {
	Index int    `json:"index"`
	Frame []byte `json:"frame"`
}

// commandMessage is a command sent to an agent
type commandMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// viewerAction is an input message sent by the viewer
type viewerAction struct {
	Action  string `json:"action"`
	Address string `json:"address,omitempty"`
	Index   *int   `json:"index,omitempty"`
	Width   *int   `json:"width,omitempty"`
	Start   bool   `json:"start,omitempty"`
}
