package server

import "time"

// Websocket connection constants
const (
	// WebSocketPingInterval is how often to send ping messages to peers
	WebSocketPingInterval = 54 * time.Second

	// WebSocketReadDeadline is the deadline for reading WebSocket messages
	WebSocketReadDeadline = 60 * time.Second

	// WebSocketWriteDeadline is the deadline for writing WebSocket messages
	WebSocketWriteDeadline = 10 * time.Second

	// ViewerReadLimit is the maximum size of a viewer input message
	ViewerReadLimit = 512

	// EventSubmitTimeout bounds how long a connection waits for room in the
	// broker queue before its event is dropped
	EventSubmitTimeout = 5 * time.Second

	// ShutdownTimeout is the time allowed for in-flight requests on shutdown
	ShutdownTimeout = 5 * time.Second
)

// Routes
const (
	AgentWSPath  = "/ws/agent"
	ViewerWSPath = "/ws/viewer"
	SocketIOPath = "/socket.io/"
)
