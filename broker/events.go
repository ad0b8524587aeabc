package broker

// Event is an inbound broker event. The set is closed: only the types in this
// file implement it.
type Event interface {
	Kind() string
	event()
}

// Agent events.

type ConnectEvent struct {
	ConnID ConnID
}

type IdentifyEvent struct {
	ConnID  ConnID
	Address string
}

type DisconnectEvent struct {
	ConnID ConnID
}

// StatusEvent carries one liveness flag per camera, in camera order. Malformed
// is set by the transport when the payload could not be decoded.
type StatusEvent struct {
	ConnID    ConnID
	Live      []bool
	Malformed bool
}

type FrameEvent struct {
	ConnID ConnID
	Index  int
	Data   []byte
}

// Viewer events.

// SelectEvent selects an agent by address. An empty address deselects.
type SelectEvent struct {
	Address string
}

// NeedFrameEvent is sent when tile Index is ready for its next image.
type NeedFrameEvent struct {
	Index int
}

// SuspendEvent begins (Begin=true) or ends a continuous UI interaction.
type SuspendEvent struct {
	Begin bool
}

type RecordingEvent struct {
	Start bool
}

type ImageWidthEvent struct {
	Width int
}

func (ConnectEvent) Kind() string    { return "connect" }
func (IdentifyEvent) Kind() string   { return "identify" }
func (DisconnectEvent) Kind() string { return "disconnect" }
func (StatusEvent) Kind() string     { return "status" }
func (FrameEvent) Kind() string      { return "frame" }
func (SelectEvent) Kind() string     { return "select" }
func (NeedFrameEvent) Kind() string  { return "need_frame" }
func (SuspendEvent) Kind() string    { return "suspend" }
func (RecordingEvent) Kind() string  { return "recording" }
func (ImageWidthEvent) Kind() string { return "image_width" }

func (ConnectEvent) event()    {}
func (IdentifyEvent) event()   {}
func (DisconnectEvent) event() {}
func (StatusEvent) event()     {}
func (FrameEvent) event()      {}
func (SelectEvent) event()     {}
func (NeedFrameEvent) event()  {}
func (SuspendEvent) event()    {}
func (RecordingEvent) event()  {}
func (ImageWidthEvent) event() {}
