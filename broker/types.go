package broker

import "time"

// ConnID identifies one physical agent connection. It is assigned by the
// transport and never reused.
type ConnID string

// AgentSession is one live agent connection.
type AgentSession struct {
	ConnID      ConnID
	Address     string // empty until the agent identifies
	ConnectedAt time.Time

	seq uint64
}

func (s *AgentSession) Identified() bool { return s.Address != "" }

// AgentStatus summarizes the last liveness vector reported for an address.
type AgentStatus struct {
	NumCameras int `json:"num_cams"`
	CamerasUp  int `json:"cams_up"`
}

// Command is an outbound message to one agent.
type Command struct {
	Name    string
	Address string
	Index   int
}

// Payload is the command's data as sent on the wire.
func (c Command) Payload() any {
	switch c.Name {
	case CmdSubscribe:
		return c.Address
	case CmdFrameRequest:
		return []any{c.Address, c.Index}
	case CmdStartCapture, CmdStopCapture:
		return RecordingScope
	}
	return nil
}

// Transport delivers commands to agent connections. Send must not block on the
// network; a nil error only means the command was queued.
type Transport interface {
	Send(id ConnID, cmd Command) error
}

// State is the snapshot observed by the viewer. Values returned by
// Broker.Snapshot are never mutated afterwards.
type State struct {
	Title         string                 `json:"title"`
	CameraAgents  map[string]AgentStatus `json:"camera_agents"`
	SelectedAgent string                 `json:"selected_agent"`
	FrameSlots    [MaxCameras]string     `json:"frame_slots"`
	Recording     bool                   `json:"recording"`
	ImageWidth    int                    `json:"image_width"`
	Suspended     bool                   `json:"suspended"`
	NumCams       int                    `json:"num_cams"`
	CamsPerRow    int                    `json:"cams_per_row"`
}

// UpdateKind names the part of State an Update carries.
type UpdateKind string

const (
	UpdateAgents        UpdateKind = "agents"
	UpdateSelection     UpdateKind = "selection"
	UpdateFrame         UpdateKind = "frame"
	UpdateFramesCleared UpdateKind = "frames_cleared"
	UpdateRecording     UpdateKind = "recording"
	UpdateImageWidth    UpdateKind = "image_width"
	UpdateSuspended     UpdateKind = "suspended"
)

// Update is one published state change. Only the fields relevant to Kind are
// set.
type Update struct {
	Kind       UpdateKind
	Agents     map[string]AgentStatus
	Selected   string
	Index      int
	Frame      string
	Recording  bool
	ImageWidth int
	Suspended  bool
}

// Publisher receives updates from the broker loop. Publish is called from the
// loop goroutine and must not block.
type Publisher interface {
	Publish(Update)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Update) {}
