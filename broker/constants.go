package broker

const (
	// MaxCameras is the number of frame slots held for the selected agent.
	MaxCameras = 8

	// CamsPerRow is the viewer's default tile layout.
	CamsPerRow = 4

	// DefaultImageWidth is the initial tile width in percent of the row.
	DefaultImageWidth = 24

	// MinImageWidth and MaxImageWidth bound the tile width slider.
	MinImageWidth = 10
	MaxImageWidth = 100

	// DefaultQueueSize is the inbound event queue depth.
	DefaultQueueSize = 256

	// DefaultTitle is shown by the viewer.
	DefaultTitle = "TARS Capture"

	// FrameDataURLPrefix marks an encoded frame slot. Agents send JPEG.
	FrameDataURLPrefix = "data:image/jpeg;base64,"
)

// Event names spoken by capture agents.
const (
	MsgIdentify = "ip_addr"
	MsgStatus   = "status"
	MsgFrame    = "frame"
)

// Command names sent to capture agents.
const (
	CmdSubscribe    = "frames"
	CmdFrameRequest = "frame"
	CmdStartCapture = "start_capture"
	CmdStopCapture  = "stop_capture"
)

// RecordingScope is the payload of the capture commands.
const RecordingScope = "all"
