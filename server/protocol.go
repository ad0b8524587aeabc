package server

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"capture-broker/broker"
)

// decodeAgentMessage turns one websocket message from agent id into a broker
// event. Binary messages are frames: the first byte is the camera index, the
// rest is the image.
func decodeAgentMessage(id broker.ConnID, msgType int, data []byte) (broker.Event, error) {
	switch msgType {
	case websocket.BinaryMessage:
		if len(data) < 1 {
			return nil, fmt.Errorf("empty binary frame")
		}
		return broker.FrameEvent{ConnID: id, Index: int(data[0]), Data: data[1:]}, nil
	case websocket.TextMessage:
		return decodeAgentText(id, data)
	}
	return nil, fmt.Errorf("unsupported message type %d", msgType)
}

func decodeAgentText(id broker.ConnID, data []byte) (broker.Event, error) {
	var msg agentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode agent message: %w", err)
	}
	switch msg.Event {
	case broker.MsgIdentify:
		var address string
		if err := json.Unmarshal(msg.Data, &address); err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.Event, err)
		}
		return broker.IdentifyEvent{ConnID: id, Address: address}, nil
	case broker.MsgStatus:
		live, err := broker.ParseLiveVector(msg.Data)
		return broker.StatusEvent{ConnID: id, Live: live, Malformed: err != nil}, nil
	case broker.MsgFrame:
		var p framePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.Event, err)
		}
		return broker.FrameEvent{ConnID: id, Index: p.Index, Data: p.Frame}, nil
	}
	return nil, fmt.Errorf("unknown agent event %q", msg.Event)
}

func encodeCommand(cmd broker.Command) ([]byte, error) {
	return json.Marshal(commandMessage{Event: cmd.Name, Data: cmd.Payload()})
}

// decodeViewerAction maps one viewer input to the broker events it implies.
func decodeViewerAction(data []byte) ([]broker.Event, error) {
	var a viewerAction
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode viewer action: %w", err)
	}
	switch a.Action {
	case "select":
		if a.Address == "" {
			return nil, fmt.Errorf("select without address")
		}
		return []broker.Event{broker.SelectEvent{Address: a.Address}}, nil
	case "deselect":
		return []broker.Event{broker.SelectEvent{}}, nil
	case "need_frame":
		if a.Index == nil {
			return nil, fmt.Errorf("need_frame without index")
		}
		return []broker.Event{broker.NeedFrameEvent{Index: *a.Index}}, nil
	case "resize_begin":
		return []broker.Event{broker.SuspendEvent{Begin: true}}, nil
	case "resize_end":
		if a.Width != nil {
			return []broker.Event{broker.ImageWidthEvent{Width: *a.Width}, broker.SuspendEvent{}}, nil
		}
		return []broker.Event{broker.SuspendEvent{}}, nil
	case "image_width":
		if a.Width == nil {
			return nil, fmt.Errorf("image_width without width")
		}
		return []broker.Event{broker.ImageWidthEvent{Width: *a.Width}}, nil
	case "record":
		return []broker.Event{broker.RecordingEvent{Start: a.Start}}, nil
	}
	return nil, fmt.Errorf("unknown viewer action %q", a.Action)
}

func encodeUpdate(u broker.Update) ([]byte, error) {
	msg := gin.H{"type": u.Kind}
	switch u.Kind {
	case broker.UpdateAgents:
		msg["agents"] = u.Agents
	case broker.UpdateSelection:
		msg["selected"] = u.Selected
	case broker.UpdateFrame:
		msg["index"] = u.Index
		msg["frame"] = u.Frame
	case broker.UpdateRecording:
		msg["recording"] = u.Recording
	case broker.UpdateImageWidth:
		msg["image_width"] = u.ImageWidth
	case broker.UpdateSuspended:
		msg["suspended"] = u.Suspended
	}
	return json.Marshal(msg)
}

func encodeState(st broker.State) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		broker.State
	}{Type: "state", State: st})
}
