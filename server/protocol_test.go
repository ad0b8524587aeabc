package server

import (
	"encoding/json"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capture-broker/broker"
)

func TestDecodeAgentMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType int
		data    string
		want    broker.Event
	}{
		{"identify", websocket.TextMessage, `{"event":"ip_addr","data":"10.0.0.5"}`,
			broker.IdentifyEvent{ConnID: "C1", Address: "10.0.0.5"}},
		{"status", websocket.TextMessage, `{"event":"status","data":[true,false]}`,
			broker.StatusEvent{ConnID: "C1", Live: []bool{true, false}}},
		{"malformed status", websocket.TextMessage, `{"event":"status","data":{"cams":2}}`,
			broker.StatusEvent{ConnID: "C1", Malformed: true}},
		{"json frame", websocket.TextMessage, `{"event":"frame","data":{"index":3,"frame":"AQI="}}`,
			broker.FrameEvent{ConnID: "C1", Index: 3, Data: []byte{1, 2}}},
		{"binary frame", websocket.BinaryMessage, "\x05\xff\xd8",
			broker.FrameEvent{ConnID: "C1", Index: 5, Data: []byte{0xff, 0xd8}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAgentMessage("C1", tt.msgType, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAgentMessageErrors(t *testing.T) {
	bad := []struct {
		msgType int
		data    string
	}{
		{websocket.BinaryMessage, ""},
		{websocket.TextMessage, `not json`},
		{websocket.TextMessage, `{"event":"ip_addr","data":42}`},
		{websocket.TextMessage, `{"event":"frame","data":"x"}`},
		{websocket.TextMessage, `{"event":"bogus"}`},
		{websocket.PingMessage, ``},
	}
	for _, b := range bad {
		_, err := decodeAgentMessage("C1", b.msgType, []byte(b.data))
		assert.Error(t, err, b.data)
	}
}

func TestEncodeCommand(t *testing.T) {
	cases := map[string]broker.Command{
		`{"event":"frames","data":"10.0.0.5"}`:    {Name: broker.CmdSubscribe, Address: "10.0.0.5"},
		`{"event":"frame","data":["10.0.0.5",2]}`: {Name: broker.CmdFrameRequest, Address: "10.0.0.5", Index: 2},
		`{"event":"start_capture","data":"all"}`:  {Name: broker.CmdStartCapture},
		`{"event":"stop_capture","data":"all"}`:   {Name: broker.CmdStopCapture},
	}
	for want, cmd := range cases {
		got, err := encodeCommand(cmd)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(got))
	}
}

func TestDecodeViewerAction(t *testing.T) {
	tests := map[string][]broker.Event{
		`{"action":"select","address":"10.0.0.5"}`: {broker.SelectEvent{Address: "10.0.0.5"}},
		`{"action":"deselect"}`:                    {broker.SelectEvent{}},
		`{"action":"need_frame","index":4}`:        {broker.NeedFrameEvent{Index: 4}},
		`{"action":"need_frame","index":0}`:        {broker.NeedFrameEvent{Index: 0}},
		`{"action":"resize_begin"}`:                {broker.SuspendEvent{Begin: true}},
		`{"action":"resize_end"}`:                  {broker.SuspendEvent{}},
		`{"action":"resize_end","width":40}`:       {broker.ImageWidthEvent{Width: 40}, broker.SuspendEvent{}},
		`{"action":"image_width","width":30}`:      {broker.ImageWidthEvent{Width: 30}},
		`{"action":"record","start":true}`:         {broker.RecordingEvent{Start: true}},
	}
	for data, want := range tests {
		got, err := decodeViewerAction([]byte(data))
		require.NoError(t, err, data)
		assert.Equal(t, want, got, data)
	}

	missing := []string{
		`{"action":"select"}`,
		`{"action":"need_frame"}`,
		`{"action":"image_width"}`,
		`{"action":"dance"}`,
		`[`,
	}
	for _, data := range missing {
		_, err := decodeViewerAction([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestEncodeUpdate(t *testing.T) {
	msg, err := encodeUpdate(broker.Update{Kind: broker.UpdateFrame, Index: 2, Frame: "data:image/jpeg;base64,AQI="})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"frame","index":2,"frame":"data:image/jpeg;base64,AQI="}`, string(msg))

	msg, err = encodeUpdate(broker.Update{Kind: broker.UpdateAgents, Agents: map[string]broker.AgentStatus{
		"10.0.0.5": {NumCameras: 3, CamerasUp: 2},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"agents","agents":{"10.0.0.5":{"num_cams":3,"cams_up":2}}}`, string(msg))

	msg, err = encodeUpdate(broker.Update{Kind: broker.UpdateFramesCleared})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"frames_cleared"}`, string(msg))
}

func TestEncodeState(t *testing.T) {
	msg, err := encodeState(broker.State{Title: "TARS Capture", SelectedAgent: "10.0.0.5", NumCams: 8})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.Equal(t, "state", decoded["type"])
	assert.Equal(t, "TARS Capture", decoded["title"])
	assert.Equal(t, "10.0.0.5", decoded["selected_agent"])
	assert.Len(t, decoded["frame_slots"], broker.MaxCameras)
}

func TestSIOConnIDNil(t *testing.T) {
	_, ok := sioConnID(nil)
	assert.False(t, ok)
}
