package broker

import "fmt"

// onNeedFrame pulls the next frame for one tile from the selected agent.
func (b *Broker) onNeedFrame(e NeedFrameEvent) {
	if b.selection == "" || b.gate.suspended {
		b.metrics.FrameRequest("skipped")
		return
	}
	if e.Index < 0 || e.Index >= MaxCameras {
		b.metrics.FrameRequest("invalid")
		b.log.Warn().Err(fmt.Errorf("tile %d: %w", e.Index, ErrFrameIndex)).Msg("frame request dropped")
		return
	}
	if b.sendTo(b.selection, Command{Name: CmdFrameRequest, Address: b.selection, Index: e.Index}) {
		b.metrics.FrameRequest("sent")
		return
	}
	b.metrics.FrameRequest("failed")
}

// onFrame stores a received frame. Frames are not matched to requests: a late
// frame from a previously selected agent lands in the current slots unless
// the broker runs with RejectStaleFrames.
func (b *Broker) onFrame(e FrameEvent) {
	if b.gate.suspended {
		b.metrics.FrameReceived("dropped_suspended")
		return
	}
	if e.Index < 0 || e.Index >= MaxCameras {
		b.metrics.FrameReceived("dropped_index")
		b.log.Warn().Err(fmt.Errorf("camera %d: %w", e.Index, ErrFrameIndex)).
			Str("conn_id", string(e.ConnID)).Msg("frame dropped")
		return
	}
	if b.strict && !b.fromSelected(e.ConnID) {
		b.metrics.FrameReceived("dropped_stale")
		b.log.Debug().Str("conn_id", string(e.ConnID)).Int("index", e.Index).Msg("stale frame dropped")
		return
	}
	b.slots[e.Index] = EncodeFrame(e.Data)
	b.metrics.FrameReceived("stored")
	b.publish(Update{Kind: UpdateFrame, Index: e.Index, Frame: b.slots[e.Index]})
}

func (b *Broker) fromSelected(id ConnID) bool {
	if b.selection == "" {
		return false
	}
	s, err := b.sessions.get(id)
	return err == nil && s.Address == b.selection
}
