package broker

// gate suspends frame traffic while the viewer is in a transient layout.
type gate struct {
	suspended bool
}

func (b *Broker) onSuspend(e SuspendEvent) {
	if e.Begin {
		if b.gate.suspended {
			return
		}
		b.gate.suspended = true
		b.publish(Update{Kind: UpdateSuspended, Suspended: true})
		b.log.Debug().Msg("frame relay suspended")
		return
	}
	if b.gate.suspended {
		b.gate.suspended = false
		b.publish(Update{Kind: UpdateSuspended})
		b.log.Debug().Msg("frame relay resumed")
	}
	// Frames dropped while suspended are never re-requested by their tiles,
	// so ask the agent for a fresh set.
	b.subscribe()
}

func (b *Broker) onImageWidth(e ImageWidthEvent) {
	w := clampWidth(e.Width)
	if w == b.imageWidth {
		return
	}
	b.imageWidth = w
	b.publish(Update{Kind: UpdateImageWidth, ImageWidth: w})
}
