package broker

// onSelect drives the Idle/Watching state machine. Switching between two
// agents passes through Idle so nothing from the old agent stays in the slots.
func (b *Broker) onSelect(e SelectEvent) {
	if e.Address == b.selection {
		return
	}
	if b.selection != "" {
		b.unwatch()
	}
	if e.Address == "" {
		return
	}
	b.selection = e.Address
	b.publish(Update{Kind: UpdateSelection, Selected: b.selection})
	b.log.Info().Str("address", b.selection).Msg("watching agent")
	b.subscribe()
}

func (b *Broker) unwatch() {
	b.log.Info().Str("address", b.selection).Msg("stopped watching agent")
	b.selection = ""
	b.clearSlots()
	b.publish(Update{Kind: UpdateSelection})
}

// subscribe asks the selected agent to start streaming to the viewer.
func (b *Broker) subscribe() {
	if b.selection == "" {
		return
	}
	b.sendTo(b.selection, Command{Name: CmdSubscribe, Address: b.selection})
}

func (b *Broker) clearSlots() {
	b.slots = [MaxCameras]string{}
	b.publish(Update{Kind: UpdateFramesCleared})
}
