package broker

// onRecording sets the recording flag and fans the capture command out to
// every live connection. The flag records intent; agents do not acknowledge.
func (b *Broker) onRecording(e RecordingEvent) {
	b.recording = e.Start
	b.publish(Update{Kind: UpdateRecording, Recording: e.Start})

	cmd := Command{Name: CmdStopCapture}
	if e.Start {
		cmd.Name = CmdStartCapture
	}
	sent := 0
	for _, id := range b.sessions.ids() {
		if b.send(id, cmd) {
			sent++
		}
	}
	b.log.Info().Str("command", cmd.Name).Int("agents", sent).Msg("recording command broadcast")
}
