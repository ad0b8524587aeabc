package broker

func (b *Broker) onConnect(e ConnectEvent) {
	if _, added := b.sessions.add(e.ConnID, b.now()); !added {
		b.log.Warn().Str("conn_id", string(e.ConnID)).Msg("duplicate connect ignored")
		return
	}
	b.metrics.SetAgents(b.sessions.len())
	b.log.Info().Str("conn_id", string(e.ConnID)).Msg("agent connected")
}

func (b *Broker) onIdentify(e IdentifyEvent) {
	if e.Address == "" {
		b.log.Warn().Str("conn_id", string(e.ConnID)).Msg("empty address ignored")
		return
	}
	s, changed, err := b.sessions.bind(e.ConnID, e.Address)
	if err != nil {
		b.log.Warn().Err(err).Str("conn_id", string(e.ConnID)).Str("address", e.Address).Msg("identify dropped")
		return
	}
	if !changed {
		return
	}
	if _, live := b.status[s.Address]; live {
		// Another connection already reports for this address.
		b.log.Info().Str("conn_id", string(e.ConnID)).Str("address", s.Address).Msg("agent identified on shared address")
		return
	}
	b.status[s.Address] = AgentStatus{}
	b.publishAgents()
	b.log.Info().Str("conn_id", string(e.ConnID)).Str("address", s.Address).Msg("agent identified")
}

func (b *Broker) onDisconnect(e DisconnectEvent) {
	s, err := b.sessions.remove(e.ConnID)
	if err != nil {
		b.log.Warn().Err(err).Str("conn_id", string(e.ConnID)).Msg("disconnect dropped")
		return
	}
	b.metrics.SetAgents(b.sessions.len())
	b.log.Info().Str("conn_id", string(e.ConnID)).Str("address", s.Address).Msg("agent disconnected")
	if !s.Identified() || b.sessions.bound(s.Address) > 0 {
		return
	}
	delete(b.status, s.Address)
	b.publishAgents()
}
