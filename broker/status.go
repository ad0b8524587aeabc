package broker

import (
	"encoding/json"
	"fmt"
)

// Summarize reduces a liveness vector to camera counts.
func Summarize(live []bool) AgentStatus {
	st := AgentStatus{NumCameras: len(live)}
	for _, up := range live {
		if up {
			st.CamerasUp++
		}
	}
	return st
}

// ParseLiveVector decodes a status payload. Anything other than a JSON array
// of booleans (null included) yields ErrMalformedStatus.
func ParseLiveVector(raw json.RawMessage) ([]bool, error) {
	var live []bool
	if err := json.Unmarshal(raw, &live); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStatus, err)
	}
	if live == nil {
		return nil, fmt.Errorf("%w: null payload", ErrMalformedStatus)
	}
	return live, nil
}

func (b *Broker) onStatus(e StatusEvent) {
	s, err := b.sessions.get(e.ConnID)
	if err != nil {
		b.log.Warn().Err(err).Str("conn_id", string(e.ConnID)).Msg("status dropped")
		return
	}
	if !s.Identified() {
		b.log.Warn().Err(ErrAddressUnbound).Str("conn_id", string(e.ConnID)).Msg("status before identify dropped")
		return
	}
	live := e.Live
	if e.Malformed {
		b.log.Warn().Err(ErrMalformedStatus).Str("address", s.Address).Msg("status recorded as zero cameras")
		live = nil
	}
	b.status[s.Address] = Summarize(live)
	b.publishAgents()
}

func (b *Broker) publishAgents() {
	b.publish(Update{Kind: UpdateAgents, Agents: b.copyStatus()})
}

func (b *Broker) copyStatus() map[string]AgentStatus {
	out := make(map[string]AgentStatus, len(b.status))
	for addr, st := range b.status {
		out[addr] = st
	}
	return out
}
