package broker

import (
	"fmt"
	"sort"
	"time"
)

// registry tracks live agent sessions. It is owned by the broker loop and has
// no locking of its own.
type registry struct {
	sessions map[ConnID]*AgentSession
	seq      uint64
}

func newRegistry() *registry {
	return &registry{sessions: make(map[ConnID]*AgentSession)}
}

// add registers a session with no address. It reports false if id is already
// live.
func (r *registry) add(id ConnID, now time.Time) (*AgentSession, bool) {
	if s, exists := r.sessions[id]; exists {
		return s, false
	}
	r.seq++
	s := &AgentSession{ConnID: id, ConnectedAt: now, seq: r.seq}
	r.sessions[id] = s
	return s, true
}

func (r *registry) get(id ConnID) (*AgentSession, error) {
	s, exists := r.sessions[id]
	if !exists {
		return nil, fmt.Errorf("connection %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// bind sets the session's address. An address, once bound, is kept: a
// different one is rejected and reported as not changed.
func (r *registry) bind(id ConnID, address string) (*AgentSession, bool, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, false, err
	}
	if s.Address != "" {
		if s.Address != address {
			return s, false, fmt.Errorf("connection %s already bound to %s", id, s.Address)
		}
		return s, false, nil
	}
	s.Address = address
	return s, true, nil
}

func (r *registry) remove(id ConnID) (*AgentSession, error) {
	s, err := r.get(id)
	if err != nil {
		return nil, err
	}
	delete(r.sessions, id)
	return s, nil
}

// bound counts live sessions bound to address.
func (r *registry) bound(address string) int {
	n := 0
	for _, s := range r.sessions {
		if s.Address == address {
			n++
		}
	}
	return n
}

// connFor returns the newest live connection bound to address.
func (r *registry) connFor(address string) (ConnID, bool) {
	var best *AgentSession
	for _, s := range r.sessions {
		if s.Address != address {
			continue
		}
		if best == nil || s.seq > best.seq {
			best = s
		}
	}
	if best == nil {
		return "", false
	}
	return best.ConnID, true
}

// ids lists live connections in connect order.
func (r *registry) ids() []ConnID {
	list := make([]*AgentSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	out := make([]ConnID, len(list))
	for i, s := range list {
		out[i] = s.ConnID
	}
	return out
}

func (r *registry) len() int { return len(r.sessions) }
