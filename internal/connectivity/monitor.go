// Package connectivity observes reachability of the remote journal store
// and notifies subscribers on transitions.
package connectivity

import "sync"

// Monitor tracks whether the remote endpoint is believed reachable.
//
// Reachability is a hint derived from the platform's network-presence
// signal, not a guarantee: callers still have to handle per-request
// failures. Subscribers are notified only on edges (reachable to
// unreachable or back), never on steady state, so a repeated signal cannot
// trigger redundant sync attempts.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

// Subscription identifies a registered connectivity callback.
type Subscription struct {
	id int
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(initialOnline bool) *Monitor {
	return &Monitor{
		online: initialOnline,
		subs:   make(map[int]func(online bool)),
	}
}

// IsReachable reports the current best-effort reachability state.
func (m *Monitor) IsReachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records the platform's network-presence signal. Subscribers are
// invoked only when the state actually changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	// Snapshot under lock, invoke outside it so a callback can safely
	// subscribe, unsubscribe or read the monitor.
	callbacks := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(online)
	}
}

// Subscribe registers a callback fired on every reachability edge.
func (m *Monitor) Subscribe(fn func(online bool)) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.subs[m.nextID] = fn
	return &Subscription{id: m.nextID}
}

// Unsubscribe removes a previously registered callback.
func (m *Monitor) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, sub.id)
}
