package listener

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-junction/types"
)

var _ RunListener = (*Multicast)(nil)

// Multicast fans every event out to its listeners in registration order.
// Listeners may be added while a run is in progress; they only see events
// published after they were added.
type Multicast struct {
	mu        sync.RWMutex
	listeners []RunListener
}

// NewMulticast creates a fan-out over the given listeners
func NewMulticast(listeners ...ExecutionListener) *Multicast {
	m := &Multicast{}
	for _, l := range listeners {
		m.Add(l)
	}
	return m
}

// Add registers another listener. nil listeners are ignored.
func (m *Multicast) Add(l ExecutionListener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, AsRunListener(l))
}

// Len returns the number of registered listeners
func (m *Multicast) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners)
}

func (m *Multicast) snapshot() []RunListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunListener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

func (m *Multicast) RunStarted(label string) {
	for _, l := range m.snapshot() {
		l.RunStarted(label)
	}
}

func (m *Multicast) RunFinished() {
	for _, l := range m.snapshot() {
		l.RunFinished()
	}
}

func (m *Multicast) ExecutionStarted(id types.Identifier) {
	for _, l := range m.snapshot() {
		l.ExecutionStarted(id)
	}
}

func (m *Multicast) ExecutionFinished(id types.Identifier, result types.ExecutionResult) {
	for _, l := range m.snapshot() {
		l.ExecutionFinished(id, result)
	}
}

func (m *Multicast) ExecutionSkipped(id types.Identifier, reason string) {
	for _, l := range m.snapshot() {
		l.ExecutionSkipped(id, reason)
	}
}

func (m *Multicast) ReportingEntryPublished(id types.Identifier, entry types.ReportEntry) {
	for _, l := range m.snapshot() {
		l.ReportingEntryPublished(id, entry)
	}
}
