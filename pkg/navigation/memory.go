package navigation

import "sync"

// Memory is an Adapter backed by a string in memory.
// It never touches process-wide state.
type Memory struct {
	mu        sync.RWMutex
	search    string
	writes    int
	listeners Listeners
}

// NewMemory creates a Memory adapter holding initial.
func NewMemory(initial string) *Memory {
	return &Memory{search: WithPrefix(initial)}
}

// GetSearch returns the stored search, prefixed with "?" when non-empty.
func (m *Memory) GetSearch() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.search
}

// SetSearch stores next and notifies every subscriber.
func (m *Memory) SetSearch(next string) {
	m.mu.Lock()
	m.search = WithPrefix(next)
	m.writes++
	m.mu.Unlock()

	m.listeners.Notify()
}

// Subscribe registers fn for change notifications.
func (m *Memory) Subscribe(fn func()) func() {
	return m.listeners.Add(fn)
}

// Load replaces the stored search without notifying, simulating an
// external change whose notification has not fired yet.
func (m *Memory) Load(search string) {
	m.mu.Lock()
	m.search = WithPrefix(search)
	m.mu.Unlock()
}

// Notify fires every subscriber without changing the search.
func (m *Memory) Notify() {
	m.listeners.Notify()
}

// Writes returns how many times SetSearch has been called.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Subscribers returns the number of active subscriptions.
func (m *Memory) Subscribers() int {
	return m.listeners.Len()
}
