package navigation

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Adapter is the host capability the bridge depends on.
type Adapter interface {
	// GetSearch returns the current query string, with or without a
	// leading "?". It may be empty.
	GetSearch() string

	// SetSearch applies a new query string. After it returns, GetSearch
	// reflects next and every subscriber has been notified.
	SetSearch(next string)

	// Subscribe registers fn to be called whenever the search changes.
	// The returned function removes the registration and is safe to call
	// more than once.
	Subscribe(fn func()) (unsubscribe func())
}

// WithPrefix returns search with exactly one leading "?", or "" when search
// carries no parameters.
func WithPrefix(search string) string {
	search = strings.TrimPrefix(search, "?")
	if search == "" {
		return ""
	}
	return "?" + search
}

var listenerIDs uint64

type listener struct {
	id uint64
	fn func()
}

// Listeners is a subscriber registry with copy-before-notify semantics.
// The zero value is ready to use.
type Listeners struct {
	mu   sync.RWMutex
	subs []listener
}

// Add registers fn and returns an idempotent removal function.
func (l *Listeners) Add(fn func()) func() {
	if fn == nil {
		return func() {}
	}

	id := atomic.AddUint64(&listenerIDs, 1)

	l.mu.Lock()
	l.subs = append(l.subs, listener{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *Listeners) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, existing := range l.subs {
		if existing.id == id {
			// Keep registration order for deterministic notification.
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

// Notify calls every registered function. The lock is not held while
// callbacks run, so callbacks may subscribe or unsubscribe.
func (l *Listeners) Notify() {
	l.mu.RLock()
	subs := make([]listener, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()

	for _, sub := range subs {
		sub.fn()
	}
}

// Len returns the number of registered functions.
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}
