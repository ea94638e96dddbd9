package navigation

import (
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
)

// HistoryMode determines how History.SetSearch records a write.
type HistoryMode int

const (
	// ModePush adds a new history entry (default behavior).
	ModePush HistoryMode = iota

	// ModeReplace replaces the current history entry.
	ModeReplace
)

// String returns "push" or "replace".
func (m HistoryMode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "push"
}

// ParseHistoryMode parses "push", "replace" or "" (push).
func ParseHistoryMode(s string) (HistoryMode, error) {
	switch s {
	case "", "push":
		return ModePush, nil
	case "replace":
		return ModeReplace, nil
	default:
		return ModePush, fmt.Errorf("navigation: unknown history mode %q", s)
	}
}

// Entry is one location in a History.
type Entry struct {
	Path   string
	Search string
	Hash   string
}

// String composes the entry as path + search + hash.
func (e Entry) String() string {
	return e.Path + e.Search + e.Hash
}

// History is an Adapter modelling a host location with a history stack.
//
// SetSearch keeps the current path and hash, swaps the search, and either
// pushes a new entry or replaces the current one. Writes and traversals
// notify subscribers the way a popstate would, including for writes made
// through the adapter itself.
//
// All methods are safe on a nil *History: reads return "" and writes and
// subscriptions do nothing.
type History struct {
	mu        sync.RWMutex
	entries   []Entry
	index     int
	mode      HistoryMode
	listeners Listeners
}

// NewHistory creates a History whose first entry is rawURL. Only the path,
// query and fragment are kept.
func NewHistory(rawURL string) (*History, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("navigation: parse %q: %w", rawURL, err)
	}

	e := Entry{
		Path:   u.EscapedPath(),
		Search: WithPrefix(u.RawQuery),
	}
	if e.Path == "" {
		e.Path = "/"
	}
	if u.Fragment != "" {
		e.Hash = "#" + u.EscapedFragment()
	}

	return &History{entries: []Entry{e}}, nil
}

// WithMode sets how SetSearch records writes and returns h.
func (h *History) WithMode(mode HistoryMode) *History {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	h.mode = mode
	h.mu.Unlock()
	return h
}

// GetSearch returns the search of the current entry.
func (h *History) GetSearch() string {
	if h == nil {
		return ""
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[h.index].Search
}

// SetSearch records next using the configured mode.
func (h *History) SetSearch(next string) {
	if h == nil {
		return
	}
	h.mu.RLock()
	mode := h.mode
	h.mu.RUnlock()

	h.Navigate(next, mode)
}

// Navigate records next with an explicit mode and notifies subscribers.
func (h *History) Navigate(next string, mode HistoryMode) {
	if h == nil {
		return
	}

	h.mu.Lock()
	cur := h.entries[h.index]
	e := Entry{Path: cur.Path, Search: WithPrefix(next), Hash: cur.Hash}
	if mode == ModeReplace {
		h.entries[h.index] = e
	} else {
		// Pushing drops any forward entries.
		h.entries = append(h.entries[:h.index+1], e)
		h.index++
	}
	h.mu.Unlock()

	h.listeners.Notify()
}

// Subscribe registers fn for change notifications.
func (h *History) Subscribe(fn func()) func() {
	if h == nil {
		return func() {}
	}
	return h.listeners.Add(fn)
}

// Back moves one entry back. It reports false when already at the start.
func (h *History) Back() bool {
	return h.Go(-1)
}

// Forward moves one entry forward. It reports false when already at the end.
func (h *History) Forward() bool {
	return h.Go(1)
}

// Go moves delta entries through the stack and notifies subscribers.
// Out-of-range moves are ignored and report false.
func (h *History) Go(delta int) bool {
	if h == nil || delta == 0 {
		return false
	}

	h.mu.Lock()
	target := h.index + delta
	if target < 0 || target >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = target
	h.mu.Unlock()

	h.listeners.Notify()
	return true
}

// Current returns the current entry.
func (h *History) Current() Entry {
	if h == nil {
		return Entry{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[h.index]
}

// URL returns the current entry as a relative URL.
func (h *History) URL() string {
	return h.Current().String()
}

// Len returns the number of entries in the stack.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Subscribers returns the number of active subscriptions.
func (h *History) Subscribers() int {
	if h == nil {
		return 0
	}
	return h.listeners.Len()
}

var defaultHost atomic.Pointer[History]

// SetDefault installs h as the process-wide host adapter and returns the
// previously installed one. Passing nil uninstalls it.
func SetDefault(h *History) *History {
	return defaultHost.Swap(h)
}

// Default returns the process-wide host adapter. Without an installed
// host it returns an inert adapter.
func Default() Adapter {
	return defaultHost.Load()
}
