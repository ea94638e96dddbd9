// Package navigation abstracts the host's URL query string.
//
// An Adapter reads the current search string, writes a new one, and lets
// callers subscribe to external changes. The bridge package only talks to
// this interface, so the same code runs against a real host location, an
// in-memory stub in tests, or a remote server (see package remote).
//
// Adapters in this package:
//   - Memory: in-memory, no global state. Intended for tests.
//   - History: a location plus a history stack with push/replace writes and
//     back/forward traversal. A nil *History is a valid, inert adapter.
//
// Default returns the process-wide host adapter installed with SetDefault.
// When none is installed it returns an inert adapter: reads are empty and
// writes are ignored.
package navigation
