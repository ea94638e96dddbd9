// Package bridge keeps a validated data object in sync with the query
// string exposed by a navigation.Adapter.
//
// A Bridge derives its state lazily: nothing is read from the adapter until
// the first read or the first change notification. Derivations are cached
// on the normalized search string, so repeated reads are cheap. Writes made
// through UpdateParams are canonical (keys sorted) and skipped entirely when
// they would not change the query.
//
// Several bridges may share one adapter. Each derives independently and
// sees the others' writes through the adapter's notifications.
package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/querycodec"
	"github.com/vango-dev/queryguard/pkg/validate"
)

// Snapshot is the derived state of a Bridge at one point in time.
type Snapshot struct {
	// Search is the normalized query string the state was derived from.
	Search string `json:"search"`

	// Data is the validated data object.
	Data validate.Data `json:"data"`

	// Ready is true once the bridge has completed a derivation.
	Ready bool `json:"isReady"`

	// Err is true when the active validation mode reported a failure.
	Err bool `json:"isError"`

	// Issues describes the failures behind Err.
	Issues []validate.Issue `json:"issues,omitempty"`
}

// Bridge binds a schema to a navigation adapter.
type Bridge struct {
	mu   sync.Mutex
	opts options
	gen  uint64

	cache    Snapshot
	cacheGen uint64
	cached   bool

	// Baseline for subscriber notifications.
	notified       bool
	notifiedGen    uint64
	notifiedSearch string

	ready       atomic.Bool
	closed      bool
	unsubscribe func()
	listeners   navigation.Listeners
}

// New creates a Bridge and subscribes it to its adapter.
func New(opts ...Option) *Bridge {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Bridge{opts: o}
	b.unsubscribe = b.subscribe(o)
	return b
}

// Snapshot returns the current derived state, deriving it first if the
// query changed since the last derivation.
func (b *Bridge) Snapshot() Snapshot {
	snap := b.read()
	snap.Data = snap.Data.Clone()
	return snap
}

// Data returns the current validated data object.
func (b *Bridge) Data() validate.Data {
	return b.read().Data.Clone()
}

// IsError reports whether the current query failed validation.
func (b *Bridge) IsError() bool {
	return b.read().Err
}

// IsReady reports whether a derivation has completed. It never triggers
// one; once true it stays true.
func (b *Bridge) IsReady() bool {
	return b.ready.Load()
}

// UpdateParams merges u into the current query and writes the canonical
// result to the adapter. Nothing is written when the merged query equals
// the canonical form of the current one. It is a no-op after Close.
func (b *Bridge) UpdateParams(u querycodec.Update) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	o := b.opts
	b.mu.Unlock()

	current := querycodec.Decode(b.readSearch(o))
	before := querycodec.Encode(current)
	after := querycodec.Encode(current.Apply(u))

	if before == after {
		o.observer.Suppressed()
		o.logger.Debug("query update suppressed", "search", before)
		return
	}

	if b.writeSearch(o, after) {
		o.observer.Wrote()
	}
}

// Configure applies opts on top of the current configuration. The cached
// state is discarded, a changed adapter is re-subscribed, and subscribers
// receive the re-derived snapshot.
func (b *Bridge) Configure(opts ...Option) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	prev := b.opts.adapter
	o := b.opts
	for _, opt := range opts {
		opt(&o)
	}
	b.opts = o
	b.gen++
	b.cached = false

	var stale func()
	resubscribe := !sameAdapter(prev, o.adapter)
	if resubscribe {
		stale = b.unsubscribe
		b.unsubscribe = nil
	}
	b.mu.Unlock()

	if resubscribe {
		b.release(o, stale)
		unsub := b.subscribe(o)

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			b.release(o, unsub)
			return
		}
		b.unsubscribe = unsub
		b.mu.Unlock()
	}

	b.onChange()
}

// Subscribe registers fn to receive the snapshot after every derivation
// that observed a new query or a new configuration.
func (b *Bridge) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	return b.listeners.Add(func() {
		fn(b.Snapshot())
	})
}

// Close releases the adapter subscription. It is safe to call more than
// once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	o := b.opts
	unsub := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	b.release(o, unsub)
	return nil
}

// read derives if needed and seeds the notification baseline.
func (b *Bridge) read() Snapshot {
	snap, gen := b.refresh()

	b.mu.Lock()
	if !b.notified {
		b.notified = true
		b.notifiedGen = gen
		b.notifiedSearch = snap.Search
	}
	b.mu.Unlock()

	return snap
}

// onChange handles adapter notifications and configuration changes.
func (b *Bridge) onChange() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}

	snap, gen := b.refresh()

	b.mu.Lock()
	changed := !b.notified || b.notifiedGen != gen || b.notifiedSearch != snap.Search
	if changed {
		b.notified = true
		b.notifiedGen = gen
		b.notifiedSearch = snap.Search
	}
	b.mu.Unlock()

	if changed {
		b.listeners.Notify()
	}
}

// refresh returns the cached snapshot when it matches the adapter's
// current search, otherwise derives a new one outside the lock.
func (b *Bridge) refresh() (Snapshot, uint64) {
	b.mu.Lock()
	o, gen := b.opts, b.gen
	b.mu.Unlock()

	search := b.readSearch(o)

	b.mu.Lock()
	if b.cached && b.cacheGen == gen && b.cache.Search == search {
		snap := b.cache
		b.mu.Unlock()
		return snap, gen
	}
	b.mu.Unlock()

	snap := b.derive(o, search)
	b.ready.Store(true)

	b.mu.Lock()
	if b.gen == gen {
		b.cache = snap
		b.cacheGen = gen
		b.cached = true
	}
	b.mu.Unlock()

	return snap, gen
}

func (b *Bridge) derive(o options, search string) Snapshot {
	start := time.Now()

	raw := querycodec.Decode(search)
	if o.preprocess != nil {
		raw = preprocess(o, raw)
	}

	res := validate.Run(o.schema, raw, o.mode)

	label := o.mode.String()
	if o.schema == nil {
		label = "untyped"
	}
	o.observer.Derived(label, res.Err, time.Since(start))

	if res.Err {
		o.logger.Debug("query validation failed",
			"search", search,
			"mode", label,
			"issues", len(res.Issues),
		)
	}

	return Snapshot{
		Search: search,
		Data:   res.Data,
		Ready:  true,
		Err:    res.Err,
		Issues: res.Issues,
	}
}

// preprocess runs the user hook on every value. A panicking hook leaves
// that value unchanged.
func preprocess(o options, raw querycodec.Mapping) querycodec.Mapping {
	out := make(querycodec.Mapping, len(raw))
	for k, v := range raw {
		out[k] = preprocessValue(o, k, v)
	}
	return out
}

func preprocessValue(o options, key, value string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("preprocess panicked", "key", key, "panic", fmt.Sprint(r))
			out = value
		}
	}()
	return o.preprocess(key, value)
}

// readSearch reads and normalizes the adapter's search. A panicking
// adapter reads as empty.
func (b *Bridge) readSearch(o options) (search string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("adapter read failed", "panic", fmt.Sprint(r))
			search = ""
		}
	}()
	return querycodec.Normalize(o.adapter.GetSearch())
}

func (b *Bridge) writeSearch(o options, next string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("adapter write failed", "search", next, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	o.adapter.SetSearch(next)
	return true
}

func (b *Bridge) subscribe(o options) (unsub func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("adapter subscribe failed", "panic", fmt.Sprint(r))
			unsub = nil
		}
	}()
	return o.adapter.Subscribe(b.onChange)
}

func (b *Bridge) release(o options, unsub func()) {
	if unsub == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("adapter unsubscribe failed", "panic", fmt.Sprint(r))
		}
	}()
	unsub()
}

// sameAdapter compares adapters without panicking on uncomparable
// dynamic types.
func sameAdapter(a, b navigation.Adapter) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
