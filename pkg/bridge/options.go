package bridge

import (
	"log/slog"
	"time"

	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/schema"
	"github.com/vango-dev/queryguard/pkg/validate"
)

// Option configures a Bridge.
type Option func(*options)

type options struct {
	schema     *schema.Schema
	preprocess func(key, value string) string
	adapter    navigation.Adapter
	mode       validate.Mode
	logger     *slog.Logger
	observer   Observer
}

func defaultOptions() options {
	return options{
		adapter:  navigation.Default(),
		mode:     validate.Pick,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
}

// WithSchema validates the query against s. Without a schema every value
// is exposed as a string and the error flag is never set.
func WithSchema(s *schema.Schema) Option {
	return func(o *options) {
		o.schema = s
	}
}

// WithPreprocess transforms every decoded value before validation.
func WithPreprocess(fn func(key, value string) string) Option {
	return func(o *options) {
		o.preprocess = fn
	}
}

// WithAdapter sets the navigation adapter. Nil keeps the current one.
// The default is navigation.Default().
func WithAdapter(a navigation.Adapter) Option {
	return func(o *options) {
		if a != nil {
			o.adapter = a
		}
	}
}

// WithMode selects the validation strategy (default validate.Pick).
func WithMode(m validate.Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = slog.Default()
		}
		o.logger = l
	}
}

// WithObserver registers instrumentation hooks, such as the Prometheus
// collector in package metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs == nil {
			obs = nopObserver{}
		}
		o.observer = obs
	}
}

// Observer receives instrumentation events from a Bridge.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Derived is called after every derivation. mode is "pick", "strict"
	// or "untyped".
	Derived(mode string, isError bool, elapsed time.Duration)

	// Wrote is called after UpdateParams wrote to the adapter.
	Wrote()

	// Suppressed is called when UpdateParams skipped a no-op write.
	Suppressed()
}

type nopObserver struct{}

func (nopObserver) Derived(string, bool, time.Duration) {}
func (nopObserver) Wrote()                              {}
func (nopObserver) Suppressed()                         {}
