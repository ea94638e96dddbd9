// Package metrics exports bridge activity as Prometheus metrics.
//
// A Collector implements bridge.Observer:
//
//	reg := prometheus.NewRegistry()
//	c := metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace("shop"))
//	b := bridge.New(bridge.WithObserver(c), bridge.WithSchema(s))
//
// Metrics collected:
//   - queryguard_derivations_total: derivations by mode and result
//   - queryguard_derivation_duration_seconds: derivation latency by mode
//   - queryguard_writes_total: UpdateParams calls that wrote to the adapter
//   - queryguard_writes_suppressed_total: UpdateParams calls skipped as no-ops
//   - queryguard_stream_clients: connected change-stream clients
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "queryguard").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for derivation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "queryguard",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records bridge events. It is safe for concurrent use.
type Collector struct {
	derivations   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	writes        prometheus.Counter
	suppressed    prometheus.Counter
	streamClients prometheus.Gauge
}

// New creates a Collector and registers its metrics. Registering twice
// with the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		derivations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "derivations_total",
			Help:        "Total number of query derivations",
			ConstLabels: config.ConstLabels,
		}, []string{"mode", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "derivation_duration_seconds",
			Help:        "Query derivation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mode"}),

		writes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of query updates written to the adapter",
			ConstLabels: config.ConstLabels,
		}),

		suppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_suppressed_total",
			Help:        "Total number of query updates skipped because nothing changed",
			ConstLabels: config.ConstLabels,
		}),

		streamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stream_clients",
			Help:        "Number of connected change-stream clients",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Derived records one derivation.
func (c *Collector) Derived(mode string, isError bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if isError {
		result = "error"
	}
	c.derivations.WithLabelValues(mode, result).Inc()
	c.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// Wrote records a write to the adapter.
func (c *Collector) Wrote() {
	if c == nil {
		return
	}
	c.writes.Inc()
}

// Suppressed records a skipped no-op write.
func (c *Collector) Suppressed() {
	if c == nil {
		return
	}
	c.suppressed.Inc()
}

// ClientConnected increments the stream client gauge.
func (c *Collector) ClientConnected() {
	if c == nil {
		return
	}
	c.streamClients.Inc()
}

// ClientDisconnected decrements the stream client gauge.
func (c *Collector) ClientDisconnected() {
	if c == nil {
		return
	}
	c.streamClients.Dec()
}
