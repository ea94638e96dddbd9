package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/schema"
	"github.com/vango-dev/queryguard/pkg/validate"
)

// Config holds the server configuration.
type Config struct {
	// Address is the listen address (default ":8080").
	Address string

	// URL is the initial location of the shared history (default "/").
	URL string

	// HistoryMode controls how writes without an explicit mode are
	// recorded. Default: navigation.ModePush.
	HistoryMode navigation.HistoryMode

	// Schema validates the shared query. Nil serves untyped data.
	Schema *schema.Schema

	// Mode is the validation strategy for /state.
	Mode validate.Mode

	// CheckOrigin validates WebSocket origins (default SameOriginCheck).
	CheckOrigin func(r *http.Request) bool

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// WriteTimeout bounds each WebSocket write. A client that cannot
	// accept a message in time is disconnected (default 10s).
	WriteTimeout time.Duration

	// SendBufferSize is the number of messages queued per WebSocket
	// client. A client whose queue is full is disconnected (default 16).
	SendBufferSize int

	// MaxBodyBytes caps JSON request bodies (default 64KB).
	MaxBodyBytes int64

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds the time to read request headers.
	ReadHeaderTimeout time.Duration

	// TracerName names the OpenTelemetry tracer (default "queryguard").
	TracerName string

	// MetricsNamespace prefixes the Prometheus metrics (default "queryguard").
	MetricsNamespace string

	// Registry receives the server metrics and backs /metrics.
	// A fresh registry is created when nil.
	Registry *prometheus.Registry

	// Logger is the server logger (default slog.Default()).
	Logger *slog.Logger
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		URL:               "/",
		HistoryMode:       navigation.ModePush,
		Mode:              validate.Pick,
		CheckOrigin:       SameOriginCheck,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		WriteTimeout:      10 * time.Second,
		SendBufferSize:    16,
		MaxBodyBytes:      64 << 10,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		TracerName:        "queryguard",
		MetricsNamespace:  "queryguard",
	}
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}

	out := *c
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.URL == "" {
		out.URL = defaults.URL
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.SendBufferSize == 0 {
		out.SendBufferSize = defaults.SendBufferSize
	}
	if out.MaxBodyBytes == 0 {
		out.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.TracerName == "" {
		out.TracerName = defaults.TracerName
	}
	if out.MetricsNamespace == "" {
		out.MetricsNamespace = defaults.MetricsNamespace
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// SameOriginCheck accepts WebSocket requests without an Origin header or
// whose Origin host matches the request host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}
