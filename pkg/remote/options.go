package remote

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/queryguard/pkg/navigation"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	transport      http.RoundTripper
	timeout        time.Duration
	mode           string
	reconnectDelay time.Duration

	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	tripAfter   uint32
	openTimeout time.Duration
	halfOpen    uint32
}

func defaultOptions() options {
	return options{
		logger:         slog.Default(),
		transport:      http.DefaultTransport,
		timeout:        10 * time.Second,
		reconnectDelay: time.Second,
		retryMax:       3,
		retryWaitMin:   100 * time.Millisecond,
		retryWaitMax:   2 * time.Second,
		tripAfter:      5,
		openTimeout:    30 * time.Second,
		halfOpen:       1,
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

// WithTransport sets the base round tripper (default http.DefaultTransport).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// WithTimeout bounds every HTTP request, retries included per attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHistoryMode makes SetSearch push or replace. Without it the
// server's configured mode applies.
func WithHistoryMode(mode navigation.HistoryMode) Option {
	return func(o *options) {
		o.mode = mode.String()
	}
}

// WithReconnectDelay sets the wait between change-stream reconnects.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) {
		o.reconnectDelay = d
	}
}

// WithRetries configures retrying of failed requests.
func WithRetries(max int, waitMin, waitMax time.Duration) Option {
	return func(o *options) {
		o.retryMax = max
		o.retryWaitMin = waitMin
		o.retryWaitMax = waitMax
	}
}

// WithBreaker opens the circuit after tripAfter consecutive failures and
// keeps it open for openTimeout before letting a probe through.
func WithBreaker(tripAfter uint32, openTimeout time.Duration) Option {
	return func(o *options) {
		o.tripAfter = tripAfter
		o.openTimeout = openTimeout
	}
}
