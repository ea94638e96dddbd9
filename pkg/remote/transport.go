package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

type statusCodeError struct {
	code int
}

func (e statusCodeError) Error() string {
	return fmt.Sprintf("server returned %d", e.code)
}

// circuitRoundTripper counts transport errors and 5xx responses as
// failures. Responses are always handed back to the caller.
type circuitRoundTripper struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, statusCodeError{code: resp.StatusCode}
		}
		return resp, nil
	})

	var sce statusCodeError
	if errors.As(err, &sce) {
		return v.(*http.Response), nil
	}
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

func newBreaker(o options, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "queryguard-remote",
		MaxRequests: o.halfOpen,
		Timeout:     o.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.tripAfter
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				logger.Error("circuit has been opened")
			case gobreaker.StateHalfOpen:
				logger.Warn("circuit is now half open", "max_requests", o.halfOpen)
			case gobreaker.StateClosed:
				logger.Info("circuit has been closed")
			}
		},
	})
}

// newHTTPClient layers retries over the circuit breaker over the base
// transport.
func newHTTPClient(o options, logger *slog.Logger) (*http.Client, *gobreaker.CircuitBreaker) {
	cb := newBreaker(o, logger)

	rc := &retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   o.timeout,
			Transport: &circuitRoundTripper{base: o.transport, cb: cb},
		},
		Logger:       logger,
		RetryWaitMin: o.retryWaitMin,
		RetryWaitMax: o.retryWaitMax,
		RetryMax:     o.retryMax,
		CheckRetry:   checkRetry,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return rc.StandardClient(), cb
}

// checkRetry is the default policy minus retries against an open circuit.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, err
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
