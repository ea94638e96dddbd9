// Package remote provides a navigation.Adapter backed by a queryguard
// server (see package server).
//
// Reads are served from a local copy of the search that a WebSocket change
// stream keeps current. Writes go over HTTP through a retrying client
// guarded by a circuit breaker. Once connected, network failures never
// surface through the Adapter methods: reads return the last known value,
// failed writes are logged and dropped, and the stream reconnects in the
// background.
//
//	c, err := remote.Dial(ctx, "http://localhost:8080")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	b := bridge.New(bridge.WithAdapter(c), bridge.WithSchema(s))
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/querycodec"
	"github.com/vango-dev/queryguard/pkg/server"
)

// Client is a navigation.Adapter talking to a queryguard server.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	dialer  *websocket.Dialer
	opts    options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	search string
	conn   *websocket.Conn

	// pending counts in-flight writes per normalized search. The stream
	// echo of a pending write is applied without notifying; SetSearch
	// notifies itself before returning.
	pending map[string]int

	listeners navigation.Listeners
}

type searchRequest struct {
	Search string `json:"search"`
	Mode   string `json:"mode,omitempty"`
}

var _ navigation.Adapter = (*Client)(nil)

// Dial fetches the current search from the server at baseURL and opens
// the change stream. Errors are returned only from Dial itself.
func Dial(ctx context.Context, baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", base.Scheme)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.With("component", "remote", "server", base.Host)
	httpClient, breaker := newHTTPClient(o, logger)

	c := &Client{
		base:    base,
		http:    httpClient,
		breaker: breaker,
		dialer:  &websocket.Dialer{HandshakeTimeout: o.timeout},
		opts:    o,
		logger:  logger,
		done:    make(chan struct{}),
		pending: make(map[string]int),
	}

	search, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.search = search

	conn, err := c.dialStream(ctx)
	if err != nil {
		return nil, err
	}

	// The server sends the current search first; wait for it so that no
	// later write can be overtaken by a stale greeting.
	conn.SetReadDeadline(time.Now().Add(o.timeout))
	var hello server.Message
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("remote: read stream greeting: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if hello.Type == server.MessageSearch {
		c.search = querycodec.Normalize(hello.Search)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.conn = conn
	go c.stream(conn)

	return c, nil
}

// GetSearch returns the last known search, prefixed with "?".
func (c *Client) GetSearch() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return navigation.WithPrefix(c.search)
}

// SetSearch asks the server to navigate to next. On success the local
// copy is updated and subscribers have been notified by the time it
// returns; on failure the error is logged and nothing changes.
func (c *Client) SetSearch(next string) {
	next = querycodec.Normalize(next)

	body, err := json.Marshal(searchRequest{Search: next, Mode: c.opts.mode})
	if err != nil {
		c.logger.Warn("set search failed", "search", next, "error", err)
		return
	}

	c.mu.Lock()
	prev := c.search
	c.pending[next]++
	c.mu.Unlock()

	var resp struct {
		Search string `json:"search"`
	}
	err = c.call(c.ctx, http.MethodPut, "/search", body, &resp)

	c.mu.Lock()
	if c.pending[next]--; c.pending[next] <= 0 {
		delete(c.pending, next)
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("set search failed", "search", next, "error", err)
		return
	}
	search := querycodec.Normalize(resp.Search)
	changed := search != prev || search != c.search
	c.search = search
	c.mu.Unlock()

	if changed {
		c.listeners.Notify()
	}
}

// Subscribe registers fn for change notifications.
func (c *Client) Subscribe(fn func()) func() {
	return c.listeners.Add(fn)
}

// Back moves the server's history one entry back.
func (c *Client) Back(ctx context.Context) (bool, error) {
	return c.traverse(ctx, "/history/back")
}

// Forward moves the server's history one entry forward.
func (c *Client) Forward(ctx context.Context) (bool, error) {
	return c.traverse(ctx, "/history/forward")
}

// Refresh re-reads the search from the server.
func (c *Client) Refresh(ctx context.Context) error {
	search, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	c.update(search)
	return nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Close stops the change stream. It is safe to call more than once.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	<-c.done
	return nil
}

func (c *Client) traverse(ctx context.Context, path string) (bool, error) {
	var resp struct {
		Search string `json:"search"`
		Moved  bool   `json:"moved"`
	}
	if err := c.call(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return false, err
	}
	c.update(resp.Search)
	return resp.Moved, nil
}

func (c *Client) fetch(ctx context.Context) (string, error) {
	var resp struct {
		Search string `json:"search"`
	}
	if err := c.call(ctx, http.MethodGet, "/search", nil, &resp); err != nil {
		return "", err
	}
	return querycodec.Normalize(resp.Search), nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, r)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: %s %s: decode: %w", method, path, err)
	}
	return nil
}

// update stores search and notifies subscribers when it changed.
func (c *Client) update(search string) {
	search = querycodec.Normalize(search)

	c.mu.Lock()
	changed := c.search != search
	c.search = search
	c.mu.Unlock()

	if changed {
		c.listeners.Notify()
	}
}

// receive applies a search pushed by the server. The echo of a write that
// is still in flight is stored silently; its SetSearch call notifies.
func (c *Client) receive(search string) {
	search = querycodec.Normalize(search)

	c.mu.Lock()
	if c.pending[search] > 0 {
		c.search = search
		c.mu.Unlock()
		return
	}
	changed := c.search != search
	c.search = search
	c.mu.Unlock()

	if changed {
		c.listeners.Notify()
	}
}

// =============================================================================
// Change stream
// =============================================================================

func (c *Client) streamURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

func (c *Client) dialStream(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("remote: dial stream: %w", err)
	}
	return conn, nil
}

func (c *Client) stream(conn *websocket.Conn) {
	defer close(c.done)

	for {
		err := c.read(conn)
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn("change stream lost", "error", err)

		conn = c.reconnect()
		if conn == nil {
			return
		}
	}
}

func (c *Client) read(conn *websocket.Conn) error {
	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type == server.MessageSearch {
			c.receive(msg.Search)
		}
	}
}

// reconnect dials until it succeeds or the client is closed, in which
// case it returns nil.
func (c *Client) reconnect() *websocket.Conn {
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-time.After(c.opts.reconnectDelay):
		}

		conn, err := c.dialStream(c.ctx)
		if err != nil {
			c.logger.Warn("change stream reconnect failed", "error", err)
			continue
		}

		c.mu.Lock()
		if c.ctx.Err() != nil {
			c.mu.Unlock()
			conn.Close()
			return nil
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("change stream reconnected")
		return conn
	}
}
