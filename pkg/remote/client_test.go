package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"github.com/vango-dev/queryguard/pkg/bridge"
	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/querycodec"
	"github.com/vango-dev/queryguard/pkg/schema"
	"github.com/vango-dev/queryguard/pkg/server"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, url string) (*server.Server, *httptest.Server) {
	t.Helper()
	s, err := server.New(&server.Config{URL: url, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Shutdown(context.Background())
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithReconnectDelay(10 * time.Millisecond)}, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, opts...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_InitialSearch(t *testing.T) {
	_, ts := startServer(t, "/list?page=1")
	c := dial(t, ts.URL)

	if got := c.GetSearch(); got != "?page=1" {
		t.Fatalf("GetSearch = %q", got)
	}
}

func TestClient_SetSearch(t *testing.T) {
	s, ts := startServer(t, "/list?page=1")
	c := dial(t, ts.URL)

	var calls atomic.Int32
	c.Subscribe(func() { calls.Add(1) })

	c.SetSearch("?page=2")
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls after SetSearch = %d, want 1", n)
	}
	if got := c.GetSearch(); got != "?page=2" {
		t.Fatalf("GetSearch = %q", got)
	}
	if got := s.History().URL(); got != "/list?page=2" {
		t.Fatalf("server URL = %q", got)
	}

	// The stream echo of our own write must not notify again.
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestClient_SetSearchNotifiesBeforeReturning(t *testing.T) {
	_, ts := startServer(t, "/?page=0")
	c := dial(t, ts.URL)

	var finished atomic.Int32
	c.Subscribe(func() {
		time.Sleep(5 * time.Millisecond)
		finished.Add(1)
	})

	for i := 1; i <= 10; i++ {
		c.SetSearch(fmt.Sprintf("page=%d", i))
		if n := finished.Load(); n != int32(i) {
			t.Fatalf("write %d: %d subscriber calls finished, want %d", i, n, i)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if n := finished.Load(); n != 10 {
		t.Fatalf("calls = %d, want 10", n)
	}
}

func TestClient_ReplaceMode(t *testing.T) {
	s, ts := startServer(t, "/?a=1")
	c := dial(t, ts.URL, WithHistoryMode(navigation.ModeReplace))

	c.SetSearch("a=2")
	if s.History().Len() != 1 {
		t.Fatalf("history len = %d, want 1", s.History().Len())
	}
}

func TestClient_FollowsServerChanges(t *testing.T) {
	s, ts := startServer(t, "/?page=1")
	c := dial(t, ts.URL)

	notified := make(chan struct{}, 4)
	c.Subscribe(func() { notified <- struct{}{} })

	s.History().SetSearch("page=7")

	select {
	case <-notified:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification for a server-side change")
	}
	if got := c.GetSearch(); got != "?page=7" {
		t.Fatalf("GetSearch = %q", got)
	}
}

func TestClient_Traversal(t *testing.T) {
	_, ts := startServer(t, "/?page=1")
	c := dial(t, ts.URL)

	c.SetSearch("page=2")

	ctx := context.Background()
	moved, err := c.Back(ctx)
	if err != nil || !moved {
		t.Fatalf("Back = %v, %v", moved, err)
	}
	if c.GetSearch() != "?page=1" {
		t.Fatalf("GetSearch after Back = %q", c.GetSearch())
	}

	moved, err = c.Forward(ctx)
	if err != nil || !moved {
		t.Fatalf("Forward = %v, %v", moved, err)
	}
	moved, _ = c.Forward(ctx)
	if moved {
		t.Fatal("Forward at the end should not move")
	}
}

func TestClient_WithBridge(t *testing.T) {
	s, ts := startServer(t, "/?page=1")
	c := dial(t, ts.URL)

	b := bridge.New(
		bridge.WithAdapter(c),
		bridge.WithSchema(schema.MustNew(schema.Number("page"))),
		bridge.WithLogger(quietLogger()),
	)
	defer b.Close()

	if b.Data()["page"] != 1.0 {
		t.Fatalf("Data = %v", b.Data())
	}

	var (
		mu    sync.Mutex
		snaps []bridge.Snapshot
	)
	b.Subscribe(func(snap bridge.Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})

	b.UpdateParams(querycodec.Update{"page": 3})
	mu.Lock()
	if len(snaps) != 1 || snaps[0].Data["page"] != 3.0 {
		t.Fatalf("snapshots after UpdateParams = %+v", snaps)
	}
	mu.Unlock()
	if got := s.History().GetSearch(); got != "?page=3" {
		t.Fatalf("server search = %q", got)
	}
	if b.Data()["page"] != 3.0 {
		t.Fatalf("Data = %v", b.Data())
	}

	s.History().SetSearch("page=4")
	eventually(t, "bridge update", func() bool { return b.Data()["page"] == 4.0 })
}

func TestClient_Refresh(t *testing.T) {
	s, ts := startServer(t, "/?x=1")
	c := dial(t, ts.URL)

	s.History().Navigate("x=2", navigation.ModeReplace)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if c.GetSearch() != "?x=2" {
		t.Fatalf("GetSearch = %q", c.GetSearch())
	}
}

func TestDial_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := Dial(ctx, "ftp://example.com"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	if _, err := Dial(ctx, url, WithLogger(quietLogger()), WithRetries(0, 0, 0)); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

// flakyServer serves GET /search and /ws but fails every PUT.
type flakyServer struct {
	puts     atomic.Int32
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    []*websocket.Conn
}

func (f *flakyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/search" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"search":"a=1"}`))
	case r.URL.Path == "/search" && r.Method == http.MethodPut:
		f.puts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	case r.URL.Path == "/ws":
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteJSON(server.Message{Type: server.MessageSearch, Search: "a=1"})
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *flakyServer) dropStreams() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Close()
	}
	f.conns = nil
}

func (f *flakyServer) streams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func TestClient_FailedWritesDegrade(t *testing.T) {
	f := &flakyServer{}
	ts := httptest.NewServer(f)
	defer ts.Close()

	c := dial(t, ts.URL,
		WithRetries(0, time.Millisecond, time.Millisecond),
		WithBreaker(2, time.Minute),
	)

	calls := 0
	c.Subscribe(func() { calls++ })

	for i := 0; i < 4; i++ {
		c.SetSearch("a=2")
	}

	if c.GetSearch() != "?a=1" {
		t.Fatalf("failed writes must not change the local search, got %q", c.GetSearch())
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
	if n := f.puts.Load(); n != 2 {
		t.Fatalf("server saw %d PUTs, want 2 before the circuit opened", n)
	}
	if c.BreakerState() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v", c.BreakerState())
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	f := &flakyServer{}
	ts := httptest.NewServer(f)
	defer ts.Close()

	c := dial(t, ts.URL,
		WithRetries(2, time.Millisecond, time.Millisecond),
		WithBreaker(100, time.Minute),
	)

	c.SetSearch("a=2")
	if n := f.puts.Load(); n != 3 {
		t.Fatalf("server saw %d PUTs, want 3", n)
	}
}

func TestClient_StreamReconnects(t *testing.T) {
	f := &flakyServer{}
	ts := httptest.NewServer(f)
	defer ts.Close()

	c := dial(t, ts.URL)
	eventually(t, "first stream", func() bool { return f.streams() == 1 })

	f.dropStreams()
	eventually(t, "reconnect", func() bool { return f.streams() == 1 })

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
