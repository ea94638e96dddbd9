// Package server hosts a shared query string over HTTP.
//
// A Server owns a navigation.History and a bridge bound to it. Clients read
// and write the search through a small JSON API, follow changes over a
// WebSocket stream, and read the validated state the bridge derives:
//
//	GET    /search          {"search": "..."}
//	PUT    /search          {"search": "...", "mode": "push"|"replace"}
//	POST   /history/back
//	POST   /history/forward
//	GET    /state           bridge snapshot
//	PATCH  /params          partial update, null deletes a key
//	GET    /ws              change stream of {"type": "search", "search": "..."}
//	GET    /metrics         Prometheus metrics
//	GET    /healthz
//
// Package remote provides the matching client-side navigation.Adapter.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/queryguard/pkg/bridge"
	"github.com/vango-dev/queryguard/pkg/metrics"
	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/querycodec"
)

// Server is the HTTP/WebSocket host for a shared query string.
type Server struct {
	config      *Config
	history     *navigation.History
	bridge      *bridge.Bridge
	hub         *Hub
	metrics     *metrics.Collector
	registry    *prometheus.Registry
	router      chi.Router
	httpServer  *http.Server
	unsubscribe func()
	logger      *slog.Logger
}

// New creates a Server. It fails only when Config.URL cannot be parsed.
func New(config *Config) (*Server, error) {
	config = config.withDefaults()

	history, err := navigation.NewHistory(config.URL)
	if err != nil {
		return nil, err
	}
	history.WithMode(config.HistoryMode)

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		config:   config,
		history:  history,
		registry: registry,
		logger:   config.Logger.With("component", "server"),
	}

	s.metrics = metrics.New(
		metrics.WithRegistry(registry),
		metrics.WithNamespace(config.MetricsNamespace),
	)
	s.bridge = bridge.New(
		bridge.WithAdapter(history),
		bridge.WithSchema(config.Schema),
		bridge.WithMode(config.Mode),
		bridge.WithLogger(config.Logger),
		bridge.WithObserver(s.metrics),
	)
	s.hub = NewHub(config, s.search, s.metrics)
	s.unsubscribe = history.Subscribe(func() {
		s.hub.Broadcast(s.search())
	})
	s.router = s.routes()

	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Tracing(s.config.TracerName))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/search", s.handleGetSearch)
	r.Put("/search", s.handlePutSearch)
	r.Post("/history/back", s.handleTraverse(-1))
	r.Post("/history/forward", s.handleTraverse(1))
	r.Get("/state", s.handleState)
	r.Patch("/params", s.handlePatchParams)
	r.Get("/ws", s.hub.HandleWebSocket)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// Handler returns the router for mounting in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// History returns the shared history.
func (s *Server) History() *navigation.History {
	return s.history
}

// Bridge returns the server-side bridge.
func (s *Server) Bridge() *bridge.Bridge {
	return s.bridge
}

// Hub returns the change-stream hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the effective configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Run listens on Config.Address and serves until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", "address", ln.Addr().String(), "url", s.history.URL())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown disconnects stream clients, releases the bridge, and stops the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.Close()
	s.bridge.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	return nil
}

func (s *Server) search() string {
	return querycodec.Normalize(s.history.GetSearch())
}

// Compile-time check.
var _ http.Handler = (*Server)(nil)

// =============================================================================
// Handlers
// =============================================================================

type searchBody struct {
	Search string `json:"search"`
	Mode   string `json:"mode,omitempty"`
}

type traverseBody struct {
	Search string `json:"search"`
	Moved  bool   `json:"moved"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleGetSearch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, searchBody{Search: s.search()})
}

func (s *Server) handlePutSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := s.decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	mode := s.config.HistoryMode
	if body.Mode != "" {
		m, err := navigation.ParseHistoryMode(body.Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		mode = m
	}

	s.history.Navigate(querycodec.Normalize(body.Search), mode)
	writeJSON(w, http.StatusOK, searchBody{Search: s.search()})
}

func (s *Server) handleTraverse(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		moved := s.history.Go(delta)
		writeJSON(w, http.StatusOK, traverseBody{Search: s.search(), Moved: moved})
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Snapshot())
}

func (s *Server) handlePatchParams(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := s.decodeBody(w, r, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	update := make(querycodec.Update, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error: fmt.Sprintf("param %q: nested values are not supported", k),
			})
			return
		}
		update[k] = v
	}

	s.bridge.UpdateParams(update)
	writeJSON(w, http.StatusOK, s.bridge.Snapshot())
}
