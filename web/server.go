// Package web exposes the auto-generated collection routes over HTTP.
// Each collection gets one route at its slug; the method selects the
// operation and the engine runs the hook pipeline around it.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quillcms/quill/adapters/metrics"
	"github.com/quillcms/quill/app"
	"github.com/quillcms/quill/core/engine"
	"github.com/quillcms/quill/core/schema"
	"github.com/quillcms/quill/domain/webhook"
	"github.com/quillcms/quill/ports"
)

// Server serves the collection routes.
type Server struct {
	router   chi.Router
	engine   *engine.Engine
	store    ports.Store
	fanout   *app.FanoutService
	sessions ports.SessionResolver
	logger   zerolog.Logger
	metrics  *metrics.Collector

	// webhooks holds the merged global + per-collection webhook lists,
	// keyed by collection name, resolved once at boot.
	webhooks map[string][]webhook.Webhook

	addr   string
	server *http.Server
}

// Options configures a Server.
type Options struct {
	Engine   *engine.Engine
	Store    ports.Store
	Fanout   *app.FanoutService
	Sessions ports.SessionResolver
	Logger   zerolog.Logger
	Metrics  *metrics.Collector

	// GlobalWebhooks fire for every collection, unioned with each
	// collection's own webhooks.
	GlobalWebhooks []webhook.Webhook

	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates the HTTP server and registers a route per collection.
func New(opts Options) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		engine:   opts.Engine,
		store:    opts.Store,
		fanout:   opts.Fanout,
		sessions: opts.Sessions,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		webhooks: make(map[string][]webhook.Webhook),
		addr:     opts.Addr,
	}

	s.router.Use(chimiddleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.inFlight)
	}

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleNotFound)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	for _, col := range opts.Engine.Registry().All() {
		s.webhooks[col.Name] = webhook.Merge(opts.GlobalWebhooks, webhooksFor(col))
		s.router.HandleFunc("/"+col.PathSlug(), s.handleCollection(col))
	}

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// webhooksFor converts a collection's webhook declarations to values.
func webhooksFor(col schema.Collection) []webhook.Webhook {
	out := make([]webhook.Webhook, 0, len(col.Webhooks))
	for _, def := range col.Webhooks {
		out = append(out, webhook.Webhook{
			Name:        def.Name,
			URL:         def.URL,
			OnOperation: def.OnOperation,
			Headers:     def.Headers,
			Secret:      def.Secret,
			TimeoutMS:   def.TimeoutMS,
		})
	}
	return out
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// inFlight tracks concurrently processed requests.
func (s *Server) inFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RequestsInFlight.Inc()
		defer s.metrics.RequestsInFlight.Dec()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found."})
}

// isLocalRequest reports whether the request originates from loopback.
func isLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
