package inspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/scopeshare/pkg/scopeshare"
)

// Server is the inspector HTTP server over one store.
type Server struct {
	store  *scopeshare.Store
	cfg    Config
	logger *slog.Logger
	stream *Broadcaster
	router chi.Router

	httpServer *http.Server
	removeTap  func()
}

// NewServer creates an inspector over store. The logger may be nil.
func NewServer(store *scopeshare.Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "inspect"),
	}
	s.stream = NewBroadcaster(cfg.AllowAnyOrigin, s.logger)

	r := chi.NewRouter()
	r.Use(Tracing(cfg.TracerName))
	r.Get("/healthz", s.handleHealth)
	r.Get("/scopes", s.handleScopes)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.stream.HandleWebSocket)
	s.router = r

	return s
}

// Handler returns the inspector's HTTP handler, for embedding into an
// existing server or for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start taps the store and begins serving on the configured address.
// Serving happens on a background goroutine; Start returns immediately.
func (s *Server) Start() error {
	s.removeTap = s.store.Tap(func(ev scopeshare.ChangeEvent) {
		s.stream.Broadcast(ev)
	})

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("inspector listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("inspector server error", "err", err)
		}
	}()
	return nil
}

// Shutdown detaches from the store, closes stream clients, and shuts the
// HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.removeTap != nil {
		s.removeTap()
		s.removeTap = nil
	}
	s.stream.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleScopes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.store.Snapshot()); err != nil {
		s.logger.Error("encode snapshot", "err", err)
	}
}
