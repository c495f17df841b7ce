// Package server provides the shared HTTP server lifecycle and base router
// used by every agent service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
)

// Version reported in health and OpenAPI documents.
const Version = "1.0.0"

// RouterConfig configures the base router for one service.
type RouterConfig struct {
	Service        string
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Operations     []openapi.Operation
	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter builds the base router: tracing, recovery, CORS, metrics, and
// the /health, /metrics, /openapi.json endpoints every service exposes.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.TracingMiddleware(cfg.Logger))
	r.Use(middleware.RecoverMiddleware(cfg.Logger))
	r.Use(middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler)
	if cfg.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(cfg.Metrics))
	}
	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Logger)
		limiter.StartCleanup(10 * time.Minute)
		r.Use(limiter.Handler)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteData(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": cfg.Service,
			"version": Version,
		})
	}).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	doc, err := openapi.Build(cfg.Service, Version, cfg.Operations)
	if err == nil {
		r.HandleFunc("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(doc)
		}).Methods(http.MethodGet)
	}

	return r
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	httpServer      *http.Server
	log             *logging.Logger
	shutdownTimeout time.Duration
}

// New creates a server for the handler.
func New(host string, port int, shutdownTimeout time.Duration, log *logging.Logger, handler http.Handler) *Server {
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts the server and blocks until the context is cancelled or the
// listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
