// Package bootstrap wires the pieces every agent service shares: config,
// logging, metrics, storage, auth middleware, and the HTTP server lifecycle.
package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/cache"
	"github.com/intexuraos/agents/internal/config"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/server"
	"github.com/intexuraos/agents/internal/storage"
	"github.com/intexuraos/agents/internal/storage/memory"
	"github.com/intexuraos/agents/internal/storage/postgres"
)

// Store is the full persistence surface. Both the memory and postgres
// implementations satisfy it; each service uses the slice it needs.
type Store interface {
	storage.ActionStore
	storage.CodeTaskStore
	storage.LinearStore
	storage.ResearchStore
	storage.NotionConnectionStore
	storage.VisualizationStore
}

// App holds the shared runtime pieces of one agent service.
type App struct {
	Service string
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Store   Store
	Cache   cache.Cache

	UserAuth     mux.MiddlewareFunc
	InternalAuth mux.MiddlewareFunc
	PushAuth     mux.MiddlewareFunc
}

// New loads configuration and builds the shared runtime for a service.
// DATABASE_URL selects the postgres store; without it the in-memory store
// serves local development.
func New(service string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// An explicit PORT wins; otherwise the service registry assigns it.
	if os.Getenv("PORT") == "" {
		registry := config.LoadServicesConfigOrDefault()
		if settings, ok := registry.Services[service]; ok && settings.Port != 0 {
			cfg.Server.Port = settings.Port
		}
	}

	logger := logging.New(service, cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.New(service)

	var store Store
	if cfg.Database.URL != "" {
		pg, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		store = pg
		logger.Info("using postgres store")
	} else {
		store = memory.New()
		logger.Warn("DATABASE_URL unset, using in-memory store")
	}

	var c cache.Cache
	if cfg.Redis.Addr != "" {
		c = cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		logger.Info("using redis cache")
	} else {
		c = cache.NewMemory()
	}

	userAuth := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Keys:     middleware.NewJWKSClient(cfg.Auth.JWKSURL),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Logger:   logger,
	})
	internalAuth := middleware.NewInternalAuthMiddleware(cfg.Internal.Secret, logger)
	pushAuth := middleware.NewPushAuthMiddleware(middleware.PushAuthConfig{
		Keys:         middleware.NewJWKSClient(cfg.Push.JWKSURL),
		Audience:     cfg.Push.Audience,
		ServiceEmail: cfg.Push.ServiceAccount,
		Logger:       logger,
	})

	return &App{
		Service:      service,
		Config:       cfg,
		Logger:       logger,
		Metrics:      m,
		Store:        store,
		Cache:        c,
		UserAuth:     userAuth.Handler,
		InternalAuth: internalAuth.Handler,
		PushAuth:     pushAuth.Handler,
	}, nil
}

// Router builds the service router with the shared middleware chain and
// the health, metrics, and OpenAPI endpoints.
func (a *App) Router(ops []openapi.Operation) *mux.Router {
	return server.NewRouter(server.RouterConfig{
		Service:        a.Service,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		AllowedOrigins: a.Config.CORS.AllowedOrigins,
		Operations:     ops,
		RateLimitRPS:   a.Config.RateLimit.RequestsPerSecond,
		RateLimitBurst: a.Config.RateLimit.Burst,
	})
}

// InternalClient builds a client for another agent's internal surface.
func (a *App) InternalClient(baseURL string, timeout time.Duration) *httputil.ServiceClient {
	return httputil.NewServiceClient(httputil.ServiceClientConfig{
		BaseURL:   baseURL,
		Secret:    a.Config.Internal.Secret,
		ServiceID: a.Service,
		Timeout:   timeout,
	})
}

// Run serves the router until SIGINT/SIGTERM, then shuts down gracefully.
func (a *App) Run(router *mux.Router) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.Config.Server.Host, a.Config.Server.Port, a.Config.Server.ShutdownTimeout, a.Logger, router)
	return srv.Run(ctx)
}

// RunWith serves the router and also runs background starters (pollers)
// bound to the same lifecycle.
func (a *App) RunWith(router *mux.Router, starters ...func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, start := range starters {
		if err := start(ctx); err != nil {
			return err
		}
	}

	srv := server.New(a.Config.Server.Host, a.Config.Server.Port, a.Config.Server.ShutdownTimeout, a.Logger, router)
	return srv.Run(ctx)
}
