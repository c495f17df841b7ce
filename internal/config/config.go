// Package config loads service configuration from the environment and the
// shared services registry.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the environment-derived configuration for one agent service.
type Config struct {
	Server struct {
		Host            string        `env:"HTTP_HOST,default=0.0.0.0"`
		Port            int           `env:"PORT,default=8080"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL,default=info"`
		Format string `env:"LOG_FORMAT,default=json"`
	}

	Auth struct {
		JWKSURL  string `env:"AUTH_JWKS_URL"`
		Issuer   string `env:"AUTH_ISSUER"`
		Audience string `env:"AUTH_AUDIENCE"`
	}

	Internal struct {
		// Secret authenticates service-to-service calls. Leaving it unset
		// fails closed on every internal route.
		Secret string `env:"INTERNAL_AUTH_TOKEN"`
	}

	Push struct {
		// Audience is the push endpoint URL configured on the Pub/Sub
		// subscription; the OIDC token on each push must carry it.
		Audience       string `env:"PUSH_AUDIENCE"`
		ServiceAccount string `env:"PUSH_SERVICE_ACCOUNT"`
		JWKSURL        string `env:"PUSH_JWKS_URL,default=https://www.googleapis.com/oauth2/v3/certs"`
	}

	Database struct {
		// URL enables the postgres document store; empty keeps the
		// in-memory store (local development).
		URL string `env:"DATABASE_URL"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB,default=0"`
	}

	Peers struct {
		ActionsURL     string `env:"ACTIONS_SERVICE_URL,default=http://localhost:8081"`
		CodeTasksURL   string `env:"CODETASKS_SERVICE_URL,default=http://localhost:8082"`
		LinearURL      string `env:"LINEAR_SERVICE_URL,default=http://localhost:8083"`
		CalendarURL    string `env:"CALENDAR_SERVICE_URL,default=http://localhost:8084"`
		ResearchURL    string `env:"RESEARCH_SERVICE_URL,default=http://localhost:8085"`
		PromptVaultURL string `env:"PROMPTVAULT_SERVICE_URL,default=http://localhost:8086"`
		WebURL         string `env:"WEB_SERVICE_URL,default=http://localhost:8087"`
		InsightsURL    string `env:"INSIGHTS_SERVICE_URL,default=http://localhost:8088"`
		UserServiceURL string `env:"USER_SERVICE_URL,default=http://localhost:8090"`
		ExecutorURL    string `env:"CODE_EXECUTOR_URL,default=http://localhost:8089"`
	}

	CodeTasks struct {
		// DefaultRepository receives tasks routed from free-form input
		// when no repository is named.
		DefaultRepository string `env:"CODETASKS_DEFAULT_REPOSITORY"`
	}

	LLM struct {
		BaseURL string        `env:"LLM_GATEWAY_URL"`
		Timeout time.Duration `env:"LLM_TIMEOUT,default=120s"`
	}

	RateLimit struct {
		RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=20"`
		Burst             int `env:"RATE_LIMIT_BURST,default=40"`
	}

	CORS struct {
		// AllowedOrigins is semicolon separated in the environment.
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}
