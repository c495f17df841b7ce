// Package middleware provides HTTP middleware shared by the agent services.
package middleware

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
)

// KeySource resolves the verification key for a token's key ID. JWKSClient
// is the production implementation; tests supply a static key.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// StaticKey is a KeySource returning one fixed key regardless of key ID.
type StaticKey struct {
	PublicKey *rsa.PublicKey
}

// Key returns the fixed key.
func (s StaticKey) Key(context.Context, string) (*rsa.PublicKey, error) {
	return s.PublicKey, nil
}

// Claims are the JWT claims accepted on user-facing routes. The subject is
// the user ID used for all ownership checks.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer JWTs on user-facing routes.
type AuthMiddleware struct {
	keys      KeySource
	issuer    string
	audience  string
	logger    *logging.Logger
	skipPaths map[string]bool
}

// AuthConfig configures the user authentication middleware.
type AuthConfig struct {
	Keys      KeySource
	Issuer    string
	Audience  string
	Logger    *logging.Logger
	SkipPaths []string
}

// NewAuthMiddleware creates the user authentication middleware.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault("auth")
	}
	return &AuthMiddleware{
		keys:      cfg.Keys,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.Unauthorized("invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(r.Context(), parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := logging.WithUserID(r.Context(), claims.Subject)
		m.logger.WithContext(ctx).Debug("authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) validateToken(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return m.keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "missing subject claim")
	}
	return claims, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("authentication failed", err)
	}
	// Token failures surface as plain UNAUTHORIZED to callers.
	httputil.WriteErrorCode(w, errors.CodeUnauthorized, serviceErr.Message)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("authentication failed")
}

// GetUserID extracts the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// RequireUserID rejects requests whose context carries no user identity.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.WriteErrorCode(w, errors.CodeUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
