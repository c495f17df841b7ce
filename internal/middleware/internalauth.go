package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
)

// googleOIDCIssuer is the issuer on tokens Pub/Sub attaches to push requests.
const googleOIDCIssuer = "https://accounts.google.com"

// InternalAuthMiddleware authenticates service-to-service requests by
// comparing the X-Internal-Auth header against the configured shared secret.
// An empty configured secret fails closed: every request is rejected rather
// than treating "no secret" as "any secret accepted".
type InternalAuthMiddleware struct {
	secret string
	logger *logging.Logger
}

// NewInternalAuthMiddleware creates the internal authentication middleware.
func NewInternalAuthMiddleware(secret string, logger *logging.Logger) *InternalAuthMiddleware {
	if logger == nil {
		logger = logging.NewDefault("internal-auth")
	}
	return &InternalAuthMiddleware{secret: secret, logger: logger}
}

// Handler returns the middleware handler. Auth runs before the body is read.
func (m *InternalAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(httputil.InternalAuthHeader)

		if m.secret == "" || presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(m.secret)) != 1 {
			m.logger.LogSecurityEvent(r.Context(), "internal_auth_rejected", map[string]interface{}{
				"path":              r.URL.Path,
				"method":            r.Method,
				"secret_configured": m.secret != "",
			})
			httputil.WriteErrorCode(w, errors.CodeUnauthorized, "invalid internal credentials")
			return
		}

		ctx := r.Context()
		if serviceID := r.Header.Get(httputil.ServiceIDHeader); serviceID != "" {
			ctx = logging.WithServiceID(ctx, serviceID)
		}
		if userID := r.Header.Get(httputil.UserIDHeader); userID != "" {
			ctx = logging.WithUserID(ctx, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PushAuthMiddleware authenticates Pub/Sub push deliveries. The signed OIDC
// token Google attaches to each push request is verified against the Google
// JWKS with the configured audience; the static origin header alone is never
// sufficient.
type PushAuthMiddleware struct {
	keys         KeySource
	audience     string
	serviceEmail string
	logger       *logging.Logger
}

// PushAuthConfig configures push authentication.
type PushAuthConfig struct {
	// Keys verifies the push token signature. Production wiring points this
	// at https://www.googleapis.com/oauth2/v3/certs.
	Keys KeySource

	// Audience is the push endpoint URL configured on the subscription.
	Audience string

	// ServiceEmail, when set, must match the token's email claim.
	ServiceEmail string

	Logger *logging.Logger
}

// pushClaims are the OIDC claims on a push token.
type pushClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// NewPushAuthMiddleware creates the push authentication middleware.
func NewPushAuthMiddleware(cfg PushAuthConfig) *PushAuthMiddleware {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault("push-auth")
	}
	return &PushAuthMiddleware{
		keys:         cfg.Keys,
		audience:     cfg.Audience,
		serviceEmail: cfg.ServiceEmail,
		logger:       logger,
	}
}

// Handler returns the middleware handler.
func (m *PushAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.reject(w, r, "missing push token")
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &pushClaims{}, func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			return m.keys.Key(r.Context(), kid)
		},
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithIssuer(googleOIDCIssuer),
			jwt.WithAudience(m.audience),
		)
		if err != nil || !token.Valid {
			m.reject(w, r, "invalid push token")
			return
		}

		claims, ok := token.Claims.(*pushClaims)
		if !ok {
			m.reject(w, r, "invalid push token claims")
			return
		}
		if m.serviceEmail != "" && (!claims.EmailVerified || claims.Email != m.serviceEmail) {
			m.reject(w, r, "push token from unexpected service account")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *PushAuthMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	m.logger.LogSecurityEvent(r.Context(), "push_auth_rejected", map[string]interface{}{
		"path":   r.URL.Path,
		"reason": reason,
	})
	httputil.WriteErrorCode(w, errors.CodeUnauthorized, reason)
}
