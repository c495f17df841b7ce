package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestInternalAuth(t *testing.T) {
	m := NewInternalAuthMiddleware("shared-secret", logging.NewNop())
	handler := m.Handler(okHandler())

	cases := []struct {
		name   string
		secret string
		want   int
	}{
		{"correct secret", "shared-secret", http.StatusNoContent},
		{"wrong secret", "other-secret", http.StatusUnauthorized},
		{"missing secret", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/internal/code-tasks", nil)
		if tc.secret != "" {
			req.Header.Set(httputil.InternalAuthHeader, tc.secret)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestInternalAuthFailsClosedWithoutConfiguredSecret(t *testing.T) {
	m := NewInternalAuthMiddleware("", logging.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/internal/code-tasks", nil)
	req.Header.Set(httputil.InternalAuthHeader, "")
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("empty configured secret accepted a request: status = %d", rec.Code)
	}
}

func TestInternalAuthPropagatesIdentityHeaders(t *testing.T) {
	m := NewInternalAuthMiddleware("shared-secret", logging.NewNop())
	var gotUser, gotService string
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = logging.GetUserID(r.Context())
		gotService = logging.GetServiceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/research/jobs", nil)
	req.Header.Set(httputil.InternalAuthHeader, "shared-secret")
	req.Header.Set(httputil.UserIDHeader, "user-1")
	req.Header.Set(httputil.ServiceIDHeader, "actions")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != "user-1" || gotService != "actions" {
		t.Fatalf("context identity = %q / %q", gotUser, gotService)
	}
}

const pushAudience = "https://actions.example.com/internal/actions/research"

func newPushAuth(t *testing.T, serviceEmail string) (*PushAuthMiddleware, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m := NewPushAuthMiddleware(PushAuthConfig{
		Keys:         StaticKey{PublicKey: &key.PublicKey},
		Audience:     pushAudience,
		ServiceEmail: serviceEmail,
		Logger:       logging.NewNop(),
	})
	return m, key
}

func signOIDC(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func oidcClaims(email string, verified bool) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            pushAudience,
		"email":          email,
		"email_verified": verified,
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
}

func TestPushAuthAcceptsGoogleToken(t *testing.T) {
	m, key := newPushAuth(t, "pubsub@project.iam.gserviceaccount.com")

	req := httptest.NewRequest(http.MethodPost, "/internal/actions/research", nil)
	req.Header.Set("Authorization", "Bearer "+signOIDC(t, key, oidcClaims("pubsub@project.iam.gserviceaccount.com", true)))
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestPushAuthRejections(t *testing.T) {
	m, key := newPushAuth(t, "pubsub@project.iam.gserviceaccount.com")

	wrongIssuer := oidcClaims("pubsub@project.iam.gserviceaccount.com", true)
	wrongIssuer["iss"] = "https://evil.example.com"
	wrongAudience := oidcClaims("pubsub@project.iam.gserviceaccount.com", true)
	wrongAudience["aud"] = "https://other.example.com/push"

	cases := []struct {
		name   string
		header string
	}{
		{"no token", ""},
		{"wrong issuer", "Bearer " + signOIDC(t, key, wrongIssuer)},
		{"wrong audience", "Bearer " + signOIDC(t, key, wrongAudience)},
		{"wrong service account", "Bearer " + signOIDC(t, key, oidcClaims("attacker@example.com", true))},
		{"unverified email", "Bearer " + signOIDC(t, key, oidcClaims("pubsub@project.iam.gserviceaccount.com", false))},
	}
	handler := m.Handler(okHandler())
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/internal/actions/research", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, rec.Code)
		}
	}
}

func TestPushAuthWithoutServiceEmailCheck(t *testing.T) {
	m, key := newPushAuth(t, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/actions/research", nil)
	req.Header.Set("Authorization", "Bearer "+signOIDC(t, key, oidcClaims("anyone@project.iam.gserviceaccount.com", true)))
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}
