package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/intexuraos/agents/internal/logging"
)

const (
	testIssuer   = "https://auth.example.com"
	testAudience = "agents"
)

func newTestAuth(t *testing.T) (*AuthMiddleware, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m := NewAuthMiddleware(AuthConfig{
		Keys:     StaticKey{PublicKey: &key.PublicKey},
		Issuer:   testIssuer,
		Audience: testAudience,
		Logger:   logging.NewNop(),
	})
	return m, key
}

func signUserToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func userClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"iss": testIssuer,
		"aud": testAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func echoUserID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context())))
	})
}

func TestAuthAcceptsValidToken(t *testing.T) {
	m, key := newTestAuth(t)
	handler := m.Handler(echoUserID())

	req := httptest.NewRequest(http.MethodGet, "/router/actions", nil)
	req.Header.Set("Authorization", "Bearer "+signUserToken(t, key, userClaims("user-1")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "user-1" {
		t.Fatalf("user id = %q", rec.Body.String())
	}
}

func TestAuthRejections(t *testing.T) {
	m, key := newTestAuth(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	expired := userClaims("user-1")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongIssuer := userClaims("user-1")
	wrongIssuer["iss"] = "https://evil.example.com"
	wrongAudience := userClaims("user-1")
	wrongAudience["aud"] = "other-service"
	noSubject := userClaims("")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong key", "Bearer " + signUserToken(t, otherKey, userClaims("user-1"))},
		{"expired", "Bearer " + signUserToken(t, key, expired)},
		{"wrong issuer", "Bearer " + signUserToken(t, key, wrongIssuer)},
		{"wrong audience", "Bearer " + signUserToken(t, key, wrongAudience)},
		{"missing subject", "Bearer " + signUserToken(t, key, noSubject)},
	}

	handler := m.Handler(echoUserID())
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/router/actions", nil)
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

func TestAuthRejectsUnsignedAlgorithm(t *testing.T) {
	m, _ := newTestAuth(t)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, userClaims("user-1"))
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/router/actions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	m.Handler(echoUserID()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("alg=none accepted: status = %d", rec.Code)
	}
}

func TestAuthSkipPaths(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m := NewAuthMiddleware(AuthConfig{
		Keys:      StaticKey{PublicKey: &key.PublicKey},
		Logger:    logging.NewNop(),
		SkipPaths: []string{"/health"},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	m.Handler(echoUserID()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("skip path status = %d", rec.Code)
	}
}

func TestRequireUserID(t *testing.T) {
	handler := RequireUserID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.WithUserID(req.Context(), "user-1"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
}
