package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
)

func newTestClient(baseURL string) *ServiceClient {
	return NewServiceClient(ServiceClientConfig{
		BaseURL:   baseURL,
		Secret:    "shared-secret",
		ServiceID: "actions",
	})
}

func TestServiceClientAttachesIdentityHeaders(t *testing.T) {
	var gotSecret, gotService, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(InternalAuthHeader)
		gotService = r.Header.Get(ServiceIDHeader)
		gotUser = r.Header.Get(UserIDHeader)
		WriteData(w, http.StatusOK, map[string]string{"id": "job-1"})
	}))
	defer srv.Close()

	ctx := logging.WithUserID(context.Background(), "user-1")
	var out struct {
		ID string `json:"id"`
	}
	if err := newTestClient(srv.URL).Post(ctx, "/internal/research/jobs", map[string]string{"query": "q"}, &out); err != nil {
		t.Fatalf("post: %v", err)
	}

	if gotSecret != "shared-secret" || gotService != "actions" || gotUser != "user-1" {
		t.Fatalf("headers = %q / %q / %q", gotSecret, gotService, gotUser)
	}
	if out.ID != "job-1" {
		t.Fatalf("decoded id = %q", out.ID)
	}
}

func TestServiceClientSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, errors.Unprocessable("cannot move status backwards"))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Post(context.Background(), "/internal/actions/status", map[string]string{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil || serviceErr.Code != errors.CodeDownstream {
		t.Fatalf("error = %v", err)
	}
	if serviceErr.Details["upstreamCode"] != "UNPROCESSABLE_ENTITY" {
		t.Fatalf("upstream code = %v", serviceErr.Details["upstreamCode"])
	}
}

func TestServiceClientRejectsNonEnvelopeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>upstream proxy error</html>"))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Get(context.Background(), "/research/jobs", nil)
	if !errors.IsCode(err, errors.CodeDownstream) {
		t.Fatalf("error = %v", err)
	}
}

func TestServiceClientConnectionFailure(t *testing.T) {
	// Port 0 never accepts connections.
	err := newTestClient("http://127.0.0.1:0").Get(context.Background(), "/health", nil)
	if !errors.IsCode(err, errors.CodeDownstream) {
		t.Fatalf("error = %v", err)
	}
}

func TestServiceClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		WriteData(w, http.StatusOK, []map[string]string{{"id": "a-1"}})
	}))
	defer srv.Close()

	var out []json.RawMessage
	if err := newTestClient(srv.URL).Get(context.Background(), "/router/actions", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("items = %d", len(out))
	}
}
