package codetasks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/storage/memory"
)

const testInternalSecret = "internal-secret"

func testUserAuth(userID string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), userID)))
		})
	}
}

func newTestHandler(t *testing.T, userID string) *mux.Router {
	t.Helper()
	svc := NewService(memory.New(), &FakeDispatcher{}, logging.NewNop(), nil)
	handler := NewHandler(svc, logging.NewNop())

	router := mux.NewRouter()
	internalAuth := middleware.NewInternalAuthMiddleware(testInternalSecret, logging.NewNop())
	handler.Register(router, testUserAuth(userID), internalAuth.Handler)
	return router
}

func createPayload(userID, prompt string) map[string]string {
	return map[string]string{
		"userId":           userID,
		"prompt":           prompt,
		"systemPromptHash": codetask.PromptHash("", prompt),
		"repository":       "acme/api",
	}
}

func postInternal(router *mux.Router, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(httputil.InternalAuthHeader, testInternalSecret)
	req.Header.Set(httputil.ServiceIDHeader, "actions")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.Envelope {
	t.Helper()
	var envelope httputil.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response envelope: %v", err)
	}
	return envelope
}

func TestCreateEndpointConflictOnDuplicate(t *testing.T) {
	router := newTestHandler(t, "user-1")
	payload := createPayload("user-1", "add retries to the fetcher")

	rec := postInternal(router, "/internal/code-tasks", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if !envelope.Success {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	created := envelope.Data.(map[string]interface{})
	if created["status"] != "dispatched" {
		t.Fatalf("expected status dispatched, got %v", created["status"])
	}

	rec = postInternal(router, "/internal/code-tasks", payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d: %s", rec.Code, rec.Body.String())
	}
	envelope = decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Code != "ACTIVE_TASK_EXISTS" {
		t.Fatalf("expected ACTIVE_TASK_EXISTS, got %s", rec.Body.String())
	}
	if envelope.Error.Details["existingTaskId"] != created["id"] {
		t.Fatalf("expected existingTaskId %v, got %v", created["id"], envelope.Error.Details["existingTaskId"])
	}
}

func TestCreateEndpointRequiresInternalAuth(t *testing.T) {
	router := newTestHandler(t, "user-1")
	body, _ := json.Marshal(createPayload("user-1", "p"))
	req := httptest.NewRequest(http.MethodPost, "/internal/code-tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without internal auth, got %d", rec.Code)
	}
}

func TestCreateEndpointRejectsInvalidBody(t *testing.T) {
	router := newTestHandler(t, "user-1")

	rec := postInternal(router, "/internal/code-tasks", map[string]string{"userId": "user-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d: %s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", rec.Body.String())
	}

	withExtra := createPayload("user-1", "p")
	withExtra["extra"] = "nope"
	rec = postInternal(router, "/internal/code-tasks", withExtra)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d: %s", rec.Code, rec.Body.String())
	}

	withoutHash := createPayload("user-1", "p")
	delete(withoutHash, "systemPromptHash")
	rec = postInternal(router, "/internal/code-tasks", withoutHash)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without systemPromptHash, got %d: %s", rec.Code, rec.Body.String())
	}

	badHash := createPayload("user-1", "p")
	badHash["systemPromptHash"] = "not-a-hash"
	rec = postInternal(router, "/internal/code-tasks", badHash)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed systemPromptHash, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusEndpointRejectsInvalidTransition(t *testing.T) {
	router := newTestHandler(t, "user-1")

	rec := postInternal(router, "/internal/code-tasks", createPayload("user-1", "p"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}
	id := decodeEnvelope(t, rec).Data.(map[string]interface{})["id"].(string)

	rec = postInternal(router, "/internal/code-tasks/"+id+"/status", map[string]string{"status": "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for completed, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postInternal(router, "/internal/code-tasks/"+id+"/status", map[string]string{"status": "processing"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for backward transition, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postInternal(router, "/internal/code-tasks/"+id+"/status", map[string]string{"status": "dispatched"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for status outside the schema enum, got %d", rec.Code)
	}
}

func TestListAndGetScopedToCaller(t *testing.T) {
	router := newTestHandler(t, "user-2")

	rec := postInternal(router, "/internal/code-tasks", createPayload("user-1", "p"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}
	id := decodeEnvelope(t, rec).Data.(map[string]interface{})["id"].(string)

	// user-2 sees an empty list and a 404 for user-1's task.
	req := httptest.NewRequest(http.MethodGet, "/code-tasks", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list failed: %d", listRec.Code)
	}
	data := decodeEnvelope(t, listRec).Data.(map[string]interface{})
	if tasks := data["tasks"].([]interface{}); len(tasks) != 0 {
		t.Fatalf("expected empty list for another user, got %d", len(tasks))
	}

	req = httptest.NewRequest(http.MethodGet, "/code-tasks/"+id, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	if getRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's task, got %d", getRec.Code)
	}
}
