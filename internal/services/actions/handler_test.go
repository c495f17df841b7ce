package actions

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/clients/llm"
	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/pubsub"
	"github.com/intexuraos/agents/internal/storage/memory"
)

const (
	testInternalSecret = "internal-secret"
	testPushAudience   = "https://actions.example.com/internal/actions/research"
	testPushEmail      = "pubsub-invoker@example.iam.gserviceaccount.com"
)

type pushFixture struct {
	router    *mux.Router
	store     *memory.Store
	forwarder *FakeForwarder
	key       *rsa.PrivateKey
}

func newPushFixture(t *testing.T) *pushFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate test key: %v", err)
	}

	store := memory.New()
	forwarder := &FakeForwarder{}
	svc := NewService(store, NewClassifier(&llm.Fake{Text: "research"}, "", logging.NewNop()),
		map[action.Type]Forwarder{action.TypeResearch: forwarder}, logging.NewNop(), nil)
	handler := NewHandler(svc, logging.NewNop())

	userAuth := mux.MiddlewareFunc(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), "user-1")))
		})
	})
	internalAuth := middleware.NewInternalAuthMiddleware(testInternalSecret, logging.NewNop())
	pushAuth := middleware.NewPushAuthMiddleware(middleware.PushAuthConfig{
		Keys:         middleware.StaticKey{PublicKey: &key.PublicKey},
		Audience:     testPushAudience,
		ServiceEmail: testPushEmail,
		Logger:       logging.NewNop(),
	})

	router := mux.NewRouter()
	handler.Register(router, userAuth, internalAuth.Handler, pushAuth.Handler)
	return &pushFixture{router: router, store: store, forwarder: forwarder, key: key}
}

func (f *pushFixture) signPushToken(t *testing.T, email string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testPushAudience,
		"email":          email,
		"email_verified": true,
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(f.key)
	if err != nil {
		t.Fatalf("sign push token: %v", err)
	}
	return token
}

func (f *pushFixture) seedAction(t *testing.T) action.Action {
	t.Helper()
	act, err := f.store.CreateAction(context.Background(), action.Action{
		UserID:    "user-1",
		Type:      action.TypeResearch,
		InputText: "research QUIC loss recovery",
		Status:    action.StatusCreated,
	})
	if err != nil {
		t.Fatalf("seed action: %v", err)
	}
	return act
}

func (f *pushFixture) pushRequest(t *testing.T, token string, event action.Event) *httptest.ResponseRecorder {
	t.Helper()
	body, err := pubsub.EncodePush("msg-1", event)
	if err != nil {
		t.Fatalf("encode push: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/internal/actions/research", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestResearchPushEndToEnd(t *testing.T) {
	f := newPushFixture(t)
	act := f.seedAction(t)
	event := action.Event{
		EventType:  "action.created",
		ActionID:   act.ID,
		UserID:     act.UserID,
		ActionType: action.TypeResearch,
		InputText:  act.InputText,
	}
	token := f.signPushToken(t, testPushEmail)

	rec := f.pushRequest(t, token, event)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope httputil.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	data := envelope.Data.(map[string]interface{})
	if data["status"] != "processing" {
		t.Fatalf("expected action moved to processing, got %v", data["status"])
	}
	if len(f.forwarder.Events) != 1 {
		t.Fatalf("expected one forward to the research agent, got %d", len(f.forwarder.Events))
	}

	// Redelivery of the same message returns the stored result and does not
	// forward again.
	rec = f.pushRequest(t, token, event)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec.Code)
	}
	if len(f.forwarder.Events) != 1 {
		t.Fatalf("redelivery forwarded again: %d forwards", len(f.forwarder.Events))
	}
}

func TestResearchPushRejectsMissingOrBadToken(t *testing.T) {
	f := newPushFixture(t)
	act := f.seedAction(t)
	event := action.Event{ActionID: act.ID, UserID: act.UserID, ActionType: action.TypeResearch}

	if rec := f.pushRequest(t, "", event); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	wrongEmail := f.signPushToken(t, "attacker@example.com")
	if rec := f.pushRequest(t, wrongEmail, event); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong service account, got %d", rec.Code)
	}

	if len(f.forwarder.Events) != 0 {
		t.Fatalf("rejected pushes must not forward, got %d", len(f.forwarder.Events))
	}
}

func TestResearchPushAcksUndeliverableMessages(t *testing.T) {
	f := newPushFixture(t)
	act := f.seedAction(t)
	token := f.signPushToken(t, testPushEmail)

	// A non-research action can never become deliverable on this endpoint;
	// redelivery would loop forever, so the handler acks and drops it.
	rec := f.pushRequest(t, token, action.Event{
		EventType:  "action.created",
		ActionID:   act.ID,
		UserID:     act.UserID,
		ActionType: action.TypeCode,
		InputText:  act.InputText,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack for wrong action type, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope httputil.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	data := envelope.Data.(map[string]interface{})
	if data["outcome"] != "dropped" {
		t.Fatalf("expected dropped outcome, got %v", data["outcome"])
	}

	// Same for an action id that does not exist.
	rec = f.pushRequest(t, token, action.Event{
		EventType:  "action.created",
		ActionID:   "missing",
		UserID:     act.UserID,
		ActionType: action.TypeResearch,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack for unknown action, got %d: %s", rec.Code, rec.Body.String())
	}

	// And for a payload missing its identifiers.
	rec = f.pushRequest(t, token, action.Event{EventType: "action.created", ActionType: action.TypeResearch})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack for missing ids, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(f.forwarder.Events) != 0 {
		t.Fatalf("dropped pushes must not forward, got %d", len(f.forwarder.Events))
	}
}

func TestRouterEndpoints(t *testing.T) {
	f := newPushFixture(t)

	body, _ := json.Marshal(map[string]string{"inputText": "research the history of QUIC"})
	req := httptest.NewRequest(http.MethodPost, "/router/actions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope httputil.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	created := envelope.Data.(map[string]interface{})
	if created["actionType"] != "research" {
		t.Fatalf("expected research classification, got %v", created["actionType"])
	}

	req = httptest.NewRequest(http.MethodGet, "/router/actions", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/router/actions/"+created["id"].(string), nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get failed: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/router/actions", bytes.NewReader([]byte(`{"inputText":""}`)))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty input, got %d", rec.Code)
	}
}

func TestStatusEndpointRequiresInternalAuth(t *testing.T) {
	f := newPushFixture(t)
	body, _ := json.Marshal(map[string]string{"actionId": "a", "status": "completed"})
	req := httptest.NewRequest(http.MethodPost, "/internal/actions/status", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
