package actions

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/pubsub"
	"github.com/intexuraos/agents/internal/validation"
)

var createSchema = validation.MustCompile("action-create", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["inputText"],
	"additionalProperties": false,
	"properties": {
		"inputText": {"type": "string", "minLength": 1, "maxLength": 10000}
	}
}`)

var statusSchema = validation.MustCompile("action-status", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["actionId", "status"],
	"additionalProperties": false,
	"properties": {
		"actionId": {"type": "string", "minLength": 1},
		"status": {"enum": ["processing", "completed", "failed"]},
		"detail": {"type": "string", "maxLength": 2000},
		"error": {
			"type": "object",
			"required": ["code", "message"],
			"properties": {
				"code": {"type": "string"},
				"message": {"type": "string"},
				"remediation": {"type": "string"}
			}
		}
	}
}`)

// Handler exposes the action router endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the action router.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodPost, Path: "/router/actions", Summary: "Route a user request", RequestSchema: createSchema},
		{Method: http.MethodGet, Path: "/router/actions", Summary: "List the caller's actions"},
		{Method: http.MethodGet, Path: "/router/actions/{actionId}", Summary: "Get an action"},
		{Method: http.MethodPost, Path: "/internal/actions/status", Summary: "Report action status", RequestSchema: statusSchema, Internal: true},
		{Method: http.MethodPost, Path: "/internal/actions/research", Summary: "Pub/Sub push delivery for research actions", Internal: true},
	}
}

// Register mounts the routes. Push routes carry their own verified-OIDC
// middleware, distinct from the shared-secret internal auth.
func (h *Handler) Register(r *mux.Router, userAuth, internalAuth, pushAuth mux.MiddlewareFunc) {
	internal := r.PathPrefix("/internal/actions").Subrouter()
	internal.Use(internalAuth)
	internal.HandleFunc("/status", h.handleUpdateStatus).Methods(http.MethodPost)

	push := r.PathPrefix("/internal/actions").Subrouter()
	push.Use(pushAuth)
	push.HandleFunc("/research", h.handleResearchPush).Methods(http.MethodPost)

	user := r.PathPrefix("/router/actions").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("", h.handleCreate).Methods(http.MethodPost)
	user.HandleFunc("", h.handleList).Methods(http.MethodGet)
	user.HandleFunc("/{actionId}", h.handleGet).Methods(http.MethodGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := createSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		InputText string `json:"inputText"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	act, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), req.InputText)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("create action failed")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, act)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	acts, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if acts == nil {
		acts = []action.Action{}
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"actions": acts})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	act, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["actionId"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, act)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := statusSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req StatusUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	act, err := h.service.UpdateStatus(r.Context(), req)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("action status update rejected")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, act)
}

func (h *Handler) handleResearchPush(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("push delivery dropped: unreadable body")
		httputil.WriteData(w, http.StatusOK, pushOutcome{Outcome: "dropped"})
		return
	}

	var event action.Event
	messageID, err := pubsub.DecodePush(body, &event)
	if err != nil {
		// A malformed envelope never becomes deliverable; ack it so Pub/Sub
		// stops redelivering.
		h.logger.WithContext(r.Context()).WithError(err).Warn("push delivery dropped: invalid envelope")
		httputil.WriteData(w, http.StatusOK, pushOutcome{MessageID: messageID, Outcome: "dropped"})
		return
	}
	if event.ActionID == "" || event.UserID == "" {
		h.logger.WithContext(r.Context()).WithField("message_id", messageID).
			Warn("push delivery dropped: missing actionId or userId")
		httputil.WriteData(w, http.StatusOK, pushOutcome{MessageID: messageID, Outcome: "dropped"})
		return
	}

	log := h.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"message_id": messageID,
		"action_id":  event.ActionID,
	})

	act, err := h.service.HandleResearchEvent(r.Context(), event)
	if err != nil {
		// A non-2xx makes Pub/Sub redeliver. Failures no retry can cure are
		// acked and logged; only retryable ones answer an error status.
		if permanentDeliveryFailure(err) {
			log.WithError(err).Warn("research push dropped")
			httputil.WriteData(w, http.StatusOK, pushOutcome{MessageID: messageID, Outcome: "dropped"})
			return
		}
		log.WithError(err).Error("research push processing failed")
		httputil.WriteError(w, err)
		return
	}
	log.Info("research push processed")
	httputil.WriteData(w, http.StatusOK, act)
}

// pushOutcome is the body acked back to Pub/Sub for undeliverable messages.
type pushOutcome struct {
	MessageID string `json:"messageId,omitempty"`
	Outcome   string `json:"outcome"`
}

// permanentDeliveryFailure reports whether redelivering the same message can
// ever succeed. Validation-class outcomes and missing records cannot.
func permanentDeliveryFailure(err error) bool {
	return errors.IsCode(err, errors.CodeValidation) ||
		errors.IsCode(err, errors.CodeUnprocessable) ||
		errors.IsCode(err, errors.CodeNotFound)
}
