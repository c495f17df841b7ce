package codetasks

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/validation"
)

var createSchema = validation.MustCompile("code-task-create", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["userId", "prompt", "systemPromptHash", "repository"],
	"additionalProperties": false,
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"prompt": {"type": "string", "minLength": 1, "maxLength": 20000},
		"systemPromptHash": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
		"repository": {"type": "string", "minLength": 1, "maxLength": 500},
		"branch": {"type": "string", "maxLength": 200}
	}
}`)

var statusSchema = validation.MustCompile("code-task-status", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["status"],
	"additionalProperties": false,
	"properties": {
		"status": {"enum": ["processing", "completed", "failed"]},
		"resultUrl": {"type": "string", "maxLength": 2000},
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

// Handler exposes the code task endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the code task service.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodPost, Path: "/internal/code-tasks", Summary: "Dispatch a code task", RequestSchema: createSchema, Internal: true},
		{Method: http.MethodPost, Path: "/internal/code-tasks/{taskId}/status", Summary: "Report code task status", RequestSchema: statusSchema, Internal: true},
		{Method: http.MethodGet, Path: "/code-tasks", Summary: "List the caller's code tasks"},
		{Method: http.MethodGet, Path: "/code-tasks/{taskId}", Summary: "Get a code task"},
		{Method: http.MethodPost, Path: "/code-tasks/{taskId}/retry", Summary: "Retry a failed code task"},
	}
}

// Register mounts the routes. User routes go behind userAuth, internal
// routes behind internalAuth.
func (h *Handler) Register(r *mux.Router, userAuth, internalAuth mux.MiddlewareFunc) {
	internal := r.PathPrefix("/internal").Subrouter()
	internal.Use(internalAuth)
	internal.HandleFunc("/code-tasks", h.handleCreate).Methods(http.MethodPost)
	internal.HandleFunc("/code-tasks/{taskId}/status", h.handleUpdateStatus).Methods(http.MethodPost)

	user := r.PathPrefix("/code-tasks").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("", h.handleList).Methods(http.MethodGet)
	user.HandleFunc("/{taskId}", h.handleGet).Methods(http.MethodGet)
	user.HandleFunc("/{taskId}/retry", h.handleRetry).Methods(http.MethodPost)
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
	var req CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	task, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logError(r, err, "create code task")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, task)
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

	task, err := h.service.UpdateStatus(r.Context(), mux.Vars(r)["taskId"], req)
	if err != nil {
		h.logError(r, err, "update code task status")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, task)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logError(r, err, "list code tasks")
		httputil.WriteError(w, err)
		return
	}
	if tasks == nil {
		tasks = []codetask.CodeTask{}
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["taskId"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, task)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Retry(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["taskId"])
	if err != nil {
		h.logError(r, err, "retry code task")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, task)
}

func (h *Handler) logError(r *http.Request, err error, action string) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr != nil && serviceErr.HTTPStatus < http.StatusInternalServerError {
		return
	}
	h.logger.WithContext(r.Context()).WithError(err).Error(action + " failed")
}
