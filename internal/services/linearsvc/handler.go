package linearsvc

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/domain/linear"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/validation"
)

var connectionSchema = validation.MustCompile("linear-connection", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["apiToken"],
	"additionalProperties": false,
	"properties": {
		"apiToken": {"type": "string", "minLength": 1, "maxLength": 500},
		"teamId": {"type": "string", "maxLength": 100}
	}
}`)

var processActionSchema = validation.MustCompile("linear-process-action", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["actionId", "userId", "title"],
	"additionalProperties": false,
	"properties": {
		"actionId": {"type": "string", "minLength": 1},
		"userId": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1, "maxLength": 1000},
		"description": {"type": "string", "maxLength": 20000}
	}
}`)

// Handler exposes the Linear agent endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the Linear agent.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodGet, Path: "/linear/connection", Summary: "Get the caller's Linear connection"},
		{Method: http.MethodPost, Path: "/linear/connection", Summary: "Store the caller's Linear API token", RequestSchema: connectionSchema},
		{Method: http.MethodDelete, Path: "/linear/connection", Summary: "Remove the caller's Linear connection"},
		{Method: http.MethodGet, Path: "/linear/issues", Summary: "List issues grouped by workflow state"},
		{Method: http.MethodGet, Path: "/linear/failed-issues", Summary: "List failed issue creations"},
		{Method: http.MethodPost, Path: "/linear/failed-issues/{failedIssueId}/retry", Summary: "Retry a failed issue creation"},
		{Method: http.MethodPost, Path: "/internal/linear/process-action", Summary: "Create an issue from an action", RequestSchema: processActionSchema, Internal: true},
	}
}

// Register mounts the routes.
func (h *Handler) Register(r *mux.Router, userAuth, internalAuth mux.MiddlewareFunc) {
	internal := r.PathPrefix("/internal/linear").Subrouter()
	internal.Use(internalAuth)
	internal.HandleFunc("/process-action", h.handleProcessAction).Methods(http.MethodPost)

	user := r.PathPrefix("/linear").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("/connection", h.handleGetConnection).Methods(http.MethodGet)
	user.HandleFunc("/connection", h.handleSaveConnection).Methods(http.MethodPost)
	user.HandleFunc("/connection", h.handleDeleteConnection).Methods(http.MethodDelete)
	user.HandleFunc("/issues", h.handleListIssues).Methods(http.MethodGet)
	user.HandleFunc("/failed-issues", h.handleListFailedIssues).Methods(http.MethodGet)
	user.HandleFunc("/failed-issues/{failedIssueId}/retry", h.handleRetryFailedIssue).Methods(http.MethodPost)
}

func (h *Handler) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.service.GetConnection(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, conn)
}

func (h *Handler) handleSaveConnection(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := connectionSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		APIToken string `json:"apiToken"`
		TeamID   string `json:"teamId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	conn, err := h.service.SaveConnection(r.Context(), middleware.GetUserID(r.Context()), req.APIToken, req.TeamID)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("save linear connection failed")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, conn)
}

func (h *Handler) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteConnection(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.service.ListIssuesGrouped(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"issuesByState": grouped})
}

func (h *Handler) handleListFailedIssues(w http.ResponseWriter, r *http.Request) {
	failed, err := h.service.ListFailedIssues(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if failed == nil {
		failed = []linear.FailedIssue{}
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"failedIssues": failed})
}

func (h *Handler) handleRetryFailedIssue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RetryFailedIssue(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["failedIssueId"])
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("failed issue retry unsuccessful")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

func (h *Handler) handleProcessAction(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := processActionSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ProcessActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	result, err := h.service.ProcessAction(r.Context(), req)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("process action failed")
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyLinked {
		status = http.StatusOK
	}
	httputil.WriteData(w, status, result)
}
