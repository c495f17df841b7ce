package promptvault

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/domain/promptvault"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/validation"
)

var connectionSchema = validation.MustCompile("promptvault-connection", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["token", "databaseId"],
	"additionalProperties": false,
	"properties": {
		"token": {"type": "string", "minLength": 1, "maxLength": 500},
		"databaseId": {"type": "string", "minLength": 1, "maxLength": 100}
	}
}`)

var savePromptSchema = validation.MustCompile("promptvault-save-prompt", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["title"],
	"additionalProperties": false,
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 500},
		"body": {"type": "string", "maxLength": 50000}
	}
}`)

// Handler exposes the prompt vault endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the prompt vault.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodGet, Path: "/promptvault/connection", Summary: "Get the caller's Notion connection"},
		{Method: http.MethodPost, Path: "/promptvault/connection", Summary: "Store the caller's Notion connection", RequestSchema: connectionSchema},
		{Method: http.MethodDelete, Path: "/promptvault/connection", Summary: "Remove the caller's Notion connection"},
		{Method: http.MethodPost, Path: "/promptvault/prompts", Summary: "Save a prompt", RequestSchema: savePromptSchema},
		{Method: http.MethodGet, Path: "/promptvault/prompts", Summary: "List saved prompts"},
	}
}

// Register mounts the routes.
func (h *Handler) Register(r *mux.Router, userAuth mux.MiddlewareFunc) {
	user := r.PathPrefix("/promptvault").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("/connection", h.handleGetConnection).Methods(http.MethodGet)
	user.HandleFunc("/connection", h.handleSaveConnection).Methods(http.MethodPost)
	user.HandleFunc("/connection", h.handleDeleteConnection).Methods(http.MethodDelete)
	user.HandleFunc("/prompts", h.handleSavePrompt).Methods(http.MethodPost)
	user.HandleFunc("/prompts", h.handleListPrompts).Methods(http.MethodGet)
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
		Token      string `json:"token"`
		DatabaseID string `json:"databaseId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	conn, err := h.service.SaveConnection(r.Context(), middleware.GetUserID(r.Context()), req.Token, req.DatabaseID)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("save notion connection failed")
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

func (h *Handler) handleSavePrompt(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := savePromptSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	prompt, err := h.service.SavePrompt(r.Context(), middleware.GetUserID(r.Context()), req.Title, req.Body)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("save prompt failed")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, prompt)
}

func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.service.ListPrompts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if prompts == nil {
		prompts = []promptvault.Prompt{}
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"prompts": prompts})
}
