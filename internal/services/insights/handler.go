package insights

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/domain/visualization"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/validation"
)

var createSchema = validation.MustCompile("insights-visualization-create", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["title", "rows"],
	"additionalProperties": false,
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 500},
		"rows": {
			"type": "array",
			"minItems": 1,
			"maxItems": 10000,
			"items": {"type": "object"}
		}
	}
}`)

// Handler exposes the insights endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the insights agent.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodPost, Path: "/insights/visualizations", Summary: "Generate a visualization", RequestSchema: createSchema},
		{Method: http.MethodGet, Path: "/insights/visualizations", Summary: "List the caller's visualizations"},
		{Method: http.MethodGet, Path: "/insights/visualizations/{visualizationId}", Summary: "Get a visualization"},
		{Method: http.MethodDelete, Path: "/insights/visualizations/{visualizationId}", Summary: "Delete a visualization"},
	}
}

// Register mounts the routes.
func (h *Handler) Register(r *mux.Router, userAuth mux.MiddlewareFunc) {
	user := r.PathPrefix("/insights").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("/visualizations", h.handleCreate).Methods(http.MethodPost)
	user.HandleFunc("/visualizations", h.handleList).Methods(http.MethodGet)
	user.HandleFunc("/visualizations/{visualizationId}", h.handleGet).Methods(http.MethodGet)
	user.HandleFunc("/visualizations/{visualizationId}", h.handleDelete).Methods(http.MethodDelete)
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

	vis, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("create visualization failed")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, vis)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if all == nil {
		all = []visualization.Visualization{}
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"visualizations": all})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	vis, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["visualizationId"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, vis)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["visualizationId"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]bool{"deleted": true})
}
