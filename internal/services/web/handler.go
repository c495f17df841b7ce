package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/validation"
)

var previewsSchema = validation.MustCompile("web-link-previews", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["urls"],
	"additionalProperties": false,
	"properties": {
		"urls": {
			"type": "array",
			"minItems": 1,
			"maxItems": 20,
			"items": {"type": "string", "minLength": 1, "maxLength": 2000}
		}
	}
}`)

// Handler exposes the web agent endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the web agent.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodPost, Path: "/web/link-previews", Summary: "Fetch previews for a batch of links", RequestSchema: previewsSchema},
	}
}

// Register mounts the routes.
func (h *Handler) Register(r *mux.Router, userAuth mux.MiddlewareFunc) {
	user := r.PathPrefix("/web").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("/link-previews", h.handlePreviews).Methods(http.MethodPost)
}

func (h *Handler) handlePreviews(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := previewsSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	previews := h.service.Previews(r.Context(), req.URLs)
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"previews": previews})
}
