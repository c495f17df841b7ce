package researchsvc

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/validation"
)

var createJobSchema = validation.MustCompile("research-job-create", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["actionId", "userId", "query"],
	"additionalProperties": false,
	"properties": {
		"actionId": {"type": "string", "minLength": 1},
		"userId": {"type": "string", "minLength": 1},
		"query": {"type": "string", "minLength": 1, "maxLength": 10000},
		"model": {"type": "string", "maxLength": 100}
	}
}`)

// Handler exposes the research agent endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the research agent.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodPost, Path: "/internal/research/jobs", Summary: "Create a research job", RequestSchema: createJobSchema, Internal: true},
		{Method: http.MethodGet, Path: "/research/jobs", Summary: "List the caller's research jobs"},
		{Method: http.MethodGet, Path: "/research/jobs/{jobId}", Summary: "Get a research job"},
	}
}

// Register mounts the routes.
func (h *Handler) Register(r *mux.Router, userAuth, internalAuth mux.MiddlewareFunc) {
	internal := r.PathPrefix("/internal/research").Subrouter()
	internal.Use(internalAuth)
	internal.HandleFunc("/jobs", h.handleCreateJob).Methods(http.MethodPost)

	user := r.PathPrefix("/research").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("/jobs", h.handleList).Methods(http.MethodGet)
	user.HandleFunc("/jobs/{jobId}", h.handleGet).Methods(http.MethodGet)
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := createJobSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req CreateJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("request body is not valid JSON"))
		return
	}

	job, existed, err := h.service.CreateJob(r.Context(), req)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("create research job failed")
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	httputil.WriteData(w, status, job)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if jobs == nil {
		jobs = []research.Job{}
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["jobId"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, job)
}
