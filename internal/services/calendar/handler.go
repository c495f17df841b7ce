package calendar

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/middleware"
	"github.com/intexuraos/agents/internal/openapi"
	"github.com/intexuraos/agents/internal/providers/googlecal"
	"github.com/intexuraos/agents/internal/validation"
)

var createEventSchema = validation.MustCompile("calendar-event-create", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["summary", "start", "end"],
	"additionalProperties": false,
	"properties": {
		"summary": {"type": "string", "minLength": 1, "maxLength": 500},
		"description": {"type": "string", "maxLength": 5000},
		"location": {"type": "string", "maxLength": 500},
		"start": {"type": "string", "format": "date-time"},
		"end": {"type": "string", "format": "date-time"}
	}
}`)

// Handler exposes the calendar agent endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the HTTP handler for the calendar agent.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Operations lists the endpoints for the OpenAPI document.
func (h *Handler) Operations() []openapi.Operation {
	return []openapi.Operation{
		{Method: http.MethodGet, Path: "/calendar/events", Summary: "List upcoming events"},
		{Method: http.MethodPost, Path: "/calendar/events", Summary: "Create an event", RequestSchema: createEventSchema},
	}
}

// Register mounts the routes.
func (h *Handler) Register(r *mux.Router, userAuth mux.MiddlewareFunc) {
	user := r.PathPrefix("/calendar").Subrouter()
	user.Use(userAuth)
	user.HandleFunc("/events", h.handleListEvents).Methods(http.MethodGet)
	user.HandleFunc("/events", h.handleCreateEvent).Methods(http.MethodPost)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	maxResults := 0
	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			httputil.WriteError(w, errors.Validation("maxResults must be an integer between 1 and 100"))
			return
		}
		maxResults = parsed
	}

	events, err := h.service.ListUpcoming(r.Context(), middleware.GetUserID(r.Context()), maxResults)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []googlecal.Event{}
	}
	httputil.WriteData(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := createEventSchema.Validate(body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req CreateEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, errors.Validation("start and end must be RFC 3339 timestamps"))
		return
	}

	event, err := h.service.CreateEvent(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("create calendar event failed")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, event)
}
