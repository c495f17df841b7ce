// Package calendar implements the calendar agent over the user's Google
// Calendar, using credentials held by the user service.
package calendar

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/intexuraos/agents/internal/clients/userservice"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/providers"
	"github.com/intexuraos/agents/internal/providers/googlecal"
)

// CalendarAPI is the slice of the Google Calendar adapter the service needs.
type CalendarAPI interface {
	ListUpcoming(ctx context.Context, accessToken string, maxResults int) ([]googlecal.Event, error)
	CreateEvent(ctx context.Context, accessToken string, event googlecal.Event) (googlecal.Event, error)
}

// Service owns the calendar agent rules.
type Service struct {
	api     CalendarAPI
	users   userservice.Client
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewService builds the calendar agent service.
func NewService(api CalendarAPI, users userservice.Client, logger *logging.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{api: api, users: users, logger: logger, metrics: m}
}

// accessToken resolves the user's Google token. A user without one gets a
// FORBIDDEN: the account exists but is not connected to Google.
func (s *Service) accessToken(ctx context.Context, userID string) (string, error) {
	creds, err := s.users.GetCredentials(ctx, userID)
	if err != nil {
		return "", errors.Downstream("fetch user credentials", err)
	}
	if creds.GoogleAccessToken == "" {
		return "", errors.Forbidden("no Google account connected")
	}
	return creds.GoogleAccessToken, nil
}

// ListUpcoming returns the user's upcoming events.
func (s *Service) ListUpcoming(ctx context.Context, userID string, maxResults int) ([]googlecal.Event, error) {
	token, err := s.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	events, err := s.api.ListUpcoming(ctx, token, maxResults)
	if err != nil {
		s.recordProviderCall(err)
		return nil, providers.ToServiceError(err)
	}
	s.recordProviderCall(nil)
	return events, nil
}

// CreateEventRequest is the payload for creating an event.
type CreateEventRequest struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// CreateEvent creates an event on the user's primary calendar. An end not
// after the start is semantically invalid.
func (s *Service) CreateEvent(ctx context.Context, userID string, req CreateEventRequest) (googlecal.Event, error) {
	if !req.End.After(req.Start) {
		return googlecal.Event{}, errors.Unprocessable("event end must be after its start")
	}

	token, err := s.accessToken(ctx, userID)
	if err != nil {
		return googlecal.Event{}, err
	}

	created, err := s.api.CreateEvent(ctx, token, googlecal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		s.recordProviderCall(err)
		return googlecal.Event{}, providers.ToServiceError(err)
	}
	s.recordProviderCall(nil)

	s.logger.WithContext(ctx).WithField("event_id", created.ID).Info("calendar event created")
	return created, nil
}

func (s *Service) recordProviderCall(err error) {
	if s.metrics == nil {
		return
	}
	code := "ok"
	var perr *providers.Error
	if stderrors.As(err, &perr) {
		code = string(perr.Code)
	} else if err != nil {
		code = string(providers.CodeInternalError)
	}
	s.metrics.RecordProviderCall("google-calendar", code)
}
