// Package linearsvc implements the Linear agent: per-user connection
// management, issue listing grouped by workflow state, and issue creation
// from routed actions with a retryable failure record.
package linearsvc

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/intexuraos/agents/internal/domain"
	"github.com/intexuraos/agents/internal/domain/linear"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/providers"
	"github.com/intexuraos/agents/internal/storage"
)

// API is the slice of the Linear GraphQL adapter the service needs. Tests
// substitute a fake.
type API interface {
	ListIssues(ctx context.Context, apiToken string) ([]linear.Issue, error)
	CreateIssue(ctx context.Context, apiToken, teamID, title, description string) (id, issueURL string, err error)
}

// Service owns the Linear agent rules.
type Service struct {
	store   storage.LinearStore
	api     API
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewService builds the Linear agent service.
func NewService(store storage.LinearStore, api API, logger *logging.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, api: api, logger: logger, metrics: m}
}

// SaveConnection stores or replaces the user's API token.
func (s *Service) SaveConnection(ctx context.Context, userID, apiToken, teamID string) (linear.Connection, error) {
	conn, err := s.store.UpsertLinearConnection(ctx, linear.Connection{
		UserID:   userID,
		APIToken: apiToken,
		TeamID:   teamID,
	})
	if err != nil {
		return linear.Connection{}, errors.Downstream("save linear connection", err)
	}
	s.logger.WithContext(ctx).Info("linear connection saved")
	return conn, nil
}

// GetConnection returns the user's connection. The token itself never
// serializes; callers see only that a connection exists.
func (s *Service) GetConnection(ctx context.Context, userID string) (linear.Connection, error) {
	conn, err := s.store.GetLinearConnection(ctx, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return linear.Connection{}, errors.NotFound("linear connection")
		}
		return linear.Connection{}, errors.Downstream("get linear connection", err)
	}
	return conn, nil
}

// DeleteConnection removes the user's connection.
func (s *Service) DeleteConnection(ctx context.Context, userID string) error {
	if err := s.store.DeleteLinearConnection(ctx, userID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("linear connection")
		}
		return errors.Downstream("delete linear connection", err)
	}
	return nil
}

// ListIssuesGrouped fetches the user's issues and groups them by workflow
// state name. A missing connection is a FORBIDDEN, not a NOT_FOUND: the
// route exists, the user has not connected Linear.
func (s *Service) ListIssuesGrouped(ctx context.Context, userID string) (map[string][]linear.Issue, error) {
	conn, err := s.store.GetLinearConnection(ctx, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.Forbidden("no Linear connection configured")
		}
		return nil, errors.Downstream("get linear connection", err)
	}

	issues, err := s.api.ListIssues(ctx, conn.APIToken)
	if err != nil {
		s.recordProviderCall(err)
		return nil, providers.ToServiceError(err)
	}
	s.recordProviderCall(nil)

	grouped := make(map[string][]linear.Issue)
	for _, issue := range issues {
		state := issue.State
		if state == "" {
			state = "Unknown"
		}
		grouped[state] = append(grouped[state], issue)
	}
	return grouped, nil
}

// ProcessActionRequest is an issue-creation request from the action router.
type ProcessActionRequest struct {
	ActionID    string `json:"actionId"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ProcessActionResult reports what processing an action produced.
type ProcessActionResult struct {
	IssueLink     *linear.IssueLink   `json:"issueLink,omitempty"`
	FailedIssue   *linear.FailedIssue `json:"failedIssue,omitempty"`
	AlreadyLinked bool                `json:"alreadyLinked"`
}

// ProcessAction creates a Linear issue for an action. Redelivery of an
// already-processed action returns the existing link. A provider failure is
// recorded as a FailedIssue for later retry and reported as the translated
// provider error.
func (s *Service) ProcessAction(ctx context.Context, req ProcessActionRequest) (ProcessActionResult, error) {
	if existing, err := s.store.FindIssueLinkByAction(ctx, req.UserID, req.ActionID); err == nil {
		s.recordDedup("linear_process_action")
		return ProcessActionResult{IssueLink: &existing, AlreadyLinked: true}, nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return ProcessActionResult{}, errors.Downstream("look up issue link", err)
	}

	result, serviceErr := s.createIssueAndLink(ctx, req)
	if serviceErr == nil {
		return result, nil
	}
	if serviceErr.Code == errors.CodeForbidden || serviceErr.Code == errors.CodeInternal {
		return ProcessActionResult{}, serviceErr
	}

	failed, recordErr := s.store.CreateFailedIssue(ctx, linear.FailedIssue{
		UserID:      req.UserID,
		ActionID:    req.ActionID,
		Title:       req.Title,
		Description: req.Description,
		Status:      linear.FailedIssueStatusFailed,
		Error: &domain.ErrorInfo{
			Code:    string(serviceErr.Code),
			Message: serviceErr.Message,
		},
	})
	if recordErr != nil {
		s.logger.WithContext(ctx).WithError(recordErr).Error("record failed issue")
		return ProcessActionResult{}, serviceErr
	}
	s.recordTransition(string(linear.FailedIssueStatusFailed))
	s.logger.WithContext(ctx).WithField("failed_issue_id", failed.ID).Warn("linear issue creation failed, recorded for retry")
	return ProcessActionResult{FailedIssue: &failed}, serviceErr
}

// ListFailedIssues returns the caller's failed issue records, newest first.
func (s *Service) ListFailedIssues(ctx context.Context, userID string) ([]linear.FailedIssue, error) {
	failed, err := s.store.ListFailedIssues(ctx, userID)
	if err != nil {
		return nil, errors.Downstream("list failed issues", err)
	}
	return failed, nil
}

// RetryFailedIssue re-attempts the issue creation behind a failed record.
// Success transitions the record to recovered and links the issue. Another
// failure updates the record's error in place instead of stacking a second
// record.
func (s *Service) RetryFailedIssue(ctx context.Context, userID, id string) (ProcessActionResult, error) {
	rec, err := s.store.GetFailedIssue(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return ProcessActionResult{}, errors.NotFound("failed issue")
		}
		return ProcessActionResult{}, errors.Downstream("get failed issue", err)
	}
	if rec.UserID != userID {
		return ProcessActionResult{}, errors.NotFound("failed issue")
	}
	if rec.Status != linear.FailedIssueStatusFailed {
		return ProcessActionResult{}, errors.Unprocessable(
			fmt.Sprintf("failed issue is %s, only failed records can be retried", rec.Status))
	}

	req := ProcessActionRequest{
		ActionID:    rec.ActionID,
		UserID:      rec.UserID,
		Title:       rec.Title,
		Description: rec.Description,
	}

	var result ProcessActionResult
	if existing, findErr := s.store.FindIssueLinkByAction(ctx, req.UserID, req.ActionID); findErr == nil {
		result = ProcessActionResult{IssueLink: &existing, AlreadyLinked: true}
	} else if !stderrors.Is(findErr, storage.ErrNotFound) {
		return ProcessActionResult{}, errors.Downstream("look up issue link", findErr)
	} else {
		var serviceErr *errors.ServiceError
		result, serviceErr = s.createIssueAndLink(ctx, req)
		if serviceErr != nil {
			rec.Error = &domain.ErrorInfo{Code: string(serviceErr.Code), Message: serviceErr.Message}
			if _, updateErr := s.store.UpdateFailedIssue(ctx, rec); updateErr != nil {
				s.logger.WithContext(ctx).WithError(updateErr).Error("update failed issue")
			}
			return ProcessActionResult{FailedIssue: &rec}, serviceErr
		}
	}

	rec.Status = linear.FailedIssueStatusRecovered
	rec.Error = nil
	if _, err := s.store.UpdateFailedIssue(ctx, rec); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("mark failed issue recovered")
	}
	s.recordTransition(string(linear.FailedIssueStatusRecovered))
	return result, nil
}

// createIssueAndLink runs the provider call and records the issue link.
func (s *Service) createIssueAndLink(ctx context.Context, req ProcessActionRequest) (ProcessActionResult, *errors.ServiceError) {
	conn, err := s.store.GetLinearConnection(ctx, req.UserID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return ProcessActionResult{}, errors.Forbidden("no Linear connection configured")
		}
		return ProcessActionResult{}, errors.Downstream("get linear connection", err)
	}

	issueID, issueURL, err := s.api.CreateIssue(ctx, conn.APIToken, conn.TeamID, req.Title, req.Description)
	if err != nil {
		s.recordProviderCall(err)
		return ProcessActionResult{}, providers.ToServiceError(err)
	}
	s.recordProviderCall(nil)

	link, err := s.store.CreateIssueLink(ctx, linear.IssueLink{
		UserID:   req.UserID,
		ActionID: req.ActionID,
		IssueID:  issueID,
		IssueURL: issueURL,
	})
	if err != nil {
		// A redelivery racing this call can land the link first.
		if existing, findErr := s.store.FindIssueLinkByAction(ctx, req.UserID, req.ActionID); findErr == nil {
			s.recordDedup("linear_process_action")
			return ProcessActionResult{IssueLink: &existing, AlreadyLinked: true}, nil
		}
		return ProcessActionResult{}, errors.Downstream("record issue link", err)
	}
	s.logger.WithContext(ctx).WithField("issue_id", issueID).Info("linear issue created")
	return ProcessActionResult{IssueLink: &link}, nil
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
	s.metrics.RecordProviderCall("linear", code)
}

func (s *Service) recordDedup(endpoint string) {
	if s.metrics != nil {
		s.metrics.RecordDedupHit(endpoint, string(storage.DedupReturnExisting))
	}
}

func (s *Service) recordTransition(status string) {
	if s.metrics != nil {
		s.metrics.RecordStatusTransition("failed_issue", status)
	}
}
