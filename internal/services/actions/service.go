// Package actions implements the action router: it classifies user input,
// records actions, hands them to the owning agent, and tracks status
// reported back by agents.
package actions

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/intexuraos/agents/internal/domain"
	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/storage"
)

// Service owns action routing rules.
type Service struct {
	store      storage.ActionStore
	classifier *Classifier
	forwarders map[action.Type]Forwarder
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewService builds the action router. Types without a forwarder complete
// immediately when created.
func NewService(store storage.ActionStore, classifier *Classifier, forwarders map[action.Type]Forwarder, logger *logging.Logger, m *metrics.Metrics) *Service {
	if forwarders == nil {
		forwarders = map[action.Type]Forwarder{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, classifier: classifier, forwarders: forwarders, logger: logger, metrics: m}
}

// Create classifies the input, records the action, and dispatches it to the
// owning agent. Dispatch failures are recorded on the action rather than
// failing the request: the router accepted the action.
func (s *Service) Create(ctx context.Context, userID, inputText string) (action.Action, error) {
	actionType := s.classifier.Classify(ctx, userID, inputText)

	act, err := s.store.CreateAction(ctx, action.Action{
		UserID:    userID,
		Type:      actionType,
		InputText: inputText,
		Status:    action.StatusCreated,
		StatusUpdates: []action.StatusUpdate{
			{Status: action.StatusCreated, At: time.Now().UTC()},
		},
	})
	if err != nil {
		return action.Action{}, errors.Downstream("create action", err)
	}
	s.recordTransition(string(act.Status))

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"action_id":   act.ID,
		"action_type": act.Type,
	})

	forwarder, ok := s.forwarders[act.Type]
	if !ok {
		// Nothing downstream owns this type; the router is the terminal.
		done, err := s.applyTransition(ctx, act, action.StatusCompleted, "recorded", nil)
		if err != nil {
			return act, nil
		}
		log.Info("action recorded")
		return done, nil
	}

	if err := forwarder.Forward(ctx, action.Event{
		EventType:  "action.created",
		ActionID:   act.ID,
		UserID:     act.UserID,
		ActionType: act.Type,
		InputText:  act.InputText,
	}); err != nil {
		log.WithError(err).Error("action dispatch failed")
		failed, markErr := s.applyTransition(ctx, act, action.StatusFailed, "dispatch failed", &domain.ErrorInfo{
			Code:    string(errors.CodeDownstream),
			Message: "dispatch to owning agent failed",
		})
		if markErr != nil {
			log.WithError(markErr).Error("mark action failed")
			return act, nil
		}
		return failed, nil
	}

	log.Info("action dispatched")
	return act, nil
}

// Get returns an action owned by userID. Another owner's action is reported
// as not found.
func (s *Service) Get(ctx context.Context, userID, id string) (action.Action, error) {
	act, err := s.store.GetAction(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return action.Action{}, errors.NotFound("action")
		}
		return action.Action{}, errors.Downstream("get action", err)
	}
	if act.UserID != userID {
		return action.Action{}, errors.NotFound("action")
	}
	return act, nil
}

// List returns the caller's actions, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]action.Action, error) {
	acts, err := s.store.ListActions(ctx, userID)
	if err != nil {
		return nil, errors.Downstream("list actions", err)
	}
	return acts, nil
}

// StatusUpdateRequest is a status report from an owning agent.
type StatusUpdateRequest struct {
	ActionID string            `json:"actionId"`
	Status   action.Status     `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Error    *domain.ErrorInfo `json:"error,omitempty"`
}

// UpdateStatus appends a status update. Reporting the action's current
// status again is treated as a redelivery and returns the action unchanged;
// backward transitions are rejected.
func (s *Service) UpdateStatus(ctx context.Context, req StatusUpdateRequest) (action.Action, error) {
	act, err := s.store.GetAction(ctx, req.ActionID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return action.Action{}, errors.NotFound("action")
		}
		return action.Action{}, errors.Downstream("get action", err)
	}

	if req.Status == act.Status {
		return act, nil
	}
	if !action.CanTransition(act.Status, req.Status) {
		return action.Action{}, errors.Unprocessable(
			fmt.Sprintf("cannot transition action from %s to %s", act.Status, req.Status))
	}

	updated, err := s.applyTransition(ctx, act, req.Status, req.Detail, req.Error)
	if err != nil {
		return action.Action{}, errors.Downstream("update action", err)
	}
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"action_id": updated.ID,
		"status":    updated.Status,
	}).Info("action status updated")
	return updated, nil
}

// HandleResearchEvent processes an action.created push delivery for a
// research action. Redeliveries of an action already past created return
// the stored action without forwarding again.
func (s *Service) HandleResearchEvent(ctx context.Context, event action.Event) (action.Action, error) {
	if event.ActionType != action.TypeResearch {
		return action.Action{}, errors.Unprocessable(
			fmt.Sprintf("research endpoint received %s action", event.ActionType))
	}

	act, err := s.store.GetAction(ctx, event.ActionID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return action.Action{}, errors.NotFound("action")
		}
		return action.Action{}, errors.Downstream("get action", err)
	}
	if act.Status != action.StatusCreated {
		s.recordDedup("actions_research_push", string(storage.DedupReturnExisting))
		return act, nil
	}

	forwarder, ok := s.forwarders[action.TypeResearch]
	if !ok {
		return action.Action{}, errors.Internal("no research agent configured", nil)
	}
	if err := forwarder.Forward(ctx, event); err != nil {
		return action.Action{}, errors.Downstream("forward to research agent failed", err)
	}

	updated, err := s.applyTransition(ctx, act, action.StatusProcessing, "handed to research agent", nil)
	if err != nil {
		return action.Action{}, errors.Downstream("update action", err)
	}
	return updated, nil
}

func (s *Service) applyTransition(ctx context.Context, act action.Action, to action.Status, detail string, errInfo *domain.ErrorInfo) (action.Action, error) {
	act.Status = to
	act.Error = errInfo
	act.StatusUpdates = append(act.StatusUpdates, action.StatusUpdate{
		Status: to,
		Detail: detail,
		At:     time.Now().UTC(),
	})
	updated, err := s.store.UpdateAction(ctx, act)
	if err != nil {
		return action.Action{}, err
	}
	s.recordTransition(string(to))
	return updated, nil
}

func (s *Service) recordDedup(endpoint, policy string) {
	if s.metrics != nil {
		s.metrics.RecordDedupHit(endpoint, policy)
	}
}

func (s *Service) recordTransition(status string) {
	if s.metrics != nil {
		s.metrics.RecordStatusTransition("action", status)
	}
}
