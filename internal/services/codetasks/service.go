// Package codetasks implements the code task agent: it records dispatched
// code work, enforces the one-live-task-per-prompt rule, and tracks status
// reported back by the execution backend.
package codetasks

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/intexuraos/agents/internal/domain"
	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
	"github.com/intexuraos/agents/internal/metrics"
	"github.com/intexuraos/agents/internal/storage"
)

// Dispatcher hands a created task to the execution backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, task codetask.CodeTask) error
}

// NopDispatcher accepts every task without forwarding it. Used when no
// execution backend is configured.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, codetask.CodeTask) error { return nil }

// FakeDispatcher records dispatched tasks for tests.
type FakeDispatcher struct {
	Tasks []codetask.CodeTask
	Err   error
}

func (d *FakeDispatcher) Dispatch(_ context.Context, task codetask.CodeTask) error {
	if d.Err != nil {
		return d.Err
	}
	d.Tasks = append(d.Tasks, task)
	return nil
}

// Service owns code task business rules.
type Service struct {
	store      storage.CodeTaskStore
	dispatcher Dispatcher
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewService builds a code task service. A nil dispatcher defaults to the
// no-op dispatcher.
func NewService(store storage.CodeTaskStore, dispatcher Dispatcher, logger *logging.Logger, m *metrics.Metrics) *Service {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, dispatcher: dispatcher, logger: logger, metrics: m}
}

// CreateRequest is the payload for dispatching a code task. The caller
// supplies the dedup hash; the action router derives it with
// codetask.PromptHash over the effective prompt.
type CreateRequest struct {
	UserID           string `json:"userId"`
	Prompt           string `json:"prompt"`
	SystemPromptHash string `json:"systemPromptHash"`
	Repository       string `json:"repository"`
	Branch           string `json:"branch,omitempty"`
}

// Create records and dispatches a code task. When a live task already exists
// for the same user and prompt hash, it fails with ACTIVE_TASK_EXISTS and
// the existing task id (the conflict dedup policy).
func (s *Service) Create(ctx context.Context, req CreateRequest) (codetask.CodeTask, error) {
	hash := req.SystemPromptHash

	existing, err := s.store.FindLiveCodeTask(ctx, req.UserID, hash)
	if err == nil {
		s.recordDedup("create_code_task", string(storage.DedupConflict))
		return codetask.CodeTask{}, errors.ActiveTaskExists(existing.ID)
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return codetask.CodeTask{}, errors.Downstream("look up live code task", err)
	}

	task, err := s.store.CreateCodeTask(ctx, codetask.CodeTask{
		UserID:           req.UserID,
		Prompt:           req.Prompt,
		SystemPromptHash: hash,
		Repository:       req.Repository,
		Branch:           req.Branch,
		Status:           codetask.StatusDispatched,
	})
	if err != nil {
		// A concurrent create can win the race between the find above and
		// the insert; the loser answers the same conflict.
		if stderrors.Is(err, storage.ErrDuplicate) {
			if winner, findErr := s.store.FindLiveCodeTask(ctx, req.UserID, hash); findErr == nil {
				s.recordDedup("create_code_task", string(storage.DedupConflict))
				return codetask.CodeTask{}, errors.ActiveTaskExists(winner.ID)
			}
		}
		return codetask.CodeTask{}, errors.Downstream("create code task", err)
	}
	s.recordTransition("code_task", string(task.Status))

	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("task_id", task.ID).Error("code task dispatch failed")
		failed, markErr := s.markFailed(ctx, task, "dispatch to execution backend failed")
		if markErr != nil {
			s.logger.WithContext(ctx).WithError(markErr).WithField("task_id", task.ID).Error("mark code task failed")
		}
		if failed.ID != "" {
			task = failed
		}
		return codetask.CodeTask{}, errors.Downstream("code task dispatch failed", err).
			WithDetails("taskId", task.ID)
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"task_id":    task.ID,
		"repository": task.Repository,
	}).Info("code task dispatched")
	return task, nil
}

// Get returns a task owned by userID. Tasks owned by someone else are
// reported as not found, never as forbidden.
func (s *Service) Get(ctx context.Context, userID, id string) (codetask.CodeTask, error) {
	task, err := s.store.GetCodeTask(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return codetask.CodeTask{}, errors.NotFound("code task")
		}
		return codetask.CodeTask{}, errors.Downstream("get code task", err)
	}
	if task.UserID != userID {
		return codetask.CodeTask{}, errors.NotFound("code task")
	}
	return task, nil
}

// List returns the caller's tasks, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]codetask.CodeTask, error) {
	tasks, err := s.store.ListCodeTasks(ctx, userID)
	if err != nil {
		return nil, errors.Downstream("list code tasks", err)
	}
	return tasks, nil
}

// StatusUpdateRequest is the payload reported by the execution backend.
type StatusUpdateRequest struct {
	Status    codetask.Status   `json:"status"`
	ResultURL string            `json:"resultUrl,omitempty"`
	Error     *domain.ErrorInfo `json:"error,omitempty"`
}

// UpdateStatus applies a status report from the execution backend. Backward
// transitions are rejected as unprocessable.
func (s *Service) UpdateStatus(ctx context.Context, id string, req StatusUpdateRequest) (codetask.CodeTask, error) {
	task, err := s.store.GetCodeTask(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return codetask.CodeTask{}, errors.NotFound("code task")
		}
		return codetask.CodeTask{}, errors.Downstream("get code task", err)
	}

	if !codetask.CanTransition(task.Status, req.Status) {
		return codetask.CodeTask{}, errors.Unprocessable(
			fmt.Sprintf("cannot transition code task from %s to %s", task.Status, req.Status))
	}

	task.Status = req.Status
	task.ResultURL = req.ResultURL
	task.Error = req.Error
	updated, err := s.store.UpdateCodeTask(ctx, task)
	if err != nil {
		return codetask.CodeTask{}, errors.Downstream("update code task", err)
	}
	s.recordTransition("code_task", string(updated.Status))
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"task_id": updated.ID,
		"status":  updated.Status,
	}).Info("code task status updated")
	return updated, nil
}

// Retry re-dispatches a failed task as a fresh task with the same prompt.
// The dedup index permits it because the failed task is no longer live.
func (s *Service) Retry(ctx context.Context, userID, id string) (codetask.CodeTask, error) {
	task, err := s.Get(ctx, userID, id)
	if err != nil {
		return codetask.CodeTask{}, err
	}
	if task.Status != codetask.StatusFailed {
		return codetask.CodeTask{}, errors.Unprocessable(
			fmt.Sprintf("only failed code tasks can be retried, task is %s", task.Status))
	}

	replacement, err := s.store.CreateCodeTask(ctx, codetask.CodeTask{
		UserID:           task.UserID,
		Prompt:           task.Prompt,
		SystemPromptHash: task.SystemPromptHash,
		Repository:       task.Repository,
		Branch:           task.Branch,
		Status:           codetask.StatusDispatched,
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			if winner, findErr := s.store.FindLiveCodeTask(ctx, task.UserID, task.SystemPromptHash); findErr == nil {
				s.recordDedup("retry_code_task", string(storage.DedupConflict))
				return codetask.CodeTask{}, errors.ActiveTaskExists(winner.ID)
			}
		}
		return codetask.CodeTask{}, errors.Downstream("create retry code task", err)
	}
	s.recordTransition("code_task", string(replacement.Status))

	if err := s.dispatcher.Dispatch(ctx, replacement); err != nil {
		if _, markErr := s.markFailed(ctx, replacement, "dispatch to execution backend failed"); markErr != nil {
			s.logger.WithContext(ctx).WithError(markErr).WithField("task_id", replacement.ID).Error("mark code task failed")
		}
		return codetask.CodeTask{}, errors.Downstream("code task dispatch failed", err).
			WithDetails("taskId", replacement.ID)
	}
	return replacement, nil
}

func (s *Service) markFailed(ctx context.Context, task codetask.CodeTask, message string) (codetask.CodeTask, error) {
	task.Status = codetask.StatusFailed
	task.Error = &domain.ErrorInfo{Code: string(errors.CodeDownstream), Message: message}
	updated, err := s.store.UpdateCodeTask(ctx, task)
	if err != nil {
		return codetask.CodeTask{}, err
	}
	s.recordTransition("code_task", string(updated.Status))
	return updated, nil
}

func (s *Service) recordDedup(endpoint, policy string) {
	if s.metrics != nil {
		s.metrics.RecordDedupHit(endpoint, policy)
	}
}

func (s *Service) recordTransition(entity, status string) {
	if s.metrics != nil {
		s.metrics.RecordStatusTransition(entity, status)
	}
}
