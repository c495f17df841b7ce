// Package memory is an in-memory implementation of the storage interfaces.
// It is safe for concurrent use and is primarily intended for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/domain/linear"
	"github.com/intexuraos/agents/internal/domain/promptvault"
	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/domain/visualization"
	"github.com/intexuraos/agents/internal/storage"
)

// Store holds every collection behind one mutex.
type Store struct {
	mu sync.RWMutex

	actions           map[string]action.Action
	codeTasks         map[string]codetask.CodeTask
	linearConnections map[string]linear.Connection // keyed by user id
	issueLinks        map[string]linear.IssueLink
	failedIssues      map[string]linear.FailedIssue
	researchJobs      map[string]research.Job
	notionConnections map[string]promptvault.Connection // keyed by user id
	visualizations    map[string]visualization.Visualization
}

var _ storage.ActionStore = (*Store)(nil)
var _ storage.CodeTaskStore = (*Store)(nil)
var _ storage.LinearStore = (*Store)(nil)
var _ storage.ResearchStore = (*Store)(nil)
var _ storage.NotionConnectionStore = (*Store)(nil)
var _ storage.VisualizationStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		actions:           make(map[string]action.Action),
		codeTasks:         make(map[string]codetask.CodeTask),
		linearConnections: make(map[string]linear.Connection),
		issueLinks:        make(map[string]linear.IssueLink),
		failedIssues:      make(map[string]linear.FailedIssue),
		researchJobs:      make(map[string]research.Job),
		notionConnections: make(map[string]promptvault.Connection),
		visualizations:    make(map[string]visualization.Visualization),
	}
}

// ActionStore implementation -------------------------------------------------

func (s *Store) CreateAction(_ context.Context, act action.Action) (action.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	act.ID = uuid.NewString()
	now := time.Now().UTC()
	act.CreatedAt = now
	act.UpdatedAt = now
	s.actions[act.ID] = act
	return act, nil
}

func (s *Store) UpdateAction(_ context.Context, act action.Action) (action.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.actions[act.ID]
	if !ok {
		return action.Action{}, storage.ErrNotFound
	}
	act.CreatedAt = existing.CreatedAt
	act.UpdatedAt = time.Now().UTC()
	s.actions[act.ID] = act
	return act, nil
}

func (s *Store) GetAction(_ context.Context, id string) (action.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	act, ok := s.actions[id]
	if !ok {
		return action.Action{}, storage.ErrNotFound
	}
	return act, nil
}

func (s *Store) ListActions(_ context.Context, userID string) ([]action.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []action.Action
	for _, act := range s.actions {
		if act.UserID == userID {
			out = append(out, act)
		}
	}
	sortByCreatedDesc(out, func(a action.Action) time.Time { return a.CreatedAt })
	return out, nil
}

// CodeTaskStore implementation -----------------------------------------------

func (s *Store) CreateCodeTask(_ context.Context, task codetask.CodeTask) (codetask.CodeTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The uniqueness check has to happen under the same lock as the insert,
	// or two identical concurrent creates could both pass a prior find and
	// leave two live rows.
	for _, existing := range s.codeTasks {
		if existing.UserID != task.UserID || existing.SystemPromptHash != task.SystemPromptHash {
			continue
		}
		for _, live := range codetask.LiveStatuses {
			if existing.Status == live {
				return codetask.CodeTask{}, storage.ErrDuplicate
			}
		}
	}

	task.ID = uuid.NewString()
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.codeTasks[task.ID] = task
	return task, nil
}

func (s *Store) UpdateCodeTask(_ context.Context, task codetask.CodeTask) (codetask.CodeTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.codeTasks[task.ID]
	if !ok {
		return codetask.CodeTask{}, storage.ErrNotFound
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now().UTC()
	s.codeTasks[task.ID] = task
	return task, nil
}

func (s *Store) GetCodeTask(_ context.Context, id string) (codetask.CodeTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.codeTasks[id]
	if !ok {
		return codetask.CodeTask{}, storage.ErrNotFound
	}
	return task, nil
}

func (s *Store) ListCodeTasks(_ context.Context, userID string) ([]codetask.CodeTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []codetask.CodeTask
	for _, task := range s.codeTasks {
		if task.UserID == userID {
			out = append(out, task)
		}
	}
	sortByCreatedDesc(out, func(t codetask.CodeTask) time.Time { return t.CreatedAt })
	return out, nil
}

func (s *Store) FindLiveCodeTask(_ context.Context, userID, systemPromptHash string) (codetask.CodeTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, task := range s.codeTasks {
		if task.UserID != userID || task.SystemPromptHash != systemPromptHash {
			continue
		}
		for _, live := range codetask.LiveStatuses {
			if task.Status == live {
				return task, nil
			}
		}
	}
	return codetask.CodeTask{}, storage.ErrNotFound
}

// LinearStore implementation -------------------------------------------------

func (s *Store) UpsertLinearConnection(_ context.Context, conn linear.Connection) (linear.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.linearConnections[conn.UserID]; ok {
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
	} else {
		conn.ID = uuid.NewString()
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	s.linearConnections[conn.UserID] = conn
	return conn, nil
}

func (s *Store) GetLinearConnection(_ context.Context, userID string) (linear.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.linearConnections[userID]
	if !ok {
		return linear.Connection{}, storage.ErrNotFound
	}
	return conn, nil
}

func (s *Store) DeleteLinearConnection(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.linearConnections[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.linearConnections, userID)
	return nil
}

func (s *Store) CreateIssueLink(_ context.Context, link linear.IssueLink) (linear.IssueLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link.ID = uuid.NewString()
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	s.issueLinks[link.ID] = link
	return link, nil
}

func (s *Store) FindIssueLinkByAction(_ context.Context, userID, actionID string) (linear.IssueLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, link := range s.issueLinks {
		if link.UserID == userID && link.ActionID == actionID {
			return link, nil
		}
	}
	return linear.IssueLink{}, storage.ErrNotFound
}

func (s *Store) CreateFailedIssue(_ context.Context, rec linear.FailedIssue) (linear.FailedIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = uuid.NewString()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.failedIssues[rec.ID] = rec
	return rec, nil
}

func (s *Store) UpdateFailedIssue(_ context.Context, rec linear.FailedIssue) (linear.FailedIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.failedIssues[rec.ID]
	if !ok {
		return linear.FailedIssue{}, storage.ErrNotFound
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	s.failedIssues[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetFailedIssue(_ context.Context, id string) (linear.FailedIssue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.failedIssues[id]
	if !ok {
		return linear.FailedIssue{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) ListFailedIssues(_ context.Context, userID string) ([]linear.FailedIssue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []linear.FailedIssue
	for _, rec := range s.failedIssues {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sortByCreatedDesc(out, func(r linear.FailedIssue) time.Time { return r.CreatedAt })
	return out, nil
}

// ResearchStore implementation -----------------------------------------------

func (s *Store) CreateResearchJob(_ context.Context, job research.Job) (research.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.researchJobs {
		if existing.UserID == job.UserID && existing.ActionID == job.ActionID {
			return research.Job{}, storage.ErrDuplicate
		}
	}

	job.ID = uuid.NewString()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.researchJobs[job.ID] = job
	return job, nil
}

func (s *Store) UpdateResearchJob(_ context.Context, job research.Job) (research.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.researchJobs[job.ID]
	if !ok {
		return research.Job{}, storage.ErrNotFound
	}
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	s.researchJobs[job.ID] = job
	return job, nil
}

func (s *Store) GetResearchJob(_ context.Context, id string) (research.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.researchJobs[id]
	if !ok {
		return research.Job{}, storage.ErrNotFound
	}
	return job, nil
}

func (s *Store) ListResearchJobs(_ context.Context, userID string) ([]research.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []research.Job
	for _, job := range s.researchJobs {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	sortByCreatedDesc(out, func(j research.Job) time.Time { return j.CreatedAt })
	return out, nil
}

func (s *Store) FindResearchJobByAction(_ context.Context, userID, actionID string) (research.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.researchJobs {
		if job.UserID == userID && job.ActionID == actionID {
			return job, nil
		}
	}
	return research.Job{}, storage.ErrNotFound
}

func (s *Store) ClaimPendingResearchJobs(_ context.Context, limit int) ([]research.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []research.Job
	now := time.Now().UTC()
	for id, job := range s.researchJobs {
		if len(claimed) >= limit {
			break
		}
		if job.Status != research.StatusPending {
			continue
		}
		job.Status = research.StatusProcessing
		job.UpdatedAt = now
		s.researchJobs[id] = job
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// NotionConnectionStore implementation ---------------------------------------

func (s *Store) UpsertNotionConnection(_ context.Context, conn promptvault.Connection) (promptvault.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.notionConnections[conn.UserID]; ok {
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
	} else {
		conn.ID = uuid.NewString()
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	s.notionConnections[conn.UserID] = conn
	return conn, nil
}

func (s *Store) GetNotionConnection(_ context.Context, userID string) (promptvault.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.notionConnections[userID]
	if !ok {
		return promptvault.Connection{}, storage.ErrNotFound
	}
	return conn, nil
}

func (s *Store) DeleteNotionConnection(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notionConnections[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.notionConnections, userID)
	return nil
}

// VisualizationStore implementation ------------------------------------------

func (s *Store) CreateVisualization(_ context.Context, vis visualization.Visualization) (visualization.Visualization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vis.ID = uuid.NewString()
	now := time.Now().UTC()
	vis.CreatedAt = now
	vis.UpdatedAt = now
	s.visualizations[vis.ID] = vis
	return vis, nil
}

func (s *Store) UpdateVisualization(_ context.Context, vis visualization.Visualization) (visualization.Visualization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.visualizations[vis.ID]
	if !ok {
		return visualization.Visualization{}, storage.ErrNotFound
	}
	vis.CreatedAt = existing.CreatedAt
	vis.UpdatedAt = time.Now().UTC()
	s.visualizations[vis.ID] = vis
	return vis, nil
}

func (s *Store) GetVisualization(_ context.Context, id string) (visualization.Visualization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vis, ok := s.visualizations[id]
	if !ok {
		return visualization.Visualization{}, storage.ErrNotFound
	}
	return vis, nil
}

func (s *Store) ListVisualizations(_ context.Context, userID string) ([]visualization.Visualization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []visualization.Visualization
	for _, vis := range s.visualizations {
		if vis.UserID == userID {
			out = append(out, vis)
		}
	}
	sortByCreatedDesc(out, func(v visualization.Visualization) time.Time { return v.CreatedAt })
	return out, nil
}

func (s *Store) DeleteVisualization(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visualizations[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.visualizations, id)
	return nil
}

// sortByCreatedDesc orders records newest first with a stable tiebreak.
func sortByCreatedDesc[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
