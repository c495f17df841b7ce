// Package storage defines the persistence interfaces consumed by the agent
// services. Two implementations exist: memory (tests, local development) and
// postgres (production).
package storage

import (
	"context"
	"errors"

	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/domain/linear"
	"github.com/intexuraos/agents/internal/domain/promptvault"
	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/domain/visualization"
)

// ErrNotFound is returned when a record does not exist. Services translate
// it (and ownership mismatches) into a NOT_FOUND service error.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by a create when a live record already covers the
// dedup key: the caller lost the race to a concurrent create. Services
// resolve the winner with the matching find operation and answer according
// to the endpoint's dedup policy.
var ErrDuplicate = errors.New("duplicate record")

// DedupPolicy is the documented behavior of an endpoint when the dedup key
// already has a live record. It is an explicit per-endpoint parameter.
type DedupPolicy string

const (
	// DedupReturnExisting treats a duplicate as success and returns the
	// existing record.
	DedupReturnExisting DedupPolicy = "return_existing"

	// DedupConflict rejects a duplicate with 409 and the existing id.
	DedupConflict DedupPolicy = "conflict"
)

// ActionStore persists actions. Records are always scoped to their owner.
type ActionStore interface {
	CreateAction(ctx context.Context, act action.Action) (action.Action, error)
	UpdateAction(ctx context.Context, act action.Action) (action.Action, error)
	GetAction(ctx context.Context, id string) (action.Action, error)
	ListActions(ctx context.Context, userID string) ([]action.Action, error)
}

// CodeTaskStore persists code tasks and enforces the dedup lookup.
type CodeTaskStore interface {
	CreateCodeTask(ctx context.Context, task codetask.CodeTask) (codetask.CodeTask, error)
	UpdateCodeTask(ctx context.Context, task codetask.CodeTask) (codetask.CodeTask, error)
	GetCodeTask(ctx context.Context, id string) (codetask.CodeTask, error)
	ListCodeTasks(ctx context.Context, userID string) ([]codetask.CodeTask, error)

	// FindLiveCodeTask returns the live (dispatched or processing) task for
	// the owner and prompt hash, or ErrNotFound.
	FindLiveCodeTask(ctx context.Context, userID, systemPromptHash string) (codetask.CodeTask, error)
}

// LinearStore persists Linear connections, issue links, and failed issues.
type LinearStore interface {
	UpsertLinearConnection(ctx context.Context, conn linear.Connection) (linear.Connection, error)
	GetLinearConnection(ctx context.Context, userID string) (linear.Connection, error)
	DeleteLinearConnection(ctx context.Context, userID string) error

	CreateIssueLink(ctx context.Context, link linear.IssueLink) (linear.IssueLink, error)
	FindIssueLinkByAction(ctx context.Context, userID, actionID string) (linear.IssueLink, error)

	CreateFailedIssue(ctx context.Context, rec linear.FailedIssue) (linear.FailedIssue, error)
	UpdateFailedIssue(ctx context.Context, rec linear.FailedIssue) (linear.FailedIssue, error)
	GetFailedIssue(ctx context.Context, id string) (linear.FailedIssue, error)
	ListFailedIssues(ctx context.Context, userID string) ([]linear.FailedIssue, error)
}

// ResearchStore persists research jobs.
type ResearchStore interface {
	CreateResearchJob(ctx context.Context, job research.Job) (research.Job, error)
	UpdateResearchJob(ctx context.Context, job research.Job) (research.Job, error)
	GetResearchJob(ctx context.Context, id string) (research.Job, error)
	ListResearchJobs(ctx context.Context, userID string) ([]research.Job, error)
	FindResearchJobByAction(ctx context.Context, userID, actionID string) (research.Job, error)

	// ClaimPendingResearchJobs atomically moves up to limit pending jobs to
	// processing and returns them. A job is returned to at most one caller.
	ClaimPendingResearchJobs(ctx context.Context, limit int) ([]research.Job, error)
}

// NotionConnectionStore persists promptvault Notion connections.
type NotionConnectionStore interface {
	UpsertNotionConnection(ctx context.Context, conn promptvault.Connection) (promptvault.Connection, error)
	GetNotionConnection(ctx context.Context, userID string) (promptvault.Connection, error)
	DeleteNotionConnection(ctx context.Context, userID string) error
}

// VisualizationStore persists visualizations.
type VisualizationStore interface {
	CreateVisualization(ctx context.Context, vis visualization.Visualization) (visualization.Visualization, error)
	UpdateVisualization(ctx context.Context, vis visualization.Visualization) (visualization.Visualization, error)
	GetVisualization(ctx context.Context, id string) (visualization.Visualization, error)
	ListVisualizations(ctx context.Context, userID string) ([]visualization.Visualization, error)
	DeleteVisualization(ctx context.Context, id string) error
}
