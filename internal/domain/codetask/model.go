// Package codetask models dispatched code tasks.
package codetask

import (
	"time"

	"github.com/intexuraos/agents/internal/domain"
)

// Status is the forward-only lifecycle state of a code task.
type Status string

const (
	StatusDispatched Status = "dispatched"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// LiveStatuses are the states that count toward the one-active-task-per-key
// idempotency check.
var LiveStatuses = []Status{StatusDispatched, StatusProcessing}

// CanTransition reports whether moving between statuses is a legal forward
// step.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDispatched:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// CodeTask is a unit of code work handed to the execution backend.
type CodeTask struct {
	ID               string            `json:"id"`
	UserID           string            `json:"userId"`
	Prompt           string            `json:"prompt"`
	SystemPromptHash string            `json:"systemPromptHash"`
	Repository       string            `json:"repository"`
	Branch           string            `json:"branch,omitempty"`
	Status           Status            `json:"status"`
	ResultURL        string            `json:"resultUrl,omitempty"`
	Error            *domain.ErrorInfo `json:"error,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}
