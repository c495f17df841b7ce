// Package research models long-running research jobs.
package research

import (
	"time"

	"github.com/intexuraos/agents/internal/domain"
)

// Status is the forward-only lifecycle state of a research job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CanTransition reports whether moving between statuses is a legal forward
// step.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Job is a research request processed asynchronously by the poller.
type Job struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	ActionID  string            `json:"actionId"`
	Query     string            `json:"query"`
	Model     string            `json:"model,omitempty"`
	Status    Status            `json:"status"`
	Report    string            `json:"report,omitempty"`
	Error     *domain.ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
