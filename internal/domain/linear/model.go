// Package linear models Linear connections and issue records.
package linear

import (
	"time"

	"github.com/intexuraos/agents/internal/domain"
)

// Connection stores a user's Linear API credential.
type Connection struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	APIToken  string    `json:"-"`
	TeamID    string    `json:"teamId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IssueLink records an issue created from an action. Its presence is the
// dedup marker: one issue per (user, action).
type IssueLink struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ActionID  string    `json:"actionId"`
	IssueID   string    `json:"issueId"`
	IssueURL  string    `json:"issueUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FailedIssueStatus is the lifecycle of a failed issue creation.
type FailedIssueStatus string

const (
	FailedIssueStatusFailed    FailedIssueStatus = "failed"
	FailedIssueStatusRecovered FailedIssueStatus = "recovered"
)

// FailedIssue records an issue creation that failed against the Linear API,
// kept so the user can retry it.
type FailedIssue struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	ActionID    string            `json:"actionId"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      FailedIssueStatus `json:"status"`
	Error       *domain.ErrorInfo `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Issue is a Linear issue as returned to callers.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	State      string `json:"state"`
}
