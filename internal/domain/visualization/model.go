// Package visualization models generated data visualizations.
package visualization

import (
	"encoding/json"
	"time"

	"github.com/intexuraos/agents/internal/domain"
)

// Status is the lifecycle state of a visualization.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Visualization is a chart generated from user-supplied tabular data.
type Visualization struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Title     string            `json:"title"`
	Rows      json.RawMessage   `json:"rows,omitempty"`
	ChartSpec json.RawMessage   `json:"chartSpec,omitempty"`
	Status    Status            `json:"status"`
	Error     *domain.ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
