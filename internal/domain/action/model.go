// Package action models user actions routed between agent services.
package action

import (
	"time"

	"github.com/intexuraos/agents/internal/domain"
)

// Type classifies what kind of work an action requests.
type Type string

const (
	TypeResearch Type = "research"
	TypeCode     Type = "code"
	TypeLinear   Type = "linear"
	TypeCalendar Type = "calendar"
	TypeNote     Type = "note"
)

// ValidTypes lists every routable action type.
var ValidTypes = []Type{TypeResearch, TypeCode, TypeLinear, TypeCalendar, TypeNote}

// IsValidType reports whether t is a known action type.
func IsValidType(t Type) bool {
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Status is the forward-only lifecycle state of an action.
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CanTransition reports whether moving from one status to another is a legal
// forward step.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// StatusUpdate is one entry in an action's status history.
type StatusUpdate struct {
	Status Status    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Action is a routed user request.
type Action struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	Type          Type              `json:"actionType"`
	InputText     string            `json:"inputText"`
	Status        Status            `json:"status"`
	StatusUpdates []StatusUpdate    `json:"statusUpdates,omitempty"`
	Error         *domain.ErrorInfo `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Event is the action.created payload published to downstream agents.
type Event struct {
	EventType  string `json:"eventType"`
	ActionID   string `json:"actionId"`
	UserID     string `json:"userId"`
	ActionType Type   `json:"actionType"`
	InputText  string `json:"inputText"`
}
