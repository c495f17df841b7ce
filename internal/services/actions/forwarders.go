package actions

import (
	"context"

	"github.com/intexuraos/agents/internal/domain/action"
	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/httputil"
)

// Forwarder hands an action.created event to the agent that owns the action
// type.
type Forwarder interface {
	Forward(ctx context.Context, event action.Event) error
}

// ForwarderFunc adapts a function to the Forwarder interface.
type ForwarderFunc func(ctx context.Context, event action.Event) error

// Forward implements Forwarder.
func (f ForwarderFunc) Forward(ctx context.Context, event action.Event) error { return f(ctx, event) }

// ResearchForwarder creates a research job for the action.
func ResearchForwarder(client *httputil.ServiceClient) Forwarder {
	return ForwarderFunc(func(ctx context.Context, event action.Event) error {
		return client.Post(ctx, "/internal/research/jobs", map[string]string{
			"actionId": event.ActionID,
			"userId":   event.UserID,
			"query":    event.InputText,
		}, nil)
	})
}

// CodeForwarder dispatches a code task for the action. The repository is a
// deployment-level default; per-action repositories arrive embedded in the
// input text and are resolved by the code task agent.
func CodeForwarder(client *httputil.ServiceClient, defaultRepository string) Forwarder {
	return ForwarderFunc(func(ctx context.Context, event action.Event) error {
		return client.Post(ctx, "/internal/code-tasks", map[string]string{
			"userId":           event.UserID,
			"prompt":           event.InputText,
			"systemPromptHash": codetask.PromptHash("", event.InputText),
			"repository":       defaultRepository,
		}, nil)
	})
}

// LinearForwarder creates a Linear issue for the action.
func LinearForwarder(client *httputil.ServiceClient) Forwarder {
	return ForwarderFunc(func(ctx context.Context, event action.Event) error {
		return client.Post(ctx, "/internal/linear/process-action", map[string]string{
			"actionId": event.ActionID,
			"userId":   event.UserID,
			"title":    event.InputText,
		}, nil)
	})
}

// FakeForwarder records forwarded events for tests.
type FakeForwarder struct {
	Events []action.Event
	Err    error
}

// Forward implements Forwarder.
func (f *FakeForwarder) Forward(_ context.Context, event action.Event) error {
	if f.Err != nil {
		return f.Err
	}
	f.Events = append(f.Events, event)
	return nil
}
