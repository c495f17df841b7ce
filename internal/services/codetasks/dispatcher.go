package codetasks

import (
	"context"

	"github.com/intexuraos/agents/internal/domain/codetask"
	"github.com/intexuraos/agents/internal/httputil"
)

// HTTPDispatcher forwards tasks to the execution backend over the internal
// HTTP surface.
type HTTPDispatcher struct {
	client *httputil.ServiceClient
}

// NewHTTPDispatcher builds a dispatcher over an internal service client.
func NewHTTPDispatcher(client *httputil.ServiceClient) *HTTPDispatcher {
	return &HTTPDispatcher{client: client}
}

type dispatchPayload struct {
	TaskID     string `json:"taskId"`
	UserID     string `json:"userId"`
	Prompt     string `json:"prompt"`
	Repository string `json:"repository"`
	Branch     string `json:"branch,omitempty"`
}

// Dispatch posts the task to the execution backend. The backend reports
// progress later through the status endpoint.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, task codetask.CodeTask) error {
	return d.client.Post(ctx, "/internal/executions", dispatchPayload{
		TaskID:     task.ID,
		UserID:     task.UserID,
		Prompt:     task.Prompt,
		Repository: task.Repository,
		Branch:     task.Branch,
	}, nil)
}

var _ Dispatcher = (*HTTPDispatcher)(nil)
