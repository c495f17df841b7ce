package researchsvc

import (
	"context"

	"github.com/intexuraos/agents/internal/domain"
	"github.com/intexuraos/agents/internal/domain/research"
	"github.com/intexuraos/agents/internal/httputil"
)

// HTTPReporter posts job outcomes to the action router's status endpoint.
type HTTPReporter struct {
	client *httputil.ServiceClient
}

// NewHTTPReporter builds a reporter over an internal service client pointed
// at the actions service.
func NewHTTPReporter(client *httputil.ServiceClient) *HTTPReporter {
	return &HTTPReporter{client: client}
}

// ReportStatus implements StatusReporter. Research statuses share names with
// action statuses, so they pass through unchanged.
func (r *HTTPReporter) ReportStatus(ctx context.Context, actionID string, status research.Status, detail string, errInfo *domain.ErrorInfo) error {
	payload := map[string]interface{}{
		"actionId": actionID,
		"status":   string(status),
		"detail":   detail,
	}
	if errInfo != nil {
		payload["error"] = errInfo
	}
	return r.client.Post(ctx, "/internal/actions/status", payload, nil)
}

var _ StatusReporter = (*HTTPReporter)(nil)
