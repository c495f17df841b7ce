package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/logging"
)

const (
	// InternalAuthHeader carries the shared secret on service-to-service calls.
	InternalAuthHeader = "X-Internal-Auth"

	// UserIDHeader propagates the acting user across internal calls.
	UserIDHeader = "X-User-ID"

	// ServiceIDHeader identifies the calling service on internal calls.
	ServiceIDHeader = "X-Service-ID"
)

// ServiceClient is an HTTP client for internal service-to-service calls.
// It attaches the shared secret and propagates the acting user from context.
type ServiceClient struct {
	httpClient *http.Client
	baseURL    string
	secret     string
	serviceID  string
}

// ServiceClientConfig configures a ServiceClient.
type ServiceClientConfig struct {
	BaseURL   string
	Secret    string
	ServiceID string
	Timeout   time.Duration
}

// NewServiceClient creates an internal service client.
func NewServiceClient(cfg ServiceClientConfig) *ServiceClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ServiceClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secret:     cfg.Secret,
		serviceID:  cfg.ServiceID,
	}
}

// Do executes a request against the target service. The response body is
// decoded into target when the call succeeds; service error envelopes are
// surfaced as DOWNSTREAM_ERROR with the upstream code attached.
func (c *ServiceClient) Do(ctx context.Context, method, path string, body, target interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(InternalAuthHeader, c.secret)
	if c.serviceID != "" {
		req.Header.Set(ServiceIDHeader, c.serviceID)
	}
	if userID := logging.GetUserID(ctx); userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	if traceID := logging.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Downstream("internal call failed", err)
	}
	defer resp.Body.Close()

	raw, err := ReadAllStrict(resp.Body, 8<<20)
	if err != nil {
		return errors.Downstream("read internal response", err)
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Downstream(fmt.Sprintf("internal call returned status %d with unparseable body", resp.StatusCode), err)
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		code := "UNKNOWN"
		message := fmt.Sprintf("internal call returned status %d", resp.StatusCode)
		if envelope.Error != nil {
			code = envelope.Error.Code
			message = envelope.Error.Message
		}
		return errors.Downstream(message, nil).WithDetails("upstreamCode", code).
			WithDetails("upstreamStatus", resp.StatusCode)
	}

	if target != nil && envelope.Data != nil {
		data, err := json.Marshal(envelope.Data)
		if err != nil {
			return errors.Downstream("re-encode internal response data", err)
		}
		if err := json.Unmarshal(data, target); err != nil {
			return errors.Downstream("decode internal response data", err)
		}
	}
	return nil
}

// Get performs an internal GET.
func (c *ServiceClient) Get(ctx context.Context, path string, target interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, target)
}

// Post performs an internal POST with a JSON body.
func (c *ServiceClient) Post(ctx context.Context, path string, body, target interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, target)
}
