// Package llm is the client for the internal LLM generation gateway.
package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/intexuraos/agents/internal/errors"
	"github.com/intexuraos/agents/internal/httputil"
)

// Request is one generation call.
type Request struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Prompt       string `json:"prompt"`
	UserID       string `json:"userId"`
}

// Response is the gateway's generation result.
type Response struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// Client generates text. The HTTP implementation talks to the gateway;
// tests use a fake.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// HTTPClient calls the generation gateway over internal HTTP.
type HTTPClient struct {
	service *httputil.ServiceClient
}

// NewHTTPClient creates a gateway client.
func NewHTTPClient(baseURL, secret, serviceID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{service: httputil.NewServiceClient(httputil.ServiceClientConfig{
		BaseURL:   baseURL,
		Secret:    secret,
		ServiceID: serviceID,
		Timeout:   timeout,
	})}
}

// Generate runs one generation call through the gateway.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (Response, error) {
	if req.Model == "" {
		return Response{}, errors.Validation("model is required")
	}
	var resp Response
	if err := c.service.Do(ctx, http.MethodPost, "/internal/llm/generate", req, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Fake returns canned responses for tests.
type Fake struct {
	Text string
	Err  error

	// Requests records every call for assertions.
	Requests []Request
}

// Generate implements Client.
func (f *Fake) Generate(_ context.Context, req Request) (Response, error) {
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return Response{}, f.Err
	}
	return Response{Model: req.Model, Text: f.Text}, nil
}
