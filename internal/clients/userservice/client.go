// Package userservice is the client for the internal user service, which
// holds per-user credentials and contact info.
package userservice

import (
	"context"
	"time"

	"github.com/intexuraos/agents/internal/httputil"
)

// Credentials are the per-user secrets other agents need to call third-party
// APIs on the user's behalf.
type Credentials struct {
	GoogleAccessToken string `json:"googleAccessToken,omitempty"`
	NotificationEmail string `json:"notificationEmail,omitempty"`
}

// Client looks up user credentials. Tests use the Fake.
type Client interface {
	GetCredentials(ctx context.Context, userID string) (Credentials, error)
}

// HTTPClient calls the user service over internal HTTP.
type HTTPClient struct {
	service *httputil.ServiceClient
}

// NewHTTPClient creates a user service client.
func NewHTTPClient(baseURL, secret, serviceID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{service: httputil.NewServiceClient(httputil.ServiceClientConfig{
		BaseURL:   baseURL,
		Secret:    secret,
		ServiceID: serviceID,
		Timeout:   timeout,
	})}
}

// GetCredentials fetches the stored credentials for a user.
func (c *HTTPClient) GetCredentials(ctx context.Context, userID string) (Credentials, error) {
	var creds Credentials
	if err := c.service.Get(ctx, "/internal/users/"+userID+"/credentials", &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Fake returns canned credentials for tests.
type Fake struct {
	Creds Credentials
	Err   error
}

// GetCredentials implements Client.
func (f *Fake) GetCredentials(context.Context, string) (Credentials, error) {
	if f.Err != nil {
		return Credentials{}, f.Err
	}
	return f.Creds, nil
}
