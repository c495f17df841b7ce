// Package linearapi is the Linear GraphQL API adapter.
package linearapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/intexuraos/agents/internal/domain/linear"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/providers"
)

const providerName = "linear"

const defaultEndpoint = "https://api.linear.app/graphql"

// Client calls the Linear GraphQL API with a per-user API token.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// NewClient creates a Linear client. An empty endpoint uses the public API.
func NewClient(httpClient *http.Client, endpoint string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{httpClient: httpClient, endpoint: endpoint}
}

const issuesQuery = `query { issues(first: 100) { nodes { id identifier title url state { name } } } }`

// ListIssues returns the user's issues.
func (c *Client) ListIssues(ctx context.Context, apiToken string) ([]linear.Issue, error) {
	body, err := c.query(ctx, apiToken, issuesQuery, nil)
	if err != nil {
		return nil, err
	}

	var issues []linear.Issue
	for _, node := range gjson.GetBytes(body, "data.issues.nodes").Array() {
		issues = append(issues, linear.Issue{
			ID:         node.Get("id").String(),
			Identifier: node.Get("identifier").String(),
			Title:      node.Get("title").String(),
			URL:        node.Get("url").String(),
			State:      node.Get("state.name").String(),
		})
	}
	return issues, nil
}

const createIssueMutation = `mutation($input: IssueCreateInput!) {
	issueCreate(input: $input) { success issue { id identifier url } }
}`

// CreateIssue creates an issue and returns its id and URL.
func (c *Client) CreateIssue(ctx context.Context, apiToken, teamID, title, description string) (id, issueURL string, err error) {
	input := map[string]interface{}{"title": title}
	if description != "" {
		input["description"] = description
	}
	if teamID != "" {
		input["teamId"] = teamID
	}

	body, err := c.query(ctx, apiToken, createIssueMutation, map[string]interface{}{"input": input})
	if err != nil {
		return "", "", err
	}

	result := gjson.GetBytes(body, "data.issueCreate")
	if !result.Get("success").Bool() {
		return "", "", providers.NewError(providerName, providers.CodeInvalidRequest, "issue creation rejected", nil)
	}
	return result.Get("issue.id").String(), result.Get("issue.url").String(), nil
}

func (c *Client) query(ctx context.Context, apiToken, query string, variables map[string]interface{}) ([]byte, error) {
	payload := map[string]interface{}{"query": query}
	if variables != nil {
		payload["variables"] = variables
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, providers.NewError(providerName, providers.CodeInternalError, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, providers.NewError(providerName, providers.CodeInternalError, "build request", err)
	}
	// Linear personal API keys are sent bare, without a Bearer prefix.
	req.Header.Set("Authorization", apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, providers.NetworkError(providerName, err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 4<<20)
	if err != nil {
		return nil, providers.NetworkError(providerName, err)
	}

	if resp.StatusCode >= 400 {
		reason := gjson.GetBytes(body, "errors.0.extensions.code").String()
		message := gjson.GetBytes(body, "errors.0.message").String()
		if message == "" {
			message = fmt.Sprintf("linear API returned status %d", resp.StatusCode)
		}
		return nil, providers.NewError(providerName, providers.MapError(resp.StatusCode, reason), message, nil)
	}

	// GraphQL reports some failures with a 200 status and an errors array.
	if errList := gjson.GetBytes(body, "errors"); errList.Exists() && len(errList.Array()) > 0 {
		first := errList.Array()[0]
		reason := first.Get("extensions.code").String()
		code := providers.CodeInvalidRequest
		if reason == "RATELIMITED" {
			code = providers.CodeQuotaExceeded
		}
		return nil, providers.NewError(providerName, code, first.Get("message").String(), nil)
	}
	return body, nil
}
