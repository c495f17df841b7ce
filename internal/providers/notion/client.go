// Package notion is the Notion API adapter used by the prompt vault.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/intexuraos/agents/internal/domain/promptvault"
	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/providers"
)

const providerName = "notion"

const (
	defaultBaseURL = "https://api.notion.com/v1"
	notionVersion  = "2022-06-28"
)

// Client calls the Notion REST API with a per-user integration token.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Notion client. An empty baseURL uses the public API.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// CreatePromptPage adds a prompt page to the connected database.
func (c *Client) CreatePromptPage(ctx context.Context, token, databaseID, title, body string) (promptvault.Prompt, error) {
	payload := map[string]interface{}{
		"parent": map[string]string{"database_id": databaseID},
		"properties": map[string]interface{}{
			"Name": map[string]interface{}{
				"title": []map[string]interface{}{
					{"text": map[string]string{"content": title}},
				},
			},
		},
		"children": []map[string]interface{}{
			{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]interface{}{
					"rich_text": []map[string]interface{}{
						{"type": "text", "text": map[string]string{"content": body}},
					},
				},
			},
		},
	}

	raw, err := c.do(ctx, http.MethodPost, "/pages", token, payload)
	if err != nil {
		return promptvault.Prompt{}, err
	}
	page := gjson.ParseBytes(raw)
	created, _ := time.Parse(time.RFC3339, page.Get("created_time").String())
	return promptvault.Prompt{
		ID:        page.Get("id").String(),
		Title:     title,
		Body:      body,
		URL:       page.Get("url").String(),
		CreatedAt: created,
	}, nil
}

// ListPrompts queries the connected database for prompt pages.
func (c *Client) ListPrompts(ctx context.Context, token, databaseID string) ([]promptvault.Prompt, error) {
	raw, err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", token, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	var prompts []promptvault.Prompt
	for _, page := range gjson.GetBytes(raw, "results").Array() {
		created, _ := time.Parse(time.RFC3339, page.Get("created_time").String())
		prompts = append(prompts, promptvault.Prompt{
			ID:        page.Get("id").String(),
			Title:     page.Get("properties.Name.title.0.plain_text").String(),
			URL:       page.Get("url").String(),
			CreatedAt: created,
		})
	}
	return prompts, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, providers.NewError(providerName, providers.CodeInternalError, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, providers.NewError(providerName, providers.CodeInternalError, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", notionVersion)
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
		reason := gjson.GetBytes(body, "code").String()
		message := gjson.GetBytes(body, "message").String()
		if message == "" {
			message = fmt.Sprintf("notion API returned status %d", resp.StatusCode)
		}
		return nil, providers.NewError(providerName, providers.MapError(resp.StatusCode, reason), message, nil)
	}
	return body, nil
}
