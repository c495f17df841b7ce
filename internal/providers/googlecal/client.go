// Package googlecal is the Google Calendar API adapter.
package googlecal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/intexuraos/agents/internal/httputil"
	"github.com/intexuraos/agents/internal/providers"
)

const providerName = "google-calendar"

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// Event is a calendar event as exposed to callers.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

// Client calls the Google Calendar REST API with a per-user OAuth token.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a calendar client. An empty baseURL uses the public API.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// ListUpcoming returns upcoming events on the user's primary calendar.
func (c *Client) ListUpcoming(ctx context.Context, accessToken string, maxResults int) ([]Event, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	query := url.Values{}
	query.Set("maxResults", fmt.Sprintf("%d", maxResults))
	query.Set("orderBy", "startTime")
	query.Set("singleEvents", "true")
	query.Set("timeMin", time.Now().UTC().Format(time.RFC3339))

	endpoint := fmt.Sprintf("%s/calendars/primary/events?%s", c.baseURL, query.Encode())
	body, err := c.do(ctx, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, item := range gjson.GetBytes(body, "items").Array() {
		events = append(events, eventFromItem(item))
	}
	return events, nil
}

// CreateEvent creates an event on the user's primary calendar.
func (c *Client) CreateEvent(ctx context.Context, accessToken string, event Event) (Event, error) {
	payload := map[string]interface{}{
		"summary":     event.Summary,
		"description": event.Description,
		"location":    event.Location,
		"start":       map[string]string{"dateTime": event.Start.Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": event.End.Format(time.RFC3339)},
	}
	endpoint := fmt.Sprintf("%s/calendars/primary/events", c.baseURL)
	body, err := c.do(ctx, http.MethodPost, endpoint, accessToken, payload)
	if err != nil {
		return Event{}, err
	}
	return eventFromItem(gjson.ParseBytes(body)), nil
}

func (c *Client) do(ctx context.Context, method, endpoint, accessToken string, payload interface{}) ([]byte, error) {
	var bodyReader *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, providers.NewError(providerName, providers.CodeInternalError, "marshal request", err)
		}
		bodyReader = bytes.NewReader(raw)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, providers.NewError(providerName, providers.CodeInternalError, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
		reason := gjson.GetBytes(body, "error.errors.0.reason").String()
		message := gjson.GetBytes(body, "error.message").String()
		if message == "" {
			message = fmt.Sprintf("calendar API returned status %d", resp.StatusCode)
		}
		return nil, providers.NewError(providerName, providers.MapError(resp.StatusCode, reason), message, nil)
	}
	return body, nil
}

func eventFromItem(item gjson.Result) Event {
	start := item.Get("start.dateTime").String()
	if start == "" {
		start = item.Get("start.date").String()
	}
	end := item.Get("end.dateTime").String()
	if end == "" {
		end = item.Get("end.date").String()
	}
	startTime, _ := time.Parse(time.RFC3339, start)
	endTime, _ := time.Parse(time.RFC3339, end)

	return Event{
		ID:          item.Get("id").String(),
		Summary:     item.Get("summary").String(),
		Description: item.Get("description").String(),
		Location:    item.Get("location").String(),
		Start:       startTime,
		End:         endTime,
		HTMLLink:    item.Get("htmlLink").String(),
	}
}
