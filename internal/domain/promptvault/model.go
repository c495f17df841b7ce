// Package promptvault models Notion connections and stored prompts.
package promptvault

import "time"

// Connection stores a user's Notion integration credential and the target
// database for prompt pages.
type Connection struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Token      string    `json:"-"`
	DatabaseID string    `json:"databaseId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Prompt is a stored prompt page.
type Prompt struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
