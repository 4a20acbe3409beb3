package models

// Message represents a chat message cached in Redis for room history.
type Message struct {
	ID        string   `json:"id"` // ULID
	ProjectID string   `json:"project_id"`
	Sender    Identity `json:"sender"`
	Body      string   `json:"body"`
	Timestamp int64    `json:"ts"` // Unix ms
}
