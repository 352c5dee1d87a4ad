package domain

import "github.com/bytedance/sonic"

// Command represents a single write request against a user's boards or tasks.
type Command struct {
	// ID carries the idempotency key once the command has been accepted.
	ID             string                 `json:"id,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	EntityType     string                 `json:"entityType"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}
