package domain

import "time"

// SessionEvent is an outbound notification about a session.
type SessionEvent struct {
	Name EventName        `json:"name"`
	Data SessionEventData `json:"data"`
}

// SessionEventData is the payload of a SessionEvent.
// Consumers de-duplicate on SessionID + Timestamp.
type SessionEventData struct {
	SessionID    string         `json:"sessionId"`
	UserID       string         `json:"userId"`
	Message      string         `json:"message"`
	History      []Message      `json:"history"`
	Memory       map[string]any `json:"memory"`
	Goals        []Goal         `json:"goals"`
	SystemPrompt string         `json:"systemPrompt"`
	Timestamp    time.Time      `json:"timestamp"`
}
