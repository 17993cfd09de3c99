package dispatch

import (
	"context"
	"encoding/json"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

// Broadcaster pushes a payload to everyone watching a session.
type Broadcaster interface {
	BroadcastSession(sessionID string, payload []byte) int
}

// HubSink forwards events to live session watchers.
type HubSink struct {
	hub Broadcaster
}

// NewHubSink creates a sink backed by hub.
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (h *HubSink) Name() string { return "hub" }

func (h *HubSink) Deliver(_ context.Context, ev domain.SessionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.hub.BroadcastSession(ev.Data.SessionID, payload)
	return nil
}
