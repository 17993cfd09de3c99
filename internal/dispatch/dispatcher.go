// Package dispatch publishes session events on an in-process watermill bus and
// fans them out to delivery sinks.
package dispatch

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
)

// Sink delivers a dispatched event somewhere outside the process.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev domain.SessionEvent) error
}

// Publisher is the producer side used by the orchestrator.
type Publisher interface {
	Dispatch(ctx context.Context, ev domain.SessionEvent)
}

// Dispatcher publishes events to a gochannel topic and forwards them to sinks.
type Dispatcher struct {
	pubsub   *gochannel.GoChannel
	messages <-chan *message.Message

	mu    sync.RWMutex
	sinks []Sink
}

var _ Publisher = (*Dispatcher)(nil)

// New creates a dispatcher subscribed to the session message topic.
func New(sinks ...Sink) (*Dispatcher, error) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 100,
			Persistent:          false,
		},
		watermill.NopLogger{},
	)

	messages, err := pubsub.Subscribe(context.Background(), string(domain.EventSessionMessage))
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	return &Dispatcher{
		pubsub:   pubsub,
		messages: messages,
		sinks:    sinks,
	}, nil
}

// AddSink registers another sink. Safe to call while Run is active.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Dispatch publishes ev. It never blocks on delivery and never fails the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.SessionEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logging.Error().Err(err).Str("event", string(ev.Name)).Msg("failed to encode event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("name", string(ev.Name))
	msg.Metadata.Set("session_id", ev.Data.SessionID)

	if err := d.pubsub.Publish(string(ev.Name), msg); err != nil {
		logging.Warn().Err(err).
			Str("event", string(ev.Name)).
			Str("session_id", ev.Data.SessionID).
			Msg("failed to publish event")
		return
	}
	logging.Debug().Str("event", string(ev.Name)).Str("session_id", ev.Data.SessionID).Str("message_id", msg.UUID).Msg("event published")
}

// Run consumes published events until ctx is done or the dispatcher is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.messages:
			if !ok {
				return
			}
			d.handle(ctx, msg)
			msg.Ack()
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg *message.Message) {
	var ev domain.SessionEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("failed to decode event")
		return
	}

	d.mu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			logging.Warn().Err(err).
				Str("sink", s.Name()).
				Str("event", string(ev.Name)).
				Str("session_id", ev.Data.SessionID).
				Msg("event delivery failed")
		}
	}
}

// Close shuts down the bus. Run returns once the subscription channel closes.
func (d *Dispatcher) Close() error {
	return d.pubsub.Close()
}
