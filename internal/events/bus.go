// Package events fans protocol events out to subscribers, loggers and journals.
package events

import (
	"context"
	"sync"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/visvasity/topic"
)

// Bus publishes events on an in-process topic. Slow subscribers never block Emit.
type Bus struct {
	topic  *topic.Topic[domain.Event]
	logger *logger.Logger
}

// NewBus creates an empty event bus
func NewBus(log *logger.Logger) *Bus {
	return &Bus{topic: topic.New[domain.Event](), logger: log}
}

// Emit implements domain.EventSink
func (b *Bus) Emit(ctx context.Context, event domain.Event) {
	if err := b.topic.Send(event); err != nil {
		b.logger.Warn("could not publish event", "event_id", event.ID.String(), "type", string(event.Type), "err", err)
	}
}

// Close stops the bus. Open receivers see the topic closed; later events are dropped.
func (b *Bus) Close() error {
	return b.topic.Close()
}

// Subscribe returns a receiver for all events emitted after the call.
// Callers must Close the receiver when done.
func (b *Bus) Subscribe() (*topic.Receiver[domain.Event], error) {
	return topic.Subscribe(b.topic, 0 /* limit */, false /* includeLast */)
}

// Multi forwards every event to each sink in order
type Multi []domain.EventSink

// Emit implements domain.EventSink
func (m Multi) Emit(ctx context.Context, event domain.Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}

// LogSink writes every event to a structured logger
type LogSink struct {
	Logger *logger.Logger
}

// Emit implements domain.EventSink
func (s LogSink) Emit(ctx context.Context, event domain.Event) {
	kv := []interface{}{
		"event_id", event.ID.String(),
		"bundle_id", event.BundleID,
		"item_id", event.ItemID,
		"actor", event.Actor,
	}
	if !event.Counterparty.IsZero() {
		kv = append(kv, "counterparty", event.Counterparty)
	}
	if !event.Amount.IsZero() {
		kv = append(kv, "amount", event.Amount.String())
	}
	if event.IsFailure() {
		s.Logger.Warn(string(event.Type), append(kv, "reason", event.Reason)...)
		return
	}
	s.Logger.Info(string(event.Type), kv...)
}

// Recorder keeps every emitted event in memory
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Emit implements domain.EventSink
func (r *Recorder) Emit(ctx context.Context, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// OfType returns the recorded events of type t
func (r *Recorder) OfType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
