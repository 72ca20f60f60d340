package event

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler processes a single published event. Handlers typically persist the
// event to a durable log or relay it to an external consumer.
type Handler func(ctx context.Context, e Event) error

// Bus delivers events synchronously to every handler subscribed to the
// event's name, in registration order, within the caller's goroutine. There
// is no background queue: publishing blocks until all handlers return.
//
// A handler failure is logged and does not abort delivery to subsequent
// handlers, and never converts the triggering write into a failure.
type Bus struct {
	lg *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty Bus.
func NewBus(lg *zap.Logger) *Bus {
	return &Bus{
		lg:       lg,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for events with the given name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish fans the event out to all subscribed handlers. Handler errors are
// logged and isolated from each other and from the caller.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	registered := b.handlers[e.EventName()]
	handlers := make([]Handler, len(registered))
	copy(handlers, registered)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			b.lg.Error("event handler failed",
				zap.String("event", e.EventName()),
				zap.Stringer("event_id", e.EventID()),
				zap.Stringer("aggregate_id", e.AggregateID()),
				zap.Error(err),
			)
		}
	}
}
