package event

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Sink receives events forwarded by a Relay. Implementations wrap a message
// broker client or any other downstream consumer.
type Sink interface {
	Forward(ctx context.Context, e Event) error
}

// Relay is a bus handler that forwards every event it receives to a
// downstream sink.
type Relay struct {
	sink Sink
}

// NewRelay creates a Relay forwarding to the given sink.
func NewRelay(sink Sink) *Relay {
	return &Relay{sink: sink}
}

// Handle implements the bus Handler signature.
func (r *Relay) Handle(ctx context.Context, e Event) error {
	if err := r.sink.Forward(ctx, e); err != nil {
		return errors.Wrap(err, "forward event")
	}
	return nil
}

// LogSink is the default sink when no external consumer is configured: it
// writes each forwarded event to the log.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink creates a LogSink writing to the given logger.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

// Forward implements Sink.
func (s *LogSink) Forward(_ context.Context, e Event) error {
	s.lg.Info("event relayed",
		zap.String("event", e.EventName()),
		zap.Stringer("event_id", e.EventID()),
		zap.Stringer("aggregate_id", e.AggregateID()),
		zap.Time("occurred_at", e.OccurredAt()),
	)
	return nil
}
