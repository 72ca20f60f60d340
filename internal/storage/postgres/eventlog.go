package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salescore/sales-service/internal/domain/sale"
	"github.com/salescore/sales-service/internal/event"
)

// EventLog is a bus subscriber that persists every published domain event
// verbatim, keyed by aggregate id, for audit and replay. Rows are never
// deleted.
type EventLog struct {
	db querier
}

// NewEventLog returns an EventLog that uses the given pool.
func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{db: pool}
}

const insertEventSQL = `INSERT INTO sale_events (event_id, aggregate_id, name, occurred_at, payload)
	VALUES ($1, $2, $3, $4, $5)`

// Handle implements the bus Handler signature.
func (l *EventLog) Handle(ctx context.Context, e event.Event) error {
	payload := encodePayload(e)
	_, err := l.db.Exec(ctx, insertEventSQL,
		e.EventID(), e.AggregateID(), e.EventName(), e.OccurredAt(), payload,
	)
	if err != nil {
		return errors.Wrapf(err, "record event %q", e.EventID())
	}
	return nil
}

// Entry is one recorded event.
type Entry struct {
	EventID     uuid.UUID
	AggregateID uuid.UUID
	Name        string
	OccurredAt  time.Time
	Payload     []byte
}

// ByAggregate returns all recorded events for the given aggregate in
// occurrence order.
func (l *EventLog) ByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]Entry, error) {
	rows, err := l.db.Query(ctx,
		`SELECT event_id, aggregate_id, name, occurred_at, payload
		FROM sale_events WHERE aggregate_id = $1 ORDER BY occurred_at`, aggregateID)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EventID, &e.AggregateID, &e.Name, &e.OccurredAt, &e.Payload); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// encodePayload serializes the event-specific fields to JSON for the JSONB
// payload column.
func encodePayload(e event.Event) []byte {
	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		switch ev := e.(type) {
		case *sale.CreatedEvent:
			enc.Field("sale_number", func(enc *jx.Encoder) { enc.Str(ev.SaleNumber) })
			enc.Field("sale_date", func(enc *jx.Encoder) { enc.Str(ev.SaleDate.Format(time.RFC3339)) })
			enc.Field("total_amount", func(enc *jx.Encoder) { enc.Str(ev.TotalAmount.String()) })
		case *sale.UpdatedEvent:
			enc.Field("sale_number", func(enc *jx.Encoder) { enc.Str(ev.SaleNumber) })
			enc.Field("sale_date", func(enc *jx.Encoder) { enc.Str(ev.SaleDate.Format(time.RFC3339)) })
			enc.Field("total_amount", func(enc *jx.Encoder) { enc.Str(ev.TotalAmount.String()) })
		case *sale.CancelledEvent:
			enc.Field("sale_number", func(enc *jx.Encoder) { enc.Str(ev.SaleNumber) })
			enc.Field("reason", func(enc *jx.Encoder) { enc.Str(ev.Reason) })
		}
	})
	return enc.Bytes()
}
