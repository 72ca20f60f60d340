// Package event provides the in-process domain event notifier: a synchronous
// fan-out bus plus the relay that forwards events downstream.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event announced after a successful write.
type Event interface {
	EventID() uuid.UUID
	EventName() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// Meta carries the common event fields. Embed it in concrete event types.
type Meta struct {
	ID        uuid.UUID
	Name      string
	Aggregate uuid.UUID
	Time      time.Time
}

// NewMeta stamps a fresh event identity for the given aggregate.
func NewMeta(name string, aggregate uuid.UUID) Meta {
	return Meta{
		ID:        uuid.New(),
		Name:      name,
		Aggregate: aggregate,
		Time:      time.Now().UTC(),
	}
}

func (m Meta) EventID() uuid.UUID     { return m.ID }
func (m Meta) EventName() string      { return m.Name }
func (m Meta) AggregateID() uuid.UUID { return m.Aggregate }
func (m Meta) OccurredAt() time.Time  { return m.Time }
