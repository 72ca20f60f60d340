package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/salescore/sales-service/internal/event"
)

// Event names published by the write service.
const (
	EventCreated   = "sale.created"
	EventUpdated   = "sale.updated"
	EventCancelled = "sale.cancelled"
)

// CreatedEvent announces a newly persisted sale.
type CreatedEvent struct {
	event.Meta
	SaleNumber  string
	SaleDate    time.Time
	TotalAmount decimal.Decimal
}

// NewCreatedEvent builds a CreatedEvent from the persisted aggregate.
func NewCreatedEvent(s *Sale) *CreatedEvent {
	return &CreatedEvent{
		Meta:        event.NewMeta(EventCreated, s.ID),
		SaleNumber:  s.SaleNumber,
		SaleDate:    s.SaleDate,
		TotalAmount: s.TotalAmount(),
	}
}

// UpdatedEvent announces a persisted sale revision.
type UpdatedEvent struct {
	event.Meta
	SaleNumber  string
	SaleDate    time.Time
	TotalAmount decimal.Decimal
}

// NewUpdatedEvent builds an UpdatedEvent from the persisted aggregate.
func NewUpdatedEvent(s *Sale) *UpdatedEvent {
	return &UpdatedEvent{
		Meta:        event.NewMeta(EventUpdated, s.ID),
		SaleNumber:  s.SaleNumber,
		SaleDate:    s.SaleDate,
		TotalAmount: s.TotalAmount(),
	}
}

// CancelledEvent announces a cancellation or administrative deletion,
// carrying the caller-supplied reason.
type CancelledEvent struct {
	event.Meta
	SaleNumber string
	Reason     string
}

// NewCancelledEvent builds a CancelledEvent from the persisted aggregate.
func NewCancelledEvent(s *Sale, reason string) *CancelledEvent {
	return &CancelledEvent{
		Meta:       event.NewMeta(EventCancelled, s.ID),
		SaleNumber: s.SaleNumber,
		Reason:     reason,
	}
}
