package sale

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/salescore/sales-service/internal/event"
)

// Publisher announces domain events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

// NewItem is an incoming product line before discounts are computed.
type NewItem struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

// CreateCommand holds the input for creating a sale.
type CreateCommand struct {
	SaleDate   time.Time
	CustomerID string
	BranchID   string
	Items      []NewItem
}

// CreateResult holds the output of a successfully created sale.
type CreateResult struct {
	ID          uuid.UUID
	SaleNumber  string
	TotalAmount decimal.Decimal
}

// UpdateCommand holds the input for revising an existing sale.
type UpdateCommand struct {
	ID         uuid.UUID
	SaleDate   time.Time
	CustomerID string
	BranchID   string
	Items      []NewItem
}

// Service orchestrates the transactional write path: it validates commands,
// mutates the aggregate, persists it through the store inside a transaction,
// and publishes domain events after the write is durable and before commit.
//
// The crash window between a durable write and a successful publish can leave
// a stored sale with no announced event; this is an accepted, documented gap
// of the synchronous notifier design.
type Service struct {
	store TxStore
	bus   Publisher
	lg    *zap.Logger
}

// NewService creates a Service with the required collaborators.
func NewService(store TxStore, bus Publisher, lg *zap.Logger) *Service {
	return &Service{
		store: store,
		bus:   bus,
		lg:    lg,
	}
}

// Create validates the command, builds the aggregate with per-item discounts,
// and persists it in a single transaction. Validation and aggregate invariant
// errors abort before any transaction opens.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*CreateResult, error) {
	if err := validateItems(cmd.Items); err != nil {
		return nil, err
	}

	agg, err := New(GenerateSaleNumber(), cmd.SaleDate, cmd.CustomerID, cmd.BranchID)
	if err != nil {
		return nil, err
	}
	for _, it := range cmd.Items {
		if err := agg.AddItem(it.ProductID, it.UnitPrice, it.Quantity); err != nil {
			return nil, err
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}

	if err := tx.Store().Add(ctx, agg); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	s.bus.Publish(ctx, NewCreatedEvent(agg))

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	s.lg.Info("sale created",
		zap.Stringer("sale_id", agg.ID),
		zap.String("sale_number", agg.SaleNumber),
		zap.String("total_amount", agg.TotalAmount().String()),
	)

	return &CreateResult{
		ID:          agg.ID,
		SaleNumber:  agg.SaleNumber,
		TotalAmount: agg.TotalAmount(),
	}, nil
}

// Update revises an existing sale, rebuilding its item set through the
// discount rules. A missing or soft-deleted sale returns (false, nil),
// matching the no-op-if-absent contract expected by callers.
func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (bool, error) {
	if err := validateItems(cmd.Items); err != nil {
		return false, err
	}

	agg, err := s.store.GetByID(ctx, cmd.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.lg.Warn("update target not found", zap.Stringer("sale_id", cmd.ID))
			return false, nil
		}
		return false, err
	}

	if err := agg.Revise(cmd.SaleDate, cmd.CustomerID, cmd.BranchID, cmd.Items); err != nil {
		return false, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin transaction")
	}

	if err := tx.Store().Update(ctx, agg); err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}

	s.bus.Publish(ctx, NewUpdatedEvent(agg))

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}

	s.lg.Info("sale updated",
		zap.Stringer("sale_id", agg.ID),
		zap.Int("version", agg.Version),
	)
	return true, nil
}

// Cancel marks a sale as cancelled and announces it with the given reason.
// A missing or soft-deleted sale returns (false, nil); cancelling an already
// cancelled sale fails with ErrAlreadyCancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "sale cancelled"
	}

	agg, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := agg.Cancel(); err != nil {
		return false, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin transaction")
	}

	if err := tx.Store().Update(ctx, agg); err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}

	s.bus.Publish(ctx, NewCancelledEvent(agg, reason))

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}

	s.lg.Info("sale cancelled",
		zap.Stringer("sale_id", agg.ID),
		zap.String("reason", reason),
	)
	return true, nil
}

// Delete soft-deletes a sale so it disappears from default reads while the
// record is retained for audit. A missing or already deleted sale returns
// (false, nil).
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	agg, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	agg.Delete()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin transaction")
	}

	if err := tx.Store().MarkDeleted(ctx, agg); err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}

	s.bus.Publish(ctx, NewCancelledEvent(agg, "sale deleted"))

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}

	s.lg.Info("sale deleted", zap.Stringer("sale_id", agg.ID))
	return true, nil
}

// GetByID returns a sale by id, excluding soft-deleted ones. Read-only, no
// transaction.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.store.GetByID(ctx, id)
}

// GetAll returns all non-deleted sales. Read-only, no transaction.
func (s *Service) GetAll(ctx context.Context) ([]*Sale, error) {
	return s.store.GetAll(ctx)
}

// validateItems re-checks the business invariants on incoming items even
// though the outer input layer shape-checks them first.
func validateItems(items []NewItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return &ValidationError{Field: "productId", Reason: "must not be empty"}
		}
		if !it.UnitPrice.IsPositive() {
			return &ValidationError{Field: "unitPrice", Reason: "must be greater than zero"}
		}
		if it.Quantity < MinQuantity || it.Quantity > MaxQuantity {
			return &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
	}
	return nil
}
