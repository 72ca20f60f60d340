package sale

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence boundary for sales. GetByID and GetAll exclude
// soft-deleted sales; GetByIDAny is the unfiltered accessor kept for audit.
//
// Update and MarkDeleted overwrite the current row wholesale, guarded by the
// aggregate's Version: a stale version yields ErrConflict. On success the
// implementation bumps the aggregate's Version in place.
type Store interface {
	Add(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	GetByIDAny(ctx context.Context, id uuid.UUID) (*Sale, error)
	GetAll(ctx context.Context) ([]*Sale, error)
	Update(ctx context.Context, s *Sale) error
	MarkDeleted(ctx context.Context, s *Sale) error
}

// TxStore is a Store that can open transactions.
type TxStore interface {
	Store
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single open transaction. Operations on the Store view returned by
// Store participate in it. Commit on a finished transaction returns
// ErrTransaction; Rollback is safe to call at any point, including after
// Commit or a previous Rollback.
type Tx interface {
	Store() Store
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
