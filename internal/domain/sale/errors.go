package sale

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for sale state and persistence.
var (
	// ErrNotFound is returned when a sale does not exist or is soft-deleted.
	ErrNotFound = errors.New("sale not found")
	// ErrAlreadyCancelled is returned when cancelling a sale twice.
	// A duplicate cancel is a caller error, not a silent no-op.
	ErrAlreadyCancelled = errors.New("sale already cancelled")
	// ErrSaleClosed is returned when mutating a cancelled or deleted sale.
	ErrSaleClosed = errors.New("sale is cancelled or deleted")
	// ErrTransaction is returned on misuse of the transaction lifecycle,
	// such as committing a transaction that is no longer active.
	ErrTransaction = errors.New("no active transaction")
	// ErrConflict is returned when a concurrent writer changed the sale
	// between load and save, or when a sale number collides.
	ErrConflict = errors.New("sale was modified concurrently")
)

// ValidationError indicates a malformed or out-of-range input value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InvalidQuantityError indicates a line item quantity outside the allowed
// range of 1 to 20 units per product.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("quantity %d must be between %d and %d", e.Quantity, MinQuantity, MaxQuantity)
	}
	return fmt.Sprintf("quantity %d must be between %d and %d for product %s", e.Quantity, MinQuantity, MaxQuantity, e.ProductID)
}
