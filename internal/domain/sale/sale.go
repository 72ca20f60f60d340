package sale

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a single product line in a sale. Items are owned by their Sale and
// are never persisted or referenced independently.
type Item struct {
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

// LineTotal returns unit price times quantity minus the applied discount.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount)
}

// Sale is the aggregate root for a retail sales transaction. It owns its
// items exclusively: all mutation goes through aggregate methods, and Items
// returns a copy so external code cannot alias the internal slice.
type Sale struct {
	ID          uuid.UUID
	SaleNumber  string
	SaleDate    time.Time
	CustomerID  string
	BranchID    string
	IsCancelled bool
	IsDeleted   bool
	// Version guards whole-row overwrites in the store. Stores bump it on
	// every successful save and reject saves carrying a stale version.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time

	items []Item
}

// New creates a sale with no items. The sale date must not be in the future
// and customer and branch identifiers are required.
func New(saleNumber string, saleDate time.Time, customerID, branchID string) (*Sale, error) {
	if strings.TrimSpace(saleNumber) == "" {
		return nil, &ValidationError{Field: "saleNumber", Reason: "must not be empty"}
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, &ValidationError{Field: "customerId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(branchID) == "" {
		return nil, &ValidationError{Field: "branchId", Reason: "must not be empty"}
	}
	if saleDate.After(time.Now()) {
		return nil, &ValidationError{Field: "saleDate", Reason: "must not be in the future"}
	}

	now := time.Now().UTC()
	return &Sale{
		ID:         uuid.New(),
		SaleNumber: saleNumber,
		SaleDate:   saleDate,
		CustomerID: customerID,
		BranchID:   branchID,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AddItem appends a product line, computing its discount through the tiered
// discount rules. It rejects non-positive prices, quantities outside 1-20,
// and any mutation of a cancelled or deleted sale.
func (s *Sale) AddItem(productID string, unitPrice decimal.Decimal, quantity int) error {
	if s.IsCancelled || s.IsDeleted {
		return ErrSaleClosed
	}
	if strings.TrimSpace(productID) == "" {
		return &ValidationError{Field: "productId", Reason: "must not be empty"}
	}
	if !unitPrice.IsPositive() {
		return &ValidationError{Field: "unitPrice", Reason: "must be greater than zero"}
	}

	discount, err := CalculateDiscount(quantity, unitPrice)
	if err != nil {
		if iq, ok := err.(*InvalidQuantityError); ok {
			iq.ProductID = productID
		}
		return err
	}

	s.items = append(s.items, Item{
		ProductID: productID,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Discount:  discount,
	})
	s.touch()
	return nil
}

// RemoveItem removes the first line matching the given product.
func (s *Sale) RemoveItem(productID string) error {
	if s.IsCancelled || s.IsDeleted {
		return ErrSaleClosed
	}
	for i, item := range s.items {
		if item.ProductID == productID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.touch()
			return nil
		}
	}
	return ErrNotFound
}

// Revise replaces the sale's mutable fields and rebuilds the item set from
// scratch, recomputing every discount. Identity, sale number and creation
// time are preserved.
func (s *Sale) Revise(saleDate time.Time, customerID, branchID string, items []NewItem) error {
	if s.IsCancelled || s.IsDeleted {
		return ErrSaleClosed
	}
	if strings.TrimSpace(customerID) == "" {
		return &ValidationError{Field: "customerId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(branchID) == "" {
		return &ValidationError{Field: "branchId", Reason: "must not be empty"}
	}
	if saleDate.After(time.Now()) {
		return &ValidationError{Field: "saleDate", Reason: "must not be in the future"}
	}

	rebuilt := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.UnitPrice.IsPositive() {
			return &ValidationError{Field: "unitPrice", Reason: "must be greater than zero"}
		}
		discount, err := CalculateDiscount(it.Quantity, it.UnitPrice)
		if err != nil {
			if iq, ok := err.(*InvalidQuantityError); ok {
				iq.ProductID = it.ProductID
			}
			return err
		}
		rebuilt = append(rebuilt, Item{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Discount:  discount,
		})
	}

	s.SaleDate = saleDate
	s.CustomerID = customerID
	s.BranchID = branchID
	s.items = rebuilt
	s.touch()
	return nil
}

// Cancel marks the sale as cancelled. Cancelling twice is an error so that
// duplicate cancel requests stay observable to callers.
func (s *Sale) Cancel() error {
	if s.IsCancelled {
		return ErrAlreadyCancelled
	}
	s.IsCancelled = true
	s.touch()
	return nil
}

// Delete marks the sale as soft-deleted. The flag is independent from
// cancellation: a cancelled sale can still be administratively deleted.
func (s *Sale) Delete() {
	s.IsDeleted = true
	s.touch()
}

// TotalAmount is always recomputed from the current items; it is never
// stored in a way that can drift.
func (s *Sale) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Items returns a copy of the sale's items in insertion order.
func (s *Sale) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Sale) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Snapshot is the persisted form of a Sale, used by storage implementations
// to round-trip aggregates without aliasing their internals.
type Snapshot struct {
	ID          uuid.UUID
	SaleNumber  string
	SaleDate    time.Time
	CustomerID  string
	BranchID    string
	Items       []Item
	IsCancelled bool
	IsDeleted   bool
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot captures the sale's full persisted state.
func (s *Sale) Snapshot() Snapshot {
	return Snapshot{
		ID:          s.ID,
		SaleNumber:  s.SaleNumber,
		SaleDate:    s.SaleDate,
		CustomerID:  s.CustomerID,
		BranchID:    s.BranchID,
		Items:       s.Items(),
		IsCancelled: s.IsCancelled,
		IsDeleted:   s.IsDeleted,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// FromSnapshot rebuilds a Sale from persisted state, bypassing creation-time
// validation. Intended for storage implementations only.
func FromSnapshot(snap Snapshot) *Sale {
	items := make([]Item, len(snap.Items))
	copy(items, snap.Items)
	return &Sale{
		ID:          snap.ID,
		SaleNumber:  snap.SaleNumber,
		SaleDate:    snap.SaleDate,
		CustomerID:  snap.CustomerID,
		BranchID:    snap.BranchID,
		IsCancelled: snap.IsCancelled,
		IsDeleted:   snap.IsDeleted,
		Version:     snap.Version,
		CreatedAt:   snap.CreatedAt,
		UpdatedAt:   snap.UpdatedAt,
		items:       items,
	}
}
