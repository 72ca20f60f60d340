// Package memory implements sale.TxStore in memory. It backs unit tests and
// local development; its transactions stage changes on a private copy of the
// table and apply them atomically on commit.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/salescore/sales-service/internal/domain/sale"
)

var _ sale.TxStore = (*SaleStore)(nil)

// SaleStore is an in-memory sale.TxStore. The store holds snapshots, never
// live aggregates, so callers cannot alias its state.
type SaleStore struct {
	mu    sync.RWMutex
	sales map[uuid.UUID]sale.Snapshot
}

// NewSaleStore creates an empty SaleStore.
func NewSaleStore() *SaleStore {
	return &SaleStore{sales: make(map[uuid.UUID]sale.Snapshot)}
}

// Begin opens a transaction staged on a copy of the current table. Mutations
// stay invisible to the store until Commit.
func (s *SaleStore) Begin(context.Context) (sale.Tx, error) {
	s.mu.RLock()
	staged := make(map[uuid.UUID]sale.Snapshot, len(s.sales))
	for id, snap := range s.sales {
		staged[id] = snap
	}
	s.mu.RUnlock()

	return &saleTx{parent: s, view: &txView{sales: staged}}, nil
}

// Add implements sale.Store.
func (s *SaleStore) Add(_ context.Context, agg *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addTo(s.sales, agg)
}

// GetByID implements sale.Store, excluding soft-deleted sales.
func (s *SaleStore) GetByID(_ context.Context, id uuid.UUID) (*sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getFrom(s.sales, id, false)
}

// GetByIDAny implements sale.Store, including soft-deleted sales.
func (s *SaleStore) GetByIDAny(_ context.Context, id uuid.UUID) (*sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getFrom(s.sales, id, true)
}

// GetAll implements sale.Store.
func (s *SaleStore) GetAll(_ context.Context) ([]*sale.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return allFrom(s.sales), nil
}

// Update implements sale.Store with the version guard.
func (s *SaleStore) Update(_ context.Context, agg *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateIn(s.sales, agg, false)
}

// MarkDeleted implements sale.Store.
func (s *SaleStore) MarkDeleted(_ context.Context, agg *sale.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateIn(s.sales, agg, true)
}

// table operations shared between the store and transaction views.

func addTo(table map[uuid.UUID]sale.Snapshot, agg *sale.Sale) error {
	snap := agg.Snapshot()
	for _, existing := range table {
		if existing.SaleNumber == snap.SaleNumber {
			return sale.ErrConflict
		}
	}
	table[snap.ID] = snap
	return nil
}

func getFrom(table map[uuid.UUID]sale.Snapshot, id uuid.UUID, includeDeleted bool) (*sale.Sale, error) {
	snap, ok := table[id]
	if !ok || (snap.IsDeleted && !includeDeleted) {
		return nil, sale.ErrNotFound
	}
	return sale.FromSnapshot(snap), nil
}

func allFrom(table map[uuid.UUID]sale.Snapshot) []*sale.Sale {
	sales := make([]*sale.Sale, 0, len(table))
	for _, snap := range table {
		if snap.IsDeleted {
			continue
		}
		sales = append(sales, sale.FromSnapshot(snap))
	}
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].CreatedAt.Before(sales[j].CreatedAt)
	})
	return sales
}

func updateIn(table map[uuid.UUID]sale.Snapshot, agg *sale.Sale, markDeleted bool) error {
	snap := agg.Snapshot()
	current, ok := table[snap.ID]
	if !ok || current.IsDeleted {
		return sale.ErrNotFound
	}
	if current.Version != snap.Version {
		return sale.ErrConflict
	}
	if markDeleted {
		snap.IsDeleted = true
	}
	snap.Version++
	table[snap.ID] = snap
	agg.Version = snap.Version
	if markDeleted {
		agg.IsDeleted = true
	}
	return nil
}

// txView is the Store bound to one open transaction.
type txView struct {
	mu    sync.Mutex
	sales map[uuid.UUID]sale.Snapshot
}

var _ sale.Store = (*txView)(nil)

func (v *txView) Add(_ context.Context, agg *sale.Sale) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return addTo(v.sales, agg)
}

func (v *txView) GetByID(_ context.Context, id uuid.UUID) (*sale.Sale, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return getFrom(v.sales, id, false)
}

func (v *txView) GetByIDAny(_ context.Context, id uuid.UUID) (*sale.Sale, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return getFrom(v.sales, id, true)
}

func (v *txView) GetAll(_ context.Context) ([]*sale.Sale, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return allFrom(v.sales), nil
}

func (v *txView) Update(_ context.Context, agg *sale.Sale) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return updateIn(v.sales, agg, false)
}

func (v *txView) MarkDeleted(_ context.Context, agg *sale.Sale) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return updateIn(v.sales, agg, true)
}

// saleTx implements sale.Tx over a staged table copy.
type saleTx struct {
	parent *SaleStore
	view   *txView
	done   bool
}

func (t *saleTx) Store() sale.Store { return t.view }

// Commit swaps the staged table into the parent store atomically.
func (t *saleTx) Commit(context.Context) error {
	if t.done {
		return sale.ErrTransaction
	}
	t.parent.mu.Lock()
	t.parent.sales = t.view.sales
	t.parent.mu.Unlock()
	t.done = true
	return nil
}

// Rollback discards staged changes. Safe to call after Commit or a previous
// Rollback.
func (t *saleTx) Rollback(context.Context) error {
	t.done = true
	return nil
}
