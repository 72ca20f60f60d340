package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescore/sales-service/internal/domain/sale"
)

func newSale(t *testing.T) *sale.Sale {
	t.Helper()
	s, err := sale.New(sale.GenerateSaleNumber(), time.Now().Add(-time.Hour), "cust-1", "branch-1")
	require.NoError(t, err)
	require.NoError(t, s.AddItem("p1", decimal.RequireFromString("10.00"), 2))
	return s
}

func TestAddAndGet(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()
	s := newSale(t)

	require.NoError(t, store.Add(ctx, s))

	got, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.SaleNumber, got.SaleNumber)
	assert.True(t, s.TotalAmount().Equal(got.TotalAmount()))

	// The stored copy is independent of the original aggregate.
	require.NoError(t, s.AddItem("p2", decimal.RequireFromString("1.00"), 1))
	got, err = store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items(), 1)
}

func TestAdd_DuplicateSaleNumber(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()

	s1 := newSale(t)
	require.NoError(t, store.Add(ctx, s1))

	s2, err := sale.New(s1.SaleNumber, time.Now().Add(-time.Hour), "cust-2", "branch-2")
	require.NoError(t, err)
	require.ErrorIs(t, store.Add(ctx, s2), sale.ErrConflict)
}

func TestUpdate_VersionConflict(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()
	s := newSale(t)
	require.NoError(t, store.Add(ctx, s))

	// Two readers load the same version.
	first, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	second, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	require.ErrorIs(t, store.Update(ctx, second), sale.ErrConflict)
}

func TestMarkDeleted_FiltersReads(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()
	s := newSale(t)
	require.NoError(t, store.Add(ctx, s))

	require.NoError(t, store.MarkDeleted(ctx, s))
	assert.True(t, s.IsDeleted)

	_, err := store.GetByID(ctx, s.ID)
	require.ErrorIs(t, err, sale.ErrNotFound)

	got, err := store.GetByIDAny(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGetAll_OrderedByCreation(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()

	first := newSale(t)
	require.NoError(t, store.Add(ctx, first))
	second := newSale(t)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, store.Add(ctx, second))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
}

func TestTx_CommitAppliesStagedChanges(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()
	s := newSale(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Store().Add(ctx, s))

	// Invisible until commit.
	_, err = store.GetByID(ctx, s.ID)
	require.ErrorIs(t, err, sale.ErrNotFound)

	require.NoError(t, tx.Commit(ctx))

	got, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.SaleNumber, got.SaleNumber)
}

func TestTx_RollbackDiscardsStagedChanges(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()
	s := newSale(t)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Store().Add(ctx, s))
	require.NoError(t, tx.Rollback(ctx))

	_, err = store.GetByID(ctx, s.ID)
	require.ErrorIs(t, err, sale.ErrNotFound)
}

func TestTx_CommitAfterFinishFails(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.ErrorIs(t, tx.Commit(ctx), sale.ErrTransaction)

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	require.ErrorIs(t, tx.Commit(ctx), sale.ErrTransaction)

	// Rollback stays safe after commit.
	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))
}

func TestTx_UpdateStagedUntilCommit(t *testing.T) {
	store := NewSaleStore()
	ctx := context.Background()
	s := newSale(t)
	require.NoError(t, store.Add(ctx, s))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	staged, err := tx.Store().GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, staged.Cancel())
	require.NoError(t, tx.Store().Update(ctx, staged))

	outside, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, outside.IsCancelled)

	require.NoError(t, tx.Commit(ctx))

	after, err := store.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, after.IsCancelled)
	assert.Equal(t, 2, after.Version)
}
