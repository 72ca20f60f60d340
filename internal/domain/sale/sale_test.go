package sale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSale(t *testing.T) *Sale {
	t.Helper()
	s, err := New(GenerateSaleNumber(), time.Now().Add(-time.Hour), "cust-1", "branch-1")
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name       string
		saleNumber string
		saleDate   time.Time
		customerID string
		branchID   string
		field      string
	}{
		{"empty sale number", "", past, "c", "b", "saleNumber"},
		{"empty customer", "SALE-1", past, "", "b", "customerId"},
		{"empty branch", "SALE-1", past, "c", "", "branchId"},
		{"future date", "SALE-1", time.Now().Add(time.Hour), "c", "b", "saleDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.saleNumber, tt.saleDate, tt.customerID, tt.branchID)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestAddItem_ComputesDiscountAndTotal(t *testing.T) {
	s := newTestSale(t)

	require.NoError(t, s.AddItem("p1", decimal.RequireFromString("10.00"), 5))
	require.NoError(t, s.AddItem("p2", decimal.RequireFromString("2.50"), 2))

	items := s.Items()
	require.Len(t, items, 2)
	assert.True(t, decimal.RequireFromString("5.00").Equal(items[0].Discount))
	assert.True(t, decimal.Zero.Equal(items[1].Discount))

	// 50.00 - 5.00 + 5.00 = 50.00
	assert.True(t, decimal.RequireFromString("50.00").Equal(s.TotalAmount()),
		"got %s", s.TotalAmount())
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	s := newTestSale(t)

	err := s.AddItem("p1", decimal.RequireFromString("10.00"), 21)

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
	assert.Empty(t, s.Items())
}

func TestAddItem_NonPositivePrice(t *testing.T) {
	s := newTestSale(t)

	err := s.AddItem("p1", decimal.Zero, 1)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "unitPrice", vErr.Field)
}

func TestAddItem_ClosedSale(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.Cancel())

	err := s.AddItem("p1", decimal.RequireFromString("10.00"), 1)
	require.ErrorIs(t, err, ErrSaleClosed)
}

func TestRemoveItem(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem("p1", decimal.RequireFromString("10.00"), 1))
	require.NoError(t, s.AddItem("p2", decimal.RequireFromString("5.00"), 1))

	require.NoError(t, s.RemoveItem("p1"))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)

	require.ErrorIs(t, s.RemoveItem("p1"), ErrNotFound)
}

func TestRevise_RebuildsItemsAndDiscounts(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem("p1", decimal.RequireFromString("10.00"), 1))
	created := s.CreatedAt
	number := s.SaleNumber

	err := s.Revise(time.Now().Add(-time.Minute), "cust-2", "branch-2", []NewItem{
		{ProductID: "p9", UnitPrice: decimal.RequireFromString("4.00"), Quantity: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, "cust-2", s.CustomerID)
	assert.Equal(t, "branch-2", s.BranchID)
	assert.Equal(t, number, s.SaleNumber)
	assert.Equal(t, created, s.CreatedAt)

	items := s.Items()
	require.Len(t, items, 1)
	assert.True(t, decimal.RequireFromString("8.00").Equal(items[0].Discount))
	assert.True(t, decimal.RequireFromString("32.00").Equal(s.TotalAmount()))
}

func TestRevise_InvalidItemLeavesSaleUnchanged(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem("p1", decimal.RequireFromString("10.00"), 2))

	err := s.Revise(s.SaleDate, s.CustomerID, s.BranchID, []NewItem{
		{ProductID: "p2", UnitPrice: decimal.RequireFromString("1.00"), Quantity: 21},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p2", iqErr.ProductID)

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ProductID)
}

func TestCancel_Twice(t *testing.T) {
	s := newTestSale(t)

	require.NoError(t, s.Cancel())
	assert.True(t, s.IsCancelled)

	require.ErrorIs(t, s.Cancel(), ErrAlreadyCancelled)
}

func TestItems_ReturnsCopy(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem("p1", decimal.RequireFromString("10.00"), 1))

	items := s.Items()
	items[0].ProductID = "tampered"

	assert.Equal(t, "p1", s.Items()[0].ProductID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestSale(t)
	require.NoError(t, s.AddItem("p1", decimal.RequireFromString("10.00"), 4))
	require.NoError(t, s.Cancel())

	restored := FromSnapshot(s.Snapshot())

	assert.Equal(t, s.ID, restored.ID)
	assert.Equal(t, s.SaleNumber, restored.SaleNumber)
	assert.True(t, restored.IsCancelled)
	assert.Equal(t, s.Version, restored.Version)
	assert.True(t, s.TotalAmount().Equal(restored.TotalAmount()))
	require.Len(t, restored.Items(), 1)
}
