package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/salescore/sales-service/internal/domain/sale"
	"github.com/salescore/sales-service/internal/event"
	"github.com/salescore/sales-service/internal/handler"
	"github.com/salescore/sales-service/internal/storage/memory"
)

// --- Helpers ---

func newTestServer(t *testing.T) (*httptest.Server, *event.Bus) {
	t.Helper()
	bus := event.NewBus(zap.NewNop())
	svc := sale.NewService(memory.NewSaleStore(), bus, zap.NewNop())

	mux := http.NewServeMux()
	handler.New(svc).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, bus
}

func validBody() map[string]any {
	return map[string]any{
		"saleDate":   time.Now().Add(-time.Hour).Format(time.RFC3339),
		"customerId": "cust-1",
		"branchId":   "branch-1",
		"items": []map[string]any{
			{"productId": "p1", "unitPrice": "10.00", "quantity": 5},
		},
	}
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createSale(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sales", validBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	return created.ID
}

// --- Tests ---

func TestCreateSale(t *testing.T) {
	srv, bus := newTestServer(t)

	var published []event.Event
	bus.Subscribe(sale.EventCreated, func(_ context.Context, e event.Event) error {
		published = append(published, e)
		return nil
	})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sales", validBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID          string `json:"id"`
		SaleNumber  string `json:"saleNumber"`
		TotalAmount string `json:"totalAmount"`
	}
	decodeBody(t, resp, &created)

	assert.NotEmpty(t, created.ID)
	assert.Contains(t, created.SaleNumber, "SALE-")
	assert.Equal(t, "45", created.TotalAmount)
	assert.Len(t, published, 1)
}

func TestCreateSale_InvalidQuantity(t *testing.T) {
	srv, _ := newTestServer(t)

	body := validBody()
	body["items"] = []map[string]any{
		{"productId": "p1", "unitPrice": "10.00", "quantity": 21},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sales", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	decodeBody(t, resp, &errResp)
	assert.Equal(t, http.StatusBadRequest, errResp.Code)
	assert.Contains(t, errResp.Message, "quantity")
}

func TestCreateSale_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sales", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSale(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSale(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sales/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		ID    string `json:"id"`
		Items []struct {
			ProductID string `json:"productId"`
			Discount  string `json:"discount"`
			LineTotal string `json:"lineTotal"`
		} `json:"items"`
		IsCancelled bool `json:"isCancelled"`
	}
	decodeBody(t, resp, &got)

	assert.Equal(t, id, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ProductID)
	assert.Equal(t, "5", got.Items[0].Discount)
	assert.Equal(t, "45", got.Items[0].LineTotal)
	assert.False(t, got.IsCancelled)
}

func TestGetSale_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSale_InvalidID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sales/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListSales(t *testing.T) {
	srv, _ := newTestServer(t)
	createSale(t, srv)
	createSale(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sales", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sales []json.RawMessage
	decodeBody(t, resp, &sales)
	assert.Len(t, sales, 2)
}

func TestUpdateSale(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSale(t, srv)

	body := validBody()
	body["customerId"] = "cust-2"
	body["items"] = []map[string]any{
		{"productId": "p2", "unitPrice": "4.00", "quantity": 10},
	}
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/sales/"+id, body)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/sales/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		CustomerID  string `json:"customerId"`
		TotalAmount string `json:"totalAmount"`
	}
	decodeBody(t, resp, &got)
	assert.Equal(t, "cust-2", got.CustomerID)
	assert.Equal(t, "32", got.TotalAmount)
}

func TestUpdateSale_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/sales/"+uuid.NewString(), validBody())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelSale(t *testing.T) {
	srv, bus := newTestServer(t)

	var reasons []string
	bus.Subscribe(sale.EventCancelled, func(_ context.Context, e event.Event) error {
		if c, ok := e.(*sale.CancelledEvent); ok {
			reasons = append(reasons, c.Reason)
		}
		return nil
	})

	id := createSale(t, srv)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/sales/"+id,
		map[string]any{"reason": "customer returned goods"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"customer returned goods"}, reasons)

	// The sale stays readable and is marked cancelled.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/sales/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		IsCancelled bool `json:"isCancelled"`
	}
	decodeBody(t, resp, &got)
	assert.True(t, got.IsCancelled)

	// Cancelling again conflicts.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/sales/"+id, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelSale_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/sales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
