package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salescore/sales-service/internal/domain/sale"
)

type saleItemRequest struct {
	ProductID string          `json:"productId"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

type saleRequest struct {
	SaleDate   time.Time         `json:"saleDate"`
	CustomerID string            `json:"customerId"`
	BranchID   string            `json:"branchId"`
	Items      []saleItemRequest `json:"items"`
}

type createSaleResponse struct {
	ID          string          `json:"id"`
	SaleNumber  string          `json:"saleNumber"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type saleItemResponse struct {
	ProductID string          `json:"productId"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type saleResponse struct {
	ID          string             `json:"id"`
	SaleNumber  string             `json:"saleNumber"`
	SaleDate    time.Time          `json:"saleDate"`
	CustomerID  string             `json:"customerId"`
	BranchID    string             `json:"branchId"`
	Items       []saleItemResponse `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	IsCancelled bool               `json:"isCancelled"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type cancelSaleRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.sales.Create(r.Context(), sale.CreateCommand{
		SaleDate:   req.SaleDate,
		CustomerID: req.CustomerID,
		BranchID:   req.BranchID,
		Items:      toNewItems(req.Items),
	})
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, createSaleResponse{
		ID:          result.ID.String(),
		SaleNumber:  result.SaleNumber,
		TotalAmount: result.TotalAmount,
	})
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.sales.GetAll(r.Context())
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	out := make([]saleResponse, len(sales))
	for i, s := range sales {
		out[i] = toSaleResponse(s)
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s, err := h.sales.GetByID(r.Context(), id)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSaleResponse(s))
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.sales.Update(r.Context(), sale.UpdateCommand{
		ID:         id,
		SaleDate:   req.SaleDate,
		CustomerID: req.CustomerID,
		BranchID:   req.BranchID,
		Items:      toNewItems(req.Items),
	})
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	if !updated {
		writeError(w, r, http.StatusNotFound, "sale not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// The reason body is optional.
	var req cancelSaleRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	cancelled, err := h.sales.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	if !cancelled {
		writeError(w, r, http.StatusNotFound, "sale not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid sale id")
		return uuid.Nil, false
	}
	return id, true
}

func toNewItems(items []saleItemRequest) []sale.NewItem {
	out := make([]sale.NewItem, len(items))
	for i, it := range items {
		out[i] = sale.NewItem{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	return out
}

func toSaleResponse(s *sale.Sale) saleResponse {
	items := s.Items()
	out := make([]saleItemResponse, len(items))
	for i, it := range items {
		out[i] = saleItemResponse{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Discount:  it.Discount,
			LineTotal: it.LineTotal(),
		}
	}
	return saleResponse{
		ID:          s.ID.String(),
		SaleNumber:  s.SaleNumber,
		SaleDate:    s.SaleDate,
		CustomerID:  s.CustomerID,
		BranchID:    s.BranchID,
		Items:       out,
		TotalAmount: s.TotalAmount(),
		IsCancelled: s.IsCancelled,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
