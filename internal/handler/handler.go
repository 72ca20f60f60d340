// Package handler exposes the sales write service over HTTP. The API surface
// is deliberately thin: routing, DTO shaping, and error mapping only.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/salescore/sales-service/internal/domain/sale"
)

// Handler serves the sales API, delegating all business logic to the write
// service.
type Handler struct {
	sales *sale.Service
}

// New constructs a Handler.
func New(sales *sale.Service) *Handler {
	return &Handler{sales: sales}
}

// Register mounts the sales routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sales", h.createSale)
	mux.HandleFunc("GET /api/sales", h.listSales)
	mux.HandleFunc("GET /api/sales/{id}", h.getSale)
	mux.HandleFunc("PUT /api/sales/{id}", h.updateSale)
	mux.HandleFunc("DELETE /api/sales/{id}", h.cancelSale)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}

// mapDomainError converts domain errors to HTTP status codes. Unknown errors
// are logged and reported as 500 without leaking details.
func mapDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr  *sale.ValidationError
		iqErr *sale.InvalidQuantityError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, r, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &iqErr):
		writeError(w, r, http.StatusBadRequest, iqErr.Error())
	case errors.Is(err, sale.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "sale not found")
	case errors.Is(err, sale.ErrAlreadyCancelled):
		writeError(w, r, http.StatusConflict, "sale already cancelled")
	case errors.Is(err, sale.ErrSaleClosed):
		writeError(w, r, http.StatusConflict, "sale is cancelled or deleted")
	case errors.Is(err, sale.ErrConflict):
		writeError(w, r, http.StatusConflict, "sale was modified concurrently")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
