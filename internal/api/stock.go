package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rotadovale/motofest/internal/model"
	"github.com/rotadovale/motofest/internal/store"
)

// StockHandler handles shirt stock endpoints.
type StockHandler struct {
	DB *sql.DB
}

type setStockRequest struct {
	TotalUnits int `json:"total_units"`
}

// List handles GET /api/stock. Public: the sign-up form greys out variants
// with nothing available.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	stock, err := store.ListStock(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list stock", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list stock")
		return
	}
	if stock == nil {
		stock = []model.ShirtStock{}
	}
	jsonResponse(w, http.StatusOK, stock)
}

// Set handles PUT /api/stock/{size}/{sleeve}, adjusting the total units for a
// variant. Lowering the total below what is already reserved is refused.
func (h *StockHandler) Set(w http.ResponseWriter, r *http.Request) {
	size := r.PathValue("size")
	sleeve := r.PathValue("sleeve")
	if !model.ValidShirt(size, sleeve) {
		jsonError(w, http.StatusBadRequest, "unknown shirt size or sleeve type")
		return
	}

	var req setStockRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalUnits < 0 {
		jsonError(w, http.StatusBadRequest, "total_units must not be negative")
		return
	}

	if err := store.SetStockTotal(r.Context(), h.DB, size, sleeve, req.TotalUnits); err != nil {
		var violation *store.CapacityViolationError
		if errors.As(err, &violation) {
			jsonError(w, http.StatusConflict, violation.Error())
			return
		}
		slog.Error("failed to set stock", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to set stock")
		return
	}

	updated, err := store.GetStock(r.Context(), h.DB, size, sleeve)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get stock")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("stock updated", "user", claims.Username, "size", size, "sleeve", sleeve, "total", req.TotalUnits)
	jsonResponse(w, http.StatusOK, updated)
}
