package api

import (
	"log/slog"
	"net/http"

	"github.com/rotadovale/motofest/internal/geo"
)

// GeoHandler resolves postal codes for the sign-up form.
type GeoHandler struct {
	Geo *geo.Client
}

// LookupCEP handles GET /api/geo/cep/{cep}.
func (h *GeoHandler) LookupCEP(w http.ResponseWriter, r *http.Request) {
	address, err := h.Geo.Lookup(r.Context(), r.PathValue("cep"))
	if err != nil {
		slog.Warn("cep lookup failed", "cep", r.PathValue("cep"), "error", err)
		jsonError(w, http.StatusBadRequest, "could not resolve cep")
		return
	}
	if address == nil {
		jsonError(w, http.StatusNotFound, "cep not found")
		return
	}
	jsonResponse(w, http.StatusOK, address)
}
