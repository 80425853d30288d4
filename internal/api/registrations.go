package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rotadovale/motofest/internal/model"
	"github.com/rotadovale/motofest/internal/pix"
	"github.com/rotadovale/motofest/internal/store"
)

// RegistrationsHandler handles sign-up and registration management endpoints.
type RegistrationsHandler struct {
	DB         *sql.DB
	Pix        *pix.Client
	Pricing    store.Pricing
	PendingTTL time.Duration
}

type createRegistrationRequest struct {
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	CPF        string              `json:"cpf"`
	Phone      string              `json:"phone"`
	City       string              `json:"city"`
	State      string              `json:"state"`
	Motorcycle string              `json:"motorcycle"`
	Shirt      store.ShirtRequest  `json:"shirt"`
	Extras     []store.ShirtRequest `json:"extras"`
}

type createRegistrationResponse struct {
	Registration *model.Registration `json:"registration"`
	Payment      *pix.Charge         `json:"payment"`
}

// statusView is the public, trimmed view of a registration for the "check my
// registration" page. It deliberately omits personal data beyond the name.
type statusView struct {
	Number        int64     `json:"number"`
	Name          string    `json:"name"`
	PaymentStatus string    `json:"payment_status"`
	AmountCents   int64     `json:"amount_cents"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Create handles POST /api/registrations. It reserves stock, records the
// registration, and opens a PIX charge for the amount due. If the gateway
// refuses the charge the registration is rolled back so the hold does not
// linger without a way to pay.
func (h *RegistrationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Email == "" || req.CPF == "" {
		jsonError(w, http.StatusBadRequest, "name, email, and cpf required")
		return
	}
	if err := model.ValidateCPF(req.CPF); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !model.ValidShirt(req.Shirt.Size, req.Shirt.Sleeve) {
		jsonError(w, http.StatusBadRequest, "unknown shirt size or sleeve type")
		return
	}
	for _, extra := range req.Extras {
		if !model.ValidShirt(extra.Size, extra.Sleeve) {
			jsonError(w, http.StatusBadRequest, "unknown shirt size or sleeve type")
			return
		}
	}

	reg, err := store.CreateRegistration(r.Context(), h.DB, store.NewRegistration{
		Name:       req.Name,
		Email:      req.Email,
		CPF:        req.CPF,
		Phone:      req.Phone,
		City:       req.City,
		State:      req.State,
		Motorcycle: req.Motorcycle,
		Shirt:      req.Shirt,
		Extras:     req.Extras,
	}, h.Pricing, h.PendingTTL)
	if err != nil {
		var unavailable *store.StockUnavailableError
		switch {
		case errors.Is(err, store.ErrDuplicateIdentity):
			jsonError(w, http.StatusConflict, "a registration with this email or cpf already exists")
		case errors.As(err, &unavailable):
			jsonError(w, http.StatusConflict, unavailable.Error())
		default:
			slog.Error("failed to create registration", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to create registration")
		}
		return
	}

	txid := pix.NewTxid()
	charge, err := h.Pix.CreateCharge(r.Context(), txid, reg.AmountCents, reg.Name)
	if err != nil {
		slog.Error("pix charge failed, rolling back registration", "registration", reg.ID, "error", err)
		if delErr := store.DeleteRegistration(r.Context(), h.DB, reg.ID); delErr != nil {
			slog.Error("rollback after pix failure failed", "registration", reg.ID, "error", delErr)
		}
		jsonError(w, http.StatusBadGateway, "payment gateway unavailable, try again")
		return
	}

	if err := store.SetPixTxid(r.Context(), h.DB, reg.ID, txid); err != nil {
		slog.Error("failed to attach txid", "registration", reg.ID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create registration")
		return
	}
	reg.PixTxid = txid

	slog.Info("registration created",
		"number", reg.Number,
		"email", reg.Email,
		"amount_cents", reg.AmountCents,
		"txid", txid,
	)
	jsonResponse(w, http.StatusCreated, createRegistrationResponse{Registration: reg, Payment: charge})
}

// Status handles GET /api/registrations/{number}/status, the public lookup.
func (h *RegistrationsHandler) Status(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseInt(r.PathValue("number"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration number")
		return
	}

	reg, err := store.GetRegistrationByNumber(r.Context(), h.DB, number)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get registration")
		return
	}
	if reg == nil {
		jsonError(w, http.StatusNotFound, "registration not found")
		return
	}

	jsonResponse(w, http.StatusOK, statusView{
		Number:        reg.Number,
		Name:          reg.Name,
		PaymentStatus: reg.PaymentStatus,
		AmountCents:   reg.AmountCents,
		ExpiresAt:     reg.ExpiresAt,
	})
}

// List handles GET /api/registrations with an optional ?status= filter.
func (h *RegistrationsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	regs, err := store.ListRegistrations(r.Context(), h.DB, status)
	if err != nil {
		slog.Error("failed to list registrations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list registrations")
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	jsonResponse(w, http.StatusOK, regs)
}

// Get handles GET /api/registrations/{id}.
func (h *RegistrationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	reg, err := store.GetRegistration(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get registration")
		return
	}
	if reg == nil {
		jsonError(w, http.StatusNotFound, "registration not found")
		return
	}
	jsonResponse(w, http.StatusOK, reg)
}

// Delete handles DELETE /api/registrations/{id}. The row and its shirt line
// items are physically removed and the reserved units released.
func (h *RegistrationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	if err := store.DeleteRegistration(r.Context(), h.DB, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "registration not found")
			return
		}
		slog.Error("failed to delete registration", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete registration")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("registration deleted", "user", claims.Username, "registration", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "registration deleted"})
}

// Confirm handles POST /api/registrations/{id}/confirm, the manual override
// for payments settled outside the gateway (cash at the gate, bank transfer).
func (h *RegistrationsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	reg, err := store.ConfirmPayment(r.Context(), h.DB, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			jsonError(w, http.StatusNotFound, "registration not found")
		case errors.Is(err, store.ErrCancelled):
			jsonError(w, http.StatusConflict, "registration is cancelled")
		default:
			slog.Error("failed to confirm payment", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to confirm payment")
		}
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("payment confirmed manually", "user", claims.Username, "number", reg.Number)
	jsonResponse(w, http.StatusOK, reg)
}

// Cancel handles POST /api/registrations/{id}/cancel. Cancelling releases the
// stock immediately; the sweeper removes the row later.
func (h *RegistrationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	if err := store.CancelRegistration(r.Context(), h.DB, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "registration not found")
			return
		}
		slog.Error("failed to cancel registration", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to cancel registration")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("registration cancelled", "user", claims.Username, "registration", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "registration cancelled"})
}

// PollPayment handles GET /api/registrations/{id}/payment. It asks the gateway
// for the current charge status and reconciles a missed approval, covering the
// case where a webhook never arrived.
func (h *RegistrationsHandler) PollPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	reg, err := store.GetRegistration(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get registration")
		return
	}
	if reg == nil {
		jsonError(w, http.StatusNotFound, "registration not found")
		return
	}
	if reg.PixTxid == "" {
		jsonError(w, http.StatusNotFound, "registration has no charge")
		return
	}

	charge, err := h.Pix.GetCharge(r.Context(), reg.PixTxid)
	if err != nil {
		slog.Error("failed to poll charge", "txid", reg.PixTxid, "error", err)
		jsonError(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}
	if charge == nil {
		jsonError(w, http.StatusNotFound, "charge not found at gateway")
		return
	}

	if charge.Status == pix.StatusApproved && reg.PaymentStatus == model.PaymentPending {
		if _, err := store.ConfirmPayment(r.Context(), h.DB, reg.ID); err != nil {
			slog.Error("failed to reconcile approved charge", "registration", reg.ID, "error", err)
		} else {
			slog.Info("payment reconciled by poll", "number", reg.Number, "txid", reg.PixTxid)
		}
	}

	jsonResponse(w, http.StatusOK, charge)
}

// AddExtra handles POST /api/registrations/{id}/extras.
func (h *RegistrationsHandler) AddExtra(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration id")
		return
	}

	var req store.ShirtRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidShirt(req.Size, req.Sleeve) {
		jsonError(w, http.StatusBadRequest, "unknown shirt size or sleeve type")
		return
	}

	extra, err := store.AddExtraShirt(r.Context(), h.DB, id, req, h.Pricing.ExtraShirtCents)
	if err != nil {
		var unavailable *store.StockUnavailableError
		switch {
		case errors.Is(err, store.ErrNotFound):
			jsonError(w, http.StatusNotFound, "registration not found")
		case errors.As(err, &unavailable):
			jsonError(w, http.StatusConflict, unavailable.Error())
		default:
			slog.Error("failed to add extra shirt", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to add extra shirt")
		}
		return
	}

	jsonResponse(w, http.StatusCreated, extra)
}

// RemoveExtra handles DELETE /api/registrations/{id}/extras/{extraID}.
func (h *RegistrationsHandler) RemoveExtra(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid registration id")
		return
	}
	extraID, err := strconv.ParseInt(r.PathValue("extraID"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid extra shirt id")
		return
	}

	if err := store.RemoveExtraShirt(r.Context(), h.DB, id, extraID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "extra shirt not found")
			return
		}
		slog.Error("failed to remove extra shirt", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to remove extra shirt")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "extra shirt removed"})
}
