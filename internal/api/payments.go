package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/rotadovale/motofest/internal/pix"
	"github.com/rotadovale/motofest/internal/store"
)

// SignatureHeader carries the gateway's HMAC signature on webhook requests.
const SignatureHeader = "Pix-Signature"

// PaymentsHandler receives notifications from the PIX gateway.
type PaymentsHandler struct {
	DB  *sql.DB
	Pix *pix.Client
}

// Webhook handles POST /api/payments/webhook. Unauthenticated callers get 401.
// Notifications we cannot act on (unknown txid, registration already expired
// and swept) are logged and acknowledged with 200 so the gateway stops
// retrying; only storage errors return 500 to request a redelivery.
func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid body")
		return
	}

	if err := h.Pix.VerifySignature(r.Header.Get(SignatureHeader), body); err != nil {
		slog.Warn("webhook rejected", "remote", r.RemoteAddr, "error", err)
		jsonError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var note pix.Notification
	if err := json.Unmarshal(body, &note); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid notification")
		return
	}

	reg, err := store.GetRegistrationByTxid(r.Context(), h.DB, note.Txid)
	if err != nil {
		slog.Error("webhook lookup failed", "txid", note.Txid, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if reg == nil {
		// Expired registrations are swept away; a payment landing after that
		// needs a manual refund.
		slog.Warn("webhook for unknown txid", "txid", note.Txid, "status", note.Status)
		jsonResponse(w, http.StatusOK, map[string]string{"message": "acknowledged"})
		return
	}

	switch note.Status {
	case pix.StatusApproved:
		if _, err := store.ConfirmPayment(r.Context(), h.DB, reg.ID); err != nil {
			switch {
			case errors.Is(err, store.ErrCancelled), errors.Is(err, store.ErrNotFound):
				slog.Warn("approved payment for dead registration", "number", reg.Number, "txid", note.Txid)
			default:
				slog.Error("webhook confirm failed", "txid", note.Txid, "error", err)
				jsonError(w, http.StatusInternalServerError, "internal error")
				return
			}
		} else {
			slog.Info("payment confirmed by webhook", "number", reg.Number, "txid", note.Txid)
		}
	case pix.StatusRejected, pix.StatusExpired:
		// CancelIfPending carries the pending guard in its UPDATE, so a
		// payment confirmed since we looked the registration up stays
		// confirmed.
		err := store.CancelIfPending(r.Context(), h.DB, reg.ID)
		switch {
		case err == nil:
			slog.Info("registration cancelled by webhook", "number", reg.Number, "status", note.Status)
		case errors.Is(err, store.ErrNotFound):
			slog.Info("webhook cancellation skipped", "number", reg.Number, "status", note.Status)
		default:
			slog.Error("webhook cancel failed", "txid", note.Txid, "error", err)
			jsonError(w, http.StatusInternalServerError, "internal error")
			return
		}
	default:
		slog.Info("webhook ignored", "txid", note.Txid, "status", note.Status)
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "acknowledged"})
}
