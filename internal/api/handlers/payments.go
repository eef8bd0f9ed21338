package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-chi/chi/v5"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
	"github.com/velencia/satpay/internal/network"
	"github.com/velencia/satpay/internal/payment"
	"github.com/velencia/satpay/internal/signing"
)

// PaymentDeps holds dependencies for the payment handlers.
type PaymentDeps struct {
	Session *payment.Session
	Bridge  *signing.Bridge
	Profile *network.Profile
}

// CreatePaymentRequest is the POST /api/payments request body.
type CreatePaymentRequest struct {
	OrderID    string `json:"orderId"`
	Sender     string `json:"sender"`
	AmountSats int64  `json:"amountSats"`
}

// SignatureRequest is the POST /api/payments/{id}/signature request body.
// Exactly one of the two artifact fields must be set.
type SignatureRequest struct {
	PsbtBase64 string `json:"psbtBase64,omitempty"`
	RawTxHex   string `json:"rawTxHex,omitempty"`
}

// CreatePayment handles POST /api/payments. It runs the full pipeline:
// build, wait for the customer's signature, broadcast. The response carries
// the attempt in AWAITING_CONFIRMATION; settlement continues in the
// background and is streamed over /api/events.
func CreatePayment(deps *PaymentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req CreatePaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("invalid payment request body", "error", err)
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid request body")
			return
		}

		if req.AmountSats <= 0 {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidAmount, "amountSats must be positive")
			return
		}
		if req.Sender == "" {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "sender address is required")
			return
		}
		if _, err := btcutil.DecodeAddress(req.Sender, deps.Profile.Params); err != nil {
			slog.Warn("invalid sender address",
				"sender", req.Sender,
				"network", deps.Profile.Name,
				"error", err,
			)
			writeError(w, http.StatusBadRequest, config.ErrorAddressNetworkMismatch,
				"sender address is not valid for network "+deps.Profile.Name)
			return
		}

		slog.Info("payment requested",
			"orderID", req.OrderID,
			"sender", req.Sender,
			"amountSats", req.AmountSats,
		)

		attempt, err := deps.Session.Pay(r.Context(), payment.PayParams{
			OrderID:    req.OrderID,
			Sender:     req.Sender,
			AmountSats: req.AmountSats,
		})
		if err != nil {
			slog.Warn("payment failed",
				"orderID", req.OrderID,
				"error", err,
				"duration", time.Since(start).Round(time.Millisecond),
			)
			writePaymentError(w, err)
			return
		}

		slog.Info("payment broadcast",
			"id", attempt.ID,
			"txid", attempt.TxID,
			"feeSats", attempt.FeeSats,
			"duration", time.Since(start).Round(time.Millisecond),
		)

		writeJSON(w, http.StatusCreated, models.APIResponse{Data: attempt})
	}
}

// SubmitSignature handles POST /api/payments/{id}/signature: the customer's
// wallet posting back the signed artifact for a pending sign request.
func SubmitSignature(deps *PaymentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req SignatureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid request body")
			return
		}

		if (req.PsbtBase64 == "") == (req.RawTxHex == "") {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest,
				"exactly one of psbtBase64 or rawTxHex must be set")
			return
		}

		err := deps.Bridge.Complete(id, &models.SignedTransaction{
			PsbtBase64: req.PsbtBase64,
			RawTxHex:   req.RawTxHex,
		})
		if err != nil {
			slog.Warn("signature submission rejected", "id", id, "error", err)
			writePaymentError(w, err)
			return
		}

		slog.Info("signature received", "id", id)
		writeJSON(w, http.StatusOK, models.APIResponse{Data: map[string]string{"id": id, "status": "accepted"}})
	}
}

// CancelPayment handles POST /api/payments/{id}/cancel: the customer backing
// out of signing. A cancelled attempt is never retried automatically.
func CancelPayment(deps *PaymentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := deps.Bridge.Cancel(id); err != nil {
			// No sign request in flight. The attempt may still be cancellable
			// directly if it has not reached a terminal state.
			if err := deps.Session.CancelSigning(id); err != nil {
				writePaymentError(w, err)
				return
			}
		}

		slog.Info("payment cancelled", "id", id)
		writeJSON(w, http.StatusOK, models.APIResponse{Data: map[string]string{"id": id, "status": "cancelled"}})
	}
}

// GetPayment handles GET /api/payments/{ref}. The reference is a txid or,
// for attempts that never reached broadcast, the attempt ID.
func GetPayment(deps *PaymentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")

		attempt, err := deps.Session.Status(ref)
		if err != nil {
			attempt, err = deps.Session.StatusByID(ref)
		}
		if err != nil {
			writePaymentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: attempt})
	}
}

// VerifyPayment handles GET /api/payments/verify/{txid}: an on-chain
// re-check that the transaction pays the store address, independent of any
// recorded attempt state. This is the audit path after a verification
// timeout.
func VerifyPayment(deps *PaymentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txid := chi.URLParam(r, "txid")

		result, err := deps.Session.VerifyIntent(r.Context(), txid)
		if err != nil {
			slog.Error("payment verification failed", "txid", txid, "error", err)
			writePaymentError(w, err)
			return
		}

		slog.Info("payment verified",
			"txid", txid,
			"outputFound", result.OutputFound,
			"paidSats", result.PaidSats,
			"confirmed", result.Confirmed,
		)

		writeJSON(w, http.StatusOK, models.APIResponse{Data: result})
	}
}
