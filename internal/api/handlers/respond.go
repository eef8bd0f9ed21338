package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a standardized error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIError{
		Error: models.APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writePaymentError maps a payment pipeline error to an HTTP status and
// error code. Broadcast rejections keep the indexer's reason verbatim.
func writePaymentError(w http.ResponseWriter, err error) {
	var insufficient *config.InsufficientFundsError
	if errors.As(err, &insufficient) {
		writeError(w, http.StatusUnprocessableEntity, config.ErrorInsufficientFunds, insufficient.Error())
		return
	}
	if rejected, ok := config.IsRejected(err); ok {
		writeError(w, http.StatusBadGateway, config.ErrorBroadcastRejected, rejected.Reason)
		return
	}

	switch {
	case errors.Is(err, config.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, config.ErrorInvalidAmount, err.Error())
	case errors.Is(err, config.ErrAddressNetworkMismatch):
		writeError(w, http.StatusBadRequest, config.ErrorAddressNetworkMismatch, err.Error())
	case errors.Is(err, config.ErrNoUTXOs):
		writeError(w, http.StatusUnprocessableEntity, config.ErrorNoUTXOs, err.Error())
	case errors.Is(err, config.ErrUserCancelled):
		writeError(w, http.StatusConflict, config.ErrorUserCancelled, err.Error())
	case errors.Is(err, config.ErrSigningTimeout):
		writeError(w, http.StatusGatewayTimeout, config.ErrorSigningTimeout, err.Error())
	case errors.Is(err, config.ErrSignerBusy):
		writeError(w, http.StatusConflict, config.ErrorSignerBusy, err.Error())
	case errors.Is(err, config.ErrExtractionFailed):
		writeError(w, http.StatusUnprocessableEntity, config.ErrorExtractionFailed, err.Error())
	case errors.Is(err, config.ErrAttemptNotFound):
		writeError(w, http.StatusNotFound, config.ErrorAttemptNotFound, err.Error())
	case errors.Is(err, config.ErrTxNotFound):
		writeError(w, http.StatusNotFound, config.ErrorTxNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, config.ErrorDatabase, err.Error())
	}
}
