package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
)

func TestWritePaymentError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "insufficient funds",
			err:        fmt.Errorf("build: %w", &config.InsufficientFundsError{HaveSats: 1, NeedSats: 2}),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   config.ErrorInsufficientFunds,
		},
		{
			name:       "broadcast rejected",
			err:        &config.RejectedError{Reason: "min relay fee not met"},
			wantStatus: http.StatusBadGateway,
			wantCode:   config.ErrorBroadcastRejected,
		},
		{
			name:       "invalid amount",
			err:        config.ErrInvalidAmount,
			wantStatus: http.StatusBadRequest,
			wantCode:   config.ErrorInvalidAmount,
		},
		{
			name:       "address network mismatch",
			err:        config.ErrAddressNetworkMismatch,
			wantStatus: http.StatusBadRequest,
			wantCode:   config.ErrorAddressNetworkMismatch,
		},
		{
			name:       "no utxos",
			err:        config.ErrNoUTXOs,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   config.ErrorNoUTXOs,
		},
		{
			name:       "user cancelled",
			err:        config.ErrUserCancelled,
			wantStatus: http.StatusConflict,
			wantCode:   config.ErrorUserCancelled,
		},
		{
			name:       "signing timeout",
			err:        config.ErrSigningTimeout,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   config.ErrorSigningTimeout,
		},
		{
			name:       "signer busy",
			err:        config.ErrSignerBusy,
			wantStatus: http.StatusConflict,
			wantCode:   config.ErrorSignerBusy,
		},
		{
			name:       "extraction failed",
			err:        config.ErrExtractionFailed,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   config.ErrorExtractionFailed,
		},
		{
			name:       "attempt not found",
			err:        config.ErrAttemptNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   config.ErrorAttemptNotFound,
		},
		{
			name:       "tx not found",
			err:        config.ErrTxNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   config.ErrorTxNotFound,
		},
		{
			name:       "unknown error",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   config.ErrorDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writePaymentError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp models.APIError
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestWritePaymentError_RejectionReasonVerbatim(t *testing.T) {
	reason := `{"code":-26,"message":"txn-mempool-conflict"}`
	w := httptest.NewRecorder()
	writePaymentError(w, fmt.Errorf("broadcast: %w", &config.RejectedError{Reason: reason}))

	var resp models.APIError
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Message != reason {
		t.Errorf("rejection reason altered: %q", resp.Error.Message)
	}
}
