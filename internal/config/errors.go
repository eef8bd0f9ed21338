package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig = errors.New("invalid configuration")

	// Construction-time errors. Fatal to the current attempt; surfaced to
	// the user immediately.
	ErrUnknownNetwork         = errors.New("unknown network")
	ErrNoUTXOs                = errors.New("no spendable UTXOs available")
	ErrInvalidAmount          = errors.New("payment amount must be positive")
	ErrAddressNetworkMismatch = errors.New("address does not belong to the target network")
	ErrTxTooLarge             = errors.New("transaction exceeds maximum input count")

	// Signing. Cancellation is never retried automatically; timeout is
	// retriable only by explicit user action.
	ErrUserCancelled  = errors.New("signing cancelled by user")
	ErrSigningTimeout = errors.New("signing request timed out")
	ErrSignerBusy     = errors.New("a signing request is already pending for this attempt")

	// Broadcast.
	ErrExtractionFailed = errors.New("could not extract signed transaction")

	// Verification. Soft conditions, not failures: the transaction may
	// still confirm after the core stops watching.
	ErrTxNotFound          = errors.New("transaction not found by indexer")
	ErrVerificationTimeout = errors.New("confirmation polling timed out")

	// Indexer.
	ErrIndexerUnavailable = errors.New("indexer unavailable")

	// Payments.
	ErrAttemptNotFound = errors.New("payment attempt not found")

	// Price display.
	ErrPriceFetchFailed = errors.New("price fetch failed")
)

// InsufficientFundsError reports the exact shortfall so the UI can show
// actionable text.
type InsufficientFundsError struct {
	HaveSats int64
	NeedSats int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %d sats, need %d sats", e.HaveSats, e.NeedSats)
}

// RejectedError carries the indexer's broadcast rejection reason verbatim.
// The reason must reach the user untouched (insufficient fee, already
// spent, ...), never be swallowed.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "broadcast rejected: " + e.Reason
}

// IsRejected returns the rejection if err wraps a RejectedError.
func IsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Error codes — shared with frontend via API responses.
const (
	ErrorInvalidConfig          = "ERROR_INVALID_CONFIG"
	ErrorUnknownNetwork         = "ERROR_UNKNOWN_NETWORK"
	ErrorNoUTXOs                = "ERROR_NO_UTXOS"
	ErrorInsufficientFunds      = "ERROR_INSUFFICIENT_FUNDS"
	ErrorInvalidAmount          = "ERROR_INVALID_AMOUNT"
	ErrorAddressNetworkMismatch = "ERROR_ADDRESS_NETWORK_MISMATCH"
	ErrorUserCancelled          = "ERROR_USER_CANCELLED"
	ErrorSigningTimeout         = "ERROR_SIGNING_TIMEOUT"
	ErrorSignerBusy             = "ERROR_SIGNER_BUSY"
	ErrorExtractionFailed       = "ERROR_EXTRACTION_FAILED"
	ErrorBroadcastRejected      = "ERROR_BROADCAST_REJECTED"
	ErrorTxNotFound             = "ERROR_TX_NOT_FOUND"
	ErrorVerificationTimeout    = "ERROR_VERIFICATION_TIMEOUT"
	ErrorIndexerUnavailable     = "ERROR_INDEXER_UNAVAILABLE"
	ErrorAttemptNotFound        = "ERROR_ATTEMPT_NOT_FOUND"
	ErrorDatabase               = "ERROR_DATABASE"
	ErrorInvalidRequest         = "ERROR_INVALID_REQUEST"
)
