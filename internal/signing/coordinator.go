package signing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
)

// Request is the narrow contract handed to an external signer: the PSBT to
// sign, which inputs to sign, and the network the signer should believe it
// is on (which may differ from the indexer's actual network).
type Request struct {
	AttemptID     string `json:"attemptId"`
	PsbtBase64    string `json:"psbtBase64"`
	SenderAddress string `json:"senderAddress"`
	SignIndexes   []int  `json:"signIndexes"`
	SignerNetwork string `json:"signerNetwork"`
}

// Signer is the injected capability representing "ask the externally
// controlled wallet to sign". The actual cryptographic signing happens in a
// browser extension or hardware device outside this process.
//
// Sign blocks until the signer produces an artifact, reports cancellation
// (config.ErrUserCancelled), or ctx is done. Implementations must not
// assume they can inspect or alter the payload; ownership of "what gets
// signed" transfers to the external signer at handoff.
type Signer interface {
	Sign(ctx context.Context, req Request) (*models.SignedTransaction, error)
}

// Coordinator wraps a Signer with the bounded-wait policy the core depends
// on: external signers can hang indefinitely (a popup dismissed silently),
// and the core must not block forever.
type Coordinator struct {
	timeout time.Duration
}

// NewCoordinator creates a coordinator with the given signing timeout.
func NewCoordinator(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = config.DefaultSigningTimeout
	}
	slog.Info("signing coordinator created", "timeout", timeout)
	return &Coordinator{timeout: timeout}
}

// RequestSignature hands the unsigned transaction to the signer and awaits
// the signed artifact.
//
// Outcomes: a SignedTransaction; config.ErrUserCancelled on explicit
// cancellation (never retried automatically); config.ErrSigningTimeout when
// the bounded wait elapses (retriable, but only on explicit user action).
func (c *Coordinator) RequestSignature(ctx context.Context, unsigned *models.UnsignedTransaction, signer Signer, attemptID, signerNetwork string) (*models.SignedTransaction, error) {
	req := Request{
		AttemptID:     attemptID,
		PsbtBase64:    unsigned.PsbtBase64,
		SenderAddress: unsigned.Sender,
		SignIndexes:   unsigned.SignIndexes,
		SignerNetwork: signerNetwork,
	}

	slog.Info("requesting external signature",
		"attemptId", attemptID,
		"sender", unsigned.Sender,
		"inputs", len(unsigned.SignIndexes),
		"signerNetwork", signerNetwork,
		"timeout", c.timeout,
	)

	signCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	signed, err := signer.Sign(signCtx, req)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrUserCancelled):
			slog.Info("signing cancelled by user", "attemptId", attemptID)
			return nil, fmt.Errorf("attempt %s: %w", attemptID, config.ErrUserCancelled)
		case errors.Is(signCtx.Err(), context.DeadlineExceeded):
			slog.Warn("signing timed out",
				"attemptId", attemptID,
				"timeout", c.timeout,
			)
			return nil, fmt.Errorf("attempt %s after %s: %w", attemptID, c.timeout, config.ErrSigningTimeout)
		default:
			return nil, fmt.Errorf("external signer for attempt %s: %w", attemptID, err)
		}
	}

	if signed == nil || (signed.PsbtBase64 == "" && signed.RawTxHex == "") {
		return nil, fmt.Errorf("attempt %s: signer returned empty artifact: %w", attemptID, config.ErrExtractionFailed)
	}

	signed.Unsigned = unsigned

	slog.Info("external signature received",
		"attemptId", attemptID,
		"artifact", artifactKind(signed),
	)

	return signed, nil
}

func artifactKind(signed *models.SignedTransaction) string {
	if signed.RawTxHex != "" {
		return "rawTxHex"
	}
	return "psbt"
}
