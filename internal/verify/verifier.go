package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
)

// StatusSource reads chain state for settlement checks. Satisfied by
// indexer.Client.
type StatusSource interface {
	TxStatus(ctx context.Context, txid string) (models.TxStatus, error)
	TipHeight(ctx context.Context) (int64, error)
}

// Result is the terminal outcome of a verification run.
type Result struct {
	State         models.PaymentState
	Confirmations int64
	BlockHeight   int64
}

// Verifier polls the indexer for a transaction's confirmation state until
// it reaches a terminal state or the wall-clock ceiling elapses.
//
// A fresh Verifier needs only a txid to resume watching an in-flight
// payment, which is what makes settlement tracking survive process
// restarts: the attempt itself is persisted by the caller before polling
// begins.
type Verifier struct {
	status       StatusSource
	pollInterval time.Duration
	ceiling      time.Duration

	// OnPoll, when set, is invoked after every poll with the current
	// non-terminal view (state is always AWAITING_CONFIRMATION there).
	OnPoll func(confirmations int64)
}

// New creates a Verifier with the given cadence and ceiling. The cadence is
// fixed, deliberately not exponential: settlement latency is determined by
// the network, not by server load, so backoff only delays user feedback.
func New(status StatusSource, pollInterval, ceiling time.Duration) *Verifier {
	if pollInterval <= 0 {
		pollInterval = config.VerifyPollInterval
	}
	if ceiling <= 0 {
		ceiling = config.VerifyCeiling
	}
	return &Verifier{
		status:       status,
		pollInterval: pollInterval,
		ceiling:      ceiling,
	}
}

// Await polls until the transaction confirms or the ceiling elapses.
//
// Returns CONFIRMED once the indexer reports confirmed with at least one
// confirmation, or VERIFICATION_TIMEOUT after the ceiling — which is NOT a
// failure: the transaction may still confirm later and callers can
// re-check with CheckOnce. "Not found" and transient indexer errors keep
// the poll loop running. The only error return is ctx cancellation.
func (v *Verifier) Await(ctx context.Context, txid string) (Result, error) {
	slog.Info("awaiting confirmation",
		"txid", txid,
		"pollInterval", v.pollInterval,
		"ceiling", v.ceiling,
	)

	deadline := time.NewTimer(v.ceiling)
	defer deadline.Stop()

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	attempts := 0

	// First check happens immediately; a transaction confirmed while the
	// process was down should not wait a full poll interval.
	for {
		attempts++

		res, done := v.poll(ctx, txid, attempts)
		if done {
			return res, nil
		}
		if v.OnPoll != nil {
			v.OnPoll(res.Confirmations)
		}

		select {
		case <-ctx.Done():
			slog.Info("confirmation polling cancelled",
				"txid", txid,
				"attempts", attempts,
			)
			return Result{State: models.StateAwaitingConfirmation}, ctx.Err()
		case <-deadline.C:
			slog.Warn("confirmation polling reached ceiling",
				"txid", txid,
				"attempts", attempts,
				"ceiling", v.ceiling,
			)
			return Result{State: models.StateVerificationTimeout}, nil
		case <-ticker.C:
		}
	}
}

// poll performs a single status check. done is true when a terminal state
// was reached.
func (v *Verifier) poll(ctx context.Context, txid string, attempt int) (Result, bool) {
	status, err := v.status.TxStatus(ctx, txid)
	if err != nil {
		if errors.Is(err, config.ErrTxNotFound) {
			// Not yet seen by the indexer. A valid waiting state, never a
			// failure.
			slog.Debug("transaction not yet indexed",
				"txid", txid,
				"attempt", attempt,
			)
		} else {
			slog.Warn("confirmation poll error, will retry",
				"txid", txid,
				"attempt", attempt,
				"error", err,
			)
		}
		return Result{State: models.StateAwaitingConfirmation}, false
	}

	if !status.Confirmed {
		slog.Debug("transaction seen but unconfirmed",
			"txid", txid,
			"attempt", attempt,
		)
		return Result{State: models.StateAwaitingConfirmation}, false
	}

	confirmations := v.confirmations(ctx, status)
	if confirmations < config.MinConfirmations {
		return Result{State: models.StateAwaitingConfirmation, Confirmations: confirmations}, false
	}

	slog.Info("transaction confirmed",
		"txid", txid,
		"blockHeight", status.BlockHeight,
		"confirmations", confirmations,
		"attempts", attempt,
	)

	return Result{
		State:         models.StateConfirmed,
		Confirmations: confirmations,
		BlockHeight:   status.BlockHeight,
	}, true
}

// CheckOnce performs a single, non-blocking settlement check: the manual
// re-query path after a VERIFICATION_TIMEOUT.
func (v *Verifier) CheckOnce(ctx context.Context, txid string) (Result, error) {
	status, err := v.status.TxStatus(ctx, txid)
	if err != nil {
		if errors.Is(err, config.ErrTxNotFound) {
			return Result{State: models.StateAwaitingConfirmation}, nil
		}
		return Result{}, fmt.Errorf("settlement check for %s: %w", txid, err)
	}

	if !status.Confirmed {
		return Result{State: models.StateAwaitingConfirmation}, nil
	}

	confirmations := v.confirmations(ctx, status)
	state := models.StateAwaitingConfirmation
	if confirmations >= config.MinConfirmations {
		state = models.StateConfirmed
	}

	return Result{
		State:         state,
		Confirmations: confirmations,
		BlockHeight:   status.BlockHeight,
	}, nil
}

// confirmations computes tip - blockHeight + 1 for a confirmed status. When
// the tip is unavailable the confirmed status itself is still trusted for a
// single confirmation.
func (v *Verifier) confirmations(ctx context.Context, status models.TxStatus) int64 {
	if !status.Confirmed || status.BlockHeight <= 0 {
		return 0
	}

	tip, err := v.status.TipHeight(ctx)
	if err != nil || tip < status.BlockHeight {
		slog.Warn("tip height unavailable for confirmation count",
			"blockHeight", status.BlockHeight,
			"error", err,
		)
		return 1
	}

	return tip - status.BlockHeight + 1
}
