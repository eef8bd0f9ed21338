package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/velencia/satpay/internal/broadcast"
	"github.com/velencia/satpay/internal/builder"
	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/db"
	"github.com/velencia/satpay/internal/models"
	"github.com/velencia/satpay/internal/network"
	"github.com/velencia/satpay/internal/signing"
	"github.com/velencia/satpay/internal/verify"
)

// Store is the persistence surface a Session writes through.
type Store interface {
	CreatePayment(p db.PaymentRow) error
	UpdatePaymentState(id, state, txHash, payError string, feeSats, confirmations int64) error
	GetPayment(id string) (*db.PaymentRow, error)
	GetPaymentByTxHash(txHash string) (*db.PaymentRow, error)
	GetUnsettledPayments() ([]db.PaymentRow, error)
}

// TxFetcher reads a single transaction for re-verification. Satisfied by
// indexer.Client.
type TxFetcher interface {
	Tx(ctx context.Context, txid string) (*models.ChainTx, []models.TxOutput, error)
}

// PayParams are the inputs for one payment attempt.
type PayParams struct {
	OrderID    string
	Sender     string
	AmountSats int64
}

// Session carries one configured payment pipeline: profile, builder, signer
// coordination, broadcast and settlement watching, all bound to a single
// network. Every payment attempt flows through an explicit Session value;
// there is no package-level state.
type Session struct {
	profile     *network.Profile
	builder     *builder.Builder
	coordinator *signing.Coordinator
	signer      signing.Signer
	finalizer   *broadcast.Finalizer
	verifier    *verify.Verifier
	txs         TxFetcher
	store       Store
	hub         *EventHub

	// lifeCtx bounds detached settlement watchers so a graceful shutdown
	// stops them. Set by Start.
	lifeCtx context.Context
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewSession wires a payment pipeline for one network profile.
func NewSession(
	profile *network.Profile,
	b *builder.Builder,
	coordinator *signing.Coordinator,
	signer signing.Signer,
	finalizer *broadcast.Finalizer,
	verifier *verify.Verifier,
	txs TxFetcher,
	store Store,
	hub *EventHub,
) *Session {
	return &Session{
		profile:     profile,
		builder:     b,
		coordinator: coordinator,
		signer:      signer,
		finalizer:   finalizer,
		verifier:    verifier,
		txs:         txs,
		store:       store,
		hub:         hub,
		lifeCtx:     context.Background(),
	}
}

// Start binds the session's background watchers to ctx and resumes
// settlement tracking for every unsettled attempt left over from a
// previous run. Attempts that died before earning a txid cannot be resumed
// and are marked failed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.lifeCtx = ctx
	s.mu.Unlock()

	unsettled, err := s.store.GetUnsettledPayments()
	if err != nil {
		return fmt.Errorf("load unsettled payments: %w", err)
	}

	for _, row := range unsettled {
		if row.TxHash == "" {
			slog.Warn("abandoning payment interrupted before broadcast",
				"id", row.ID,
				"state", row.State,
			)
			s.transition(row.ID, "", models.StateFailed, "interrupted before broadcast", 0, 0)
			continue
		}

		slog.Info("resuming settlement watch",
			"id", row.ID,
			"txid", row.TxHash,
			"state", row.State,
		)
		if row.State != string(models.StateAwaitingConfirmation) {
			s.transition(row.ID, row.TxHash, models.StateAwaitingConfirmation, "", 0, 0)
		}
		s.watch(row.ID, row.TxHash)
	}

	slog.Info("payment session started",
		"network", s.profile.Name,
		"storeAddress", s.profile.StoreAddress,
		"resumed", len(unsettled),
	)

	return nil
}

// Wait blocks until all background settlement watchers have returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Pay runs one payment attempt end to end: build, sign, broadcast. It
// returns once the transaction is accepted by the network, with the attempt
// in AWAITING_CONFIRMATION; settlement continues in the background.
func (s *Session) Pay(ctx context.Context, params PayParams) (*models.PaymentAttempt, error) {
	attemptID := uuid.NewString()

	slog.Info("payment attempt starting",
		"id", attemptID,
		"orderID", params.OrderID,
		"sender", params.Sender,
		"amountSats", params.AmountSats,
		"network", s.profile.Name,
	)

	if err := s.store.CreatePayment(db.PaymentRow{
		ID:         attemptID,
		OrderID:    params.OrderID,
		Network:    s.profile.Name,
		Sender:     params.Sender,
		Recipient:  s.profile.StoreAddress,
		AmountSats: params.AmountSats,
		State:      string(models.StatePendingSubmit),
	}); err != nil {
		return nil, fmt.Errorf("persist payment attempt: %w", err)
	}

	unsigned, err := s.builder.Build(ctx, builder.Params{
		Sender:     params.Sender,
		Recipient:  s.profile.StoreAddress,
		AmountSats: params.AmountSats,
	})
	if err != nil {
		s.fail(attemptID, "", err)
		return nil, err
	}

	signed, err := s.coordinator.RequestSignature(ctx, unsigned, s.signer, attemptID, s.profile.SignerNetwork)
	if err != nil {
		s.fail(attemptID, "", err)
		return nil, err
	}

	s.transition(attemptID, "", models.StateBroadcasting, "", unsigned.FeeSats, 0)

	txid, err := s.finalizer.FinalizeAndBroadcast(ctx, signed)
	if err != nil {
		s.fail(attemptID, "", err)
		return nil, err
	}

	s.transition(attemptID, txid, models.StateAwaitingConfirmation, "", unsigned.FeeSats, 0)
	s.watch(attemptID, txid)

	row, err := s.store.GetPayment(attemptID)
	if err != nil {
		return nil, fmt.Errorf("reload payment attempt: %w", err)
	}
	attempt := rowToAttempt(row)
	return &attempt, nil
}

// Status returns the attempt carrying the given txid.
func (s *Session) Status(txid string) (*models.PaymentAttempt, error) {
	row, err := s.store.GetPaymentByTxHash(txid)
	if err != nil {
		return nil, fmt.Errorf("load payment by txid: %w", err)
	}
	if row == nil {
		return nil, config.ErrAttemptNotFound
	}
	attempt := rowToAttempt(row)
	return &attempt, nil
}

// StatusByID returns an attempt by its ID.
func (s *Session) StatusByID(id string) (*models.PaymentAttempt, error) {
	row, err := s.store.GetPayment(id)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if row == nil {
		return nil, config.ErrAttemptNotFound
	}
	attempt := rowToAttempt(row)
	return &attempt, nil
}

// VerifyIntent re-checks an already-broadcast transaction directly against
// the chain: does it pay the store address, how much, and is it confirmed.
// When the txid matches a recorded attempt, the recorded amount is the
// expectation; otherwise any output to the store address counts.
func (s *Session) VerifyIntent(ctx context.Context, txid string) (*models.VerificationResult, error) {
	var expected int64
	if row, err := s.store.GetPaymentByTxHash(txid); err == nil && row != nil {
		expected = row.AmountSats
	}

	chainTx, outputs, err := s.txs.Tx(ctx, txid)
	if err != nil {
		if errors.Is(err, config.ErrTxNotFound) {
			return &models.VerificationResult{TxID: txid, ExpectedSats: expected}, nil
		}
		return nil, fmt.Errorf("fetch transaction %s: %w", txid, err)
	}

	var paid int64
	for _, out := range outputs {
		if out.Address == s.profile.StoreAddress {
			paid += out.ValueSats
		}
	}

	result := &models.VerificationResult{
		TxID:          txid,
		OutputFound:   paid > 0 && (expected == 0 || paid >= expected),
		PaidSats:      paid,
		ExpectedSats:  expected,
		Confirmed:     chainTx.Confirmed,
		Confirmations: chainTx.Confirmations,
	}

	// A timed-out attempt that turns out confirmed on-chain is settled
	// after all; record it.
	if result.OutputFound && chainTx.Confirmed {
		if row, err := s.store.GetPaymentByTxHash(txid); err == nil && row != nil &&
			row.State != string(models.StateConfirmed) {
			s.transition(row.ID, txid, models.StateConfirmed, "", 0, chainTx.Confirmations)
		}
	}

	return result, nil
}

// CancelSigning resolves a pending sign request as user-cancelled. How the
// cancellation reaches the signer is the signer's concern; for the bridge
// signer this is wired through its Cancel method at the API layer. Here the
// attempt record is closed out.
//
// Cancellation only applies before broadcast. Once a transaction has left
// for the network the customer's cancel cannot recall it; the attempt keeps
// settling and a cancel is a no-op, never a transition to FAILED.
func (s *Session) CancelSigning(attemptID string) error {
	row, err := s.store.GetPayment(attemptID)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}
	if row == nil {
		return config.ErrAttemptNotFound
	}
	if models.PaymentState(row.State).Terminal() {
		return nil
	}
	if row.TxHash != "" || row.State == string(models.StateBroadcasting) ||
		row.State == string(models.StateAwaitingConfirmation) {
		slog.Info("cancel ignored, transaction already broadcast",
			"id", attemptID,
			"state", row.State,
			"txid", row.TxHash,
		)
		return nil
	}
	s.fail(attemptID, "", config.ErrUserCancelled)
	return nil
}

// watch spawns the detached settlement watcher for a broadcast attempt.
func (s *Session) watch(attemptID, txid string) {
	s.mu.Lock()
	ctx := s.lifeCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		res, err := s.verifier.Await(ctx, txid)
		if err != nil {
			// Cancelled at shutdown. The attempt stays AWAITING_CONFIRMATION
			// and will be resumed on the next start.
			return
		}

		s.transition(attemptID, txid, res.State, "", 0, res.Confirmations)
	}()
}

// transition persists a state change and broadcasts it to event clients.
func (s *Session) transition(attemptID, txid string, state models.PaymentState, detail string, feeSats, confirmations int64) {
	if err := s.store.UpdatePaymentState(attemptID, string(state), txid, detail, feeSats, confirmations); err != nil {
		slog.Error("failed to persist payment transition",
			"id", attemptID,
			"state", state,
			"error", err,
		)
	}

	s.hub.PublishState(PaymentStateData{
		AttemptID:     attemptID,
		TxID:          txid,
		State:         string(state),
		Confirmations: confirmations,
		Error:         detail,
	})
}

func (s *Session) fail(attemptID, txid string, cause error) {
	slog.Warn("payment attempt failed",
		"id", attemptID,
		"error", cause,
	)
	s.transition(attemptID, txid, models.StateFailed, cause.Error(), 0, 0)
}

func rowToAttempt(row *db.PaymentRow) models.PaymentAttempt {
	return models.PaymentAttempt{
		ID:            row.ID,
		OrderID:       row.OrderID,
		Network:       row.Network,
		Sender:        row.Sender,
		Recipient:     row.Recipient,
		AmountSats:    row.AmountSats,
		FeeSats:       row.FeeSats,
		TxID:          row.TxHash,
		State:         models.PaymentState(row.State),
		Confirmations: row.Confirmations,
		Error:         row.Error,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
