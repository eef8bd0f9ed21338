package signing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
)

// RequestPublisher delivers a sign request to whatever surface reaches the
// wallet extension (the API layer's SSE stream in production).
type RequestPublisher interface {
	PublishSignRequest(req Request)
}

// Bridge implements Signer by parking each request until the wallet
// extension answers back through the HTTP API. The browser holds the keys;
// this side only coordinates.
type Bridge struct {
	publisher RequestPublisher

	mu      sync.Mutex
	pending map[string]chan outcome
}

type outcome struct {
	signed *models.SignedTransaction
	err    error
}

// NewBridge creates a bridge that publishes sign requests via pub.
func NewBridge(pub RequestPublisher) *Bridge {
	slog.Info("signing bridge created")
	return &Bridge{
		publisher: pub,
		pending:   make(map[string]chan outcome),
	}
}

// Sign publishes the request and blocks until Complete or Cancel is called
// for the same attempt, or ctx is done.
func (b *Bridge) Sign(ctx context.Context, req Request) (*models.SignedTransaction, error) {
	ch, err := b.register(req.AttemptID)
	if err != nil {
		return nil, err
	}
	defer b.unregister(req.AttemptID)

	b.publisher.PublishSignRequest(req)

	select {
	case out := <-ch:
		return out.signed, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Complete resolves the pending sign request for an attempt with the signed
// artifact the wallet extension returned.
func (b *Bridge) Complete(attemptID string, signed *models.SignedTransaction) error {
	return b.resolve(attemptID, outcome{signed: signed})
}

// Cancel resolves the pending sign request for an attempt as an explicit
// user cancellation.
func (b *Bridge) Cancel(attemptID string) error {
	return b.resolve(attemptID, outcome{err: config.ErrUserCancelled})
}

// Pending reports whether a sign request is currently waiting for an answer.
func (b *Bridge) Pending(attemptID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[attemptID]
	return ok
}

func (b *Bridge) register(attemptID string) (chan outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.pending[attemptID]; exists {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, config.ErrSignerBusy)
	}

	ch := make(chan outcome, 1)
	b.pending[attemptID] = ch
	return ch, nil
}

func (b *Bridge) unregister(attemptID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, attemptID)
}

func (b *Bridge) resolve(attemptID string, out outcome) error {
	b.mu.Lock()
	ch, ok := b.pending[attemptID]
	if ok {
		delete(b.pending, attemptID)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending sign request for attempt %s: %w", attemptID, config.ErrAttemptNotFound)
	}

	ch <- out

	slog.Debug("sign request resolved",
		"attemptId", attemptID,
		"cancelled", out.err != nil,
	)

	return nil
}
