package payment

import (
	"context"
	"log/slog"

	"github.com/velencia/satpay/internal/indexer"
	"github.com/velencia/satpay/internal/models"
)

// ChainReader is the indexer surface WalletReader degrades over.
type ChainReader interface {
	Utxos(ctx context.Context, address string) ([]models.UTXO, error)
	Balance(ctx context.Context, address string) (models.Balance, error)
	AddressTxs(ctx context.Context, address string) ([]models.ChainTx, error)
}

// WalletReader serves display reads (balance, coin list, history) with
// soft-fail semantics: an indexer outage yields empty results so the
// storefront keeps rendering, while the health tracker records the outage
// so "zero balance" and "indexer down" stay distinguishable through the
// health endpoint. Payment construction never goes through this path; the
// builder needs real errors.
type WalletReader struct {
	chain  ChainReader
	health *indexer.HealthTracker
}

// NewWalletReader creates a degrading read surface over the chain reader.
func NewWalletReader(chain ChainReader, health *indexer.HealthTracker) *WalletReader {
	return &WalletReader{chain: chain, health: health}
}

// Balance returns the address balance, or a zero balance when the indexer
// is unreachable.
func (w *WalletReader) Balance(ctx context.Context, address string) models.Balance {
	bal, err := w.chain.Balance(ctx, address)
	if err != nil {
		slog.Warn("balance read failed, serving zero",
			"address", address,
			"error", err,
		)
		w.health.RecordReadFailure()
		return models.Balance{}
	}

	w.health.RecordReadSuccess()
	return bal
}

// Utxos returns the address coin list, or an empty list when the indexer
// is unreachable.
func (w *WalletReader) Utxos(ctx context.Context, address string) []models.UTXO {
	utxos, err := w.chain.Utxos(ctx, address)
	if err != nil {
		slog.Warn("utxo read failed, serving empty",
			"address", address,
			"error", err,
		)
		w.health.RecordReadFailure()
		return []models.UTXO{}
	}

	w.health.RecordReadSuccess()
	if utxos == nil {
		utxos = []models.UTXO{}
	}
	return utxos
}

// History returns recent address transactions, or an empty list when the
// indexer is unreachable.
func (w *WalletReader) History(ctx context.Context, address string) []models.ChainTx {
	txs, err := w.chain.AddressTxs(ctx, address)
	if err != nil {
		slog.Warn("history read failed, serving empty",
			"address", address,
			"error", err,
		)
		w.health.RecordReadFailure()
		return []models.ChainTx{}
	}

	w.health.RecordReadSuccess()
	if txs == nil {
		txs = []models.ChainTx{}
	}
	return txs
}
