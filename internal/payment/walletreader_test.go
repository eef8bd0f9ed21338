package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/velencia/satpay/internal/indexer"
	"github.com/velencia/satpay/internal/models"
)

// flakyChain serves canned results, or errors when down.
type flakyChain struct {
	down    bool
	balance models.Balance
	utxos   []models.UTXO
	txs     []models.ChainTx
}

func (f *flakyChain) Balance(ctx context.Context, address string) (models.Balance, error) {
	if f.down {
		return models.Balance{}, errors.New("connection refused")
	}
	return f.balance, nil
}

func (f *flakyChain) Utxos(ctx context.Context, address string) ([]models.UTXO, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	return f.utxos, nil
}

func (f *flakyChain) AddressTxs(ctx context.Context, address string) ([]models.ChainTx, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	return f.txs, nil
}

func TestWalletReaderServesReads(t *testing.T) {
	chain := &flakyChain{
		balance: models.Balance{ConfirmedSats: 50000, UnconfirmedSats: 1000},
		utxos:   []models.UTXO{{TxID: "t1", Vout: 0, ValueSats: 50000}},
		txs:     []models.ChainTx{{TxID: "t1"}},
	}
	health := indexer.NewHealthTracker(nil)
	reader := NewWalletReader(chain, health)

	ctx := context.Background()

	bal := reader.Balance(ctx, "bcrt1qaddr")
	if bal.TotalSats() != 51000 {
		t.Errorf("balance total = %d, want 51000", bal.TotalSats())
	}
	if got := reader.Utxos(ctx, "bcrt1qaddr"); len(got) != 1 {
		t.Errorf("expected 1 utxo, got %d", len(got))
	}
	if got := reader.History(ctx, "bcrt1qaddr"); len(got) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(got))
	}
	if health.Last().ReadFailed {
		t.Error("read-failure flag set after successful reads")
	}
}

func TestWalletReaderSoftFailsWhenIndexerDown(t *testing.T) {
	chain := &flakyChain{down: true}
	health := indexer.NewHealthTracker(nil)
	reader := NewWalletReader(chain, health)

	ctx := context.Background()

	bal := reader.Balance(ctx, "bcrt1qaddr")
	if bal.TotalSats() != 0 {
		t.Errorf("expected zero balance during outage, got %+v", bal)
	}
	if got := reader.Utxos(ctx, "bcrt1qaddr"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil utxo list, got %v", got)
	}
	if got := reader.History(ctx, "bcrt1qaddr"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil history, got %v", got)
	}

	// The outage must be visible through health, so the UI can tell zero
	// balance apart from indexer-down.
	if !health.Last().ReadFailed {
		t.Error("read-failure flag not set during outage")
	}
}

func TestWalletReaderRecoveryClearsFlag(t *testing.T) {
	chain := &flakyChain{down: true}
	health := indexer.NewHealthTracker(nil)
	reader := NewWalletReader(chain, health)

	ctx := context.Background()

	reader.Balance(ctx, "bcrt1qaddr")
	if !health.Last().ReadFailed {
		t.Fatal("read-failure flag not set during outage")
	}

	chain.down = false
	reader.Balance(ctx, "bcrt1qaddr")
	if health.Last().ReadFailed {
		t.Error("read-failure flag not cleared after recovery")
	}
}

func TestWalletReaderNormalizesNilSlices(t *testing.T) {
	chain := &flakyChain{} // nil utxos and txs, no error
	reader := NewWalletReader(chain, indexer.NewHealthTracker(nil))

	ctx := context.Background()

	if got := reader.Utxos(ctx, "bcrt1qaddr"); got == nil {
		t.Error("expected non-nil utxo slice")
	}
	if got := reader.History(ctx, "bcrt1qaddr"); got == nil {
		t.Error("expected non-nil history slice")
	}
}
