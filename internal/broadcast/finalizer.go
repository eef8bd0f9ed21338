package broadcast

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
)

// TxBroadcaster submits raw transaction hex to the network. Satisfied by
// indexer.Client.
type TxBroadcaster interface {
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

// Finalizer turns a signed artifact into a broadcast transaction.
type Finalizer struct {
	broadcaster TxBroadcaster
}

// New creates a Finalizer using the given broadcaster.
func New(broadcaster TxBroadcaster) *Finalizer {
	return &Finalizer{broadcaster: broadcaster}
}

// FinalizeAndBroadcast extracts the fully signed raw transaction from the
// signer's artifact, broadcasts it, and returns the txid.
//
// Finalization failure is a warning, not fatal: wallet extensions vary in
// whether they return a finalized or merely-signed PSBT, and extraction is
// attempted regardless. Extraction failure is fatal (ErrExtractionFailed).
// Broadcast rejections propagate verbatim as RejectedError.
func (f *Finalizer) FinalizeAndBroadcast(ctx context.Context, signed *models.SignedTransaction) (string, error) {
	tx, err := extractTx(signed)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("serialize extracted transaction: %w", err)
	}
	rawHex := hex.EncodeToString(buf.Bytes())

	localTxid := tx.TxHash().String()

	slog.Info("finalized transaction ready for broadcast",
		"txid", localTxid,
		"inputs", len(tx.TxIn),
		"outputs", len(tx.TxOut),
		"hexLength", len(rawHex),
	)

	txid, err := f.broadcaster.Broadcast(ctx, rawHex)
	if err != nil {
		return "", err
	}

	// Some proxies normalize or mutate responses; the transaction's own
	// hash is authoritative for detecting that.
	if txid != localTxid {
		slog.Error("indexer txid does not match computed transaction hash",
			"indexerTxid", txid,
			"computedTxid", localTxid,
		)
	}

	return txid, nil
}

// extractTx produces the wire transaction from whichever artifact form the
// signer returned.
func extractTx(signed *models.SignedTransaction) (*wire.MsgTx, error) {
	if signed.RawTxHex != "" {
		raw, err := hex.DecodeString(strings.TrimSpace(signed.RawTxHex))
		if err != nil {
			return nil, fmt.Errorf("%w: decode raw tx hex: %s", config.ErrExtractionFailed, err)
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("%w: deserialize raw tx: %s", config.ErrExtractionFailed, err)
		}
		return tx, nil
	}

	packet, err := psbt.NewFromRawBytes(strings.NewReader(signed.PsbtBase64), true)
	if err != nil {
		return nil, fmt.Errorf("%w: parse signed PSBT: %s", config.ErrExtractionFailed, err)
	}

	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		// The signer may already have finalized, or returned witness data
		// this finalizer does not recognize. Extraction below decides
		// whether the artifact is actually usable.
		slog.Warn("PSBT finalization failed, attempting extraction anyway",
			"error", err,
		)
	}

	tx, err := psbt.Extract(packet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrExtractionFailed, err)
	}

	return tx, nil
}
