package builder

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/velencia/satpay/internal/models"
)

// txVersion is the transaction version used for all built transactions.
const txVersion int32 = 2

type psbtParams struct {
	inputs          []models.UTXO
	senderScript    []byte
	recipientScript []byte
	amountSats      int64
	changeSats      int64 // 0 means no change output
}

// buildPsbt assembles the wire transaction and wraps it in a PSBT packet.
// Every input carries its funding output's script and value via
// WitnessUtxo: the segwit signature hash commits to spent amounts, and
// external signers cannot sign without them.
func buildPsbt(params psbtParams) (string, []int, error) {
	tx := wire.NewMsgTx(txVersion)

	for _, u := range params.inputs {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return "", nil, fmt.Errorf("parse UTXO txid %q: %w", u.TxID, err)
		}
		txIn := wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil)
		txIn.Sequence = wire.MaxTxInSequenceNum
		tx.AddTxIn(txIn)
	}

	tx.AddTxOut(wire.NewTxOut(params.amountSats, params.recipientScript))
	if params.changeSats > 0 {
		tx.AddTxOut(wire.NewTxOut(params.changeSats, params.senderScript))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return "", nil, fmt.Errorf("create PSBT from unsigned tx: %w", err)
	}

	signIndexes := make([]int, len(params.inputs))
	for i, u := range params.inputs {
		packet.Inputs[i].WitnessUtxo = wire.NewTxOut(u.ValueSats, params.senderScript)
		packet.Inputs[i].SighashType = txscript.SigHashAll
		signIndexes[i] = i
	}

	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return "", nil, fmt.Errorf("serialize PSBT: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), signIndexes, nil
}
