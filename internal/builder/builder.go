package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
	"github.com/velencia/satpay/internal/network"
)

// UtxoSource fetches the spendable outputs of an address. Satisfied by
// indexer.Client.
type UtxoSource interface {
	Utxos(ctx context.Context, address string) ([]models.UTXO, error)
}

// Params are the inputs to a single transaction build.
type Params struct {
	Sender     string
	Recipient  string
	AmountSats int64
}

// Builder constructs unsigned payment transactions. UTXOs are fetched fresh
// on every Build call; selections are never cached across builds.
type Builder struct {
	utxos           UtxoSource
	profile         *network.Profile
	feeRateSatPerVB int64
}

// New creates a Builder for the given network profile.
func New(utxos UtxoSource, profile *network.Profile, feeRateSatPerVB int64) *Builder {
	slog.Info("transaction builder created",
		"network", profile.Name,
		"feeRateSatPerVB", feeRateSatPerVB,
	)
	return &Builder{
		utxos:           utxos,
		profile:         profile,
		feeRateSatPerVB: feeRateSatPerVB,
	}
}

// EstimateVsize returns the estimated vsize of a P2WPKH-only transaction.
func EstimateVsize(numInputs, numOutputs int) int {
	weight := config.TxOverheadWU +
		numInputs*(config.P2WPKHInputNonWitWU+config.P2WPKHInputWitnessWU) +
		numOutputs*config.P2WPKHOutputWU
	// ceil(weight / 4)
	return (weight + 3) / 4
}

// Build selects UTXOs, computes the fee, and constructs an unsigned
// partially-signed transaction paying amountSats to the recipient, with
// change back to the sender when above the dust threshold.
func (b *Builder) Build(ctx context.Context, params Params) (*models.UnsignedTransaction, error) {
	if params.AmountSats <= 0 {
		return nil, fmt.Errorf("%w: got %d sats", config.ErrInvalidAmount, params.AmountSats)
	}

	// Both addresses must decode for this network before anything is
	// fetched; a mainnet-format recipient on regtest should fail here, not
	// as an opaque broadcast rejection later.
	senderScript, err := pkScriptFor(params.Sender, b.profile)
	if err != nil {
		return nil, err
	}
	recipientScript, err := pkScriptFor(params.Recipient, b.profile)
	if err != nil {
		return nil, err
	}

	slog.Info("building payment transaction",
		"network", b.profile.Name,
		"sender", params.Sender,
		"recipient", params.Recipient,
		"amountSats", params.AmountSats,
	)

	// Fresh fetch every build. A retry after a failed or cancelled attempt
	// must not try to spend outputs consumed by an earlier broadcast.
	utxos, err := b.utxos.Utxos(ctx, params.Sender)
	if err != nil {
		return nil, fmt.Errorf("fetch UTXOs for build: %w", err)
	}

	if len(utxos) == 0 {
		return nil, fmt.Errorf("%w: address %s", config.ErrNoUTXOs, params.Sender)
	}

	selected, feeSats, err := selectUtxos(utxos, params.AmountSats, b.feeRateSatPerVB)
	if err != nil {
		return nil, err
	}

	totalInput := int64(0)
	for _, u := range selected {
		totalInput += u.ValueSats
	}

	changeSats := totalInput - params.AmountSats - feeSats
	if changeSats <= config.DustThresholdSats {
		// Sub-dust change is absorbed into the fee rather than creating an
		// uneconomical output. Documented behavior, not a bug.
		if changeSats > 0 {
			slog.Debug("change below dust threshold, absorbing into fee",
				"changeSats", changeSats,
				"dustThreshold", config.DustThresholdSats,
			)
		}
		feeSats += changeSats
		changeSats = 0
	}

	psbtB64, signIndexes, err := buildPsbt(psbtParams{
		inputs:          selected,
		senderScript:    senderScript,
		recipientScript: recipientScript,
		amountSats:      params.AmountSats,
		changeSats:      changeSats,
	})
	if err != nil {
		return nil, fmt.Errorf("construct PSBT: %w", err)
	}

	unsigned := &models.UnsignedTransaction{
		Inputs:      selected,
		Recipient:   params.Recipient,
		Sender:      params.Sender,
		AmountSats:  params.AmountSats,
		ChangeSats:  changeSats,
		FeeSats:     feeSats,
		PsbtBase64:  psbtB64,
		SignIndexes: signIndexes,
	}

	slog.Info("payment transaction built",
		"inputs", len(selected),
		"totalInputSats", totalInput,
		"amountSats", params.AmountSats,
		"feeSats", feeSats,
		"changeSats", changeSats,
	)

	return unsigned, nil
}

// selectUtxos accumulates UTXOs greedily in indexer order until they cover
// amount plus fee. The fee is re-estimated as inputs are added, since each
// input grows the transaction.
func selectUtxos(utxos []models.UTXO, amountSats, feeRate int64) ([]models.UTXO, int64, error) {
	var (
		selected []models.UTXO
		total    int64
	)

	for _, u := range utxos {
		selected = append(selected, u)
		total += u.ValueSats

		if len(selected) > config.MaxInputsPerTx {
			return nil, 0, fmt.Errorf("%w: %d inputs exceeds maximum %d",
				config.ErrTxTooLarge, len(selected), config.MaxInputsPerTx)
		}

		// Two outputs assumed for estimation: recipient + possible change.
		feeSats := feeRate * int64(EstimateVsize(len(selected), 2))
		if total >= amountSats+feeSats {
			return selected, feeSats, nil
		}
	}

	// Exhausted the list. Report the shortfall against the minimal fee for
	// spending everything.
	minFee := feeRate * int64(EstimateVsize(len(utxos), 2))
	return nil, 0, &config.InsufficientFundsError{
		HaveSats: total,
		NeedSats: amountSats + minFee,
	}
}

// pkScriptFor decodes an address against the profile's chain params and
// returns its output script. Esplora UTXO endpoints don't return
// scriptPubKey, so it is reconstructed from the address.
func pkScriptFor(address string, profile *network.Profile) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(address, profile.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %q on %s: %s",
			config.ErrAddressNetworkMismatch, address, profile.Name, err)
	}
	if !decoded.IsForNet(profile.Params) {
		return nil, fmt.Errorf("%w: %q is not a %s address",
			config.ErrAddressNetworkMismatch, address, profile.Name)
	}

	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, fmt.Errorf("create pkScript for %q: %w", address, err)
	}
	return script, nil
}
