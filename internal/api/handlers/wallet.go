package handlers

import (
	"log/slog"
	"net/http"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-chi/chi/v5"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
	"github.com/velencia/satpay/internal/network"
	"github.com/velencia/satpay/internal/payment"
	"github.com/velencia/satpay/internal/price"
)

// WalletDeps holds dependencies for the wallet read handlers.
type WalletDeps struct {
	Reader  *payment.WalletReader
	Profile *network.Profile

	// Price is optional; when set, balances carry an approximate USD value.
	Price *price.Service
}

// These endpoints serve display data only and degrade to empty results when
// the indexer is down; /api/health reports the degradation.

// GetBalance handles GET /api/wallet/{address}/balance.
func GetBalance(deps *WalletDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := walletAddress(w, r, deps.Profile)
		if !ok {
			return
		}

		bal := deps.Reader.Balance(r.Context(), address)

		data := map[string]interface{}{
			"address":         address,
			"confirmedSats":   bal.ConfirmedSats,
			"unconfirmedSats": bal.UnconfirmedSats,
			"totalSats":       bal.TotalSats(),
		}
		if deps.Price != nil {
			if usd := deps.Price.SatsToUSD(r.Context(), bal.TotalSats()); usd > 0 {
				data["approxUsd"] = usd
			}
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: data})
	}
}

// GetUtxos handles GET /api/wallet/{address}/utxo.
func GetUtxos(deps *WalletDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := walletAddress(w, r, deps.Profile)
		if !ok {
			return
		}

		utxos := deps.Reader.Utxos(r.Context(), address)

		slog.Debug("utxos served", "address", address, "count", len(utxos))
		writeJSON(w, http.StatusOK, models.APIResponse{Data: utxos})
	}
}

// GetHistory handles GET /api/wallet/{address}/txs.
func GetHistory(deps *WalletDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address, ok := walletAddress(w, r, deps.Profile)
		if !ok {
			return
		}

		txs := deps.Reader.History(r.Context(), address)

		slog.Debug("history served", "address", address, "count", len(txs))
		writeJSON(w, http.StatusOK, models.APIResponse{Data: txs})
	}
}

func walletAddress(w http.ResponseWriter, r *http.Request, profile *network.Profile) (string, bool) {
	address := chi.URLParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "address is required")
		return "", false
	}
	if _, err := btcutil.DecodeAddress(address, profile.Params); err != nil {
		writeError(w, http.StatusBadRequest, config.ErrorAddressNetworkMismatch,
			"address is not valid for network "+profile.Name)
		return "", false
	}
	return address, true
}
