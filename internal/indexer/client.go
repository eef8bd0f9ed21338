package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/models"
	"github.com/velencia/satpay/internal/network"
)

// esploraUTXO is the JSON shape of the /address/{addr}/utxo endpoint.
type esploraUTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
	} `json:"status"`
	Value int64 `json:"value"` // satoshis
}

// esploraAddress is the JSON shape of the /address/{addr} endpoint.
type esploraAddress struct {
	ChainStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
	} `json:"chain_stats"`
	MempoolStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
	} `json:"mempool_stats"`
}

// esploraTxStatus is the JSON shape of the /tx/{txid}/status endpoint.
type esploraTxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

// esploraTx is the JSON shape of the /tx/{txid} endpoint, reduced to the
// fields the core inspects.
type esploraTx struct {
	TxID   string          `json:"txid"`
	Status esploraTxStatus `json:"status"`
	Fee    int64           `json:"fee"`
	Vin    []struct {
		Prevout struct {
			ScriptpubkeyAddress string `json:"scriptpubkey_address"`
			Value               int64  `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []esploraVout `json:"vout"`
}

type esploraVout struct {
	ScriptpubkeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// Client is a read-mostly HTTP client over an Esplora-compatible REST API,
// parameterized by network profile. All methods return real errors; the
// soft-fail-to-empty policy for UI reads lives in the payment layer, not
// here, so callers can still distinguish "no funds" from "indexer down".
type Client struct {
	http        *http.Client
	baseURL     string
	networkName string
	limiter     *RateLimiter
}

// New creates an indexer client for the given network profile.
func New(httpClient *http.Client, profile *network.Profile) *Client {
	slog.Info("indexer client created",
		"network", profile.Name,
		"baseURL", profile.IndexerBaseURL,
	)
	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(profile.IndexerBaseURL, "/"),
		networkName: profile.Name,
		limiter:     NewRateLimiter(profile.Name, config.RateLimitIndexer),
	}
}

// Utxos fetches all spendable outputs for an address, confirmed and
// unconfirmed, in indexer order.
func (c *Client) Utxos(ctx context.Context, address string) ([]models.UTXO, error) {
	var raw []esploraUTXO
	if err := c.getJSON(ctx, "/address/"+address+"/utxo", &raw); err != nil {
		return nil, fmt.Errorf("fetch UTXOs for %s: %w", address, err)
	}

	utxos := make([]models.UTXO, 0, len(raw))
	for _, u := range raw {
		utxos = append(utxos, models.UTXO{
			TxID:        u.TxID,
			Vout:        u.Vout,
			ValueSats:   u.Value,
			Confirmed:   u.Status.Confirmed,
			BlockHeight: u.Status.BlockHeight,
		})
	}

	slog.Debug("UTXOs fetched",
		"network", c.networkName,
		"address", address,
		"count", len(utxos),
	)

	return utxos, nil
}

// Balance returns the confirmed and unconfirmed net balance of an address.
func (c *Client) Balance(ctx context.Context, address string) (models.Balance, error) {
	var raw esploraAddress
	if err := c.getJSON(ctx, "/address/"+address, &raw); err != nil {
		return models.Balance{}, fmt.Errorf("fetch balance for %s: %w", address, err)
	}

	bal := models.Balance{
		ConfirmedSats:   raw.ChainStats.FundedTxoSum - raw.ChainStats.SpentTxoSum,
		UnconfirmedSats: raw.MempoolStats.FundedTxoSum - raw.MempoolStats.SpentTxoSum,
	}

	slog.Debug("balance fetched",
		"network", c.networkName,
		"address", address,
		"confirmedSats", bal.ConfirmedSats,
		"unconfirmedSats", bal.UnconfirmedSats,
	)

	return bal, nil
}

// TxStatus returns the confirmation status of a transaction. A 404 from the
// indexer means "not yet seen" and maps to config.ErrTxNotFound; it is a
// valid state during settlement, not a fault.
func (c *Client) TxStatus(ctx context.Context, txid string) (models.TxStatus, error) {
	var raw esploraTxStatus
	err := c.getJSON(ctx, fmt.Sprintf(config.TxStatusPath, txid), &raw)
	if err != nil {
		if isNotFound(err) {
			return models.TxStatus{}, fmt.Errorf("tx %s: %w", txid, config.ErrTxNotFound)
		}
		return models.TxStatus{}, fmt.Errorf("fetch status for tx %s: %w", txid, err)
	}

	return models.TxStatus{
		Confirmed:   raw.Confirmed,
		BlockHeight: raw.BlockHeight,
	}, nil
}

// TipHeight returns the current best block height. Used only to compute
// confirmation counts (tip - blockHeight + 1).
func (c *Client) TipHeight(ctx context.Context) (int64, error) {
	body, err := c.getText(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, fmt.Errorf("fetch tip height: %w", err)
	}

	height, err := strconv.ParseInt(strings.TrimSpace(body), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tip height %q: %w", body, err)
	}

	return height, nil
}

// Broadcast posts raw transaction hex and returns the txid the indexer
// reports. A non-2xx response becomes a RejectedError carrying the
// indexer's reason verbatim; it must propagate to the user untouched.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait for broadcast: %w", err)
	}

	url := c.baseURL + "/tx"

	slog.Info("broadcasting transaction",
		"network", c.networkName,
		"hexLength", len(rawHex),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(rawHex))
	if err != nil {
		return "", fmt.Errorf("create broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: broadcast request: %s", config.ErrIndexerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read broadcast response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := strings.TrimSpace(string(body))
		slog.Error("broadcast rejected",
			"network", c.networkName,
			"status", resp.StatusCode,
			"reason", reason,
		)
		return "", &config.RejectedError{Reason: reason}
	}

	txid := strings.TrimSpace(string(body))

	slog.Info("broadcast accepted",
		"network", c.networkName,
		"txid", txid,
	)

	return txid, nil
}

// Tx fetches a full transaction, used for settlement re-verification
// (checking outputs against the expected store address and amount).
func (c *Client) Tx(ctx context.Context, txid string) (*models.ChainTx, []models.TxOutput, error) {
	var raw esploraTx
	err := c.getJSON(ctx, "/tx/"+txid, &raw)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("tx %s: %w", txid, config.ErrTxNotFound)
		}
		return nil, nil, fmt.Errorf("fetch tx %s: %w", txid, err)
	}

	tx := &models.ChainTx{
		TxID:        raw.TxID,
		FeeSats:     raw.Fee,
		Confirmed:   raw.Status.Confirmed,
		BlockHeight: raw.Status.BlockHeight,
	}

	outputs := make([]models.TxOutput, 0, len(raw.Vout))
	for _, out := range raw.Vout {
		outputs = append(outputs, models.TxOutput{
			Address:   out.ScriptpubkeyAddress,
			ValueSats: out.Value,
		})
	}

	return tx, outputs, nil
}

// AddressTxs returns the transaction history for an address, formatted with
// direction and net amount relative to that address.
func (c *Client) AddressTxs(ctx context.Context, address string) ([]models.ChainTx, error) {
	var raw []esploraTx
	if err := c.getJSON(ctx, "/address/"+address+"/txs", &raw); err != nil {
		return nil, fmt.Errorf("fetch txs for %s: %w", address, err)
	}

	tip, err := c.TipHeight(ctx)
	if err != nil {
		// History is still useful without confirmation counts.
		slog.Warn("tip height unavailable, confirmations omitted",
			"network", c.networkName,
			"error", err,
		)
		tip = 0
	}

	txs := make([]models.ChainTx, 0, len(raw))
	for _, tx := range raw {
		var sent, received int64
		for _, in := range tx.Vin {
			if in.Prevout.ScriptpubkeyAddress == address {
				sent += in.Prevout.Value
			}
		}
		for _, out := range tx.Vout {
			if out.ScriptpubkeyAddress == address {
				received += out.Value
			}
		}

		net := received - sent
		direction := "incoming"
		if net < 0 {
			direction = "outgoing"
			net = -net
		}

		var confirmations int64
		if tx.Status.Confirmed && tx.Status.BlockHeight > 0 && tip > 0 {
			confirmations = tip - tx.Status.BlockHeight + 1
		}

		txs = append(txs, models.ChainTx{
			TxID:          tx.TxID,
			Direction:     direction,
			AmountSats:    net,
			FeeSats:       tx.Fee,
			Confirmed:     tx.Status.Confirmed,
			Confirmations: confirmations,
			BlockHeight:   tx.Status.BlockHeight,
		})
	}

	return txs, nil
}

// Network returns the network name this client targets.
func (c *Client) Network() string {
	return c.networkName
}

// --- internals ---

// notFoundError marks a 404 response so TxStatus can map it to ErrTxNotFound.
type notFoundError struct {
	path string
}

func (e *notFoundError) Error() string {
	return "not found: " + e.path
}

func isNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	body, err := c.getText(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) getText(ctx context.Context, path string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request for %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", config.ErrIndexerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return "", &notFoundError{path: path}
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d from %s", config.ErrIndexerUnavailable, resp.StatusCode, path)
	}

	return string(body), nil
}
