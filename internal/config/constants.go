package config

import "time"

// Default indexer base URLs per network (Esplora/mempool compatible).
const (
	MainnetIndexerURL  = "https://mempool.space/api"
	TestnetIndexerURL  = "https://mempool.space/testnet/api"
	Testnet4IndexerURL = "https://mempool.space/testnet4/api"
	SignetIndexerURL   = "https://mempool.space/signet/api"
	RegtestIndexerURL  = "https://mempool.regtest.midl.xyz/api"
)

// Transaction construction.
const (
	// DustThresholdSats is the smallest change output worth creating.
	// Change at or below this is absorbed into the fee instead.
	DustThresholdSats = 1000

	// MaxInputsPerTx caps input count so the transaction stays standard.
	MaxInputsPerTx = 200

	// Weight units for P2WPKH vsize estimation:
	// overhead = version + segwit marker/flag + in/out counts + locktime.
	TxOverheadWU          = 42
	P2WPKHInputNonWitWU   = 164
	P2WPKHInputWitnessWU  = 108
	P2WPKHOutputWU        = 124
)

// Signing.
const (
	DefaultSigningTimeout = 30 * time.Second
)

// Settlement verification.
const (
	// VerifyPollInterval is a fixed cadence, deliberately not backed off:
	// settlement latency is network-determined, not server-load-determined.
	VerifyPollInterval = 4 * time.Second
	VerifyCeiling      = 10 * time.Minute

	// MinConfirmations for CONFIRMED. One is sufficient for low-value
	// retail amounts.
	MinConfirmations = 1
)

// Indexer.
const (
	IndexerRequestTimeout = 15 * time.Second
	RateLimitIndexer      = 10 // requests per second
	TxStatusPath          = "/tx/%s/status"
)

// Server.
const (
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 0 // no write deadline, SSE streams stay open
	ServerIdleTimeout  = 120 * time.Second
	ShutdownTimeout    = 30 * time.Second
	SSEKeepAlive       = 15 * time.Second
	EventHubBuffer     = 64 // per-client SSE channel depth
)

// Price display.
const (
	CoinGeckoBaseURL   = "https://api.coingecko.com/api/v3"
	PriceCacheDuration = 5 * time.Minute
)

// Logging.
const (
	LogMaxAgeDays = 30
)
