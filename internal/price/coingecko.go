package price

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/velencia/satpay/internal/config"
)

// Service fetches and caches the BTC/USD rate from CoinGecko. Display-only:
// nothing in the payment pipeline depends on it, so a CoinGecko outage
// never blocks a payment.
type Service struct {
	client   *http.Client
	baseURL  string
	cached   float64
	cachedAt time.Time
	mu       sync.RWMutex
}

// NewService creates a price service with default configuration.
func NewService() *Service {
	slog.Info("price service initialized",
		"baseURL", config.CoinGeckoBaseURL,
		"cacheDuration", config.PriceCacheDuration,
	)

	return &Service{
		client: &http.Client{
			Timeout: config.IndexerRequestTimeout,
		},
		baseURL: config.CoinGeckoBaseURL,
	}
}

// NewServiceWithURL creates a price service with a custom base URL (for testing).
func NewServiceWithURL(baseURL string) *Service {
	return &Service{
		client: &http.Client{
			Timeout: config.IndexerRequestTimeout,
		},
		baseURL: baseURL,
	}
}

// USDPerBTC returns the current USD price of one bitcoin, cached for
// PriceCacheDuration.
func (s *Service) USDPerBTC(ctx context.Context) (float64, error) {
	s.mu.RLock()
	if s.cached > 0 && time.Since(s.cachedAt) < config.PriceCacheDuration {
		price := s.cached
		age := time.Since(s.cachedAt)
		s.mu.RUnlock()

		slog.Debug("price cache hit", "age", age.Round(time.Second), "usd", price)
		return price, nil
	}
	s.mu.RUnlock()

	price, err := s.fetch(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.cached = price
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return price, nil
}

// SatsToUSD converts a satoshi amount at the current rate. Returns 0 when
// the rate is unavailable.
func (s *Service) SatsToUSD(ctx context.Context, sats int64) float64 {
	price, err := s.USDPerBTC(ctx)
	if err != nil {
		slog.Warn("price unavailable for conversion", "error", err)
		return 0
	}
	return float64(sats) / 1e8 * price
}

// coinGeckoResponse represents the CoinGecko /simple/price response.
type coinGeckoResponse map[string]map[string]float64

func (s *Service) fetch(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/simple/price?ids=bitcoin&vs_currencies=usd", s.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", config.ErrPriceFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %d", config.ErrPriceFetchFailed, resp.StatusCode)
	}

	var cgResp coinGeckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&cgResp); err != nil {
		return 0, fmt.Errorf("%w: decode error: %v", config.ErrPriceFetchFailed, err)
	}

	usd, ok := cgResp["bitcoin"]["usd"]
	if !ok || usd <= 0 {
		return 0, fmt.Errorf("%w: bitcoin price missing from response", config.ErrPriceFetchFailed)
	}

	slog.Info("price fetched",
		"usd", usd,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return usd, nil
}
