package price

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velencia/satpay/internal/config"
)

func mockCoinGeckoResponse() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"bitcoin": {"usd": 97500.00},
	}
}

func TestUSDPerBTC_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ids := r.URL.Query().Get("ids"); ids != "bitcoin" {
			t.Errorf("unexpected ids param: %s", ids)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockCoinGeckoResponse())
	}))
	defer srv.Close()

	ps := NewServiceWithURL(srv.URL)
	usd, err := ps.USDPerBTC(context.Background())
	if err != nil {
		t.Fatalf("USDPerBTC() error = %v", err)
	}
	if usd != 97500.00 {
		t.Errorf("USDPerBTC() = %f, want 97500", usd)
	}
}

func TestUSDPerBTC_CacheHit(t *testing.T) {
	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockCoinGeckoResponse())
	}))
	defer srv.Close()

	ps := NewServiceWithURL(srv.URL)

	for i := 0; i < 3; i++ {
		if _, err := ps.USDPerBTC(context.Background()); err != nil {
			t.Fatalf("USDPerBTC() call %d error = %v", i, err)
		}
	}

	if callCount != 1 {
		t.Errorf("expected 1 upstream fetch, got %d", callCount)
	}
}

func TestUSDPerBTC_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ps := NewServiceWithURL(srv.URL)
	if _, err := ps.USDPerBTC(context.Background()); !errors.Is(err, config.ErrPriceFetchFailed) {
		t.Errorf("expected ErrPriceFetchFailed, got %v", err)
	}
}

func TestUSDPerBTC_MissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]map[string]float64{})
	}))
	defer srv.Close()

	ps := NewServiceWithURL(srv.URL)
	if _, err := ps.USDPerBTC(context.Background()); !errors.Is(err, config.ErrPriceFetchFailed) {
		t.Errorf("expected ErrPriceFetchFailed, got %v", err)
	}
}

func TestSatsToUSD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]map[string]float64{
			"bitcoin": {"usd": 100000.00},
		})
	}))
	defer srv.Close()

	ps := NewServiceWithURL(srv.URL)

	// 50_000 sats at $100k/BTC = $50.
	if got := ps.SatsToUSD(context.Background(), 50000); got != 50.0 {
		t.Errorf("SatsToUSD(50000) = %f, want 50", got)
	}
}

func TestSatsToUSD_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ps := NewServiceWithURL(srv.URL)
	if got := ps.SatsToUSD(context.Background(), 50000); got != 0 {
		t.Errorf("SatsToUSD() during outage = %f, want 0", got)
	}
}
