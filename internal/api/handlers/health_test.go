package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/indexer"
	"github.com/velencia/satpay/internal/network"
)

func healthFixture(t *testing.T, indexerHandler http.HandlerFunc) http.HandlerFunc {
	t.Helper()

	srv := httptest.NewServer(indexerHandler)
	t.Cleanup(srv.Close)

	profile := &network.Profile{
		Name:           "regtest",
		IndexerBaseURL: srv.URL,
	}
	tracker := indexer.NewHealthTracker(indexer.New(srv.Client(), profile))
	cfg := &config.Config{Network: "regtest"}

	return HealthHandler(cfg, tracker, "test")
}

func TestHealthHandler_OK(t *testing.T) {
	handler := healthFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blocks/tip/height" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte("800000"))
	})

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data struct {
			Status  string               `json:"status"`
			Version string               `json:"version"`
			Network string               `json:"network"`
			Indexer indexer.HealthStatus `json:"indexer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != "ok" {
		t.Errorf("status = %s, want ok", resp.Data.Status)
	}
	if !resp.Data.Indexer.OK || resp.Data.Indexer.TipHeight != 800000 {
		t.Errorf("indexer view = %+v", resp.Data.Indexer)
	}
	if resp.Data.Version != "test" || resp.Data.Network != "regtest" {
		t.Errorf("metadata = %s/%s", resp.Data.Version, resp.Data.Network)
	}
}

func TestHealthHandler_Degraded(t *testing.T) {
	handler := healthFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	// Degradation is reported in the body, not the status code: the server
	// itself is alive.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != "degraded" {
		t.Errorf("status = %s, want degraded", resp.Data.Status)
	}
}
