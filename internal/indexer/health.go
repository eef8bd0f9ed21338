package indexer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus is a point-in-time view of indexer reachability.
type HealthStatus struct {
	Network    string `json:"network"`
	OK         bool   `json:"ok"`
	LatencyMs  int64  `json:"latencyMs"`
	TipHeight  int64  `json:"tipHeight,omitempty"`
	Error      string `json:"error,omitempty"`
	CheckedAt  string `json:"checkedAt"`
	ReadFailed bool   `json:"readFailed"`
}

// HealthTracker records whether the indexer has been reachable recently.
// Wallet reads that degrade to empty results flip the read-failure flag so
// the UI can tell "zero balance" apart from "indexer down".
type HealthTracker struct {
	client *Client

	mu       sync.RWMutex
	last     HealthStatus
	readFail atomic.Bool
}

// NewHealthTracker creates a tracker for the given client.
func NewHealthTracker(client *Client) *HealthTracker {
	return &HealthTracker{client: client}
}

// Check probes the indexer's tip-height endpoint and records the outcome.
func (h *HealthTracker) Check(ctx context.Context) HealthStatus {
	start := time.Now()
	tip, err := h.client.TipHeight(ctx)
	latency := time.Since(start)

	status := HealthStatus{
		Network:    h.client.Network(),
		OK:         err == nil,
		LatencyMs:  latency.Milliseconds(),
		TipHeight:  tip,
		CheckedAt:  time.Now().UTC().Format(time.RFC3339),
		ReadFailed: h.readFail.Load(),
	}
	if err != nil {
		status.Error = err.Error()
		slog.Warn("indexer health check failed",
			"network", status.Network,
			"latency", latency.Round(time.Millisecond),
			"error", err,
		)
	} else {
		slog.Debug("indexer health check ok",
			"network", status.Network,
			"tipHeight", tip,
			"latency", latency.Round(time.Millisecond),
		)
	}

	h.mu.Lock()
	h.last = status
	h.mu.Unlock()

	return status
}

// Last returns the most recent check result without probing.
func (h *HealthTracker) Last() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	status := h.last
	status.ReadFailed = h.readFail.Load()
	return status
}

// RecordReadFailure marks that a wallet read degraded to an empty result.
func (h *HealthTracker) RecordReadFailure() {
	h.readFail.Store(true)
}

// RecordReadSuccess clears the degraded-read flag.
func (h *HealthTracker) RecordReadSuccess() {
	h.readFail.Store(false)
}
