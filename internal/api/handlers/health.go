package handlers

import (
	"log/slog"
	"net/http"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/indexer"
	"github.com/velencia/satpay/internal/models"
)

// HealthHandler returns a handler for GET /api/health. It probes the
// indexer live so the storefront can distinguish an empty wallet from a
// degraded backend.
func HealthHandler(cfg *config.Config, health *indexer.HealthTracker, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		indexerStatus := health.Check(r.Context())

		status := "ok"
		if !indexerStatus.OK {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: map[string]interface{}{
			"status":  status,
			"version": version,
			"network": cfg.Network,
			"indexer": indexerStatus,
		}})
	}
}
