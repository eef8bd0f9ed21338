package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/velencia/satpay/internal/api/handlers"
	"github.com/velencia/satpay/internal/api/middleware"
	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/indexer"
	"github.com/velencia/satpay/internal/network"
	"github.com/velencia/satpay/internal/payment"
	"github.com/velencia/satpay/internal/price"
	"github.com/velencia/satpay/internal/signing"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps holds everything the router needs.
type Deps struct {
	Config  *config.Config
	Profile *network.Profile
	Session *payment.Session
	Bridge  *signing.Bridge
	Reader  *payment.WalletReader
	Health  *indexer.HealthTracker
	Hub     *payment.EventHub
	Price   *price.Service
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps *Deps) chi.Router {
	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.CORS(deps.Config.AllowedOrigin))

	slog.Info("router initialized",
		"middleware", []string{"requestLogging", "cors"},
		"allowedOrigin", deps.Config.AllowedOrigin,
	)

	paymentDeps := &handlers.PaymentDeps{
		Session: deps.Session,
		Bridge:  deps.Bridge,
		Profile: deps.Profile,
	}
	walletDeps := &handlers.WalletDeps{
		Reader:  deps.Reader,
		Profile: deps.Profile,
		Price:   deps.Price,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(deps.Config, deps.Health, Version))
		r.Get("/events", handlers.Events(deps.Hub))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", handlers.CreatePayment(paymentDeps))
			r.Post("/{id}/signature", handlers.SubmitSignature(paymentDeps))
			r.Post("/{id}/cancel", handlers.CancelPayment(paymentDeps))
			r.Get("/verify/{txid}", handlers.VerifyPayment(paymentDeps))
			r.Get("/{ref}", handlers.GetPayment(paymentDeps))
		})

		r.Route("/wallet/{address}", func(r chi.Router) {
			r.Get("/balance", handlers.GetBalance(walletDeps))
			r.Get("/utxo", handlers.GetUtxos(walletDeps))
			r.Get("/txs", handlers.GetHistory(walletDeps))
		})
	})

	return r
}
