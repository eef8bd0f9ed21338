package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velencia/satpay/internal/api"
	"github.com/velencia/satpay/internal/broadcast"
	"github.com/velencia/satpay/internal/builder"
	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/db"
	"github.com/velencia/satpay/internal/indexer"
	"github.com/velencia/satpay/internal/logging"
	"github.com/velencia/satpay/internal/network"
	"github.com/velencia/satpay/internal/payment"
	"github.com/velencia/satpay/internal/price"
	"github.com/velencia/satpay/internal/signing"
	"github.com/velencia/satpay/internal/verify"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("satpay %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: satpay <command>

Commands:
  serve     Start the payment HTTP server
  version   Print version information
`)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting satpay",
		"version", version,
		"network", cfg.Network,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
		"logLevel", cfg.LogLevel,
	)

	registry := network.Load(cfg)
	profile, err := registry.Resolve(cfg.Network)
	if err != nil {
		return fmt.Errorf("resolve network profile: %w", err)
	}
	if profile.StoreAddress == "" {
		return fmt.Errorf("%w: SATPAY_STORE_ADDRESS is required for network %s", config.ErrInvalidConfig, cfg.Network)
	}

	slog.Info("network profile resolved",
		"network", profile.Name,
		"indexer", profile.IndexerBaseURL,
		"storeAddress", profile.StoreAddress,
		"signerNetwork", profile.SignerNetwork,
	)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database migrations applied")

	// Root context for background services; cancelled on shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	httpClient := &http.Client{Timeout: config.IndexerRequestTimeout}
	chain := indexer.New(httpClient, profile)
	health := indexer.NewHealthTracker(chain)

	// Probe the indexer at startup; a failure is logged, not fatal.
	go health.Check(rootCtx)

	hub := payment.NewEventHub()
	go hub.Run(rootCtx)

	bridge := signing.NewBridge(hub)
	coordinator := signing.NewCoordinator(time.Duration(cfg.SigningTimeoutSec) * time.Second)
	txBuilder := builder.New(chain, profile, cfg.FeeRateSatPerVB)
	finalizer := broadcast.New(chain)
	verifier := verify.New(chain,
		time.Duration(cfg.VerifyPollSec)*time.Second,
		time.Duration(cfg.VerifyCeilingSec)*time.Second,
	)

	session := payment.NewSession(profile, txBuilder, coordinator, bridge, finalizer, verifier, chain, database, hub)
	if err := session.Start(rootCtx); err != nil {
		return fmt.Errorf("failed to start payment session: %w", err)
	}

	reader := payment.NewWalletReader(chain, health)
	prices := price.NewService()

	router := api.NewRouter(&api.Deps{
		Config:  cfg,
		Profile: profile,
		Session: session,
		Bridge:  bridge,
		Reader:  reader,
		Health:  health,
		Hub:     hub,
		Price:   prices,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	// Stop settlement watchers and drain SSE clients first; unsettled
	// attempts are resumed from the database on the next start.
	rootCancel()
	session.Wait()
	slog.Info("settlement watchers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
