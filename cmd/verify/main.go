package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/velencia/satpay/internal/config"
	"github.com/velencia/satpay/internal/indexer"
	"github.com/velencia/satpay/internal/logging"
	"github.com/velencia/satpay/internal/models"
	"github.com/velencia/satpay/internal/network"
	"github.com/velencia/satpay/internal/verify"
)

// Standalone settlement checker. Takes nothing but a txid, so an operator
// can re-check a payment that hit the verification ceiling, or audit one
// from a different machine entirely.
func main() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	txid := fs.String("txid", "", "Transaction ID to verify (required)")
	netName := fs.String("network", "", "Network override (default: from SATPAY_NETWORK)")
	wait := fs.Bool("wait", false, "Poll until confirmed or the ceiling elapses instead of checking once")
	fs.Parse(os.Args[1:])

	if *txid == "" {
		fmt.Fprintln(os.Stderr, "usage: satpay-verify -txid <txid> [-network <name>] [-wait]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *netName != "" {
		cfg.Network = *netName
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	registry := network.Load(cfg)
	profile, err := registry.Resolve(cfg.Network)
	if err != nil {
		slog.Error("unknown network", "network", cfg.Network, "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: config.IndexerRequestTimeout}
	chain := indexer.New(httpClient, profile)
	verifier := verify.New(chain,
		time.Duration(cfg.VerifyPollSec)*time.Second,
		time.Duration(cfg.VerifyCeilingSec)*time.Second,
	)

	ctx := context.Background()

	var result verify.Result
	if *wait {
		result, err = verifier.Await(ctx, *txid)
	} else {
		result, err = verifier.CheckOnce(ctx, *txid)
	}
	if err != nil {
		slog.Error("verification failed", "txid", *txid, "error", err)
		os.Exit(1)
	}

	fmt.Printf("txid:          %s\n", *txid)
	fmt.Printf("network:       %s\n", profile.Name)
	fmt.Printf("state:         %s\n", result.State)
	if result.State == models.StateConfirmed {
		fmt.Printf("blockHeight:   %d\n", result.BlockHeight)
		fmt.Printf("confirmations: %d\n", result.Confirmations)
	}

	if result.State != models.StateConfirmed {
		os.Exit(2)
	}
}
