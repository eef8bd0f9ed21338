package network

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/velencia/satpay/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	reg := Load(&config.Config{Network: "mainnet"})

	tests := []struct {
		name          string
		signerNetwork string
		params        *chaincfg.Params
	}{
		{"mainnet", "mainnet", &chaincfg.MainNetParams},
		{"testnet", "testnet", &chaincfg.TestNet3Params},
		{"testnet4", "testnet4", &chaincfg.TestNet3Params},
		{"signet", "signet", &chaincfg.SigNetParams},
		{"regtest", "testnet", &chaincfg.RegressionNetParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := reg.Resolve(tt.name)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.name, err)
			}
			if p.Name != tt.name {
				t.Errorf("Name = %s", p.Name)
			}
			if p.SignerNetwork != tt.signerNetwork {
				t.Errorf("SignerNetwork = %s, want %s", p.SignerNetwork, tt.signerNetwork)
			}
			if p.Params != tt.params {
				t.Errorf("wrong chain params for %s", tt.name)
			}
			if p.IndexerBaseURL == "" {
				t.Errorf("no default indexer URL for %s", tt.name)
			}
		})
	}

	if len(reg.Names()) != 5 {
		t.Errorf("expected 5 networks, got %v", reg.Names())
	}
}

func TestLoadAppliesOverridesToActiveNetwork(t *testing.T) {
	reg := Load(&config.Config{
		Network:       "regtest",
		StoreAddress:  "bcrt1qstore",
		IndexerURL:    "http://localhost:3002",
		SignerNetwork: "regtest",
	})

	p, err := reg.Resolve("regtest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.StoreAddress != "bcrt1qstore" {
		t.Errorf("StoreAddress = %s", p.StoreAddress)
	}
	if p.IndexerBaseURL != "http://localhost:3002" {
		t.Errorf("IndexerBaseURL = %s", p.IndexerBaseURL)
	}
	if p.SignerNetwork != "regtest" {
		t.Errorf("SignerNetwork override not applied: %s", p.SignerNetwork)
	}

	// Overrides are scoped to the active network only.
	main, err := reg.Resolve("mainnet")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if main.StoreAddress != "" {
		t.Errorf("override leaked to mainnet: %s", main.StoreAddress)
	}
	if main.IndexerBaseURL != config.MainnetIndexerURL {
		t.Errorf("mainnet indexer URL changed: %s", main.IndexerBaseURL)
	}
}

func TestResolveUnknownNetwork(t *testing.T) {
	reg := Load(&config.Config{Network: "mainnet"})

	_, err := reg.Resolve("litecoin")
	if !errors.Is(err, config.ErrUnknownNetwork) {
		t.Errorf("expected ErrUnknownNetwork, got %v", err)
	}
}
