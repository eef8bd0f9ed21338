package network

import (
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/velencia/satpay/internal/config"
)

// Profile describes one supported Bitcoin network variant: where its
// indexer lives, which address the store receives on, and how the network
// is presented to external signers. Profiles are immutable after Load.
type Profile struct {
	Name           string
	IndexerBaseURL string
	StoreAddress   string

	// SignerNetwork is the network name handed to wallet extensions. It
	// usually equals Name, but e.g. regtest is presented as "testnet" to
	// extensions whose allow-lists do not include regtest. Kept separate
	// from Name so the indexer target is never silently overloaded.
	SignerNetwork string

	// Params are the chain parameters used for address decoding.
	Params *chaincfg.Params
}

// Registry is the static mapping of network name to Profile. Built once at
// startup, never mutated afterwards.
type Registry struct {
	profiles map[string]*Profile
}

// Load builds the registry from compiled-in defaults plus per-network
// overrides from configuration (store address, indexer URL, signer network
// for the active network).
func Load(cfg *config.Config) *Registry {
	profiles := map[string]*Profile{
		"mainnet": {
			Name:           "mainnet",
			IndexerBaseURL: config.MainnetIndexerURL,
			SignerNetwork:  "mainnet",
			Params:         &chaincfg.MainNetParams,
		},
		"testnet": {
			Name:           "testnet",
			IndexerBaseURL: config.TestnetIndexerURL,
			SignerNetwork:  "testnet",
			Params:         &chaincfg.TestNet3Params,
		},
		"testnet4": {
			Name:           "testnet4",
			IndexerBaseURL: config.Testnet4IndexerURL,
			SignerNetwork:  "testnet4",
			// Testnet4 shares testnet3 address encoding.
			Params: &chaincfg.TestNet3Params,
		},
		"signet": {
			Name:           "signet",
			IndexerBaseURL: config.SignetIndexerURL,
			SignerNetwork:  "signet",
			Params:         &chaincfg.SigNetParams,
		},
		"regtest": {
			Name:           "regtest",
			IndexerBaseURL: config.RegtestIndexerURL,
			// Presented as testnet: several wallet extensions refuse
			// regtest in their network allow-lists while accepting the
			// byte-identical testnet encoding.
			SignerNetwork: "testnet",
			Params:        &chaincfg.RegressionNetParams,
		},
	}

	if p, ok := profiles[cfg.Network]; ok {
		if cfg.StoreAddress != "" {
			p.StoreAddress = cfg.StoreAddress
		}
		if cfg.IndexerURL != "" {
			p.IndexerBaseURL = cfg.IndexerURL
		}
		if cfg.SignerNetwork != "" {
			p.SignerNetwork = cfg.SignerNetwork
		}
	}

	slog.Info("network registry loaded",
		"networks", len(profiles),
		"active", cfg.Network,
	)

	return &Registry{profiles: profiles}
}

// Resolve returns the profile for a network name.
func (r *Registry) Resolve(name string) (*Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownNetwork, name)
	}
	return p, nil
}

// Names returns all registered network names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}
