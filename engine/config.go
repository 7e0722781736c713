// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's operational configuration.
type Config struct {
	// GatewayURL is the settlement service base URL.
	GatewayURL string
	// SwapRouterURL is the swap aggregator base URL.
	SwapRouterURL string

	// ReconcileInterval is the delay between reconciler ticks.
	ReconcileInterval time.Duration
	// StepTimeout fails PENDING steps older than this.
	StepTimeout time.Duration

	// RelayerKeyHex is the hex-encoded relayer private key. Empty disables
	// eager mints; minting then waits for the reconciler host that holds one.
	RelayerKeyHex string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 30 * time.Second,
		StepTimeout:       30 * time.Minute,
	}
}

// rawConfig is the YAML shape; durations are Go duration strings ("30s").
type rawConfig struct {
	GatewayURL        string `yaml:"gatewayUrl"`
	SwapRouterURL     string `yaml:"swapRouterUrl"`
	ReconcileInterval string `yaml:"reconcileInterval"`
	StepTimeout       string `yaml:"stepTimeout"`
	RelayerKeyHex     string `yaml:"relayerKey"`
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.GatewayURL = raw.GatewayURL
	cfg.SwapRouterURL = raw.SwapRouterURL
	cfg.RelayerKeyHex = raw.RelayerKeyHex

	if raw.ReconcileInterval != "" {
		d, err := time.ParseDuration(raw.ReconcileInterval)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("config: bad reconcileInterval %q", raw.ReconcileInterval)
		}
		cfg.ReconcileInterval = d
	}
	if raw.StepTimeout != "" {
		d, err := time.ParseDuration(raw.StepTimeout)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("config: bad stepTimeout %q", raw.StepTimeout)
		}
		cfg.StepTimeout = d
	}
	return cfg, nil
}
