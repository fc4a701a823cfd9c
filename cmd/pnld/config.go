// config.go - Configuration management for the PnL proving daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration.
type Config struct {
	// Endpoints
	NodeEndpoint   string `json:"node_endpoint"`
	ProverEndpoint string `json:"prover_endpoint"`

	// Circuit names on the proving service
	SwapCircuit    string `json:"swap_circuit"`
	SummaryCircuit string `json:"summary_circuit"`

	// Run inputs
	KeyExportPath       string `json:"key_export_path"`
	AmmAddress          string `json:"amm_address"`
	PriceFeedAddress    string `json:"price_feed_address"`
	AssetsMapSlot       string `json:"assets_map_slot"`
	MasterViewingSecret string `json:"master_viewing_secret"`

	// Tag scan bounds
	ScanStartIndex uint64 `json:"scan_start_index"`
	ScanMaxIndices uint64 `json:"scan_max_indices"`
	ScanBatchSize  uint64 `json:"scan_batch_size"`

	// Timeouts and limits
	NodeTimeoutSeconds    int `json:"node_timeout_seconds"`
	ProverTimeoutSeconds  int `json:"prover_timeout_seconds"`
	MaxNodeRequestsPerSec int `json:"max_node_requests_per_sec"`

	// Output
	ArtifactPath string `json:"artifact_path"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Health/metrics endpoint; empty disables it
	HealthAddr string `json:"health_addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeEndpoint:          "http://localhost:8080",
		ProverEndpoint:        "http://localhost:8081",
		SwapCircuit:           "swap",
		SummaryCircuit:        "swap_summary",
		KeyExportPath:         "keys/tagging_secrets.json",
		ScanStartIndex:        0,
		ScanMaxIndices:        256,
		ScanBatchSize:         16,
		NodeTimeoutSeconds:    30,
		ProverTimeoutSeconds:  300,
		MaxNodeRequestsPerSec: 50,
		ArtifactPath:          "artifact.json",
		LogLevel:              "info",
		HealthAddr:            "",
	}
}

// LoadConfig loads configuration from file or creates the default.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file.
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NodeEndpoint == "" {
		return fmt.Errorf("node_endpoint must be set")
	}
	if c.ProverEndpoint == "" {
		return fmt.Errorf("prover_endpoint must be set")
	}
	if c.AmmAddress == "" {
		return fmt.Errorf("amm_address must be set")
	}
	if c.PriceFeedAddress == "" {
		return fmt.Errorf("price_feed_address must be set")
	}
	if c.MasterViewingSecret == "" {
		return fmt.Errorf("master_viewing_secret must be set")
	}
	if c.ScanBatchSize == 0 {
		return fmt.Errorf("scan_batch_size must be positive")
	}
	if c.NodeTimeoutSeconds <= 0 {
		return fmt.Errorf("node_timeout_seconds must be positive")
	}
	if c.ProverTimeoutSeconds <= 0 {
		return fmt.Errorf("prover_timeout_seconds must be positive")
	}
	return nil
}
