// main.go - The PnL proving daemon: one-shot proving run over a recipient's
// encrypted swap history.
//
// Loads the tagging-secret export, scans the node for the recipient's swap
// logs, proves each swap, aggregates into one final proof, and writes the
// artifact (proof plus six public fields) as JSON.
//
// Usage:
//   pnld -config pnld.json
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	fr_grumpkin "github.com/consensys/gnark-crypto/ecc/grumpkin/fr"

	"pnlprover/internal/field"
	"pnlprover/internal/keys"
	"pnlprover/internal/node"
	"pnlprover/internal/pipeline"
	"pnlprover/internal/prover"
	"pnlprover/internal/tagging"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "pnld.json", "path to the daemon config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := NewMetricsCollector()
	health := NewHealthChecker(version)
	health.RegisterComponent("node", endpointCheck(cfg.NodeEndpoint))
	health.RegisterComponent("prover", endpointCheck(cfg.ProverEndpoint))
	if cfg.HealthAddr != "" {
		go func() {
			if err := health.Serve(cfg.HealthAddr, metrics); err != nil {
				log.Error().Err(err).Msg("health endpoint stopped")
			}
		}()
	}

	priceFeed, err := parseField(cfg.PriceFeedAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("bad price_feed_address")
	}
	assetsSlot, err := parseField(cfg.AssetsMapSlot)
	if err != nil {
		log.Fatal().Err(err).Msg("bad assets_map_slot")
	}
	viewingSecret, err := parseGrumpkinScalar(cfg.MasterViewingSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("bad master_viewing_secret")
	}

	export, err := keys.Load(cfg.KeyExportPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading key export")
	}
	secret, err := export.FindSecret(cfg.AmmAddress, tagging.DirectionInbound)
	if err != nil {
		log.Fatal().Err(err).Msg("selecting tagging secret")
	}

	nodeClient := node.NewHTTPClient(cfg.NodeEndpoint, log, node.HTTPClientOptions{
		Timeout:              time.Duration(cfg.NodeTimeoutSeconds) * time.Second,
		MaxRequestsPerSecond: cfg.MaxNodeRequestsPerSec,
	})
	proverTimeout := time.Duration(cfg.ProverTimeoutSeconds) * time.Second
	swapBackend := prover.NewHTTPBackend(cfg.ProverEndpoint, cfg.SwapCircuit, proverTimeout, log)
	summaryBackend := prover.NewHTTPBackend(cfg.ProverEndpoint, cfg.SummaryCircuit, proverTimeout, log)

	p := pipeline.New(nodeClient, swapBackend, summaryBackend, log)
	runCfg := pipeline.Config{
		TaggingSecret:       secret,
		MasterViewingSecret: viewingSecret,
		PriceFeedAddress:    priceFeed,
		AssetsMapSlot:       assetsSlot,
		Scan: tagging.ScanOptions{
			StartIndex: cfg.ScanStartIndex,
			MaxIndices: cfg.ScanMaxIndices,
			BatchSize:  cfg.ScanBatchSize,
		},
	}

	start := time.Now()
	final, err := p.Run(ctx, runCfg)
	if err != nil {
		metrics.RecordError("run")
		log.Fatal().Err(err).Msg("proving run failed")
	}
	metrics.RecordProofGeneration(time.Since(start))

	pnl, err := field.DecodeI64(final.Outputs.PnL)
	if err != nil {
		log.Fatal().Err(err).Msg("final pnl out of range")
	}
	metrics.SetGauge(MetricFinalPnL, float64(pnl))

	f, err := os.Create(cfg.ArtifactPath)
	if err != nil {
		log.Fatal().Err(err).Msg("writing artifact")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final); err != nil {
		f.Close()
		log.Fatal().Err(err).Msg("encoding artifact")
	}
	f.Close()

	log.Info().
		Int64("pnl", pnl).
		Str("ciphertext_root", field.Hex(final.Outputs.RootOrLeaf)).
		Str("artifact", cfg.ArtifactPath).
		Dur("took", time.Since(start)).
		Msg("proving run complete")
}

// endpointCheck probes an HTTP endpoint for reachability.
func endpointCheck(endpoint string) func() error {
	return func() error {
		resp, err := http.Head(endpoint)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

// parseField parses a field element from a 0x-prefixed hex string or a
// decimal string.
func parseField(s string) (fr.Element, error) {
	var e fr.Element
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return e, err
		}
		e.SetBytes(b)
		return e, nil
	}
	if _, err := e.SetString(s); err != nil {
		return e, err
	}
	return e, nil
}

func parseGrumpkinScalar(s string) (fr_grumpkin.Element, error) {
	var e fr_grumpkin.Element
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return e, err
		}
		e.SetBytes(b)
		return e, nil
	}
	if _, err := e.SetString(s); err != nil {
		return e, err
	}
	return e, nil
}
