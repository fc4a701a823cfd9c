// pipeline.go - The full proving run: discover, decrypt, prove, aggregate.
//
// One run walks a recipient's tag windows, proves each decryptable swap in
// chronological order against a single lot-state tree, then folds the swap
// proofs into one final artifact. Tag hits that do not open under the
// viewing secret belong to other recipients or event types; they are
// counted, logged and skipped.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	fr_grumpkin "github.com/consensys/gnark-crypto/ecc/grumpkin/fr"
	"github.com/rs/zerolog"

	"pnlprover/internal/aggregate"
	"pnlprover/internal/encryption"
	"pnlprover/internal/lotstate"
	"pnlprover/internal/node"
	"pnlprover/internal/prover"
	"pnlprover/internal/swap"
	"pnlprover/internal/tagging"
)

// Config parameterizes one proving run.
type Config struct {
	// TaggingSecret discovers the swap logs; its App field is the AMM
	// contract the viewing secret gets siloed to.
	TaggingSecret tagging.TaggingSecret
	// MasterViewingSecret is the recipient's master viewing scalar.
	MasterViewingSecret fr_grumpkin.Element
	// PriceFeedAddress is the oracle contract all swaps in the batch price
	// against.
	PriceFeedAddress fr.Element
	// AssetsMapSlot is the oracle's asset-price storage map slot.
	AssetsMapSlot fr.Element
	// Scan bounds the tag-window walk.
	Scan tagging.ScanOptions
	// InitialLots seeds the lot-state tree with holdings acquired before
	// the batch. Tokens are bound to slots in the order given.
	InitialLots []TokenLots
}

// TokenLots is one token's pre-existing lot queue.
type TokenLots struct {
	Token fr.Element     `json:"token"`
	Lots  []lotstate.Lot `json:"lots"`
}

// Pipeline owns the collaborators of a proving run.
type Pipeline struct {
	node    node.Client
	swaps   prover.Backend
	summary prover.Backend
	log     zerolog.Logger
}

// New wires a pipeline over a node client and the two circuit backends.
func New(n node.Client, swapBackend, summaryBackend prover.Backend, log zerolog.Logger) *Pipeline {
	return &Pipeline{node: n, swaps: swapBackend, summary: summaryBackend, log: log}
}

// Run executes one full proving run and returns the final artifact. There is
// no partial success: any failure past discovery aborts the run.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*aggregate.FinalArtifact, error) {
	scanner := tagging.NewScanner(p.node, p.log)
	logs, err := scanner.Scan(ctx, cfg.TaggingSecret, cfg.Scan)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, aggregate.ErrNoSwaps
	}
	p.log.Info().Int("logs", len(logs)).Msg("tag scan found encrypted logs")

	viewing := encryption.SiloViewingSecret(cfg.MasterViewingSecret, cfg.TaggingSecret.App)
	driver := swap.NewDriver(p.node, p.swaps, viewing, cfg.PriceFeedAddress, cfg.AssetsMapSlot, p.log)

	tree := lotstate.New()
	for _, tl := range cfg.InitialLots {
		if err := tree.SetLots(tl.Token, tl.Lots); err != nil {
			return nil, fmt.Errorf("seeding initial lots: %w", err)
		}
	}
	artifacts := make([]*swap.Artifact, 0, len(logs))
	previousBlock := uint64(0)
	skipped := 0
	for i, log := range logs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		artifact, err := driver.ProveSwap(ctx, log.Data, log.BlockNumber, tree, previousBlock)
		if errors.Is(err, encryption.ErrDecryptFailed) {
			skipped++
			p.log.Debug().Int("index", i).Msg("undecryptable tag hit skipped")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("swap %d: %w", i, err)
		}
		artifacts = append(artifacts, artifact)
		previousBlock = log.BlockNumber
	}
	if skipped > 0 {
		p.log.Info().Int("skipped", skipped).Msg("dropped tag hits for other recipients")
	}
	if len(artifacts) == 0 {
		return nil, aggregate.ErrNoSwaps
	}

	leafVK, err := p.swaps.RecursiveArtifacts(ctx, artifacts[0].Proof, swap.NumPublicOutputs)
	if err != nil {
		return nil, fmt.Errorf("leaf verifier key extraction: %w", err)
	}
	agg := aggregate.NewAggregator(p.summary, leafVK, p.log)
	final, err := agg.Aggregate(ctx, artifacts)
	if err != nil {
		return nil, err
	}
	p.log.Info().Str("pnl", final.Outputs.PnL.String()).Msg("final artifact ready")
	return final, nil
}
