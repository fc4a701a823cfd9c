// aggregator.go - Recursive binary-tree aggregation of swap proofs.
//
// Swap artifacts are paired left to right through a fixed-shape summary
// combinator until one proof remains. Odd arities pad the missing right
// child with the per-level zero hash; a single swap still gets one summary
// wrap so the final proof shape never reveals the swap count. The host
// mirrors every combination and enforces the inter-proof invariants before
// spending prover time on a pair that cannot verify.

package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"

	"pnlprover/internal/field"
	"pnlprover/internal/merkle"
	"pnlprover/internal/poseidon"
	"pnlprover/internal/prover"
	"pnlprover/internal/swap"
)

// ErrNoSwaps is returned when an aggregation run has nothing to prove.
var ErrNoSwaps = errors.New("aggregate: no swap artifacts")

// SummaryChild is one child of a summary application as the combinator
// circuit consumes it: the embedded proof, its outputs, and the verifier-key
// artifacts it must be checked against.
type SummaryChild struct {
	Proof      []byte       `json:"proof"`
	Outputs    swap.Outputs `json:"outputs"`
	VKAsFields []fr.Element `json:"vkAsFields"`
	VKHash     fr.Element   `json:"vkHash"`
}

// SummaryInputs is the input record of the summary combinator. Right is nil
// for odd-arity tail nodes; RightPad then carries the level's zero hash.
type SummaryInputs struct {
	Left     SummaryChild  `json:"left"`
	Right    *SummaryChild `json:"right,omitempty"`
	Level    int           `json:"level"`
	RightPad fr.Element    `json:"rightPad"`
}

// FinalArtifact is the system's answer: the aggregate proof and its six
// public fields.
type FinalArtifact struct {
	Proof   *prover.Proof `json:"proof"`
	Outputs swap.Outputs  `json:"outputs"`
}

// Aggregator folds swap artifacts through the summary backend.
type Aggregator struct {
	backend prover.Backend
	leafVK  *prover.RecursiveArtifacts
	log     zerolog.Logger

	// summaryVK is bootstrapped from a throwaway summary execution; the
	// combinator passes the summary hash through unasserted at level 0, so
	// the first real application needs no pre-existing summary proof.
	summaryVK *prover.RecursiveArtifacts
}

// NewAggregator builds an aggregator over the summary-circuit backend. The
// leaf verifier-key artifacts come from the first individual swap proof.
func NewAggregator(backend prover.Backend, leafVK *prover.RecursiveArtifacts, log zerolog.Logger) *Aggregator {
	return &Aggregator{backend: backend, leafVK: leafVK, log: log.With().Str("component", "aggregator").Logger()}
}

// node is one vertex of the aggregation tree. level 0 carries an individual
// swap proof; higher levels carry summary proofs.
type node struct {
	proof   *prover.Proof
	outputs swap.Outputs
	level   int
}

// Aggregate folds the chronologically ordered artifacts into one final
// proof. Cancellation between combinator applications aborts the run.
func (a *Aggregator) Aggregate(ctx context.Context, leaves []*swap.Artifact) (*FinalArtifact, error) {
	if len(leaves) == 0 {
		return nil, ErrNoSwaps
	}
	if a.summaryVK == nil {
		if err := a.bootstrapSummaryVK(ctx, leaves[0]); err != nil {
			return nil, err
		}
	}

	current := make([]*node, len(leaves))
	for i, leaf := range leaves {
		current[i] = &node{proof: leaf.Proof, outputs: leaf.Outputs, level: 0}
	}

	level := 0
	for {
		next := make([]*node, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			left := current[i]
			var right *node
			if i+1 < len(current) {
				right = current[i+1]
			}
			combined, err := a.proveSummary(ctx, left, right, level)
			if err != nil {
				return nil, fmt.Errorf("aggregate: level %d pair %d: %w", level, i/2, err)
			}
			next = append(next, combined)
		}
		current = next
		level++
		if len(current) == 1 {
			break
		}
	}

	final := current[0]
	a.log.Info().Int("levels", level).Msg("aggregation complete")
	return &FinalArtifact{Proof: final.proof, Outputs: final.outputs}, nil
}

// bootstrapSummaryVK runs one throwaway summary execution over the first
// leaf and extracts the summary circuit's verifier-key artifacts.
func (a *Aggregator) bootstrapSummaryVK(ctx context.Context, sample *swap.Artifact) error {
	inputs := &SummaryInputs{
		Left:     SummaryChild{Proof: sample.Proof.Proof, Outputs: sample.Outputs, VKAsFields: a.leafVK.VKAsFields, VKHash: a.leafVK.VKHash},
		Level:    0,
		RightPad: merkle.ZeroHash(0),
	}
	witness, _, err := a.backend.Execute(ctx, inputs)
	if err != nil {
		return fmt.Errorf("aggregate: summary vk bootstrap: %w", err)
	}
	proof, err := a.backend.GenerateProof(ctx, witness, prover.TargetRecursive)
	if err != nil {
		return fmt.Errorf("aggregate: summary vk bootstrap: %w", err)
	}
	artifacts, err := a.backend.RecursiveArtifacts(ctx, proof, swap.NumPublicOutputs)
	if err != nil {
		return fmt.Errorf("aggregate: summary vk bootstrap: %w", err)
	}
	a.summaryVK = artifacts
	return nil
}

// childVK returns the admissible verifier key for a child proof: the leaf
// key at level 0, the summary key above.
func (a *Aggregator) childVK(child *node) *prover.RecursiveArtifacts {
	if child.level == 0 {
		return a.leafVK
	}
	return a.summaryVK
}

func (a *Aggregator) proveSummary(ctx context.Context, left, right *node, level int) (*node, error) {
	var rightOutputs *swap.Outputs
	if right != nil {
		rightOutputs = &right.outputs
	}
	expected, err := CombineOutputs(left.outputs, rightOutputs, level)
	if err != nil {
		return nil, err
	}

	leftVK := a.childVK(left)
	inputs := &SummaryInputs{
		Left:     SummaryChild{Proof: left.proof.Proof, Outputs: left.outputs, VKAsFields: leftVK.VKAsFields, VKHash: leftVK.VKHash},
		Level:    level,
		RightPad: merkle.ZeroHash(level),
	}
	if right != nil {
		rightVK := a.childVK(right)
		inputs.Right = &SummaryChild{Proof: right.proof.Proof, Outputs: right.outputs, VKAsFields: rightVK.VKAsFields, VKHash: rightVK.VKHash}
	}
	if err := a.checkAdmissibleVKs(inputs, level); err != nil {
		return nil, err
	}

	witness, returnValues, err := a.backend.Execute(ctx, inputs)
	if err != nil {
		return nil, err
	}
	got, err := swap.OutputsFromSlice(returnValues)
	if err != nil {
		return nil, err
	}
	if !got.Equal(expected) {
		return nil, errors.New("summary outputs diverge from host mirror")
	}
	proof, err := a.backend.GenerateProof(ctx, witness, prover.TargetRecursive)
	if err != nil {
		return nil, err
	}
	ok, err := a.backend.VerifyProof(ctx, proof, prover.TargetRecursive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, prover.ErrVerifyFailed
	}
	return &node{proof: proof, outputs: got, level: level + 1}, nil
}

// checkAdmissibleVKs mirrors the combinator's verifier-key assertion: level
// 0 children carry the leaf key, children above carry the summary key. The
// summary hash is passed through unasserted at level 0 (the bootstrap
// chicken-and-egg), asserted everywhere above.
func (a *Aggregator) checkAdmissibleVKs(inputs *SummaryInputs, level int) error {
	want := a.leafVK.VKHash
	if level >= 1 {
		want = a.summaryVK.VKHash
	}
	if !inputs.Left.VKHash.Equal(&want) {
		return &swap.AssertionError{Kind: swap.AssertVerifierKey,
			Msg: fmt.Sprintf("left child at level %d carries inadmissible verifier key", level)}
	}
	if inputs.Right != nil && !inputs.Right.VKHash.Equal(&want) {
		return &swap.AssertionError{Kind: swap.AssertVerifierKey,
			Msg: fmt.Sprintf("right child at level %d carries inadmissible verifier key", level)}
	}
	return nil
}

// CombineOutputs mirrors the summary combinator's output computation and
// inter-proof assertions. right == nil is the odd-arity case: assertions
// are skipped and the level's zero hash stands in for the missing root.
func CombineOutputs(left swap.Outputs, right *swap.Outputs, level int) (swap.Outputs, error) {
	rightRoot := merkle.ZeroHash(level)
	remaining := left.RemainingLotStateRoot
	blockMax := left.BlockNumber
	pnlLeft, err := field.DecodeI64(left.PnL)
	if err != nil {
		return swap.Outputs{}, fmt.Errorf("left pnl: %w", err)
	}
	pnl := pnlLeft

	if right != nil {
		if !left.RemainingLotStateRoot.Equal(&right.InitialLotStateRoot) {
			return swap.Outputs{}, &swap.AssertionError{Kind: swap.AssertRootChain,
				Msg: "left remaining lot-state root does not chain into right initial root"}
		}
		leftBlock, rightBlock, err := blockPair(left.BlockNumber, right.BlockNumber)
		if err != nil {
			return swap.Outputs{}, err
		}
		if leftBlock > rightBlock {
			return swap.Outputs{}, &swap.AssertionError{Kind: swap.AssertChronology,
				Msg: fmt.Sprintf("left block %d after right block %d", leftBlock, rightBlock)}
		}
		if !left.PriceFeedAddress.Equal(&right.PriceFeedAddress) {
			return swap.Outputs{}, &swap.AssertionError{Kind: swap.AssertOracle,
				Msg: "children disagree on price feed address"}
		}
		pnlRight, err := field.DecodeI64(right.PnL)
		if err != nil {
			return swap.Outputs{}, fmt.Errorf("right pnl: %w", err)
		}
		var ok bool
		if pnl, ok = addI64(pnlLeft, pnlRight); !ok {
			return swap.Outputs{}, fmt.Errorf("pnl sum %d + %d overflows signed 64 bits", pnlLeft, pnlRight)
		}
		rightRoot = right.RootOrLeaf
		remaining = right.RemainingLotStateRoot
		blockMax = right.BlockNumber
	}

	return swap.Outputs{
		RootOrLeaf:            poseidon.HashPair(left.RootOrLeaf, rightRoot),
		PnL:                   field.EncodeI64(pnl),
		RemainingLotStateRoot: remaining,
		InitialLotStateRoot:   left.InitialLotStateRoot,
		PriceFeedAddress:      left.PriceFeedAddress,
		BlockNumber:           blockMax,
	}, nil
}

func blockPair(left, right fr.Element) (uint64, uint64, error) {
	l, err := field.DecodeI64(left)
	if err != nil {
		return 0, 0, fmt.Errorf("left block: %w", err)
	}
	r, err := field.DecodeI64(right)
	if err != nil {
		return 0, 0, fmt.Errorf("right block: %w", err)
	}
	if l < 0 || r < 0 {
		return 0, 0, errors.New("block number out of range")
	}
	return uint64(l), uint64(r), nil
}

func addI64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
