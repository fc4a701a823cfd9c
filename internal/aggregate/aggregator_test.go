package aggregate_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pnlprover/internal/aggregate"
	"pnlprover/internal/field"
	"pnlprover/internal/merkle"
	"pnlprover/internal/poseidon"
	"pnlprover/internal/prover"
	"pnlprover/internal/simulator"
	"pnlprover/internal/swap"
)

var testOracle = field.FromUint64(0xfeed)

func lotRoot(i int) fr.Element { return field.FromUint64(uint64(7000 + i)) }

// makeLeaf fabricates a proven swap artifact: leaf i chains lotRoot(i) into
// lotRoot(i+1) at the given block with the given pnl.
func makeLeaf(i int, pnl int64, block uint64) *swap.Artifact {
	outputs := swap.Outputs{
		RootOrLeaf:            field.FromUint64(uint64(100 + i)),
		PnL:                   field.EncodeI64(pnl),
		RemainingLotStateRoot: lotRoot(i + 1),
		InitialLotStateRoot:   lotRoot(i),
		PriceFeedAddress:      testOracle,
		BlockNumber:           field.FromUint64(block),
	}
	return &swap.Artifact{
		Proof:   &prover.Proof{Proof: []byte{byte(i)}, PublicInputs: outputs.Slice()},
		Outputs: outputs,
	}
}

func fakeLeafVK() *prover.RecursiveArtifacts {
	vkFields := []fr.Element{field.FromUint64(41), field.FromUint64(42)}
	return &prover.RecursiveArtifacts{VKAsFields: vkFields, VKHash: poseidon.Hash(vkFields...)}
}

func newAggregator() *aggregate.Aggregator {
	return aggregate.NewAggregator(simulator.NewSummaryBackend(), fakeLeafVK(), zerolog.Nop())
}

func TestAggregateSingleSwapStillWraps(t *testing.T) {
	leaf := makeLeaf(0, 77, 10)
	final, err := newAggregator().Aggregate(context.Background(), []*swap.Artifact{leaf})
	require.NoError(t, err)

	// One summary application with an absent right child, zero-padded.
	want := poseidon.HashPair(leaf.Outputs.RootOrLeaf, merkle.ZeroHash(0))
	require.True(t, final.Outputs.RootOrLeaf.Equal(&want))
	require.True(t, final.Outputs.PnL.Equal(&leaf.Outputs.PnL))
	require.True(t, final.Outputs.RemainingLotStateRoot.Equal(&leaf.Outputs.RemainingLotStateRoot))
	require.True(t, final.Outputs.InitialLotStateRoot.Equal(&leaf.Outputs.InitialLotStateRoot))
}

func TestAggregateThreeLeaves(t *testing.T) {
	leaves := []*swap.Artifact{
		makeLeaf(0, 10, 10),
		makeLeaf(1, -4, 11),
		makeLeaf(2, 7, 12),
	}
	final, err := newAggregator().Aggregate(context.Background(), leaves)
	require.NoError(t, err)

	a := poseidon.HashPair(leaves[0].Outputs.RootOrLeaf, leaves[1].Outputs.RootOrLeaf)
	b := poseidon.HashPair(leaves[2].Outputs.RootOrLeaf, merkle.ZeroHash(0))
	want := poseidon.HashPair(a, b)
	require.True(t, final.Outputs.RootOrLeaf.Equal(&want))

	pnl, err := field.DecodeI64(final.Outputs.PnL)
	require.NoError(t, err)
	require.Equal(t, int64(13), pnl)

	// The final artifact spans the full lot-root chain and block range.
	require.True(t, final.Outputs.InitialLotStateRoot.Equal(&leaves[0].Outputs.InitialLotStateRoot))
	require.True(t, final.Outputs.RemainingLotStateRoot.Equal(&leaves[2].Outputs.RemainingLotStateRoot))
	wantBlock := field.FromUint64(12)
	require.True(t, final.Outputs.BlockNumber.Equal(&wantBlock))
}

func TestAggregateSixLeavesMatchesPaddedTree(t *testing.T) {
	pnls := []int64{5, -2, 9, 0, -11, 4}
	leaves := make([]*swap.Artifact, 6)
	roots := make([]fr.Element, 6)
	var sum int64
	for i := range leaves {
		leaves[i] = makeLeaf(i, pnls[i], uint64(20+i))
		roots[i] = leaves[i].Outputs.RootOrLeaf
		sum += pnls[i]
	}
	final, err := newAggregator().Aggregate(context.Background(), leaves)
	require.NoError(t, err)

	// Six leaves aggregate to the root of the zero-padded eight-leaf tree.
	want := merkle.Root(roots)
	require.True(t, final.Outputs.RootOrLeaf.Equal(&want))

	pnl, err := field.DecodeI64(final.Outputs.PnL)
	require.NoError(t, err)
	require.Equal(t, sum, pnl)
}

func TestAggregateLossOnlyBatch(t *testing.T) {
	leaves := []*swap.Artifact{makeLeaf(0, -100, 10), makeLeaf(1, -200, 11)}
	final, err := newAggregator().Aggregate(context.Background(), leaves)
	require.NoError(t, err)

	// The encoded field sits in [2^63, 2^64); the decoder recovers -300.
	v := final.Outputs.PnL.BigInt(new(big.Int))
	require.Equal(t, 64, v.BitLen())
	pnl, err := field.DecodeI64(final.Outputs.PnL)
	require.NoError(t, err)
	require.Equal(t, int64(-300), pnl)
}

func TestAggregateEmpty(t *testing.T) {
	_, err := newAggregator().Aggregate(context.Background(), nil)
	require.ErrorIs(t, err, aggregate.ErrNoSwaps)
}

func TestAggregateChronologyViolation(t *testing.T) {
	left := makeLeaf(0, 1, 20)
	right := makeLeaf(1, 1, 15) // earlier block on the right
	_, err := newAggregator().Aggregate(context.Background(), []*swap.Artifact{left, right})
	var aerr *swap.AssertionError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, swap.AssertChronology, aerr.Kind)
}

func TestAggregateOracleMismatch(t *testing.T) {
	left := makeLeaf(0, 1, 10)
	right := makeLeaf(1, 1, 11)
	right.Outputs.PriceFeedAddress = field.FromUint64(0xbad)
	right.Proof.PublicInputs = right.Outputs.Slice()
	_, err := newAggregator().Aggregate(context.Background(), []*swap.Artifact{left, right})
	var aerr *swap.AssertionError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, swap.AssertOracle, aerr.Kind)
}

func TestAggregateRootChainMismatch(t *testing.T) {
	left := makeLeaf(0, 1, 10)
	right := makeLeaf(5, 1, 11) // initial root does not chain from left
	_, err := newAggregator().Aggregate(context.Background(), []*swap.Artifact{left, right})
	var aerr *swap.AssertionError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, swap.AssertRootChain, aerr.Kind)
}

func TestCombineOutputsPairwiseInvariants(t *testing.T) {
	left := makeLeaf(0, 3, 10).Outputs
	right := makeLeaf(1, 4, 12).Outputs

	got, err := aggregate.CombineOutputs(left, &right, 0)
	require.NoError(t, err)
	require.True(t, got.RemainingLotStateRoot.Equal(&right.RemainingLotStateRoot))
	require.True(t, got.InitialLotStateRoot.Equal(&left.InitialLotStateRoot))
	require.True(t, got.BlockNumber.Equal(&right.BlockNumber))

	pnl, err := field.DecodeI64(got.PnL)
	require.NoError(t, err)
	require.Equal(t, int64(7), pnl)
}
