package lotstate

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"pnlprover/internal/field"
	"pnlprover/internal/poseidon"
)

func token(i uint64) fr.Element { return field.FromUint64(1000 + i) }

func TestAssignMonotonic(t *testing.T) {
	tree := New()
	s0, err := tree.Assign(token(0))
	require.NoError(t, err)
	require.Equal(t, 0, s0)

	s1, err := tree.Assign(token(1))
	require.NoError(t, err)
	require.Equal(t, 1, s1)

	// Re-assigning returns the bound slot.
	again, err := tree.Assign(token(0))
	require.NoError(t, err)
	require.Equal(t, s0, again)
}

func TestAssignFullTree(t *testing.T) {
	tree := New()
	for i := uint64(0); i < NumSlots; i++ {
		_, err := tree.Assign(token(i))
		require.NoError(t, err)
	}
	_, err := tree.Assign(token(99))
	require.ErrorIs(t, err, ErrTreeFull)
}

func TestLotsUnassigned(t *testing.T) {
	tree := New()
	lots, numLots, slot := tree.Lots(token(0))
	require.Equal(t, -1, slot)
	require.Zero(t, numLots)
	for _, l := range lots {
		require.True(t, l.IsEmpty())
	}
}

func TestSetLotsRoundTrip(t *testing.T) {
	tree := New()
	in := []Lot{
		NewLot(big.NewInt(500), big.NewInt(100)),
		NewLot(big.NewInt(300), big.NewInt(120)),
	}
	require.NoError(t, tree.SetLots(token(0), in))

	lots, numLots, slot := tree.Lots(token(0))
	require.Equal(t, 0, slot)
	require.Equal(t, 2, numLots)
	require.Zero(t, lots[0].Amount.Cmp(big.NewInt(500)))
	require.Zero(t, lots[1].Cost.Cmp(big.NewInt(120)))
	for _, l := range lots[2:] {
		require.True(t, l.IsEmpty())
	}
}

func TestSetLotsRejectsUncompacted(t *testing.T) {
	tree := New()
	in := []Lot{
		{Amount: new(big.Int), Cost: new(big.Int)},
		NewLot(big.NewInt(1), big.NewInt(1)),
	}
	require.Error(t, tree.SetLots(token(0), in))
}

func TestHashLotsFixedPreimage(t *testing.T) {
	tok := token(0)
	lots := []Lot{NewLot(big.NewInt(10), big.NewInt(3))}

	// The preimage is always 66 fields: trailing slots hash as zeros, so a
	// hand-built padded preimage must agree.
	preimage := make([]fr.Element, 0, LeafPreimageLen)
	preimage = append(preimage, tok, field.FromUint64(1))
	preimage = append(preimage, field.FromUint64(10), field.FromUint64(3))
	for i := 1; i < MaxLots; i++ {
		preimage = append(preimage, fr.Element{}, fr.Element{})
	}
	require.Len(t, preimage, LeafPreimageLen)

	want := poseidon.Hash(preimage...)
	got := HashLots(tok, 1, lots)
	require.True(t, got.Equal(&want))
}

func TestRootAndSiblingPathConsistent(t *testing.T) {
	tree := New()
	require.NoError(t, tree.SetLots(token(0), []Lot{NewLot(big.NewInt(5), big.NewInt(2))}))
	require.NoError(t, tree.SetLots(token(1), []Lot{NewLot(big.NewInt(7), big.NewInt(4))}))

	root := tree.Root()
	for slot := 0; slot < 2; slot++ {
		path, err := tree.SiblingPath(slot)
		require.NoError(t, err)

		lots, numLots, _ := tree.Lots(tree.tokens[slot])
		cur := HashLots(tree.tokens[slot], numLots, lots[:numLots])
		idx := slot
		for h := 0; h < TreeHeight; h++ {
			if idx&1 == 1 {
				cur = poseidon.HashPair(path[h], cur)
			} else {
				cur = poseidon.HashPair(cur, path[h])
			}
			idx >>= 1
		}
		require.True(t, cur.Equal(&root), "slot %d path folds to the root", slot)
	}
}

func TestRootChangesOnMutation(t *testing.T) {
	tree := New()
	empty := tree.Root()
	require.NoError(t, tree.SetLots(token(0), []Lot{NewLot(big.NewInt(1), big.NewInt(1))}))
	mutated := tree.Root()
	require.False(t, empty.Equal(&mutated))
}

func TestSiblingPathRange(t *testing.T) {
	tree := New()
	_, err := tree.SiblingPath(-1)
	require.Error(t, err)
	_, err = tree.SiblingPath(NumSlots)
	require.Error(t, err)
}
