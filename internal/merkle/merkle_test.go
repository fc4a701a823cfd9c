package merkle

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"pnlprover/internal/field"
	"pnlprover/internal/poseidon"
)

func TestZeroHashRecursion(t *testing.T) {
	z0 := ZeroHash(0)
	require.True(t, z0.IsZero())
	for l := 1; l <= MaxZeroHashDepth; l++ {
		prev := ZeroHash(l - 1)
		want := poseidon.HashPair(prev, prev)
		got := ZeroHash(l)
		require.True(t, got.Equal(&want), "level %d", l)
	}
}

func TestRootPaddingLaw(t *testing.T) {
	leaves := []fr.Element{field.FromUint64(1), field.FromUint64(2), field.FromUint64(3)}
	padded := append(append([]fr.Element{}, leaves...), fr.Element{})
	r1 := Root(leaves)
	r2 := Root(padded)
	require.True(t, r1.Equal(&r2), "explicit zero padding to the power of two is a no-op")
}

func TestRootSmallShapes(t *testing.T) {
	a, b := field.FromUint64(10), field.FromUint64(20)
	single := Root([]fr.Element{a})
	require.True(t, single.Equal(&a), "one leaf is its own root")

	pair := Root([]fr.Element{a, b})
	want := poseidon.HashPair(a, b)
	require.True(t, pair.Equal(&want))
}

func TestCiphertextLeafStable(t *testing.T) {
	buf := make([]byte, 576)
	for i := range buf {
		buf[i] = byte(i)
	}
	l1 := CiphertextLeaf(buf)
	l2 := poseidon.HashWithSeparator(CiphertextLeafSeparator, CiphertextFields(buf))
	require.True(t, l1.Equal(&l2))

	fields := CiphertextFields(buf)
	require.Len(t, fields, 18, "32-byte tag plus 17 body fields")
}
