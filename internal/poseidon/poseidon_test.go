package poseidon

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"pnlprover/internal/field"
)

func TestHashDeterministic(t *testing.T) {
	a := field.FromUint64(1)
	b := field.FromUint64(2)
	h1 := Hash(a, b)
	h2 := Hash(a, b)
	require.True(t, h1.Equal(&h2))

	h3 := Hash(b, a)
	require.False(t, h1.Equal(&h3), "hash must depend on input order")
}

func TestHashWithSeparatorDomains(t *testing.T) {
	inputs := []fr.Element{field.FromUint64(3), field.FromUint64(7)}
	h0 := HashWithSeparator(0, inputs)
	h23 := HashWithSeparator(23, inputs)
	require.False(t, h0.Equal(&h23), "separators must not collide")

	// Prepending the separator explicitly gives the same digest.
	manual := Hash(append([]fr.Element{field.FromUint64(23)}, inputs...)...)
	require.True(t, h23.Equal(&manual))
}

func TestHashPairMatchesHash(t *testing.T) {
	l := field.FromUint64(11)
	r := field.FromUint64(22)
	p := HashPair(l, r)
	h := Hash(l, r)
	require.True(t, p.Equal(&h))
}
