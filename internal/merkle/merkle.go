// merkle.go - Incremental Merkle tree helpers and the zero-hash cache.
//
// Used for the ciphertext-root attestation and for padding odd arities in
// the recursive aggregation tree. All hashing is Poseidon2 pair hashing;
// missing leaves are zero.

package merkle

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"pnlprover/internal/field"
	"pnlprover/internal/poseidon"
)

// CiphertextLeafSeparator is the domain separator under which a ciphertext's
// field decomposition is hashed into its Merkle leaf.
const CiphertextLeafSeparator = 0

// MaxZeroHashDepth bounds the precomputed zero-hash ladder. Depth 20 covers
// aggregation trees of up to ~a million swaps.
const MaxZeroHashDepth = 20

var (
	zeroOnce   sync.Once
	zeroHashes []fr.Element
)

// ZeroHash returns the zero hash at the given level: zero at level 0, and
// H(z[l-1], z[l-1]) above. The ladder is computed once and shared.
func ZeroHash(level int) fr.Element {
	zeroOnce.Do(func() {
		zeroHashes = make([]fr.Element, MaxZeroHashDepth+1)
		for l := 1; l <= MaxZeroHashDepth; l++ {
			zeroHashes[l] = poseidon.HashPair(zeroHashes[l-1], zeroHashes[l-1])
		}
	})
	return zeroHashes[level]
}

// Root pair-hashes the leaves into a Merkle root, padding with zero leaves to
// the next power of two. An empty leaf set has root zero.
func Root(leaves []fr.Element) fr.Element {
	if len(leaves) == 0 {
		return fr.Element{}
	}
	level := make([]fr.Element, nextPowerOfTwo(len(leaves)))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]fr.Element, len(level)/2)
		for i := range next {
			next[i] = poseidon.HashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

// CiphertextFields re-interprets a raw ciphertext buffer (tag prefix
// included) as 32-byte big-endian field elements.
func CiphertextFields(ciphertext []byte) []fr.Element {
	return field.ToFields32(ciphertext)
}

// CiphertextLeaf hashes a ciphertext buffer into the leaf the swap circuit
// exposes as its first public output.
func CiphertextLeaf(ciphertext []byte) fr.Element {
	return poseidon.HashWithSeparator(CiphertextLeafSeparator, CiphertextFields(ciphertext))
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
