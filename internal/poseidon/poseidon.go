// poseidon.go - Poseidon2 hashing over the BN254 scalar field.
//
// Thin wrapper around gnark-crypto's poseidon2 Merkle-Damgard hasher. One
// Write per field element, canonical 32-byte big-endian encoding, so the
// host side reproduces the in-circuit sponge bit for bit.

package poseidon

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Hash absorbs the given field elements and returns the digest as a field
// element.
func Hash(inputs ...fr.Element) fr.Element {
	h := poseidon2.NewMerkleDamgardHasher()
	for i := range inputs {
		b := inputs[i].Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// HashWithSeparator hashes the inputs under a 32-bit domain separator. The
// separator is absorbed as the leading field element, so the result equals
// Hash(separator, inputs...) and distinct separators give distinct preimages.
func HashWithSeparator(separator uint32, inputs []fr.Element) fr.Element {
	all := make([]fr.Element, 0, len(inputs)+1)
	var sep fr.Element
	sep.SetUint64(uint64(separator))
	all = append(all, sep)
	all = append(all, inputs...)
	return Hash(all...)
}

// HashPair combines two nodes of a Merkle tree.
func HashPair(left, right fr.Element) fr.Element {
	return Hash(left, right)
}
