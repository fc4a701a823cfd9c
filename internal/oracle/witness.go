// witness.go - Oracle price witnesses against the public-data tree.
//
// The oracle contract stores per-asset prices in a storage map. The map slot
// for a token is derived by hashing, then siloed by the oracle address under
// the public-leaf-index separator; the node resolves that index to an
// indexed-tree membership witness at the requested block.

package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"pnlprover/internal/node"
	"pnlprover/internal/poseidon"
)

// LeafIndexSeparator is the domain separator siloing a storage slot by its
// owning contract into a public-data-tree leaf index.
const LeafIndexSeparator = 23

// ErrWitnessUnavailable reports that the node could not produce a witness
// for the derived index at the requested block.
var ErrWitnessUnavailable = errors.New("oracle: public data witness unavailable")

// DeriveTreeIndex maps (oracle, assetsMapSlot, token) to the public-data-tree
// leaf index holding the token's price.
func DeriveTreeIndex(oracleAddr, assetsMapSlot, token fr.Element) fr.Element {
	derivedSlot := poseidon.Hash(assetsMapSlot, token)
	return poseidon.HashWithSeparator(LeafIndexSeparator, []fr.Element{oracleAddr, derivedSlot})
}

// Assembler fetches oracle price witnesses through a node client.
type Assembler struct {
	node node.Client
}

// NewAssembler builds an assembler over a node client.
func NewAssembler(n node.Client) *Assembler {
	return &Assembler{node: n}
}

// PriceWitness returns the membership witness for a token's oracle price at
// a block, along with the price itself as a non-negative integer.
func (a *Assembler) PriceWitness(ctx context.Context, oracleAddr, assetsMapSlot, token fr.Element, block uint64) (*node.PublicDataWitness, *big.Int, error) {
	index := DeriveTreeIndex(oracleAddr, assetsMapSlot, token)
	w, err := a.node.GetPublicDataWitness(ctx, block, index)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: block %d: %v", ErrWitnessUnavailable, block, err)
	}
	price := w.Preimage.Value.BigInt(new(big.Int))
	return w, price, nil
}
