// types.go - Wire types returned by the network node.
//
// The node indexes encrypted logs by siloed tag and exposes snapshots of its
// world-state trees per block. Only the fields the prover pipeline consumes
// are modeled here.

package node

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// PublicDataTreeDepth is the depth of the node's indexed public-data tree;
// sibling paths returned by GetPublicDataWitness have exactly this length.
const PublicDataTreeDepth = 40

// Log is one encrypted log hit for a siloed tag. Data is the raw ciphertext
// buffer, 32-byte tag prefix included.
type Log struct {
	Data        []byte `json:"data"`
	BlockNumber uint64 `json:"blockNumber"`
}

// TreeSnapshot is the root and next free leaf index of an append-only tree
// at a given block.
type TreeSnapshot struct {
	Root                   fr.Element `json:"root"`
	NextAvailableLeafIndex uint64     `json:"nextAvailableLeafIndex"`
}

// PartialState groups the tree snapshots carried by a block header.
type PartialState struct {
	NoteHashTree   TreeSnapshot `json:"noteHashTree"`
	NullifierTree  TreeSnapshot `json:"nullifierTree"`
	PublicDataTree TreeSnapshot `json:"publicDataTree"`
}

// BlockHeader is the subset of a block header the pipeline reads.
type BlockHeader struct {
	BlockNumber uint64       `json:"blockNumber"`
	Partial     PartialState `json:"partial"`
}

// LeafPreimage is the preimage of an indexed-tree leaf: the slot, its value,
// and the link to the next occupied slot. Membership and non-membership
// witnesses share this shape.
type LeafPreimage struct {
	Slot      fr.Element `json:"slot"`
	Value     fr.Element `json:"value"`
	NextSlot  fr.Element `json:"nextSlot"`
	NextIndex uint64     `json:"nextIndex"`
}

// PublicDataWitness is a membership artifact for one leaf of the public-data
// tree at a specific block.
type PublicDataWitness struct {
	Preimage    LeafPreimage `json:"leafPreimage"`
	Index       uint64       `json:"index"`
	SiblingPath []fr.Element `json:"siblingPath"`
}
