// tree.go - The lot-state tree: per-token FIFO acquisition lots under a
// fixed-height sparse Merkle tree.
//
// Leaf i is zero until slot i's lot queue is first written, and afterwards
// hashes the owning token, the live lot count, and all 32 lot slots (amount,
// cost each) - a fixed 66-element preimage no matter how many lots are live,
// so a drained queue still hashes. Slots are bound to tokens on first touch
// and never move; binding a slot alone leaves its leaf and the root unchanged. The tree is owned by one
// aggregation run and mutated in place between swaps.

package lotstate

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"pnlprover/internal/field"
	"pnlprover/internal/poseidon"
)

const (
	// TreeHeight is the height of the lot-state tree.
	TreeHeight = 3
	// NumSlots is the leaf count: one tracked token per leaf.
	NumSlots = 1 << TreeHeight
	// MaxLots bounds the FIFO lot queue per token.
	MaxLots = 32
	// LeafPreimageLen is the fixed hash preimage length of an assigned leaf.
	LeafPreimageLen = 2 + 2*MaxLots
)

// ErrTreeFull is returned when a 9th distinct token shows up.
var ErrTreeFull = errors.New("lotstate: all token slots assigned")

// Lot is one acquisition record: an amount still held and the oracle price
// it was acquired at. An empty lot has both fields zero.
type Lot struct {
	Amount *big.Int `json:"amount"`
	Cost   *big.Int `json:"cost"`
}

// NewLot builds a lot, copying the inputs.
func NewLot(amount, cost *big.Int) Lot {
	return Lot{Amount: new(big.Int).Set(amount), Cost: new(big.Int).Set(cost)}
}

// IsEmpty reports whether the lot holds nothing.
func (l Lot) IsEmpty() bool {
	return l.Amount == nil || l.Amount.Sign() == 0
}

func lotField(v *big.Int) fr.Element {
	if v == nil {
		return fr.Element{}
	}
	return field.FromBig(v)
}

// Tree tracks up to NumSlots tokens' lot queues and their Merkle commitment.
type Tree struct {
	slots    map[fr.Element]int
	tokens   [NumSlots]fr.Element
	lots     [NumSlots][]Lot
	assigned int
}

// New returns an empty lot-state tree: every leaf zero.
func New() *Tree {
	return &Tree{slots: make(map[fr.Element]int)}
}

// Assign returns the slot bound to token, claiming the lowest free slot on
// first touch. Fails with ErrTreeFull once all slots are taken.
func (t *Tree) Assign(token fr.Element) (int, error) {
	if slot, ok := t.slots[token]; ok {
		return slot, nil
	}
	if t.assigned == NumSlots {
		return 0, ErrTreeFull
	}
	slot := t.assigned
	t.assigned++
	t.slots[token] = slot
	t.tokens[slot] = token
	return slot, nil
}

// Slot returns the slot bound to token, or -1 when the token has not been
// assigned yet.
func (t *Tree) Slot(token fr.Element) int {
	if slot, ok := t.slots[token]; ok {
		return slot
	}
	return -1
}

// Lots returns the token's lot queue padded with empty lots to MaxLots, the
// live lot count, and the token's slot (-1 when unassigned).
func (t *Tree) Lots(token fr.Element) ([MaxLots]Lot, int, int) {
	var padded [MaxLots]Lot
	for i := range padded {
		padded[i] = Lot{Amount: new(big.Int), Cost: new(big.Int)}
	}
	slot, ok := t.slots[token]
	if !ok {
		return padded, 0, -1
	}
	live := t.lots[slot]
	for i, l := range live {
		padded[i] = NewLot(l.Amount, l.Cost)
	}
	return padded, len(live), slot
}

// SetLots replaces the token's lot queue, assigning a slot if needed. The
// queue must already be compacted: live lots only, no empty entries.
func (t *Tree) SetLots(token fr.Element, lots []Lot) error {
	if len(lots) > MaxLots {
		return fmt.Errorf("lotstate: %d lots exceed the %d-lot bound", len(lots), MaxLots)
	}
	for i, l := range lots {
		if l.IsEmpty() {
			return fmt.Errorf("lotstate: empty lot at position %d of a compacted queue", i)
		}
	}
	slot, err := t.Assign(token)
	if err != nil {
		return err
	}
	cp := make([]Lot, len(lots))
	for i, l := range lots {
		cp[i] = NewLot(l.Amount, l.Cost)
	}
	t.lots[slot] = cp
	return nil
}

// HashLots computes an assigned leaf's hash: the fixed 66-element preimage
// over token, live count, and every lot slot.
func HashLots(token fr.Element, numLots int, lots []Lot) fr.Element {
	preimage := make([]fr.Element, 0, LeafPreimageLen)
	preimage = append(preimage, token, field.FromUint64(uint64(numLots)))
	for i := 0; i < MaxLots; i++ {
		if i < len(lots) {
			preimage = append(preimage, lotField(lots[i].Amount), lotField(lots[i].Cost))
		} else {
			preimage = append(preimage, fr.Element{}, fr.Element{})
		}
	}
	return poseidon.Hash(preimage...)
}

func (t *Tree) leaf(slot int) fr.Element {
	if slot >= t.assigned || t.lots[slot] == nil {
		return fr.Element{}
	}
	return HashLots(t.tokens[slot], len(t.lots[slot]), t.lots[slot])
}

// levels materializes the tree bottom-up: levels[0] is the leaf row.
func (t *Tree) levels() [][]fr.Element {
	rows := make([][]fr.Element, TreeHeight+1)
	rows[0] = make([]fr.Element, NumSlots)
	for i := 0; i < NumSlots; i++ {
		rows[0][i] = t.leaf(i)
	}
	for h := 1; h <= TreeHeight; h++ {
		rows[h] = make([]fr.Element, len(rows[h-1])/2)
		for i := range rows[h] {
			rows[h][i] = poseidon.HashPair(rows[h-1][2*i], rows[h-1][2*i+1])
		}
	}
	return rows
}

// Root returns the Merkle root over the current leaves.
func (t *Tree) Root() fr.Element {
	return t.levels()[TreeHeight][0]
}

// SiblingPath returns the bottom-up sibling path of a slot against the
// current leaves.
func (t *Tree) SiblingPath(slot int) ([TreeHeight]fr.Element, error) {
	var path [TreeHeight]fr.Element
	if slot < 0 || slot >= NumSlots {
		return path, fmt.Errorf("lotstate: slot %d out of range", slot)
	}
	rows := t.levels()
	idx := slot
	for h := 0; h < TreeHeight; h++ {
		path[h] = rows[h][idx^1]
		idx >>= 1
	}
	return path, nil
}
