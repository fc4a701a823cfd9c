// node.go - In-memory node for dry runs and tests.
//
// Serves the same three queries as a real node from seeded state: logs keyed
// by siloed tag, block headers, and public-data witnesses with fixed-depth
// sibling paths.

package simulator

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"pnlprover/internal/field"
	"pnlprover/internal/node"
	"pnlprover/internal/oracle"
)

// Node is an in-memory node.Client.
type Node struct {
	mu      sync.Mutex
	logs    map[fr.Element][]node.Log
	headers map[uint64]node.BlockHeader
	prices  map[uint64]map[fr.Element]fr.Element // block -> tree index -> value
	// Calls counts RPCs by method, for assertions on query behavior.
	Calls map[string]int
}

// NewNode returns an empty in-memory node.
func NewNode() *Node {
	return &Node{
		logs:    make(map[fr.Element][]node.Log),
		headers: make(map[uint64]node.BlockHeader),
		prices:  make(map[uint64]map[fr.Element]fr.Element),
		Calls:   make(map[string]int),
	}
}

// AddLog appends a log under a siloed tag, preserving insertion order.
func (n *Node) AddLog(tag fr.Element, log node.Log) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logs[tag] = append(n.logs[tag], log)
}

// SetPrice seeds the oracle price of a token at a block and materializes the
// block header if absent.
func (n *Node) SetPrice(block uint64, oracleAddr, assetsMapSlot, token fr.Element, price *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	index := oracle.DeriveTreeIndex(oracleAddr, assetsMapSlot, token)
	if n.prices[block] == nil {
		n.prices[block] = make(map[fr.Element]fr.Element)
	}
	n.prices[block][index] = field.FromBig(price)
	if _, ok := n.headers[block]; !ok {
		n.headers[block] = node.BlockHeader{
			BlockNumber: block,
			Partial: node.PartialState{
				PublicDataTree: node.TreeSnapshot{Root: field.FromUint64(block), NextAvailableLeafIndex: 1},
			},
		}
	}
}

// GetLogsByTags implements node.Client.
func (n *Node) GetLogsByTags(ctx context.Context, tags []fr.Element) ([][]node.Log, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls["getLogsByTags"]++
	out := make([][]node.Log, len(tags))
	for i, tag := range tags {
		out[i] = append(out[i], n.logs[tag]...)
	}
	return out, nil
}

// GetBlockHeader implements node.Client.
func (n *Node) GetBlockHeader(ctx context.Context, block uint64) (*node.BlockHeader, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls["getBlockHeader"]++
	h, ok := n.headers[block]
	if !ok {
		return nil, fmt.Errorf("simulator: no header for block %d", block)
	}
	return &h, nil
}

// GetPublicDataWitness implements node.Client.
func (n *Node) GetPublicDataWitness(ctx context.Context, block uint64, index fr.Element) (*node.PublicDataWitness, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls["getPublicDataWitness"]++
	value, ok := n.prices[block][index]
	if !ok {
		return nil, fmt.Errorf("simulator: no public data at block %d", block)
	}
	return &node.PublicDataWitness{
		Preimage:    node.LeafPreimage{Slot: index, Value: value},
		Index:       0,
		SiblingPath: make([]fr.Element, node.PublicDataTreeDepth),
	}, nil
}
