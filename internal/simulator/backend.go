// backend.go - Simulated proving backends.
//
// Re-executes the swap and summary circuit semantics in plain Go from the
// circuit-input records alone, independently of the host mirror that built
// them. Useful for dry runs (estimate a batch's PnL without a prover) and
// as the backend in tests. Proofs are witness digests tracked per backend;
// verification only accepts proofs this backend generated.

package simulator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"pnlprover/internal/aggregate"
	"pnlprover/internal/field"
	"pnlprover/internal/lotstate"
	"pnlprover/internal/poseidon"
	"pnlprover/internal/prover"
	"pnlprover/internal/swap"
)

// backendCore implements the proof bookkeeping shared by both simulated
// circuits.
type backendCore struct {
	name string

	mu     sync.Mutex
	proofs map[[32]byte][]fr.Element // proof digest -> public inputs
}

func newBackendCore(name string) backendCore {
	return backendCore{name: name, proofs: make(map[[32]byte][]fr.Element)}
}

func (b *backendCore) generate(witness []byte) (*prover.Proof, error) {
	var w simWitness
	if err := json.Unmarshal(witness, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", prover.ErrGenerateFailed, err)
	}
	digest := sha256.Sum256(witness)
	b.mu.Lock()
	b.proofs[digest] = w.Outputs
	b.mu.Unlock()
	return &prover.Proof{Proof: digest[:], PublicInputs: w.Outputs}, nil
}

func (b *backendCore) verify(p *prover.Proof) bool {
	if len(p.Proof) != sha256.Size {
		return false
	}
	var digest [32]byte
	copy(digest[:], p.Proof)
	b.mu.Lock()
	outputs, ok := b.proofs[digest]
	b.mu.Unlock()
	if !ok || len(outputs) != len(p.PublicInputs) {
		return false
	}
	for i := range outputs {
		if !outputs[i].Equal(&p.PublicInputs[i]) {
			return false
		}
	}
	return true
}

func (b *backendCore) artifacts() *prover.RecursiveArtifacts {
	sum := sha256.Sum256([]byte(b.name))
	vkFields := []fr.Element{field.FromBytes(sum[:16]), field.FromBytes(sum[16:])}
	return &prover.RecursiveArtifacts{VKAsFields: vkFields, VKHash: poseidon.Hash(vkFields...)}
}

// simWitness is the serialized witness both simulated circuits produce.
type simWitness struct {
	Inputs  json.RawMessage `json:"inputs"`
	Outputs []fr.Element    `json:"outputs"`
}

func marshalWitness(inputs any, outputs []fr.Element) ([]byte, []fr.Element, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", prover.ErrExecuteFailed, err)
	}
	w, err := json.Marshal(simWitness{Inputs: raw, Outputs: outputs})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", prover.ErrExecuteFailed, err)
	}
	return w, outputs, nil
}

// SwapBackend simulates the individual swap circuit.
type SwapBackend struct {
	backendCore
}

// NewSwapBackend returns a fresh swap-circuit simulator.
func NewSwapBackend() *SwapBackend {
	return &SwapBackend{backendCore: newBackendCore("swap")}
}

// Execute implements prover.Backend by re-running the swap state transition
// from the input record.
func (b *SwapBackend) Execute(ctx context.Context, inputs any) ([]byte, []fr.Element, error) {
	in, ok := inputs.(*swap.CircuitInputs)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unexpected input record %T", prover.ErrExecuteFailed, inputs)
	}
	outputs, err := executeSwap(in)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", prover.ErrExecuteFailed, err)
	}
	return marshalWitness(in, outputs)
}

// GenerateProof implements prover.Backend.
func (b *SwapBackend) GenerateProof(ctx context.Context, witness []byte, target prover.VerifierTarget) (*prover.Proof, error) {
	return b.generate(witness)
}

// VerifyProof implements prover.Backend.
func (b *SwapBackend) VerifyProof(ctx context.Context, p *prover.Proof, target prover.VerifierTarget) (bool, error) {
	return b.verify(p), nil
}

// RecursiveArtifacts implements prover.Backend.
func (b *SwapBackend) RecursiveArtifacts(ctx context.Context, p *prover.Proof, numPublicInputs int) (*prover.RecursiveArtifacts, error) {
	if len(p.PublicInputs) != numPublicInputs {
		return nil, fmt.Errorf("simulator: proof has %d public inputs, want %d", len(p.PublicInputs), numPublicInputs)
	}
	return b.artifacts(), nil
}

// executeSwap mirrors the swap circuit: verify the sell-side Merkle opening
// against the initial root, apply FIFO consumption and the buy-side append,
// and fold the updated leaves back up to the remaining root.
func executeSwap(in *swap.CircuitInputs) ([]fr.Element, error) {
	if in.BlockNumber < in.PreviousBlockNumber {
		return nil, fmt.Errorf("block %d precedes previous block %d", in.BlockNumber, in.PreviousBlockNumber)
	}
	tokenIn := in.Plaintext[2]
	tokenOut := in.Plaintext[3]
	amountIn := in.Plaintext[4].BigInt(new(big.Int))
	amountOut := in.Plaintext[5].BigInt(new(big.Int))
	sellPrice := in.SellPriceWitness.Preimage.Value.BigInt(new(big.Int))
	buyPrice := in.BuyPriceWitness.Preimage.Value.BigInt(new(big.Int))

	sellLots := in.SellLots[:in.SellNumLots]
	oldSellLeaf := lotstate.HashLots(tokenIn, len(sellLots), sellLots)
	if root := foldPath(oldSellLeaf, in.SiblingSell[:], in.SellSlot); !root.Equal(&in.InitialLotStateRoot) {
		return nil, fmt.Errorf("sell-side opening does not match initial lot-state root")
	}

	remaining := new(big.Int).Set(amountIn)
	pnl := new(big.Int)
	var kept []lotstate.Lot
	for _, lot := range sellLots {
		if remaining.Sign() == 0 {
			kept = append(kept, lot)
			continue
		}
		consumed := new(big.Int).Set(remaining)
		if lot.Amount.Cmp(consumed) < 0 {
			consumed.Set(lot.Amount)
		}
		pnl.Add(pnl, new(big.Int).Mul(consumed, new(big.Int).Sub(sellPrice, lot.Cost)))
		remaining.Sub(remaining, consumed)
		if left := new(big.Int).Sub(lot.Amount, consumed); left.Sign() > 0 {
			kept = append(kept, lotstate.Lot{Amount: left, Cost: lot.Cost})
		}
	}
	if remaining.Sign() != 0 {
		return nil, fmt.Errorf("sell amount exceeds tracked lots")
	}
	if !pnl.IsInt64() {
		return nil, fmt.Errorf("pnl overflows signed 64 bits")
	}

	newSellLeaf := lotstate.HashLots(tokenIn, len(kept), kept)
	_ = foldPath(newSellLeaf, in.SiblingSell[:], in.SellSlot) // intermediate root, implicit

	buyLots := append([]lotstate.Lot{}, in.BuyLots[:in.BuyNumLots]...)
	buyLots = append(buyLots, lotstate.Lot{Amount: amountOut, Cost: buyPrice})
	newBuyLeaf := lotstate.HashLots(tokenOut, len(buyLots), buyLots)
	remainingRoot := foldPath(newBuyLeaf, in.SiblingBuy[:], in.BuySlot)

	leaf := poseidon.HashWithSeparator(0, in.CiphertextFields)
	return []fr.Element{
		leaf,
		field.EncodeI64(pnl.Int64()),
		remainingRoot,
		in.InitialLotStateRoot,
		in.PriceFeedAddress,
		field.FromUint64(in.BlockNumber),
	}, nil
}

func foldPath(leaf fr.Element, siblings []fr.Element, index int) fr.Element {
	cur := leaf
	for _, sib := range siblings {
		if index&1 == 1 {
			cur = poseidon.HashPair(sib, cur)
		} else {
			cur = poseidon.HashPair(cur, sib)
		}
		index >>= 1
	}
	return cur
}

// SummaryBackend simulates the summary combinator circuit.
type SummaryBackend struct {
	backendCore
}

// NewSummaryBackend returns a fresh summary-circuit simulator.
func NewSummaryBackend() *SummaryBackend {
	return &SummaryBackend{backendCore: newBackendCore("swap_summary")}
}

// Execute implements prover.Backend.
func (b *SummaryBackend) Execute(ctx context.Context, inputs any) ([]byte, []fr.Element, error) {
	in, ok := inputs.(*aggregate.SummaryInputs)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unexpected input record %T", prover.ErrExecuteFailed, inputs)
	}
	outputs, err := executeSummary(in)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", prover.ErrExecuteFailed, err)
	}
	return marshalWitness(in, outputs)
}

// GenerateProof implements prover.Backend.
func (b *SummaryBackend) GenerateProof(ctx context.Context, witness []byte, target prover.VerifierTarget) (*prover.Proof, error) {
	return b.generate(witness)
}

// VerifyProof implements prover.Backend.
func (b *SummaryBackend) VerifyProof(ctx context.Context, p *prover.Proof, target prover.VerifierTarget) (bool, error) {
	return b.verify(p), nil
}

// RecursiveArtifacts implements prover.Backend.
func (b *SummaryBackend) RecursiveArtifacts(ctx context.Context, p *prover.Proof, numPublicInputs int) (*prover.RecursiveArtifacts, error) {
	if len(p.PublicInputs) != numPublicInputs {
		return nil, fmt.Errorf("simulator: proof has %d public inputs, want %d", len(p.PublicInputs), numPublicInputs)
	}
	return b.artifacts(), nil
}

// executeSummary mirrors the combinator: enforce chaining, chronology and
// oracle identity when a right child is present, then fold the pair.
func executeSummary(in *aggregate.SummaryInputs) ([]fr.Element, error) {
	left := in.Left.Outputs
	rightRoot := in.RightPad
	remaining := left.RemainingLotStateRoot
	blockMax := left.BlockNumber
	pnlLeft, err := field.DecodeI64(left.PnL)
	if err != nil {
		return nil, err
	}
	pnl := pnlLeft

	if in.Right != nil {
		right := in.Right.Outputs
		if !left.RemainingLotStateRoot.Equal(&right.InitialLotStateRoot) {
			return nil, fmt.Errorf("lot-state roots do not chain")
		}
		lb := left.BlockNumber.BigInt(new(big.Int))
		rb := right.BlockNumber.BigInt(new(big.Int))
		if lb.Cmp(rb) > 0 {
			return nil, fmt.Errorf("children out of chronological order")
		}
		if !left.PriceFeedAddress.Equal(&right.PriceFeedAddress) {
			return nil, fmt.Errorf("children disagree on price feed")
		}
		pnlRight, err := field.DecodeI64(right.PnL)
		if err != nil {
			return nil, err
		}
		pnl = pnlLeft + pnlRight
		rightRoot = right.RootOrLeaf
		remaining = right.RemainingLotStateRoot
		blockMax = right.BlockNumber
	}

	return []fr.Element{
		poseidon.HashPair(left.RootOrLeaf, rightRoot),
		field.EncodeI64(pnl),
		remaining,
		left.InitialLotStateRoot,
		left.PriceFeedAddress,
		blockMax,
	}, nil
}
