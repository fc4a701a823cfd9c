// driver.go - End-to-end proving of one swap event.
//
// Per event: decrypt, mirror the circuit's lot-state transition (sell side
// then buy side), assemble the witness against oracle-backed public data,
// drive the prover, and cross-check the returned public outputs against the
// host mirror before handing the artifact to the aggregator.

package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"

	"pnlprover/internal/encryption"
	"pnlprover/internal/field"
	"pnlprover/internal/lotstate"
	"pnlprover/internal/merkle"
	"pnlprover/internal/node"
	"pnlprover/internal/oracle"
	"pnlprover/internal/prover"
)

// Plaintext field positions the driver extracts. Positions 0 and 1 are
// event-type metadata the circuit checks but the host ignores.
const (
	ptTokenIn      = 2
	ptTokenOut     = 3
	ptAmountIn     = 4
	ptAmountOut    = 5
	ptIsExactInput = 6
)

// SwapData is the host mirror's view of one proven swap, kept alongside the
// proof for cross-checks and reporting.
type SwapData struct {
	TokenIn     fr.Element
	TokenOut    fr.Element
	AmountIn    *big.Int
	AmountOut   *big.Int
	SellPrice   *big.Int
	BuyPrice    *big.Int
	PnL         int64
	BlockNumber uint64
}

// Artifact is one proven swap: the recursive-targeted proof, its six public
// outputs, and the mirrored swap data.
type Artifact struct {
	Proof   *prover.Proof
	Outputs Outputs
	Data    SwapData
}

// Driver proves individual swaps against a shared lot-state tree.
type Driver struct {
	node    node.Client
	backend prover.Backend
	oracle  *oracle.Assembler
	viewing *encryption.ViewingKeyPair
	log     zerolog.Logger

	// PriceFeedAddress is the oracle contract shared by the whole batch.
	PriceFeedAddress fr.Element
	// AssetsMapSlot is the oracle's asset-price storage map slot.
	AssetsMapSlot fr.Element
}

// NewDriver wires a swap driver. The viewing keypair must already be siloed
// to the AMM contract the tag scan ran against.
func NewDriver(n node.Client, backend prover.Backend, viewing *encryption.ViewingKeyPair, priceFeed, assetsMapSlot fr.Element, log zerolog.Logger) *Driver {
	return &Driver{
		node:             n,
		backend:          backend,
		oracle:           oracle.NewAssembler(n),
		viewing:          viewing,
		log:              log.With().Str("component", "swap-driver").Logger(),
		PriceFeedAddress: priceFeed,
		AssetsMapSlot:    assetsMapSlot,
	}
}

// ProveSwap proves one swap event end to end. The lot-state tree is mutated
// in place; on success it is left at the proof's remaining root, ready for
// the next event in the chain.
func (d *Driver) ProveSwap(ctx context.Context, ciphertext []byte, blockNumber uint64, tree *lotstate.Tree, previousBlockNumber uint64) (*Artifact, error) {
	_, body, err := encryption.SplitTagBody(ciphertext)
	if err != nil {
		return nil, err
	}
	plaintext, err := encryption.Decrypt(body, d.viewing.Secret)
	if err != nil {
		return nil, err
	}

	tokenIn, tokenOut := plaintext[ptTokenIn], plaintext[ptTokenOut]
	amountIn, err := amountFromField(plaintext[ptAmountIn], "amount_in")
	if err != nil {
		return nil, err
	}
	amountOut, err := amountFromField(plaintext[ptAmountOut], "amount_out")
	if err != nil {
		return nil, err
	}

	if blockNumber < previousBlockNumber {
		return nil, &AssertionError{Kind: AssertChronology,
			Msg: fmt.Sprintf("swap at block %d precedes previous block %d", blockNumber, previousBlockNumber)}
	}

	sellSlot, err := tree.Assign(tokenIn)
	if err != nil {
		return nil, err
	}
	buySlot, err := tree.Assign(tokenOut)
	if err != nil {
		return nil, err
	}

	header, err := d.node.GetBlockHeader(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("swap at block %d: %w", blockNumber, err)
	}
	sellWitness, sellPrice, err := d.oracle.PriceWitness(ctx, d.PriceFeedAddress, d.AssetsMapSlot, tokenIn, blockNumber)
	if err != nil {
		return nil, err
	}
	buyWitness, buyPrice, err := d.oracle.PriceWitness(ctx, d.PriceFeedAddress, d.AssetsMapSlot, tokenOut, blockNumber)
	if err != nil {
		return nil, err
	}
	for _, p := range []*big.Int{sellPrice, buyPrice} {
		if p.BitLen() > 128 {
			return nil, fmt.Errorf("swap: oracle price %s exceeds 128 bits", p.String())
		}
	}

	initialRoot := tree.Root()

	// Sell side: snapshot the queue and path the circuit will verify, then
	// apply the FIFO consumption and write the compacted queue back.
	sellLots, sellNumLots, _ := tree.Lots(tokenIn)
	siblingSell, err := tree.SiblingPath(sellSlot)
	if err != nil {
		return nil, err
	}
	remainingLots, pnl, err := consumeFIFO(sellLots[:sellNumLots], amountIn, sellPrice)
	if err != nil {
		return nil, err
	}
	if err := tree.SetLots(tokenIn, remainingLots); err != nil {
		return nil, err
	}

	// Buy side: snapshot after the sell-side write, append the acquisition.
	buyLots, buyNumLots, _ := tree.Lots(tokenOut)
	siblingBuy, err := tree.SiblingPath(buySlot)
	if err != nil {
		return nil, err
	}
	appended, err := appendLot(buyLots[:buyNumLots], amountOut, buyPrice)
	if err != nil {
		return nil, err
	}
	if err := tree.SetLots(tokenOut, appended); err != nil {
		return nil, err
	}
	remainingRoot := tree.Root()

	leaf := merkle.CiphertextLeaf(ciphertext)
	expected := Outputs{
		RootOrLeaf:            leaf,
		PnL:                   field.EncodeI64(pnl),
		RemainingLotStateRoot: remainingRoot,
		InitialLotStateRoot:   initialRoot,
		PriceFeedAddress:      d.PriceFeedAddress,
		BlockNumber:           field.FromUint64(blockNumber),
	}

	inputs := &CircuitInputs{
		Plaintext:           plaintext,
		CiphertextFields:    merkle.CiphertextFields(ciphertext),
		ViewingSecret:       d.viewing.Secret,
		BlockNumber:         blockNumber,
		InitialLotStateRoot: initialRoot,
		SellLots:            sellLots,
		SellNumLots:         sellNumLots,
		SellSlot:            sellSlot,
		SiblingSell:         siblingSell,
		BuyLots:             buyLots,
		BuyNumLots:          buyNumLots,
		BuySlot:             buySlot,
		SiblingBuy:          siblingBuy,
		PriceFeedAddress:    d.PriceFeedAddress,
		AssetsMapSlot:       d.AssetsMapSlot,
		PublicDataTreeRoot:  header.Partial.PublicDataTree.Root,
		SellPriceWitness:    PriceWitnessInput{Preimage: sellWitness.Preimage, Index: sellWitness.Index, SiblingPath: sellWitness.SiblingPath},
		BuyPriceWitness:     PriceWitnessInput{Preimage: buyWitness.Preimage, Index: buyWitness.Index, SiblingPath: buyWitness.SiblingPath},
		PreviousBlockNumber: previousBlockNumber,
	}

	witness, returnValues, err := d.backend.Execute(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("swap at block %d: %w", blockNumber, err)
	}
	got, err := OutputsFromSlice(returnValues)
	if err != nil {
		return nil, err
	}
	if !got.Equal(expected) {
		return nil, fmt.Errorf("swap at block %d: circuit outputs diverge from host mirror", blockNumber)
	}

	proof, err := d.backend.GenerateProof(ctx, witness, prover.TargetRecursive)
	if err != nil {
		return nil, fmt.Errorf("swap at block %d: %w", blockNumber, err)
	}
	ok, err := d.backend.VerifyProof(ctx, proof, prover.TargetRecursive)
	if err != nil {
		return nil, fmt.Errorf("swap at block %d: %w", blockNumber, err)
	}
	if !ok {
		return nil, fmt.Errorf("swap at block %d: %w", blockNumber, prover.ErrVerifyFailed)
	}

	d.log.Debug().Uint64("block", blockNumber).Int64("pnl", pnl).Msg("swap proven")
	return &Artifact{
		Proof:   proof,
		Outputs: got,
		Data: SwapData{
			TokenIn:     tokenIn,
			TokenOut:    tokenOut,
			AmountIn:    amountIn,
			AmountOut:   amountOut,
			SellPrice:   sellPrice,
			BuyPrice:    buyPrice,
			PnL:         pnl,
			BlockNumber: blockNumber,
		},
	}, nil
}

// amountFromField extracts a u128-bounded amount from a plaintext field.
func amountFromField(e fr.Element, name string) (*big.Int, error) {
	v := e.BigInt(new(big.Int))
	if v.BitLen() > 128 {
		return nil, fmt.Errorf("swap: %s %s exceeds 128 bits", name, v.String())
	}
	return v, nil
}
