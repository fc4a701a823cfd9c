// outputs.go - The six-field public-output shape shared by swap and summary
// proofs, and the assertion taxonomy mirrored from the circuits.

package swap

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// NumPublicOutputs is the public-output arity of both the individual swap
// circuit and the summary combinator.
const NumPublicOutputs = 6

// Outputs is the ordered public-output tuple. For an individual swap,
// RootOrLeaf is the ciphertext leaf hash; for a summary it is a Merkle
// combination of the children. PnL carries the two's-complement i64
// encoding.
type Outputs struct {
	RootOrLeaf            fr.Element `json:"rootOrLeaf"`
	PnL                   fr.Element `json:"pnl"`
	RemainingLotStateRoot fr.Element `json:"remainingLotStateRoot"`
	InitialLotStateRoot   fr.Element `json:"initialLotStateRoot"`
	PriceFeedAddress      fr.Element `json:"priceFeedAddress"`
	BlockNumber           fr.Element `json:"blockNumber"`
}

// Slice returns the outputs in declaration order.
func (o Outputs) Slice() []fr.Element {
	return []fr.Element{o.RootOrLeaf, o.PnL, o.RemainingLotStateRoot, o.InitialLotStateRoot, o.PriceFeedAddress, o.BlockNumber}
}

// OutputsFromSlice parses a circuit's return values into the tuple.
func OutputsFromSlice(values []fr.Element) (Outputs, error) {
	if len(values) != NumPublicOutputs {
		return Outputs{}, fmt.Errorf("swap: got %d public outputs, want %d", len(values), NumPublicOutputs)
	}
	return Outputs{
		RootOrLeaf:            values[0],
		PnL:                   values[1],
		RemainingLotStateRoot: values[2],
		InitialLotStateRoot:   values[3],
		PriceFeedAddress:      values[4],
		BlockNumber:           values[5],
	}, nil
}

// Equal compares two output tuples field by field.
func (o Outputs) Equal(other Outputs) bool {
	return o.RootOrLeaf.Equal(&other.RootOrLeaf) &&
		o.PnL.Equal(&other.PnL) &&
		o.RemainingLotStateRoot.Equal(&other.RemainingLotStateRoot) &&
		o.InitialLotStateRoot.Equal(&other.InitialLotStateRoot) &&
		o.PriceFeedAddress.Equal(&other.PriceFeedAddress) &&
		o.BlockNumber.Equal(&other.BlockNumber)
}

// AssertionKind names an inter-proof invariant mirrored from the circuits.
type AssertionKind string

const (
	AssertChronology  AssertionKind = "chronology"
	AssertOracle      AssertionKind = "oracle"
	AssertFIFO        AssertionKind = "fifo-under-consumption"
	AssertRootChain   AssertionKind = "lot-root-chain"
	AssertVerifierKey AssertionKind = "verifier-key"
)

// AssertionError reports a violated invariant. These are fatal: the batch
// cannot be proven as presented.
type AssertionError struct {
	Kind AssertionKind
	Msg  string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion violated (%s): %s", e.Kind, e.Msg)
}
