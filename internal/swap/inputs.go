// inputs.go - The typed circuit-input record for one swap proof.
//
// Fixed-length arrays everywhere the circuit expects them: lot queues padded
// to MaxLots, lot-tree sibling paths of length TreeHeight, public-data paths
// of the node's tree depth. Serialization to the prover's wire format
// happens only at the backend boundary.

package swap

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	fr_grumpkin "github.com/consensys/gnark-crypto/ecc/grumpkin/fr"

	"pnlprover/internal/encryption"
	"pnlprover/internal/lotstate"
	"pnlprover/internal/node"
)

// PriceWitnessInput is one formatted oracle price witness.
type PriceWitnessInput struct {
	Preimage    node.LeafPreimage `json:"leafPreimage"`
	Index       uint64            `json:"index"`
	SiblingPath []fr.Element      `json:"siblingPath"`
}

// CircuitInputs is the full input record of the individual swap circuit.
type CircuitInputs struct {
	Plaintext        [encryption.NumPlaintextFields]fr.Element `json:"plaintext"`
	CiphertextFields []fr.Element                              `json:"ciphertextFields"`
	ViewingSecret    fr_grumpkin.Element                       `json:"viewingSecret"`
	BlockNumber      uint64                                    `json:"blockNumber"`

	InitialLotStateRoot fr.Element `json:"initialLotStateRoot"`

	SellLots    [lotstate.MaxLots]lotstate.Lot    `json:"sellLots"`
	SellNumLots int                               `json:"sellNumLots"`
	SellSlot    int                               `json:"sellSlot"`
	SiblingSell [lotstate.TreeHeight]fr.Element   `json:"siblingSell"`
	BuyLots     [lotstate.MaxLots]lotstate.Lot    `json:"buyLots"`
	BuyNumLots  int                               `json:"buyNumLots"`
	BuySlot     int                               `json:"buySlot"`
	SiblingBuy  [lotstate.TreeHeight]fr.Element   `json:"siblingBuy"`

	PriceFeedAddress   fr.Element        `json:"priceFeedAddress"`
	AssetsMapSlot      fr.Element        `json:"assetsMapSlot"`
	PublicDataTreeRoot fr.Element        `json:"publicDataTreeRoot"`
	SellPriceWitness   PriceWitnessInput `json:"sellPriceWitness"`
	BuyPriceWitness    PriceWitnessInput `json:"buyPriceWitness"`

	PreviousBlockNumber uint64 `json:"previousBlockNumber"`
}
