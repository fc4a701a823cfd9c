// tagging.go - Tagging secrets and the two-step tag derivation.
//
// A recipient discovers their encrypted logs by recomputing the tags the
// sender attached: the base tag is H(secret, index), and the node only
// indexes the app-siloed form H(app, baseTag). Both steps are mandatory -
// querying base tags directly matches nothing.

package tagging

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"pnlprover/internal/field"
	"pnlprover/internal/poseidon"
)

// Direction says whether a secret tags logs sent to us or by us.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// TaggingSecret is one entry of a recipient's tag index. Only Secret and App
// feed the tag derivation; the remaining fields are metadata preserved for
// the caller.
type TaggingSecret struct {
	Secret       fr.Element `json:"secret"`
	App          fr.Element `json:"app"`
	Counterparty fr.Element `json:"counterparty"`
	Direction    Direction  `json:"direction"`
	Label        string     `json:"label,omitempty"`
}

// BaseTag computes the unsiloed tag at a window index.
func (ts TaggingSecret) BaseTag(index uint64) fr.Element {
	return poseidon.Hash(ts.Secret, field.FromUint64(index))
}

// SiloedTag computes the app-siloed tag at a window index. This is the only
// form the node indexes.
func (ts TaggingSecret) SiloedTag(index uint64) fr.Element {
	return poseidon.Hash(ts.App, ts.BaseTag(index))
}
