// prover.go - The proving-backend surface the pipeline drives.
//
// The swap and summary circuits are external collaborators; the pipeline
// only needs four operations from whatever proves them: witness execution,
// proof generation, verification, and recursive-verifier artifact
// extraction. Implementations may run in process (gnark.go) or remotely.

package prover

import (
	"context"
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// VerifierTarget selects the verifier a proof is generated for.
type VerifierTarget int

const (
	// TargetFinal proofs are checked once, outside any circuit.
	TargetFinal VerifierTarget = iota
	// TargetRecursive proofs are consumed by the summary combinator.
	TargetRecursive
)

// Backend errors, wrapped with call context by users.
var (
	ErrExecuteFailed  = errors.New("prover: witness execution failed")
	ErrGenerateFailed = errors.New("prover: proof generation failed")
	ErrVerifyFailed   = errors.New("prover: proof verification failed")
)

// Proof is an opaque proof together with its public inputs in declaration
// order.
type Proof struct {
	Proof        []byte       `json:"proof"`
	PublicInputs []fr.Element `json:"publicInputs"`
}

// RecursiveArtifacts are the verifier-key fields and their hash, as the
// summary combinator consumes them.
type RecursiveArtifacts struct {
	VKAsFields []fr.Element `json:"vkAsFields"`
	VKHash     fr.Element   `json:"vkHash"`
}

// Backend proves one circuit. Calls are atomic with respect to cancellation:
// a context checked before the call starts is not re-checked mid-proof.
type Backend interface {
	// Execute runs the circuit on the given inputs and returns the witness
	// and the circuit's declared public outputs.
	Execute(ctx context.Context, inputs any) (witness []byte, returnValues []fr.Element, err error)

	// GenerateProof proves a witness for the given verifier target.
	GenerateProof(ctx context.Context, witness []byte, target VerifierTarget) (*Proof, error)

	// VerifyProof checks a proof against the circuit's verifying key.
	VerifyProof(ctx context.Context, proof *Proof, target VerifierTarget) (bool, error)

	// RecursiveArtifacts extracts the verifier-key fields and hash needed to
	// verify this circuit's proofs inside another circuit.
	RecursiveArtifacts(ctx context.Context, proof *Proof, numPublicInputs int) (*RecursiveArtifacts, error)
}
