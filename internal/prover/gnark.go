// gnark.go - In-process Groth16 backend over a compiled gnark circuit.
//
// Adapts one compiled constraint system plus its keys to the Backend
// surface. The adapter is generic over the circuit: callers supply a
// function turning their typed input record into a witness assignment.
// Proofs and keys serialize with WriteTo/ReadFrom so artifacts survive
// process restarts.

package prover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"pnlprover/internal/field"
	"pnlprover/internal/poseidon"
)

// AssignFunc converts a typed circuit-input record into the witness
// assignment of the circuit this backend was built for.
type AssignFunc func(inputs any) (frontend.Circuit, error)

// GnarkBackend drives Groth16 over a single compiled circuit.
type GnarkBackend struct {
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
	assign AssignFunc
}

// NewGnarkBackend wraps a compiled constraint system and its keys.
func NewGnarkBackend(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, assign AssignFunc) *GnarkBackend {
	return &GnarkBackend{ccs: ccs, pk: pk, vk: vk, assign: assign}
}

// Execute implements Backend.
func (b *GnarkBackend) Execute(ctx context.Context, inputs any) ([]byte, []fr.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	assignment, err := b.assign(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExecuteFailed, err)
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExecuteFailed, err)
	}
	raw, err := w.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExecuteFailed, err)
	}
	pub, err := w.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExecuteFailed, err)
	}
	vec, ok := pub.Vector().(fr.Vector)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unexpected public witness vector type", ErrExecuteFailed)
	}
	return raw, []fr.Element(vec), nil
}

// GenerateProof implements Backend. The verifier target does not change the
// Groth16 flow; it is kept so remote backends can swap hash functions for
// recursion-friendly proofs.
func (b *GnarkBackend) GenerateProof(ctx context.Context, rawWitness []byte, target VerifierTarget) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	if err := w.UnmarshalBinary(rawWitness); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	proof, err := groth16.Prove(b.ccs, b.pk, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", ErrGenerateFailed, err)
	}
	pub, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	vec, ok := pub.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected public witness vector type", ErrGenerateFailed)
	}
	return &Proof{Proof: buf.Bytes(), PublicInputs: []fr.Element(vec)}, nil
}

// VerifyProof implements Backend.
func (b *GnarkBackend) VerifyProof(ctx context.Context, p *Proof, target VerifierTarget) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(p.Proof)); err != nil {
		return false, fmt.Errorf("%w: unmarshal: %v", ErrVerifyFailed, err)
	}
	pubW, err := publicWitness(p.PublicInputs)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	if err := groth16.Verify(proof, b.vk, pubW); err != nil {
		return false, nil
	}
	return true, nil
}

// RecursiveArtifacts implements Backend: the verifying key is serialized,
// packed into field elements, and hashed.
func (b *GnarkBackend) RecursiveArtifacts(ctx context.Context, p *Proof, numPublicInputs int) (*RecursiveArtifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.PublicInputs) != numPublicInputs {
		return nil, fmt.Errorf("prover: proof has %d public inputs, want %d", len(p.PublicInputs), numPublicInputs)
	}
	var buf bytes.Buffer
	if _, err := b.vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("prover: marshal verifying key: %w", err)
	}
	raw := buf.Bytes()
	vkFields, err := field.PackFields(raw, (len(raw)+field.PackedBytes-1)/field.PackedBytes)
	if err != nil {
		return nil, fmt.Errorf("prover: pack verifying key: %w", err)
	}
	return &RecursiveArtifacts{VKAsFields: vkFields, VKHash: poseidon.Hash(vkFields...)}, nil
}

func publicWitness(values []fr.Element) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	ch := make(chan any, len(values))
	for i := range values {
		ch <- values[i]
	}
	close(ch)
	if err := w.Fill(len(values), 0, ch); err != nil {
		return nil, err
	}
	return w, nil
}

// SetupOrLoadKeys generates or loads Groth16 keys for a compiled circuit:
// existing key files win, otherwise a fresh setup is run and saved.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(pkPath)
	vk, vkErr := LoadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := saveKey(pkPath, pk.WriteTo); err != nil {
		return nil, nil, err
	}
	if err := saveKey(vkPath, vk.WriteTo); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

// LoadProvingKey loads a Groth16 proving key from disk.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

// LoadVerifyingKey loads a Groth16 verifying key from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

func saveKey(path string, writeTo func(w io.Writer) (int64, error)) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = writeTo(f)
	return err
}
