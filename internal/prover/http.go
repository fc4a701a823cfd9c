// http.go - Remote proving backend over HTTP.
//
// Wraps a proving service exposing the four backend calls as JSON-RPC
// methods. Each backend drives one named circuit; the name travels in every
// request's params, so several circuits can share one endpoint. Prover calls are slow; the timeout is
// minutes, not seconds, and a call once started is treated as atomic.

package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"
)

// HTTPBackend drives one circuit on a remote proving service.
type HTTPBackend struct {
	endpoint string
	circuit  string
	http     *http.Client
	log      zerolog.Logger
	nextID   uint64
}

// NewHTTPBackend builds a backend for the named circuit. A zero timeout
// defaults to five minutes.
func NewHTTPBackend(endpoint, circuit string, timeout time.Duration, log zerolog.Logger) *HTTPBackend {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPBackend{
		endpoint: endpoint,
		circuit:  circuit,
		http:     &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "prover").Str("circuit", circuit).Logger(),
	}
}

type proverRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type proverResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *HTTPBackend) call(ctx context.Context, method string, params any, result any) error {
	b.nextID++
	body, err := json.Marshal(proverRequest{JSONRPC: "2.0", ID: b.nextID, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("prover rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("prover rpc %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prover rpc %s: status %d: %s", method, resp.StatusCode, raw)
	}
	var pr proverResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return fmt.Errorf("prover rpc %s: decode response: %w", method, err)
	}
	if pr.Error != nil {
		return fmt.Errorf("prover rpc %s: %d %s", method, pr.Error.Code, pr.Error.Message)
	}
	if err := json.Unmarshal(pr.Result, result); err != nil {
		return fmt.Errorf("prover rpc %s: decode result: %w", method, err)
	}
	b.log.Debug().Str("method", method).Dur("took", time.Since(start)).Msg("prover rpc")
	return nil
}

type executeResult struct {
	Witness      []byte       `json:"witness"`
	ReturnValues []fr.Element `json:"returnValues"`
}

// Execute implements Backend.
func (b *HTTPBackend) Execute(ctx context.Context, inputs any) ([]byte, []fr.Element, error) {
	var out executeResult
	params := map[string]any{"circuit": b.circuit, "inputs": inputs}
	if err := b.call(ctx, "prover_execute", params, &out); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExecuteFailed, err)
	}
	return out.Witness, out.ReturnValues, nil
}

// GenerateProof implements Backend.
func (b *HTTPBackend) GenerateProof(ctx context.Context, witness []byte, target VerifierTarget) (*Proof, error) {
	var out Proof
	params := map[string]any{"circuit": b.circuit, "witness": witness, "verifierTarget": int(target)}
	if err := b.call(ctx, "prover_generateProof", params, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	return &out, nil
}

// VerifyProof implements Backend.
func (b *HTTPBackend) VerifyProof(ctx context.Context, proof *Proof, target VerifierTarget) (bool, error) {
	var out bool
	params := map[string]any{"circuit": b.circuit, "proof": proof, "verifierTarget": int(target)}
	if err := b.call(ctx, "prover_verifyProof", params, &out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	return out, nil
}

// RecursiveArtifacts implements Backend.
func (b *HTTPBackend) RecursiveArtifacts(ctx context.Context, proof *Proof, numPublicInputs int) (*RecursiveArtifacts, error) {
	var out RecursiveArtifacts
	params := map[string]any{"circuit": b.circuit, "proof": proof, "numPublicInputs": numPublicInputs}
	if err := b.call(ctx, "prover_generateRecursiveProofArtifacts", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
