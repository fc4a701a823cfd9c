// client.go - HTTP client for the network node's query API.
//
// The pipeline only needs three read calls: batched tag lookup, block header
// fetch, and public-data witnesses. Requests are JSON-RPC shaped, carry a
// per-call timeout, and pass through a client-side token bucket so a large
// tag scan cannot flood the node.

package node

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

// Client is the node query surface consumed by the prover pipeline.
type Client interface {
	// GetLogsByTags looks up encrypted logs for a batch of siloed tags. The
	// outer result is parallel to the tag list; each inner list preserves
	// on-chain emission order.
	GetLogsByTags(ctx context.Context, tags []fr.Element) ([][]Log, error)

	// GetBlockHeader fetches the header of a mined block.
	GetBlockHeader(ctx context.Context, block uint64) (*BlockHeader, error)

	// GetPublicDataWitness fetches the indexed-tree membership artifact for a
	// public-data leaf index at a block.
	GetPublicDataWitness(ctx context.Context, block uint64, index fr.Element) (*PublicDataWitness, error)
}

// HTTPClient talks to a node over its JSON-RPC endpoint.
type HTTPClient struct {
	endpoint string
	http     *http.Client
	limiter  *requestLimiter
	log      zerolog.Logger
	nextID   uint64
}

// HTTPClientOptions tune an HTTPClient. Zero values pick the defaults.
type HTTPClientOptions struct {
	// Timeout bounds a single RPC round trip. Defaults to 30s.
	Timeout time.Duration
	// MaxRequestsPerSecond caps the outbound request rate. Defaults to 50.
	MaxRequestsPerSecond int
}

// NewHTTPClient builds a client for the given endpoint URL.
func NewHTTPClient(endpoint string, log zerolog.Logger, opts HTTPClientOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRequestsPerSecond == 0 {
		opts.MaxRequestsPerSecond = 50
	}
	return &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  newRequestLimiter(opts.MaxRequestsPerSecond, opts.MaxRequestsPerSecond, time.Second),
		log:      log.With().Str("component", "node").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *HTTPClient) call(ctx context.Context, method string, params any, result any) error {
	if err := c.limiter.wait(ctx); err != nil {
		return err
	}
	c.nextID++
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("node rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("node rpc %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node rpc %s: status %d: %s", method, resp.StatusCode, raw)
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("node rpc %s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("node rpc %s: %d %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("node rpc %s: decode result: %w", method, err)
	}
	c.log.Debug().Str("method", method).Dur("took", time.Since(start)).Msg("rpc")
	return nil
}

// GetLogsByTags implements Client.
func (c *HTTPClient) GetLogsByTags(ctx context.Context, tags []fr.Element) ([][]Log, error) {
	var out [][]Log
	if err := c.call(ctx, "node_getLogsByTags", []any{tags}, &out); err != nil {
		return nil, err
	}
	if len(out) != len(tags) {
		return nil, fmt.Errorf("node returned %d log lists for %d tags", len(out), len(tags))
	}
	return out, nil
}

// GetBlockHeader implements Client.
func (c *HTTPClient) GetBlockHeader(ctx context.Context, block uint64) (*BlockHeader, error) {
	var out BlockHeader
	if err := c.call(ctx, "node_getBlockHeader", []any{block}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPublicDataWitness implements Client.
func (c *HTTPClient) GetPublicDataWitness(ctx context.Context, block uint64, index fr.Element) (*PublicDataWitness, error) {
	var out PublicDataWitness
	if err := c.call(ctx, "node_getPublicDataWitness", []any{block, index}, &out); err != nil {
		return nil, err
	}
	if len(out.SiblingPath) != PublicDataTreeDepth {
		return nil, fmt.Errorf("public data witness has sibling path of length %d, want %d", len(out.SiblingPath), PublicDataTreeDepth)
	}
	return &out, nil
}
