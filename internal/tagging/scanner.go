// scanner.go - Tag-driven discovery of encrypted logs.
//
// Walks a recipient's tag windows in batches, queries the node once per
// window, and returns ciphertext buffers in tag-index order. The scan stops
// at the first window where every tag came back empty, capped by MaxIndices.

package tagging

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pnlprover/internal/node"
)

// ScanOptions bound a tag scan.
type ScanOptions struct {
	// StartIndex is the first tag index to probe.
	StartIndex uint64
	// MaxIndices caps the number of indices probed; truncation is silent.
	MaxIndices uint64
	// BatchSize is the number of tags submitted per node query.
	BatchSize uint64
}

// DefaultScanOptions probe the first 256 indices, 16 per query.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{StartIndex: 0, MaxIndices: 256, BatchSize: 16}
}

// Scanner discovers a recipient's encrypted logs through the node's tag
// index. It never decrypts or interprets what it finds.
type Scanner struct {
	node node.Client
	log  zerolog.Logger
}

// NewScanner builds a scanner over a node client.
func NewScanner(n node.Client, log zerolog.Logger) *Scanner {
	return &Scanner{node: n, log: log.With().Str("component", "scanner").Logger()}
}

// Scan walks the secret's tag windows and returns the discovered logs in
// tag-index order. Duplicate hits on one tag keep their on-chain order.
func (s *Scanner) Scan(ctx context.Context, ts TaggingSecret, opts ScanOptions) ([]node.Log, error) {
	if opts.BatchSize == 0 {
		return nil, fmt.Errorf("tag scan: batch size must be positive")
	}
	var found []node.Log
	scanned := uint64(0)
	for scanned < opts.MaxIndices {
		window := opts.BatchSize
		if remaining := opts.MaxIndices - scanned; remaining < window {
			window = remaining
		}
		base := opts.StartIndex + scanned

		tags := make([]fr.Element, window)
		g, _ := errgroup.WithContext(ctx)
		for k := uint64(0); k < window; k++ {
			g.Go(func() error {
				tags[k] = ts.SiloedTag(base + k)
				return nil
			})
		}
		g.Wait()

		hits, err := s.node.GetLogsByTags(ctx, tags)
		if err != nil {
			return nil, fmt.Errorf("tag scan: window at index %d: %w", base, err)
		}
		empty := true
		for _, logs := range hits {
			if len(logs) > 0 {
				empty = false
			}
			found = append(found, logs...)
		}
		scanned += window
		if empty {
			break
		}
	}
	s.log.Debug().Uint64("indices", scanned).Int("logs", len(found)).Msg("tag scan done")
	return found, nil
}
