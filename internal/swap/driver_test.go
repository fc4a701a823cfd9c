package swap_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pnlprover/internal/encryption"
	"pnlprover/internal/field"
	"pnlprover/internal/lotstate"
	"pnlprover/internal/merkle"
	"pnlprover/internal/simulator"
	"pnlprover/internal/swap"
)

var (
	oracleAddr = field.FromUint64(0xfeed)
	assetsSlot = field.FromUint64(1)
	tokenA     = field.FromUint64(0xaaaa)
	tokenB     = field.FromUint64(0xbbbb)
)

// encryptSwap builds a full ciphertext buffer (tag prefix plus body) for a
// swap event addressed to the given viewing key.
func encryptSwap(t *testing.T, viewing *encryption.ViewingKeyPair, tokenIn, tokenOut fr.Element, amountIn, amountOut int64) []byte {
	t.Helper()
	var pt [encryption.NumPlaintextFields]fr.Element
	pt[2] = tokenIn
	pt[3] = tokenOut
	pt[4] = field.FromUint64(uint64(amountIn))
	pt[5] = field.FromUint64(uint64(amountOut))
	pt[6] = field.FromUint64(1)
	body, err := encryption.Encrypt(pt, viewing.Public)
	require.NoError(t, err)
	buf := make([]byte, encryption.TagBytes, encryption.TagBytes+len(body))
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	return append(buf, body...)
}

func newTestDriver(t *testing.T) (*swap.Driver, *simulator.Node, *encryption.ViewingKeyPair) {
	t.Helper()
	master, err := encryption.GenerateViewingKeyPair()
	require.NoError(t, err)
	viewing := encryption.SiloViewingSecret(master.Secret, field.FromUint64(0xa44))
	n := simulator.NewNode()
	d := swap.NewDriver(n, simulator.NewSwapBackend(), viewing, oracleAddr, assetsSlot, zerolog.Nop())
	return d, n, viewing
}

func TestProveSwapSingle(t *testing.T) {
	d, n, viewing := newTestDriver(t)

	tree := lotstate.New()
	require.NoError(t, tree.SetLots(tokenA, []lotstate.Lot{
		lotstate.NewLot(big.NewInt(1000), big.NewInt(100)),
	}))
	_, err := tree.Assign(tokenB)
	require.NoError(t, err)
	initialRoot := tree.Root()

	n.SetPrice(50, oracleAddr, assetsSlot, tokenA, big.NewInt(150))
	n.SetPrice(50, oracleAddr, assetsSlot, tokenB, big.NewInt(200))

	ct := encryptSwap(t, viewing, tokenA, tokenB, 600, 450)
	artifact, err := d.ProveSwap(context.Background(), ct, 50, tree, 0)
	require.NoError(t, err)

	// Leaf commitment over the raw ciphertext, tag included.
	wantLeaf := merkle.CiphertextLeaf(ct)
	require.True(t, artifact.Outputs.RootOrLeaf.Equal(&wantLeaf))

	// 600 * (150 - 100) realized on the sell side.
	pnl, err := field.DecodeI64(artifact.Outputs.PnL)
	require.NoError(t, err)
	require.Equal(t, int64(30000), pnl)
	require.Equal(t, int64(30000), artifact.Data.PnL)

	require.True(t, artifact.Outputs.InitialLotStateRoot.Equal(&initialRoot))
	remaining := tree.Root()
	require.True(t, artifact.Outputs.RemainingLotStateRoot.Equal(&remaining))
	require.True(t, artifact.Outputs.PriceFeedAddress.Equal(&oracleAddr))

	// The tree now holds 400 of tokenA at cost 100 and 450 of tokenB at 200.
	aLots, aNum, _ := tree.Lots(tokenA)
	require.Equal(t, 1, aNum)
	require.Zero(t, aLots[0].Amount.Cmp(big.NewInt(400)))
	bLots, bNum, _ := tree.Lots(tokenB)
	require.Equal(t, 1, bNum)
	require.Zero(t, bLots[0].Amount.Cmp(big.NewInt(450)))
	require.Zero(t, bLots[0].Cost.Cmp(big.NewInt(200)))
}

func TestProveSwapChronologyViolation(t *testing.T) {
	d, n, viewing := newTestDriver(t)
	tree := lotstate.New()
	require.NoError(t, tree.SetLots(tokenA, []lotstate.Lot{lotstate.NewLot(big.NewInt(10), big.NewInt(1))}))
	n.SetPrice(5, oracleAddr, assetsSlot, tokenA, big.NewInt(1))
	n.SetPrice(5, oracleAddr, assetsSlot, tokenB, big.NewInt(1))

	ct := encryptSwap(t, viewing, tokenA, tokenB, 1, 1)
	_, err := d.ProveSwap(context.Background(), ct, 5, tree, 9)
	var aerr *swap.AssertionError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, swap.AssertChronology, aerr.Kind)
}

func TestProveSwapUndecryptable(t *testing.T) {
	d, _, _ := newTestDriver(t)
	other, err := encryption.GenerateViewingKeyPair()
	require.NoError(t, err)

	ct := encryptSwap(t, other, tokenA, tokenB, 1, 1)
	_, err = d.ProveSwap(context.Background(), ct, 5, lotstate.New(), 0)
	require.True(t, errors.Is(err, encryption.ErrDecryptFailed))
}

func TestProveSwapSellWithoutLots(t *testing.T) {
	d, n, viewing := newTestDriver(t)
	tree := lotstate.New()
	n.SetPrice(5, oracleAddr, assetsSlot, tokenA, big.NewInt(1))
	n.SetPrice(5, oracleAddr, assetsSlot, tokenB, big.NewInt(1))

	ct := encryptSwap(t, viewing, tokenA, tokenB, 100, 100)
	_, err := d.ProveSwap(context.Background(), ct, 5, tree, 0)
	var aerr *swap.AssertionError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, swap.AssertFIFO, aerr.Kind)
}
