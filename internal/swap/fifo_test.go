package swap

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"pnlprover/internal/lotstate"
)

func lots(pairs ...int64) []lotstate.Lot {
	out := make([]lotstate.Lot, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, lotstate.NewLot(big.NewInt(pairs[i]), big.NewInt(pairs[i+1])))
	}
	return out
}

func TestConsumeFullLotAndHalf(t *testing.T) {
	// Selling 150 consumes all of lot 0 and half of lot 1; compaction moves
	// lot 1 into position 0 and the count drops by one.
	in := lots(100, 10, 100, 20)
	out, pnl, err := consumeFIFO(in, big.NewInt(150), big.NewInt(30))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Zero(t, out[0].Amount.Cmp(big.NewInt(50)))
	require.Zero(t, out[0].Cost.Cmp(big.NewInt(20)))
	// 100*(30-10) + 50*(30-20)
	require.Equal(t, int64(2500), pnl)
}

func TestConsumeAtCostBasisIsZero(t *testing.T) {
	in := lots(100, 25)
	out, pnl, err := consumeFIFO(in, big.NewInt(60), big.NewInt(25))
	require.NoError(t, err)
	require.Zero(t, pnl)
	require.Len(t, out, 1)
	require.Zero(t, out[0].Amount.Cmp(big.NewInt(40)))
}

func TestConsumeRealizesLoss(t *testing.T) {
	in := lots(10, 100)
	out, pnl, err := consumeFIFO(in, big.NewInt(10), big.NewInt(60))
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, int64(-400), pnl)
}

func TestConsumeZeroAmountKeepsLots(t *testing.T) {
	in := lots(100, 10, 50, 20)
	out, pnl, err := consumeFIFO(in, big.NewInt(0), big.NewInt(99))
	require.NoError(t, err)
	require.Zero(t, pnl)
	require.Len(t, out, 2)
}

func TestConsumeUnderConsumption(t *testing.T) {
	in := lots(100, 10)
	_, _, err := consumeFIFO(in, big.NewInt(150), big.NewInt(30))
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, AssertFIFO, aerr.Kind)
}

func TestConsumeOverflow(t *testing.T) {
	amount := new(big.Int).SetUint64(math.MaxUint64)
	in := []lotstate.Lot{lotstate.NewLot(amount, big.NewInt(0))}
	price := new(big.Int).SetUint64(math.MaxUint64)
	_, _, err := consumeFIFO(in, amount, price)
	require.Error(t, err)
	var aerr *AssertionError
	require.False(t, errors.As(err, &aerr), "overflow is a plain error, not an assertion")
}

func TestAppendLotBounds(t *testing.T) {
	var in []lotstate.Lot
	var err error
	for i := 0; i < lotstate.MaxLots; i++ {
		in, err = appendLot(in, big.NewInt(int64(i+1)), big.NewInt(1))
		require.NoError(t, err)
	}
	_, err = appendLot(in, big.NewInt(1), big.NewInt(1))
	require.Error(t, err)
}
