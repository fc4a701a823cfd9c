// fifo.go - Host-side mirror of the swap circuit's FIFO lot arithmetic.
//
// The circuit consumes acquisition lots oldest-first and realizes signed
// 64-bit PnL against the oracle sell price. The host must reproduce that
// update exactly - same order, same compaction, same lot accounting - or the
// externally maintained lot-state tree diverges from the proof's remaining
// root and the next swap in the chain becomes unprovable.

package swap

import (
	"fmt"
	"math"
	"math/big"

	"pnlprover/internal/lotstate"
)

var (
	i64Min = big.NewInt(math.MinInt64)
	i64Max = big.NewInt(math.MaxInt64)
)

func fitsI64(v *big.Int) bool {
	return v.Cmp(i64Min) >= 0 && v.Cmp(i64Max) <= 0
}

// consumeFIFO sells `amount` units against the lot queue at `sellPrice`:
// lots are drained oldest-first, each consumed slice realizing
// consumed * (sellPrice - cost) of signed PnL. The returned queue is
// compacted (drained lots removed, survivors shifted left).
//
// Selling more than the queue holds is an under-consumption assertion; any
// intermediate value escaping signed 64 bits is an overflow error.
func consumeFIFO(lots []lotstate.Lot, amount, sellPrice *big.Int) ([]lotstate.Lot, int64, error) {
	remaining := new(big.Int).Set(amount)
	pnl := new(big.Int)
	out := make([]lotstate.Lot, 0, len(lots))
	for _, lot := range lots {
		if remaining.Sign() == 0 {
			out = append(out, lot)
			continue
		}
		consumed := new(big.Int).Set(remaining)
		if lot.Amount.Cmp(consumed) < 0 {
			consumed.Set(lot.Amount)
		}
		term := new(big.Int).Sub(sellPrice, lot.Cost)
		term.Mul(term, consumed)
		pnl.Add(pnl, term)
		if !fitsI64(term) || !fitsI64(pnl) {
			return nil, 0, fmt.Errorf("swap: pnl term %s overflows signed 64 bits", term.String())
		}
		remaining.Sub(remaining, consumed)
		left := new(big.Int).Sub(lot.Amount, consumed)
		if left.Sign() > 0 {
			out = append(out, lotstate.Lot{Amount: left, Cost: new(big.Int).Set(lot.Cost)})
		}
	}
	if remaining.Sign() != 0 {
		return nil, 0, &AssertionError{Kind: AssertFIFO,
			Msg: fmt.Sprintf("sell of %s exceeds tracked balance by %s", amount.String(), remaining.String())}
	}
	return out, pnl.Int64(), nil
}

// appendLot records an acquisition at the end of the queue.
func appendLot(lots []lotstate.Lot, amount, cost *big.Int) ([]lotstate.Lot, error) {
	if len(lots) == lotstate.MaxLots {
		return nil, fmt.Errorf("swap: lot queue full (%d lots)", lotstate.MaxLots)
	}
	return append(lots, lotstate.NewLot(amount, cost)), nil
}
