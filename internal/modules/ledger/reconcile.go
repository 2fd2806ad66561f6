package ledger

import (
	sdkmath "cosmossdk.io/math"
)

// reconcileDelta computes the gain (positive) or loss (negative) a pull reveals:
// what the strategy still holds against what the baseline implied it would hold.
func reconcileDelta(remaining, lastBalance, amount sdkmath.Int) sdkmath.Int {
	return remaining.Sub(lastBalance.Sub(amount))
}

// applyDelta folds delta into the running gains and debts. A gain first pays
// down recognized debts and a loss first consumes recognized gains, so at most
// one of the two is non-zero afterwards.
func applyDelta(gains, debts, delta sdkmath.Int) (sdkmath.Int, sdkmath.Int) {
	switch {
	case delta.IsPositive():
		if debts.GTE(delta) {
			return gains, debts.Sub(delta)
		}
		return gains.Add(delta.Sub(debts)), sdkmath.ZeroInt()
	case delta.IsNegative():
		loss := delta.Neg()
		if gains.GTE(loss) {
			return gains.Sub(loss), debts
		}
		return sdkmath.ZeroInt(), debts.Add(loss.Sub(gains))
	}
	return gains, debts
}
