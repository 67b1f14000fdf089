package tracker

// Value computes the mark-to-market valuation of a single position from the
// entry price of its chosen side, the stake, and the side's current price.
// Pure and stateless: positions sharing a market are valued independently
// because entry price and stake differ per position.
//
//	payout = bet / current        (shares bought at entry pay out 1 each)
//	pnl    = ((current - entry) / entry) * bet
//
// A zero current price means the position cannot be profitably closed, so
// the payout collapses to the stake. A zero entry price makes the relative
// move indeterminate, so the PnL is pinned to zero rather than infinity.
func Value(entryPrice, bet, currentPrice float64) (expectedPayout, unrealizedPnL float64) {
	if currentPrice > 0 {
		expectedPayout = bet / currentPrice
	} else {
		expectedPayout = bet
	}

	if entryPrice > 0 {
		unrealizedPnL = ((currentPrice - entryPrice) / entryPrice) * bet
	}

	return expectedPayout, unrealizedPnL
}
