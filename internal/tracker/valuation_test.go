package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	t.Run("favorite drifting further favorite", func(t *testing.T) {
		// 100 staked on NO at 0.95; NO later trades at 0.9565.
		payout, pnl := Value(0.95, 100, 0.9565)
		assert.InDelta(t, 104.55, payout, 0.01)
		assert.InDelta(t, 0.684, pnl, 0.01)
	})

	t.Run("price moves against the position", func(t *testing.T) {
		payout, pnl := Value(0.60, 50, 0.40)
		assert.InDelta(t, 125.0, payout, 0.001)
		assert.InDelta(t, -16.667, pnl, 0.01)
	})

	t.Run("unchanged price has zero pnl", func(t *testing.T) {
		payout, pnl := Value(0.5, 20, 0.5)
		assert.InDelta(t, 40.0, payout, 0.001)
		assert.Zero(t, pnl)
	})

	t.Run("zero current price collapses payout to the stake", func(t *testing.T) {
		payout, pnl := Value(0.30, 75, 0)
		assert.Equal(t, 75.0, payout)
		assert.InDelta(t, -75.0, pnl, 0.001)
	})

	t.Run("zero entry price pins pnl to zero", func(t *testing.T) {
		payout, pnl := Value(0, 100, 0.25)
		assert.InDelta(t, 400.0, payout, 0.001)
		assert.Zero(t, pnl)
	})

	t.Run("both prices zero", func(t *testing.T) {
		payout, pnl := Value(0, 10, 0)
		assert.Equal(t, 10.0, payout)
		assert.Zero(t, pnl)
	})
}
