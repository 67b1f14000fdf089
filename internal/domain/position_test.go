package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSideValid(t *testing.T) {
	assert.True(t, SideYes.Valid())
	assert.True(t, SideNo.Valid())
	assert.False(t, Side("maybe").Valid())
	assert.False(t, Side("").Valid())
	assert.False(t, Side("YES").Valid())
}

func TestValidateNew(t *testing.T) {
	assert.NoError(t, ValidateNew("m1", SideYes, 10))

	tests := []struct {
		name     string
		marketID string
		side     Side
		bet      float64
	}{
		{"missing market id", "", SideYes, 10},
		{"unknown side", "m1", Side("maybe"), 10},
		{"zero bet", "m1", SideNo, 0},
		{"negative bet", "m1", SideNo, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNew(tt.marketID, tt.side, tt.bet)
			assert.ErrorIs(t, err, ErrInvalidPosition)
		})
	}
}

func TestPositionSidePrices(t *testing.T) {
	pos := Position{
		Side:            SideNo,
		EntryYesPrice:   0.05,
		EntryNoPrice:    0.95,
		CurrentYesPrice: 0.04,
		CurrentNoPrice:  0.96,
	}

	assert.Equal(t, 0.95, pos.EntryPrice())
	assert.Equal(t, 0.96, pos.CurrentPrice())

	pos.Side = SideYes
	assert.Equal(t, 0.05, pos.EntryPrice())
	assert.Equal(t, 0.04, pos.CurrentPrice())
}

func TestSnapshotPrice(t *testing.T) {
	snap := MarketPriceSnapshot{YesPrice: 0.7, NoPrice: 0.3}
	assert.Equal(t, 0.7, snap.Price(SideYes))
	assert.Equal(t, 0.3, snap.Price(SideNo))
}
