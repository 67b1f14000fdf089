package domain

import (
	"fmt"
	"time"
)

// Side identifies which outcome of a binary market a position is betting on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether the side is one of the two known outcomes.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// PositionStatus tracks whether a position is still open or has been resolved.
type PositionStatus string

const (
	PositionStatusOpen     PositionStatus = "open"
	PositionStatusResolved PositionStatus = "resolved"
)

// ValidateNew checks the user-supplied parameters of a position before it is
// created. All failures wrap ErrInvalidPosition.
func ValidateNew(marketID string, side Side, bet float64) error {
	switch {
	case marketID == "":
		return fmt.Errorf("%w: market id is required", ErrInvalidPosition)
	case !side.Valid():
		return fmt.Errorf("%w: side must be yes or no", ErrInvalidPosition)
	case bet <= 0:
		return fmt.Errorf("%w: bet amount must be positive", ErrInvalidPosition)
	}
	return nil
}

// Position is a simulated bet on a binary market. Entry prices are captured
// at creation and never change afterwards; the current prices and the derived
// valuation fields are overwritten by the revaluation tracker while the
// position is open. Once resolved, all fields are frozen.
type Position struct {
	ID       string
	MarketID string
	Side     Side
	Bet      float64 // stake in simulated dollars, always positive

	// Entry odds, immutable after creation.
	EntryYesPrice float64
	EntryNoPrice  float64

	// Current odds, refreshed each tracker cycle.
	CurrentYesPrice float64
	CurrentNoPrice  float64
	PricedAt        time.Time

	// Derived valuation, recomputed from the current odds.
	ExpectedPayout float64
	UnrealizedPnL  float64

	Status    PositionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryPrice returns the entry price of the chosen side.
func (p Position) EntryPrice() float64 {
	if p.Side == SideNo {
		return p.EntryNoPrice
	}
	return p.EntryYesPrice
}

// CurrentPrice returns the latest known price of the chosen side.
func (p Position) CurrentPrice() float64 {
	if p.Side == SideNo {
		return p.CurrentNoPrice
	}
	return p.CurrentYesPrice
}

// ValuationUpdate is the partial update the tracker writes back to the store
// for a single open position after a revaluation cycle.
type ValuationUpdate struct {
	YesPrice       float64
	NoPrice        float64
	PricedAt       time.Time
	ExpectedPayout float64
	UnrealizedPnL  float64
}
