package domain

import "time"

// MarketPriceSnapshot is the normalized yes/no price pair fetched for one
// market during a tracker cycle. YesPrice + NoPrice sum to 1 within floating
// point tolerance. Snapshots are transient: only the latest one per market is
// kept, no history is retained.
type MarketPriceSnapshot struct {
	MarketID  string
	YesPrice  float64
	NoPrice   float64
	FetchedAt time.Time
}

// Price returns the snapshot price for the given side.
func (s MarketPriceSnapshot) Price(side Side) float64 {
	if side == SideNo {
		return s.NoPrice
	}
	return s.YesPrice
}
