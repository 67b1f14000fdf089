package tracker

import "github.com/simdash/marktracker/internal/domain"

// GroupByMarket indexes open positions by the market they reference, so a
// market held by N positions triggers exactly one price fetch. Key order is
// unspecified.
func GroupByMarket(positions []domain.Position) map[string][]domain.Position {
	groups := make(map[string][]domain.Position)
	for _, pos := range positions {
		groups[pos.MarketID] = append(groups[pos.MarketID], pos)
	}
	return groups
}
