package domain

import (
	"context"
	"time"
)

// PositionStore persists simulated positions. The tracker only reads open
// positions and applies independent partial updates per id with
// last-write-wins semantics; it never deletes or resolves positions itself.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	ListOpen(ctx context.Context) ([]Position, error)
	ListRecent(ctx context.Context, limit int) ([]Position, error)

	// ApplyValuation overwrites the current odds and derived valuation of a
	// single open position. Returns ErrNotFound when the position does not
	// exist or is no longer open.
	ApplyValuation(ctx context.Context, id string, upd ValuationUpdate) error

	// MarkResolved freezes a position at its final state. Called by the
	// resolution process, never by the tracker.
	MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error
}

// SnapshotCache stores the latest fetched price snapshot per market so the
// dashboard can render live odds without touching the position store.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap MarketPriceSnapshot) error
	GetSnapshot(ctx context.Context, marketID string) (MarketPriceSnapshot, error)
}

// PriceSource fetches the current price pair for one market.
type PriceSource interface {
	GetMarketPrices(ctx context.Context, marketID string) (MarketPriceSnapshot, error)
}
