package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/simdash/marktracker/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using one Redis hash per
// market at key "marksnap:{marketID}" with fields "yes", "no" and "ts"
// (Unix nanoseconds). Only the latest snapshot is kept; every write
// overwrites the previous one.
type SnapshotCache struct {
	client *Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{client: c}
}

func snapshotKey(marketID string) string {
	return "marksnap:" + marketID
}

// SetSnapshot stores the latest price snapshot for a market.
func (sc *SnapshotCache) SetSnapshot(ctx context.Context, snap domain.MarketPriceSnapshot) error {
	fields := map[string]any{
		"yes": strconv.FormatFloat(snap.YesPrice, 'f', -1, 64),
		"no":  strconv.FormatFloat(snap.NoPrice, 'f', -1, 64),
		"ts":  strconv.FormatInt(snap.FetchedAt.UnixNano(), 10),
	}
	if err := sc.client.rdb.HSet(ctx, snapshotKey(snap.MarketID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.MarketID, err)
	}
	return nil
}

// GetSnapshot returns the latest stored snapshot for a market, or
// domain.ErrNotFound when none has been written yet.
func (sc *SnapshotCache) GetSnapshot(ctx context.Context, marketID string) (domain.MarketPriceSnapshot, error) {
	vals, err := sc.client.rdb.HGetAll(ctx, snapshotKey(marketID)).Result()
	if err != nil {
		return domain.MarketPriceSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return domain.MarketPriceSnapshot{}, domain.ErrNotFound
	}

	yes, err := strconv.ParseFloat(vals["yes"], 64)
	if err != nil {
		return domain.MarketPriceSnapshot{}, fmt.Errorf("redis: parse yes price %s: %w", marketID, err)
	}
	no, err := strconv.ParseFloat(vals["no"], 64)
	if err != nil {
		return domain.MarketPriceSnapshot{}, fmt.Errorf("redis: parse no price %s: %w", marketID, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.MarketPriceSnapshot{}, fmt.Errorf("redis: parse ts %s: %w", marketID, err)
	}

	return domain.MarketPriceSnapshot{
		MarketID:  marketID,
		YesPrice:  yes,
		NoPrice:   no,
		FetchedAt: time.Unix(0, tsNano),
	}, nil
}
