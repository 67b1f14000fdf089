package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/simdash/marktracker/internal/domain"
)

// MarketHandler serves the latest cached price snapshot per market so the
// dashboard can render live odds without forcing a revaluation cycle.
type MarketHandler struct {
	snapshots domain.SnapshotCache // nil when the cache is disabled
	logger    *slog.Logger
}

// NewMarketHandler creates a MarketHandler. snapshots may be nil.
func NewMarketHandler(snapshots domain.SnapshotCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		snapshots: snapshots,
		logger:    logger,
	}
}

// snapshotDTO is the JSON projection of a domain.MarketPriceSnapshot.
type snapshotDTO struct {
	MarketID  string    `json:"marketId"`
	YesPrice  float64   `json:"yesPrice"`
	NoPrice   float64   `json:"noPrice"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// GetSnapshot returns the latest cached snapshot for one market.
// GET /api/markets/{id}/snapshot
func (h *MarketHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshot cache is not enabled")
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshot for market")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get snapshot failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}

	writeJSON(w, http.StatusOK, snapshotDTO{
		MarketID:  snap.MarketID,
		YesPrice:  snap.YesPrice,
		NoPrice:   snap.NoPrice,
		FetchedAt: snap.FetchedAt,
	})
}
