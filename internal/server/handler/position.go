package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/simdash/marktracker/internal/domain"
	"github.com/simdash/marktracker/internal/tracker"
)

// PositionHandler serves the position CRUD passthrough for the dashboard:
// listing recent positions and creating new simulated bets. Entry odds are
// captured from the live price source at creation time and never change
// afterwards.
type PositionHandler struct {
	positions domain.PositionStore
	prices    domain.PriceSource
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given store, price
// source, and logger.
func NewPositionHandler(positions domain.PositionStore, prices domain.PriceSource, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		prices:    prices,
		logger:    logger,
	}
}

// positionDTO is the JSON projection of a domain.Position.
type positionDTO struct {
	ID              string    `json:"id"`
	MarketID        string    `json:"marketId"`
	Side            string    `json:"side"`
	BetAmount       float64   `json:"betAmount"`
	EntryYesPrice   float64   `json:"entryYesPrice"`
	EntryNoPrice    float64   `json:"entryNoPrice"`
	CurrentYesPrice float64   `json:"currentYesPrice"`
	CurrentNoPrice  float64   `json:"currentNoPrice"`
	PricedAt        time.Time `json:"pricedAt"`
	ExpectedPayout  float64   `json:"expectedPayout"`
	UnrealizedPnL   float64   `json:"unrealizedPnl"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toPositionDTO(p domain.Position) positionDTO {
	return positionDTO{
		ID:              p.ID,
		MarketID:        p.MarketID,
		Side:            string(p.Side),
		BetAmount:       p.Bet,
		EntryYesPrice:   p.EntryYesPrice,
		EntryNoPrice:    p.EntryNoPrice,
		CurrentYesPrice: p.CurrentYesPrice,
		CurrentNoPrice:  p.CurrentNoPrice,
		PricedAt:        p.PricedAt,
		ExpectedPayout:  p.ExpectedPayout,
		UnrealizedPnL:   p.UnrealizedPnL,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// ListPositions returns the most recently created positions.
// GET /api/positions?limit=50
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	dtos := make([]positionDTO, 0, len(positions))
	for _, p := range positions {
		dtos = append(dtos, toPositionDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": dtos})
}

// createPositionRequest is the body of a create call.
type createPositionRequest struct {
	MarketID  string  `json:"marketId"`
	Side      string  `json:"side"`
	BetAmount float64 `json:"betAmount"`
}

// CreatePosition opens a new simulated bet. The entry odds are the market's
// live prices at the moment of creation, so the initial valuation is the
// stake priced at entry with zero PnL.
// POST /api/positions
func (h *PositionHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	side := domain.Side(req.Side)
	if err := domain.ValidateNew(req.MarketID, side, req.BetAmount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.prices.GetMarketPrices(r.Context(), req.MarketID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: entry price fetch failed",
			slog.String("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "could not fetch entry prices for market")
		return
	}

	now := time.Now().UTC()
	pos := domain.Position{
		ID:              uuid.New().String(),
		MarketID:        req.MarketID,
		Side:            side,
		Bet:             req.BetAmount,
		EntryYesPrice:   snap.YesPrice,
		EntryNoPrice:    snap.NoPrice,
		CurrentYesPrice: snap.YesPrice,
		CurrentNoPrice:  snap.NoPrice,
		PricedAt:        snap.FetchedAt,
		Status:          domain.PositionStatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	pos.ExpectedPayout, pos.UnrealizedPnL = tracker.Value(pos.EntryPrice(), pos.Bet, pos.CurrentPrice())

	if err := h.positions.Create(r.Context(), pos); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create position failed",
			slog.String("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create position")
		return
	}

	writeJSON(w, http.StatusCreated, toPositionDTO(pos))
}
