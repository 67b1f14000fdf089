package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/simdash/marktracker/internal/tracker"
)

// TrackerService defines the lifecycle operations the tracker handler needs.
type TrackerService interface {
	Start(interval time.Duration)
	Stop()
	ForceUpdate(ctx context.Context) tracker.RunReport
	Status() tracker.Status
}

// TrackerHandler exposes the tracker control surface: start, stop, forced
// refresh, and status. Start and stop are idempotent and always answer 200;
// failure detail only ever shows up in the status counters.
type TrackerHandler struct {
	tracker TrackerService
	logger  *slog.Logger
}

// NewTrackerHandler creates a TrackerHandler with the given service and logger.
func NewTrackerHandler(svc TrackerService, logger *slog.Logger) *TrackerHandler {
	return &TrackerHandler{
		tracker: svc,
		logger:  logger,
	}
}

// startRequest is the optional body of a start call.
type startRequest struct {
	IntervalSeconds int `json:"intervalSeconds"`
}

// Start begins periodic revaluation. No-op when already active.
// POST /api/tracker/start
func (h *TrackerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil {
		// An empty or malformed body just means "use the default interval".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.tracker.Start(time.Duration(req.IntervalSeconds) * time.Second)
	writeJSON(w, http.StatusOK, map[string]any{"started": true})
}

// Stop halts future scheduled cycles. No-op when already inactive.
// POST /api/tracker/stop
func (h *TrackerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.tracker.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"stopped": true})
}

// Refresh runs exactly one revaluation cycle synchronously and returns its
// report, regardless of whether the schedule is active.
// POST /api/tracker/refresh
func (h *TrackerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	report := h.tracker.ForceUpdate(r.Context())

	h.logger.InfoContext(r.Context(), "handler: forced refresh completed",
		slog.Int("updated", report.UpdatedCount),
		slog.Int("errors", report.ErrorCount),
	)
	writeJSON(w, http.StatusOK, report)
}

// GetStatus returns the latest completed run statistics and the active flag.
// GET /api/tracker/status
func (h *TrackerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Status())
}
