// Package tracker implements the recurring mark-to-market revaluation of
// open simulated positions: load, group by market, fetch prices, revalue,
// persist. One cycle runs at a time; every failure below the position-list
// load is isolated to its market or position.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simdash/marktracker/internal/domain"
)

const (
	defaultInterval   = 60 * time.Second
	defaultFetchFan   = 4
	cycleTimeoutSlack = 4 // scheduled cycle deadline = interval * slack
)

// Alerter delivers operator notifications. Satisfied by *notify.Notifier.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config tunes the tracker. Zero values fall back to defaults.
type Config struct {
	// Interval between scheduled cycles when Start is called without one.
	Interval time.Duration
	// FetchConcurrency bounds how many market fetches run at once. The
	// price client's own rate limiter paces the actual outbound calls.
	FetchConcurrency int
}

// Tracker owns the revaluation lifecycle: the periodic schedule, the
// single-cycle mutual exclusion, and the run statistics.
type Tracker struct {
	positions domain.PositionStore
	prices    domain.PriceSource
	snapshots domain.SnapshotCache // optional, may be nil
	alerter   Alerter              // optional, may be nil
	logger    *slog.Logger

	interval time.Duration
	fetchFan int
	now      func() time.Time

	// cycleMu serializes cycles. Scheduled ticks TryLock and skip when a
	// cycle is still running; ForceUpdate waits its turn.
	cycleMu sync.Mutex

	// mu guards the scheduling state and the last completed report.
	mu           sync.Mutex
	active       bool
	stopCh       chan struct{}
	last         RunReport
	hasRun       bool
	skippedTicks int
}

// New creates a Tracker. snapshots and alerter may be nil.
func New(
	positions domain.PositionStore,
	prices domain.PriceSource,
	snapshots domain.SnapshotCache,
	alerter Alerter,
	cfg Config,
	logger *slog.Logger,
) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = defaultFetchFan
	}
	return &Tracker{
		positions: positions,
		prices:    prices,
		snapshots: snapshots,
		alerter:   alerter,
		logger:    logger.With(slog.String("component", "tracker")),
		interval:  cfg.Interval,
		fetchFan:  cfg.FetchConcurrency,
		now:       time.Now,
	}
}

// Start begins periodic execution every interval. A non-positive interval
// uses the configured default. Calling Start while already active is a
// no-op, never an error.
func (t *Tracker) Start(interval time.Duration) {
	if interval <= 0 {
		interval = t.interval
	}

	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		t.logger.Debug("start ignored, tracker already active")
		return
	}
	t.active = true
	stopCh := make(chan struct{})
	t.stopCh = stopCh
	t.mu.Unlock()

	t.logger.Info("tracker started", slog.Duration("interval", interval))
	go t.loop(interval, stopCh)
}

// Stop halts future scheduled cycles. A cycle already in flight finishes;
// Stop only prevents the next one from starting. Calling Stop while
// inactive is a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		t.logger.Debug("stop ignored, tracker not active")
		return
	}
	t.active = false
	close(t.stopCh)
	t.stopCh = nil
	t.mu.Unlock()

	t.logger.Info("tracker stopped")
}

// ForceUpdate synchronously runs exactly one cycle outside the schedule and
// returns its report. It works whether or not the periodic schedule is
// active, waiting for any in-flight cycle to finish first.
func (t *Tracker) ForceUpdate(ctx context.Context) RunReport {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	return t.runCycle(ctx)
}

// Status returns the latest completed run statistics plus the active flag.
// It never blocks on an in-flight cycle and has no side effects.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		IsActive:     t.active,
		SkippedTicks: t.skippedTicks,
	}
	if t.hasRun {
		st.LastRunAt = t.last.StartedAt.Add(t.last.Duration)
		st.LastRunFailed = t.last.Failed
		st.TotalPositions = t.last.TotalPositions
		st.UniqueMarkets = t.last.UniqueMarkets
		st.UpdatedCount = t.last.UpdatedCount
		st.ErrorCount = t.last.ErrorCount
		st.DurationMs = t.last.Duration.Milliseconds()
	}
	return st
}

// loop drives scheduled cycles until the stop channel closes.
func (t *Tracker) loop(interval time.Duration, stopCh chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.tick(interval)
		}
	}
}

// tick runs one scheduled cycle. When the previous cycle is still running
// the tick is skipped, not queued, and the skip is recorded in stats.
func (t *Tracker) tick(interval time.Duration) {
	if !t.cycleMu.TryLock() {
		t.mu.Lock()
		t.skippedTicks++
		t.mu.Unlock()
		t.logger.Warn("previous cycle still running, tick skipped")
		return
	}
	defer t.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), interval*cycleTimeoutSlack)
	defer cancel()
	t.runCycle(ctx)
}

// runCycle executes one full revaluation pass. The caller must hold cycleMu.
func (t *Tracker) runCycle(ctx context.Context) RunReport {
	start := t.now()
	report := RunReport{StartedAt: start}

	positions, err := t.positions.ListOpen(ctx)
	if err != nil {
		// The only catastrophic failure mode: nothing to iterate over. The
		// schedule stays intact so the next tick can retry.
		report.Failed = true
		report.ErrorCount++
		t.logger.ErrorContext(ctx, "cycle aborted, open positions could not be loaded",
			slog.String("error", err.Error()),
		)
		t.alert(ctx, "tracker_run_failed", "Revaluation run failed",
			"open positions could not be loaded: "+err.Error())
		return t.finish(report)
	}

	report.TotalPositions = len(positions)
	groups := GroupByMarket(positions)
	report.UniqueMarkets = len(groups)

	snaps := t.fetchSnapshots(ctx, groups, &report)
	t.applyValuations(ctx, groups, snaps, &report)

	return t.finish(report)
}

// fetchSnapshots retrieves one price snapshot per unique market. Fetches are
// pipelined up to the configured fan-out; the price client paces the actual
// outbound calls. A market whose fetch fails is dropped from the result and
// counted, leaving its positions untouched for this cycle.
func (t *Tracker) fetchSnapshots(
	ctx context.Context,
	groups map[string][]domain.Position,
	report *RunReport,
) map[string]domain.MarketPriceSnapshot {
	var (
		mu    sync.Mutex
		snaps = make(map[string]domain.MarketPriceSnapshot, len(groups))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.fetchFan)

	for marketID := range groups {
		g.Go(func() error {
			snap, err := t.prices.GetMarketPrices(gctx, marketID)
			if err != nil {
				t.logger.WarnContext(gctx, "market price fetch failed, positions left untouched",
					slog.String("market_id", marketID),
					slog.Int("positions", len(groups[marketID])),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				report.ErrorCount++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			snaps[marketID] = snap
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; failures are recorded per market instead.
	_ = g.Wait()

	return snaps
}

// applyValuations revalues and persists every position whose market has a
// snapshot from this cycle. Writes go out one position at a time; a failed
// write is counted and skipped without affecting siblings.
func (t *Tracker) applyValuations(
	ctx context.Context,
	groups map[string][]domain.Position,
	snaps map[string]domain.MarketPriceSnapshot,
	report *RunReport,
) {
	for marketID, group := range groups {
		snap, ok := snaps[marketID]
		if !ok {
			continue
		}

		if t.snapshots != nil {
			if err := t.snapshots.SetSnapshot(ctx, snap); err != nil {
				t.logger.DebugContext(ctx, "snapshot cache write failed",
					slog.String("market_id", marketID),
					slog.String("error", err.Error()),
				)
			}
		}

		for _, pos := range group {
			payout, pnl := Value(pos.EntryPrice(), pos.Bet, snap.Price(pos.Side))

			upd := domain.ValuationUpdate{
				YesPrice:       snap.YesPrice,
				NoPrice:        snap.NoPrice,
				PricedAt:       snap.FetchedAt,
				ExpectedPayout: payout,
				UnrealizedPnL:  pnl,
			}
			if err := t.positions.ApplyValuation(ctx, pos.ID, upd); err != nil {
				report.ErrorCount++
				t.logger.WarnContext(ctx, "position valuation write failed",
					slog.String("position_id", pos.ID),
					slog.String("market_id", marketID),
					slog.String("error", err.Error()),
				)
				continue
			}
			report.UpdatedCount++
		}
	}
}

// finish stamps the duration, publishes the report as the latest completed
// run, and logs the cycle summary.
func (t *Tracker) finish(report RunReport) RunReport {
	report.Duration = t.now().Sub(report.StartedAt)
	report.DurationMs = report.Duration.Milliseconds()

	t.mu.Lock()
	t.last = report
	t.hasRun = true
	t.mu.Unlock()

	t.logger.Info("revaluation cycle finished",
		slog.Int("total_positions", report.TotalPositions),
		slog.Int("unique_markets", report.UniqueMarkets),
		slog.Int("updated", report.UpdatedCount),
		slog.Int("errors", report.ErrorCount),
		slog.Bool("failed", report.Failed),
		slog.Duration("duration", report.Duration),
	)
	return report
}

func (t *Tracker) alert(ctx context.Context, event, title, message string) {
	if t.alerter == nil {
		return
	}
	if err := t.alerter.Notify(ctx, event, title, message); err != nil {
		t.logger.WarnContext(ctx, "alert delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
