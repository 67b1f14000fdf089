package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simdash/marktracker/internal/domain"
)

// --- fakes ---

type fakePositionStore struct {
	mu      sync.Mutex
	open    []domain.Position
	listErr error
	failIDs map[string]error
	applied map[string]domain.ValuationUpdate

	// When set, ListOpen signals listStarted and then blocks on listRelease,
	// letting a test hold a cycle in flight.
	listStarted chan struct{}
	listRelease chan struct{}
}

func newFakePositionStore(open []domain.Position) *fakePositionStore {
	return &fakePositionStore{
		open:    open,
		failIDs: make(map[string]error),
		applied: make(map[string]domain.ValuationUpdate),
	}
}

func (s *fakePositionStore) Create(ctx context.Context, pos domain.Position) error { return nil }

func (s *fakePositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}

func (s *fakePositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	started := s.listStarted
	s.listStarted = nil
	release := s.listRelease
	s.mu.Unlock()
	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.open, nil
}

func (s *fakePositionStore) ListRecent(ctx context.Context, limit int) ([]domain.Position, error) {
	return s.open, nil
}

func (s *fakePositionStore) ApplyValuation(ctx context.Context, id string, upd domain.ValuationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failIDs[id]; ok {
		return err
	}
	s.applied[id] = upd
	return nil
}

func (s *fakePositionStore) MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error {
	return nil
}

type fakePriceSource struct {
	mu          sync.Mutex
	calls       map[string]int
	failMarkets map[string]error
	yes, no     float64
}

func newFakePriceSource(yes, no float64) *fakePriceSource {
	return &fakePriceSource{
		calls:       make(map[string]int),
		failMarkets: make(map[string]error),
		yes:         yes,
		no:          no,
	}
}

func (f *fakePriceSource) GetMarketPrices(ctx context.Context, marketID string) (domain.MarketPriceSnapshot, error) {
	f.mu.Lock()
	f.calls[marketID]++
	f.mu.Unlock()

	if err, ok := f.failMarkets[marketID]; ok {
		return domain.MarketPriceSnapshot{}, err
	}
	return domain.MarketPriceSnapshot{
		MarketID:  marketID,
		YesPrice:  f.yes,
		NoPrice:   f.no,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (f *fakePriceSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakeSnapshotCache struct {
	mu    sync.Mutex
	snaps map[string]domain.MarketPriceSnapshot
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{snaps: make(map[string]domain.MarketPriceSnapshot)}
}

func (c *fakeSnapshotCache) SetSnapshot(ctx context.Context, snap domain.MarketPriceSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.MarketID] = snap
	return nil
}

func (c *fakeSnapshotCache) GetSnapshot(ctx context.Context, marketID string) (domain.MarketPriceSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[marketID]
	if !ok {
		return domain.MarketPriceSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

type fakeAlerter struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAlerter) Notify(ctx context.Context, event, title, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedPositions builds count positions spread round-robin over the given
// number of markets, all YES-side at entry 0.5 with a 10 stake.
func seedPositions(count, markets int) []domain.Position {
	positions := make([]domain.Position, 0, count)
	for i := 0; i < count; i++ {
		positions = append(positions, domain.Position{
			ID:            fmt.Sprintf("pos-%d", i),
			MarketID:      fmt.Sprintf("market-%d", i%markets),
			Side:          domain.SideYes,
			Bet:           10,
			EntryYesPrice: 0.5,
			EntryNoPrice:  0.5,
			Status:        domain.PositionStatusOpen,
		})
	}
	return positions
}

// --- tests ---

func TestForceUpdateRevaluesEveryPosition(t *testing.T) {
	store := newFakePositionStore(seedPositions(15, 8))
	prices := newFakePriceSource(0.6, 0.4)
	cache := newFakeSnapshotCache()

	trk := New(store, prices, cache, nil, Config{}, testLogger())

	report := trk.ForceUpdate(context.Background())

	assert.Equal(t, 15, report.TotalPositions)
	assert.Equal(t, 8, report.UniqueMarkets)
	assert.Equal(t, 15, report.UpdatedCount)
	assert.Equal(t, 0, report.ErrorCount)
	assert.False(t, report.Failed)

	// One fetch per unique market, regardless of position count.
	assert.Equal(t, 8, prices.callCount())

	// Every position got the new odds and a recomputed valuation.
	require.Len(t, store.applied, 15)
	upd := store.applied["pos-0"]
	assert.Equal(t, 0.6, upd.YesPrice)
	assert.Equal(t, 0.4, upd.NoPrice)
	assert.InDelta(t, 10/0.6, upd.ExpectedPayout, 0.001)
	assert.InDelta(t, ((0.6-0.5)/0.5)*10, upd.UnrealizedPnL, 0.001)

	// The cycle also refreshed the dashboard snapshot cache.
	cache.mu.Lock()
	assert.Len(t, cache.snaps, 8)
	cache.mu.Unlock()
}

func TestForceUpdateIsolatesFailedMarket(t *testing.T) {
	store := newFakePositionStore(seedPositions(15, 8))
	prices := newFakePriceSource(0.6, 0.4)
	prices.failMarkets["market-0"] = domain.ErrMarketNotFound

	trk := New(store, prices, nil, nil, Config{}, testLogger())

	report := trk.ForceUpdate(context.Background())

	// market-0 holds pos-0 and pos-8; everything else still updates.
	assert.Equal(t, 15, report.TotalPositions)
	assert.Equal(t, 8, report.UniqueMarkets)
	assert.Equal(t, 13, report.UpdatedCount)
	assert.Equal(t, 1, report.ErrorCount)
	assert.False(t, report.Failed)

	_, touched := store.applied["pos-0"]
	assert.False(t, touched, "positions of a failed market must stay untouched")
	_, touched = store.applied["pos-8"]
	assert.False(t, touched)
}

func TestForceUpdateIsolatesFailedWrite(t *testing.T) {
	store := newFakePositionStore(seedPositions(6, 3))
	store.failIDs["pos-2"] = errors.New("connection reset")
	prices := newFakePriceSource(0.7, 0.3)

	trk := New(store, prices, nil, nil, Config{}, testLogger())

	report := trk.ForceUpdate(context.Background())

	assert.Equal(t, 5, report.UpdatedCount)
	assert.Equal(t, 1, report.ErrorCount)
	assert.False(t, report.Failed)
}

func TestForceUpdateListFailureAbortsCycle(t *testing.T) {
	store := newFakePositionStore(nil)
	store.listErr = errors.New("db unreachable")
	prices := newFakePriceSource(0.5, 0.5)
	alerter := &fakeAlerter{}

	trk := New(store, prices, nil, alerter, Config{}, testLogger())

	report := trk.ForceUpdate(context.Background())

	assert.True(t, report.Failed)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Zero(t, report.TotalPositions)
	assert.Zero(t, prices.callCount())

	alerter.mu.Lock()
	require.Len(t, alerter.events, 1)
	assert.Equal(t, "tracker_run_failed", alerter.events[0])
	alerter.mu.Unlock()

	st := trk.Status()
	assert.True(t, st.LastRunFailed)
}

func TestForceUpdateWithNoOpenPositions(t *testing.T) {
	store := newFakePositionStore(nil)
	prices := newFakePriceSource(0.5, 0.5)

	trk := New(store, prices, nil, nil, Config{}, testLogger())

	report := trk.ForceUpdate(context.Background())

	assert.Zero(t, report.TotalPositions)
	assert.Zero(t, report.UniqueMarkets)
	assert.Zero(t, report.UpdatedCount)
	assert.Zero(t, report.ErrorCount)
	assert.False(t, report.Failed)
	assert.Zero(t, prices.callCount())
}

func TestStartStopIdempotent(t *testing.T) {
	store := newFakePositionStore(nil)
	prices := newFakePriceSource(0.5, 0.5)

	trk := New(store, prices, nil, nil, Config{}, testLogger())

	// Interval long enough that no tick fires during the test.
	trk.Start(time.Hour)
	trk.Start(time.Hour) // no-op, not a panic or error
	assert.True(t, trk.Status().IsActive)

	trk.Stop()
	assert.False(t, trk.Status().IsActive)
	trk.Stop() // no-op
	assert.False(t, trk.Status().IsActive)
}

func TestStatusBeforeFirstRun(t *testing.T) {
	store := newFakePositionStore(seedPositions(3, 3))
	prices := newFakePriceSource(0.5, 0.5)

	trk := New(store, prices, nil, nil, Config{}, testLogger())

	st := trk.Status()
	assert.False(t, st.IsActive)
	assert.False(t, st.LastRunFailed)
	assert.True(t, st.LastRunAt.IsZero())
	assert.Zero(t, st.TotalPositions)
	assert.Zero(t, st.UpdatedCount)
	assert.Zero(t, st.ErrorCount)
	assert.Zero(t, st.SkippedTicks)
}

func TestStatusReflectsLastRun(t *testing.T) {
	store := newFakePositionStore(seedPositions(4, 2))
	prices := newFakePriceSource(0.6, 0.4)

	trk := New(store, prices, nil, nil, Config{}, testLogger())

	base := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(250 * time.Millisecond)}
	trk.now = func() time.Time {
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}

	report := trk.ForceUpdate(context.Background())
	assert.Equal(t, int64(250), report.DurationMs)

	st := trk.Status()
	assert.False(t, st.IsActive)
	assert.Equal(t, base.Add(250*time.Millisecond), st.LastRunAt)
	assert.Equal(t, 4, st.TotalPositions)
	assert.Equal(t, 2, st.UniqueMarkets)
	assert.Equal(t, 4, st.UpdatedCount)
	assert.Equal(t, int64(250), st.DurationMs)
}

func TestStopLetsInFlightCycleFinish(t *testing.T) {
	store := newFakePositionStore(seedPositions(4, 2))
	started := make(chan struct{})
	release := make(chan struct{})
	store.listStarted = started
	store.listRelease = release
	prices := newFakePriceSource(0.6, 0.4)

	trk := New(store, prices, nil, nil, Config{}, testLogger())
	trk.Start(time.Hour)

	reports := make(chan RunReport, 1)
	go func() {
		reports <- trk.ForceUpdate(context.Background())
	}()

	// Stop arrives while the cycle is blocked inside the position load.
	<-started
	trk.Stop()
	assert.False(t, trk.Status().IsActive)

	// The cycle is not preempted: once unblocked it runs to completion and
	// publishes its report.
	close(release)
	report := <-reports

	assert.Equal(t, 4, report.TotalPositions)
	assert.Equal(t, 4, report.UpdatedCount)
	assert.False(t, report.Failed)

	st := trk.Status()
	assert.False(t, st.IsActive)
	assert.Equal(t, 4, st.UpdatedCount)
}

func TestTickSkippedWhileCycleRunning(t *testing.T) {
	store := newFakePositionStore(nil)
	prices := newFakePriceSource(0.5, 0.5)

	trk := New(store, prices, nil, nil, Config{}, testLogger())

	// Hold the cycle lock to simulate an in-flight cycle.
	trk.cycleMu.Lock()
	trk.tick(time.Minute)
	trk.cycleMu.Unlock()

	assert.Equal(t, 1, trk.Status().SkippedTicks)

	// With the lock free the tick runs and does not add another skip.
	trk.tick(time.Minute)
	assert.Equal(t, 1, trk.Status().SkippedTicks)
}
