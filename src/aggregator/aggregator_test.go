package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mtm-hub/src/cache"
	"mtm-hub/src/config"
	"mtm-hub/src/helpers"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/observability"
	"mtm-hub/src/state"
	"mtm-hub/src/storage"
	"mtm-hub/src/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns scripted absolute MTMs and counts calls per account.
type fakeClient struct {
	mu     sync.Mutex
	clock  *utils.FakeClock
	values map[string]float64
	err    error
	calls  map[string]int
	block  chan struct{}
}

func newFakeClient(clock *utils.FakeClock) *fakeClient {
	return &fakeClient{clock: clock, values: map[string]float64{}, calls: map[string]int{}}
}

func (f *fakeClient) FetchMTM(ctx context.Context, account models.MAccount) (models.MQuote, error) {
	f.mu.Lock()
	f.calls[account.UserID]++
	v, err, block := f.values[account.UserID], f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.MQuote{}, helpers.NewFetchError("fetch "+account.UserID, ctx.Err())
		}
	}
	if err != nil {
		return models.MQuote{}, helpers.NewFetchError("fetch "+account.UserID, err)
	}
	return models.MQuote{
		UserID:      account.UserID,
		AbsoluteMTM: v,
		RawPayload:  []byte(fmt.Sprintf(`{"response": %v}`, v)),
		FetchedAt:   f.clock.Now(),
	}, nil
}

func (f *fakeClient) set(id string, v float64) {
	f.mu.Lock()
	f.values[id] = v
	f.mu.Unlock()
}

func (f *fakeClient) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeClient) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	return f.block
}

func (f *fakeClient) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block != nil {
		close(f.block)
		f.block = nil
	}
}

func (f *fakeClient) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type recordingExchanger struct {
	mu      sync.Mutex
	updates []*models.MMtmUpdate
}

func (r *recordingExchanger) Broadcast(u *models.MMtmUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}
func (r *recordingExchanger) Start() error { return nil }
func (r *recordingExchanger) Stop() error  { return nil }

type fixture struct {
	agg     *Aggregator
	clock   *utils.FakeClock
	client  *fakeClient
	state   *state.AggregatorState
	metrics *observability.Metrics
	ex      *recordingExchanger
}

func at(d, hh, mm, ss int) time.Time {
	return time.Date(2025, 3, d, hh, mm, ss, 0, time.UTC)
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	session := models.MSessionConfig{OpeningTime: "09:15", StartTime: "09:16"}
	dir, err := config.NewAccountDirectory(models.MAccountsFile{Users: []models.MAccount{
		{UserID: "A1", Address: "10.0.0.1:8556", Alias: "desk-1"},
		{UserID: "B2", Address: "10.0.0.2:8556"},
	}}, session)
	require.NoError(t, err)

	clock := utils.NewFakeClock(at(10, 9, 0, 0))
	log := logger.NewNopLogger()
	st := state.New(storage.NewMemoryStore(), log)
	c := cache.NewMemoryCache(ttl, 0, clock)
	t.Cleanup(func() { c.Close() })

	f := &fixture{
		clock:   clock,
		client:  newFakeClient(clock),
		state:   st,
		metrics: observability.NewMetrics(""),
		ex:      &recordingExchanger{},
	}
	f.agg = New(Deps{
		Accounts:  dir,
		Gate:      dir.TimeGate(),
		State:     st,
		Cache:     c,
		Client:    f.client,
		Clock:     clock,
		Metrics:   f.metrics,
		Exchanger: f.ex,
		Logger:    log,
	})
	return f
}

func (f *fixture) get(t *testing.T, id string) models.MMtmResponse {
	t.Helper()
	resp, err := f.agg.GetMTM(context.Background(), id)
	require.NoError(t, err)
	return resp
}

func TestEndToEndTradingDay(t *testing.T) {
	f := newFixture(t, 2*time.Second)

	// pre-open
	resp := f.get(t, "A1")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess}, resp)
	assert.Equal(t, 0, f.client.count("A1"))

	// opening minute
	f.clock.Set(at(10, 9, 15, 0))
	f.client.set("A1", 100)
	resp = f.get(t, "A1")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, OpeningMTM: 100}, resp)
	assert.Equal(t, 1, f.client.count("A1"))

	// second request in the same minute: zeros, no fetch
	f.clock.Set(at(10, 9, 15, 40))
	f.client.set("A1", 777)
	resp = f.get(t, "A1")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, OpeningMTM: 100}, resp)
	assert.Equal(t, 1, f.client.count("A1"))

	// start
	f.clock.Set(at(10, 9, 16, 0))
	f.client.set("A1", 130)
	resp = f.get(t, "A1")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, Response: 30, MaxMTM: 30, MinMTM: 30, OpeningMTM: 100}, resp)
	assert.Equal(t, 2, f.client.count("A1"))

	// within ttl
	f.clock.Set(at(10, 9, 16, 1))
	resp = f.get(t, "A1")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, Response: 30, MaxMTM: 30, MinMTM: 30, OpeningMTM: 100, Cached: true}, resp)
	assert.Equal(t, 2, f.client.count("A1"))

	f.clock.Set(at(10, 9, 17, 0))
	f.client.set("A1", 80)
	resp = f.get(t, "A1")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, Response: -20, MaxMTM: 30, MinMTM: -20, OpeningMTM: 100}, resp)
	assert.Equal(t, 3, f.client.count("A1"))

	h, err := f.agg.History(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, []models.MHistoryPoint{{Timestamp: "09:16:00", MTM: 30}, {Timestamp: "09:17:00", MTM: -20}}, h)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OpeningCaptures))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheRequests.WithLabelValues("hit")))
}

func TestPreOpenAlwaysZeroWithoutFetch(t *testing.T) {
	f := newFixture(t, time.Second)
	_, err := f.state.UpdateStats("A1", 55)
	require.NoError(t, err)

	for _, ts := range []time.Time{at(10, 0, 0, 0), at(10, 6, 30, 0), at(10, 9, 14, 59)} {
		f.clock.Set(ts)
		resp := f.get(t, "A1")
		assert.Zero(t, resp.Response)
		assert.Zero(t, resp.MaxMTM)
		assert.Zero(t, resp.MinMTM)
	}
	assert.Equal(t, 0, f.client.count("A1"))
}

func TestWarmupReturnsStoredOpening(t *testing.T) {
	f := newFixture(t, time.Second)
	f.agg.Gate = &utils.TimeGate{Opening: 915, Start: 920}

	f.clock.Set(at(10, 9, 15, 10))
	f.client.set("A1", 250)
	f.get(t, "A1")

	f.clock.Set(at(10, 9, 18, 0))
	resp := f.get(t, "A1")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, OpeningMTM: 250}, resp)
	assert.Equal(t, 1, f.client.count("A1"))
}

func TestCacheExpiryTriggersExactlyOneFetch(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	f.clock.Set(at(10, 10, 0, 0))
	f.client.set("A1", 10)

	f.get(t, "A1")
	f.clock.Advance(1999 * time.Millisecond)
	assert.True(t, f.get(t, "A1").Cached)
	assert.Equal(t, 1, f.client.count("A1"))

	f.clock.Advance(time.Millisecond)
	assert.False(t, f.get(t, "A1").Cached)
	assert.Equal(t, 2, f.client.count("A1"))
}

func TestMissingBaselineCountsAsZero(t *testing.T) {
	f := newFixture(t, time.Second)
	f.clock.Set(at(10, 11, 0, 0))
	f.client.set("A1", 42)

	resp := f.get(t, "A1")
	assert.Equal(t, 42.0, resp.Response)
	assert.Zero(t, resp.OpeningMTM)
}

func TestFetchFailureLeavesStateAlone(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	f.clock.Set(at(10, 10, 0, 0))
	f.client.set("A1", 10)
	f.get(t, "A1")

	f.clock.Advance(5 * time.Second)
	f.client.fail(errors.New("connection refused"))
	_, err := f.agg.GetMTM(context.Background(), "A1")
	assert.True(t, helpers.IsFetchFailure(err))
	assert.Equal(t, models.StatusError, ErrorResponse(err).Status)

	stats, err := f.state.Stats("A1")
	require.NoError(t, err)
	assert.Equal(t, models.MAccountStats{CurrentMTM: 10, MaxMTM: 10, MinMTM: 10, Updates: 1}, stats)

	// nothing was cached, so the next call fetches again
	f.client.fail(nil)
	f.client.set("A1", 12)
	assert.Equal(t, 12.0, f.get(t, "A1").Response)
	assert.Equal(t, 3, f.client.count("A1"))
}

func TestFailedOpeningCanBeRetriedWithinTheMinute(t *testing.T) {
	f := newFixture(t, time.Second)
	f.clock.Set(at(10, 9, 15, 0))
	f.client.fail(errors.New("timeout"))

	_, err := f.agg.GetMTM(context.Background(), "A1")
	assert.True(t, helpers.IsFetchFailure(err))
	pending, err := f.agg.OpeningPending("A1")
	require.NoError(t, err)
	assert.True(t, pending)

	f.client.fail(nil)
	f.client.set("A1", 90)
	f.clock.Set(at(10, 9, 15, 30))
	assert.Equal(t, 90.0, f.get(t, "A1").OpeningMTM)
	assert.Equal(t, 2, f.client.count("A1"))
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t, time.Second)
	f.clock.Set(at(10, 10, 0, 0))

	_, err := f.agg.GetMTM(context.Background(), "")
	assert.True(t, helpers.IsValidation(err))
	assert.ErrorIs(t, err, helpers.ErrMissingAccountID)

	_, err = f.agg.GetMTM(context.Background(), "nobody")
	assert.True(t, helpers.IsNotFound(err))
	assert.Equal(t, "User nobody not found or no IP configured", ErrorResponse(err).Error)

	snaps, err := f.agg.Snapshots()
	require.NoError(t, err)
	for _, s := range snaps {
		assert.Zero(t, s.HistoryPoints)
	}
	assert.Equal(t, 0, f.client.count("nobody"))
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	f.clock.Set(at(10, 10, 0, 0))
	f.client.set("A1", 5)
	f.client.block = make(chan struct{})

	var wg sync.WaitGroup
	results := make(chan models.MMtmResponse, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.agg.GetMTM(context.Background(), "A1")
			assert.NoError(t, err)
			results <- resp
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.client.block)
	wg.Wait()
	close(results)

	assert.Equal(t, 1, f.client.count("A1"))
	for r := range results {
		assert.Equal(t, 5.0, r.Response)
	}
	stats, _ := f.state.Stats("A1")
	assert.Equal(t, int64(1), stats.Updates)
}

func TestDailyResetOnNextRequest(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.clock.Set(at(10, 9, 15, 0))
	f.client.set("A1", 100)
	f.get(t, "A1")
	f.clock.Set(at(10, 9, 30, 0))
	f.client.set("A1", 150)
	f.get(t, "A1")

	f.clock.Set(at(11, 9, 30, 0))
	f.client.set("A1", 160)
	resp := f.get(t, "A1")
	assert.False(t, resp.Cached, "cache is dropped with the day")
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, Response: 160, MaxMTM: 160, MinMTM: 160}, resp)

	h, err := f.agg.History(context.Background(), "A1")
	require.NoError(t, err)
	assert.Len(t, h, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DailyResets))
}

func TestResetAccountClearsCacheAndStats(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.clock.Set(at(10, 10, 0, 0))
	f.client.set("A1", 10)
	f.get(t, "A1")

	require.NoError(t, f.agg.ResetAccount(context.Background(), "A1"))
	require.NoError(t, f.agg.ResetAccount(context.Background(), "A1"))
	assert.True(t, helpers.IsNotFound(f.agg.ResetAccount(context.Background(), "ZZ")))

	f.client.set("A1", 3)
	resp := f.get(t, "A1")
	assert.False(t, resp.Cached)
	assert.Equal(t, 3.0, resp.MaxMTM)

	require.NoError(t, f.agg.ResetAll(context.Background()))
	stats, _ := f.state.Stats("A1")
	assert.Equal(t, int64(0), stats.Updates)
}

func TestBroadcastAfterFreshFetch(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.clock.Set(at(10, 10, 0, 0))
	f.client.set("A1", 10)
	f.get(t, "A1")
	f.get(t, "A1") // cached, no broadcast

	require.Len(t, f.ex.updates, 1)
	u := f.ex.updates[0]
	assert.Equal(t, "UPDATE", u.Type)
	assert.Equal(t, "desk-1", u.Alias)
	assert.Equal(t, 10.0, u.Data.Response)
}

func TestCallerDeadlineAbandonsSlowFetch(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	f.agg.FetchTimeout = 200 * time.Millisecond
	f.clock.Set(at(10, 10, 0, 0))
	f.client.set("A1", 5)
	f.client.hold()
	defer f.client.release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.agg.GetMTM(ctx, "A1")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, helpers.IsFetchFailure(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 150*time.Millisecond)

	// the shared fetch itself is bounded by FetchTimeout
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.FetchTotal.WithLabelValues(observability.OutcomeFailure)) == 1
	}, time.Second, 10*time.Millisecond)

	stats, _ := f.state.Stats("A1")
	assert.Equal(t, int64(0), stats.Updates)
}

func TestResetDuringFetchIsNotUndone(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.clock.Set(at(10, 9, 15, 0))
	f.client.set("A1", 100)
	assert.Equal(t, 100.0, f.get(t, "A1").OpeningMTM)

	f.clock.Set(at(10, 9, 20, 0))
	f.client.set("A1", 150)
	f.client.hold()

	done := make(chan models.MMtmResponse, 1)
	go func() {
		resp, err := f.agg.GetMTM(context.Background(), "A1")
		assert.NoError(t, err)
		done <- resp
	}()
	require.Eventually(t, func() bool { return f.client.count("A1") == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.agg.ResetAccount(context.Background(), "A1"))
	f.client.release()
	resp := <-done
	assert.False(t, resp.Cached)
	assert.Equal(t, 0.0, resp.Response)

	snap, err := f.state.Snapshot("A1")
	require.NoError(t, err)
	assert.False(t, snap.Opening.Captured)
	assert.Equal(t, int64(0), snap.Stats.Updates)
	assert.Equal(t, 0, snap.HistoryPoints)

	// nothing was cached, so the next request fetches against the cleared baseline
	resp = f.get(t, "A1")
	assert.False(t, resp.Cached)
	assert.Equal(t, models.MMtmResponse{Status: models.StatusSuccess, Response: 150, MaxMTM: 150, MinMTM: 150}, resp)
	assert.Equal(t, 3, f.client.count("A1"))
}
