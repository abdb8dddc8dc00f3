package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mtm-hub/src/config"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/observability"
	"mtm-hub/src/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	mu       sync.Mutex
	calls    map[string]int
	captured map[string]bool
	failing  map[string]bool
	panicky  map[string]bool
	resets   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		calls:    map[string]int{},
		captured: map[string]bool{},
		failing:  map[string]bool{},
		panicky:  map[string]bool{},
	}
}

func (d *fakeDriver) GetMTM(ctx context.Context, userID string) (models.MMtmResponse, error) {
	d.mu.Lock()
	d.calls[userID]++
	fail, boom := d.failing[userID], d.panicky[userID]
	if !fail && !boom {
		d.captured[userID] = true
	}
	d.mu.Unlock()

	if boom {
		panic("terminal exploded")
	}
	if fail {
		return models.MMtmResponse{}, errors.New("unreachable")
	}
	return models.MMtmResponse{Status: models.StatusSuccess}, nil
}

func (d *fakeDriver) CheckDailyReset(ctx context.Context, now time.Time) bool {
	return false
}

func (d *fakeDriver) OpeningPending(userID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.captured[userID], nil
}

func (d *fakeDriver) count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[id]
}

func at(d, hh, mm, ss int) time.Time {
	return time.Date(2025, 3, d, hh, mm, ss, 0, time.UTC)
}

func newPoller(t *testing.T, driver *fakeDriver, clock *utils.FakeClock, opts Options) (*Poller, *observability.Metrics) {
	t.Helper()
	session := models.MSessionConfig{OpeningTime: "09:15", StartTime: "09:16"}
	dir, err := config.NewAccountDirectory(models.MAccountsFile{Users: []models.MAccount{
		{UserID: "A1", Address: "h:1"},
		{UserID: "B2", Address: "h:2"},
		{UserID: "C3", Address: "h:3"},
	}}, session)
	require.NoError(t, err)
	m := observability.NewMetrics("")
	return New(driver, dir, dir.TimeGate(), clock, m, logger.NewNopLogger(), opts), m
}

func TestPreOpenAndWarmupDispatchNothing(t *testing.T) {
	d := newFakeDriver()
	clock := utils.NewFakeClock(at(10, 9, 0, 0))
	p, _ := newPoller(t, d, clock, Options{Interval: 5 * time.Second, Concurrency: 2})

	p.Check(context.Background())
	clock.Set(at(10, 9, 14, 59))
	p.Check(context.Background())
	assert.Zero(t, d.count("A1"))
	assert.Zero(t, p.Stats().Cycles)
}

func TestOpeningMinuteCapturesOnlyPending(t *testing.T) {
	d := newFakeDriver()
	d.captured["B2"] = true
	clock := utils.NewFakeClock(at(10, 9, 15, 0))
	p, _ := newPoller(t, d, clock, Options{Interval: 5 * time.Second, Concurrency: 2})

	p.Check(context.Background())
	assert.Equal(t, 1, d.count("A1"))
	assert.Equal(t, 0, d.count("B2"))
	assert.Equal(t, 1, d.count("C3"))

	// every account captured: later checks in the minute do nothing
	clock.Set(at(10, 9, 15, 1))
	p.Check(context.Background())
	assert.Equal(t, 1, d.count("A1"))
}

func TestFailedOpeningRetriesAreSpaced(t *testing.T) {
	d := newFakeDriver()
	d.failing["A1"] = true
	d.captured["B2"] = true
	d.captured["C3"] = true
	clock := utils.NewFakeClock(at(10, 9, 15, 0))
	p, m := newPoller(t, d, clock, Options{Interval: 5 * time.Second, OpeningRetry: 5 * time.Second})

	p.Check(context.Background())
	assert.Equal(t, 1, d.count("A1"))

	for s := 1; s < 5; s++ {
		clock.Set(at(10, 9, 15, s))
		p.Check(context.Background())
	}
	assert.Equal(t, 1, d.count("A1"))

	clock.Set(at(10, 9, 15, 5))
	p.Check(context.Background())
	assert.Equal(t, 2, d.count("A1"))

	// the terminal comes back: next allowed attempt captures
	d.mu.Lock()
	d.failing["A1"] = false
	d.mu.Unlock()
	clock.Set(at(10, 9, 15, 10))
	p.Check(context.Background())
	clock.Set(at(10, 9, 15, 20))
	p.Check(context.Background())
	assert.Equal(t, 3, d.count("A1"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollerAccountErrors))
}

func TestActiveRespectsInterval(t *testing.T) {
	d := newFakeDriver()
	clock := utils.NewFakeClock(at(10, 9, 16, 0))
	p, _ := newPoller(t, d, clock, Options{Interval: 5 * time.Second, Concurrency: 3})

	p.Check(context.Background())
	assert.Equal(t, 1, d.count("A1"))

	clock.Advance(4 * time.Second)
	p.Check(context.Background())
	assert.Equal(t, 1, d.count("A1"))

	clock.Advance(time.Second)
	p.Check(context.Background())
	assert.Equal(t, 2, d.count("A1"))
	assert.Equal(t, 2, d.count("C3"))
	assert.Equal(t, int64(2), p.Stats().Cycles)
}

func TestIntervalIsClamped(t *testing.T) {
	p, _ := newPoller(t, newFakeDriver(), utils.NewFakeClock(at(10, 9, 0, 0)), Options{Interval: 100 * time.Millisecond})
	assert.Equal(t, utils.MinPollInterval.String(), p.Stats().Interval)
}

func TestFailuresAndPanicsAreIsolated(t *testing.T) {
	d := newFakeDriver()
	d.failing["A1"] = true
	d.panicky["B2"] = true
	clock := utils.NewFakeClock(at(10, 10, 0, 0))
	p, m := newPoller(t, d, clock, Options{Interval: 5 * time.Second, Concurrency: 1})

	report := p.RunOnce(context.Background())
	assert.Equal(t, 3, report.Accounts)
	assert.Equal(t, 2, report.Failures)
	assert.Equal(t, 1, d.count("C3"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollerAccountErrors))
	assert.Equal(t, 2, p.Stats().LastFailures)
}

func TestHolidaysAreSkipped(t *testing.T) {
	d := newFakeDriver()
	clock := utils.NewFakeClock(time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)) // Sunday
	p, _ := newPoller(t, d, clock, Options{Interval: 5 * time.Second, Calendar: utils.GetCalendar("", time.UTC)})

	p.Check(context.Background())
	assert.Zero(t, d.count("A1"))
}

func TestStartStop(t *testing.T) {
	d := newFakeDriver()
	clock := utils.NewFakeClock(at(10, 10, 0, 0))
	p, _ := newPoller(t, d, clock, Options{Interval: 5 * time.Second, CheckInterval: 5 * time.Millisecond, Concurrency: 3})

	var wg sync.WaitGroup
	require.NoError(t, p.Start(context.Background(), &wg))
	assert.Error(t, p.Start(context.Background(), &wg))
	assert.True(t, p.Stats().Running)

	assert.Eventually(t, func() bool { return d.count("A1") >= 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	wg.Wait()
	assert.False(t, p.Stats().Running)
	// clock never advanced past the interval: one cycle only
	assert.Equal(t, 1, d.count("A1"))
}
