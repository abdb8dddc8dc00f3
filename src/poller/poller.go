package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mtm-hub/src/helpers"
	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/observability"
	"mtm-hub/src/utils"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------

// Options configure a Poller. Zero durations fall back to the defaults in
// utils; Interval is never below utils.MinPollInterval.
type Options struct {
	Interval      time.Duration
	CheckInterval time.Duration
	JobTimeout    time.Duration
	Concurrency   int
	// OpeningRetry spaces opening attempts for one account inside the
	// opening minute.
	OpeningRetry time.Duration
	// Calendar, when set, keeps the poller idle on non-trading days.
	Calendar *utils.TradingCalendar
}

// CycleReport summarises one dispatch over a set of accounts.
type CycleReport struct {
	Accounts int           `json:"accounts"`
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration"`
}

// Stats is the poller state exposed on /status.
type Stats struct {
	Running      bool      `json:"running"`
	Cycles       int64     `json:"cycles"`
	LastCycle    time.Time `json:"last_cycle"`
	LastFailures int       `json:"last_failures"`
	Interval     string    `json:"interval"`
}

// -----------------------------------------------------------------------------

// Poller is the single background loop that captures opening baselines and
// keeps stats warm. All work goes through the IMtmDriver.
type Poller struct {
	driver   interfaces.IMtmDriver
	accounts interfaces.IAccountDirectory
	gate     *utils.TimeGate
	clock    interfaces.IClock
	metrics  *observability.Metrics
	logger   *logger.Logger
	opts     Options

	mu           sync.Mutex
	ctx          context.Context
	cancelFunc   context.CancelFunc
	lastCycle    time.Time
	lastFailures int
	cycles       int64
	openingTried map[string]time.Time

	busy     atomic.Bool
	inflight sync.WaitGroup
}

// -----------------------------------------------------------------------------

func New(driver interfaces.IMtmDriver, accounts interfaces.IAccountDirectory, gate *utils.TimeGate,
	clock interfaces.IClock, metrics *observability.Metrics, log *logger.Logger, opts Options) *Poller {

	if opts.Interval < utils.MinPollInterval {
		opts.Interval = utils.MinPollInterval
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = utils.DefaultCheckInterval
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.OpeningRetry <= 0 {
		opts.OpeningRetry = utils.DefaultOpeningRetry
	}

	return &Poller{
		driver:   driver,
		accounts: accounts,
		gate:     gate,
		clock:    clock,
		metrics:  metrics,
		logger:   log,
		opts:     opts,

		openingTried: map[string]time.Time{},
	}
}

// -----------------------------------------------------------------------------

// Start launches the loop. It stops when parentCtx is done or Stop is called.
func (p *Poller) Start(parentCtx context.Context, wg *sync.WaitGroup) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return fmt.Errorf("poller is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	p.ctx = ctx
	p.cancelFunc = cancel

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.loop(ctx)
	}()

	p.logger.Info("Background poller started (interval %v, check %v, workers %d)",
		p.opts.Interval, p.opts.CheckInterval, p.opts.Concurrency)
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the loop; in-flight cycles finish within their job timeout.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil
	}
	p.logger.Info("Stopping background poller...")
	p.cancelFunc()
	p.ctx = nil
	p.cancelFunc = nil
	return nil
}

// -----------------------------------------------------------------------------

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.opts.CheckInterval)
	defer ticker.Stop()
	defer p.inflight.Wait()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// tick runs Check off the loop goroutine so a slow cycle never delays the
// schedule. Overlapping checks are skipped.
func (p *Poller) tick(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		p.logger.Debug("Previous poll still running, skipping tick")
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer p.busy.Store(false)
		p.Check(ctx)
	}()
}

// -----------------------------------------------------------------------------

// Check performs one scheduling decision at the current clock time and runs
// the resulting cycle inline.
func (p *Poller) Check(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Poller check panicked: %v", r)
		}
	}()

	now := p.clock.Now()
	if p.driver.CheckDailyReset(ctx, now) {
		p.mu.Lock()
		p.lastCycle = time.Time{}
		clear(p.openingTried)
		p.mu.Unlock()
	}

	if p.opts.Calendar != nil && !p.opts.Calendar.IsTradingDay(now) {
		return
	}

	if p.gate.IsOpeningMinute(now) {
		pending := p.pendingOpenings(now)
		if len(pending) > 0 {
			p.logger.Info("Opening minute: capturing baseline for %d account(s)", len(pending))
			p.dispatch(ctx, pending)
		}
		return
	}

	if !p.gate.Classify(now, true).AllowsFetch() {
		return
	}

	p.mu.Lock()
	due := p.lastCycle.IsZero() || now.Sub(p.lastCycle) >= p.opts.Interval
	if due {
		p.lastCycle = now
	}
	p.mu.Unlock()

	if due {
		p.dispatch(ctx, p.accounts.Accounts())
	}
}

// -----------------------------------------------------------------------------

// RunOnce dispatches every account immediately, whatever the schedule says.
// The aggregator still applies the session phase to each request.
func (p *Poller) RunOnce(ctx context.Context) CycleReport {
	return p.dispatch(ctx, p.accounts.Accounts())
}

// -----------------------------------------------------------------------------

// pendingOpenings lists accounts still missing a baseline whose last attempt
// is at least OpeningRetry old, and stamps them as attempted at now.
func (p *Poller) pendingOpenings(now time.Time) []models.MAccount {
	pending := []models.MAccount{}
	for _, acc := range p.accounts.Accounts() {
		ok, err := p.driver.OpeningPending(acc.UserID)
		if err != nil {
			p.logger.Warning("Cannot read opening state for %s: %v", acc.UserID, err)
			continue
		}
		if !ok {
			continue
		}

		p.mu.Lock()
		last, tried := p.openingTried[acc.UserID]
		retry := !tried || now.Sub(last) >= p.opts.OpeningRetry
		if retry {
			p.openingTried[acc.UserID] = now
		}
		p.mu.Unlock()

		if retry {
			pending = append(pending, acc)
		}
	}
	return pending
}

// -----------------------------------------------------------------------------

// dispatch fans the accounts out over a bounded worker pool. A failing or
// panicking account never stops the others.
func (p *Poller) dispatch(ctx context.Context, accounts []models.MAccount) CycleReport {
	start := time.Now()
	var failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for _, acc := range accounts {
		g.Go(func() error {
			if !p.runJob(ctx, acc) {
				failures.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	report := CycleReport{Accounts: len(accounts), Failures: int(failures.Load()), Duration: time.Since(start)}

	p.mu.Lock()
	p.cycles++
	p.lastFailures = report.Failures
	p.mu.Unlock()

	p.metrics.PollerCycles.Inc()
	p.metrics.PollerCycleDuration.Observe(report.Duration.Seconds())
	p.logger.Debug("Poll cycle: %d account(s), %d failure(s) in %v", report.Accounts, report.Failures, report.Duration)
	return report
}

// -----------------------------------------------------------------------------

func (p *Poller) runJob(ctx context.Context, acc models.MAccount) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Poll job for %s panicked: %v", acc.UserID, r)
			p.metrics.PollerAccountErrors.Inc()
			ok = false
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, p.opts.JobTimeout)
	defer cancel()

	if _, err := p.driver.GetMTM(jobCtx, acc.UserID); err != nil {
		if helpers.IsFetchFailure(err) {
			p.logger.Warning("Background fetch failed for %s: %v", acc.UserID, err)
		} else {
			p.logger.Error("Background poll of %s failed: %v", acc.UserID, err)
		}
		p.metrics.PollerAccountErrors.Inc()
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Running:      p.ctx != nil,
		Cycles:       p.cycles,
		LastCycle:    p.lastCycle,
		LastFailures: p.lastFailures,
		Interval:     p.opts.Interval.String(),
	}
}
