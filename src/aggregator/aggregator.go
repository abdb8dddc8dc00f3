package aggregator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mtm-hub/src/helpers"
	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/observability"
	"mtm-hub/src/state"
	"mtm-hub/src/utils"

	"golang.org/x/sync/singleflight"
)

// -----------------------------------------------------------------------------

// Deps are the collaborators of an Aggregator. Exchanger is optional.
type Deps struct {
	Accounts  interfaces.IAccountDirectory
	Gate      *utils.TimeGate
	State     *state.AggregatorState
	Cache     interfaces.IResponseCache
	Client    interfaces.IQuoteClient
	Clock     interfaces.IClock
	Metrics   *observability.Metrics
	Exchanger interfaces.IDataExchanger
	Logger    *logger.Logger

	// FetchTimeout bounds one shared terminal fetch, whoever started it.
	FetchTimeout time.Duration
}

// DefaultFetchTimeout applies when Deps.FetchTimeout is zero.
const DefaultFetchTimeout = 10 * time.Second

// -----------------------------------------------------------------------------

// Aggregator is the only writer of opening baselines and stats. Inbound
// requests and the background poller both go through GetMTM.
type Aggregator struct {
	Deps
	flight singleflight.Group
}

// -----------------------------------------------------------------------------

func New(deps Deps) *Aggregator {
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = DefaultFetchTimeout
	}
	return &Aggregator{Deps: deps}
}

// SetExchanger wires the websocket hub after construction.
func (a *Aggregator) SetExchanger(ex interfaces.IDataExchanger) {
	a.Exchanger = ex
}

// -----------------------------------------------------------------------------

// GetMTM produces the dashboard response for one account at the current time.
func (a *Aggregator) GetMTM(ctx context.Context, userID string) (models.MMtmResponse, error) {
	now := a.Clock.Now()
	a.CheckDailyReset(ctx, now)

	account, err := a.lookup(userID)
	if err != nil {
		return models.MMtmResponse{}, err
	}

	opening, err := a.State.Opening(account.UserID)
	if err != nil {
		return models.MMtmResponse{}, err
	}

	phase := a.Gate.Classify(now, opening.Captured)
	a.Metrics.PhaseResponses.WithLabelValues(phase.String()).Inc()

	switch phase {
	case utils.PhaseOpeningUncaptured:
		return a.captureOpening(ctx, account)
	case utils.PhaseActive:
		return a.active(ctx, account, opening)
	default:
		a.Logger.Debug("%s: %s, returning zeros", account.UserID, phase)
		return zeroResponse(opening.Value), nil
	}
}

// -----------------------------------------------------------------------------

// CheckDailyReset runs the daily rollover check and drops cached payloads when
// a new day starts. Store failures are logged; the next call retries.
func (a *Aggregator) CheckDailyReset(ctx context.Context, now time.Time) bool {
	reset, err := a.State.CheckDailyReset(now)
	if err != nil {
		a.Logger.Error("Daily reset failed, will retry: %v", err)
		return false
	}
	if reset {
		a.Cache.Clear(ctx)
		a.Metrics.DailyResets.Inc()
	}
	return reset
}

// -----------------------------------------------------------------------------

func (a *Aggregator) lookup(userID string) (models.MAccount, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.MAccount{}, helpers.NewValidationError(helpers.ErrMissingAccountID.Error(), helpers.ErrMissingAccountID)
	}
	account, ok := a.Accounts.Lookup(userID)
	if !ok {
		return models.MAccount{}, helpers.NewNotFoundError(
			fmt.Sprintf("User %s not found or no IP configured", userID), helpers.ErrUnknownAccount)
	}
	return account, nil
}

// -----------------------------------------------------------------------------

// captureOpening performs the single opening fetch. Concurrent callers share
// it; a failure leaves the baseline uncaptured.
func (a *Aggregator) captureOpening(ctx context.Context, account models.MAccount) (models.MMtmResponse, error) {
	ch := a.flight.DoChan("opening:"+account.UserID, func() (interface{}, error) {
		fctx, cancel := a.fetchContext(ctx)
		defer cancel()

		quote, err := a.fetch(fctx, account)
		if err != nil {
			return nil, err
		}

		captured, err := a.State.CaptureOpening(account.UserID, quote.AbsoluteMTM, quote.FetchedAt)
		if err != nil {
			return nil, err
		}
		if captured {
			a.Metrics.OpeningCaptures.Inc()
		}

		opening, err := a.State.Opening(account.UserID)
		if err != nil {
			return nil, err
		}
		resp := zeroResponse(opening.Value)
		a.broadcast(account, resp)
		return resp, nil
	})
	return a.wait(ctx, account, ch)
}

// -----------------------------------------------------------------------------

func (a *Aggregator) active(ctx context.Context, account models.MAccount, opening models.MOpeningBaseline) (models.MMtmResponse, error) {
	if _, ok := a.Cache.Get(ctx, account.UserID); ok {
		a.Metrics.RecordCache(true)
		stats, err := a.State.Stats(account.UserID)
		if err != nil {
			return models.MMtmResponse{}, err
		}
		return buildResponse(stats, opening, true), nil
	}
	a.Metrics.RecordCache(false)

	ch := a.flight.DoChan("active:"+account.UserID, func() (interface{}, error) {
		fctx, cancel := a.fetchContext(ctx)
		defer cancel()

		gen := a.State.Generation(account.UserID)
		quote, err := a.fetch(fctx, account)
		if err != nil {
			return nil, err
		}

		stats, current, recorded, err := a.State.RecordFetch(account.UserID, gen, quote.AbsoluteMTM, quote.FetchedAt)
		if err != nil {
			return nil, err
		}
		if !recorded {
			a.Logger.Info("%s was reset during the fetch, dropping %.2f", account.UserID, quote.AbsoluteMTM)
			return buildResponse(stats, current, false), nil
		}
		a.Cache.Set(fctx, account.UserID, models.MCacheEntry{RawPayload: quote.RawPayload, FetchedAt: quote.FetchedAt})

		resp := buildResponse(stats, current, false)
		a.broadcast(account, resp)
		return resp, nil
	})
	return a.wait(ctx, account, ch)
}

// -----------------------------------------------------------------------------

// fetchContext detaches the shared fetch from the caller that started it; one
// waiter leaving must not cancel it for the others. FetchTimeout bounds it.
func (a *Aggregator) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.FetchTimeout)
}

// wait returns the flight result, or gives up when the caller's ctx ends while
// the shared fetch carries on for the other waiters.
func (a *Aggregator) wait(ctx context.Context, account models.MAccount, ch <-chan singleflight.Result) (models.MMtmResponse, error) {
	select {
	case res := <-ch:
		if res.Err != nil {
			return models.MMtmResponse{}, res.Err
		}
		return res.Val.(models.MMtmResponse), nil
	case <-ctx.Done():
		return models.MMtmResponse{}, helpers.NewFetchError("gave up waiting for "+account.UserID, ctx.Err())
	}
}

// -----------------------------------------------------------------------------

func (a *Aggregator) fetch(ctx context.Context, account models.MAccount) (models.MQuote, error) {
	start := time.Now()
	quote, err := a.Client.FetchMTM(ctx, account)
	a.Metrics.RecordFetch(time.Since(start).Seconds(), err)
	if err != nil {
		a.Logger.Warning("Fetch failed for %s: %v", account.UserID, err)
		return models.MQuote{}, err
	}
	a.Logger.Debug("Fetched %s: absolute %.2f", account.UserID, quote.AbsoluteMTM)
	return quote, nil
}

// -----------------------------------------------------------------------------

func (a *Aggregator) broadcast(account models.MAccount, resp models.MMtmResponse) {
	if a.Exchanger == nil {
		return
	}
	a.Exchanger.Broadcast(&models.MMtmUpdate{
		Type:      "UPDATE",
		UserID:    account.UserID,
		Alias:     account.Alias,
		Data:      resp,
		Timestamp: a.Clock.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------

func zeroResponse(opening float64) models.MMtmResponse {
	return models.MMtmResponse{Status: models.StatusSuccess, OpeningMTM: opening}
}

func buildResponse(stats models.MAccountStats, opening models.MOpeningBaseline, cached bool) models.MMtmResponse {
	stats = stats.Finite()
	return models.MMtmResponse{
		Status:     models.StatusSuccess,
		Response:   stats.CurrentMTM,
		MaxMTM:     stats.MaxMTM,
		MinMTM:     stats.MinMTM,
		OpeningMTM: opening.Value,
		Cached:     cached,
	}
}

// ErrorResponse is the body returned alongside a non-2xx status.
func ErrorResponse(err error) models.MMtmResponse {
	msg := err.Error()
	if helpers.IsValidation(err) || helpers.IsNotFound(err) {
		msg = helpers.PublicMessage(err)
	}
	return models.MMtmResponse{Status: models.StatusError, Error: msg}
}
