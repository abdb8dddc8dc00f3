package aggregator

import (
	"context"

	"mtm-hub/src/models"
	"mtm-hub/src/utils"
)

// -----------------------------------------------------------------------------

// History returns today's down-sampled points for one account.
func (a *Aggregator) History(ctx context.Context, userID string) ([]models.MHistoryPoint, error) {
	a.CheckDailyReset(ctx, a.Clock.Now())

	account, err := a.lookup(userID)
	if err != nil {
		return nil, err
	}
	return a.State.History(account.UserID)
}

// MinuteMarkers lists the minutes that already have a history point.
func (a *Aggregator) MinuteMarkers(ctx context.Context, userID string) ([]string, error) {
	a.CheckDailyReset(ctx, a.Clock.Now())

	account, err := a.lookup(userID)
	if err != nil {
		return nil, err
	}
	return a.State.MinuteMarkers(account.UserID)
}

// -----------------------------------------------------------------------------

// ResetAccount clears one known account and its cached payload.
func (a *Aggregator) ResetAccount(ctx context.Context, userID string) error {
	account, err := a.lookup(userID)
	if err != nil {
		return err
	}
	if err := a.State.ResetAccount(account.UserID); err != nil {
		return err
	}
	a.Cache.Delete(ctx, account.UserID)
	return nil
}

// -----------------------------------------------------------------------------

func (a *Aggregator) ResetAll(ctx context.Context) error {
	if err := a.State.ResetAll(); err != nil {
		return err
	}
	a.Cache.Clear(ctx)
	return nil
}

// -----------------------------------------------------------------------------

// Snapshots returns the debug view of every configured account.
func (a *Aggregator) Snapshots() ([]models.MAccountSnapshot, error) {
	accounts := a.Accounts.Accounts()
	out := make([]models.MAccountSnapshot, 0, len(accounts))
	for _, acc := range accounts {
		snap, err := a.State.Snapshot(acc.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// Phase is the session phase right now, ignoring per-account capture state.
func (a *Aggregator) Phase() utils.Phase {
	return a.Gate.Classify(a.Clock.Now(), false)
}

// OpeningPending reports whether the account still needs its opening baseline.
func (a *Aggregator) OpeningPending(userID string) (bool, error) {
	opening, err := a.State.Opening(userID)
	if err != nil {
		return false, err
	}
	return !opening.Captured, nil
}
