package interfaces

import (
	"context"
	"time"

	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------
// IMtmDriver is the slice of the aggregator the background poller drives.
// -----------------------------------------------------------------------------

type IMtmDriver interface {
	GetMTM(ctx context.Context, userID string) (models.MMtmResponse, error)

	// CheckDailyReset reports whether state was cleared for a new day.
	CheckDailyReset(ctx context.Context, now time.Time) bool

	// OpeningPending is true while the account has no baseline today.
	OpeningPending(userID string) (bool, error)
}
