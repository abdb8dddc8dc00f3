package utils

import "time"

// -----------------------------------------------------------------------------

// History down-sampling. One point per whole minute; the first value observed
// in a minute is kept.
const (
	HistoryBucket        = time.Minute
	HistoryTimeLayout    = "15:04:05"
	DateLayout           = "2006-01-02"
	MinPollInterval      = 2 * time.Second
	DefaultPollInterval  = 60 * time.Second
	DefaultCheckInterval = time.Second
	DefaultOpeningRetry  = 5 * time.Second
)

// -----------------------------------------------------------------------------

// BucketKey returns the down-sampling bucket of t ("HH:MM").
func BucketKey(t time.Time) string {
	return t.Format("15:04")
}

// -----------------------------------------------------------------------------

// MaxHistoryPoints is the upper bound of points per account per day between
// the opening cutoff and the end of the day.
func MaxHistoryPoints(openingHHMM int) int {
	minutesLeft := (24*60 - (openingHHMM/100*60 + openingHHMM%100))
	return int(time.Duration(minutesLeft) * time.Minute / HistoryBucket)
}
