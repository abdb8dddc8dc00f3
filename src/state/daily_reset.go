package state

import (
	"time"

	"mtm-hub/src/helpers"
	"mtm-hub/src/utils"
)

// -----------------------------------------------------------------------------

// CheckDailyReset clears every account when the date of now differs from the
// last reset date. The first run only records the date. A store failure
// leaves both memory and the date unchanged so the next call tries again.
func (s *AggregatorState) CheckDailyReset(now time.Time) (bool, error) {
	today := now.Format(utils.DateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastResetLoaded {
		date, found, err := s.store.GetLastResetDate()
		if err != nil {
			return false, helpers.NewStorageError("load last reset date", err)
		}
		if !found {
			if err := s.store.SetLastResetDate(today); err != nil {
				return false, helpers.NewStorageError("save last reset date", err)
			}
			date = today
		}
		s.lastReset = date
		s.lastResetLoaded = true
	}

	if s.lastReset == today {
		return false, nil
	}

	if err := s.store.ClearAll(); err != nil {
		return false, helpers.NewStorageError("daily reset", err)
	}
	if err := s.store.SetLastResetDate(today); err != nil {
		return false, helpers.NewStorageError("save last reset date", err)
	}

	s.resetMemory()
	s.epoch++
	s.logger.Info("Daily reset: %s -> %s", s.lastReset, today)
	s.lastReset = today
	return true, nil
}

// -----------------------------------------------------------------------------

// LastResetDate is empty until the first CheckDailyReset.
func (s *AggregatorState) LastResetDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReset
}
