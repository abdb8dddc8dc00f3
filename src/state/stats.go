package state

import (
	"time"

	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// Widen applies one relative MTM to the stats: current is overwritten and the
// bounds only ever grow.
func Widen(s models.MAccountStats, relative float64) models.MAccountStats {
	s.CurrentMTM = relative
	if relative > s.MaxMTM {
		s.MaxMTM = relative
	}
	if relative < s.MinMTM {
		s.MinMTM = relative
	}
	s.Updates++
	return s
}

// -----------------------------------------------------------------------------

func (s *AggregatorState) Stats(userID string) (models.MAccountStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return models.NewAccountStats(), err
	}
	return s.stats[userID], nil
}

// -----------------------------------------------------------------------------

func (s *AggregatorState) UpdateStats(userID string, relative float64) (models.MAccountStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return models.NewAccountStats(), err
	}
	return s.updateStatsLocked(userID, relative), nil
}

// -----------------------------------------------------------------------------

// Persistence failures are logged; memory stays authoritative for the day.
func (s *AggregatorState) updateStatsLocked(userID string, relative float64) models.MAccountStats {
	stats := Widen(s.stats[userID], relative)
	s.stats[userID] = stats
	if err := s.store.SaveStats(userID, stats); err != nil {
		s.logger.Error("Failed to persist stats for %s: %v", userID, err)
	}
	return stats
}

// -----------------------------------------------------------------------------

// RecordFetch applies a successful fetch of the absolute MTM: the relative
// value against the current baseline (0 when missing) updates stats and
// history under one lock acquisition. When the account was reset after gen
// was taken nothing is written and recorded is false; the returned stats and
// baseline are then the post-reset ones.
func (s *AggregatorState) RecordFetch(userID string, gen uint64, absolute float64, at time.Time) (stats models.MAccountStats, opening models.MOpeningBaseline, recorded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return models.NewAccountStats(), models.MOpeningBaseline{}, false, err
	}
	opening = s.openings[userID]
	if s.generationLocked(userID) != gen {
		return s.stats[userID], opening, false, nil
	}

	relative := absolute - opening.Value
	stats = s.updateStatsLocked(userID, relative)
	s.recordLocked(userID, at, relative)
	return stats, opening, true, nil
}
