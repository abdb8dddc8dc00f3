package state

import (
	"sort"
	"time"

	"mtm-hub/src/models"
	"mtm-hub/src/utils"
)

// -----------------------------------------------------------------------------

// RecordIfNewBucket appends a history point unless the minute of at already
// has one. The first value seen in a bucket is the one kept.
func (s *AggregatorState) RecordIfNewBucket(userID string, at time.Time, value float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return false, err
	}
	return s.recordLocked(userID, at, value), nil
}

// -----------------------------------------------------------------------------

func (s *AggregatorState) recordLocked(userID string, at time.Time, value float64) bool {
	key := utils.BucketKey(at)
	seen := s.buckets[userID]
	if _, dup := seen[key]; dup {
		return false
	}
	if s.historyLimit > 0 && len(s.history[userID]) >= s.historyLimit {
		return false
	}

	point := models.MHistoryPoint{Timestamp: at.Format(utils.HistoryTimeLayout), MTM: value}
	seen[key] = struct{}{}
	s.history[userID] = append(s.history[userID], point)
	if err := s.store.AppendHistory(userID, point); err != nil {
		s.logger.Error("Failed to persist history for %s: %v", userID, err)
	}
	return true
}

// -----------------------------------------------------------------------------

// History returns a copy of today's points, oldest first.
func (s *AggregatorState) History(userID string) ([]models.MHistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return nil, err
	}
	out := make([]models.MHistoryPoint, len(s.history[userID]))
	copy(out, s.history[userID])
	return out, nil
}

// MinuteMarkers returns the "HH:MM" buckets already holding a point today.
func (s *AggregatorState) MinuteMarkers(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.buckets[userID]))
	for key := range s.buckets[userID] {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}
