package state

import (
	"time"

	"mtm-hub/src/helpers"
	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// Opening returns the stored baseline (zero value when not captured today).
func (s *AggregatorState) Opening(userID string) (models.MOpeningBaseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return models.MOpeningBaseline{}, err
	}
	return s.openings[userID], nil
}

// -----------------------------------------------------------------------------

// CaptureOpening writes the baseline once per day. It returns false when a
// baseline was already captured; the stored value is then left alone. The
// durable write happens first so a failed write leaves the baseline
// uncaptured.
func (s *AggregatorState) CaptureOpening(userID string, value float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return false, err
	}
	if s.openings[userID].Captured {
		return false, nil
	}

	baseline := models.MOpeningBaseline{Value: value, Captured: true, CapturedAt: at}
	if err := s.store.SaveOpening(userID, baseline); err != nil {
		return false, helpers.NewStorageError("save opening "+userID, err)
	}
	s.openings[userID] = baseline
	s.logger.Info("Captured opening MTM for %s: %.2f", userID, value)
	return true, nil
}
