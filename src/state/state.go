package state

import (
	"sync"

	"mtm-hub/src/helpers"
	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// AggregatorState owns every piece of per-account daily state: opening
// baselines, running stats, history with its bucket markers, and the last
// reset date. One mutex guards all of it; each mutation is written through to
// the durable store while the lock is held.
type AggregatorState struct {
	mu     sync.Mutex
	store  interfaces.IStateStore
	logger *logger.Logger

	loaded   map[string]bool
	openings map[string]models.MOpeningBaseline
	stats    map[string]models.MAccountStats
	history  map[string][]models.MHistoryPoint
	buckets  map[string]map[string]struct{}

	lastReset       string
	lastResetLoaded bool

	// historyLimit caps points per account per day; 0 means no cap
	historyLimit int

	// Reset generations. epoch moves on ResetAll and daily resets, the
	// per-account counter on ResetAccount. Neither is cleared by a reset.
	epoch        uint64
	accountEpoch map[string]uint64
}

// -----------------------------------------------------------------------------

func New(store interfaces.IStateStore, log *logger.Logger) *AggregatorState {
	s := &AggregatorState{store: store, logger: log, accountEpoch: make(map[string]uint64)}
	s.resetMemory()
	return s
}

// SetHistoryLimit caps the number of history points kept per account per day.
func (s *AggregatorState) SetHistoryLimit(n int) {
	s.mu.Lock()
	s.historyLimit = n
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Generation identifies the reset era of an account. Capture it before a
// fetch and hand it to RecordFetch; any reset in between changes it.
func (s *AggregatorState) Generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationLocked(userID)
}

func (s *AggregatorState) generationLocked(userID string) uint64 {
	return s.epoch + s.accountEpoch[userID]
}

// -----------------------------------------------------------------------------

func (s *AggregatorState) resetMemory() {
	s.loaded = make(map[string]bool)
	s.openings = make(map[string]models.MOpeningBaseline)
	s.stats = make(map[string]models.MAccountStats)
	s.history = make(map[string][]models.MHistoryPoint)
	s.buckets = make(map[string]map[string]struct{})
}

// -----------------------------------------------------------------------------

func (s *AggregatorState) forget(userID string) {
	delete(s.loaded, userID)
	delete(s.openings, userID)
	delete(s.stats, userID)
	delete(s.history, userID)
	delete(s.buckets, userID)
}

// -----------------------------------------------------------------------------

// ensureLoaded pulls an account from the store on first touch. Callers hold mu.
func (s *AggregatorState) ensureLoaded(userID string) error {
	if s.loaded[userID] {
		return nil
	}

	opening, err := s.store.LoadOpening(userID)
	if err != nil {
		return helpers.NewStorageError("load opening "+userID, err)
	}
	stats, _, err := s.store.LoadStats(userID)
	if err != nil {
		return helpers.NewStorageError("load stats "+userID, err)
	}
	history, err := s.store.LoadHistory(userID)
	if err != nil {
		return helpers.NewStorageError("load history "+userID, err)
	}

	seen := make(map[string]struct{}, len(history))
	for _, p := range history {
		if len(p.Timestamp) >= 5 {
			seen[p.Timestamp[:5]] = struct{}{}
		}
	}

	s.openings[userID] = opening
	s.stats[userID] = stats
	s.history[userID] = history
	s.buckets[userID] = seen
	s.loaded[userID] = true
	return nil
}

// -----------------------------------------------------------------------------

// Snapshot is the debug view of one account.
func (s *AggregatorState) Snapshot(userID string) (models.MAccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(userID); err != nil {
		return models.MAccountSnapshot{}, err
	}
	return models.MAccountSnapshot{
		UserID:        userID,
		Opening:       s.openings[userID],
		Stats:         s.stats[userID].Finite(),
		HistoryPoints: len(s.history[userID]),
	}, nil
}

// -----------------------------------------------------------------------------

// ResetAccount clears one account's opening, stats and history. Calling it
// again is a no-op.
func (s *AggregatorState) ResetAccount(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ClearAccount(userID); err != nil {
		return helpers.NewStorageError("clear account "+userID, err)
	}
	s.forget(userID)
	s.accountEpoch[userID]++
	s.logger.Info("Reset state for %s", userID)
	return nil
}

// -----------------------------------------------------------------------------

func (s *AggregatorState) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ClearAll(); err != nil {
		return helpers.NewStorageError("clear all accounts", err)
	}
	s.resetMemory()
	s.epoch++
	s.logger.Info("Reset state for all accounts")
	return nil
}
