package storage

import (
	"sync"

	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// MemoryStore keeps state in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.Mutex
	openings  map[string]models.MOpeningBaseline
	stats     map[string]models.MAccountStats
	history   map[string][]models.MHistoryPoint
	lastReset string
	hasReset  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		openings: make(map[string]models.MOpeningBaseline),
		stats:    make(map[string]models.MAccountStats),
		history:  make(map[string][]models.MHistoryPoint),
	}
}

func (m *MemoryStore) Initialize() error { return nil }

// -----------------------------------------------------------------------------

func (m *MemoryStore) LoadOpening(userID string) (models.MOpeningBaseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openings[userID], nil
}

func (m *MemoryStore) SaveOpening(userID string, b models.MOpeningBaseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openings[userID] = b
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) LoadStats(userID string) (models.MAccountStats, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[userID]
	if !ok {
		return models.NewAccountStats(), false, nil
	}
	return s, true, nil
}

func (m *MemoryStore) SaveStats(userID string, s models.MAccountStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[userID] = s
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) AppendHistory(userID string, p models.MHistoryPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[userID] = append(m.history[userID], p)
	return nil
}

func (m *MemoryStore) LoadHistory(userID string) ([]models.MHistoryPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MHistoryPoint, len(m.history[userID]))
	copy(out, m.history[userID])
	return out, nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) GetLastResetDate() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReset, m.hasReset, nil
}

func (m *MemoryStore) SetLastResetDate(date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReset, m.hasReset = date, true
	return nil
}

// -----------------------------------------------------------------------------

func (m *MemoryStore) ClearAccount(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.openings, userID)
	delete(m.stats, userID)
	delete(m.history, userID)
	return nil
}

func (m *MemoryStore) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openings = make(map[string]models.MOpeningBaseline)
	m.stats = make(map[string]models.MAccountStats)
	m.history = make(map[string][]models.MHistoryPoint)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
