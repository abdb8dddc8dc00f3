package storage

import (
	"fmt"
	"math"

	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// NewStateStore picks the backend named by storage.db_type.
func NewStateStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IStateStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}
}

// -----------------------------------------------------------------------------

// Bounds are never stored as infinities; a row with zero updates means unset.
func toStoredStats(s models.MAccountStats) models.MAccountStats {
	if s.Updates == 0 || math.IsInf(s.MaxMTM, 0) || math.IsInf(s.MinMTM, 0) {
		s.MaxMTM, s.MinMTM = 0, 0
		s.Updates = 0
	}
	return s
}

func fromStoredStats(s models.MAccountStats) models.MAccountStats {
	if s.Updates == 0 {
		s.MaxMTM = math.Inf(-1)
		s.MinMTM = math.Inf(1)
	}
	return s
}
