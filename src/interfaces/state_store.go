package interfaces

import "mtm-hub/src/models"

// -----------------------------------------------------------------------------
// IStateStore is the durable backing of the per-account daily state.
// -----------------------------------------------------------------------------

type IStateStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------
	// Opening baseline

	LoadOpening(userID string) (models.MOpeningBaseline, error)
	SaveOpening(userID string, baseline models.MOpeningBaseline) error

	// -----------------------------------------------------------------------------
	// Running stats. found is false when the account has no row yet.

	LoadStats(userID string) (stats models.MAccountStats, found bool, err error)
	SaveStats(userID string, stats models.MAccountStats) error

	// -----------------------------------------------------------------------------
	// History, oldest first

	AppendHistory(userID string, point models.MHistoryPoint) error
	LoadHistory(userID string) ([]models.MHistoryPoint, error)

	// -----------------------------------------------------------------------------
	// Daily state

	GetLastResetDate() (date string, found bool, err error)
	SetLastResetDate(date string) error

	// -----------------------------------------------------------------------------

	// ClearAccount removes opening, stats and history for one account.
	ClearAccount(userID string) error

	// ClearAll removes opening, stats and history for every account.
	ClearAll() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
