package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mtm-hub/src/logger"
	"mtm-hub/src/models"

	_ "modernc.org/sqlite"
)

const lastResetKey = "last_reset_date"

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	// One writer at a time; avoids SQLITE_BUSY between the poller and handlers.
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

// createTables keeps existing rows: the daily state must survive restarts.
func (d *SQLiteDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS app_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			current_mtm REAL NOT NULL,
			max_mtm REAL NOT NULL,
			min_mtm REAL NOT NULL,
			updates INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS mtm_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			mtm REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mtm_history_user ON mtm_history (user_id, id);`,
		`CREATE TABLE IF NOT EXISTS opening_mtm (
			user_id TEXT PRIMARY KEY,
			mtm REAL NOT NULL,
			captured INTEGER NOT NULL DEFAULT 0,
			captured_at INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return fmt.Errorf("failed to create sqlite schema: %w", err)
		}
	}
	d.Logger.Info("SQLite initialized (%s)", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------
// Opening baseline
// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadOpening(userID string) (models.MOpeningBaseline, error) {
	var (
		b          models.MOpeningBaseline
		captured   int
		capturedAt int64
	)
	err := d.DB.QueryRow(
		"SELECT mtm, captured, captured_at FROM opening_mtm WHERE user_id = ?", userID,
	).Scan(&b.Value, &captured, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MOpeningBaseline{}, nil
	}
	if err != nil {
		return models.MOpeningBaseline{}, err
	}
	b.Captured = captured == 1
	if capturedAt > 0 {
		b.CapturedAt = time.UnixMilli(capturedAt)
	}
	return b, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveOpening(userID string, b models.MOpeningBaseline) error {
	captured := 0
	if b.Captured {
		captured = 1
	}
	var capturedAt int64
	if !b.CapturedAt.IsZero() {
		capturedAt = b.CapturedAt.UnixMilli()
	}
	_, err := d.DB.Exec(`
		INSERT INTO opening_mtm (user_id, mtm, captured, captured_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			mtm = excluded.mtm,
			captured = excluded.captured,
			captured_at = excluded.captured_at
	`, userID, b.Value, captured, capturedAt)
	return err
}

// -----------------------------------------------------------------------------
// Stats
// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadStats(userID string) (models.MAccountStats, bool, error) {
	var s models.MAccountStats
	err := d.DB.QueryRow(
		"SELECT current_mtm, max_mtm, min_mtm, updates FROM user_stats WHERE user_id = ?", userID,
	).Scan(&s.CurrentMTM, &s.MaxMTM, &s.MinMTM, &s.Updates)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewAccountStats(), false, nil
	}
	if err != nil {
		return models.NewAccountStats(), false, err
	}
	return fromStoredStats(s), true, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveStats(userID string, s models.MAccountStats) error {
	s = toStoredStats(s)
	_, err := d.DB.Exec(`
		INSERT INTO user_stats (user_id, current_mtm, max_mtm, min_mtm, updates, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			current_mtm = excluded.current_mtm,
			max_mtm = excluded.max_mtm,
			min_mtm = excluded.min_mtm,
			updates = excluded.updates,
			updated_at = excluded.updated_at
	`, userID, s.CurrentMTM, s.MaxMTM, s.MinMTM, s.Updates, time.Now().UTC())
	return err
}

// -----------------------------------------------------------------------------
// History
// -----------------------------------------------------------------------------

func (d *SQLiteDB) AppendHistory(userID string, p models.MHistoryPoint) error {
	_, err := d.DB.Exec(
		"INSERT INTO mtm_history (user_id, timestamp, mtm) VALUES (?, ?, ?)",
		userID, p.Timestamp, p.MTM,
	)
	return err
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadHistory(userID string) ([]models.MHistoryPoint, error) {
	rows, err := d.DB.Query(
		"SELECT timestamp, mtm FROM mtm_history WHERE user_id = ? ORDER BY id ASC", userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []models.MHistoryPoint{}
	for rows.Next() {
		var p models.MHistoryPoint
		if err := rows.Scan(&p.Timestamp, &p.MTM); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// -----------------------------------------------------------------------------
// Daily state
// -----------------------------------------------------------------------------

func (d *SQLiteDB) GetLastResetDate() (string, bool, error) {
	var v string
	err := d.DB.QueryRow("SELECT value FROM app_state WHERE key = ?", lastResetKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SetLastResetDate(date string) error {
	_, err := d.DB.Exec(`
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, lastResetKey, date)
	return err
}

// -----------------------------------------------------------------------------
// Clearing
// -----------------------------------------------------------------------------

func (d *SQLiteDB) ClearAccount(userID string) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"user_stats", "mtm_history", "opening_mtm"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", table), userID); err != nil {
			return fmt.Errorf("failed to clear %s for %s: %w", table, userID, err)
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ClearAll() error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"user_stats", "mtm_history", "opening_mtm"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	d.Logger.Info("Cleared opening, stats and history tables")
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
