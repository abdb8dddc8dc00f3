package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mtm-hub/src/logger"
	"mtm-hub/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Schema is named after the executable so several hubs can share one database
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);`, d.table("app_state")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT PRIMARY KEY,
				current_mtm DOUBLE PRECISION NOT NULL,
				max_mtm DOUBLE PRECISION NOT NULL,
				min_mtm DOUBLE PRECISION NOT NULL,
				updates BIGINT NOT NULL DEFAULT 0,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`, d.table("user_stats")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				user_id TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				mtm DOUBLE PRECISION NOT NULL
			);`, d.table("mtm_history")),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT PRIMARY KEY,
				mtm DOUBLE PRECISION NOT NULL,
				captured BOOLEAN NOT NULL DEFAULT FALSE,
				captured_at BIGINT NOT NULL DEFAULT 0
			);`, d.table("opening_mtm")),
	}
	for _, q := range queries {
		if _, err := d.DB.Exec(q); err != nil {
			return fmt.Errorf("failed to create postgres schema: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadOpening(userID string) (models.MOpeningBaseline, error) {
	var (
		b          models.MOpeningBaseline
		capturedAt int64
	)
	err := d.DB.QueryRow(
		fmt.Sprintf("SELECT mtm, captured, captured_at FROM %s WHERE user_id = $1", d.table("opening_mtm")),
		userID,
	).Scan(&b.Value, &b.Captured, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MOpeningBaseline{}, nil
	}
	if err != nil {
		return models.MOpeningBaseline{}, err
	}
	if capturedAt > 0 {
		b.CapturedAt = time.UnixMilli(capturedAt)
	}
	return b, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveOpening(userID string, b models.MOpeningBaseline) error {
	var capturedAt int64
	if !b.CapturedAt.IsZero() {
		capturedAt = b.CapturedAt.UnixMilli()
	}
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (user_id, mtm, captured, captured_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			mtm = EXCLUDED.mtm,
			captured = EXCLUDED.captured,
			captured_at = EXCLUDED.captured_at
	`, d.table("opening_mtm")), userID, b.Value, b.Captured, capturedAt)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadStats(userID string) (models.MAccountStats, bool, error) {
	var s models.MAccountStats
	err := d.DB.QueryRow(
		fmt.Sprintf("SELECT current_mtm, max_mtm, min_mtm, updates FROM %s WHERE user_id = $1", d.table("user_stats")),
		userID,
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

func (d *PostgresDB) SaveStats(userID string, s models.MAccountStats) error {
	s = toStoredStats(s)
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (user_id, current_mtm, max_mtm, min_mtm, updates, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			current_mtm = EXCLUDED.current_mtm,
			max_mtm = EXCLUDED.max_mtm,
			min_mtm = EXCLUDED.min_mtm,
			updates = EXCLUDED.updates,
			updated_at = EXCLUDED.updated_at
	`, d.table("user_stats")), userID, s.CurrentMTM, s.MaxMTM, s.MinMTM, s.Updates, time.Now().UTC())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) AppendHistory(userID string, p models.MHistoryPoint) error {
	_, err := d.DB.Exec(
		fmt.Sprintf("INSERT INTO %s (user_id, timestamp, mtm) VALUES ($1, $2, $3)", d.table("mtm_history")),
		userID, p.Timestamp, p.MTM,
	)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadHistory(userID string) ([]models.MHistoryPoint, error) {
	rows, err := d.DB.Query(
		fmt.Sprintf("SELECT timestamp, mtm FROM %s WHERE user_id = $1 ORDER BY id ASC", d.table("mtm_history")),
		userID,
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

func (d *PostgresDB) GetLastResetDate() (string, bool, error) {
	var v string
	err := d.DB.QueryRow(
		fmt.Sprintf("SELECT value FROM %s WHERE key = $1", d.table("app_state")), lastResetKey,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SetLastResetDate(date string) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, d.table("app_state")), lastResetKey, date)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ClearAccount(userID string) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range []string{"user_stats", "mtm_history", "opening_mtm"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", d.table(name)), userID); err != nil {
			return fmt.Errorf("failed to clear %s for %s: %w", name, userID, err)
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ClearAll() error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range []string{"user_stats", "mtm_history", "opening_mtm"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", d.table(name))); err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
