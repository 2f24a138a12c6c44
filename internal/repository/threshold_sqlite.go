package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domrepo "ReviewCast/internal/domain/repository"
	applogger "ReviewCast/pkg/logger"

	_ "modernc.org/sqlite"
)

// SQLiteThresholdStore persists thresholds in a local SQLite file.
type SQLiteThresholdStore struct {
	db  *sql.DB
	l   *applogger.Logger
	now func() time.Time
}

// NewSQLiteThresholdStore opens (or creates) the database and runs migrations.
// Use ":memory:" for an ephemeral store.
func NewSQLiteThresholdStore(path string) (*SQLiteThresholdStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	s := &SQLiteThresholdStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// SetLogger injects a structured logger.
func (s *SQLiteThresholdStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *SQLiteThresholdStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS thresholds (
		product_id TEXT PRIMARY KEY,
		value      REAL NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	return err
}

func (s *SQLiteThresholdStore) Get(ctx context.Context, productID string) (float64, bool, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM thresholds WHERE product_id = ?`, productID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get threshold: %w", err)
	}
	return v, true, nil
}

func (s *SQLiteThresholdStore) GetOrSetDefault(ctx context.Context, productID string, def float64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO thresholds (product_id, value, created_at) VALUES (?, ?, ?) ON CONFLICT(product_id) DO NOTHING`,
		productID, def, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert default threshold: %w", err)
	}
	var v float64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM thresholds WHERE product_id = ?`, productID).Scan(&v); err != nil {
		return 0, fmt.Errorf("read threshold: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 && s.l != nil {
		s.l.Info("sqlite default threshold stored",
			applogger.String("product_id", productID),
			applogger.Any("value", v),
		)
	}
	return v, nil
}

func (s *SQLiteThresholdStore) Set(ctx context.Context, productID string, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thresholds (product_id, value, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(product_id) DO UPDATE SET value = excluded.value, created_at = excluded.created_at`,
		productID, value, s.now().Unix())
	if err != nil {
		if s.l != nil {
			s.l.Error("sqlite set threshold error", applogger.String("product_id", productID), applogger.Error(err))
		}
		return fmt.Errorf("set threshold: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteThresholdStore) Close() error {
	return s.db.Close()
}

var _ domrepo.ThresholdStore = (*SQLiteThresholdStore)(nil)
