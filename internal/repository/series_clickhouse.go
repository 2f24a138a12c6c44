package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	domrepo "ReviewCast/internal/domain/repository"
	pkgch "ReviewCast/pkg/clickhouse"
	applogger "ReviewCast/pkg/logger"
)

// CHSeriesStore implements SeriesStore backed by ClickHouse. Every save of a
// series is a new load identified by loaded_at; reads return the latest load.
type CHSeriesStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
	now      func() time.Time
}

func NewCHSeriesStore(ch *pkgch.Client, database string) *CHSeriesStore {
	return &CHSeriesStore{db: ch.DB(), database: database, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns the idempotent DDL for the store.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_series (
			product_id String,
			date Date,
			total UInt32,
			fake UInt32,
			loaded_at DateTime64(3)
		) ENGINE = MergeTree ORDER BY (product_id, loaded_at, date)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecasts (
			product_id String,
			created_at DateTime64(3),
			target String,
			problem String,
			degraded UInt8,
			payload String
		) ENGINE = MergeTree ORDER BY (product_id, created_at)`, database),
	}
}

func (s *CHSeriesStore) table(name string) string { return s.database + "." + name }

func (s *CHSeriesStore) SaveSeries(ctx context.Context, ds models.DailySeries) error {
	if len(ds.Points) == 0 {
		return nil
	}
	start := time.Now()
	loadedAt := s.now().UTC()

	// Multi-row VALUES in chunks to bound statement size.
	const chunkSize = 2000
	for lo := 0; lo < len(ds.Points); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(ds.Points) {
			hi = len(ds.Points)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*5)
		for _, p := range ds.Points[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, ds.ProductID, p.Date, uint32(p.TotalCount), uint32(p.FakeCount), loadedAt)
		}
		q := fmt.Sprintf("INSERT INTO %s (product_id, date, total, fake, loaded_at) VALUES %s",
			s.table("daily_series"), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse save_series insert error",
					applogger.String("product_id", ds.ProductID),
					applogger.Int("rows", hi-lo),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("insert series: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse save_series ok",
			applogger.String("product_id", ds.ProductID),
			applogger.Int("rows", len(ds.Points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHSeriesStore) LatestSeries(ctx context.Context, productID string) (models.DailySeries, error) {
	const qtpl = `
        SELECT date, total, fake
        FROM %[1]s
        WHERE product_id = ? AND loaded_at = (SELECT max(loaded_at) FROM %[1]s WHERE product_id = ?)
        ORDER BY date ASC
    `
	q := fmt.Sprintf(qtpl, s.table("daily_series"))
	rows, err := s.db.QueryContext(ctx, q, productID, productID)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_series query error", applogger.String("product_id", productID), applogger.Error(err))
		}
		return models.DailySeries{}, fmt.Errorf("latest series: %w", err)
	}
	defer rows.Close()

	ds := models.DailySeries{ProductID: productID}
	for rows.Next() {
		var (
			d           time.Time
			total, fake uint32
		)
		if err := rows.Scan(&d, &total, &fake); err != nil {
			return models.DailySeries{}, fmt.Errorf("scan series: %w", err)
		}
		ds.Points = append(ds.Points, models.DailyPoint{
			Date:       time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			TotalCount: int(total),
			FakeCount:  int(fake),
		})
	}
	if err := rows.Err(); err != nil {
		return models.DailySeries{}, fmt.Errorf("rows: %w", err)
	}
	if len(ds.Points) == 0 {
		return models.DailySeries{}, errs.NotFound("no series stored for product %q", productID)
	}
	return ds, nil
}

func (s *CHSeriesStore) SaveForecast(ctx context.Context, f models.ReconstructedForecast) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal forecast: %w", err)
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}
	var degraded uint8
	if f.Degraded {
		degraded = 1
	}
	q := fmt.Sprintf("INSERT INTO %s (product_id, created_at, target, problem, degraded, payload) VALUES (?, ?, ?, ?, ?, ?)", s.table("forecasts"))
	if _, err := s.db.ExecContext(ctx, q, f.ProductID, created, f.TargetField, string(f.Problem), degraded, string(payload)); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse save_forecast insert error", applogger.String("product_id", f.ProductID), applogger.Error(err))
		}
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

func (s *CHSeriesStore) LatestForecast(ctx context.Context, productID string) (models.ReconstructedForecast, error) {
	q := fmt.Sprintf("SELECT payload FROM %s WHERE product_id = ? ORDER BY created_at DESC LIMIT 1", s.table("forecasts"))
	var payload string
	err := s.db.QueryRowContext(ctx, q, productID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReconstructedForecast{}, errs.NotFound("no forecast stored for product %q", productID)
	}
	if err != nil {
		return models.ReconstructedForecast{}, fmt.Errorf("latest forecast: %w", err)
	}
	var f models.ReconstructedForecast
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return models.ReconstructedForecast{}, fmt.Errorf("decode forecast: %w", err)
	}
	return f, nil
}

func (s *CHSeriesStore) ListProducts(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT product_id FROM %s ORDER BY product_id", s.table("daily_series"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)
