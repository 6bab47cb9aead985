package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix milliseconds so range predicates compare numerically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS farming_contexts (
	farmer_id       TEXT PRIMARY KEY,
	profile         TEXT NOT NULL,
	last_irrigation INTEGER,
	updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS irrigation_history (
	id              TEXT PRIMARY KEY,
	farmer_id       TEXT NOT NULL,
	crop_name       TEXT NOT NULL DEFAULT '',
	irrigated_at    INTEGER NOT NULL,
	water_liters    REAL NOT NULL DEFAULT 0,
	method          TEXT NOT NULL DEFAULT '',
	moisture_before REAL,
	moisture_after  REAL,
	effectiveness   INTEGER,
	notes           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS provider_cache (
	cache_key  TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_irrigation_history_farmer_date ON irrigation_history(farmer_id, irrigated_at);
CREATE INDEX IF NOT EXISTS idx_provider_cache_expires_at ON provider_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetFarmingContext(ctx context.Context, farmerID string) (*model.FarmingContext, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT profile, last_irrigation, updated_at FROM farming_contexts WHERE farmer_id = ?`,
		strings.TrimSpace(farmerID),
	)

	var profile string
	var last sql.NullInt64
	var updated int64
	err := row.Scan(&profile, &last, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get farming context %s", farmerID)
	}

	var fc model.FarmingContext
	if err := json.Unmarshal([]byte(profile), &fc); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal farming context")
	}
	fc.LastIrrigation = nil
	if last.Valid {
		t := fromMillis(last.Int64)
		fc.LastIrrigation = &t
	}
	fc.UpdatedAt = fromMillis(updated)
	return &fc, nil
}

func (s *SQLiteStore) UpsertFarmingContext(ctx context.Context, fc *model.FarmingContext) error {
	if fc != nil {
		fc.Normalize()
	}
	if err := validateContext(fc); err != nil {
		return err
	}
	fc.UpdatedAt = time.Now().UTC()

	profile, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal farming context")
	}

	var last any
	if fc.LastIrrigation != nil {
		last = toMillis(*fc.LastIrrigation)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO farming_contexts (farmer_id, profile, last_irrigation, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (farmer_id) DO UPDATE SET
		   profile = excluded.profile,
		   last_irrigation = COALESCE(excluded.last_irrigation, farming_contexts.last_irrigation),
		   updated_at = excluded.updated_at`,
		fc.FarmerID, string(profile), last, toMillis(fc.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert farming context %s", fc.FarmerID)
}

func (s *SQLiteStore) RecordIrrigation(ctx context.Context, entry *model.IrrigationHistoryEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin record irrigation")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO irrigation_history
		   (id, farmer_id, crop_name, irrigated_at, water_liters, method, moisture_before, moisture_after, effectiveness, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.FarmerID, strings.ToLower(entry.CropName), toMillis(entry.Date),
		entry.WaterAmountLiters, string(entry.Method),
		nullFloat(entry.SoilMoistureBefore), nullFloat(entry.SoilMoistureAfter),
		nullInt(entry.EffectivenessRating), entry.Notes,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert irrigation %s", entry.ID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE farming_contexts SET last_irrigation = ?
		 WHERE farmer_id = ? AND (last_irrigation IS NULL OR last_irrigation < ?)`,
		toMillis(entry.Date), entry.FarmerID, toMillis(entry.Date),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: advance last irrigation for %s", entry.FarmerID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit record irrigation")
}

func (s *SQLiteStore) ListIrrigationHistory(ctx context.Context, filter HistoryFilter) ([]model.IrrigationHistoryEntry, error) {
	query := `SELECT id, farmer_id, crop_name, irrigated_at, water_liters, method,
	                 moisture_before, moisture_after, effectiveness, notes
	          FROM irrigation_history WHERE farmer_id = ?`
	args := []any{filter.FarmerID}

	if !filter.Since.IsZero() {
		query += ` AND irrigated_at >= ?`
		args = append(args, toMillis(filter.Since))
	}
	if filter.CropName != "" {
		query += ` AND crop_name = ?`
		args = append(args, strings.ToLower(filter.CropName))
	}
	query += ` ORDER BY irrigated_at DESC LIMIT ?`
	args = append(args, historyLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list irrigation history")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.IrrigationHistoryEntry
	for rows.Next() {
		var (
			e             model.IrrigationHistoryEntry
			at            int64
			method        string
			before, after sql.NullFloat64
			effectiveness sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.FarmerID, &e.CropName, &at, &e.WaterAmountLiters, &method,
			&before, &after, &effectiveness, &e.Notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan irrigation")
		}
		e.Date = fromMillis(at)
		e.Method = model.IrrigationMethod(method)
		if before.Valid {
			e.SoilMoistureBefore = &before.Float64
		}
		if after.Valid {
			e.SoilMoistureAfter = &after.Float64
		}
		if effectiveness.Valid {
			r := int(effectiveness.Int64)
			e.EffectivenessRating = &r
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list irrigation history iterate")
}

func (s *SQLiteStore) GetCachedPayload(ctx context.Context, key string) ([]byte, time.Time, error) {
	var (
		data    []byte
		expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM provider_cache WHERE cache_key = ? AND expires_at > ?`,
		key, toMillis(time.Now()),
	).Scan(&data, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, eris.Wrapf(err, "sqlite: get cached payload %s", key)
	}
	return data, fromMillis(expires), nil
}

func (s *SQLiteStore) SetCachedPayload(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_cache (cache_key, data, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, data, toMillis(now), toMillis(now.Add(ttl)),
	)
	return eris.Wrapf(err, "sqlite: set cached payload %s", key)
}

func (s *SQLiteStore) DeleteCachedPayload(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM provider_cache WHERE cache_key = ?`, key)
	return eris.Wrapf(err, "sqlite: delete cached payload %s", key)
}

func (s *SQLiteStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_cache WHERE expires_at <= ?`, toMillis(time.Now()),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
