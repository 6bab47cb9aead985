package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/kheti-labs/irrigation-advisor/internal/db"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

const (
	sqlGetContext = `SELECT profile, last_irrigation, updated_at FROM farming_contexts WHERE farmer_id = $1`

	sqlUpsertContext = `INSERT INTO farming_contexts (farmer_id, profile, last_irrigation, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (farmer_id) DO UPDATE SET
	profile = EXCLUDED.profile,
	last_irrigation = COALESCE(EXCLUDED.last_irrigation, farming_contexts.last_irrigation),
	updated_at = EXCLUDED.updated_at`

	sqlInsertIrrigation = `INSERT INTO irrigation_history
	(id, farmer_id, crop_name, irrigated_at, water_liters, method, moisture_before, moisture_after, effectiveness, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	sqlAdvanceLastIrrigation = `UPDATE farming_contexts SET last_irrigation = $1
WHERE farmer_id = $2 AND (last_irrigation IS NULL OR last_irrigation < $1)`

	sqlGetPayload = `SELECT data, expires_at FROM provider_cache WHERE cache_key = $1 AND expires_at > now()`

	sqlSetPayload = `INSERT INTO provider_cache (cache_key, data, cached_at, expires_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_key) DO UPDATE SET
	data = EXCLUDED.data, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`
)

// preparedStatements are prepared on each new connection for the hot paths
// of a decision request.
var preparedStatements = map[string]string{
	"get_farming_context": sqlGetContext,
	"get_cached_payload":  sqlGetPayload,
	"set_cached_payload":  sqlSetPayload,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, poolCfg, preparedStatements)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS farming_contexts (
	farmer_id       TEXT PRIMARY KEY,
	profile         JSONB NOT NULL,
	last_irrigation TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS irrigation_history (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	farmer_id       TEXT NOT NULL,
	crop_name       TEXT NOT NULL DEFAULT '',
	irrigated_at    TIMESTAMPTZ NOT NULL,
	water_liters    DOUBLE PRECISION NOT NULL DEFAULT 0,
	method          TEXT NOT NULL DEFAULT '',
	moisture_before DOUBLE PRECISION,
	moisture_after  DOUBLE PRECISION,
	effectiveness   SMALLINT CHECK (effectiveness BETWEEN 1 AND 5),
	notes           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS provider_cache (
	cache_key  TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_irrigation_history_farmer_date ON irrigation_history(farmer_id, irrigated_at DESC);
CREATE INDEX IF NOT EXISTS idx_provider_cache_expires_at ON provider_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetFarmingContext(ctx context.Context, farmerID string) (*model.FarmingContext, error) {
	var (
		profile []byte
		last    *time.Time
		updated time.Time
	)
	err := s.pool.QueryRow(ctx, sqlGetContext, strings.TrimSpace(farmerID)).Scan(&profile, &last, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get farming context %s", farmerID)
	}

	var fc model.FarmingContext
	if err := json.Unmarshal(profile, &fc); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal farming context")
	}
	fc.LastIrrigation = nil
	if last != nil {
		t := last.UTC()
		fc.LastIrrigation = &t
	}
	fc.UpdatedAt = updated.UTC()
	return &fc, nil
}

func (s *PostgresStore) UpsertFarmingContext(ctx context.Context, fc *model.FarmingContext) error {
	if fc != nil {
		fc.Normalize()
	}
	if err := validateContext(fc); err != nil {
		return err
	}
	fc.UpdatedAt = time.Now().UTC()

	profile, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal farming context")
	}
	_, err = s.pool.Exec(ctx, sqlUpsertContext, fc.FarmerID, profile, fc.LastIrrigation, fc.UpdatedAt)
	return eris.Wrapf(err, "postgres: upsert farming context %s", fc.FarmerID)
}

func (s *PostgresStore) RecordIrrigation(ctx context.Context, entry *model.IrrigationHistoryEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sqlInsertIrrigation,
			entry.ID, entry.FarmerID, strings.ToLower(entry.CropName), entry.Date.UTC(),
			entry.WaterAmountLiters, string(entry.Method),
			entry.SoilMoistureBefore, entry.SoilMoistureAfter, entry.EffectivenessRating, entry.Notes,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert irrigation %s", entry.ID)
		}
		_, err = tx.Exec(ctx, sqlAdvanceLastIrrigation, entry.Date.UTC(), entry.FarmerID)
		return eris.Wrapf(err, "postgres: advance last irrigation for %s", entry.FarmerID)
	})
}

func (s *PostgresStore) ListIrrigationHistory(ctx context.Context, filter HistoryFilter) ([]model.IrrigationHistoryEntry, error) {
	query := `SELECT id, farmer_id, crop_name, irrigated_at, water_liters, method,
	moisture_before, moisture_after, effectiveness, notes
FROM irrigation_history WHERE farmer_id = $1`
	args := []any{filter.FarmerID}

	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += ` AND irrigated_at >= $` + strconv.Itoa(len(args))
	}
	if filter.CropName != "" {
		args = append(args, strings.ToLower(filter.CropName))
		query += ` AND crop_name = $` + strconv.Itoa(len(args))
	}
	args = append(args, historyLimit(filter.Limit))
	query += ` ORDER BY irrigated_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list irrigation history")
	}
	defer rows.Close()

	var out []model.IrrigationHistoryEntry
	for rows.Next() {
		var (
			e             model.IrrigationHistoryEntry
			method        string
			before, after *float64
			effectiveness *int
		)
		if err := rows.Scan(&e.ID, &e.FarmerID, &e.CropName, &e.Date, &e.WaterAmountLiters, &method,
			&before, &after, &effectiveness, &e.Notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan irrigation")
		}
		e.Date = e.Date.UTC()
		e.Method = model.IrrigationMethod(method)
		e.SoilMoistureBefore = before
		e.SoilMoistureAfter = after
		e.EffectivenessRating = effectiveness
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list irrigation history iterate")
}

func (s *PostgresStore) GetCachedPayload(ctx context.Context, key string) ([]byte, time.Time, error) {
	var (
		data    []byte
		expires time.Time
	)
	err := s.pool.QueryRow(ctx, sqlGetPayload, key).Scan(&data, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, eris.Wrapf(err, "postgres: get cached payload %s", key)
	}
	return data, expires, nil
}

func (s *PostgresStore) SetCachedPayload(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, sqlSetPayload, key, data, now, now.Add(ttl))
	return eris.Wrapf(err, "postgres: set cached payload %s", key)
}

func (s *PostgresStore) DeleteCachedPayload(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM provider_cache WHERE cache_key = $1`, key)
	return eris.Wrapf(err, "postgres: delete cached payload %s", key)
}

func (s *PostgresStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM provider_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}
