// Package postgres implements the collector store on PostgreSQL for hosted
// deployments. Schema and semantics match the sqlite backend; timestamps are
// stored as int64 microseconds for parity.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkurtz/polymarket-data/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS current_markets (
    condition_id    TEXT PRIMARY KEY,
    question        TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    category        TEXT NOT NULL DEFAULT 'Uncategorized',
    end_date        TEXT NOT NULL DEFAULT '',
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    volume_24h      DOUBLE PRECISION NOT NULL DEFAULT 0,
    volume_total    DOUBLE PRECISION NOT NULL DEFAULT 0,
    liquidity       DOUBLE PRECISION NOT NULL DEFAULT 0,
    outcome_prices  TEXT NOT NULL DEFAULT '',
    clob_token_ids  TEXT NOT NULL DEFAULT '[]',
    created_at      BIGINT NOT NULL,
    updated_at      BIGINT NOT NULL,
    fetch_timestamp BIGINT NOT NULL,
    last_seen       BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_current_markets_volume ON current_markets(active, volume_24h);

CREATE TABLE IF NOT EXISTS market_history (
    condition_id    TEXT NOT NULL,
    fetch_timestamp BIGINT NOT NULL,
    volume_24h      DOUBLE PRECISION NOT NULL DEFAULT 0,
    liquidity       DOUBLE PRECISION NOT NULL DEFAULT 0,
    outcome_prices  TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (condition_id, fetch_timestamp)
);
CREATE INDEX IF NOT EXISTS idx_market_history_time ON market_history(fetch_timestamp);

CREATE TABLE IF NOT EXISTS market_creations (
    condition_id      TEXT PRIMARY KEY,
    first_seen        BIGINT NOT NULL,
    creator_address   TEXT NOT NULL DEFAULT 'unknown',
    initial_liquidity DOUBLE PRECISION NOT NULL DEFAULT 0,
    question          TEXT NOT NULL DEFAULT '',
    category          TEXT NOT NULL DEFAULT 'Uncategorized'
);
CREATE INDEX IF NOT EXISTS idx_market_creations_first_seen ON market_creations(first_seen);

CREATE TABLE IF NOT EXISTS fetch_log (
    cycle_id         TEXT PRIMARY KEY,
    fetch_timestamp  BIGINT NOT NULL,
    markets_fetched  INTEGER NOT NULL DEFAULT 0,
    markets_active   INTEGER NOT NULL DEFAULT 0,
    markets_skipped  INTEGER NOT NULL DEFAULT 0,
    duration_micros  BIGINT NOT NULL DEFAULT 0,
    success          BOOLEAN NOT NULL,
    error_message    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_time ON fetch_log(fetch_timestamp);`

const upsertSnapshotSQL = `
	INSERT INTO current_markets
	(condition_id, question, description, category, end_date, active,
	 volume_24h, volume_total, liquidity, outcome_prices, clob_token_ids,
	 created_at, updated_at, fetch_timestamp, last_seen)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (condition_id) DO UPDATE SET
		question        = EXCLUDED.question,
		description     = EXCLUDED.description,
		category        = EXCLUDED.category,
		end_date        = EXCLUDED.end_date,
		active          = EXCLUDED.active,
		volume_24h      = EXCLUDED.volume_24h,
		volume_total    = EXCLUDED.volume_total,
		liquidity       = EXCLUDED.liquidity,
		outcome_prices  = EXCLUDED.outcome_prices,
		clob_token_ids  = EXCLUDED.clob_token_ids,
		updated_at      = EXCLUDED.updated_at,
		fetch_timestamp = EXCLUDED.fetch_timestamp,
		last_seen       = EXCLUDED.last_seen`

const insertHistorySQL = `
	INSERT INTO market_history
	(condition_id, fetch_timestamp, volume_24h, liquidity, outcome_prices)
	VALUES ($1, $2, $3, $4, $5)`

const insertCreationSQL = `
	INSERT INTO market_creations
	(condition_id, first_seen, creator_address, initial_liquidity, question, category)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (condition_id) DO NOTHING`

const insertFetchLogSQL = `
	INSERT INTO fetch_log
	(cycle_id, fetch_timestamp, markets_fetched, markets_active, markets_skipped,
	 duration_micros, success, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Store provides durable storage for collected market data on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on an existing pool and applies the schema.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// KnownConditionIDs returns the set of condition_ids currently present in
// current_markets.
func (s *Store) KnownConditionIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT condition_id FROM current_markets`)
	if err != nil {
		return nil, fmt.Errorf("query known ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan known id: %w", err)
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known ids: %w", err)
	}
	return known, nil
}

// ApplyCycle applies one cycle's full write set in a single transaction.
func (s *Store) ApplyCycle(ctx context.Context, data model.CycleData) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cycle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertSnapshots(ctx, tx, data.Snapshots); err != nil {
		return err
	}
	if err := appendHistory(ctx, tx, data.History); err != nil {
		return err
	}
	if err := recordCreations(ctx, tx, data.Creations); err != nil {
		return err
	}
	if err := logFetch(ctx, tx, data.Log); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cycle tx: %w", err)
	}
	return nil
}

// UpsertSnapshots replaces-or-inserts snapshots by condition_id in one
// transaction.
func (s *Store) UpsertSnapshots(ctx context.Context, snaps []model.MarketSnapshot) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return upsertSnapshots(ctx, tx, snaps)
	})
}

// AppendHistory inserts history points in one transaction.
func (s *Store) AppendHistory(ctx context.Context, points []model.MarketHistoryPoint) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return appendHistory(ctx, tx, points)
	})
}

// RecordCreations inserts creation events for condition_ids not already
// recorded.
func (s *Store) RecordCreations(ctx context.Context, events []model.MarketCreationEvent) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return recordCreations(ctx, tx, events)
	})
}

// LogFetch inserts one fetch-log row.
func (s *Store) LogFetch(ctx context.Context, entry model.FetchLogEntry) error {
	_, err := s.pool.Exec(ctx, insertFetchLogSQL,
		entry.CycleID.String(), entry.Timestamp.UnixMicro(),
		entry.MarketsCount, entry.MarketsActive, entry.Skipped,
		entry.Duration.Microseconds(), entry.Success, entry.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("log fetch: %w", err)
	}
	return nil
}

// PruneHistoryBefore deletes history points older than cutoff.
func (s *Store) PruneHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_history WHERE fetch_timestamp < $1`,
		cutoff.UnixMicro(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertSnapshots(ctx context.Context, tx pgx.Tx, snaps []model.MarketSnapshot) error {
	batch := &pgx.Batch{}
	for _, m := range snaps {
		batch.Queue(upsertSnapshotSQL,
			m.ConditionID, m.Question, m.Description, m.Category, m.EndDate,
			m.Active, m.Volume24h, m.VolumeTotal, m.Liquidity,
			m.OutcomePrices, m.ClobTokenIDs,
			m.FetchedAt.UnixMicro(), m.FetchedAt.UnixMicro(),
			m.FetchedAt.UnixMicro(), m.LastSeen.UnixMicro(),
		)
	}
	return sendBatch(ctx, tx, batch, "upsert snapshot")
}

func appendHistory(ctx context.Context, tx pgx.Tx, points []model.MarketHistoryPoint) error {
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(insertHistorySQL,
			p.ConditionID, p.Timestamp.UnixMicro(),
			p.Volume24h, p.Liquidity, p.OutcomePrices,
		)
	}
	return sendBatch(ctx, tx, batch, "append history")
}

func recordCreations(ctx context.Context, tx pgx.Tx, events []model.MarketCreationEvent) error {
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(insertCreationSQL,
			ev.ConditionID, ev.FirstSeen.UnixMicro(),
			ev.CreatorAddress, ev.InitialLiquidity,
			ev.Question, ev.Category,
		)
	}
	return sendBatch(ctx, tx, batch, "record creation")
}

func logFetch(ctx context.Context, tx pgx.Tx, entry model.FetchLogEntry) error {
	_, err := tx.Exec(ctx, insertFetchLogSQL,
		entry.CycleID.String(), entry.Timestamp.UnixMicro(),
		entry.MarketsCount, entry.MarketsActive, entry.Skipped,
		entry.Duration.Microseconds(), entry.Success, entry.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("log fetch: %w", err)
	}
	return nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, op string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%s item %d: %w", op, i, err)
		}
	}
	return nil
}
