package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkurtz/polymarket-data/internal/model"
)

const upsertSnapshotSQL = `
	INSERT INTO current_markets
	(condition_id, question, description, category, end_date, active,
	 volume_24h, volume_total, liquidity, outcome_prices, clob_token_ids,
	 created_at, updated_at, fetch_timestamp, last_seen)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(condition_id) DO UPDATE SET
		question        = excluded.question,
		description     = excluded.description,
		category        = excluded.category,
		end_date        = excluded.end_date,
		active          = excluded.active,
		volume_24h      = excluded.volume_24h,
		volume_total    = excluded.volume_total,
		liquidity       = excluded.liquidity,
		outcome_prices  = excluded.outcome_prices,
		clob_token_ids  = excluded.clob_token_ids,
		updated_at      = excluded.updated_at,
		fetch_timestamp = excluded.fetch_timestamp,
		last_seen       = excluded.last_seen`

const insertHistorySQL = `
	INSERT INTO market_history
	(condition_id, fetch_timestamp, volume_24h, liquidity, outcome_prices)
	VALUES (?, ?, ?, ?, ?)`

const insertCreationSQL = `
	INSERT INTO market_creations
	(condition_id, first_seen, creator_address, initial_liquidity, question, category)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(condition_id) DO NOTHING`

const insertFetchLogSQL = `
	INSERT INTO fetch_log
	(cycle_id, fetch_timestamp, markets_fetched, markets_active, markets_skipped,
	 duration_micros, success, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// execer is satisfied by both *sql.DB and *sql.Tx so the write helpers serve
// the per-cycle transaction and the standalone methods.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyCycle applies one cycle's full write set in a single transaction.
// A failure partway rolls everything back, leaving the previous cycle's data
// intact.
func (s *Store) ApplyCycle(ctx context.Context, data model.CycleData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cycle tx: %w", err)
	}
	defer tx.Rollback()

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

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cycle tx: %w", err)
	}
	return nil
}

// UpsertSnapshots replaces-or-inserts snapshots by condition_id in one
// transaction; a mid-batch failure applies nothing.
func (s *Store) UpsertSnapshots(ctx context.Context, snaps []model.MarketSnapshot) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertSnapshots(ctx, tx, snaps)
	})
}

// AppendHistory inserts history points in one transaction.
func (s *Store) AppendHistory(ctx context.Context, points []model.MarketHistoryPoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return appendHistory(ctx, tx, points)
	})
}

// RecordCreations inserts creation events for condition_ids not already
// recorded. Existing rows are left untouched.
func (s *Store) RecordCreations(ctx context.Context, events []model.MarketCreationEvent) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return recordCreations(ctx, tx, events)
	})
}

// LogFetch inserts one fetch-log row.
func (s *Store) LogFetch(ctx context.Context, entry model.FetchLogEntry) error {
	return logFetch(ctx, s.db, entry)
}

// PruneHistoryBefore deletes history points older than cutoff and returns
// the number of rows deleted.
func (s *Store) PruneHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM market_history WHERE fetch_timestamp < ?`,
		cutoff.UnixMicro(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertSnapshots(ctx context.Context, e execer, snaps []model.MarketSnapshot) error {
	for _, m := range snaps {
		_, err := e.ExecContext(ctx, upsertSnapshotSQL,
			m.ConditionID, m.Question, m.Description, m.Category, m.EndDate,
			boolToInt(m.Active),
			m.Volume24h, m.VolumeTotal, m.Liquidity,
			m.OutcomePrices, m.ClobTokenIDs,
			m.FetchedAt.UnixMicro(), m.FetchedAt.UnixMicro(),
			m.FetchedAt.UnixMicro(), m.LastSeen.UnixMicro(),
		)
		if err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", m.ConditionID, err)
		}
	}
	return nil
}

func appendHistory(ctx context.Context, e execer, points []model.MarketHistoryPoint) error {
	for _, p := range points {
		_, err := e.ExecContext(ctx, insertHistorySQL,
			p.ConditionID, p.Timestamp.UnixMicro(),
			p.Volume24h, p.Liquidity, p.OutcomePrices,
		)
		if err != nil {
			return fmt.Errorf("append history %s: %w", p.ConditionID, err)
		}
	}
	return nil
}

func recordCreations(ctx context.Context, e execer, events []model.MarketCreationEvent) error {
	for _, ev := range events {
		_, err := e.ExecContext(ctx, insertCreationSQL,
			ev.ConditionID, ev.FirstSeen.UnixMicro(),
			ev.CreatorAddress, ev.InitialLiquidity,
			ev.Question, ev.Category,
		)
		if err != nil {
			return fmt.Errorf("record creation %s: %w", ev.ConditionID, err)
		}
	}
	return nil
}

func logFetch(ctx context.Context, e execer, entry model.FetchLogEntry) error {
	_, err := e.ExecContext(ctx, insertFetchLogSQL,
		entry.CycleID.String(), entry.Timestamp.UnixMicro(),
		entry.MarketsCount, entry.MarketsActive, entry.Skipped,
		entry.Duration.Microseconds(),
		boolToInt(entry.Success), entry.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("log fetch: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
