package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkurtz/polymarket-data/internal/model"
)

// LatestMarkets returns active markets with volume_24h >= minVolume, ordered
// by volume_24h descending.
func (s *Store) LatestMarkets(ctx context.Context, minVolume float64, limit int) ([]model.MarketSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT condition_id, question, description, category, end_date, active,
		       volume_24h, volume_total, liquidity, outcome_prices, clob_token_ids,
		       fetch_timestamp, last_seen
		FROM current_markets
		WHERE active AND volume_24h >= $1
		ORDER BY volume_24h DESC
		LIMIT $2`,
		minVolume, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest markets: %w", err)
	}
	defer rows.Close()

	var markets []model.MarketSnapshot
	for rows.Next() {
		m, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest markets: %w", err)
	}
	return markets, nil
}

// MarketHistory returns history points for one market at or after since,
// oldest first.
func (s *Store) MarketHistory(ctx context.Context, conditionID string, since time.Time) ([]model.MarketHistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT condition_id, fetch_timestamp, volume_24h, liquidity, outcome_prices
		FROM market_history
		WHERE condition_id = $1 AND fetch_timestamp >= $2
		ORDER BY fetch_timestamp ASC`,
		conditionID, since.UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("query market history: %w", err)
	}
	defer rows.Close()

	var points []model.MarketHistoryPoint
	for rows.Next() {
		var p model.MarketHistoryPoint
		var ts int64
		if err := rows.Scan(&p.ConditionID, &ts, &p.Volume24h, &p.Liquidity, &p.OutcomePrices); err != nil {
			return nil, fmt.Errorf("scan history point: %w", err)
		}
		p.Timestamp = time.UnixMicro(ts).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market history: %w", err)
	}
	return points, nil
}

// RecentFetchLog returns the most recent fetch-log rows, newest first.
func (s *Store) RecentFetchLog(ctx context.Context, limit int) ([]model.FetchLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT cycle_id, fetch_timestamp, markets_fetched, markets_active,
		       markets_skipped, duration_micros, success, error_message
		FROM fetch_log
		ORDER BY fetch_timestamp DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query fetch log: %w", err)
	}
	defer rows.Close()

	var entries []model.FetchLogEntry
	for rows.Next() {
		var e model.FetchLogEntry
		var id string
		var ts, dur int64
		if err := rows.Scan(&id, &ts, &e.MarketsCount, &e.MarketsActive,
			&e.Skipped, &dur, &e.Success, &e.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan fetch log: %w", err)
		}
		e.CycleID, _ = uuid.Parse(id)
		e.Timestamp = time.UnixMicro(ts).UTC()
		e.Duration = time.Duration(dur) * time.Microsecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch log: %w", err)
	}
	return entries, nil
}

// Stats summarizes store contents for the dashboard and health endpoint.
func (s *Store) Stats(ctx context.Context) (model.StoreStats, error) {
	var st model.StoreStats

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE active) FROM current_markets`,
	).Scan(&st.TotalMarkets, &st.ActiveMarkets)
	if err != nil {
		return st, fmt.Errorf("stats markets: %w", err)
	}

	var lastFetch *int64
	err = s.pool.QueryRow(ctx,
		`SELECT MAX(fetch_timestamp) FROM fetch_log WHERE success`,
	).Scan(&lastFetch)
	if err != nil {
		return st, fmt.Errorf("stats last fetch: %w", err)
	}
	if lastFetch != nil {
		st.LastFetch = time.UnixMicro(*lastFetch).UTC()
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM fetch_log WHERE success`,
	).Scan(&st.SuccessfulFetches)
	if err != nil {
		return st, fmt.Errorf("stats fetch count: %w", err)
	}

	dayAgo := time.Now().Add(-24 * time.Hour).UnixMicro()
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM market_creations WHERE first_seen >= $1`, dayAgo,
	).Scan(&st.NewMarkets24h)
	if err != nil {
		return st, fmt.Errorf("stats new markets: %w", err)
	}

	return st, nil
}

func scanSnapshot(rows pgx.Rows) (model.MarketSnapshot, error) {
	var m model.MarketSnapshot
	var fetched, lastSeen int64
	err := rows.Scan(
		&m.ConditionID, &m.Question, &m.Description, &m.Category, &m.EndDate,
		&m.Active, &m.Volume24h, &m.VolumeTotal, &m.Liquidity,
		&m.OutcomePrices, &m.ClobTokenIDs, &fetched, &lastSeen,
	)
	if err != nil {
		return m, fmt.Errorf("scan snapshot: %w", err)
	}
	m.FetchedAt = time.UnixMicro(fetched).UTC()
	m.LastSeen = time.UnixMicro(lastSeen).UTC()
	return m, nil
}
