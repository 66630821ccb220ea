package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Snapshot Types
// -----------------------------------------------------------------------------

// MarketSnapshot is the latest known state of a market. One row per
// condition_id, overwritten in place each collection cycle.
type MarketSnapshot struct {
	ConditionID   string  // Primary key (stable external identifier)
	Question      string  // Market question text
	Description   string  // Long-form description
	Category      string  // Category (e.g., "Politics"), "Uncategorized" if absent
	EndDate       string  // Market end date as reported upstream (ISO 8601)
	Active        bool    // Market currently active
	Volume24h     float64 // 24-hour trading volume (USD)
	VolumeTotal   float64 // Lifetime trading volume (USD)
	Liquidity     float64 // Current liquidity (USD)
	OutcomePrices string  // JSON-encoded price array, e.g. `["0.5","0.5"]`
	ClobTokenIDs  string  // JSON-encoded CLOB token ID array

	FetchedAt time.Time // Timestamp of the cycle that produced this row
	LastSeen  time.Time // Last cycle in which the market appeared upstream
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// MarketHistoryPoint is one time-stamped volume/liquidity sample.
// Append-only; rows older than the retention window are pruned.
type MarketHistoryPoint struct {
	ConditionID   string    // Market identifier
	Timestamp     time.Time // Cycle timestamp (natural key with ConditionID)
	Volume24h     float64   // 24-hour volume at sample time
	Liquidity     float64   // Liquidity at sample time
	OutcomePrices string    // JSON-encoded price array at sample time
}

// MarketCreationEvent records the first observation of a market.
// At most one row per condition_id, never updated, never pruned.
type MarketCreationEvent struct {
	ConditionID      string
	FirstSeen        time.Time
	CreatorAddress   string  // "unknown" when the upstream payload omits it
	InitialLiquidity float64 // Liquidity at first observation
	Question         string
	Category         string
}

// FetchLogEntry is the audit record for one collection cycle.
// Exactly one row per scheduled cycle, success or failure.
type FetchLogEntry struct {
	CycleID       uuid.UUID     // Unique ID for the cycle, also used in log lines
	Timestamp     time.Time     // Cycle start time
	MarketsCount  int           // Markets fetched (0 on failure)
	MarketsActive int           // Markets with active=true
	Skipped       int           // Malformed entries skipped by the normalizer
	Duration      time.Duration // Wall-clock fetch duration
	Success       bool
	ErrorDetail   string // Empty on success
}

// -----------------------------------------------------------------------------
// Batch Types
// -----------------------------------------------------------------------------

// CycleData is the full write set of one collection cycle. The store applies
// it in a single transaction so a mid-batch failure leaves the previous
// cycle's data intact.
type CycleData struct {
	Snapshots []MarketSnapshot
	History   []MarketHistoryPoint
	Creations []MarketCreationEvent
	Log       FetchLogEntry
}

// StoreStats summarizes store contents for the dashboard and health endpoint.
type StoreStats struct {
	TotalMarkets      int
	ActiveMarkets     int
	LastFetch         time.Time // Zero if no successful fetch yet
	SuccessfulFetches int
	NewMarkets24h     int
}
