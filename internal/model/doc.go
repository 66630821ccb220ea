// Package model defines shared data types used across the collector.
//
// All types mirror the database schema (current_markets, market_history,
// market_creations, fetch_log).
//
// Conventions:
//   - Monetary values: float64 USD, as reported by the Gamma API
//   - Timestamps: time.Time in UTC; persisted as int64 microseconds since epoch
//   - IDs: condition_id strings for markets, uuid.UUID for cycle IDs
package model
