// Package store defines the persistence contract for collected market data.
//
// Two backends implement Store: sqlite (default, single local file) and
// postgres (hosted deployments). The collector is the single writer; readers
// such as the dashboard query the same store concurrently.
package store

import (
	"context"
	"time"

	"github.com/mkurtz/polymarket-data/internal/model"
)

// Store is the persistence layer for the four collected record kinds.
//
// ApplyCycle wraps one cycle's writes in a single transaction; the individual
// write methods each run in their own short transaction and exist for the
// retention pass, failure-path fetch logging, and tests.
type Store interface {
	// KnownConditionIDs returns the set of condition_ids currently present
	// in the snapshot table. Read before upserting to compute the diff.
	KnownConditionIDs(ctx context.Context) (map[string]struct{}, error)

	// ApplyCycle atomically applies a full cycle: snapshot upserts, history
	// appends, creation inserts (if absent), and the fetch-log row. A failure
	// partway leaves the previous cycle's data intact.
	ApplyCycle(ctx context.Context, data model.CycleData) error

	// UpsertSnapshots replaces-or-inserts snapshots by condition_id.
	// Whole-batch: a mid-batch failure applies nothing.
	UpsertSnapshots(ctx context.Context, snaps []model.MarketSnapshot) error

	// AppendHistory inserts history points.
	AppendHistory(ctx context.Context, points []model.MarketHistoryPoint) error

	// RecordCreations inserts creation events for ids not already recorded.
	// Conflicts on condition_id are swallowed, not errors.
	RecordCreations(ctx context.Context, events []model.MarketCreationEvent) error

	// LogFetch inserts one fetch-log row.
	LogFetch(ctx context.Context, entry model.FetchLogEntry) error

	// PruneHistoryBefore deletes history points with timestamps before
	// cutoff and returns the number deleted.
	PruneHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Read-side queries for the dashboard and health endpoint.
	LatestMarkets(ctx context.Context, minVolume float64, limit int) ([]model.MarketSnapshot, error)
	MarketHistory(ctx context.Context, conditionID string, since time.Time) ([]model.MarketHistoryPoint, error)
	RecentFetchLog(ctx context.Context, limit int) ([]model.FetchLogEntry, error)
	Stats(ctx context.Context) (model.StoreStats, error)

	Ping(ctx context.Context) error
	Close() error
}
