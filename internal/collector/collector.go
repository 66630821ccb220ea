// Package collector executes one fetch-normalize-store cycle and the
// retention pass against the store.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkurtz/polymarket-data/internal/model"
	"github.com/mkurtz/polymarket-data/internal/normalize"
	"github.com/mkurtz/polymarket-data/internal/store"
)

// MarketFetcher retrieves the raw market list from the upstream API.
type MarketFetcher interface {
	GetAllMarkets(ctx context.Context) ([]json.RawMessage, error)
}

// Collector runs collection cycles. It holds no persistent state between
// cycles; the known-market set is re-read from the store each cycle.
type Collector struct {
	fetcher   MarketFetcher
	store     store.Store
	retention time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// New creates a Collector. retention is the age beyond which history points
// are pruned.
func New(fetcher MarketFetcher, st store.Store, retention time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fetcher:   fetcher,
		store:     st,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// RunCycle executes one fetch-normalize-store cycle. Exactly one fetch-log
// row is written per call, success or failure (unless the store itself is
// unreachable, in which case the failure is surfaced to the process log).
// Errors are contained: the caller logs and proceeds to the next cycle.
func (c *Collector) RunCycle(ctx context.Context) error {
	cycleID := uuid.New()
	start := c.now().UTC()

	raw, err := c.fetcher.GetAllMarkets(ctx)
	fetchDur := c.now().Sub(start)
	if err != nil {
		c.recordFailure(ctx, cycleID, start, fetchDur, err)
		return fmt.Errorf("fetch markets: %w", err)
	}

	// Read the prior snapshot set before upserting; markets absent from it
	// become creation events.
	known, err := c.store.KnownConditionIDs(ctx)
	if err != nil {
		c.recordFailure(ctx, cycleID, start, fetchDur, err)
		return fmt.Errorf("read known markets: %w", err)
	}

	res := normalize.Markets(raw, known, start)

	data := model.CycleData{
		Snapshots: res.Snapshots,
		History:   res.History,
		Creations: res.Creations,
		Log: model.FetchLogEntry{
			CycleID:       cycleID,
			Timestamp:     start,
			MarketsCount:  len(res.Snapshots),
			MarketsActive: res.Active,
			Skipped:       res.Skipped,
			Duration:      fetchDur,
			Success:       true,
		},
	}

	if err := c.store.ApplyCycle(ctx, data); err != nil {
		// The batch rolled back; the previous cycle's data is intact.
		c.recordFailure(ctx, cycleID, start, fetchDur, err)
		return fmt.Errorf("store cycle: %w", err)
	}

	c.logger.Info("cycle complete",
		"cycle_id", cycleID,
		"markets", len(res.Snapshots),
		"new_markets", len(res.Creations),
		"skipped", res.Skipped,
		"fetch_duration", fetchDur,
	)
	return nil
}

// RunRetention prunes history points older than the retention window.
func (c *Collector) RunRetention(ctx context.Context) error {
	cutoff := c.now().UTC().Add(-c.retention)
	deleted, err := c.store.PruneHistoryBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("retention prune failed", "error", err)
		return fmt.Errorf("prune history: %w", err)
	}
	if deleted > 0 {
		c.logger.Info("pruned history", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}

// recordFailure writes the cycle's fetch-log row with success=false. If even
// the log write fails, the error goes to the process log; the next cycle
// proceeds unaffected.
func (c *Collector) recordFailure(ctx context.Context, cycleID uuid.UUID, start time.Time, dur time.Duration, cause error) {
	entry := model.FetchLogEntry{
		CycleID:     cycleID,
		Timestamp:   start,
		Duration:    dur,
		Success:     false,
		ErrorDetail: cause.Error(),
	}
	if err := c.store.LogFetch(ctx, entry); err != nil {
		c.logger.Error("failed to record fetch log", "cycle_id", cycleID, "error", err)
	}
	c.logger.Error("cycle failed",
		"cycle_id", cycleID,
		"error", cause,
	)
}
