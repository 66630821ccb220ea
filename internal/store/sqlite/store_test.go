package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mkurtz/polymarket-data/internal/model"
)

var (
	t1 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t2 = t1.Add(5 * time.Minute)
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func snap(id string, vol float64, ts time.Time) model.MarketSnapshot {
	return model.MarketSnapshot{
		ConditionID:   id,
		Question:      "Q " + id,
		Category:      "Test",
		Active:        true,
		Volume24h:     vol,
		Liquidity:     vol / 2,
		OutcomePrices: `["0.5","0.5"]`,
		ClobTokenIDs:  "[]",
		FetchedAt:     ts,
		LastSeen:      ts,
	}
}

func point(id string, ts time.Time, vol float64) model.MarketHistoryPoint {
	return model.MarketHistoryPoint{
		ConditionID: id,
		Timestamp:   ts,
		Volume24h:   vol,
		Liquidity:   vol / 2,
	}
}

func creation(id string, ts time.Time) model.MarketCreationEvent {
	return model.MarketCreationEvent{
		ConditionID:    id,
		FirstSeen:      ts,
		CreatorAddress: "unknown",
		Question:       "Q " + id,
		Category:       "Test",
	}
}

func entry(ts time.Time, count int, success bool) model.FetchLogEntry {
	return model.FetchLogEntry{
		CycleID:      uuid.New(),
		Timestamp:    ts,
		MarketsCount: count,
		Success:      success,
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}

func TestOpen_WALMode(t *testing.T) {
	s := openTestStore(t)

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestUpsertSnapshots_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	batch := []model.MarketSnapshot{snap("0xa", 100, t1), snap("0xb", 200, t1)}

	// Upserting the same batch twice leaves the table in the same state.
	for i := 0; i < 2; i++ {
		if err := s.UpsertSnapshots(ctx, batch); err != nil {
			t.Fatalf("UpsertSnapshots pass %d failed: %v", i+1, err)
		}
	}

	if n := countRows(t, s, "current_markets"); n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}

	markets, err := s.LatestMarkets(ctx, 0, 10)
	if err != nil {
		t.Fatalf("LatestMarkets failed: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("len(markets) = %d, want 2", len(markets))
	}
	if markets[0].ConditionID != "0xb" {
		t.Errorf("markets[0] = %s, want 0xb (highest volume first)", markets[0].ConditionID)
	}
}

func TestUpsertSnapshots_OverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.UpsertSnapshots(ctx, []model.MarketSnapshot{snap("0xa", 100, t1)}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	updated := snap("0xa", 999, t2)
	if err := s.UpsertSnapshots(ctx, []model.MarketSnapshot{updated}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	markets, err := s.LatestMarkets(ctx, 0, 10)
	if err != nil {
		t.Fatalf("LatestMarkets failed: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("len(markets) = %d, want 1", len(markets))
	}
	if markets[0].Volume24h != 999 {
		t.Errorf("Volume24h = %v, want 999", markets[0].Volume24h)
	}
	if !markets[0].LastSeen.Equal(t2) {
		t.Errorf("LastSeen = %v, want %v", markets[0].LastSeen, t2)
	}
}

func TestRecordCreations_OncePerConditionID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ev := creation("0xa", t1)
	for i := 0; i < 3; i++ {
		if err := s.RecordCreations(ctx, []model.MarketCreationEvent{ev}); err != nil {
			t.Fatalf("RecordCreations pass %d failed: %v", i, err)
		}
	}

	if n := countRows(t, s, "market_creations"); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	// The first-seen timestamp is never updated.
	later := creation("0xa", t2)
	if err := s.RecordCreations(ctx, []model.MarketCreationEvent{later}); err != nil {
		t.Fatalf("RecordCreations with later timestamp failed: %v", err)
	}
	var firstSeen int64
	if err := s.db.QueryRow(
		"SELECT first_seen FROM market_creations WHERE condition_id = ?", "0xa",
	).Scan(&firstSeen); err != nil {
		t.Fatalf("query first_seen failed: %v", err)
	}
	if firstSeen != t1.UnixMicro() {
		t.Errorf("first_seen = %d, want %d", firstSeen, t1.UnixMicro())
	}
}

func TestPruneHistoryBefore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	old := t1.Add(-8 * 24 * time.Hour)
	err := s.AppendHistory(ctx, []model.MarketHistoryPoint{
		point("0xa", old, 1),
		point("0xa", t1, 2),
		point("0xb", old, 3),
		point("0xb", t1.Add(time.Minute), 4),
	})
	if err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	deleted, err := s.PruneHistoryBefore(ctx, t1)
	if err != nil {
		t.Fatalf("PruneHistoryBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// Rows at or after the cutoff survive.
	points, err := s.MarketHistory(ctx, "0xa", time.Time{})
	if err != nil {
		t.Fatalf("MarketHistory failed: %v", err)
	}
	if len(points) != 1 || !points[0].Timestamp.Equal(t1) {
		t.Errorf("remaining points for 0xa = %+v, want one at %v", points, t1)
	}

	// Pruning again is a no-op.
	deleted, err = s.PruneHistoryBefore(ctx, t1)
	if err != nil {
		t.Fatalf("second prune failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second prune deleted = %d, want 0", deleted)
	}
}

func TestApplyCycle_Atomicity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	// Seed cycle 1.
	seed := model.CycleData{
		Snapshots: []model.MarketSnapshot{snap("0xa", 100, t1)},
		History:   []model.MarketHistoryPoint{point("0xa", t1, 100)},
		Creations: []model.MarketCreationEvent{creation("0xa", t1)},
		Log:       entry(t1, 1, true),
	}
	if err := s.ApplyCycle(ctx, seed); err != nil {
		t.Fatalf("seed cycle failed: %v", err)
	}

	// Cycle 2 carries a duplicate history key, which violates the
	// (condition_id, timestamp) primary key mid-batch.
	bad := model.CycleData{
		Snapshots: []model.MarketSnapshot{snap("0xa", 999, t2)},
		History: []model.MarketHistoryPoint{
			point("0xa", t2, 999),
			point("0xa", t2, 999),
		},
		Log: entry(t2, 1, true),
	}
	if err := s.ApplyCycle(ctx, bad); err == nil {
		t.Fatal("expected ApplyCycle to fail on duplicate history key")
	}

	// The whole batch rolled back: snapshot, history, and fetch_log all
	// reflect cycle 1 only.
	markets, err := s.LatestMarkets(ctx, 0, 10)
	if err != nil {
		t.Fatalf("LatestMarkets failed: %v", err)
	}
	if len(markets) != 1 || markets[0].Volume24h != 100 {
		t.Errorf("snapshot = %+v, want prior state (volume 100)", markets)
	}
	if n := countRows(t, s, "market_history"); n != 1 {
		t.Errorf("history rows = %d, want 1", n)
	}
	if n := countRows(t, s, "fetch_log"); n != 1 {
		t.Errorf("fetch_log rows = %d, want 1", n)
	}
}

func TestLogFetch_OneRowPerCycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		e := entry(t1.Add(time.Duration(i)*time.Minute), i, i%2 == 0)
		e.ErrorDetail = ""
		if !e.Success {
			e.ErrorDetail = "boom"
		}
		if err := s.LogFetch(ctx, e); err != nil {
			t.Fatalf("LogFetch %d failed: %v", i, err)
		}
	}

	entries, err := s.RecentFetchLog(ctx, 10)
	if err != nil {
		t.Fatalf("RecentFetchLog failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(entries))
	}
	// Newest first.
	if !entries[0].Timestamp.After(entries[4].Timestamp) {
		t.Errorf("entries not ordered newest first: %v .. %v",
			entries[0].Timestamp, entries[4].Timestamp)
	}
	if entries[0].Success || entries[0].ErrorDetail != "boom" {
		t.Errorf("entries[0] = %+v, want failed entry with detail", entries[0])
	}
}

// TestTwoCycleScenario runs the canonical two-cycle sequence: cycle 1 sees
// {A, B}, cycle 2 sees {A, C}. B's snapshot row is retained with a stale
// last_seen rather than removed.
func TestTwoCycleScenario(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	cycle1 := model.CycleData{
		Snapshots: []model.MarketSnapshot{snap("A", 10, t1), snap("B", 20, t1)},
		History:   []model.MarketHistoryPoint{point("A", t1, 10), point("B", t1, 20)},
		Creations: []model.MarketCreationEvent{creation("A", t1), creation("B", t1)},
		Log:       entry(t1, 2, true),
	}
	if err := s.ApplyCycle(ctx, cycle1); err != nil {
		t.Fatalf("cycle 1 failed: %v", err)
	}

	known, err := s.KnownConditionIDs(ctx)
	if err != nil {
		t.Fatalf("KnownConditionIDs failed: %v", err)
	}
	if len(known) != 2 {
		t.Fatalf("known = %v, want {A, B}", known)
	}

	// Cycle 2: B disappeared, C is new. C is the only creation candidate.
	cycle2 := model.CycleData{
		Snapshots: []model.MarketSnapshot{snap("A", 11, t2), snap("C", 30, t2)},
		History:   []model.MarketHistoryPoint{point("A", t2, 11), point("C", t2, 30)},
		Creations: []model.MarketCreationEvent{creation("C", t2)},
		Log:       entry(t2, 2, true),
	}
	if err := s.ApplyCycle(ctx, cycle2); err != nil {
		t.Fatalf("cycle 2 failed: %v", err)
	}

	if n := countRows(t, s, "current_markets"); n != 3 {
		t.Errorf("snapshot rows = %d, want 3 (B retained)", n)
	}
	if n := countRows(t, s, "market_creations"); n != 3 {
		t.Errorf("creation rows = %d, want 3", n)
	}
	if n := countRows(t, s, "market_history"); n != 4 {
		t.Errorf("history rows = %d, want 4", n)
	}
	if n := countRows(t, s, "fetch_log"); n != 2 {
		t.Errorf("fetch_log rows = %d, want 2", n)
	}

	// B keeps its cycle-1 last_seen.
	var lastSeen int64
	if err := s.db.QueryRow(
		"SELECT last_seen FROM current_markets WHERE condition_id = ?", "B",
	).Scan(&lastSeen); err != nil {
		t.Fatalf("query B last_seen failed: %v", err)
	}
	if lastSeen != t1.UnixMicro() {
		t.Errorf("B last_seen = %d, want %d (stale)", lastSeen, t1.UnixMicro())
	}
}

func TestMarketHistory_OrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.AppendHistory(ctx, []model.MarketHistoryPoint{
		point("0xa", t2, 2),
		point("0xa", t1, 1),
		point("0xb", t1, 3),
	})
	if err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	points, err := s.MarketHistory(ctx, "0xa", time.Time{})
	if err != nil {
		t.Fatalf("MarketHistory failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if !points[0].Timestamp.Equal(t1) || !points[1].Timestamp.Equal(t2) {
		t.Errorf("points not ordered oldest first: %v, %v",
			points[0].Timestamp, points[1].Timestamp)
	}

	// since filter excludes older points.
	points, err = s.MarketHistory(ctx, "0xa", t2)
	if err != nil {
		t.Fatalf("MarketHistory with since failed: %v", err)
	}
	if len(points) != 1 || !points[0].Timestamp.Equal(t2) {
		t.Errorf("filtered points = %+v, want one at %v", points, t2)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	inactive := snap("0xb", 5, t1)
	inactive.Active = false
	if err := s.UpsertSnapshots(ctx, []model.MarketSnapshot{snap("0xa", 10, t1), inactive}); err != nil {
		t.Fatalf("UpsertSnapshots failed: %v", err)
	}
	if err := s.RecordCreations(ctx, []model.MarketCreationEvent{creation("0xa", time.Now().UTC())}); err != nil {
		t.Fatalf("RecordCreations failed: %v", err)
	}
	if err := s.LogFetch(ctx, entry(t1, 2, true)); err != nil {
		t.Fatalf("LogFetch failed: %v", err)
	}
	if err := s.LogFetch(ctx, entry(t2, 0, false)); err != nil {
		t.Fatalf("LogFetch failed: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalMarkets != 2 {
		t.Errorf("TotalMarkets = %d, want 2", st.TotalMarkets)
	}
	if st.ActiveMarkets != 1 {
		t.Errorf("ActiveMarkets = %d, want 1", st.ActiveMarkets)
	}
	if st.SuccessfulFetches != 1 {
		t.Errorf("SuccessfulFetches = %d, want 1", st.SuccessfulFetches)
	}
	if !st.LastFetch.Equal(t1) {
		t.Errorf("LastFetch = %v, want %v (failed fetch excluded)", st.LastFetch, t1)
	}
	if st.NewMarkets24h != 1 {
		t.Errorf("NewMarkets24h = %d, want 1", st.NewMarkets24h)
	}
}

func TestLatestMarkets_MinVolumeFilter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.UpsertSnapshots(ctx, []model.MarketSnapshot{
		snap("0xa", 10, t1), snap("0xb", 100, t1), snap("0xc", 1000, t1),
	}); err != nil {
		t.Fatalf("UpsertSnapshots failed: %v", err)
	}

	markets, err := s.LatestMarkets(ctx, 50, 10)
	if err != nil {
		t.Fatalf("LatestMarkets failed: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("len(markets) = %d, want 2", len(markets))
	}
	if markets[0].ConditionID != "0xc" || markets[1].ConditionID != "0xb" {
		t.Errorf("order = %s, %s; want 0xc, 0xb", markets[0].ConditionID, markets[1].ConditionID)
	}
}
