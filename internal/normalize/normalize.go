// Package normalize maps raw Gamma API payloads into typed records and
// detects newly observed markets.
package normalize

import (
	"encoding/json"
	"time"

	"github.com/mkurtz/polymarket-data/internal/api"
	"github.com/mkurtz/polymarket-data/internal/model"
)

// Defaults applied when the upstream payload omits a field. Partial upstream
// data is expected and must not abort the cycle.
const (
	defaultCategory      = "Uncategorized"
	defaultOutcomePrices = "[0.5, 0.5]"
	defaultTokenIDs      = "[]"
	defaultCreator       = "unknown"
)

// Result holds the normalized output of one cycle's payload.
type Result struct {
	Snapshots []model.MarketSnapshot
	History   []model.MarketHistoryPoint
	Creations []model.MarketCreationEvent

	// Skipped counts malformed or duplicate entries dropped from the payload.
	Skipped int
	// Active counts markets reported active upstream.
	Active int
}

// Markets normalizes a raw payload against the set of condition_ids already
// present in the store.
//
// Per market it produces a snapshot record and a history point stamped with
// now. Markets absent from known become creation-event candidates. Entries
// that fail to decode or lack a condition_id are skipped and counted, as are
// duplicate condition_ids within one payload (the first occurrence wins, so
// the (condition_id, timestamp) history key stays unique per cycle).
func Markets(raw []json.RawMessage, known map[string]struct{}, now time.Time) Result {
	var res Result
	seen := make(map[string]struct{}, len(raw))

	for _, entry := range raw {
		m, err := api.DecodeMarket(entry)
		if err != nil || m.ConditionID == "" {
			res.Skipped++
			continue
		}
		if _, dup := seen[m.ConditionID]; dup {
			res.Skipped++
			continue
		}
		seen[m.ConditionID] = struct{}{}

		if m.Active {
			res.Active++
		}

		snap := snapshot(m, now)
		res.Snapshots = append(res.Snapshots, snap)
		res.History = append(res.History, model.MarketHistoryPoint{
			ConditionID:   snap.ConditionID,
			Timestamp:     now,
			Volume24h:     snap.Volume24h,
			Liquidity:     snap.Liquidity,
			OutcomePrices: snap.OutcomePrices,
		})

		if _, ok := known[m.ConditionID]; !ok {
			res.Creations = append(res.Creations, creation(m, now))
		}
	}

	return res
}

func snapshot(m api.APIMarket, now time.Time) model.MarketSnapshot {
	return model.MarketSnapshot{
		ConditionID:   m.ConditionID,
		Question:      m.Question,
		Description:   m.Description,
		Category:      withDefault(m.Category, defaultCategory),
		EndDate:       m.EndDate,
		Active:        bool(m.Active),
		Volume24h:     float64(m.Volume24h),
		VolumeTotal:   float64(m.VolumeTotal),
		Liquidity:     float64(m.Liquidity),
		OutcomePrices: withDefault(m.OutcomePrices, defaultOutcomePrices),
		ClobTokenIDs:  withDefault(m.ClobTokenIDs, defaultTokenIDs),
		FetchedAt:     now,
		LastSeen:      now,
	}
}

func creation(m api.APIMarket, now time.Time) model.MarketCreationEvent {
	return model.MarketCreationEvent{
		ConditionID:      m.ConditionID,
		FirstSeen:        now,
		CreatorAddress:   withDefault(m.CreatorAddress, defaultCreator),
		InitialLiquidity: float64(m.Liquidity),
		Question:         m.Question,
		Category:         withDefault(m.Category, defaultCategory),
	}
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
