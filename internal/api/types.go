package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexBool unmarshals from JSON bool or string ("true"/"false") so Gamma
// responses work whether "active" is sent as bool or string.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// FlexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// volume/liquidity fields in both encodings. Null and the empty string decode
// to zero; a non-numeric string is an error, which causes the normalizer to
// skip the market.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse numeric string %q: %w", s, err)
	}
	*f = FlexFloat(n)
	return nil
}

// APIMarket represents a market object as returned by the Gamma API.
// Field names follow the upstream camelCase wire format.
type APIMarket struct {
	ConditionID    string    `json:"conditionId"`
	Question       string    `json:"question"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	EndDate        string    `json:"endDate"`
	Active         FlexBool  `json:"active"`
	Closed         FlexBool  `json:"closed"`
	Volume24h      FlexFloat `json:"volume24hr"`
	VolumeTotal    FlexFloat `json:"volume"`
	Liquidity      FlexFloat `json:"liquidity"`
	OutcomePrices  string    `json:"outcomePrices"` // JSON-encoded, e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs   string    `json:"clobTokenIds"`  // JSON-encoded token ID array
	CreatorAddress string    `json:"creator"`       // Rarely populated upstream
}

// DecodeMarket decodes one raw market entry. Callers treat a decode failure
// as a malformed entry: skipped and counted, never fatal to the cycle.
func DecodeMarket(raw json.RawMessage) (APIMarket, error) {
	var m APIMarket
	if err := json.Unmarshal(raw, &m); err != nil {
		return APIMarket{}, fmt.Errorf("decode market: %w", err)
	}
	return m, nil
}
