package api

import (
	"encoding/json"
	"testing"
)

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    float64
		wantErr bool
	}{
		{"number", `{"v": 12.5}`, 12.5, false},
		{"string number", `{"v": "12.5"}`, 12.5, false},
		{"empty string", `{"v": ""}`, 0, false},
		{"null", `{"v": null}`, 0, false},
		{"missing", `{}`, 0, false},
		{"garbage string", `{"v": "lots"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				V FlexFloat `json:"v"`
			}
			err := json.Unmarshal([]byte(tt.json), &out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if float64(out.V) != tt.want {
				t.Errorf("V = %v, want %v", float64(out.V), tt.want)
			}
		})
	}
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		json string
		want bool
	}{
		{`{"v": true}`, true},
		{`{"v": false}`, false},
		{`{"v": "true"}`, true},
		{`{"v": "True"}`, true},
		{`{"v": "false"}`, false},
		{`{"v": "1"}`, true},
	}

	for _, tt := range tests {
		var out struct {
			V FlexBool `json:"v"`
		}
		if err := json.Unmarshal([]byte(tt.json), &out); err != nil {
			t.Fatalf("unmarshal %s failed: %v", tt.json, err)
		}
		if bool(out.V) != tt.want {
			t.Errorf("%s: V = %v, want %v", tt.json, bool(out.V), tt.want)
		}
	}
}

func TestDecodeMarket(t *testing.T) {
	raw := json.RawMessage(`{
		"conditionId": "0xabc",
		"question": "Will it rain?",
		"category": "Weather",
		"active": "true",
		"volume24hr": "1234.5",
		"volume": 99999,
		"liquidity": "500"
	}`)

	m, err := DecodeMarket(raw)
	if err != nil {
		t.Fatalf("DecodeMarket failed: %v", err)
	}
	if m.ConditionID != "0xabc" {
		t.Errorf("ConditionID = %q, want %q", m.ConditionID, "0xabc")
	}
	if !bool(m.Active) {
		t.Error("Active = false, want true")
	}
	if float64(m.Volume24h) != 1234.5 {
		t.Errorf("Volume24h = %v, want 1234.5", float64(m.Volume24h))
	}
	if float64(m.VolumeTotal) != 99999 {
		t.Errorf("VolumeTotal = %v, want 99999", float64(m.VolumeTotal))
	}

	if _, err := DecodeMarket(json.RawMessage(`"not an object"`)); err == nil {
		t.Error("expected error for non-object entry")
	}
}
