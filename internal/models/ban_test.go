package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestBanRecord_ActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	temp := TemporaryBan(now, (10 * time.Minute).Milliseconds())
	huge := TemporaryBan(now, 10_000_000_000_000)
	saturated := TemporaryBan(now, math.MaxInt64)

	tests := []struct {
		name     string
		ban      BanRecord
		at       time.Time
		expected bool
	}{
		{"permanent always active", PermanentBan(), now.Add(1000 * time.Hour), true},
		{"temporary before expiry", temp, now.Add(9 * time.Minute), true},
		{"temporary at expiry", temp, now.Add(10 * time.Minute), false},
		{"temporary after expiry", temp, now.Add(11 * time.Minute), false},
		{"centuries long", huge, now.Add(100 * 365 * 24 * time.Hour), true},
		{"saturated at max", saturated, now.Add(200 * 365 * 24 * time.Hour), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ban.ActiveAt(tc.at); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestBanRecord_JSONShape(t *testing.T) {
	b, _ := json.Marshal(PermanentBan())
	if string(b) != `{"permanent":true}` {
		t.Fatalf("unexpected permanent encoding %s", b)
	}

	now := time.UnixMilli(1_700_000_000_000)
	b, _ = json.Marshal(TemporaryBan(now, 1000))
	if string(b) != `{"permanent":false,"until":1700000001000}` {
		t.Fatalf("unexpected temporary encoding %s", b)
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("X", 3600))
	if got := FormatTime(ts); got != "2026-01-02T02:04:05.006Z" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestTemporaryBan_Until(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name       string
		durationMs int64
		want       int64
	}{
		{"one minute", 60_000, 1_700_000_060_000},
		{"beyond time.Duration range", 10_000_000_000_000, 1_700_000_000_000 + 10_000_000_000_000},
		{"overflowing sum", math.MaxInt64 - 1, math.MaxInt64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TemporaryBan(now, tc.durationMs).Until; got != tc.want {
				t.Errorf("Expected until %d, got %d", tc.want, got)
			}
		})
	}
}
