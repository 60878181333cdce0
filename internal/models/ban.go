package models

import (
	"math"
	"time"
)

// BanRecord is either permanent or temporary until Until (epoch milliseconds).
type BanRecord struct {
	Permanent bool  `json:"permanent"`
	Until     int64 `json:"until,omitempty"`
}

func PermanentBan() BanRecord { return BanRecord{Permanent: true} }

// TemporaryBan lasts durationMs milliseconds from now. Durations too large
// to represent end at the far future instead of wrapping around.
func TemporaryBan(now time.Time, durationMs int64) BanRecord {
	start := now.UnixMilli()
	if durationMs > math.MaxInt64-start {
		return BanRecord{Until: math.MaxInt64}
	}
	return BanRecord{Until: start + durationMs}
}

// ActiveAt reports whether the ban still applies at now.
func (b BanRecord) ActiveAt(now time.Time) bool {
	return b.Permanent || now.UnixMilli() < b.Until
}

// Expiry is the zero time for permanent bans.
func (b BanRecord) Expiry() time.Time {
	if b.Permanent {
		return time.Time{}
	}
	return time.UnixMilli(b.Until)
}
