package models

import (
	"math"
	"time"
)

// MOpeningBaseline is the absolute MTM sampled at the opening minute.
type MOpeningBaseline struct {
	Value      float64   `json:"value"`
	Captured   bool      `json:"captured"`
	CapturedAt time.Time `json:"captured_at"`
}

// MAccountStats holds running aggregates of the relative MTM.
// MaxMTM/MinMTM are -Inf/+Inf until the first update.
type MAccountStats struct {
	CurrentMTM float64 `json:"current_mtm"`
	MaxMTM     float64 `json:"max_mtm"`
	MinMTM     float64 `json:"min_mtm"`
	Updates    int64   `json:"updates"`
}

// NewAccountStats returns stats with empty bounds.
func NewAccountStats() MAccountStats {
	return MAccountStats{MaxMTM: math.Inf(-1), MinMTM: math.Inf(1)}
}

// Finite replaces unset bounds with 0 so the value can be JSON encoded.
func (s MAccountStats) Finite() MAccountStats {
	if math.IsInf(s.MaxMTM, 0) || math.IsNaN(s.MaxMTM) {
		s.MaxMTM = 0
	}
	if math.IsInf(s.MinMTM, 0) || math.IsNaN(s.MinMTM) {
		s.MinMTM = 0
	}
	return s
}

// MHistoryPoint is one down-sampled chart point. Timestamp is HH:MM:SS.
type MHistoryPoint struct {
	Timestamp string  `json:"timestamp"`
	MTM       float64 `json:"mtm"`
}

// MCacheEntry is the last raw payload fetched for an account.
type MCacheEntry struct {
	RawPayload []byte    `json:"raw_payload"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// MQuote is a decoded terminal response.
type MQuote struct {
	UserID      string
	AbsoluteMTM float64
	RawPayload  []byte
	FetchedAt   time.Time
}
