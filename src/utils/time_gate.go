package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Phase is the time-of-day classification that decides whether a remote fetch
// is allowed.
type Phase int

const (
	PhasePreOpen Phase = iota
	PhaseOpeningUncaptured
	PhaseOpeningCaptured
	PhaseWarmup
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhasePreOpen:
		return "pre_open"
	case PhaseOpeningUncaptured:
		return "opening_uncaptured"
	case PhaseOpeningCaptured:
		return "opening_captured"
	case PhaseWarmup:
		return "warmup"
	case PhaseActive:
		return "active"
	}
	return "unknown"
}

// AllowsFetch reports whether a remote call may be issued in this phase.
func (p Phase) AllowsFetch() bool {
	return p == PhaseOpeningUncaptured || p == PhaseActive
}

// -----------------------------------------------------------------------------

// ParseHHMM converts "09:15" into 915.
func ParseHHMM(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*100 + m, nil
}

// EncodeHHMM returns hour*100+minute of t.
func EncodeHHMM(t time.Time) int {
	return t.Hour()*100 + t.Minute()
}

// FormatHHMM turns 915 back into "09:15".
func FormatHHMM(v int) string {
	return fmt.Sprintf("%02d:%02d", v/100, v%100)
}

// -----------------------------------------------------------------------------

// TimeGate classifies the current minute against the opening and start cutoffs.
type TimeGate struct {
	Opening int
	Start   int
}

func NewTimeGate(opening, start string) (*TimeGate, error) {
	o, err := ParseHHMM(opening)
	if err != nil {
		return nil, fmt.Errorf("opening time: %w", err)
	}
	s, err := ParseHHMM(start)
	if err != nil {
		return nil, fmt.Errorf("start time: %w", err)
	}
	return &TimeGate{Opening: o, Start: s}, nil
}

// Classify is a pure function of now and the captured flag. The opening minute
// is checked before the start cutoff, so it wins when both coincide.
func (g *TimeGate) Classify(now time.Time, captured bool) Phase {
	cur := EncodeHHMM(now)
	switch {
	case cur < g.Opening:
		return PhasePreOpen
	case cur == g.Opening && !captured:
		return PhaseOpeningUncaptured
	case cur == g.Opening:
		return PhaseOpeningCaptured
	case cur < g.Start:
		return PhaseWarmup
	default:
		return PhaseActive
	}
}

func (g *TimeGate) String() string {
	return fmt.Sprintf("opening %s, start %s", FormatHHMM(g.Opening), FormatHHMM(g.Start))
}

// IsOpeningMinute reports whether now falls inside the opening minute.
func (g *TimeGate) IsOpeningMinute(now time.Time) bool {
	return EncodeHHMM(now) == g.Opening
}
