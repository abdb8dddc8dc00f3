package utils

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar tells the poller whether a date is a trading day, using
// scmhub/calendar when the exchange is known.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar loads the calendar for an ISO 10383 MIC ("xbom", "xnys", ...).
// Unknown MICs fall back to a plain Mon-Fri week in loc.
func GetCalendar(mic string, loc *time.Location) *TradingCalendar {
	if loc == nil {
		loc = time.Local
	}
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		return &TradingCalendar{Fallback: true, Timezone: loc}
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		return &TradingCalendar{Fallback: true, Timezone: loc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}
