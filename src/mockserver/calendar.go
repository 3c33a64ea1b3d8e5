package mockserver

import (
	"time"

	"github.com/scmhub/calendar"
)

// -----------------------------------------------------------------------------
// Trading Calendar
// -----------------------------------------------------------------------------

// tradingCalendar gates market envelopes on NYSE trading hours, with a
// simple Mon-Fri 09:30-16:00 NY fallback when the calendar cannot load.
type tradingCalendar struct {
	cal      *calendar.Calendar
	fallback bool
	timezone *time.Location
}

// -----------------------------------------------------------------------------

func newTradingCalendar() *tradingCalendar {
	// See scmhub/calendar for supported MICs (ISO 10383)
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		nyLoc, err := time.LoadLocation("America/New_York")
		if err != nil {
			nyLoc = time.UTC
		}
		return &tradingCalendar{fallback: true, timezone: nyLoc}
	}
	return &tradingCalendar{cal: cal, timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *tradingCalendar) isOpen(t time.Time) bool {
	if tc.timezone != nil {
		t = t.In(tc.timezone)
	}

	if tc.fallback {
		weekday := t.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			return false
		}
		hour, minute := t.Hour(), t.Minute()
		// 9:30 - 16:00 NY Time
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return tc.cal.IsOpen(t)
}
