package generic

import (
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// =============================================================================
// CALENDAR DATE - string-sortable day, as the backend sends it
// =============================================================================

// DateLayout is the only calendar date format the ledger sorts correctly.
const DateLayout = "2006-01-02"

// CalendarDate is a day in YYYY-MM-DD form. It is compared as a plain
// string: supplying any other format is a precondition violation and the
// value simply sorts where the string comparison puts it.
type CalendarDate string

// Valid reports whether d is a well-formed YYYY-MM-DD date.
func (d CalendarDate) Valid() bool {
	_, err := time.Parse(DateLayout, string(d))
	return err == nil
}

func (d CalendarDate) String() string { return string(d) }

// DateOf formats t as a CalendarDate in t's own location.
func DateOf(t time.Time) CalendarDate { return CalendarDate(t.Format(DateLayout)) }

// =============================================================================
// INSTANTS - lenient timestamp parsing for payment records
// =============================================================================

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// ParseInstant parses a backend timestamp. Zone-less values are read in loc.
// ok is false for empty or unparseable input.
func ParseInstant(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// =============================================================================
// WINDOWS - relative KPI bucket boundaries
// =============================================================================

// Windows holds the start instants of the nested dashboard buckets.
// Every bucket is open-ended: an instant belongs to it when it is not
// before the start.
type Windows struct {
	Now          time.Time
	StartOfDay   time.Time
	StartOfWeek  time.Time
	StartOfMonth time.Time
}

// WindowsAt computes the bucket starts for ref in ref's location.
// Weeks start on Monday.
func WindowsAt(ref time.Time) Windows {
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: ref.Location()}
	n := cfg.With(ref)
	return Windows{
		Now:          ref,
		StartOfDay:   n.BeginningOfDay(),
		StartOfWeek:  n.BeginningOfWeek(),
		StartOfMonth: n.BeginningOfMonth(),
	}
}

func (w Windows) InDay(t time.Time) bool   { return !t.Before(w.StartOfDay) }
func (w Windows) InWeek(t time.Time) bool  { return !t.Before(w.StartOfWeek) }
func (w Windows) InMonth(t time.Time) bool { return !t.Before(w.StartOfMonth) }
