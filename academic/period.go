/*
Package academic models the school-year/semester a dashboard is looking at.

PURPOSE:
  Every fee, payment, roster and event record belongs to an academic
  period: a two-year school-year span (2024-2025) optionally narrowed to
  one semester. The dashboard shows one period at a time and must refuse
  mutations whenever that period is not the one the backend declares
  active.

KEY CONCEPTS:
  - AcademicPeriod: immutable {StartYear, EndYear, ActiveYear} value
  - Semester convention: ActiveYear == StartYear is the 1st semester,
    ActiveYear == EndYear is the 2nd; any other non-zero year is an
    opaque "segment"
  - State: the viewed period vs. the server-declared base period, and
    the read-only predicate derived from them
  - RawPeriod / Normalize: turning loosely typed backend rows into periods

ZERO VALUES:
  StartYear == EndYear == 0 means "all school years".
  ActiveYear == 0 means "all semesters within the span".

SEE ALSO:
  - state.go: State and the read-only gate
  - normalize.go: backend row normalization and active-period resolution
*/
package academic

import (
	"fmt"
	"strconv"
)

// =============================================================================
// ACADEMIC PERIOD
// =============================================================================

// AcademicPeriod is a school-year span plus an optional semester marker.
type AcademicPeriod struct {
	StartYear  int `json:"start_year,omitempty"`
	EndYear    int `json:"end_year,omitempty"`
	ActiveYear int `json:"active_year,omitempty"`
}

// AllYears is the "ALL" selector value: no span, no semester.
var AllYears = AcademicPeriod{}

// New builds a period. Pass activeYear 0 for all semesters.
func New(startYear, endYear, activeYear int) AcademicPeriod {
	return AcademicPeriod{StartYear: startYear, EndYear: endYear, ActiveYear: activeYear}
}

// HasSpan reports whether a concrete school year is selected.
func (p AcademicPeriod) HasSpan() bool { return p.StartYear != 0 && p.EndYear != 0 }

// IsAllYears reports whether the period is the "all school years" sentinel.
func (p AcademicPeriod) IsAllYears() bool { return !p.HasSpan() }

// HasActiveYear reports whether a single semester (or segment) is selected.
func (p AcademicPeriod) HasActiveYear() bool { return p.ActiveYear != 0 }

// Contains reports whether year is one of the span's two years.
func (p AcademicPeriod) Contains(year int) bool {
	return p.HasSpan() && (year == p.StartYear || year == p.EndYear)
}

// SameSpan reports whether both periods cover the same school year.
func (p AcademicPeriod) SameSpan(o AcademicPeriod) bool {
	return p.StartYear == o.StartYear && p.EndYear == o.EndYear
}

// Span returns the period widened to all semesters.
func (p AcademicPeriod) Span() AcademicPeriod {
	return AcademicPeriod{StartYear: p.StartYear, EndYear: p.EndYear}
}

// Semester classifies ActiveYear against the span.
func (p AcademicPeriod) Semester() Semester {
	switch {
	case p.ActiveYear == 0:
		return SemesterAll
	case p.ActiveYear == p.StartYear:
		return SemesterFirst
	case p.ActiveYear == p.EndYear:
		return SemesterSecond
	default:
		return SemesterSegment
	}
}

// SpanLabel renders the school-year part, e.g. "2024-2025".
func (p AcademicPeriod) SpanLabel() string {
	if !p.HasSpan() {
		return "All School Years"
	}
	return fmt.Sprintf("%d-%d", p.StartYear, p.EndYear)
}

// SemesterLabel renders the semester part. Years outside the span are
// labelled opaquely rather than guessed into a semester.
func (p AcademicPeriod) SemesterLabel() string {
	switch p.Semester() {
	case SemesterAll:
		return "All Semesters"
	case SemesterFirst:
		return "1st Semester"
	case SemesterSecond:
		return "2nd Semester"
	default:
		return "Segment " + strconv.Itoa(p.ActiveYear)
	}
}

// Label renders the full period for headers and printed reports.
func (p AcademicPeriod) Label() string {
	if !p.HasSpan() {
		return p.SpanLabel()
	}
	return p.SpanLabel() + " · " + p.SemesterLabel()
}

func (p AcademicPeriod) String() string { return p.Label() }

// Matches reports whether a record tagged with period rec passes the
// filter p, using the predicates the backend applies: a zero filter field
// matches anything, a set field must be equal.
func (p AcademicPeriod) Matches(rec AcademicPeriod) bool {
	if p.StartYear != 0 && rec.StartYear != p.StartYear {
		return false
	}
	if p.EndYear != 0 && rec.EndYear != p.EndYear {
		return false
	}
	if p.ActiveYear != 0 && rec.ActiveYear != p.ActiveYear {
		return false
	}
	return true
}

// =============================================================================
// SEMESTER
// =============================================================================

type Semester int

const (
	SemesterAll Semester = iota
	SemesterFirst
	SemesterSecond
	SemesterSegment
)

func (s Semester) String() string {
	return [...]string{"all", "first", "second", "segment"}[s]
}
