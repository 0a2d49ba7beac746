package academic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orgdash/ledger-engine/generic"
)

// =============================================================================
// RAW PERIOD - a backend period row before normalization
// =============================================================================

// RawPeriod holds the loosely typed fields of a backend period row after
// alias resolution. Years may arrive as numbers or numeric strings; some
// backends only send a combined "2024-2025" label.
type RawPeriod struct {
	ID     string
	Start  any
	End    any
	Active any
	Label  string
	Status string
}

// IsActive reports whether the row is flagged as the active period.
func (r RawPeriod) IsActive() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), "active")
}

// Normalize converts a raw row into a period. Start and end must both parse
// as integers (directly or from the label); an unparseable active year is
// treated as "all semesters".
func Normalize(r RawPeriod) (AcademicPeriod, error) {
	start, okStart := generic.ParseInt(r.Start)
	end, okEnd := generic.ParseInt(r.End)
	if !okStart || !okEnd {
		ls, le, ok := parseSpanLabel(r.Label)
		if !ok {
			return AcademicPeriod{}, fmt.Errorf("%w: start=%v end=%v label=%q", generic.ErrInvalidPeriod, r.Start, r.End, r.Label)
		}
		start, end = ls, le
	}
	if start == 0 || end == 0 {
		return AcademicPeriod{}, fmt.Errorf("%w: zero year", generic.ErrInvalidPeriod)
	}
	active, ok := generic.ParseInt(r.Active)
	if !ok {
		active = 0
	}
	return AcademicPeriod{StartYear: start, EndYear: end, ActiveYear: active}, nil
}

func parseSpanLabel(label string) (int, int, bool) {
	parts := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '/' || r == '–' })
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok1 := generic.ParseInt(parts[0])
	end, ok2 := generic.ParseInt(parts[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return start, end, true
}

// NeedsList reports whether the direct active-period answer is unusable or
// incomplete, so the period list must be consulted.
func NeedsList(direct *RawPeriod) bool {
	if direct == nil {
		return true
	}
	p, err := Normalize(*direct)
	return err != nil || !p.HasActiveYear()
}

// =============================================================================
// ACTIVE PERIOD RESOLUTION
// =============================================================================

// ResolveActive picks the authoritative period:
//  1. the direct answer, if it normalizes; a missing active year is
//     filled from the list row with the same span when there is one
//  2. otherwise the first list row flagged status == "active"
//  3. otherwise the first list row
//
// It returns ErrPeriodUnavailable when none of these normalizes.
func ResolveActive(direct *RawPeriod, list []RawPeriod) (AcademicPeriod, error) {
	if direct != nil {
		if p, err := Normalize(*direct); err == nil {
			if !p.HasActiveYear() {
				for _, row := range list {
					if lp, err := Normalize(row); err == nil && lp.SameSpan(p) && lp.HasActiveYear() {
						p.ActiveYear = lp.ActiveYear
						break
					}
				}
			}
			return p, nil
		}
	}
	for _, row := range list {
		if !row.IsActive() {
			continue
		}
		if p, err := Normalize(row); err == nil {
			return p, nil
		}
	}
	if len(list) > 0 {
		if p, err := Normalize(list[0]); err == nil {
			return p, nil
		}
	}
	return AcademicPeriod{}, generic.ErrPeriodUnavailable
}

// =============================================================================
// OPTIONS - school-year selector entries
// =============================================================================

// Options returns the distinct spans found in list, newest first.
// Rows that do not normalize are skipped.
func Options(list []RawPeriod) []AcademicPeriod {
	seen := make(map[[2]int]bool)
	var out []AcademicPeriod
	for _, row := range list {
		p, err := Normalize(row)
		if err != nil {
			continue
		}
		key := [2]int{p.StartYear, p.EndYear}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p.Span())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartYear != out[j].StartYear {
			return out[i].StartYear > out[j].StartYear
		}
		return out[i].EndYear > out[j].EndYear
	})
	return out
}

// SemesterOptions returns the selectable semesters of a span: all
// semesters, then the first and second.
func SemesterOptions(span AcademicPeriod) []AcademicPeriod {
	if !span.HasSpan() {
		return nil
	}
	return []AcademicPeriod{
		span.Span(),
		New(span.StartYear, span.EndYear, span.StartYear),
		New(span.StartYear, span.EndYear, span.EndYear),
	}
}
