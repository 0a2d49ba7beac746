package academic

import (
	"fmt"
	"sync"

	"github.com/orgdash/ledger-engine/generic"
)

// =============================================================================
// ACTIONS - what the user is trying to do with the viewed period
// =============================================================================

type Action string

const (
	ActionView   Action = "view"
	ActionPrint  Action = "print"
	ActionExport Action = "export"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mutates reports whether the action writes to the backend.
func (a Action) Mutates() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// ReadOnlyError is returned by Guard for a mutation outside the active period.
type ReadOnlyError struct {
	Action Action
	Viewed AcademicPeriod
	Base   AcademicPeriod
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("cannot %s: viewing %s, active period is %s", e.Action, e.Viewed, e.Base)
}

func (e *ReadOnlyError) Unwrap() error { return generic.ErrReadOnlyPeriod }

// =============================================================================
// STATE - viewed period vs. server-declared active period
// =============================================================================

// State tracks the period the user is viewing and the period the backend
// reports as active. It starts empty: viewing all years, base unknown.
//
// INVARIANTS:
//   - While the viewed span is ALL, ActiveYear is 0 and cannot be set.
//   - IsReadOnly is false whenever base is unknown (fail open).
//
// State is safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	viewed AcademicPeriod
	base   *AcademicPeriod
}

// NewState creates an empty state.
func NewState() *State { return &State{} }

// Viewed returns the period the user is filtering by.
func (s *State) Viewed() AcademicPeriod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewed
}

// Base returns the active period and whether it is known.
func (s *State) Base() (AcademicPeriod, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.base == nil {
		return AcademicPeriod{}, false
	}
	return *s.base, true
}

// SetBaseFromServer records the backend's active period. A period without a
// usable span is ignored and base keeps its previous value; the return value
// reports whether it was accepted.
func (s *State) SetBaseFromServer(p AcademicPeriod) bool {
	if !p.HasSpan() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = &p
	return true
}

// ClearBase forgets the active period, e.g. after the period query failed.
func (s *State) ClearBase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = nil
}

// ViewBase points the viewed period at the base period. It is a no-op
// while base is unknown.
func (s *State) ViewBase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != nil {
		s.viewed = *s.base
	}
}

// SetViewedSpan selects a school year. If the previously viewed ActiveYear
// is not one of the new span's years (including "all semesters"), the
// semester resets to the first one.
func (s *State) SetViewedSpan(startYear, endYear int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if startYear == 0 || endYear == 0 {
		s.viewed = AllYears
		return
	}
	next := AcademicPeriod{StartYear: startYear, EndYear: endYear, ActiveYear: s.viewed.ActiveYear}
	if !next.Contains(next.ActiveYear) {
		next.ActiveYear = startYear
	}
	s.viewed = next
}

// ViewAllYears selects the "ALL" sentinel, clearing span and semester.
func (s *State) ViewAllYears() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewed = AllYears
}

// ActiveYearSelectable reports whether the semester selector is enabled.
func (s *State) ActiveYearSelectable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewed.HasSpan()
}

// SetViewedActiveYear selects a semester (0 = all semesters). It is a
// no-op while the span is ALL and reports whether anything changed.
func (s *State) SetViewedActiveYear(year int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.viewed.HasSpan() {
		return false
	}
	s.viewed.ActiveYear = year
	return true
}

// IsReadOnly is true exactly when base is known, a single semester is
// viewed within a known span, and any of start/end/active differs from
// base. Viewing all semesters never locks.
func (s *State) IsReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return isReadOnly(s.viewed, s.base)
}

func isReadOnly(viewed AcademicPeriod, base *AcademicPeriod) bool {
	if base == nil || !viewed.HasActiveYear() || !viewed.HasSpan() {
		return false
	}
	return viewed.StartYear != base.StartYear ||
		viewed.EndYear != base.EndYear ||
		viewed.ActiveYear != base.ActiveYear
}

// Guard returns a *ReadOnlyError if action mutates and the view is
// read-only. Reads, prints and exports are always allowed.
func (s *State) Guard(action Action) error {
	if !action.Mutates() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !isReadOnly(s.viewed, s.base) {
		return nil
	}
	return &ReadOnlyError{Action: action, Viewed: s.viewed, Base: *s.base}
}

// Snapshot is an immutable copy of the state for view models.
type Snapshot struct {
	Viewed    AcademicPeriod
	Base      AcademicPeriod
	BaseKnown bool
	ReadOnly  bool
}

// Snapshot copies the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Viewed: s.viewed, ReadOnly: isReadOnly(s.viewed, s.base)}
	if s.base != nil {
		snap.Base = *s.base
		snap.BaseKnown = true
	}
	return snap
}
