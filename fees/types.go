/*
Package fees implements fee collection views: payments, rosters and the
dashboard KPI windows.

PURPOSE:
  A fee is charged either to every student (General scope) or to the
  members of one organization/department (Organization scope). Officers
  record payments against it; the dashboard shows who paid, who has not,
  and how much came in today, this week, this month and this semester.

KEY CONCEPTS:
  - Fee: the charge, with closed Scope and FeeStatus variants
  - Payment: one payer's payment, Confirmed / Void / Recorded
  - RosterEntry: someone expected to pay
  - Summary: today/week/month/semester buckets + unpaid count
  - Unpaid: roster minus confirmed payers, order-preserving

VARIANTS:
  Scope, FeeStatus and PaymentStatus are parsed once, case-insensitively,
  at the decoding boundary (ParseScope, ParseFeeStatus,
  ParsePaymentStatus). Nothing downstream compares raw strings.

SEE ALSO:
  - kpi.go: Summarize
  - roster.go: Unpaid, Search, FilterPayments / FilterRoster
*/
package fees

import (
	"strings"

	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCOPE
// =============================================================================

type Scope string

const (
	ScopeGeneral      Scope = "general"
	ScopeOrganization Scope = "organization"
)

// ParseScope maps backend spellings onto a Scope. Unknown values are
// treated as organization scope, the narrower of the two.
func ParseScope(s string) Scope {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "general", "gen", "all", "university", "campus":
		return ScopeGeneral
	default:
		return ScopeOrganization
	}
}

// =============================================================================
// FEE STATUS
// =============================================================================

type FeeStatus string

const (
	FeeDraft     FeeStatus = "draft"
	FeeSubmitted FeeStatus = "submitted"
	FeeApproved  FeeStatus = "approved"
	FeeDeclined  FeeStatus = "declined"
)

// ParseFeeStatus maps backend spellings onto a FeeStatus. Unknown values
// are treated as draft.
func ParseFeeStatus(s string) FeeStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "submitted", "pending", "for approval":
		return FeeSubmitted
	case "approved", "accredited", "active":
		return FeeApproved
	case "declined", "rejected", "denied":
		return FeeDeclined
	default:
		return FeeDraft
	}
}

// Editable reports whether a fee in this status may still be changed by
// its owner (drafts, and declined fees being revised).
func (s FeeStatus) Editable() bool {
	return s == FeeDraft || s == FeeDeclined
}

// Collectable reports whether payments may be recorded against the fee.
func (s FeeStatus) Collectable() bool { return s == FeeApproved }

// =============================================================================
// PAYMENT STATUS
// =============================================================================

type PaymentStatus string

const (
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentVoid      PaymentStatus = "void"
	PaymentRecorded  PaymentStatus = "recorded"
)

// ParsePaymentStatus maps backend spellings onto a PaymentStatus.
// Unknown values are treated as recorded (not yet confirmed).
func ParsePaymentStatus(s string) PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirmed", "paid", "completed", "verified":
		return PaymentConfirmed
	case "void", "voided", "cancelled", "canceled", "refunded":
		return PaymentVoid
	default:
		return PaymentRecorded
	}
}

// =============================================================================
// RECORDS
// =============================================================================

// Fee is a charge collected for one academic period.
type Fee struct {
	ID     generic.FeeID           `json:"id"`
	Title  string                  `json:"title"`
	Amount decimal.Decimal         `json:"amount"`
	Scope  Scope                   `json:"scope"`
	OrgID  generic.OrgID           `json:"org_id,omitempty"`
	Status FeeStatus               `json:"status"`
	Period academic.AcademicPeriod `json:"period"`
}

// Guard reports whether action is allowed on the fee: the period gate
// first, then the status rules. Create records a payment against the fee
// and needs a collectable fee; update and delete need an editable one.
func (f Fee) Guard(state *academic.State, action academic.Action) error {
	if err := state.Guard(action); err != nil {
		return err
	}
	allowed := true
	switch action {
	case academic.ActionCreate:
		allowed = f.Status.Collectable()
	case academic.ActionUpdate, academic.ActionDelete:
		allowed = f.Status.Editable()
	}
	if !allowed {
		return &StatusError{FeeID: f.ID, Status: f.Status, Action: action}
	}
	return nil
}

// Editable reports whether the fee may be changed right now: its status
// allows it and the viewed period is not read-only.
func (f Fee) Editable(state *academic.State) bool {
	return !state.IsReadOnly() && f.Status.Editable()
}

// Payment is one payer's payment against a fee. PaidAt is kept as the raw
// backend string; Summarize parses it.
type Payment struct {
	ID        string                  `json:"id,omitempty"`
	PayerID   generic.PayerID         `json:"payer_id"`
	PayerName string                  `json:"payer_name,omitempty"`
	Amount    decimal.Decimal         `json:"amount"`
	PaidAt    string                  `json:"paid_at,omitempty"`
	Status    PaymentStatus           `json:"status"`
	Period    academic.AcademicPeriod `json:"period"`
}

// RosterEntry is a person expected to pay. Only PayerID takes part in any
// computation.
type RosterEntry struct {
	PayerID   generic.PayerID         `json:"payer_id"`
	Name      string                  `json:"name"`
	YearLevel string                  `json:"year_level,omitempty"`
	Course    string                  `json:"course,omitempty"`
	Period    academic.AcademicPeriod `json:"period"`
}

// Confirmed returns the confirmed payments, in order.
func Confirmed(payments []Payment) []Payment {
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if p.Status == PaymentConfirmed {
			out = append(out, p)
		}
	}
	return out
}
