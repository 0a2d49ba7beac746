package fees

import (
	"strings"

	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/generic"
)

// =============================================================================
// ROSTER RECONCILIATION
// =============================================================================

// Unpaid returns the roster entries with no confirmed payment, keyed by
// PayerID, in roster order. Void and recorded payments do not count. The
// roster itself is not de-duplicated.
func Unpaid(roster []RosterEntry, payments []Payment) []RosterEntry {
	paid := PaidSet(payments)
	out := make([]RosterEntry, 0, len(roster))
	for _, r := range roster {
		if _, ok := paid[r.PayerID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// PaidSet returns the distinct payer IDs among confirmed payments.
func PaidSet(payments []Payment) map[generic.PayerID]struct{} {
	paid := make(map[generic.PayerID]struct{}, len(payments))
	for _, p := range payments {
		if p.Status == PaymentConfirmed {
			paid[p.PayerID] = struct{}{}
		}
	}
	return paid
}

// =============================================================================
// SEARCH
// =============================================================================

// Search keeps roster entries whose id, name, course or year level
// contains query, case-insensitively. An empty query keeps everything.
func Search(roster []RosterEntry, query string) []RosterEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return roster
	}
	var out []RosterEntry
	for _, r := range roster {
		if containsFold(string(r.PayerID), q) ||
			containsFold(r.Name, q) ||
			containsFold(r.Course, q) ||
			containsFold(r.YearLevel, q) {
			out = append(out, r)
		}
	}
	return out
}

// SearchPayments is Search for the payments table.
func SearchPayments(payments []Payment, query string) []Payment {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return payments
	}
	var out []Payment
	for _, p := range payments {
		if containsFold(string(p.PayerID), q) || containsFold(p.PayerName, q) {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

// =============================================================================
// PERIOD RE-FILTERING
// =============================================================================

// FilterPayments keeps payments recorded under a period matching filter,
// using the same predicates the backend applies to its query parameters.
// It is used after a widened fallback query.
func FilterPayments(payments []Payment, filter academic.AcademicPeriod) []Payment {
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		if filter.Matches(p.Period) {
			out = append(out, p)
		}
	}
	return out
}

// FilterRoster is FilterPayments for roster rows.
func FilterRoster(roster []RosterEntry, filter academic.AcademicPeriod) []RosterEntry {
	out := make([]RosterEntry, 0, len(roster))
	for _, r := range roster {
		if filter.Matches(r.Period) {
			out = append(out, r)
		}
	}
	return out
}
