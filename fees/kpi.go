package fees

import (
	"time"

	"github.com/orgdash/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// KPI WINDOWS
// =============================================================================

// Bucket is a count and a sum.
type Bucket struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

func (b Bucket) add(amount decimal.Decimal) Bucket {
	return Bucket{Count: b.Count + 1, Sum: b.Sum.Add(amount)}
}

// Summary is the dashboard's collection overview.
//
// Today, Week and Month are nested, date-gated windows: a payment made
// today counts in all three. Semester counts every payment handed to
// Summarize, dated or not; the caller has already narrowed the set to
// the viewed period.
type Summary struct {
	Today       Bucket `json:"today"`
	Week        Bucket `json:"week"`
	Month       Bucket `json:"month"`
	Semester    Bucket `json:"semester"`
	UnpaidCount int    `json:"unpaid_count"`
	RosterSize  int    `json:"roster_size"`
}

// Summarize buckets payments relative to now, in now's location.
// Payments whose PaidAt does not parse are left out of the date-gated
// windows but still counted in Semester.
func Summarize(payments []Payment, roster []RosterEntry, now time.Time) Summary {
	w := generic.WindowsAt(now)
	loc := now.Location()

	s := Summary{
		Today:    Bucket{Sum: decimal.Zero},
		Week:     Bucket{Sum: decimal.Zero},
		Month:    Bucket{Sum: decimal.Zero},
		Semester: Bucket{Sum: decimal.Zero},
	}
	for _, p := range payments {
		s.Semester = s.Semester.add(p.Amount)

		paidAt, ok := generic.ParseInstant(p.PaidAt, loc)
		if !ok {
			continue
		}
		if w.InMonth(paidAt) {
			s.Month = s.Month.add(p.Amount)
		}
		if w.InWeek(paidAt) {
			s.Week = s.Week.add(p.Amount)
		}
		if w.InDay(paidAt) {
			s.Today = s.Today.add(p.Amount)
		}
	}

	s.RosterSize = len(roster)
	s.UnpaidCount = len(Unpaid(roster, payments))
	return s
}

// PaidCount returns the number of roster entries that have paid.
func (s Summary) PaidCount() int { return s.RosterSize - s.UnpaidCount }

// CollectionRate returns the paid share of the roster as a percentage
// rounded to two places. An empty roster has a rate of zero.
func (s Summary) CollectionRate() decimal.Decimal {
	if s.RosterSize == 0 {
		return decimal.Zero
	}
	paid := decimal.NewFromInt(int64(s.PaidCount()))
	return paid.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(s.RosterSize))).Round(2)
}

// Expected returns what the roster owes in total for a fee of amount.
func (s Summary) Expected(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(s.RosterSize)))
}
