package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/orgdash/ledger-engine/fees"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/orgdash/ledger-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT - what print and export receive
// =============================================================================

// Report is an immutable copy of what the dashboard shows, for print and
// export. Later session changes do not affect it.
type Report struct {
	GeneratedAt    time.Time              `json:"generated_at"`
	PeriodLabel    string                 `json:"period"`
	ReadOnly       bool                   `json:"read_only"`
	Fee            *fees.Fee              `json:"fee,omitempty"`
	Summary        *fees.Summary          `json:"summary,omitempty"`
	Expected       decimal.Decimal        `json:"expected"`
	CollectionRate decimal.Decimal        `json:"collection_rate"`
	Unpaid         []fees.RosterEntry     `json:"unpaid"`
	EventID        generic.EventID        `json:"event_id,omitempty"`
	Ledger         *ledger.Ledger         `json:"ledger,omitempty"`
	Totals         *ledger.Totals         `json:"totals,omitempty"`
	Categories     []ledger.CategoryTotal `json:"categories,omitempty"`
	InvalidDates   []generic.CalendarDate `json:"invalid_dates,omitempty"`
}

// Report snapshots the session. The unpaid list is complete, not paged,
// and ignores the roster search.
func (s *Session) Report() Report {
	snap := s.state.Snapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r := Report{
		GeneratedAt:    s.now().In(s.loc),
		PeriodLabel:    snap.Viewed.Label(),
		ReadOnly:       snap.ReadOnly,
		Expected:       decimal.Zero,
		CollectionRate: decimal.Zero,
	}
	if s.feeID != "" {
		summary := fees.Summarize(fees.Confirmed(s.payments), s.roster, r.GeneratedAt)
		r.Summary = &summary
		r.CollectionRate = summary.CollectionRate()
		r.Unpaid = append([]fees.RosterEntry{}, fees.Unpaid(s.roster, s.payments)...)
		if s.fee != nil {
			fee := *s.fee
			r.Fee = &fee
			r.Expected = summary.Expected(fee.Amount)
		}
	}
	if s.ledger != nil {
		l := ledger.Ledger{Entries: append([]ledger.Entry(nil), s.ledger.Entries...)}
		totals := l.Totals()
		r.EventID = s.eventID
		r.Ledger = &l
		r.Totals = &totals
		r.Categories = ledger.ByCategory(s.debits)
		r.InvalidDates = l.InvalidDates()
	}
	return r
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes the report as aligned plain-text tables.
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	mode := "editable"
	if r.ReadOnly {
		mode = "read-only"
	}
	fmt.Fprintf(tw, "Period:\t%s (%s)\n", r.PeriodLabel, mode)

	if r.Fee != nil {
		fmt.Fprintf(tw, "Fee:\t%s %s (%s, %s)\n", r.Fee.ID, r.Fee.Title, r.Fee.Scope, r.Fee.Status)
		fmt.Fprintf(tw, "Amount:\t%s\n", r.Fee.Amount.StringFixed(2))
	}
	if r.Summary != nil {
		sm := r.Summary
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "WINDOW\tCOUNT\tSUM")
		fmt.Fprintf(tw, "today\t%d\t%s\n", sm.Today.Count, sm.Today.Sum.StringFixed(2))
		fmt.Fprintf(tw, "week\t%d\t%s\n", sm.Week.Count, sm.Week.Sum.StringFixed(2))
		fmt.Fprintf(tw, "month\t%d\t%s\n", sm.Month.Count, sm.Month.Sum.StringFixed(2))
		fmt.Fprintf(tw, "semester\t%d\t%s\n", sm.Semester.Count, sm.Semester.Sum.StringFixed(2))
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Paid:\t%d / %d (%s%%)\n", sm.PaidCount(), sm.RosterSize, r.CollectionRate.StringFixed(2))
		fmt.Fprintf(tw, "Expected:\t%s\n", r.Expected.StringFixed(2))
		if len(r.Unpaid) > 0 {
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "UNPAID\tNAME\tCOURSE\tYEAR")
			for _, u := range r.Unpaid {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.PayerID, u.Name, u.Course, u.YearLevel)
			}
		}
	}
	if r.Ledger != nil {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Event:\t%s\n", r.EventID)
		fmt.Fprintln(tw, "DATE\tDESCRIPTION\tCREDIT\tDEBIT\tREF\tBALANCE")
		for _, e := range r.Ledger.Entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Date, e.Description, e.Credit.StringFixed(2), e.Debit.StringFixed(2),
				e.Reference, e.RunningBalance.StringFixed(2))
		}
		fmt.Fprintf(tw, "TOTAL\t\t%s\t%s\t\t%s\n",
			r.Totals.Credits.StringFixed(2), r.Totals.Debits.StringFixed(2), r.Totals.Net.StringFixed(2))
		if len(r.Categories) > 0 {
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "CATEGORY\tCOUNT\tSPENT")
			for _, c := range r.Categories {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Category, c.Count, c.Amount.StringFixed(2))
			}
		}
		for _, d := range r.InvalidDates {
			fmt.Fprintf(tw, "warning:\tunparseable date %q\n", d)
		}
	}
	return tw.Flush()
}
