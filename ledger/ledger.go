/*
Package ledger builds the event fund statement.

PURPOSE:
  An organization event collects money (credits: fund releases, ticket
  sales, sponsorships) and spends it (debits: receipts for supplies,
  venue, food). The event expenses page, the records report and the
  printed statement all show the same thing: one chronological list of
  credits and debits with a running balance.

ALGORITHM (Build):
  1. Map each credit to an Entry{Kind: Credit, Description: source}
  2. Map each debit to an Entry{Kind: Debit, Description: "category - notes"}
  3. Concatenate: all credits in input order, then all debits in input order
  4. Stable-sort by Date using plain string comparison
  5. Accumulate RunningBalance = previous + Credit - Debit, starting at 0

CRITICAL INVARIANTS:
  1. RECONCILES: the last RunningBalance equals sum(credits) - sum(debits),
     whatever the order
  2. STABLE: entries with the same date keep their step-3 order
     (credits before debits for that date, each in original order)
  3. PURE: same input, same output; inputs are never modified

DATE PRECONDITION:
  Dates must be YYYY-MM-DD. Anything else still sorts, by string
  comparison, and lands wherever that puts it. The builder does not
  validate or repair dates; Ledger.InvalidDates lists offenders so a
  caller can flag them.

EXAMPLE:
  l := ledger.Build(
      []ledger.CreditRecord{{Date: "2025-03-01", Source: "SSG Release", Amount: dec("5000")}},
      []ledger.DebitRecord{{Date: "2025-03-02", Category: "Supplies", Amount: dec("1200")}},
  )
  l.Balance() // 3800

SEE ALSO:
  - generic/time.go: CalendarDate
  - dashboard/report.go: hands the ledger to print/export consumers
*/
package ledger

import (
	"sort"
	"strings"

	"github.com/orgdash/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT RECORDS
// =============================================================================

// CreditRecord is money received by an event.
type CreditRecord struct {
	Date   generic.CalendarDate
	Source string
	Notes  string
	Amount decimal.Decimal
}

// DebitRecord is money spent by an event.
type DebitRecord struct {
	Date          generic.CalendarDate
	Category      string
	Notes         string
	Amount        decimal.Decimal
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	ReceiptNumber string
}

// =============================================================================
// ENTRIES
// =============================================================================

type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// NoReference is shown when an entry has no receipt number.
const NoReference = "-"

// DefaultDebitNote replaces empty debit notes in descriptions.
const DefaultDebitNote = "Expense"

// Entry is one line of the statement. Exactly one of Credit and Debit is
// the entry's amount; the other is zero.
type Entry struct {
	Date           generic.CalendarDate `json:"date"`
	Kind           Kind                 `json:"kind"`
	Description    string               `json:"description"`
	Credit         decimal.Decimal      `json:"credit"`
	Debit          decimal.Decimal      `json:"debit"`
	Reference      string               `json:"reference"`
	RunningBalance decimal.Decimal      `json:"running_balance"`
}

// Net returns Credit - Debit.
func (e Entry) Net() decimal.Decimal { return e.Credit.Sub(e.Debit) }

func creditEntry(c CreditRecord) Entry {
	return Entry{
		Date:        c.Date,
		Kind:        KindCredit,
		Description: c.Source,
		Credit:      c.Amount,
		Debit:       decimal.Zero,
		Reference:   NoReference,
	}
}

func debitEntry(d DebitRecord) Entry {
	notes := d.Notes
	if strings.TrimSpace(notes) == "" {
		notes = DefaultDebitNote
	}
	ref := d.ReceiptNumber
	if strings.TrimSpace(ref) == "" {
		ref = NoReference
	}
	return Entry{
		Date:        d.Date,
		Kind:        KindDebit,
		Description: d.Category + " - " + notes,
		Credit:      decimal.Zero,
		Debit:       d.Amount,
		Reference:   ref,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the ordered statement with running balances attached.
type Ledger struct {
	Entries []Entry `json:"entries"`
}

// Build merges credits and debits into a date-ordered statement.
// Empty input yields an empty ledger.
func Build(credits []CreditRecord, debits []DebitRecord) Ledger {
	entries := make([]Entry, 0, len(credits)+len(debits))
	for _, c := range credits {
		entries = append(entries, creditEntry(c))
	}
	for _, d := range debits {
		entries = append(entries, debitEntry(d))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date < entries[j].Date
	})

	running := decimal.Zero
	for i := range entries {
		running = running.Add(entries[i].Credit).Sub(entries[i].Debit)
		entries[i].RunningBalance = running
	}
	return Ledger{Entries: entries}
}

// Len returns the number of entries.
func (l Ledger) Len() int { return len(l.Entries) }

// Balance returns the closing running balance (zero for an empty ledger).
func (l Ledger) Balance() decimal.Decimal {
	if len(l.Entries) == 0 {
		return decimal.Zero
	}
	return l.Entries[len(l.Entries)-1].RunningBalance
}

// InvalidDates returns the distinct entry dates that are not YYYY-MM-DD,
// in ledger order.
func (l Ledger) InvalidDates() []generic.CalendarDate {
	seen := make(map[generic.CalendarDate]bool)
	var out []generic.CalendarDate
	for _, e := range l.Entries {
		if e.Date.Valid() || seen[e.Date] {
			continue
		}
		seen[e.Date] = true
		out = append(out, e.Date)
	}
	return out
}

// =============================================================================
// TOTALS - statement header / footer figures
// =============================================================================

// Totals summarises a ledger for report headers.
type Totals struct {
	Credits     decimal.Decimal `json:"total_credits"`
	Debits      decimal.Decimal `json:"total_debits"`
	Net         decimal.Decimal `json:"net"`
	CreditCount int             `json:"credit_count"`
	DebitCount  int             `json:"debit_count"`
	FirstDate   string          `json:"first_date,omitempty"`
	LastDate    string          `json:"last_date,omitempty"`
}

// Totals sums the ledger. Net always equals Balance().
func (l Ledger) Totals() Totals {
	t := Totals{Credits: decimal.Zero, Debits: decimal.Zero}
	for _, e := range l.Entries {
		switch e.Kind {
		case KindCredit:
			t.Credits = t.Credits.Add(e.Credit)
			t.CreditCount++
		case KindDebit:
			t.Debits = t.Debits.Add(e.Debit)
			t.DebitCount++
		}
	}
	t.Net = t.Credits.Sub(t.Debits)
	if len(l.Entries) > 0 {
		t.FirstDate = string(l.Entries[0].Date)
		t.LastDate = string(l.Entries[len(l.Entries)-1].Date)
	}
	return t
}

// ByCategory sums debits per category, in first appearance order. It
// feeds the expense breakdown of dashboard.Report.
func ByCategory(debits []DebitRecord) []CategoryTotal {
	index := make(map[string]int)
	var out []CategoryTotal
	for _, d := range debits {
		i, ok := index[d.Category]
		if !ok {
			i = len(out)
			index[d.Category] = i
			out = append(out, CategoryTotal{Category: d.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(d.Amount)
		out[i].Count++
	}
	return out
}

// CategoryTotal is the spend of one expense category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}
