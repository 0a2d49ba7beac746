package backend

import (
	"strconv"
	"strings"

	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/fees"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/orgdash/ledger-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// FIELD ALIASES
// =============================================================================
//
// The backend has renamed most fields at least once. Each list below is
// tried in order; the first key present with a non-null value wins.

var (
	aliasID        = []string{"id", "period_id"}
	aliasStartYear = []string{"startYear", "start_year", "school_year_start", "year_start"}
	aliasEndYear   = []string{"endYear", "end_year", "school_year_end", "year_end"}
	aliasActive    = []string{"activeYear", "active_year", "semester_year", "current_year"}
	aliasLabel     = []string{"label", "school_year", "schoolYear", "name"}
	aliasRowLabel  = []string{"school_year", "schoolYear"}
	aliasStatus    = []string{"status", "state"}

	aliasCredits = []string{"credits", "funds", "fund_releases", "income"}
	aliasDebits  = []string{"debits", "expenses", "expenditures"}

	aliasCreditDate = []string{"date", "credit_date", "received_at", "created_at"}
	aliasSource     = []string{"source", "description", "title"}
	aliasDebitDate  = []string{"date", "expense_date", "purchased_at", "created_at"}
	aliasCategory   = []string{"category", "expense_category", "type"}
	aliasNotes      = []string{"notes", "remarks", "description"}
	aliasAmount     = []string{"amount", "total_amount", "total", "value"}
	aliasQuantity   = []string{"quantity", "qty"}
	aliasUnitPrice  = []string{"unit_price", "unitPrice", "price"}
	aliasReceipt    = []string{"receipt_number", "receipt_no", "or_number", "reference"}

	aliasFeeID    = []string{"id", "fee_id"}
	aliasFeeTitle = []string{"title", "fee_name", "name"}
	aliasFeeAmt   = []string{"amount", "fee_amount"}
	aliasScope    = []string{"scope", "fee_scope", "fee_type"}
	aliasOrgID    = []string{"org_id", "organization_id", "department_id"}
	aliasFeeState = []string{"status", "approval_status"}

	aliasPayments  = []string{"payments", "records", "items"}
	aliasSummary   = []string{"summary", "stats", "kpi"}
	aliasPaymentID = []string{"id", "payment_id"}
	aliasPayerID   = []string{"payer_id", "student_id", "student_number", "user_id"}
	aliasPayerName = []string{"payer_name", "student_name", "full_name", "name"}
	aliasPaidAmt   = []string{"amount", "amount_paid", "paid_amount"}
	aliasPaidAt    = []string{"paid_at", "payment_date", "date_paid", "created_at"}
	aliasPayState  = []string{"status", "payment_status"}

	aliasRoster    = []string{"roster", "students", "members", "items"}
	aliasRosterID  = []string{"payer_id", "student_id", "student_number", "id"}
	aliasName      = []string{"name", "full_name", "student_name"}
	aliasYearLevel = []string{"year_level", "yearLevel", "year"}
	aliasCourse    = []string{"course", "program", "department"}

	aliasPeriodList = []string{"periods", "academic_periods", "items"}
	aliasPeriod     = []string{"period", "academic_period"}
)

// record is one decoded JSON object.
type record map[string]any

func asRecord(v any) (record, bool) {
	m, ok := v.(map[string]any)
	return record(m), ok
}

func (r record) first(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r record) str(keys []string) string {
	v, ok := r.first(keys)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	default:
		if n, ok := generic.ParseInt(x); ok {
			return strconv.Itoa(n)
		}
		if d, ok := generic.ParseMoney(x); ok {
			return d.String()
		}
		return ""
	}
}

func (r record) money(keys []string) (decimal.Decimal, bool) {
	v, ok := r.first(keys)
	if !ok {
		return decimal.Zero, false
	}
	return generic.ParseMoney(v)
}

func (r record) moneyOrZero(keys []string) decimal.Decimal {
	d, _ := r.money(keys)
	return d
}

// period reads the year fields of a row. Rows may carry them inline or
// nested under "period"; missing years stay zero ("unknown"). Inline,
// only school-year keys count as a span label, never a name or title.
func (r record) period() academic.AcademicPeriod {
	raw := r.rawPeriodWith(aliasRowLabel)
	if v, ok := r.first(aliasPeriod); ok {
		if nested, ok := asRecord(v); ok {
			raw = nested.rawPeriod()
		}
	}
	p, err := academic.Normalize(raw)
	if err != nil {
		active, _ := generic.ParseInt(raw.Active)
		return academic.AcademicPeriod{ActiveYear: active}
	}
	return p
}

func (r record) rawPeriod() academic.RawPeriod {
	return r.rawPeriodWith(aliasLabel)
}

func (r record) rawPeriodWith(labels []string) academic.RawPeriod {
	raw := academic.RawPeriod{
		ID:     r.str(aliasID),
		Label:  r.str(labels),
		Status: r.str(aliasStatus),
	}
	raw.Start, _ = r.first(aliasStartYear)
	raw.End, _ = r.first(aliasEndYear)
	raw.Active, _ = r.first(aliasActive)
	return raw
}

// listOf returns body itself when it is an array, or the first aliased
// array field when it is an object.
func listOf(body any, keys []string) []any {
	switch x := body.(type) {
	case []any:
		return x
	case map[string]any:
		for _, k := range keys {
			if arr, ok := x[k].([]any); ok {
				return arr
			}
		}
	}
	return nil
}

// =============================================================================
// RECORD DECODERS
// =============================================================================

func decodePeriods(body any) []academic.RawPeriod {
	items := listOf(body, aliasPeriodList)
	out := make([]academic.RawPeriod, 0, len(items))
	for _, it := range items {
		if r, ok := asRecord(it); ok {
			out = append(out, r.rawPeriod())
		}
	}
	return out
}

func decodeCredit(r record) ledger.CreditRecord {
	return ledger.CreditRecord{
		Date:   generic.CalendarDate(r.str(aliasCreditDate)),
		Source: r.str(aliasSource),
		Notes:  r.str([]string{"notes", "remarks"}),
		Amount: r.moneyOrZero(aliasAmount),
	}
}

func decodeDebit(r record) ledger.DebitRecord {
	d := ledger.DebitRecord{
		Date:          generic.CalendarDate(r.str(aliasDebitDate)),
		Category:      r.str(aliasCategory),
		Notes:         r.str(aliasNotes),
		Quantity:      r.moneyOrZero(aliasQuantity),
		UnitPrice:     r.moneyOrZero(aliasUnitPrice),
		ReceiptNumber: r.str(aliasReceipt),
	}
	if amt, ok := r.money(aliasAmount); ok {
		d.Amount = amt
	} else {
		d.Amount = d.Quantity.Mul(d.UnitPrice)
	}
	return d
}

func decodeFunds(body any) Funds {
	var f Funds
	obj, _ := asRecord(body)
	for _, it := range listOf(map[string]any(obj), aliasCredits) {
		if r, ok := asRecord(it); ok {
			f.Credits = append(f.Credits, decodeCredit(r))
		}
	}
	for _, it := range listOf(map[string]any(obj), aliasDebits) {
		if r, ok := asRecord(it); ok {
			f.Debits = append(f.Debits, decodeDebit(r))
		}
	}
	return f
}

func decodeFee(r record) fees.Fee {
	return fees.Fee{
		ID:     generic.FeeID(r.str(aliasFeeID)),
		Title:  r.str(aliasFeeTitle),
		Amount: r.moneyOrZero(aliasFeeAmt),
		Scope:  fees.ParseScope(r.str(aliasScope)),
		OrgID:  generic.OrgID(r.str(aliasOrgID)),
		Status: fees.ParseFeeStatus(r.str(aliasFeeState)),
		Period: r.period(),
	}
}

func decodePayments(body any) []fees.Payment {
	items := listOf(body, aliasPayments)
	out := make([]fees.Payment, 0, len(items))
	for _, it := range items {
		r, ok := asRecord(it)
		if !ok {
			continue
		}
		out = append(out, fees.Payment{
			ID:        r.str(aliasPaymentID),
			PayerID:   generic.PayerID(r.str(aliasPayerID)),
			PayerName: r.str(aliasPayerName),
			Amount:    r.moneyOrZero(aliasPaidAmt),
			PaidAt:    r.str(aliasPaidAt),
			Status:    fees.ParsePaymentStatus(r.str(aliasPayState)),
			Period:    r.period(),
		})
	}
	return out
}

func decodeRoster(body any) []fees.RosterEntry {
	items := listOf(body, aliasRoster)
	out := make([]fees.RosterEntry, 0, len(items))
	for _, it := range items {
		r, ok := asRecord(it)
		if !ok {
			continue
		}
		out = append(out, fees.RosterEntry{
			PayerID:   generic.PayerID(r.str(aliasRosterID)),
			Name:      r.str(aliasName),
			YearLevel: r.str(aliasYearLevel),
			Course:    r.str(aliasCourse),
			Period:    r.period(),
		})
	}
	return out
}

// decodeSummary reads the optional server-side KPI block. Each window may
// be a bare number (the sum) or an object with count and sum.
func decodeSummary(body any) *ServerSummary {
	obj, ok := asRecord(body)
	if !ok {
		return nil
	}
	v, ok := obj.first(aliasSummary)
	if !ok {
		return nil
	}
	sr, ok := asRecord(v)
	if !ok {
		return nil
	}
	return &ServerSummary{
		Today:    summaryBucket(sr, []string{"today", "daily"}),
		Week:     summaryBucket(sr, []string{"week", "this_week", "weekly"}),
		Month:    summaryBucket(sr, []string{"month", "this_month", "monthly"}),
		Semester: summaryBucket(sr, []string{"semester", "total", "overall"}),
	}
}

func summaryBucket(r record, keys []string) fees.Bucket {
	v, ok := r.first(keys)
	if !ok {
		return fees.Bucket{Sum: decimal.Zero}
	}
	if br, ok := asRecord(v); ok {
		count, _ := generic.ParseInt(firstOr(br, []string{"count", "n"}))
		return fees.Bucket{Count: count, Sum: br.moneyOrZero([]string{"sum", "amount", "total"})}
	}
	sum, _ := generic.ParseMoney(v)
	return fees.Bucket{Sum: sum}
}

func firstOr(r record, keys []string) any {
	v, _ := r.first(keys)
	return v
}
