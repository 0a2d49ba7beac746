/*
Package backendsim is a stand-in for the school backend the dashboard
reads from.

PURPOSE:
  Serves the academic-period, event-fund, fee, payment and roster
  endpoints from a SQLite store seeded with YAML fixtures. Quirks make it
  answer the way older deployments do (envelopes, legacy field names, a
  missing active year, empty answers to active_year filters) so the
  client's tolerance can be exercised end to end.

ENDPOINTS:
  GET  /api/academic-periods/active
  GET  /api/academic-periods
  GET  /api/events/{id}/funds
  GET  /api/fees/{id}
  GET  /api/fees/{id}/payments?start_year=&end_year=&active_year=
  GET  /api/fees/{id}/roster?start_year=&end_year=&active_year=
  POST /api/admin/fixtures        YAML body, replaces all data
  POST /api/admin/reset
  GET  /healthz

ERROR HANDLING:
  - 400: malformed query parameters, invalid fixtures
  - 404: unknown event or fee
  - 500: store failures

SEE ALSO:
  - server.go: router and middleware
  - fixtures.go: YAML schema
  - store/store.go: SQLite tables
*/
package backendsim

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/backendsim/store"
	"github.com/orgdash/ledger-engine/fees"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the simulator's dependencies.
type Handler struct {
	Store *store.Store
	// Now is the clock used for the payments summary block.
	Now func() time.Time

	log    *slog.Logger
	mu     sync.RWMutex
	quirks Quirks
}

// NewHandler creates a handler over st.
func NewHandler(st *store.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Store: st, Now: time.Now, log: log}
}

// Quirks returns the active quirks.
func (h *Handler) Quirks() Quirks {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quirks
}

// SetQuirks replaces the active quirks.
func (h *Handler) SetQuirks(q Quirks) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.quirks = q
}

// LoadFixtures replaces all data with fx and adopts its quirks.
func (h *Handler) LoadFixtures(ctx context.Context, fx Fixtures) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if err := h.Store.Seed(ctx, fx.Dataset()); err != nil {
		return err
	}
	h.SetQuirks(fx.Quirks)
	h.log.Info("fixtures_loaded",
		"periods", len(fx.Periods),
		"events", len(fx.Events),
		"fees", len(fx.Fees),
		"envelope", fx.Quirks.Envelope,
		"legacy_fields", fx.Quirks.LegacyFields,
	)
	return nil
}

// =============================================================================
// ACADEMIC PERIODS
// =============================================================================

// ActivePeriod returns the period flagged active.
// GET /api/academic-periods/active
func (h *Handler) ActivePeriod(w http.ResponseWriter, r *http.Request) {
	q := h.Quirks()
	p, err := h.Store.ActivePeriod(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load active period", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "No active period", nil)
		return
	}
	row := *p
	if q.ActiveWithoutYear {
		row.Period.ActiveYear = 0
	}
	h.respond(w, http.StatusOK, renderPeriod(row, q.LegacyFields))
}

// ListPeriods returns every period, newest first.
// GET /api/academic-periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	q := h.Quirks()
	rows, err := h.Store.ListPeriods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}
	out := make([]map[string]any, len(rows))
	for i, p := range rows {
		out[i] = renderPeriod(p, q.LegacyFields)
	}
	if q.LegacyFields {
		h.respond(w, http.StatusOK, map[string]any{"periods": out})
		return
	}
	h.respond(w, http.StatusOK, out)
}

// =============================================================================
// EVENTS
// =============================================================================

// EventFunds returns an event's credits and debits.
// GET /api/events/{id}/funds
func (h *Handler) EventFunds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := h.Quirks()
	id := generic.EventID(chi.URLParam(r, "id"))

	event, err := h.Store.GetEvent(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load event", err)
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "Event not found", nil)
		return
	}
	credits, err := h.Store.ListCredits(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list credits", err)
		return
	}
	debits, err := h.Store.ListDebits(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list debits", err)
		return
	}

	cs := make([]map[string]any, len(credits))
	for i, c := range credits {
		cs[i] = renderCredit(c, q.LegacyFields)
	}
	ds := make([]map[string]any, len(debits))
	for i, d := range debits {
		ds[i] = renderDebit(d, q.LegacyFields)
	}
	if q.LegacyFields {
		h.respond(w, http.StatusOK, map[string]any{"event_id": event.ID, "funds": cs, "expenses": ds})
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"event": event.Title, "credits": cs, "debits": ds})
}

// =============================================================================
// FEES
// =============================================================================

// GetFee returns one fee.
// GET /api/fees/{id}
func (h *Handler) GetFee(w http.ResponseWriter, r *http.Request) {
	q := h.Quirks()
	fee, err := h.Store.GetFee(r.Context(), generic.FeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load fee", err)
		return
	}
	if fee == nil {
		writeError(w, http.StatusNotFound, "Fee not found", nil)
		return
	}
	h.respond(w, http.StatusOK, renderFee(*fee, q.LegacyFields))
}

// ListPayments returns a fee's payments for the requested period.
// GET /api/fees/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := h.Quirks()
	feeID := generic.FeeID(chi.URLParam(r, "id"))

	filter, err := parsePeriodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period parameters", err)
		return
	}
	if ok, err := h.feeExists(ctx, feeID); err != nil || !ok {
		h.feeMissing(w, err)
		return
	}

	rows := []store.PaymentRow{}
	if !(q.EmptyOnActiveYear && filter.HasActiveYear()) {
		rows, err = h.Store.ListPayments(ctx, feeID, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
			return
		}
	}

	out := make([]map[string]any, len(rows))
	for i, p := range rows {
		out[i] = renderPayment(p, q.LegacyFields)
	}
	if q.LegacyFields {
		h.respond(w, http.StatusOK, out)
		return
	}

	roster, err := h.Store.ListRoster(ctx, feeID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list roster", err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{
		"payments": out,
		"summary":  h.summary(rows, roster),
	})
}

// ListRoster returns a fee's expected payers for the requested period.
// GET /api/fees/{id}/roster
func (h *Handler) ListRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := h.Quirks()
	feeID := generic.FeeID(chi.URLParam(r, "id"))

	filter, err := parsePeriodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period parameters", err)
		return
	}
	if ok, err := h.feeExists(ctx, feeID); err != nil || !ok {
		h.feeMissing(w, err)
		return
	}

	rows := []store.RosterRow{}
	if !(q.EmptyOnActiveYear && filter.HasActiveYear()) {
		rows, err = h.Store.ListRoster(ctx, feeID, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list roster", err)
			return
		}
	}

	out := make([]map[string]any, len(rows))
	for i, e := range rows {
		out[i] = renderRoster(e, q.LegacyFields)
	}
	if q.LegacyFields {
		h.respond(w, http.StatusOK, map[string]any{"students": out})
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"roster": out})
}

func (h *Handler) feeExists(ctx context.Context, id generic.FeeID) (bool, error) {
	fee, err := h.Store.GetFee(ctx, id)
	return fee != nil, err
}

func (h *Handler) feeMissing(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load fee", err)
		return
	}
	writeError(w, http.StatusNotFound, "Fee not found", nil)
}

// summary computes the KPI block the newer backend sends alongside
// payments. Only confirmed payments are summed.
func (h *Handler) summary(rows []store.PaymentRow, roster []store.RosterRow) map[string]any {
	payments := make([]fees.Payment, len(rows))
	for i, p := range rows {
		payments[i] = fees.Payment{
			PayerID: p.PayerID,
			Amount:  p.Amount,
			PaidAt:  p.PaidAt,
			Status:  fees.ParsePaymentStatus(p.Status),
		}
	}
	entries := make([]fees.RosterEntry, len(roster))
	for i, e := range roster {
		entries[i] = fees.RosterEntry{PayerID: e.PayerID}
	}
	s := fees.Summarize(fees.Confirmed(payments), entries, h.Now())
	bucket := func(b fees.Bucket) map[string]any {
		return map[string]any{"count": b.Count, "sum": b.Sum.StringFixed(2)}
	}
	return map[string]any{
		"today":        bucket(s.Today),
		"week":         bucket(s.Week),
		"month":        bucket(s.Month),
		"semester":     bucket(s.Semester),
		"unpaid_count": s.UnpaidCount,
	}
}

// =============================================================================
// ADMIN
// =============================================================================

// LoadFixturesHandler replaces all data with the YAML request body.
// POST /api/admin/fixtures
func (h *Handler) LoadFixturesHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	fx, err := ParseFixtures(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid fixtures", err)
		return
	}
	if err := h.LoadFixtures(r.Context(), fx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load fixtures", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"periods": len(fx.Periods),
		"events":  len(fx.Events),
		"fees":    len(fx.Fees),
	})
}

// ResetDatabase clears all data and quirks.
// POST /api/admin/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.SetQuirks(Quirks{})
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// RENDERING
// =============================================================================

func renderPeriod(p store.PeriodRow, legacy bool) map[string]any {
	if legacy {
		m := map[string]any{
			"period_id":   p.ID,
			"school_year": p.Period.SpanLabel(),
			"state":       p.Status,
		}
		putYear(m, "semester_year", p.Period.ActiveYear)
		return m
	}
	m := map[string]any{
		"id":        p.ID,
		"startYear": p.Period.StartYear,
		"endYear":   p.Period.EndYear,
		"status":    p.Status,
	}
	putYear(m, "activeYear", p.Period.ActiveYear)
	return m
}

func renderCredit(c store.CreditRow, legacy bool) map[string]any {
	if legacy {
		return map[string]any{
			"id":           c.ID,
			"credit_date":  c.Date,
			"description":  c.Source,
			"remarks":      c.Notes,
			"total_amount": number(c.Amount),
		}
	}
	return map[string]any{
		"id":     c.ID,
		"date":   c.Date,
		"source": c.Source,
		"notes":  c.Notes,
		"amount": c.Amount.StringFixed(2),
	}
}

func renderDebit(d store.DebitRow, legacy bool) map[string]any {
	if legacy {
		return map[string]any{
			"id":               d.ID,
			"expense_date":     d.Date,
			"expense_category": d.Category,
			"remarks":          d.Notes,
			"total_amount":     number(d.Amount),
			"qty":              number(d.Quantity),
			"price":            number(d.UnitPrice),
			"or_number":        d.ReceiptNumber,
		}
	}
	return map[string]any{
		"id":             d.ID,
		"date":           d.Date,
		"category":       d.Category,
		"notes":          d.Notes,
		"amount":         d.Amount.StringFixed(2),
		"quantity":       d.Quantity.String(),
		"unit_price":     d.UnitPrice.StringFixed(2),
		"receipt_number": d.ReceiptNumber,
	}
}

func renderFee(f store.FeeRow, legacy bool) map[string]any {
	if legacy {
		return map[string]any{
			"fee_id":          f.ID,
			"fee_name":        f.Title,
			"fee_amount":      number(f.Amount),
			"fee_type":        f.Scope,
			"department_id":   f.OrgID,
			"approval_status": f.Status,
			"period":          legacyPeriod(f.Period),
		}
	}
	m := map[string]any{
		"id":     f.ID,
		"title":  f.Title,
		"amount": f.Amount.StringFixed(2),
		"scope":  f.Scope,
		"org_id": f.OrgID,
		"status": f.Status,
	}
	putYears(m, f.Period)
	return m
}

func renderPayment(p store.PaymentRow, legacy bool) map[string]any {
	if legacy {
		m := map[string]any{
			"payment_id":     p.ID,
			"student_id":     p.PayerID,
			"student_name":   p.PayerName,
			"amount_paid":    number(p.Amount),
			"payment_date":   p.PaidAt,
			"payment_status": p.Status,
		}
		if p.Period != (academic.AcademicPeriod{}) {
			m["period"] = legacyPeriod(p.Period)
		}
		return m
	}
	m := map[string]any{
		"id":         p.ID,
		"payer_id":   p.PayerID,
		"payer_name": p.PayerName,
		"amount":     p.Amount.StringFixed(2),
		"paid_at":    p.PaidAt,
		"status":     p.Status,
	}
	putYears(m, p.Period)
	return m
}

func renderRoster(e store.RosterRow, legacy bool) map[string]any {
	if legacy {
		m := map[string]any{
			"student_number": e.PayerID,
			"full_name":      e.Name,
			"year":           e.YearLevel,
			"program":        e.Course,
		}
		if e.Period != (academic.AcademicPeriod{}) {
			m["period"] = legacyPeriod(e.Period)
		}
		return m
	}
	m := map[string]any{
		"payer_id":   e.PayerID,
		"name":       e.Name,
		"year_level": e.YearLevel,
		"course":     e.Course,
	}
	putYears(m, e.Period)
	return m
}

func legacyPeriod(p academic.AcademicPeriod) map[string]any {
	m := map[string]any{}
	if p.HasSpan() {
		m["school_year"] = p.SpanLabel()
	}
	putYear(m, "active_year", p.ActiveYear)
	return m
}

func putYears(m map[string]any, p academic.AcademicPeriod) {
	putYear(m, "start_year", p.StartYear)
	putYear(m, "end_year", p.EndYear)
	putYear(m, "active_year", p.ActiveYear)
}

func putYear(m map[string]any, key string, year int) {
	if year != 0 {
		m[key] = year
	}
}

// number renders an amount as a bare JSON number.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// =============================================================================
// HELPERS
// =============================================================================

// parsePeriodParams reads start_year, end_year and active_year. Absent or
// empty parameters mean "any".
func parsePeriodParams(r *http.Request) (academic.AcademicPeriod, error) {
	var p academic.AcademicPeriod
	for key, dst := range map[string]*int{
		"start_year":  &p.StartYear,
		"end_year":    &p.EndYear,
		"active_year": &p.ActiveYear,
	} {
		v := r.URL.Query().Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, &paramError{Key: key, Value: v}
		}
		*dst = n
	}
	return p, nil
}

type paramError struct {
	Key   string
	Value string
}

func (e *paramError) Error() string {
	return e.Key + ": not a year: " + strconv.Quote(e.Value)
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any) {
	if h.Quirks().Envelope {
		data = map[string]any{"success": true, "data": data}
	}
	writeJSON(w, status, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
