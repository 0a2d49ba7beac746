package backend_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/backend"
	"github.com/orgdash/ledger-engine/fees"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fakeBackend serves canned JSON per route and records the query strings
// it was asked.
type fakeBackend struct {
	mu      sync.Mutex
	queries map[string][]url.Values
	ids     []string
	router  chi.Router
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{queries: map[string][]url.Values{}, router: chi.NewRouter()}
}

func (f *fakeBackend) handle(pattern string, fn func(q url.Values) (int, string)) {
	f.router.Get(pattern, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries[pattern] = append(f.queries[pattern], r.URL.Query())
		f.ids = append(f.ids, r.Header.Get(backend.RequestIDHeader))
		f.mu.Unlock()

		code, body := fn(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	})
}

func (f *fakeBackend) calls(pattern string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[pattern]
}

func (f *fakeBackend) start(t *testing.T) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)
	c, err := backend.NewClient(srv.URL+"/", time.Second)
	require.NoError(t, err)
	return c
}

func static(code int, body string) func(url.Values) (int, string) {
	return func(url.Values) (int, string) { return code, body }
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// ACTIVE PERIOD
// =============================================================================

func TestActivePeriod_DirectInEnvelope(t *testing.T) {
	f := newFakeBackend()
	f.handle("/academic-periods/active", static(200,
		`{"success":true,"data":{"startYear":2024,"endYear":"2025","activeYear":2025}}`))
	f.handle("/academic-periods", static(500, `{}`))
	c := f.start(t)

	p, err := c.ActivePeriod(context.Background())

	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2025), p)
	assert.Empty(t, f.calls("/academic-periods"), "complete direct answer needs no list")
}

func TestActivePeriod_MissingActiveYearFilledFromList(t *testing.T) {
	f := newFakeBackend()
	f.handle("/academic-periods/active", static(200, `{"school_year":"2024-2025"}`))
	f.handle("/academic-periods", static(200, `[
		{"id":1,"start_year":2023,"end_year":2024,"active_year":2024,"status":"inactive"},
		{"id":2,"start_year":2024,"end_year":2025,"active_year":2024,"status":"active"}
	]`))
	c := f.start(t)

	p, err := c.ActivePeriod(context.Background())

	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2024), p)
}

func TestActivePeriod_DirectFailsUsesActiveListRow(t *testing.T) {
	f := newFakeBackend()
	f.handle("/academic-periods/active", static(503, ``))
	f.handle("/academic-periods", static(200, `{"success":true,"data":{"periods":[
		{"id":1,"start_year":2023,"end_year":2024,"active_year":2024,"status":"inactive"},
		{"id":2,"start_year":2024,"end_year":2025,"active_year":2025,"status":"ACTIVE"}
	]}}`))
	c := f.start(t)

	p, err := c.ActivePeriod(context.Background())

	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2025), p)
}

func TestActivePeriod_Unavailable(t *testing.T) {
	f := newFakeBackend()
	f.handle("/academic-periods/active", static(500, ``))
	f.handle("/academic-periods", static(200, `[]`))
	c := f.start(t)

	_, err := c.ActivePeriod(context.Background())

	assert.ErrorIs(t, err, generic.ErrPeriodUnavailable)
}

func TestResolvePeriod_ReturnsFetchedList(t *testing.T) {
	// GIVEN: a direct answer without an active year
	f := newFakeBackend()
	f.handle("/academic-periods/active", static(200, `{"start_year":2024,"end_year":2025}`))
	f.handle("/academic-periods", static(200, `[
		{"id":1,"start_year":2023,"end_year":2024,"active_year":2024},
		{"id":2,"start_year":2024,"end_year":2025,"active_year":2025,"status":"active"}
	]`))
	c := f.start(t)

	// WHEN
	res, err := c.ResolvePeriod(context.Background())

	// THEN: the list consulted for the fallback comes back with the period
	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2025), res.Active)
	assert.True(t, res.Listed)
	assert.Len(t, res.List, 2)
	assert.Len(t, f.calls("/academic-periods"), 1)
}

func TestResolvePeriod_CompleteDirectAnswerSkipsList(t *testing.T) {
	f := newFakeBackend()
	f.handle("/academic-periods/active", static(200, `{"start_year":2024,"end_year":2025,"active_year":2024}`))
	c := f.start(t)

	res, err := c.ResolvePeriod(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Listed)
	assert.Nil(t, res.List)
}

// =============================================================================
// EVENT FUNDS
// =============================================================================

func TestEventFunds_Aliases(t *testing.T) {
	f := newFakeBackend()
	f.handle("/events/{id}/funds", static(200, `{
		"funds":[{"credit_date":"2025-03-01","description":"SSG Release","amount":"5,000.00"}],
		"expenses":[
			{"expense_date":"2025-03-02","expense_category":"Supplies","remarks":"Markers","total_amount":1200,"or_number":"OR-1"},
			{"date":"2025-03-04","category":"Food","qty":"3","unit_price":"150.50"}
		]}`))
	c := f.start(t)

	funds, err := c.EventFunds(context.Background(), "EV-1")
	require.NoError(t, err)

	require.Len(t, funds.Credits, 1)
	assert.Equal(t, "SSG Release", funds.Credits[0].Source)
	assert.True(t, dec("5000").Equal(funds.Credits[0].Amount))

	require.Len(t, funds.Debits, 2)
	assert.Equal(t, generic.CalendarDate("2025-03-02"), funds.Debits[0].Date)
	assert.Equal(t, "Markers", funds.Debits[0].Notes)
	assert.Equal(t, "OR-1", funds.Debits[0].ReceiptNumber)
	assert.True(t, dec("451.5").Equal(funds.Debits[1].Amount), "amount derived from quantity x unit price")
}

// =============================================================================
// FEES
// =============================================================================

func TestFee_Decode(t *testing.T) {
	f := newFakeBackend()
	f.handle("/fees/{id}", static(200, `{"fee_id":"F-9","fee_name":"Org Shirt","fee_amount":"350","fee_type":"Department",
		"department_id":"CCS","approval_status":"Approved","period":{"start_year":2024,"end_year":2025,"active_year":2024}}`))
	c := f.start(t)

	fee, err := c.Fee(context.Background(), "F-9")
	require.NoError(t, err)

	assert.Equal(t, generic.FeeID("F-9"), fee.ID)
	assert.Equal(t, fees.ScopeOrganization, fee.Scope)
	assert.Equal(t, fees.FeeApproved, fee.Status)
	assert.Equal(t, generic.OrgID("CCS"), fee.OrgID)
	assert.Equal(t, academic.New(2024, 2025, 2024), fee.Period)
}

func TestDecode_NamesAreNotSpanLabels(t *testing.T) {
	// GIVEN: rows whose names look like school years, with no year fields
	f := newFakeBackend()
	f.handle("/fees/{id}", static(200, `{"id":"F-7","name":"2023-2024","amount":"10"}`))
	f.handle("/fees/{id}/roster", static(200, `[
		{"student_id":"S1","name":"2023-2024"},
		{"student_id":"S2","name":"Ana","school_year":"2024-2025"}
	]`))
	c := f.start(t)

	fee, err := c.Fee(context.Background(), "F-7")
	require.NoError(t, err)
	assert.Equal(t, "2023-2024", fee.Title)
	assert.Equal(t, academic.AcademicPeriod{}, fee.Period)

	res, err := c.Roster(context.Background(), "F-7", academic.AllYears)
	require.NoError(t, err)
	require.Len(t, res.Roster, 2)
	assert.Equal(t, academic.AcademicPeriod{}, res.Roster[0].Period)
	assert.Equal(t, academic.New(2024, 2025, 0), res.Roster[1].Period, "school_year still counts")
}

func TestFee_Errors(t *testing.T) {
	f := newFakeBackend()
	f.handle("/fees/missing", static(404, `{"error":"no"}`))
	f.handle("/fees/rejected", static(200, `{"success":false,"message":"not allowed"}`))
	c := f.start(t)

	_, err := c.Fee(context.Background(), "missing")
	assert.True(t, generic.IsNotFound(err))

	_, err = c.Fee(context.Background(), "rejected")
	assert.ErrorIs(t, err, generic.ErrBackendRejected)
	var rej *generic.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "not allowed", rej.Message)
}

// =============================================================================
// PAYMENTS / ROSTER WIDENING
// =============================================================================

func TestPayments_ExactWithSummary(t *testing.T) {
	f := newFakeBackend()
	f.handle("/fees/{id}/payments", static(200, `{"payments":[
		{"student_id":"S1","student_name":"Ana","amount_paid":"100","payment_date":"2025-03-12 08:00:00","payment_status":"Paid","start_year":2024,"end_year":2025,"active_year":2025}
	],"summary":{"today":{"count":1,"sum":"100"},"semester":"100"}}`))
	c := f.start(t)

	res, err := c.Payments(context.Background(), "F1", academic.New(2024, 2025, 2025))
	require.NoError(t, err)

	assert.Equal(t, backend.StageExact, res.Stage)
	require.Len(t, res.Payments, 1)
	assert.Equal(t, fees.PaymentConfirmed, res.Payments[0].Status)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.Today.Count)
	assert.True(t, dec("100").Equal(res.Summary.Semester.Sum))

	q := f.calls("/fees/{id}/payments")
	require.Len(t, q, 1)
	assert.Equal(t, "2024", q[0].Get("start_year"))
	assert.Equal(t, "2025", q[0].Get("end_year"))
	assert.Equal(t, "2025", q[0].Get("active_year"))
}

func TestPayments_WidenWithoutActiveYearThenRefilter(t *testing.T) {
	// GIVEN: the backend ignores active_year rows when it is sent
	f := newFakeBackend()
	f.handle("/fees/{id}/payments", func(q url.Values) (int, string) {
		if q.Get("active_year") != "" {
			return 200, `{"success":true,"data":[]}`
		}
		return 200, `{"success":true,"data":[
			{"payer_id":"S1","amount":"100","status":"confirmed","start_year":2024,"end_year":2025,"active_year":2024},
			{"payer_id":"S2","amount":"100","status":"confirmed","start_year":2024,"end_year":2025,"active_year":2025},
			{"payer_id":"S3","amount":"100","status":"confirmed"}
		],"summary":{"semester":"300"}}`
	})
	c := f.start(t)

	// WHEN: asking for the second semester
	res, err := c.Payments(context.Background(), "F1", academic.New(2024, 2025, 2025))
	require.NoError(t, err)

	// THEN: one widened call, re-filtered to the matching row; no summary
	assert.Equal(t, backend.StageWithoutActiveYear, res.Stage)
	require.Len(t, res.Payments, 1)
	assert.Equal(t, generic.PayerID("S2"), res.Payments[0].PayerID)
	assert.Nil(t, res.Summary)

	q := f.calls("/fees/{id}/payments")
	require.Len(t, q, 2)
	assert.False(t, q[1].Has("active_year"))
	assert.Equal(t, "2024", q[1].Get("start_year"))
}

func TestRoster_WidenToAllYears(t *testing.T) {
	f := newFakeBackend()
	f.handle("/fees/{id}/roster", func(q url.Values) (int, string) {
		if q.Has("start_year") {
			return 200, `[]`
		}
		return 200, `{"students":[
			{"student_number":"S1","full_name":"Ana","program":"BSIT","period":{"school_year":"2024-2025","active_year":2024}},
			{"student_number":"S2","full_name":"Ben","period":{"school_year":"2023-2024","active_year":2024}}
		]}`
	})
	c := f.start(t)

	res, err := c.Roster(context.Background(), "F1", academic.New(2024, 2025, 2024))
	require.NoError(t, err)

	assert.Equal(t, backend.StageWithoutSpan, res.Stage)
	require.Len(t, res.Roster, 1)
	assert.Equal(t, "Ana", res.Roster[0].Name)
	assert.Equal(t, "BSIT", res.Roster[0].Course)
	assert.Len(t, f.calls("/fees/{id}/roster"), 3)
}

func TestPayments_EmptyRefilterKeepsWidening(t *testing.T) {
	// GIVEN: nothing for the semester, only last year's rows for the span,
	//        and the matching row only in the unfiltered answer
	f := newFakeBackend()
	f.handle("/fees/{id}/payments", func(q url.Values) (int, string) {
		switch {
		case q.Has("active_year"):
			return 200, `[]`
		case q.Has("start_year"):
			return 200, `[{"payer_id":"S9","amount":"50","status":"confirmed","start_year":2023,"end_year":2024,"active_year":2024}]`
		default:
			return 200, `[
				{"payer_id":"S9","amount":"50","status":"confirmed","start_year":2023,"end_year":2024,"active_year":2024},
				{"payer_id":"S1","amount":"100","status":"confirmed","start_year":2024,"end_year":2025,"active_year":2025}
			]`
		}
	})
	c := f.start(t)

	// WHEN
	res, err := c.Payments(context.Background(), "F1", academic.New(2024, 2025, 2025))
	require.NoError(t, err)

	// THEN: the span answer filtered to nothing, so the unfiltered query ran
	assert.Equal(t, backend.StageWithoutSpan, res.Stage)
	require.Len(t, res.Payments, 1)
	assert.Equal(t, generic.PayerID("S1"), res.Payments[0].PayerID)
	assert.Len(t, f.calls("/fees/{id}/payments"), 3)
}

func TestPayments_NothingMatchesAnyStage(t *testing.T) {
	f := newFakeBackend()
	f.handle("/fees/{id}/payments", func(q url.Values) (int, string) {
		if q.Has("active_year") {
			return 200, `[]`
		}
		return 200, `[{"payer_id":"S9","amount":"50","status":"confirmed","start_year":2023,"end_year":2024,"active_year":2024}]`
	})
	c := f.start(t)

	res, err := c.Payments(context.Background(), "F1", academic.New(2024, 2025, 2025))
	require.NoError(t, err)

	assert.Empty(t, res.Payments)
	assert.NotNil(t, res.Payments)
	assert.Equal(t, backend.StageWithoutSpan, res.Stage)
	assert.Len(t, f.calls("/fees/{id}/payments"), 3)
}

func TestRoster_AllYearsNeverWidens(t *testing.T) {
	f := newFakeBackend()
	f.handle("/fees/{id}/roster", static(200, `[]`))
	c := f.start(t)

	res, err := c.Roster(context.Background(), "F1", academic.AllYears)
	require.NoError(t, err)

	assert.Empty(t, res.Roster)
	assert.NotNil(t, res.Roster)
	assert.Equal(t, backend.StageExact, res.Stage)
	require.Len(t, f.calls("/fees/{id}/roster"), 1)
	assert.Empty(t, f.calls("/fees/{id}/roster")[0].Encode())
}

func TestRequestIDSent(t *testing.T) {
	f := newFakeBackend()
	f.handle("/fees/{id}/roster", static(200, `[]`))
	c := f.start(t)

	_, err := c.Roster(context.Background(), "F1", academic.AllYears)
	require.NoError(t, err)

	require.Len(t, f.ids, 1)
	assert.Len(t, f.ids[0], 36)
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := backend.NewClient(" ", time.Second)
	assert.Error(t, err)
}
