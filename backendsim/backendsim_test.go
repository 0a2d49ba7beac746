package backendsim_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/backend"
	"github.com/orgdash/ledger-engine/backendsim"
	"github.com/orgdash/ledger-engine/backendsim/store"
	"github.com/orgdash/ledger-engine/fees"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/orgdash/ledger-engine/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var manila = time.FixedZone("PHT", 8*3600)

type env struct {
	srv     *httptest.Server
	client  *backend.Client
	handler *backendsim.Handler
}

func setup(t *testing.T, quirks backendsim.Quirks) env {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := backendsim.NewHandler(st, quiet)
	h.Now = func() time.Time { return time.Date(2025, 3, 12, 16, 0, 0, 0, manila) }

	fx, err := backendsim.LoadFixturesFile("testdata/fixtures.yaml")
	require.NoError(t, err)
	fx.Quirks = quirks
	require.NoError(t, h.LoadFixtures(context.Background(), fx))

	srv := httptest.NewServer(backendsim.NewRouter(h, backendsim.RouterOptions{Logger: quiet}))
	t.Cleanup(srv.Close)

	c, err := backend.NewClient(srv.URL+"/api", 2*time.Second, backend.WithLogger(quiet))
	require.NoError(t, err)
	return env{srv: srv, client: c, handler: h}
}

func payerIDs[T any](rows []T, id func(T) generic.PayerID) []generic.PayerID {
	out := make([]generic.PayerID, len(rows))
	for i, r := range rows {
		out[i] = id(r)
	}
	return out
}

func paymentPayer(p fees.Payment) generic.PayerID    { return p.PayerID }
func rosterPayer(r fees.RosterEntry) generic.PayerID { return r.PayerID }

// =============================================================================
// CURRENT BACKEND SHAPE
// =============================================================================

func TestSim_CanonicalResponses(t *testing.T) {
	e := setup(t, backendsim.Quirks{})
	ctx := context.Background()
	sem2 := academic.New(2024, 2025, 2025)

	p, err := e.client.ActivePeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, sem2, p)

	fee, err := e.client.Fee(ctx, "F-100")
	require.NoError(t, err)
	assert.Equal(t, fees.FeeApproved, fee.Status)
	assert.Equal(t, sem2, fee.Period)

	pays, err := e.client.Payments(ctx, "F-100", sem2)
	require.NoError(t, err)
	assert.Equal(t, backend.StageExact, pays.Stage)
	assert.Equal(t, []generic.PayerID{"S1", "S2"}, payerIDs(pays.Payments, paymentPayer))
	require.NotNil(t, pays.Summary)
	assert.Equal(t, "350", pays.Summary.Semester.Sum.String(), "void payment excluded")
	assert.Equal(t, 1, pays.Summary.Week.Count)
	assert.Equal(t, 0, pays.Summary.Today.Count)

	roster, err := e.client.Roster(ctx, "F-100", sem2)
	require.NoError(t, err)
	assert.Equal(t, []generic.PayerID{"S1", "S2", "S3"}, payerIDs(roster.Roster, rosterPayer))

	unpaid := fees.Unpaid(roster.Roster, pays.Payments)
	assert.Equal(t, []generic.PayerID{"S2", "S3"}, payerIDs(unpaid, rosterPayer))
}

func TestSim_EventLedger(t *testing.T) {
	e := setup(t, backendsim.Quirks{})

	funds, err := e.client.EventFunds(context.Background(), "EV-1")
	require.NoError(t, err)

	l := ledger.Build(funds.Credits, funds.Debits)
	require.Equal(t, 4, l.Len())
	assert.Equal(t, "5298.5", l.Balance().String())
	assert.Equal(t, "Supplies - Markers and paper", l.Entries[1].Description)
	assert.Equal(t, "OR-1001", l.Entries[1].Reference)
}

// =============================================================================
// LEGACY BACKEND SHAPE
// =============================================================================

func TestSim_LegacyQuirksExerciseFallbacks(t *testing.T) {
	// GIVEN: an old deployment: envelopes, legacy names, no active year on
	//        the direct period answer, nothing returned for active_year
	e := setup(t, backendsim.Quirks{
		Envelope:          true,
		LegacyFields:      true,
		ActiveWithoutYear: true,
		EmptyOnActiveYear: true,
	})
	ctx := context.Background()
	sem2 := academic.New(2024, 2025, 2025)

	// WHEN/THEN: the period is completed from the list
	p, err := e.client.ActivePeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, sem2, p)

	// WHEN/THEN: payments widen to the span and are re-filtered
	pays, err := e.client.Payments(ctx, "F-100", sem2)
	require.NoError(t, err)
	assert.Equal(t, backend.StageWithoutActiveYear, pays.Stage)
	assert.Equal(t, []generic.PayerID{"S1", "S2"}, payerIDs(pays.Payments, paymentPayer))
	assert.Nil(t, pays.Summary)
	assert.Equal(t, fees.PaymentVoid, pays.Payments[1].Status)

	roster, err := e.client.Roster(ctx, "F-100", sem2)
	require.NoError(t, err)
	assert.Equal(t, []generic.PayerID{"S1", "S2", "S3"}, payerIDs(roster.Roster, rosterPayer))
	assert.Equal(t, "BSIT", roster.Roster[0].Course)

	funds, err := e.client.EventFunds(ctx, "EV-1")
	require.NoError(t, err)
	require.Len(t, funds.Debits, 2)
	assert.Equal(t, "1.5", funds.Debits[1].Amount.String())
	assert.Equal(t, "OR-1001", funds.Debits[0].ReceiptNumber)

	fee, err := e.client.Fee(ctx, "F-100")
	require.NoError(t, err)
	assert.Equal(t, fees.ScopeOrganization, fee.Scope)
	assert.Equal(t, generic.OrgID("CCS"), fee.OrgID)
	assert.Equal(t, sem2, fee.Period)
}

// =============================================================================
// ERRORS AND ADMIN
// =============================================================================

func TestSim_NotFound(t *testing.T) {
	e := setup(t, backendsim.Quirks{})
	ctx := context.Background()

	_, err := e.client.EventFunds(ctx, "EV-404")
	assert.True(t, generic.IsNotFound(err))

	_, err = e.client.Payments(ctx, "F-404", academic.AllYears)
	assert.True(t, generic.IsNotFound(err))
}

func TestSim_BadQuery(t *testing.T) {
	e := setup(t, backendsim.Quirks{})

	resp, err := http.Get(e.srv.URL + "/api/fees/F-100/payments?start_year=twenty")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSim_AdminFixturesAndReset(t *testing.T) {
	e := setup(t, backendsim.Quirks{})
	ctx := context.Background()

	body := `
periods:
  - {start_year: 2030, end_year: 2031, active_year: 2030, status: active}
fees:
  - {id: F-1, title: Lab Fee, amount: "10"}
`
	resp, err := http.Post(e.srv.URL+"/api/admin/fixtures", "application/yaml", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p, err := e.client.ActivePeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, academic.New(2030, 2031, 2030), p)

	_, err = e.client.Fee(ctx, "F-100")
	assert.True(t, generic.IsNotFound(err), "old data replaced")

	resp, err = http.Post(e.srv.URL+"/api/admin/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = e.client.ActivePeriod(ctx)
	assert.ErrorIs(t, err, generic.ErrPeriodUnavailable)
}

func TestSim_InvalidFixturesRejected(t *testing.T) {
	e := setup(t, backendsim.Quirks{})

	resp, err := http.Post(e.srv.URL+"/api/admin/fixtures", "application/yaml",
		strings.NewReader("fees:\n  - {id: F-1, title: X, amount: lots}\n"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseFixtures_Validation(t *testing.T) {
	_, err := backendsim.ParseFixtures([]byte(`
periods:
  - {start_year: 2025, end_year: 2024}
fees:
  - id: F-1
    title: X
    amount: "1"
    payments:
      - {amount: "1"}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EndYear")
	assert.Contains(t, err.Error(), "PayerID")
}

func TestFixtures_DatasetInheritsFeePeriod(t *testing.T) {
	fx, err := backendsim.ParseFixtures([]byte(`
fees:
  - id: F-1
    title: X
    amount: "1"
    start_year: 2024
    end_year: 2025
    active_year: 2024
    payments:
      - {payer_id: A, amount: "1"}
      - {payer_id: B, amount: "1", unknown: true}
    roster:
      - {payer_id: A, name: Ana, active_year: 2025, start_year: 2024, end_year: 2025}
`))
	require.NoError(t, err)

	d := fx.Dataset()
	require.Len(t, d.Payments, 2)
	assert.Equal(t, academic.New(2024, 2025, 2024), d.Payments[0].Period)
	assert.Equal(t, academic.AcademicPeriod{}, d.Payments[1].Period)
	assert.Equal(t, "confirmed", d.Payments[0].Status)
	assert.Len(t, d.Payments[0].ID, 36)
	assert.Equal(t, academic.New(2024, 2025, 2025), d.Roster[0].Period)
	assert.Equal(t, "approved", d.Fees[0].Status)
}
