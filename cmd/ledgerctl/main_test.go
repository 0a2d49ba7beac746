package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/orgdash/ledger-engine/backendsim"
	"github.com/orgdash/ledger-engine/backendsim/store"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSim serves the sample fixtures and points the config at them.
func startSim(t *testing.T) {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := backendsim.NewHandler(st, quiet)
	fx, err := backendsim.LoadFixturesFile("../../backendsim/testdata/fixtures.yaml")
	require.NoError(t, err)
	require.NoError(t, h.LoadFixtures(context.Background(), fx))

	srv := httptest.NewServer(backendsim.NewRouter(h, backendsim.RouterOptions{Logger: quiet}))
	t.Cleanup(srv.Close)

	t.Setenv("LEDGER_CONFIG", "")
	t.Setenv("LEDGER_BACKEND_URL", srv.URL+"/api")
	t.Setenv("LEDGER_LOG_LEVEL", "error")
}

func TestParseSpan(t *testing.T) {
	start, end, err := parseSpan(" 2023-2024 ")
	require.NoError(t, err)
	assert.Equal(t, 2023, start)
	assert.Equal(t, 2024, end)

	for _, bad := range []string{"2023", "2023-2025", "abcd-2024", "2024-2023"} {
		_, _, err := parseSpan(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidPeriod, bad)
	}
}

func TestRun_Period(t *testing.T) {
	startSim(t)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"period"}, &out))

	assert.Contains(t, out.String(), "2024-2025 · 2nd Semester")
	assert.Contains(t, out.String(), "2023-2024")
	assert.Contains(t, out.String(), "All Semesters, 1st Semester, 2nd Semester")
}

func TestRun_Ledger(t *testing.T) {
	startSim(t)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"ledger", "-event", "EV-1"}, &out))

	assert.Contains(t, out.String(), "Supplies - Markers and paper")
	assert.Contains(t, out.String(), "5298.50")
}

func TestRun_FeeJSON(t *testing.T) {
	startSim(t)
	var out bytes.Buffer

	// WHEN: last semester is requested
	err := run(context.Background(), []string{"-json", "fee", "-fee", "F-100", "-span", "2024-2025", "-semester", "2024"}, &out)
	require.NoError(t, err)

	// THEN: only the first-semester roster shows, read-only
	var got struct {
		Period   string `json:"period"`
		ReadOnly bool   `json:"read_only"`
		Unpaid   []struct {
			PayerID string `json:"payer_id"`
		} `json:"unpaid"`
		Summary struct {
			RosterSize int `json:"roster_size"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "2024-2025 · 1st Semester", got.Period)
	assert.True(t, got.ReadOnly)
	assert.Equal(t, 1, got.Summary.RosterSize)
	assert.Empty(t, got.Unpaid, "S4 paid in the first semester")
}

func TestRun_FeeText(t *testing.T) {
	startSim(t)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"fee", "-fee", "F-100"}, &out))

	assert.Contains(t, out.String(), "2024-2025 · 2nd Semester (editable)")
	assert.Contains(t, out.String(), "Cara Diaz")
	assert.Contains(t, out.String(), "Paid:")
}

func TestRun_Errors(t *testing.T) {
	startSim(t)
	ctx := context.Background()

	assert.Error(t, run(ctx, nil, io.Discard))
	assert.ErrorContains(t, run(ctx, []string{"bogus"}, io.Discard), "unknown command")
	assert.ErrorContains(t, run(ctx, []string{"fee"}, io.Discard), "-fee is required")
	assert.ErrorContains(t, run(ctx, []string{"ledger"}, io.Discard), "-event is required")
	assert.ErrorIs(t, run(ctx, []string{"fee", "-fee", "F-100", "-span", "x"}, io.Discard), generic.ErrInvalidPeriod)

	err := run(ctx, []string{"fee", "-fee", "F-404"}, io.Discard)
	assert.True(t, generic.IsNotFound(err), "got %v", err)
}

func TestExitCode(t *testing.T) {
	badSpan := run(context.Background(), []string{"fee", "-fee", "F-100", "-span", "x"}, io.Discard)
	assert.Equal(t, 2, exitCode(badSpan))
	assert.Equal(t, 2, exitCode(fmt.Errorf("record: %w", generic.ErrReadOnlyPeriod)))
	assert.Equal(t, 1, exitCode(&generic.StatusError{Path: "/fees/9", Code: 500}))
	assert.Equal(t, 1, exitCode(errors.New("dial tcp: connection refused")))
}

func TestKeepWatching(t *testing.T) {
	// GIVEN: failures a later tick may recover from
	assert.True(t, keepWatching(&generic.StatusError{Path: "/payments", Code: 503}))
	assert.True(t, keepWatching(&generic.StatusError{Path: "/payments", Code: 429}))
	assert.True(t, keepWatching(errors.New("dial tcp: connection refused")))

	// AND: ones that will fail the same way forever
	gone := fmt.Errorf("load fee: %w", &generic.StatusError{Path: "/fees/9", Code: 404})
	assert.False(t, keepWatching(gone))
	assert.False(t, keepWatching(&generic.StatusError{Path: "/fees/9", Code: 403}))
}
