package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitWith(reg)
	InitWith(reg) // second call is a no-op, no duplicate registration panic

	ObserveBackend("payments", ResultSuccess, 20*time.Millisecond)
	ObserveBackend("payments", "", 10*time.Millisecond)
	ObserveBackend("", ResultError, time.Millisecond)
	IncFallback("payments", "without_active_year")
	IncStale("roster")
	IncStale("roster")
	IncReadOnlyDenial("update")
	SetReadOnly(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(backendRequests.WithLabelValues("payments", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(backendRequests.WithLabelValues("unknown", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(backendFallback.WithLabelValues("payments", "without_active_year")))
	assert.Equal(t, 2.0, testutil.ToFloat64(staleResults.WithLabelValues("roster")))
	assert.Equal(t, 1.0, testutil.ToFloat64(readOnlyDenials.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(viewReadOnly))

	SetReadOnly(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(viewReadOnly))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ledger_backend_latency_seconds")
	assert.Contains(t, names, "ledger_view_read_only")
}
