package generic_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/orgdash/ledger-engine/generic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"1,250.50", "1250.5", true},
		{" 40 ", "40", true},
		{float64(12.25), "12.25", true},
		{int64(7), "7", true},
		{json.Number("99.95"), "99.95", true},
		{"", "0", false},
		{"abc", "0", false},
		{nil, "0", false},
		{true, "0", false},
	}
	for _, tt := range tests {
		got, ok := generic.ParseMoney(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "%v: got %s", tt.in, got)
	}
}

func TestParseInt(t *testing.T) {
	n, ok := generic.ParseInt("2024")
	assert.True(t, ok)
	assert.Equal(t, 2024, n)

	n, ok = generic.ParseInt(float64(2025))
	assert.True(t, ok)
	assert.Equal(t, 2025, n)

	n, ok = generic.ParseInt(json.Number("2023"))
	assert.True(t, ok)
	assert.Equal(t, 2023, n)

	_, ok = generic.ParseInt(float64(2024.5))
	assert.False(t, ok)
	_, ok = generic.ParseInt("20x4")
	assert.False(t, ok)
}

func TestStatusError_Unwrap(t *testing.T) {
	notFound := fmt.Errorf("load fee: %w", &generic.StatusError{Path: "/fees/9", Code: 404})
	assert.True(t, generic.IsNotFound(notFound))
	assert.False(t, generic.IsRetryable(notFound))

	unavailable := &generic.StatusError{Path: "/fees/9", Code: 503}
	assert.True(t, errors.Is(unavailable, generic.ErrBackendStatus))
	assert.True(t, generic.IsRetryable(unavailable))

	assert.True(t, errors.Is(&generic.RejectedError{Path: "/x"}, generic.ErrBackendRejected))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, generic.IsClientError(fmt.Errorf("span: %w", generic.ErrInvalidPeriod)))
	assert.True(t, generic.IsClientError(generic.ErrReadOnlyPeriod))
	assert.False(t, generic.IsClientError(&generic.StatusError{Path: "/fees/9", Code: 404}))
	assert.False(t, generic.IsClientError(nil))
}
