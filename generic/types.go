/*
Package generic provides the domain-agnostic building blocks of the ledger engine.

PURPOSE:
  The dashboard modules (event expenses, department fees, general fees,
  records) all need the same handful of primitives: money arithmetic,
  typed identifiers, relative time windows, a guard against stale async
  results, and page-window slicing. They live here once so that the
  domain packages (academic, ledger, fees) never reimplement them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal amounts parsed leniently from backend payloads
  - Identifiers: type-safe IDs so a payer ID cannot be passed as a fee ID
  - Resource: names of the logical async loads the Sequencer guards

DESIGN PRINCIPLES:
  1. Precision: amounts are decimal.Decimal, never float64
  2. Totality: parsing helpers report failure with a bool, they never panic
  3. Type Safety: distinct string types for every identifier

SEE ALSO:
  - time.go: calendar dates and KPI window boundaries
  - sequencer.go: stale-result suppression
  - pagination.go: page windows
  - errors.go: sentinel and structured errors
*/
package generic

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// ParseMoney parses an amount as the backend sends it: a JSON number, a
// numeric string, or a string carrying thousands separators ("1,250.00").
// The second return value is false when nothing numeric could be read.
func ParseMoney(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		return ParseMoney(string(x))
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// MustParseDecimal parses s or returns zero.
func MustParseDecimal(s string) decimal.Decimal {
	d, ok := ParseMoney(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

// ParseInt reads an integer from a JSON number or numeric string.
func ParseInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if x != float64(int(x)) {
			return 0, false
		}
		return int(x), true
	case int:
		return x, true
	case int64:
		return int(x), true
	case json.Number:
		return ParseInt(string(x))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EventID string
type FeeID string
type PayerID string
type OrgID string

// =============================================================================
// RESOURCES - logical async loads owned by a dashboard session
// =============================================================================

// Resource names one logical asynchronous load. Each resource owns its own
// sequence counter in a Sequencer.
type Resource string

const (
	ResourcePeriod   Resource = "period"
	ResourceFee      Resource = "fee"
	ResourcePayments Resource = "payments"
	ResourceRoster   Resource = "roster"
	ResourceLedger   Resource = "ledger"
)
