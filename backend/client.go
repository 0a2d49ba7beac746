/*
Package backend is the HTTP client for the school backend that owns
academic periods, event funds, fees, payments and rosters.

PURPOSE:
  Every dashboard page reads the same handful of endpoints. The backend
  has grown several field spellings and two response shapes over time,
  so decoding is alias-tolerant and envelope-aware, and period-scoped
  list queries widen themselves when a strict query finds nothing.

ENDPOINTS:
  GET /academic-periods/active      active period (may lack active year)
  GET /academic-periods             period list, fallback for the above
  GET /events/{id}/funds            credits and debits of an event
  GET /fees/{id}                    fee
  GET /fees/{id}/payments           payments, optional summary block
  GET /fees/{id}/roster             expected payers

  Period-scoped queries take start_year, end_year and active_year.

RESPONSE SHAPES:
  Bare JSON, or {"success": bool, "data": ..., "message": "..."}.
  A false success flag becomes a *generic.RejectedError.

WIDENING (payments and roster):
  1. exact filter
  2. zero rows and the filter has an active year: drop active_year
  3. still zero and the filter has a span: drop the span too
  4. rows from a widened query are re-filtered client-side with the
     same equality predicates (academic.AcademicPeriod.Matches); a
     widened answer that keeps nothing counts as zero rows

  Zero rows after the last stage are an empty result, never an error.

SEE ALSO:
  - decode.go: field aliases
  - academic/normalize.go: ResolveActive
  - dashboard/session.go: the consumer
*/
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/fees"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/orgdash/ledger-engine/ledger"
	"github.com/orgdash/ledger-engine/metrics"
)

// RequestIDHeader carries a per-call id the backend can log.
const RequestIDHeader = "X-Request-ID"

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient constructs a client for baseURL, e.g. "http://host/api".
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend: empty base url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// =============================================================================
// RESULTS
// =============================================================================

// Funds is the raw material of an event ledger.
type Funds struct {
	Credits []ledger.CreditRecord
	Debits  []ledger.DebitRecord
}

// ServerSummary is the backend's own KPI block, when it sends one.
type ServerSummary struct {
	Today    fees.Bucket
	Week     fees.Bucket
	Month    fees.Bucket
	Semester fees.Bucket
}

// Stage records how far a period-scoped query had to widen.
type Stage string

const (
	StageExact             Stage = "exact"
	StageWithoutActiveYear Stage = "without_active_year"
	StageWithoutSpan       Stage = "without_span"
)

// PaymentsResult is the answer to Payments. Summary is only taken from an
// exact-stage answer; a widened answer's summary covers the wrong rows.
type PaymentsResult struct {
	Payments []fees.Payment
	Summary  *ServerSummary
	Stage    Stage
}

// RosterResult is the answer to Roster.
type RosterResult struct {
	Roster []fees.RosterEntry
	Stage  Stage
}

// =============================================================================
// ACADEMIC PERIODS
// =============================================================================

// Resolution is the outcome of ResolvePeriod. List holds the period rows
// when the list had to be queried; Listed reports whether it was, even if
// that query failed.
type Resolution struct {
	Active academic.AcademicPeriod
	List   []academic.RawPeriod
	Listed bool
}

// ActivePeriod asks for the active period and falls back to the period
// list when the direct answer fails or lacks an active year.
func (c *Client) ActivePeriod(ctx context.Context) (academic.AcademicPeriod, error) {
	res, err := c.ResolvePeriod(ctx)
	return res.Active, err
}

// ResolvePeriod is ActivePeriod that also hands back the period list it
// fetched, so callers building a selector need not ask again. On error
// the returned Resolution still reports the list query.
func (c *Client) ResolvePeriod(ctx context.Context) (Resolution, error) {
	var res Resolution
	var direct *academic.RawPeriod
	body, err := c.getJSON(ctx, generic.ResourcePeriod, "/academic-periods/active", nil)
	if err != nil {
		c.log.Warn("active_period_query_failed", "error", err)
	} else if r, ok := activeRecord(body); ok {
		raw := r.rawPeriod()
		direct = &raw
	}

	if academic.NeedsList(direct) {
		metrics.IncFallback(string(generic.ResourcePeriod), "period_list")
		res.Listed = true
		res.List, err = c.PeriodList(ctx)
		if err != nil {
			c.log.Warn("period_list_query_failed", "error", err)
		}
	}

	p, err := academic.ResolveActive(direct, res.List)
	if err != nil {
		return res, fmt.Errorf("backend: resolve active period: %w", err)
	}
	res.Active = p
	return res, nil
}

// activeRecord accepts the period object itself, an object nesting it
// under "period", or a one-element array.
func activeRecord(body any) (record, bool) {
	if arr, ok := body.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		body = arr[0]
	}
	r, ok := asRecord(body)
	if !ok {
		return nil, false
	}
	if v, ok := r.first(aliasPeriod); ok {
		if nested, ok := asRecord(v); ok {
			return nested, true
		}
	}
	return r, true
}

// PeriodList returns every period row the backend knows about.
func (c *Client) PeriodList(ctx context.Context) ([]academic.RawPeriod, error) {
	body, err := c.getJSON(ctx, generic.ResourcePeriod, "/academic-periods", nil)
	if err != nil {
		return nil, err
	}
	return decodePeriods(body), nil
}

// =============================================================================
// EVENTS AND FEES
// =============================================================================

// EventFunds returns an event's credits and debits.
func (c *Client) EventFunds(ctx context.Context, id generic.EventID) (Funds, error) {
	body, err := c.getJSON(ctx, generic.ResourceLedger, "/events/"+url.PathEscape(string(id))+"/funds", nil)
	if err != nil {
		return Funds{}, err
	}
	return decodeFunds(body), nil
}

// Fee returns one fee.
func (c *Client) Fee(ctx context.Context, id generic.FeeID) (fees.Fee, error) {
	path := "/fees/" + url.PathEscape(string(id))
	body, err := c.getJSON(ctx, generic.ResourceFee, path, nil)
	if err != nil {
		return fees.Fee{}, err
	}
	r, ok := asRecord(body)
	if !ok {
		return fees.Fee{}, fmt.Errorf("backend %s: expected an object", path)
	}
	f := decodeFee(r)
	if f.ID == "" {
		f.ID = id
	}
	return f, nil
}

// Payments returns the fee's payments for filter, widening as needed.
func (c *Client) Payments(ctx context.Context, id generic.FeeID, filter academic.AcademicPeriod) (PaymentsResult, error) {
	path := "/fees/" + url.PathEscape(string(id)) + "/payments"
	var summary *ServerSummary
	rows, stage, err := scopedFetch(ctx, c, generic.ResourcePayments, path, filter,
		func(body any, stage Stage) []fees.Payment {
			if stage == StageExact {
				summary = decodeSummary(body)
			}
			return decodePayments(body)
		},
		func(p fees.Payment) academic.AcademicPeriod { return p.Period },
	)
	if err != nil {
		return PaymentsResult{}, err
	}
	if stage != StageExact {
		summary = nil
	}
	return PaymentsResult{Payments: rows, Summary: summary, Stage: stage}, nil
}

// Roster returns the fee's expected payers for filter, widening as needed.
func (c *Client) Roster(ctx context.Context, id generic.FeeID, filter academic.AcademicPeriod) (RosterResult, error) {
	path := "/fees/" + url.PathEscape(string(id)) + "/roster"
	rows, stage, err := scopedFetch(ctx, c, generic.ResourceRoster, path, filter,
		func(body any, _ Stage) []fees.RosterEntry { return decodeRoster(body) },
		func(r fees.RosterEntry) academic.AcademicPeriod { return r.Period },
	)
	if err != nil {
		return RosterResult{}, err
	}
	return RosterResult{Roster: rows, Stage: stage}, nil
}

// =============================================================================
// WIDENING QUERY
// =============================================================================

func periodQuery(p academic.AcademicPeriod) url.Values {
	q := url.Values{}
	if p.StartYear != 0 {
		q.Set("start_year", strconv.Itoa(p.StartYear))
	}
	if p.EndYear != 0 {
		q.Set("end_year", strconv.Itoa(p.EndYear))
	}
	if p.ActiveYear != 0 {
		q.Set("active_year", strconv.Itoa(p.ActiveYear))
	}
	return q
}

func scopedFetch[T any](
	ctx context.Context,
	c *Client,
	resource generic.Resource,
	path string,
	filter academic.AcademicPeriod,
	decode func(body any, stage Stage) []T,
	periodOf func(T) academic.AcademicPeriod,
) ([]T, Stage, error) {
	type attempt struct {
		stage Stage
		query academic.AcademicPeriod
	}
	attempts := []attempt{{StageExact, filter}}
	if filter.HasActiveYear() {
		attempts = append(attempts, attempt{StageWithoutActiveYear, filter.Span()})
	}
	if filter.StartYear != 0 || filter.EndYear != 0 {
		attempts = append(attempts, attempt{StageWithoutSpan, academic.AllYears})
	}

	for i, a := range attempts {
		if i > 0 {
			metrics.IncFallback(string(resource), string(a.stage))
			c.log.Info("backend_fallback_query", "resource", resource, "stage", a.stage, "filter", filter.Label())
		}
		body, err := c.getJSON(ctx, resource, path, periodQuery(a.query))
		if err != nil {
			return nil, a.stage, err
		}
		rows := decode(body, a.stage)
		if len(rows) == 0 {
			continue
		}
		if a.stage == StageExact {
			return rows, a.stage, nil
		}
		kept := make([]T, 0, len(rows))
		for _, row := range rows {
			if filter.Matches(periodOf(row)) {
				kept = append(kept, row)
			}
		}
		c.log.Debug("backend_refiltered", "resource", resource, "stage", a.stage, "received", len(rows), "kept", len(kept))
		if len(kept) == 0 {
			continue
		}
		return kept, a.stage, nil
	}
	return []T{}, attempts[len(attempts)-1].stage, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// getJSON performs a GET and returns the decoded, envelope-unwrapped body.
// Numbers are kept as json.Number so amounts stay exact.
func (c *Client) getJSON(ctx context.Context, resource generic.Resource, path string, q url.Values) (any, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	body, err := c.do(req, path)
	result := metrics.ResultSuccess
	switch {
	case generic.IsNotFound(err):
		result = metrics.ResultNotFound
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ObserveBackend(string(resource), result, time.Since(start))
	c.log.Debug("backend_request",
		"resource", resource,
		"path", path,
		"query", q.Encode(),
		"request_id", reqID,
		"result", result,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, err
}

func (c *Client) do(req *http.Request, path string) (any, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &generic.StatusError{Path: path, Code: resp.StatusCode}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("backend %s: decode: %w", path, err)
	}
	return unwrapEnvelope(path, body)
}

// unwrapEnvelope strips {"success", "data"} when present.
func unwrapEnvelope(path string, body any) (any, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return body, nil
	}
	flag, hasFlag := obj["success"]
	if !hasFlag {
		return body, nil
	}
	if success, ok := flag.(bool); ok && !success {
		msg, _ := obj["message"].(string)
		if msg == "" {
			msg, _ = obj["error"].(string)
		}
		return nil, &generic.RejectedError{Path: path, Message: msg}
	}
	if data, ok := obj["data"]; ok {
		return data, nil
	}
	return body, nil
}
