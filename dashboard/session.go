/*
Package dashboard is the per-user context object behind the fee and
event pages.

PURPOSE:
  A Session owns everything one dashboard tab holds: the academic period
  state, the sequencer guarding async loads, the loaded fee, payments,
  roster and event ledger, and the table pagers. Nothing lives in
  package-level variables; two sessions never share state.

LOAD FLOW (Reload):
  1. filter := viewed period
  2. for each resource (fee, payments, roster): ticket := seq.Begin(r)
  3. fetch all three in parallel (errgroup)
  4. each result is applied only if its ticket is still current;
     otherwise it is dropped and counted as stale

  A period change issued while a load is in flight therefore always wins,
  whichever answer arrives last.

READ-ONLY GATE:
  Guard(action) consults academic.State. A failed active-period query
  leaves the base unknown and the dashboard editable (fail open).

SEE ALSO:
  - report.go: immutable snapshot for print/export
  - academic/state.go: period state machine
  - generic/sequencer.go: ticket rule
*/
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/backend"
	"github.com/orgdash/ledger-engine/fees"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/orgdash/ledger-engine/ledger"
	"github.com/orgdash/ledger-engine/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Backend is the query surface a Session needs. *backend.Client
// implements it.
type Backend interface {
	ResolvePeriod(ctx context.Context) (backend.Resolution, error)
	PeriodList(ctx context.Context) ([]academic.RawPeriod, error)
	EventFunds(ctx context.Context, id generic.EventID) (backend.Funds, error)
	Fee(ctx context.Context, id generic.FeeID) (fees.Fee, error)
	Payments(ctx context.Context, id generic.FeeID, filter academic.AcademicPeriod) (backend.PaymentsResult, error)
	Roster(ctx context.Context, id generic.FeeID, filter academic.AcademicPeriod) (backend.RosterResult, error)
}

var _ Backend = (*backend.Client)(nil)

// Options configures a Session.
type Options struct {
	PageSize int
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Table names a paginated table on the fee page.
type Table int

const (
	TableUnpaid Table = iota
	TablePayments
)

// =============================================================================
// SESSION
// =============================================================================

// Session is one dashboard's state. It is safe for concurrent use.
type Session struct {
	backend Backend
	state   *academic.State
	seq     *generic.Sequencer
	log     *slog.Logger
	loc     *time.Location
	now     func() time.Time

	mu            sync.RWMutex
	options       []academic.AcademicPeriod
	feeID         generic.FeeID
	fee           *fees.Fee
	payments      []fees.Payment
	serverSummary *backend.ServerSummary
	paymentsStage backend.Stage
	roster        []fees.RosterEntry
	rosterStage   backend.Stage
	query         string
	paymentQuery  string
	eventID       generic.EventID
	ledger        *ledger.Ledger
	debits        []ledger.DebitRecord
	unpaidPager   *generic.Pager
	paymentPager  *generic.Pager
}

// NewSession creates a session over b.
func NewSession(b Backend, opts Options) *Session {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		backend:      b,
		state:        academic.NewState(),
		seq:          generic.NewSequencer(),
		log:          opts.Logger,
		loc:          opts.Location,
		now:          opts.Now,
		unpaidPager:  generic.NewPager(opts.PageSize),
		paymentPager: generic.NewPager(opts.PageSize),
	}
	s.seq.OnStale = func(t generic.Ticket) {
		metrics.IncStale(string(t.Resource))
		s.log.Debug("stale_result_dropped", "resource", t.Resource, "seq", t.Seq)
	}
	return s
}

// State exposes the period state.
func (s *Session) State() *academic.State { return s.state }

// Sequencer exposes the load sequencer.
func (s *Session) Sequencer() *generic.Sequencer { return s.seq }

// =============================================================================
// PERIOD SELECTION
// =============================================================================

// Init resolves the active period and points the view at it, then fills
// the school-year options, reusing the period list when resolving needed
// it. A failure is logged and leaves the base unknown; Init itself only
// fails when ctx is done.
func (s *Session) Init(ctx context.Context) error {
	t := s.seq.Begin(generic.ResourcePeriod)
	res, err := s.backend.ResolvePeriod(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	active := res.Active

	list := res.List
	if !res.Listed {
		if rows, lerr := s.backend.PeriodList(ctx); lerr == nil {
			list = rows
		} else {
			s.log.Warn("period_options_unavailable", "error", lerr)
		}
	}

	s.seq.Apply(t, func() {
		if err != nil {
			s.log.Warn("active_period_unavailable", "error", err)
			s.state.ClearBase()
		} else if s.state.SetBaseFromServer(active) {
			s.state.ViewBase()
			s.log.Info("active_period_resolved", "period", active.Label())
		}
		s.mu.Lock()
		s.options = academic.Options(list)
		s.mu.Unlock()
	})
	s.publishReadOnly()
	return nil
}

// Options returns the school-year selector entries, newest first.
func (s *Session) Options() []academic.AcademicPeriod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]academic.AcademicPeriod(nil), s.options...)
}

// SelectSpan views a school year and reloads. A zero year selects ALL.
func (s *Session) SelectSpan(ctx context.Context, startYear, endYear int) error {
	s.state.SetViewedSpan(startYear, endYear)
	return s.periodChanged(ctx)
}

// SelectAllYears views every school year and reloads.
func (s *Session) SelectAllYears(ctx context.Context) error {
	s.state.ViewAllYears()
	return s.periodChanged(ctx)
}

// SelectActiveYear views one semester (0 = all semesters) and reloads.
// It does nothing while all school years are viewed.
func (s *Session) SelectActiveYear(ctx context.Context, year int) error {
	if !s.state.SetViewedActiveYear(year) {
		return nil
	}
	return s.periodChanged(ctx)
}

// SelectCurrent returns the view to the active period and reloads.
func (s *Session) SelectCurrent(ctx context.Context) error {
	s.state.ViewBase()
	return s.periodChanged(ctx)
}

func (s *Session) periodChanged(ctx context.Context) error {
	s.publishReadOnly()
	s.mu.Lock()
	s.unpaidPager.Reset()
	s.paymentPager.Reset()
	s.mu.Unlock()
	return s.Reload(ctx)
}

func (s *Session) publishReadOnly() {
	metrics.SetReadOnly(s.state.IsReadOnly())
}

// Guard checks action against the read-only gate and counts denials.
func (s *Session) Guard(action academic.Action) error {
	err := s.state.Guard(action)
	if err != nil {
		metrics.IncReadOnlyDenial(string(action))
		s.log.Info("read_only_denied", "action", action, "viewed", s.state.Viewed().Label())
	}
	return err
}

// GuardFee checks action against the period gate and the fee's status.
func (s *Session) GuardFee(action academic.Action) error {
	if err := s.Guard(action); err != nil {
		return err
	}
	s.mu.RLock()
	fee := s.fee
	s.mu.RUnlock()
	if fee == nil {
		return nil
	}
	return fee.Guard(s.state, action)
}

// =============================================================================
// LOADING
// =============================================================================

// SelectFee switches the fee page to id and loads it.
func (s *Session) SelectFee(ctx context.Context, id generic.FeeID) error {
	s.mu.Lock()
	if s.feeID != id {
		s.feeID = id
		s.fee = nil
		s.payments = nil
		s.roster = nil
		s.serverSummary = nil
		s.query = ""
		s.paymentQuery = ""
		s.unpaidPager.Reset()
		s.paymentPager.Reset()
	}
	s.mu.Unlock()
	return s.Reload(ctx)
}

// Reload fetches the fee, its payments and its roster for the viewed
// period. Results superseded by a later Reload are dropped.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.RLock()
	feeID := s.feeID
	s.mu.RUnlock()
	if feeID == "" {
		return nil
	}
	filter := s.state.Viewed()

	feeTicket := s.seq.Begin(generic.ResourceFee)
	payTicket := s.seq.Begin(generic.ResourcePayments)
	rosterTicket := s.seq.Begin(generic.ResourceRoster)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fee, err := s.backend.Fee(gctx, feeID)
		if err != nil {
			return err
		}
		s.seq.Apply(feeTicket, func() {
			s.mu.Lock()
			s.fee = &fee
			s.mu.Unlock()
		})
		return nil
	})
	g.Go(func() error {
		res, err := s.backend.Payments(gctx, feeID, filter)
		if err != nil {
			return err
		}
		s.seq.Apply(payTicket, func() {
			s.mu.Lock()
			s.payments = res.Payments
			s.serverSummary = res.Summary
			s.paymentsStage = res.Stage
			s.mu.Unlock()
		})
		return nil
	})
	g.Go(func() error {
		res, err := s.backend.Roster(gctx, feeID, filter)
		if err != nil {
			return err
		}
		s.seq.Apply(rosterTicket, func() {
			s.mu.Lock()
			s.roster = res.Roster
			s.rosterStage = res.Stage
			s.mu.Unlock()
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("fee_reload_failed", "fee_id", feeID, "period", filter.Label(), "error", err)
		return err
	}
	s.checkServerSummary()
	return nil
}

// checkServerSummary compares the backend's own semester total with the
// locally computed one. The local figure is always the one shown.
func (s *Session) checkServerSummary() {
	s.mu.RLock()
	server := s.serverSummary
	local := fees.Summarize(fees.Confirmed(s.payments), s.roster, s.now().In(s.loc))
	s.mu.RUnlock()
	if server == nil {
		return
	}
	if !server.Semester.Sum.Equal(local.Semester.Sum) {
		s.log.Warn("server_summary_mismatch",
			"server_semester", server.Semester.Sum.String(),
			"local_semester", local.Semester.Sum.String(),
		)
	}
}

// LoadEventLedger fetches an event's funds and builds its ledger. The
// boolean is false when a later call superseded this one; the result was
// then dropped and the zero Ledger is returned.
func (s *Session) LoadEventLedger(ctx context.Context, id generic.EventID) (ledger.Ledger, bool, error) {
	t := s.seq.Begin(generic.ResourceLedger)
	funds, err := s.backend.EventFunds(ctx, id)
	if err != nil {
		return ledger.Ledger{}, false, err
	}
	l := ledger.Build(funds.Credits, funds.Debits)
	applied := s.seq.Apply(t, func() {
		s.mu.Lock()
		s.eventID = id
		s.ledger = &l
		s.debits = funds.Debits
		s.mu.Unlock()
	})
	if !applied {
		return ledger.Ledger{}, false, nil
	}
	if bad := l.InvalidDates(); len(bad) > 0 {
		s.log.Warn("ledger_invalid_dates", "event_id", id, "dates", bad)
	}
	return l, true, nil
}

// Ledger returns the last applied event ledger.
func (s *Session) Ledger() (generic.EventID, ledger.Ledger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ledger == nil {
		return "", ledger.Ledger{}, false
	}
	return s.eventID, *s.ledger, true
}

// =============================================================================
// TABLES
// =============================================================================

// SearchRoster filters the unpaid table and returns to its first page.
func (s *Session) SearchRoster(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.unpaidPager.Reset()
}

// SearchPayments filters the payments table by payer id or name and
// returns to its first page.
func (s *Session) SearchPayments(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentQuery = query
	s.paymentPager.Reset()
}

// PageTo moves a table to page n, clamped to its current size.
func (s *Session) PageTo(table Table, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case TableUnpaid:
		s.unpaidPager.SetTotal(len(s.unpaidLocked()))
		s.unpaidPager.GoTo(n)
	case TablePayments:
		s.paymentPager.SetTotal(len(s.paymentsLocked()))
		s.paymentPager.GoTo(n)
	}
}

func (s *Session) unpaidLocked() []fees.RosterEntry {
	return fees.Search(fees.Unpaid(s.roster, s.payments), s.query)
}

func (s *Session) paymentsLocked() []fees.Payment {
	return fees.SearchPayments(s.payments, s.paymentQuery)
}

// =============================================================================
// VIEW MODEL
// =============================================================================

// FeeView is everything the fee page renders.
type FeeView struct {
	Period         academic.Snapshot
	PeriodLabel    string
	Fee            *fees.Fee
	CanEdit        bool
	Summary        fees.Summary
	Expected       decimal.Decimal
	CollectionRate decimal.Decimal
	Query          string
	PaymentQuery   string
	Unpaid         generic.Page[fees.RosterEntry]
	Payments       generic.Page[fees.Payment]
	PaymentsStage  backend.Stage
	RosterStage    backend.Stage
}

// View computes the fee page. Pagers are clamped to the current data.
func (s *Session) View() FeeView {
	snap := s.state.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	summary := fees.Summarize(fees.Confirmed(s.payments), s.roster, s.now().In(s.loc))
	v := FeeView{
		Period:         snap,
		PeriodLabel:    snap.Viewed.Label(),
		Summary:        summary,
		Expected:       decimal.Zero,
		CollectionRate: summary.CollectionRate(),
		Query:          s.query,
		PaymentQuery:   s.paymentQuery,
		Unpaid:         generic.Slice(s.unpaidPager, s.unpaidLocked()),
		Payments:       generic.Slice(s.paymentPager, s.paymentsLocked()),
		PaymentsStage:  s.paymentsStage,
		RosterStage:    s.rosterStage,
	}
	if s.fee != nil {
		fee := *s.fee
		v.Fee = &fee
		v.Expected = summary.Expected(fee.Amount)
		v.CanEdit = fee.Editable(s.state)
	}
	return v
}
