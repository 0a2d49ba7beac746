/*
main.go - Dashboard command-line client

PURPOSE:
  Runs a dashboard session against the backend from the terminal: shows
  the academic period, prints event statements and fee collection views,
  and can keep a fee refreshed while exposing Prometheus metrics.

USAGE:
  ledgerctl [shared flags] <command> [command flags]

COMMANDS:
  period                         active period, school years, semesters
  ledger  -event ID              event fund statement
  fee     -fee ID                fee summary and unpaid list
  watch   -fee ID [-event ID]    refresh every -interval, serve /metrics

PERIOD FLAGS (ledger, fee, watch):
  -span      "2023-2024" or "all"; default is the active period
  -semester  active year within the span, 0 for all semesters

EXAMPLES:
  ledgerctl period
  ledgerctl fee -fee F-100 -span 2023-2024 -semester 2024
  ledgerctl -log-level=debug watch -fee F-100 -metrics-addr=:9100

SEE ALSO:
  - dashboard/session.go: the session driven by every command
  - config/config.go: shared flags and environment
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/backend"
	"github.com/orgdash/ledger-engine/config"
	"github.com/orgdash/ledger-engine/dashboard"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/orgdash/ledger-engine/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `usage: ledgerctl [flags] <command> [command flags]

commands:
  period    show the active period and the selectable periods
  ledger    print an event fund statement (-event)
  fee       print a fee collection view (-fee)
  watch     refresh a fee periodically and serve /metrics
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for input the backend would never accept, 1 otherwise.
func exitCode(err error) int {
	if generic.IsClientError(err) {
		return 2
	}
	return 1
}

// keepWatching reports whether a failed refresh is worth another tick.
// Transport errors and retryable statuses are; a 404 or other client
// status will fail the same way every time.
func keepWatching(err error) bool {
	var se *generic.StatusError
	if errors.As(err, &se) {
		return generic.IsRetryable(err)
	}
	return true
}

// app carries what every command needs.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	session *dashboard.Session
	out     io.Writer
	json    bool
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load("", ".env")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	cfg.BindFlags(fs)
	asJSON := fs.Bool("json", false, "write JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	a, err := newApp(cfg, out, *asJSON)
	if err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "period":
		return a.period(ctx, rest)
	case "ledger":
		return a.ledger(ctx, rest)
	case "fee":
		return a.fee(ctx, rest)
	case "watch":
		return a.watch(ctx, rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newApp(cfg config.Config, out io.Writer, asJSON bool) (*app, error) {
	log := cfg.NewLogger(os.Stderr)
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, backend.WithLogger(log))
	if err != nil {
		return nil, err
	}
	session := dashboard.NewSession(client, dashboard.Options{
		PageSize: cfg.PageSize,
		Location: loc,
		Logger:   log,
	})
	return &app{cfg: cfg, log: log, session: session, out: out, json: asJSON}, nil
}

// =============================================================================
// PERIOD SELECTION
// =============================================================================

// periodFlags selects the viewed period for a command.
type periodFlags struct {
	span     string
	semester int
}

func (p *periodFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&p.span, "span", "", `school year "2023-2024", or "all"`)
	fs.IntVar(&p.semester, "semester", -1, "active year within the span, 0 for all semesters")
}

// apply initializes the session and moves it to the requested period.
// Changes are made before any fee is selected, so nothing reloads yet.
func (p periodFlags) apply(ctx context.Context, s *dashboard.Session) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(p.span)) {
	case "":
	case "all":
		if err := s.SelectAllYears(ctx); err != nil {
			return err
		}
	default:
		start, end, err := parseSpan(p.span)
		if err != nil {
			return err
		}
		if err := s.SelectSpan(ctx, start, end); err != nil {
			return err
		}
	}
	if p.semester >= 0 {
		return s.SelectActiveYear(ctx, p.semester)
	}
	return nil
}

func parseSpan(s string) (int, int, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: span %q", generic.ErrInvalidPeriod, s)
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(a))
	end, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil || end != start+1 {
		return 0, 0, fmt.Errorf("%w: span %q", generic.ErrInvalidPeriod, s)
	}
	return start, end, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

func (a *app) period(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("period", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.session.Init(ctx); err != nil {
		return err
	}

	snap := a.session.State().Snapshot()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	if snap.BaseKnown {
		fmt.Fprintf(tw, "Active:\t%s\n", snap.Base.Label())
	} else {
		fmt.Fprintln(tw, "Active:\tunknown (nothing is read-only)")
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "SCHOOL YEAR\tSEMESTERS")
	for _, opt := range a.session.Options() {
		var sems []string
		for _, sem := range academic.SemesterOptions(opt) {
			sems = append(sems, sem.SemesterLabel())
		}
		fmt.Fprintf(tw, "%s\t%s\n", opt.SpanLabel(), strings.Join(sems, ", "))
	}
	return tw.Flush()
}

func (a *app) ledger(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	event := fs.String("event", "", "event ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *event == "" {
		return errors.New("ledger: -event is required")
	}
	if err := a.session.Init(ctx); err != nil {
		return err
	}
	if _, _, err := a.session.LoadEventLedger(ctx, generic.EventID(*event)); err != nil {
		return fmt.Errorf("ledger %s: %w", *event, err)
	}
	return a.write(a.session.Report())
}

func (a *app) fee(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fee", flag.ContinueOnError)
	feeID := fs.String("fee", "", "fee ID (required)")
	var pf periodFlags
	pf.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *feeID == "" {
		return errors.New("fee: -fee is required")
	}
	if err := pf.apply(ctx, a.session); err != nil {
		return err
	}
	if err := a.session.SelectFee(ctx, generic.FeeID(*feeID)); err != nil {
		return fmt.Errorf("fee %s: %w", *feeID, err)
	}
	return a.write(a.session.Report())
}

func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	feeID := fs.String("fee", "", "fee ID (required)")
	event := fs.String("event", "", "event ID to refresh alongside the fee")
	interval := fs.Duration("interval", 30*time.Second, "refresh interval")
	fs.StringVar(&a.cfg.Metrics.Addr, "metrics-addr", a.cfg.Metrics.Addr, "listen address for /metrics, empty disables")
	var pf periodFlags
	pf.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *feeID == "" {
		return errors.New("watch: -fee is required")
	}
	if *interval <= 0 {
		return fmt.Errorf("watch: -interval must be positive, got %s", *interval)
	}

	metrics.Init()
	if a.cfg.Metrics.Addr != "" {
		srv := a.metricsServer(a.cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := pf.apply(ctx, a.session); err != nil {
		return err
	}
	if err := a.session.SelectFee(ctx, generic.FeeID(*feeID)); err != nil {
		a.log.Warn("refresh_failed", "fee_id", *feeID, "error", err)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		a.refreshEvent(ctx, *event)
		v := a.session.View()
		a.log.Info("refreshed",
			"period", v.PeriodLabel,
			"read_only", v.Period.ReadOnly,
			"today", v.Summary.Today.Sum.StringFixed(2),
			"semester", v.Summary.Semester.Sum.StringFixed(2),
			"unpaid", v.Summary.UnpaidCount,
			"collection_rate", v.CollectionRate.StringFixed(2),
		)

		select {
		case <-ctx.Done():
			a.log.Info("watch_stopped")
			return nil
		case <-ticker.C:
		}
		if err := a.session.Reload(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("refresh_failed", "fee_id", *feeID, "error", err, "retryable", generic.IsRetryable(err))
			if !keepWatching(err) {
				return fmt.Errorf("watch %s: %w", *feeID, err)
			}
		}
	}
}

func (a *app) refreshEvent(ctx context.Context, event string) {
	if event == "" {
		return
	}
	l, applied, err := a.session.LoadEventLedger(ctx, generic.EventID(event))
	if err != nil {
		a.log.Warn("ledger_refresh_failed", "event_id", event, "error", err)
		return
	}
	if !applied {
		return
	}
	a.log.Info("ledger_refreshed", "event_id", event, "entries", l.Len(), "balance", l.Balance().StringFixed(2))
}

func (a *app) metricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.log.Info("metrics_listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics_server_failed", "error", err)
		}
	}()
	return srv
}

func (a *app) write(r dashboard.Report) error {
	if a.json {
		return r.WriteJSON(a.out)
	}
	return r.WriteText(a.out)
}
