/*
main.go - Backend simulator entry point

PURPOSE:
  Serves the dashboard backend contract from a SQLite store seeded with
  YAML fixtures, for local development of the dashboard and ledgerctl.

STARTUP SEQUENCE:
  1. Load config (defaults, LEDGER_CONFIG yaml, .env, LEDGER_* env)
  2. Parse command-line flags on top
  3. Open the SQLite store
  4. Load fixtures, if any
  5. Start the router with graceful shutdown

COMMAND-LINE FLAGS:
  -addr       listen address (default: localhost:8090)
  -db         SQLite database path (default: :memory:)
  -fixtures   YAML fixtures to load at startup
  -origins    comma-separated CORS origins
  plus the shared flags: -log-level, -log-format, -tz, ...

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

EXAMPLES:
  ./backendsim -fixtures=backendsim/testdata/fixtures.yaml
  ./backendsim -db=./sim.db -addr=:9000

SEE ALSO:
  - backendsim/server.go: router configuration
  - backendsim/handlers.go: HTTP handlers
  - backendsim/store/store.go: database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/orgdash/ledger-engine/backendsim"
	"github.com/orgdash/ledger-engine/backendsim/store"
	"github.com/orgdash/ledger-engine/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "backendsim:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load("", ".env")
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("backendsim", flag.ContinueOnError)
	cfg.BindFlags(fs)
	fs.StringVar(&cfg.Sim.Addr, "addr", cfg.Sim.Addr, "listen address")
	fs.StringVar(&cfg.Sim.DB, "db", cfg.Sim.DB, "SQLite database path, :memory: for in-memory")
	fs.StringVar(&cfg.Sim.Fixtures, "fixtures", cfg.Sim.Fixtures, "YAML fixtures to load at startup")
	origins := fs.String("origins", "", "comma-separated CORS origins")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := cfg.NewLogger(os.Stderr)

	st, err := store.New(cfg.Sim.DB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	handler := backendsim.NewHandler(st, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sim.Fixtures != "" {
		fx, err := backendsim.LoadFixturesFile(cfg.Sim.Fixtures)
		if err != nil {
			return err
		}
		if err := handler.LoadFixtures(ctx, fx); err != nil {
			return fmt.Errorf("load fixtures: %w", err)
		}
	}

	router := backendsim.NewRouter(handler, backendsim.RouterOptions{
		AllowedOrigins: splitList(*origins),
		Logger:         log,
	})

	server := &http.Server{
		Addr:         cfg.Sim.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_starting", "addr", cfg.Sim.Addr, "db", cfg.Sim.DB, "api", "http://"+cfg.Sim.Addr+"/api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server_stopped")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
