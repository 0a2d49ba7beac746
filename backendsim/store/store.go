/*
Package store is the SQLite datastore behind backendsim.

PURPOSE:
  Holds the rows the simulated school backend serves: academic periods,
  events with their credits and debits, fees with their payments and
  rosters. Year columns are nullable; NULL is the "unknown period" that
  real backend rows sometimes carry.

KEY TABLES:
  periods:   start_year, end_year, active_year, status
  events:    id, title
  credits:   event fund releases and income
  debits:    event expenses
  fees:      charge with scope, status and period
  payments:  per-payer payments against a fee
  roster:    expected payers of a fee

FILTERING:
  ListPayments and ListRoster apply equality predicates for the non-zero
  fields of the filter, exactly as the real backend does. A NULL column
  never equals a set filter field.

ORDER:
  Lists come back in insertion order (rowid), periods newest first.

CONCURRENCY:
  Uses sync.RWMutex around the *sql.DB, as the rest of the store layer
  does.

USAGE:
  st, err := store.New(":memory:")
  defer st.Close()
  err = st.Seed(ctx, dataset)
*/
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/shopspring/decimal"
)

// Store implements the simulator datastore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = ":memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// a second connection would see a different in-memory database
		db.SetMaxOpenConns(1)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS periods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_year INTEGER NOT NULL,
		end_year INTEGER NOT NULL,
		active_year INTEGER,
		status TEXT NOT NULL DEFAULT 'inactive'
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credits (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		source TEXT NOT NULL,
		notes TEXT,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credits_event ON credits(event_id);

	CREATE TABLE IF NOT EXISTS debits (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		category TEXT NOT NULL,
		notes TEXT,
		amount TEXT NOT NULL,
		quantity TEXT,
		unit_price TEXT,
		receipt_number TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_debits_event ON debits(event_id);

	CREATE TABLE IF NOT EXISTS fees (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		amount TEXT NOT NULL,
		scope TEXT NOT NULL,
		org_id TEXT,
		status TEXT NOT NULL,
		start_year INTEGER,
		end_year INTEGER,
		active_year INTEGER
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		fee_id TEXT NOT NULL REFERENCES fees(id) ON DELETE CASCADE,
		payer_id TEXT NOT NULL,
		payer_name TEXT,
		amount TEXT NOT NULL,
		paid_at TEXT,
		status TEXT NOT NULL,
		start_year INTEGER,
		end_year INTEGER,
		active_year INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_payments_fee_period
		ON payments(fee_id, start_year, end_year, active_year);

	CREATE TABLE IF NOT EXISTS roster (
		fee_id TEXT NOT NULL REFERENCES fees(id) ON DELETE CASCADE,
		payer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		year_level TEXT,
		course TEXT,
		start_year INTEGER,
		end_year INTEGER,
		active_year INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_roster_fee_period
		ON roster(fee_id, start_year, end_year, active_year);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROWS
// =============================================================================

type PeriodRow struct {
	ID     int64
	Period academic.AcademicPeriod
	Status string
}

type EventRow struct {
	ID    generic.EventID
	Title string
}

type CreditRow struct {
	ID      string
	EventID generic.EventID
	Date    string
	Source  string
	Notes   string
	Amount  decimal.Decimal
}

type DebitRow struct {
	ID            string
	EventID       generic.EventID
	Date          string
	Category      string
	Notes         string
	Amount        decimal.Decimal
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	ReceiptNumber string
}

type FeeRow struct {
	ID     generic.FeeID
	Title  string
	Amount decimal.Decimal
	Scope  string
	OrgID  string
	Status string
	Period academic.AcademicPeriod
}

type PaymentRow struct {
	ID        string
	FeeID     generic.FeeID
	PayerID   generic.PayerID
	PayerName string
	Amount    decimal.Decimal
	PaidAt    string
	Status    string
	Period    academic.AcademicPeriod
}

type RosterRow struct {
	FeeID     generic.FeeID
	PayerID   generic.PayerID
	Name      string
	YearLevel string
	Course    string
	Period    academic.AcademicPeriod
}

// Dataset is everything Seed writes in one transaction.
type Dataset struct {
	Periods  []PeriodRow
	Events   []EventRow
	Credits  []CreditRow
	Debits   []DebitRow
	Fees     []FeeRow
	Payments []PaymentRow
	Roster   []RosterRow
}

// =============================================================================
// WRITES
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Seed inserts a dataset atomically.
func (s *Store) Seed(ctx context.Context, d Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range d.Periods {
		if err := insertPeriod(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, e := range d.Events {
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
	}
	for _, c := range d.Credits {
		if err := insertCredit(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, dr := range d.Debits {
		if err := insertDebit(ctx, tx, dr); err != nil {
			return err
		}
	}
	for _, f := range d.Fees {
		if err := insertFee(ctx, tx, f); err != nil {
			return err
		}
	}
	for _, p := range d.Payments {
		if err := insertPayment(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, r := range d.Roster {
		if err := insertRoster(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SavePayment inserts one payment.
func (s *Store) SavePayment(ctx context.Context, p PaymentRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPeriod(ctx context.Context, db execer, p PeriodRow) error {
	status := p.Status
	if status == "" {
		status = "inactive"
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO periods (start_year, end_year, active_year, status) VALUES (?, ?, ?, ?)",
		p.Period.StartYear, p.Period.EndYear, nullYear(p.Period.ActiveYear), status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert period %s: %w", p.Period.SpanLabel(), err)
	}
	return nil
}

func insertEvent(ctx context.Context, db execer, e EventRow) error {
	_, err := db.ExecContext(ctx, "INSERT INTO events (id, title) VALUES (?, ?)", e.ID, e.Title)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
	}
	return nil
}

func insertCredit(ctx context.Context, db execer, c CreditRow) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO credits (id, event_id, date, source, notes, amount) VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.EventID, c.Date, c.Source, nullString(c.Notes), c.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert credit %s: %w", c.ID, err)
	}
	return nil
}

func insertDebit(ctx context.Context, db execer, d DebitRow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO debits (id, event_id, date, category, notes, amount, quantity, unit_price, receipt_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.EventID, d.Date, d.Category, nullString(d.Notes), d.Amount.String(),
		d.Quantity.String(), d.UnitPrice.String(), nullString(d.ReceiptNumber),
	)
	if err != nil {
		return fmt.Errorf("failed to insert debit %s: %w", d.ID, err)
	}
	return nil
}

func insertFee(ctx context.Context, db execer, f FeeRow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO fees (id, title, amount, scope, org_id, status, start_year, end_year, active_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Title, f.Amount.String(), f.Scope, nullString(f.OrgID), f.Status,
		nullYear(f.Period.StartYear), nullYear(f.Period.EndYear), nullYear(f.Period.ActiveYear),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fee %s: %w", f.ID, err)
	}
	return nil
}

func insertPayment(ctx context.Context, db execer, p PaymentRow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments (id, fee_id, payer_id, payer_name, amount, paid_at, status, start_year, end_year, active_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FeeID, p.PayerID, nullString(p.PayerName), p.Amount.String(), nullString(p.PaidAt), p.Status,
		nullYear(p.Period.StartYear), nullYear(p.Period.EndYear), nullYear(p.Period.ActiveYear),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment %s: %w", p.ID, err)
	}
	return nil
}

func insertRoster(ctx context.Context, db execer, r RosterRow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO roster (fee_id, payer_id, name, year_level, course, start_year, end_year, active_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FeeID, r.PayerID, r.Name, nullString(r.YearLevel), nullString(r.Course),
		nullYear(r.Period.StartYear), nullYear(r.Period.EndYear), nullYear(r.Period.ActiveYear),
	)
	if err != nil {
		return fmt.Errorf("failed to insert roster entry %s: %w", r.PayerID, err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// ActivePeriod returns the first period with status 'active', or nil.
func (s *Store) ActivePeriod(ctx context.Context) (*PeriodRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p PeriodRow
	var active sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, start_year, end_year, active_year, status FROM periods WHERE status = 'active' ORDER BY id LIMIT 1",
	).Scan(&p.ID, &p.Period.StartYear, &p.Period.EndYear, &active, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Period.ActiveYear = int(active.Int64)
	return &p, nil
}

// ListPeriods returns all periods, newest span first.
func (s *Store) ListPeriods(ctx context.Context) ([]PeriodRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, start_year, end_year, active_year, status FROM periods ORDER BY start_year DESC, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PeriodRow
	for rows.Next() {
		var p PeriodRow
		var active sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Period.StartYear, &p.Period.EndYear, &active, &p.Status); err != nil {
			return nil, err
		}
		p.Period.ActiveYear = int(active.Int64)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetEvent returns an event, or nil when it does not exist.
func (s *Store) GetEvent(ctx context.Context, id generic.EventID) (*EventRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e EventRow
	err := s.db.QueryRowContext(ctx, "SELECT id, title FROM events WHERE id = ?", id).Scan(&e.ID, &e.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListCredits returns an event's credits in insertion order.
func (s *Store) ListCredits(ctx context.Context, eventID generic.EventID) ([]CreditRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_id, date, source, notes, amount FROM credits WHERE event_id = ? ORDER BY rowid",
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CreditRow
	for rows.Next() {
		var c CreditRow
		var notes sql.NullString
		var amount string
		if err := rows.Scan(&c.ID, &c.EventID, &c.Date, &c.Source, &notes, &amount); err != nil {
			return nil, err
		}
		c.Notes = notes.String
		c.Amount = generic.MustParseDecimal(amount)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDebits returns an event's debits in insertion order.
func (s *Store) ListDebits(ctx context.Context, eventID generic.EventID) ([]DebitRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, date, category, notes, amount, quantity, unit_price, receipt_number
		FROM debits WHERE event_id = ? ORDER BY rowid`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DebitRow
	for rows.Next() {
		var d DebitRow
		var notes, qty, price, receipt sql.NullString
		var amount string
		if err := rows.Scan(&d.ID, &d.EventID, &d.Date, &d.Category, &notes, &amount, &qty, &price, &receipt); err != nil {
			return nil, err
		}
		d.Notes = notes.String
		d.Amount = generic.MustParseDecimal(amount)
		d.Quantity = generic.MustParseDecimal(qty.String)
		d.UnitPrice = generic.MustParseDecimal(price.String)
		d.ReceiptNumber = receipt.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetFee returns a fee, or nil when it does not exist.
func (s *Store) GetFee(ctx context.Context, id generic.FeeID) (*FeeRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f FeeRow
	var amount string
	var org sql.NullString
	var y years
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, amount, scope, org_id, status, start_year, end_year, active_year FROM fees WHERE id = ?",
		id,
	).Scan(&f.ID, &f.Title, &amount, &f.Scope, &org, &f.Status, &y.start, &y.end, &y.active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.Amount = generic.MustParseDecimal(amount)
	f.OrgID = org.String
	f.Period = y.period()
	return &f, nil
}

// ListPayments returns a fee's payments matching filter.
func (s *Store) ListPayments(ctx context.Context, feeID generic.FeeID, filter academic.AcademicPeriod) ([]PaymentRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := periodWhere(filter)
	query := `
		SELECT id, fee_id, payer_id, payer_name, amount, paid_at, status, start_year, end_year, active_year
		FROM payments WHERE fee_id = ?` + where + ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, append([]any{feeID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PaymentRow{}
	for rows.Next() {
		var p PaymentRow
		var name, paidAt sql.NullString
		var amount string
		var y years
		if err := rows.Scan(&p.ID, &p.FeeID, &p.PayerID, &name, &amount, &paidAt, &p.Status, &y.start, &y.end, &y.active); err != nil {
			return nil, err
		}
		p.PayerName = name.String
		p.Amount = generic.MustParseDecimal(amount)
		p.PaidAt = paidAt.String
		p.Period = y.period()
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRoster returns a fee's roster matching filter.
func (s *Store) ListRoster(ctx context.Context, feeID generic.FeeID, filter academic.AcademicPeriod) ([]RosterRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := periodWhere(filter)
	query := `
		SELECT fee_id, payer_id, name, year_level, course, start_year, end_year, active_year
		FROM roster WHERE fee_id = ?` + where + ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, append([]any{feeID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RosterRow{}
	for rows.Next() {
		var r RosterRow
		var level, course sql.NullString
		var y years
		if err := rows.Scan(&r.FeeID, &r.PayerID, &r.Name, &level, &course, &y.start, &y.end, &y.active); err != nil {
			return nil, err
		}
		r.YearLevel = level.String
		r.Course = course.String
		r.Period = y.period()
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"roster", "payments", "fees", "debits", "credits", "events", "periods"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func periodWhere(filter academic.AcademicPeriod) (string, []any) {
	var clauses []string
	var args []any
	if filter.StartYear != 0 {
		clauses = append(clauses, "start_year = ?")
		args = append(args, filter.StartYear)
	}
	if filter.EndYear != 0 {
		clauses = append(clauses, "end_year = ?")
		args = append(args, filter.EndYear)
	}
	if filter.ActiveYear != 0 {
		clauses = append(clauses, "active_year = ?")
		args = append(args, filter.ActiveYear)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

type years struct {
	start, end, active sql.NullInt64
}

func (y years) period() academic.AcademicPeriod {
	return academic.AcademicPeriod{
		StartYear:  int(y.start.Int64),
		EndYear:    int(y.end.Int64),
		ActiveYear: int(y.active.Int64),
	}
}

func nullYear(y int) sql.NullInt64 {
	if y == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(y), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
