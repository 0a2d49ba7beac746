package backendsim

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/backendsim/store"
	"github.com/orgdash/ledger-engine/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// FIXTURES - YAML seed data
// =============================================================================

// Fixtures is the YAML document the simulator is seeded from. Amounts are
// strings so they survive YAML untouched.
type Fixtures struct {
	Quirks  Quirks          `yaml:"quirks"`
	Periods []PeriodFixture `yaml:"periods" validate:"dive"`
	Events  []EventFixture  `yaml:"events" validate:"dive"`
	Fees    []FeeFixture    `yaml:"fees" validate:"dive"`
}

// Quirks switch on the response habits of older backend deployments.
type Quirks struct {
	// Envelope wraps every answer in {"success": true, "data": ...}.
	Envelope bool `yaml:"envelope"`
	// LegacyFields emits the old field spellings and nested period objects.
	LegacyFields bool `yaml:"legacy_fields"`
	// ActiveWithoutYear omits the active year from /academic-periods/active.
	ActiveWithoutYear bool `yaml:"active_without_year"`
	// EmptyOnActiveYear answers payments and roster queries carrying
	// active_year with no rows.
	EmptyOnActiveYear bool `yaml:"empty_on_active_year"`
}

type PeriodFixture struct {
	StartYear  int    `yaml:"start_year" validate:"required,gte=1900"`
	EndYear    int    `yaml:"end_year" validate:"required,gtfield=StartYear"`
	ActiveYear int    `yaml:"active_year" validate:"omitempty,gte=1900"`
	Status     string `yaml:"status" validate:"omitempty,oneof=active inactive archived"`
}

type EventFixture struct {
	ID      string          `yaml:"id" validate:"required"`
	Title   string          `yaml:"title" validate:"required"`
	Credits []CreditFixture `yaml:"credits" validate:"dive"`
	Debits  []DebitFixture  `yaml:"debits" validate:"dive"`
}

type CreditFixture struct {
	ID     string `yaml:"id"`
	Date   string `yaml:"date" validate:"required"`
	Source string `yaml:"source" validate:"required"`
	Notes  string `yaml:"notes"`
	Amount string `yaml:"amount" validate:"required,numeric"`
}

type DebitFixture struct {
	ID            string `yaml:"id"`
	Date          string `yaml:"date" validate:"required"`
	Category      string `yaml:"category" validate:"required"`
	Notes         string `yaml:"notes"`
	Amount        string `yaml:"amount" validate:"required,numeric"`
	Quantity      string `yaml:"quantity" validate:"omitempty,numeric"`
	UnitPrice     string `yaml:"unit_price" validate:"omitempty,numeric"`
	ReceiptNumber string `yaml:"receipt_number"`
}

// YearsFixture pins a row to a period. Left empty, a payment or roster
// row inherits its fee's period; Unknown stores no years at all.
type YearsFixture struct {
	StartYear  int  `yaml:"start_year"`
	EndYear    int  `yaml:"end_year"`
	ActiveYear int  `yaml:"active_year"`
	Unknown    bool `yaml:"unknown"`
}

func (y YearsFixture) resolve(inherit academic.AcademicPeriod) academic.AcademicPeriod {
	switch {
	case y.Unknown:
		return academic.AcademicPeriod{}
	case y.StartYear == 0 && y.EndYear == 0 && y.ActiveYear == 0:
		return inherit
	default:
		return academic.New(y.StartYear, y.EndYear, y.ActiveYear)
	}
}

type FeeFixture struct {
	ID         string           `yaml:"id" validate:"required"`
	Title      string           `yaml:"title" validate:"required"`
	Amount     string           `yaml:"amount" validate:"required,numeric"`
	Scope      string           `yaml:"scope" validate:"omitempty,oneof=general organization"`
	OrgID      string           `yaml:"org_id"`
	Status     string           `yaml:"status" validate:"omitempty,oneof=draft submitted approved declined"`
	StartYear  int              `yaml:"start_year"`
	EndYear    int              `yaml:"end_year"`
	ActiveYear int              `yaml:"active_year"`
	Payments   []PaymentFixture `yaml:"payments" validate:"dive"`
	Roster     []RosterFixture  `yaml:"roster" validate:"dive"`
}

type PaymentFixture struct {
	YearsFixture `yaml:",inline"`
	ID           string `yaml:"id"`
	PayerID      string `yaml:"payer_id" validate:"required"`
	PayerName    string `yaml:"payer_name"`
	Amount       string `yaml:"amount" validate:"required,numeric"`
	PaidAt       string `yaml:"paid_at"`
	Status       string `yaml:"status" validate:"omitempty,oneof=confirmed void recorded"`
}

type RosterFixture struct {
	YearsFixture `yaml:",inline"`
	PayerID      string `yaml:"payer_id" validate:"required"`
	Name         string `yaml:"name" validate:"required"`
	YearLevel    string `yaml:"year_level"`
	Course       string `yaml:"course"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseFixtures decodes and validates a YAML fixtures document.
func ParseFixtures(data []byte) (Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixtures{}, fmt.Errorf("fixtures: parse: %w", err)
	}
	if err := validate.Struct(fx); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
			}
			return Fixtures{}, fmt.Errorf("fixtures: invalid: %s", strings.Join(msgs, "; "))
		}
		return Fixtures{}, fmt.Errorf("fixtures: invalid: %w", err)
	}
	return fx, nil
}

// LoadFixturesFile reads and parses path.
func LoadFixturesFile(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("fixtures: read %s: %w", path, err)
	}
	return ParseFixtures(data)
}

// Dataset flattens the fixtures into store rows, filling generated IDs
// and default statuses.
func (fx Fixtures) Dataset() store.Dataset {
	var d store.Dataset
	for _, p := range fx.Periods {
		d.Periods = append(d.Periods, store.PeriodRow{
			Period: academic.New(p.StartYear, p.EndYear, p.ActiveYear),
			Status: orDefault(p.Status, "inactive"),
		})
	}
	for _, e := range fx.Events {
		eid := generic.EventID(e.ID)
		d.Events = append(d.Events, store.EventRow{ID: eid, Title: e.Title})
		for _, c := range e.Credits {
			d.Credits = append(d.Credits, store.CreditRow{
				ID:      orNewID(c.ID),
				EventID: eid,
				Date:    c.Date,
				Source:  c.Source,
				Notes:   c.Notes,
				Amount:  generic.MustParseDecimal(c.Amount),
			})
		}
		for _, db := range e.Debits {
			d.Debits = append(d.Debits, store.DebitRow{
				ID:            orNewID(db.ID),
				EventID:       eid,
				Date:          db.Date,
				Category:      db.Category,
				Notes:         db.Notes,
				Amount:        generic.MustParseDecimal(db.Amount),
				Quantity:      generic.MustParseDecimal(db.Quantity),
				UnitPrice:     generic.MustParseDecimal(db.UnitPrice),
				ReceiptNumber: db.ReceiptNumber,
			})
		}
	}
	for _, f := range fx.Fees {
		fid := generic.FeeID(f.ID)
		period := academic.New(f.StartYear, f.EndYear, f.ActiveYear)
		d.Fees = append(d.Fees, store.FeeRow{
			ID:     fid,
			Title:  f.Title,
			Amount: generic.MustParseDecimal(f.Amount),
			Scope:  orDefault(f.Scope, "general"),
			OrgID:  f.OrgID,
			Status: orDefault(f.Status, "approved"),
			Period: period,
		})
		for _, p := range f.Payments {
			d.Payments = append(d.Payments, store.PaymentRow{
				ID:        orNewID(p.ID),
				FeeID:     fid,
				PayerID:   generic.PayerID(p.PayerID),
				PayerName: p.PayerName,
				Amount:    generic.MustParseDecimal(p.Amount),
				PaidAt:    p.PaidAt,
				Status:    orDefault(p.Status, "confirmed"),
				Period:    p.resolve(period),
			})
		}
		for _, r := range f.Roster {
			d.Roster = append(d.Roster, store.RosterRow{
				FeeID:     fid,
				PayerID:   generic.PayerID(r.PayerID),
				Name:      r.Name,
				YearLevel: r.YearLevel,
				Course:    r.Course,
				Period:    r.resolve(period),
			})
		}
	}
	return d
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
