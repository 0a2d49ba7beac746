/*
Package config loads the settings shared by ledgerctl and backendsim.

LAYERS (later wins):
  1. Defaults()
  2. YAML file, from the path argument or LEDGER_CONFIG
  3. .env file (godotenv; never overrides variables already set)
  4. LEDGER_* environment variables
  5. command-line flags, via BindFlags after Load

The result is validated with go-playground/validator before it is
returned, so callers can rely on every field being usable.

ENVIRONMENT:
  LEDGER_CONFIG            YAML path
  LEDGER_BACKEND_URL       backend base URL
  LEDGER_BACKEND_TIMEOUT   e.g. "10s"
  LEDGER_TIMEZONE          IANA zone used for KPI windows
  LEDGER_PAGE_SIZE         rows per table page
  LEDGER_LOG_LEVEL         debug | info | warn | error
  LEDGER_LOG_FORMAT        text | json
  LEDGER_METRICS_ADDR      listen address for /metrics, empty disables
  LEDGER_SIM_ADDR          backendsim listen address
  LEDGER_SIM_DB            backendsim sqlite path
  LEDGER_SIM_FIXTURES      backendsim YAML fixtures
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LEDGER_"

// Config is the full settings tree.
type Config struct {
	Backend  BackendConfig `yaml:"backend"`
	Timezone string        `yaml:"timezone" validate:"required,timezone"`
	PageSize int           `yaml:"page_size" validate:"min=1,max=100"`
	Log      LogConfig     `yaml:"log"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Sim      SimConfig     `yaml:"sim"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type SimConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	DB       string `yaml:"db" validate:"required"`
	Fixtures string `yaml:"fixtures"`
}

// Defaults returns a configuration that works against a local backendsim.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8090/api",
			Timeout: 10 * time.Second,
		},
		Timezone: "Asia/Manila",
		PageSize: 10,
		Log:      LogConfig{Level: "info", Format: "text"},
		Sim: SimConfig{
			Addr: "localhost:8090",
			DB:   ":memory:",
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load builds the configuration from defaults, the YAML file at path (or
// LEDGER_CONFIG when path is empty), envFile and the environment. Missing
// files named only by default are skipped; a YAML path that was given but
// cannot be read is an error.
func Load(path, envFile string) (Config, error) {
	cfg := Defaults()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Backend.BaseURL, "BACKEND_URL")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Metrics.Addr, "METRICS_ADDR")
	setString(&cfg.Sim.Addr, "SIM_ADDR")
	setString(&cfg.Sim.DB, "SIM_DB")
	setString(&cfg.Sim.Fixtures, "SIM_FIXTURES")

	if v, ok := lookup("BACKEND_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sBACKEND_TIMEOUT: %w", envPrefix, err)
		}
		cfg.Backend.Timeout = d
	}
	if v, ok := lookup("PAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sPAGE_SIZE: %w", envPrefix, err)
		}
		cfg.PageSize = n
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

// BindFlags registers flags on fs whose defaults are the loaded values,
// so parsing fs afterwards layers the command line on top.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Backend.BaseURL, "backend", c.Backend.BaseURL, "backend base URL")
	fs.DurationVar(&c.Backend.Timeout, "timeout", c.Backend.Timeout, "backend request timeout")
	fs.StringVar(&c.Timezone, "tz", c.Timezone, "timezone for KPI windows")
	fs.IntVar(&c.PageSize, "page-size", c.PageSize, "rows per table page")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "debug, info, warn or error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "text or json")
}

// =============================================================================
// VALIDATION
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field. Call it again after BindFlags and Parse.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Location returns the configured time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// NewLogger builds the process logger.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
