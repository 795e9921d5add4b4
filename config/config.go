/*
Package config loads engine configuration from the environment.

PURPOSE:
  Secrets and deployment-specific settings come from environment
  variables, with a .env file honored for local runs (the CI runner
  injects the same variables as secrets). Wiring choices - backend,
  port, serve mode - stay on command-line flags in cmd/attendance.

VARIABLES:
  SHEET_ID                      Spreadsheet id (sheets backend)
  GOOGLE_SERVICE_ACCOUNT_FILE   Path to service-account key JSON
  GOOGLE_SERVICE_ACCOUNT_JSON   The key JSON itself (CI secrets)
  TABLE_RAW_LOG / TABLE_LEDGER / TABLE_SCHEDULE / TABLE_PAY_SCHEDULE /
  TABLE_ROSTER                  Table name overrides
  WRITE_BATCH_SIZE              Max rows/cells per write call
  WRITE_MAX_ATTEMPTS            Tries per batch before it fails
  WRITES_PER_MINUTE             Provider write-quota budget
  SMTP_HOST / SMTP_PORT         Mail relay (default Gmail submission)
  GMAIL_USER / GMAIL_APP_PASSWORD
                                Report sender; unset disables mail
*/
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/tabular"
)

// Config is read once at startup and treated as immutable.
type Config struct {
	SheetID            string
	ServiceAccountFile string
	ServiceAccountJSON string

	Tables attendance.Tables

	BatchSize       int
	MaxAttempts     int
	WritesPerMinute int

	SMTPHost     string
	SMTPPort     int
	MailFrom     string
	MailPassword string
}

// Load reads the environment, honoring a .env file when present.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local dev.
	_ = godotenv.Load()

	cfg := &Config{
		SheetID:            os.Getenv("SHEET_ID"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		Tables:             attendance.DefaultTables(),
		SMTPHost:           envOr("SMTP_HOST", "smtp.gmail.com"),
		MailFrom:           os.Getenv("GMAIL_USER"),
		MailPassword:       os.Getenv("GMAIL_APP_PASSWORD"),
	}

	if v := os.Getenv("TABLE_RAW_LOG"); v != "" {
		cfg.Tables.RawLog = v
	}
	if v := os.Getenv("TABLE_LEDGER"); v != "" {
		cfg.Tables.Ledger = v
	}
	if v := os.Getenv("TABLE_SCHEDULE"); v != "" {
		cfg.Tables.Schedule = v
	}
	if v := os.Getenv("TABLE_PAY_SCHEDULE"); v != "" {
		cfg.Tables.PaySchedule = v
	}
	if v := os.Getenv("TABLE_ROSTER"); v != "" {
		cfg.Tables.Roster = v
	}

	var err error
	if cfg.BatchSize, err = envInt("WRITE_BATCH_SIZE", tabular.DefaultWriterConfig().MaxBatchSize); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = envInt("WRITE_MAX_ATTEMPTS", tabular.DefaultWriterConfig().MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.WritesPerMinute, err = envInt("WRITES_PER_MINUTE", 50); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireSheets validates the settings the sheets backend needs.
// Fail-fast: a misconfigured run must abort before any write.
func (c *Config) RequireSheets() error {
	if c.SheetID == "" {
		return fmt.Errorf("SHEET_ID is not set")
	}
	if c.ServiceAccountFile == "" && c.ServiceAccountJSON == "" {
		return fmt.Errorf("no Google credentials: set GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON")
	}
	return nil
}

// ServiceAccountKey returns the service-account key JSON bytes.
func (c *Config) ServiceAccountKey() ([]byte, error) {
	if c.ServiceAccountFile != "" {
		data, err := os.ReadFile(c.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("service account file: %w", err)
		}
		return data, nil
	}
	return []byte(c.ServiceAccountJSON), nil
}

// WriterConfig builds the batched-writer bounds.
func (c *Config) WriterConfig() tabular.WriterConfig {
	wc := tabular.DefaultWriterConfig()
	wc.MaxBatchSize = c.BatchSize
	wc.MaxAttempts = c.MaxAttempts
	return wc
}

// Limiter builds the write-quota limiter for the sheets backend.
func (c *Config) Limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(c.WritesPerMinute)/60.0), c.WritesPerMinute)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
