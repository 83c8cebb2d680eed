// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var errInvalidTimezone = errors.New("invalid timezone")

// AppConfig holds the deployment configuration loaded from environment variables.
// Secrets (SMTP and ClickHouse credentials) are only ever read from here.
type AppConfig struct {
	CatalogPath string
	OutputDir   string
	Engine      string
	ChromePath  string
	Headless    bool
	CI          bool

	// Navigation pacing, in navigations per second.
	NavigationRate  float64
	NavigationBurst int

	// Optional overrides of the probe timing profile. Zero keeps the profile value.
	PollAttempts       int
	PollInterval       time.Duration
	MaxEvents          int
	MaxEventsPerWindow int

	Timezone *time.Location

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	MailFrom      string
	MailTo        []string
	SubjectPrefix string

	MetricsTextfile string

	ClickhouseHost       string
	ClickhouseNativePort int
	ClickhouseUsername   string
	ClickhousePassword   string
	ClickhouseDatabase   string

	// Server hostnames history may be written to. Empty allows any.
	ClickhouseAllowedHosts []string

	ScheduleTimes      []string
	ScheduleCategories []string
}

// Load reads the env file, when present, then builds the configuration from
// the environment. An empty envFile means ".env", which may be missing.
func Load(envFile string) (*AppConfig, error) {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		// It's okay if the default file doesn't exist
		if envFile != ".env" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file '%s': %w", envFile, err)
		}
	}

	return FromEnv()
}

// FromEnv builds the configuration from the current process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		CatalogPath:        getEnv("PROBE_CATALOG", DefaultCatalogPath),
		OutputDir:          getEnv("PROBE_OUTPUT_DIR", DefaultOutputDir),
		Engine:             getEnv("PROBE_ENGINE", DefaultEngine),
		ChromePath:         getEnv("PROBE_CHROME_PATH", ""),
		CI:                 os.Getenv("CI") != "",
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		MailFrom:           getEnv("MAIL_FROM", ""),
		MailTo:             parseList(getEnv("MAIL_TO", "")),
		SubjectPrefix:      getEnv("MAIL_SUBJECT_PREFIX", DefaultSubjectPrefix),
		MetricsTextfile:    getEnv("PROBE_METRICS_TEXTFILE", ""),
		ClickhouseHost:     getEnv("CLICKHOUSE_HOST", ""),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseDatabase: getEnv("CLICKHOUSE_DATABASE", DefaultHistoryDatabase),
		ScheduleTimes:      parseList(getEnv("PROBE_SCHEDULE", DefaultSchedule)),
		ScheduleCategories: parseList(getEnv("PROBE_SCHEDULE_CATEGORIES", DefaultScheduleCategories)),
	}

	cfg.ClickhouseAllowedHosts = parseList(getEnv("CLICKHOUSE_ALLOWED_HOSTS", ""))

	var err error

	if cfg.Headless, err = strconv.ParseBool(getEnv("PROBE_HEADLESS", "true")); err != nil {
		return nil, fmt.Errorf("invalid PROBE_HEADLESS: %w", err)
	}

	if cfg.NavigationRate, err = strconv.ParseFloat(getEnv("PROBE_NAVIGATION_RATE", "1"), 64); err != nil {
		return nil, fmt.Errorf("invalid PROBE_NAVIGATION_RATE: %w", err)
	}

	if cfg.NavigationBurst, err = strconv.Atoi(getEnv("PROBE_NAVIGATION_BURST", "2")); err != nil {
		return nil, fmt.Errorf("invalid PROBE_NAVIGATION_BURST: %w", err)
	}

	if cfg.PollAttempts, err = strconv.Atoi(getEnv("PROBE_POLL_ATTEMPTS", "0")); err != nil {
		return nil, fmt.Errorf("invalid PROBE_POLL_ATTEMPTS: %w", err)
	}

	if cfg.PollInterval, err = time.ParseDuration(getEnv("PROBE_POLL_INTERVAL", "0s")); err != nil {
		return nil, fmt.Errorf("invalid PROBE_POLL_INTERVAL: %w", err)
	}

	if cfg.MaxEvents, err = strconv.Atoi(getEnv("PROBE_MAX_EVENTS", "0")); err != nil {
		return nil, fmt.Errorf("invalid PROBE_MAX_EVENTS: %w", err)
	}

	if cfg.MaxEventsPerWindow, err = strconv.Atoi(getEnv("PROBE_MAX_EVENTS_PER_WINDOW", "0")); err != nil {
		return nil, fmt.Errorf("invalid PROBE_MAX_EVENTS_PER_WINDOW: %w", err)
	}

	if cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	if cfg.ClickhouseNativePort, err = strconv.Atoi(getEnv("CLICKHOUSE_NATIVE_PORT", "9000")); err != nil {
		return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}

	tz := getEnv("PROBE_TIMEZONE", DefaultTimezone)
	if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("%w %q: %w", errInvalidTimezone, tz, err)
	}

	return cfg, nil
}

// MailEnabled reports whether enough SMTP settings are present to send reports.
func (c *AppConfig) MailEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != "" && len(c.MailTo) > 0
}

// HistoryEnabled reports whether run history should be written to ClickHouse.
func (c *AppConfig) HistoryEnabled() bool {
	return c.ClickhouseHost != ""
}

func (c *AppConfig) String() string {
	smtpPasswordDisplay := "(not set)"
	if c.SMTPPassword != "" {
		smtpPasswordDisplay = "********"
	}

	historyDisplay := "(disabled)"
	if c.HistoryEnabled() {
		historyDisplay = fmt.Sprintf("%s:%d/%s", c.ClickhouseHost, c.ClickhouseNativePort, c.ClickhouseDatabase)
	}

	mailDisplay := "(disabled)"
	if c.MailEnabled() {
		mailDisplay = fmt.Sprintf("%s -> %s via %s:%d", c.MailFrom, strings.Join(c.MailTo, ", "), c.SMTPHost, c.SMTPPort)
	}

	metricsDisplay := c.MetricsTextfile
	if metricsDisplay == "" {
		metricsDisplay = "(disabled)"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Catalog:          %s
Output Dir:       %s
Engine:           %s
Headless:         %t
CI Profile:       %t
Navigation Rate:  %.2f/s (burst %d)
Timezone:         %s
Mail:             %s
SMTP Username:    %s
SMTP Password:    %s
Metrics Textfile: %s
History:          %s
Schedule:         %s (%s)`,
		c.CatalogPath,
		c.OutputDir,
		c.Engine,
		c.Headless,
		c.CI,
		c.NavigationRate,
		c.NavigationBurst,
		c.Timezone,
		mailDisplay,
		c.SMTPUsername,
		smtpPasswordDisplay,
		metricsDisplay,
		historyDisplay,
		strings.Join(c.ScheduleTimes, ", "),
		strings.Join(c.ScheduleCategories, ", "),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseList parses a comma-separated list, dropping empty entries.
func parseList(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	values := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}

	return values
}
