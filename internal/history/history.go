// Package history stores inspected events in ClickHouse.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ethpandaops/tracker-probe/internal/config"
	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/golang-migrate/migrate/v4"
	chmigrate "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var errHistoryDisabled = errors.New("clickhouse history is not configured")

const (
	migrationsTable = "schema_migrations"
	pingTimeout     = 5 * time.Second
)

// Store writes run results to ClickHouse and reads them back.
type Store interface {
	Start(ctx context.Context) error
	Stop() error
	RecordRun(ctx context.Context, summary *results.RunSummary) error
	RecentRuns(ctx context.Context, limit int) ([]RunStat, error)
}

// RunStat is the per-run aggregate returned by RecentRuns.
type RunStat struct {
	RunID     string    `ch:"run_id"`
	Site      string    `ch:"site"`
	Category  string    `ch:"category"`
	StartedAt time.Time `ch:"started"`
	Total     uint64    `ch:"total"`
	Passed    uint64    `ch:"passed"`
}

// Rate returns the pass percentage of the run.
func (r RunStat) Rate() float64 {
	return results.Rate(int(r.Passed), int(r.Total))
}

type eventRow struct {
	RunID         string    `ch:"run_id"`
	Site          string    `ch:"site"`
	Category      string    `ch:"category"`
	Sport         string    `ch:"sport"`
	TestName      string    `ch:"test_name"`
	RunStartedAt  time.Time `ch:"run_started_at"`
	Event         string    `ch:"event"`
	TimeWindow    string    `ch:"time_window"`
	Competition   string    `ch:"competition"`
	Outcome       string    `ch:"outcome"`
	FailureReason *string   `ch:"failure_reason"`
	URL           string    `ch:"url"`
	WidgetSrc     string    `ch:"widget_src"`
	Attempts      uint16    `ch:"attempts"`
	DurationMS    uint32    `ch:"duration_ms"`
	CheckedAt     time.Time `ch:"checked_at"`
}

type errorRow struct {
	RunID        string    `ch:"run_id"`
	Site         string    `ch:"site"`
	Category     string    `ch:"category"`
	RunStartedAt time.Time `ch:"run_started_at"`
	Message      string    `ch:"message"`
}

type store struct {
	log      logrus.FieldLogger
	options  *clickhouse.Options
	database string
	guard    *hostGuard
	conn     driver.Conn
}

// NewStore creates a store for the ClickHouse settings in cfg. Nothing is
// dialled until Start.
func NewStore(log logrus.FieldLogger, cfg *config.AppConfig) (Store, error) {
	if !cfg.HistoryEnabled() {
		return nil, errHistoryDisabled
	}

	log = log.WithField("component", "history")

	return &store{
		log:      log,
		options:  connOptions(cfg),
		database: cfg.ClickhouseDatabase,
		guard:    &hostGuard{allowed: cfg.ClickhouseAllowedHosts, log: log},
	}, nil
}

func connOptions(cfg *config.AppConfig) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.ClickhouseHost, cfg.ClickhouseNativePort)},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    2,
		MaxIdleConns:    2,
		ConnMaxLifetime: 10 * time.Minute,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}
}

// Start connects, creates the database if needed and applies migrations.
func (s *store) Start(ctx context.Context) error {
	bootstrap, err := clickhouse.Open(s.options)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := bootstrap.Ping(pingCtx); err != nil {
		_ = bootstrap.Close()
		return fmt.Errorf("pinging clickhouse: %w", err)
	}

	if err := s.guard.check(ctx, bootstrap); err != nil {
		_ = bootstrap.Close()
		return err
	}

	if err := bootstrap.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", s.database)); err != nil {
		_ = bootstrap.Close()
		return fmt.Errorf("creating database %s: %w", s.database, err)
	}

	_ = bootstrap.Close()

	opts := *s.options
	opts.Auth.Database = s.database

	if err := s.migrate(ctx, clickhouse.OpenDB(&opts)); err != nil {
		return err
	}

	conn, err := clickhouse.Open(&opts)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}

	s.conn = conn

	s.log.WithField("database", s.database).Debug("History store ready")

	return nil
}

func (s *store) migrate(ctx context.Context, db *sql.DB) error {
	defer func() { _ = db.Close() }()

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("creating source driver: %w", err)
	}

	target, err := chmigrate.WithInstance(db, &chmigrate.Config{
		DatabaseName:          s.database,
		MigrationsTable:       migrationsTable,
		MultiStatementEnabled: true,
		MultiStatementMaxSize: 1024 * 1024,
	})
	if err != nil {
		return fmt.Errorf("creating clickhouse driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, s.database, target)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	done := make(chan error, 1)

	go func() {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			done <- fmt.Errorf("running migrations: %w", err)
			return
		}

		done <- nil
	}()

	select {
	case <-ctx.Done():
		m.GracefulStop <- true
		return fmt.Errorf("migration canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func (s *store) Stop() error {
	if s.conn == nil {
		return nil
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}

	return nil
}

// RecordRun inserts every event and run error of the summary.
func (s *store) RecordRun(ctx context.Context, summary *results.RunSummary) error {
	if s.conn == nil {
		return errHistoryDisabled
	}

	events, errs := rowsFor(summary)

	if len(events) > 0 {
		if err := s.insert(ctx, "event_checks", len(events), func(b driver.Batch) error {
			for i := range events {
				if err := b.AppendStruct(&events[i]); err != nil {
					return err
				}
			}

			return nil
		}); err != nil {
			return err
		}
	}

	if len(errs) > 0 {
		if err := s.insert(ctx, "run_errors", len(errs), func(b driver.Batch) error {
			for i := range errs {
				if err := b.AppendStruct(&errs[i]); err != nil {
					return err
				}
			}

			return nil
		}); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"run_id":   summary.RunID,
		"events":   len(events),
		"category": summary.Category,
	}).Debug("Recorded run history")

	return nil
}

func (s *store) insert(ctx context.Context, table string, rows int, fill func(driver.Batch) error) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("preparing %s batch: %w", table, err)
	}

	if err := fill(batch); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("appending to %s: %w", table, err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending %d rows to %s: %w", rows, table, err)
	}

	return nil
}

const recentRunsQuery = `
SELECT
    run_id,
    any(site) AS site,
    any(category) AS category,
    min(run_started_at) AS started,
    count() AS total,
    countIf(outcome = 'PASS') AS passed
FROM event_checks
GROUP BY run_id
ORDER BY started DESC
LIMIT ?`

// RecentRuns returns the newest runs first.
func (s *store) RecentRuns(ctx context.Context, limit int) ([]RunStat, error) {
	if s.conn == nil {
		return nil, errHistoryDisabled
	}

	var stats []RunStat
	if err := s.conn.Select(ctx, &stats, recentRunsQuery, limit); err != nil {
		return nil, fmt.Errorf("querying recent runs: %w", err)
	}

	return stats, nil
}

func rowsFor(s *results.RunSummary) ([]eventRow, []errorRow) {
	events := make([]eventRow, 0, len(s.Events))

	for _, e := range s.Events {
		events = append(events, eventRow{
			RunID:         s.RunID,
			Site:          s.Site,
			Category:      string(s.Category),
			Sport:         s.Sport,
			TestName:      s.TestName,
			RunStartedAt:  s.StartedAt.UTC(),
			Event:         e.Title,
			TimeWindow:    e.TimeWindow,
			Competition:   e.Competition,
			Outcome:       string(e.Outcome),
			FailureReason: e.FailureReason,
			URL:           e.URL,
			WidgetSrc:     e.WidgetSrc,
			Attempts:      uint16(min(max(e.Attempts, 0), 1<<16-1)), //nolint:gosec // clamped
			DurationMS:    uint32(min(max(e.DurationMS, 0), 1<<32-1)), //nolint:gosec // clamped
			CheckedAt:     e.CheckedAt.UTC(),
		})
	}

	errs := make([]errorRow, 0, len(s.RunErrors))

	for _, msg := range s.RunErrors {
		errs = append(errs, errorRow{
			RunID:        s.RunID,
			Site:         s.Site,
			Category:     string(s.Category),
			RunStartedAt: s.StartedAt.UTC(),
			Message:      msg,
		})
	}

	return events, errs
}

var _ Store = (*store)(nil)
