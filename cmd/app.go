package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/catalog"
	"github.com/ethpandaops/tracker-probe/internal/config"
	"github.com/ethpandaops/tracker-probe/internal/history"
	"github.com/ethpandaops/tracker-probe/internal/output"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// app bundles what every command needs after startup.
type app struct {
	log       *logrus.Logger
	cfg       *config.AppConfig
	catalog   *catalog.Catalog
	formatter output.Formatter
}

// newApp loads configuration and the site catalog. Catalog validation errors
// stop the command before any browser is started.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(Logger, cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	return &app{
		log:       Logger,
		cfg:       cfg,
		catalog:   cat,
		formatter: output.NewFormatter(os.Stdout, verbose),
	}, nil
}

// site returns the named site, or the first catalog site when name is empty.
func (a *app) site(name string) (*catalog.Site, error) {
	if name == "" {
		if len(a.catalog.Sites) == 0 {
			return nil, fmt.Errorf("%w: catalog has no sites", catalog.ErrUnknownSite)
		}

		return a.catalog.Sites[0], nil
	}

	return a.catalog.Site(name)
}

// limiter paces navigations at the configured rate.
func (a *app) limiter() *rate.Limiter {
	limit := rate.Limit(a.cfg.NavigationRate)
	if a.cfg.NavigationRate <= 0 {
		limit = rate.Inf
	}

	return rate.NewLimiter(limit, max(a.cfg.NavigationBurst, 1))
}

// openPage starts the browser for engine, falling back to the configured one.
func (a *app) openPage(ctx context.Context, engine, snapshotDir string) (browser.Page, error) {
	if engine == "" {
		engine = a.cfg.Engine
	}

	page, err := browser.Open(ctx, a.log, browser.Options{
		Engine:      engine,
		Headless:    a.cfg.Headless,
		ChromePath:  a.cfg.ChromePath,
		SnapshotDir: snapshotDir,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s browser: %w", engine, err)
	}

	return page, nil
}

// openHistory returns a started history store, or nil when history is not
// configured or unreachable. History never fails a run.
func (a *app) openHistory(ctx context.Context) history.Store {
	if !a.cfg.HistoryEnabled() {
		return nil
	}

	store, err := history.NewStore(a.log, a.cfg)
	if err != nil {
		a.log.WithError(err).Warn("History store unavailable")
		return nil
	}

	if err := store.Start(ctx); err != nil {
		a.log.WithError(err).Warn("History store unavailable")
		return nil
	}

	return store
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
