package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethpandaops/tracker-probe/internal/catalog"
	"github.com/ethpandaops/tracker-probe/internal/metrics"
	"github.com/ethpandaops/tracker-probe/internal/probe"
	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	runSite        string
	runEngine      string
	runSnapshotDir string
	runOut         string
	runCI          bool
	runReport      bool
	runSend        bool
	runDryRun      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [category,...]",
	Short: "Check the live trackers of a site's events",
	Long: `Open each category listing of a site, sample its events per time window and
check that every event detail page loads a live tracker widget from a trusted
host. Each category writes a JSON artifact to the output directory.

Categories are a comma-separated list; all categories of the site are run when
none are given.

Example:
  tracker-probe run NFL,Football --site planetsportbet
  tracker-probe run Cricket --ci --report --send`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}

		var names []string
		if len(args) == 1 {
			names = strings.Split(args[0], ",")
		}

		categories, err := parseCategories(names)
		if err != nil {
			return err
		}

		paths, err := a.runCategories(ctx, runOptions{
			site:        runSite,
			categories:  categories,
			engine:      runEngine,
			snapshotDir: runSnapshotDir,
			ci:          runCI,
			out:         runOut,
		})
		if err != nil {
			return err
		}

		if !runReport && !runSend {
			return nil
		}

		return a.generateReport(ctx, reportOptions{
			artifacts: paths,
			out:       runOut,
			send:      runSend,
			dryRun:    runDryRun,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSite, "site", "", "Catalog site to check (default first site)")
	runCmd.Flags().StringVar(&runEngine, "engine", "", "Browser engine: chromedp, chromium, firefox, webkit or snapshot (default from PROBE_ENGINE)")
	runCmd.Flags().StringVar(&runSnapshotDir, "snapshot-dir", "", "Directory of saved HTML pages for the snapshot engine")
	runCmd.Flags().StringVar(&runOut, "out", "", "Output directory (default from PROBE_OUTPUT_DIR)")
	runCmd.Flags().BoolVar(&runCI, "ci", false, "Use the CI timing profile and time windows")
	runCmd.Flags().BoolVar(&runReport, "report", false, "Render the HTML report after the run")
	runCmd.Flags().BoolVar(&runSend, "send", false, "Render and mail the report after the run")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Log the report mail instead of sending it")
}

// parseCategories parses category names, dropping blanks.
func parseCategories(names []string) ([]results.Category, error) {
	categories := make([]results.Category, 0, len(names))

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}

		c, err := results.ParseCategory(name)
		if err != nil {
			return nil, err
		}

		categories = append(categories, c)
	}

	return categories, nil
}

type runOptions struct {
	site        string
	categories  []results.Category
	engine      string
	snapshotDir string
	ci          bool
	out         string
}

// runCategories probes each category of a site in turn on one page and
// returns the artifact paths written. A category cut short by a page error
// still writes its partial artifact; cancellation stops the remaining ones.
func (a *app) runCategories(ctx context.Context, opts runOptions) ([]string, error) {
	site, err := a.site(opts.site)
	if err != nil {
		return nil, err
	}

	if len(opts.categories) == 0 {
		opts.categories = site.CategoryNames()
	}

	targets := make([]*catalog.Category, 0, len(opts.categories))

	for _, name := range opts.categories {
		c, err := site.Category(name)
		if err != nil {
			return nil, err
		}

		targets = append(targets, c)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s has no categories", catalog.ErrUnknownCategory, site.Name)
	}

	if opts.out == "" {
		opts.out = a.cfg.OutputDir
	}

	ci := opts.ci || a.cfg.CI
	timing := probe.Profile(ci).WithOverrides(
		a.cfg.PollAttempts,
		a.cfg.PollInterval,
		a.cfg.MaxEvents,
		a.cfg.MaxEventsPerWindow,
	)

	log := a.log.WithField("site", site.Name)

	page, err := a.openPage(ctx, opts.engine, opts.snapshotDir)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := page.Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser")
		}
	}()

	store := a.openHistory(ctx)
	if store != nil {
		defer func() { _ = store.Stop() }()
	}

	collector := metrics.NewCollector(a.log)

	prober := probe.New(a.log, page, probe.Options{
		Site:          site,
		Timing:        timing,
		CI:            ci,
		Limiter:       a.limiter(),
		ScreenshotDir: filepath.Join(opts.out, "screenshots"),
	})

	a.formatter.PrintPhase(fmt.Sprintf("Checking %s", site.Label()))

	paths := make([]string, 0, len(targets))

	var runErr error

	for _, c := range targets {
		summary, err := prober.Run(ctx, c)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.formatter.PrintError(fmt.Sprintf("%s run cut short", c.Name), err)
		}

		path, werr := results.WriteArtifact(opts.out, summary)
		if werr != nil {
			return paths, werr
		}

		paths = append(paths, path)

		log.WithFields(logrus.Fields{
			"category": c.Name,
			"artifact": path,
		}).Info("Wrote run artifact")

		a.formatter.PrintRun(summary)
		collector.RecordRun(summary)

		if store != nil {
			if herr := store.RecordRun(ctx, summary); herr != nil {
				log.WithError(herr).Warn("Failed to record run history")
			}
		}

		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
	}

	if a.cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	return paths, runErr
}
