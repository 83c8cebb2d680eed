package cmd

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/tracker-probe/internal/linkcheck"
	"github.com/spf13/cobra"
)

var errBrokenLinks = errors.New("broken internal links found")

var (
	linksSite        string
	linksPages       []string
	linksEngine      string
	linksSnapshotDir string
	linksWorkers     int
)

// linksCmd represents the links command
var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Check navigation and footer links of a site",
	Long: `Open the configured pages of a site, collect the links matched by its link
locators and request each one without following redirects. Internal links
answering 400 or above fail the command; external ones are reported as
warnings.

Example:
  tracker-probe links --site teamtalk
  tracker-probe links --site planetsportbet --page https://planetsportbet.com/sports`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}

		site, err := a.site(linksSite)
		if err != nil {
			return err
		}

		page, err := a.openPage(ctx, linksEngine, linksSnapshotDir)
		if err != nil {
			return err
		}

		defer func() { _ = page.Close() }()

		checker := linkcheck.New(a.log, linkcheck.Options{
			Limiter: a.limiter(),
			Workers: linksWorkers,
		})

		pages := linksPages
		if len(pages) == 0 {
			pages = site.Links.Pages
		}

		a.formatter.PrintPhase(fmt.Sprintf("Checking links on %s", site.Label()))

		rep, err := checker.Run(ctx, page, site, pages)
		if err != nil {
			return err
		}

		a.formatter.PrintLinks(rep)

		if failures := rep.Failures(); len(failures) > 0 {
			return fmt.Errorf("%w: %d", errBrokenLinks, len(failures))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(linksCmd)

	linksCmd.Flags().StringVar(&linksSite, "site", "", "Catalog site to check (default first site)")
	linksCmd.Flags().StringSliceVar(&linksPages, "page", nil, "Page URL to check, repeatable (default the site's link pages)")
	linksCmd.Flags().StringVar(&linksEngine, "engine", "", "Browser engine (default from PROBE_ENGINE)")
	linksCmd.Flags().StringVar(&linksSnapshotDir, "snapshot-dir", "", "Directory of saved HTML pages for the snapshot engine")
	linksCmd.Flags().IntVar(&linksWorkers, "workers", 8, "Concurrent link requests")
}
