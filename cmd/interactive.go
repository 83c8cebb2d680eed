package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/tracker-probe/internal/browser"
	"github.com/ethpandaops/tracker-probe/internal/interactive"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive mode",
	Long:  `Launches the interactive menu for choosing a site, its categories and what to do with the results.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runInteractive()
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive() error {
	fmt.Println("Tracker Probe - Interactive Mode")
	fmt.Println("================================")
	fmt.Println()

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}

	for {
		options := []interactive.MenuOption{
			{
				Name:        "🏃 Run Checks",
				Description: "Check the live trackers of a site's categories",
				Action:      func() error { return interactiveRun(ctx, a) },
			},
			{
				Name:        "📊 Build Report",
				Description: "Aggregate artifacts in the output directory",
				Action: func() error {
					send := a.cfg.MailEnabled() && interactive.Confirm("Mail the report?")
					showResult(a.generateReport(ctx, reportOptions{send: send}))
					return nil
				},
			},
			{
				Name:        "🔗 Check Links",
				Description: "Check navigation and footer links of a site",
				Action:      func() error { return interactiveLinks(a) },
			},
			{
				Name:        "📋 Show Config",
				Description: "Display current environment configuration",
				Action: func() error {
					showResult(showConfig())
					return nil
				},
			},
		}

		if err := interactive.ShowMainMenu(options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return nil
			}

			return err
		}

		if ctx.Err() != nil {
			return nil
		}

		fmt.Println()
	}
}

// showResult prints err, if any, and waits for Enter.
func showResult(err error) {
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
	}

	interactive.PauseForEnter()
}

func interactiveRun(ctx context.Context, a *app) error {
	site, err := interactive.SelectOne("Site:", a.catalog.SiteNames())
	if err != nil {
		return nil
	}

	s, err := a.site(site)
	if err != nil {
		showResult(err)
		return nil
	}

	names := make([]string, 0, len(s.Categories))
	for _, c := range s.CategoryNames() {
		names = append(names, string(c))
	}

	if len(names) == 0 {
		showResult(fmt.Errorf("%s has no categories, use Check Links", s.Label()))
		return nil
	}

	picked, err := interactive.SelectMany("Categories:", names)
	if err != nil {
		if errors.Is(err, interactive.ErrNothingSelected) {
			showResult(err)
		}

		return nil
	}

	categories, err := parseCategories(picked)
	if err != nil {
		showResult(err)
		return nil
	}

	engine, err := interactive.SelectOne("Browser engine:", []string{
		browser.EngineChromedp,
		browser.EngineChromium,
		browser.EngineFirefox,
		browser.EngineWebKit,
	})
	if err != nil {
		return nil
	}

	ci := interactive.Confirm("Use the CI profile?")

	paths, err := a.runCategories(ctx, runOptions{
		site:       site,
		categories: categories,
		engine:     engine,
		ci:         ci,
	})
	if err != nil {
		showResult(err)
		return nil
	}

	if interactive.Confirm("Build the report now?") {
		send := a.cfg.MailEnabled() && interactive.Confirm("Mail the report?")
		showResult(a.generateReport(ctx, reportOptions{artifacts: paths, send: send}))

		return nil
	}

	interactive.PauseForEnter()

	return nil
}

func interactiveLinks(a *app) error {
	site, err := interactive.SelectOne("Site:", a.catalog.SiteNames())
	if err != nil {
		return nil
	}

	linksSite = site
	showResult(linksCmd.RunE(linksCmd, nil))

	return nil
}
