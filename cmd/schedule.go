package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/schedule"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	scheduleSite   string
	scheduleEngine string
	scheduleCI     bool
	scheduleDryRun bool
	scheduleShow   int
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run checks and mail reports at fixed times of day",
	Long: `Stay in the foreground and, at every time in PROBE_SCHEDULE (evaluated in
PROBE_TIMEZONE), run the categories in PROBE_SCHEDULE_CATEGORIES, render the
report and mail it when mail is configured. A failed run is logged and the
next slot is awaited.

Example:
  PROBE_SCHEDULE=17:05,20:30 tracker-probe schedule --site planetsportbet
  tracker-probe schedule --show 8`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}

		sched, err := schedule.New(a.cfg.ScheduleTimes, a.cfg.Timezone)
		if err != nil {
			return err
		}

		categories, err := parseCategories(a.cfg.ScheduleCategories)
		if err != nil {
			return err
		}

		if scheduleShow > 0 {
			a.formatter.PrintPhase("Upcoming runs")

			for _, at := range sched.Upcoming(time.Now(), scheduleShow) {
				fmt.Println(at.Format("Mon 02 Jan 2006 15:04 MST"))
			}

			return nil
		}

		job := func(ctx context.Context, at time.Time) error {
			a.log.WithFields(logrus.Fields{
				"slot":       at.Format("15:04"),
				"categories": categories,
			}).Info("Scheduled check starting")

			paths, err := a.runCategories(ctx, runOptions{
				site:       scheduleSite,
				categories: categories,
				engine:     scheduleEngine,
				ci:         scheduleCI,
			})
			if err != nil {
				return err
			}

			return a.generateReport(ctx, reportOptions{
				artifacts: paths,
				send:      a.cfg.MailEnabled() || scheduleDryRun,
				dryRun:    scheduleDryRun,
			})
		}

		err = schedule.NewRunner(a.log, sched, job, schedule.Options{}).Run(ctx)
		if errors.Is(err, context.Canceled) {
			a.log.Info("Scheduler stopped")
			return nil
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleSite, "site", "", "Catalog site to check (default first site)")
	scheduleCmd.Flags().StringVar(&scheduleEngine, "engine", "", "Browser engine (default from PROBE_ENGINE)")
	scheduleCmd.Flags().BoolVar(&scheduleCI, "ci", false, "Use the CI timing profile and time windows")
	scheduleCmd.Flags().BoolVar(&scheduleDryRun, "dry-run", false, "Log report mails instead of sending them")
	scheduleCmd.Flags().IntVar(&scheduleShow, "show", 0, "Print the next N scheduled times and exit")
}
