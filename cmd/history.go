package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ethpandaops/tracker-probe/internal/output"
	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("history is not configured (set CLICKHOUSE_HOST)")

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs recorded in ClickHouse",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}

		if !a.cfg.HistoryEnabled() {
			return errHistoryDisabled
		}

		store := a.openHistory(ctx)
		if store == nil {
			return fmt.Errorf("connecting to %s: %w", a.cfg.ClickhouseHost, errHistoryDisabled)
		}

		defer func() { _ = store.Stop() }()

		runs, err := store.RecentRuns(ctx, historyLimit)
		if err != nil {
			return err
		}

		colors := output.NewColorHelper()
		rows := make([][]string, 0, len(runs))

		for _, r := range runs {
			rows = append(rows, []string{
				r.StartedAt.In(a.cfg.Timezone).Format("2006-01-02 15:04"),
				r.Site,
				r.Category,
				colors.FormatCount(int(r.Passed), int(r.Total)), //nolint:gosec // counts fit int
				strconv.FormatFloat(r.Rate(), 'f', 1, 64) + "%",
			})
		}

		output.WriteTable(os.Stdout, []string{"Started", "Site", "Category", "Passed", "Rate"}, rows, false)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
}
