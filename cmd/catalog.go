package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethpandaops/tracker-probe/internal/output"
	"github.com/spf13/cobra"
)

var catalogCI bool

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate and list the site catalog",
	Long:  `Loads the site catalog, failing on any validation error, and lists every site with its categories and time windows.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		rows := make([][]string, 0)

		for _, site := range a.catalog.Sites {
			if len(site.Categories) == 0 {
				rows = append(rows, []string{site.Label(), "-", "-", strings.Join(site.Links.Pages, "\n")})
				continue
			}

			for _, c := range site.Categories {
				rows = append(rows, []string{
					site.Label(),
					string(c.Name),
					strings.Join(c.TimeWindows(catalogCI), ", "),
					c.ListingURL,
				})
			}
		}

		fmt.Println()
		output.WriteTable(os.Stdout, []string{"Site", "Category", "Windows", "URL"}, rows, true)

		a.formatter.PrintSuccess(fmt.Sprintf("Catalog OK: %d sites", len(a.catalog.Sites)))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().BoolVar(&catalogCI, "ci", false, "Show the CI time windows")
}
