package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/config"
	"github.com/ethpandaops/tracker-probe/internal/mailer"
	"github.com/ethpandaops/tracker-probe/internal/report"
	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/spf13/cobra"
)

var (
	errMailDisabled = errors.New("mail is not configured (set SMTP_HOST, MAIL_FROM and MAIL_TO)")
	errNoArtifacts  = errors.New("no artifacts found")
)

var (
	reportFramework string
	reportHTML      string
	reportSummary   string
	reportOut       string
	reportTitle     string
	reportSend      bool
	reportDryRun    bool
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [artifact...]",
	Short: "Aggregate run artifacts into an HTML report",
	Long: `Load run artifacts, aggregate pass rates by category, time window and
competition, and render an HTML report plus a JSON debug summary. Unreadable
artifacts are skipped. With no arguments every artifact in the output
directory is used.

Example:
  tracker-probe report
  tracker-probe report results/*-results.json --framework-results results.json --send`,
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}

		return a.generateReport(ctx, reportOptions{
			artifacts: args,
			framework: reportFramework,
			htmlPath:  reportHTML,
			summary:   reportSummary,
			out:       reportOut,
			title:     reportTitle,
			send:      reportSend,
			dryRun:    reportDryRun,
		})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFramework, "framework-results", "", "Playwright JSON reporter output to include")
	reportCmd.Flags().StringVar(&reportHTML, "html", "", "HTML report path (default <out>/"+config.ReportFileName+")")
	reportCmd.Flags().StringVar(&reportSummary, "summary", "", "JSON summary path (default <out>/"+config.SummaryFileName+")")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output directory (default from PROBE_OUTPUT_DIR)")
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "Report title")
	reportCmd.Flags().BoolVar(&reportSend, "send", false, "Mail the report to MAIL_TO")
	reportCmd.Flags().BoolVar(&reportDryRun, "dry-run", false, "Log the report mail instead of sending it")
}

type reportOptions struct {
	artifacts []string
	framework string
	htmlPath  string
	summary   string
	out       string
	title     string
	send      bool
	dryRun    bool
}

// generateReport loads artifacts, writes the report files and optionally
// mails the HTML. A failed delivery is returned wrapping mailer.ErrDelivery.
func (a *app) generateReport(ctx context.Context, opts reportOptions) error {
	if opts.out == "" {
		opts.out = a.cfg.OutputDir
	}

	if opts.htmlPath == "" {
		opts.htmlPath = filepath.Join(opts.out, config.ReportFileName)
	}

	if opts.summary == "" {
		opts.summary = filepath.Join(opts.out, config.SummaryFileName)
	}

	paths := opts.artifacts
	if len(paths) == 0 {
		found, err := results.ListArtifacts(opts.out)
		if err != nil {
			return err
		}

		paths = found
	}

	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", errNoArtifacts, opts.out)
	}

	start := time.Now()

	summaries, err := report.LoadArtifacts(ctx, a.log, paths)
	if err != nil {
		return err
	}

	framework, err := report.LoadFrameworkResults(opts.framework)
	if err != nil {
		return err
	}

	m := report.Build(summaries, framework, time.Now().In(a.cfg.Timezone))

	renderer, err := report.NewRenderer(opts.title)
	if err != nil {
		return err
	}

	html, err := renderer.Render(m)
	if err != nil {
		return err
	}

	if err := report.WriteFiles(opts.htmlPath, opts.summary, html, m); err != nil {
		return err
	}

	a.formatter.PrintReport(m)
	a.formatter.PrintProgress(fmt.Sprintf("Report written to %s (%d of %d artifacts)", opts.htmlPath, len(summaries), len(paths)), time.Since(start))

	if !opts.send {
		return nil
	}

	return a.mailReport(ctx, m, html, opts.dryRun)
}

func (a *app) mailReport(ctx context.Context, m *report.Model, html string, dryRun bool) error {
	var sender mailer.Sender

	switch {
	case dryRun:
		sender = mailer.NewNopSender(a.log)
	case !a.cfg.MailEnabled():
		return errMailDisabled
	default:
		smtp, err := mailer.NewSMTPSender(a.log, a.cfg)
		if err != nil {
			return err
		}

		sender = smtp
	}

	subject := mailer.Subject(a.cfg.SubjectPrefix, subjectCategory(m), m.GeneratedAt, a.cfg.Timezone)

	result, err := sender.Send(ctx, html, subject, strings.Join(a.cfg.MailTo, ","))
	if err != nil {
		a.formatter.PrintError("Report delivery failed", err)
		return err
	}

	a.formatter.PrintSuccess(fmt.Sprintf("Report sent: %s %s", subject, result.MessageID))

	return nil
}

// subjectCategory names the categories covered by the report.
func subjectCategory(m *report.Model) string {
	names := make([]string, 0, len(m.Categories))
	for _, b := range m.Categories {
		names = append(names, b.Name)
	}

	return strings.Join(names, " & ")
}
