// Package output prints probe progress, run summaries and reports to the console.
package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/format"
	"github.com/ethpandaops/tracker-probe/internal/linkcheck"
	"github.com/ethpandaops/tracker-probe/internal/report"
	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

const reasonWidth = 60

// Formatter provides clean, human-friendly output
type Formatter interface {
	PrintPhase(phase string)
	PrintProgress(message string, duration time.Duration)
	PrintSuccess(message string)
	PrintWarning(message string)
	PrintError(message string, err error)
	PrintEvent(record results.EventRecord)
	PrintRun(summary *results.RunSummary)
	PrintReport(m *report.Model)
	PrintLinks(r *linkcheck.Report)
}

type formatter struct {
	writer  io.Writer
	verbose bool
	colors  *ColorHelper

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	blue   *color.Color
	gray   *color.Color
}

// NewFormatter creates a new output formatter
func NewFormatter(writer io.Writer, verbose bool) Formatter {
	return &formatter{
		writer:  writer,
		verbose: verbose,
		colors:  NewColorHelper(),
		green:   color.New(color.FgGreen),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		blue:    color.New(color.FgBlue),
		gray:    color.New(color.FgHiBlack),
	}
}

// PrintPhase prints phase separator
func (f *formatter) PrintPhase(phase string) {
	f.blue.Fprintf(f.writer, "\n▸ %s\n", phase)
}

// PrintProgress prints progress with timing
func (f *formatter) PrintProgress(message string, duration time.Duration) {
	if duration > 0 {
		f.gray.Fprintf(f.writer, "%s (%s)\n", message, format.Duration(duration))
	} else {
		fmt.Fprintf(f.writer, "%s\n", message)
	}
}

// PrintSuccess prints a green message
func (f *formatter) PrintSuccess(message string) {
	f.green.Fprintf(f.writer, "%s\n", message)
}

// PrintWarning prints a yellow message
func (f *formatter) PrintWarning(message string) {
	f.yellow.Fprintf(f.writer, "%s\n", message)
}

// PrintError prints red message + error details
func (f *formatter) PrintError(message string, err error) {
	f.red.Fprintf(f.writer, "%s", message)

	if err != nil {
		f.red.Fprintf(f.writer, ": %v", err)
	}

	fmt.Fprintf(f.writer, "\n")
}

// PrintEvent prints one line per inspected event.
func (f *formatter) PrintEvent(r results.EventRecord) {
	line := fmt.Sprintf("  %s %s %s", f.colors.FormatOutcome(r.Outcome), r.Title, f.colors.Muted("("+r.TimeWindow+", "+r.Competition+")"))

	if reason := r.Reason(); reason != "" {
		line += " " + f.colors.Muted("- "+format.Truncate(reason, reasonWidth))
	}

	if f.verbose && r.DurationMS > 0 {
		line += " " + f.colors.Muted(format.Duration(time.Duration(r.DurationMS)*time.Millisecond))
	}

	fmt.Fprintln(f.writer, line)
}

// PrintRun prints the event table and counts of one category run.
func (f *formatter) PrintRun(s *results.RunSummary) {
	fmt.Fprintln(f.writer, f.formatEvents(s))
	fmt.Fprintln(f.writer, f.formatRunSummary(s))
}

// PrintReport prints the category aggregate and the overall rating.
func (f *formatter) PrintReport(m *report.Model) {
	fmt.Fprintln(f.writer, f.formatReport(m))
}

// PrintLinks prints broken links and redirects.
func (f *formatter) PrintLinks(r *linkcheck.Report) {
	fmt.Fprintln(f.writer, f.formatLinks(r))
}

func (f *formatter) formatEvents(s *results.RunSummary) string {
	if len(s.Events) == 0 {
		return "\n" + f.colors.Header("▸ "+s.Sport+" Events") + "\n\nNo events checked"
	}

	var (
		headers = []string{"Event", "Window", "Competition", "Result", "Details"}
		rows    = make([][]string, 0, len(s.Events))
	)

	for _, e := range s.Events {
		rows = append(rows, []string{
			format.Truncate(e.Title, 40),
			e.TimeWindow,
			e.Competition,
			f.colors.FormatOutcome(e.Outcome),
			f.colors.Muted(format.Truncate(e.Reason(), reasonWidth)),
		})
	}

	return "\n" + f.colors.Header("▸ "+s.Sport+" Events") + "\n\n" + tableString(headers, rows)
}

func (f *formatter) formatRunSummary(s *results.RunSummary) string {
	var (
		percent = report.Percent(s.PassRate())
		rating  = report.RatingFor(s.PassRate(), s.TotalEvents)
		headers = []string{"Metric", "Value"}
		rows    = [][]string{
			{"Total Events", f.colors.Bold(fmt.Sprintf("%d", s.TotalEvents))},
			{"Passed", f.colors.FormatCount(s.PassedEvents, s.TotalEvents)},
			{"Failed", fmt.Sprintf("%d", s.FailedEvents)},
			{"Errors", fmt.Sprintf("%d", s.ErrorEvents)},
			{"Pass Rate", f.colors.FormatPercent(percent)},
			{"Coverage", f.colors.FormatRating(rating) + " " + f.colors.Muted(rating.Describe())},
		}
	)

	if !s.FinishedAt.IsZero() && !s.StartedAt.IsZero() {
		rows = append(rows, []string{"Duration", format.Duration(s.FinishedAt.Sub(s.StartedAt))})
	}

	out := "\n" + f.colors.Header("▸ Summary") + "\n\n" + tableString(headers, rows)

	if len(s.RunErrors) > 0 {
		var b strings.Builder

		b.WriteString("\n" + f.colors.Header("▸ Run Errors") + "\n\n")

		for _, msg := range s.RunErrors {
			b.WriteString(fmt.Sprintf("  %s %s\n", f.colors.Failure("✗"), msg))
		}

		out += b.String()
	}

	return out
}

func (f *formatter) formatReport(m *report.Model) string {
	headers := []string{"Category", "Total", "Passed", "Failed", "Errors", "Pass Rate"}
	rows := make([][]string, 0, len(m.Categories)+1)

	for _, b := range m.Categories {
		rows = append(rows, f.bucketRow(b))
	}

	rows = append(rows, f.bucketRow(&m.Overall))

	out := "\n" + f.colors.Header("▸ Coverage by Category") + "\n\n" + tableString(headers, rows)
	out += fmt.Sprintf("\nCoverage rating: %s %s\n", f.colors.FormatRating(m.Rating), f.colors.Muted(m.Rating.Describe()))

	if fw := m.Framework; fw != nil && fw.Total > 0 {
		out += fmt.Sprintf("Framework tests: %d passed, %d failed, %d skipped\n", fw.Passed, fw.Failed, fw.Skipped)
	}

	return out
}

func (f *formatter) bucketRow(b *report.Bucket) []string {
	return []string{
		f.colors.Bold(b.Name),
		fmt.Sprintf("%d", b.Total),
		f.colors.FormatCount(b.Passed, b.Total),
		fmt.Sprintf("%d", b.Failed),
		fmt.Sprintf("%d", b.Errors),
		f.colors.FormatPercent(b.Percent),
	}
}

func (f *formatter) formatLinks(r *linkcheck.Report) string {
	var (
		failures  = r.Failures()
		warnings  = r.Warnings()
		redirects = r.Redirects()
	)

	out := fmt.Sprintf("\n%s\n\n%d links checked: %s broken internal, %s broken external, %d redirects\n",
		f.colors.Header("▸ Links: "+r.Site),
		len(r.Results),
		f.colors.Failure(fmt.Sprintf("%d", len(failures))),
		f.colors.Warning(fmt.Sprintf("%d", len(warnings))),
		len(redirects),
	)

	rows := make([][]string, 0, len(failures)+len(warnings)+len(redirects))

	for _, res := range failures {
		rows = append(rows, []string{f.colors.Failure("BROKEN"), statusText(res), res.URL, res.Page})
	}

	for _, res := range warnings {
		rows = append(rows, []string{f.colors.Warning("EXTERNAL"), statusText(res), res.URL, res.Page})
	}

	if f.verbose {
		for _, res := range redirects {
			rows = append(rows, []string{f.colors.Muted("REDIRECT"), statusText(res), res.URL, res.Location})
		}
	}

	if len(rows) > 0 {
		out += "\n" + tableString([]string{"Kind", "Status", "URL", "Page"}, rows)
	}

	return out
}

func statusText(r linkcheck.Result) string {
	if r.Status < 0 {
		return format.Truncate(r.Error, 30)
	}

	return fmt.Sprintf("%d", r.Status)
}

var _ Formatter = (*formatter)(nil)

// WriteTable writes a bordered table to w. rowLines draws a rule between rows.
func WriteTable(w io.Writer, headers []string, rows [][]string, rowLines bool) {
	t := tablewriter.NewWriter(w)
	t.SetHeader(headers)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("│")
	t.SetRowSeparator("─")
	t.SetRowLine(rowLines)
	t.AppendBulk(rows)
	t.Render()
}

func tableString(headers []string, rows [][]string) string {
	var buf bytes.Buffer

	WriteTable(&buf, headers, rows, false)

	return buf.String()
}
