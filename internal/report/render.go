package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/report.html
var reportTemplate string

// DefaultTitle heads the report when no title is given.
const DefaultTitle = "Live Tracker Coverage Report"

const timestampLayout = "2 January 2006 15:04:05 MST"

type eventView struct {
	Title       string
	URL         string
	Category    string
	Window      string
	Competition string
	Outcome     string
	Class       string
	Reason      string
}

type runView struct {
	Site      string
	Sport     string
	Started   string
	Total     int
	Percent   int
	RunErrors []string
}

type frameworkTestView struct {
	Title    string
	Sport    string
	Duration string
	Error    string
}

// Renderer renders report models as HTML.
type Renderer struct {
	tpl   *pongo2.Template
	title string
}

// NewRenderer compiles the report template. An empty title uses DefaultTitle.
func NewRenderer(title string) (*Renderer, error) {
	tpl, err := pongo2.FromString(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("compiling report template: %w", err)
	}

	if title == "" {
		title = DefaultTitle
	}

	return &Renderer{tpl: tpl, title: title}, nil
}

// Render renders the model. Output depends only on the model, so rendering
// the same model twice yields identical HTML.
func (r *Renderer) Render(m *Model) (string, error) {
	ctx := pongo2.Context{
		"title":              r.title,
		"generated_at":       m.GeneratedAt.Format(timestampLayout),
		"overall":            m.Overall,
		"rating":             string(m.Rating),
		"rating_description": m.Rating.Describe(),
		"categories":         m.Categories,
		"windows":            m.Windows,
		"competitions":       m.Competitions,
		"runs":               runViews(m.Runs),
		"failed":             eventViews(m),
	}

	if m.Framework != nil && m.Framework.Total+len(m.Framework.Tests) > 0 {
		ctx["framework"] = m.Framework
		ctx["framework_failed"] = frameworkViews(m.Framework.FailedTests())
		ctx["framework_sports"] = m.FrameworkBySport
	}

	out, err := r.tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}

	return out, nil
}

// RenderHTML renders the model with the default title.
func RenderHTML(m *Model) (string, error) {
	r, err := NewRenderer("")
	if err != nil {
		return "", err
	}

	return r.Render(m)
}

func eventViews(m *Model) []eventView {
	out := make([]eventView, 0, len(m.FailedEvents))

	for _, e := range m.FailedEvents {
		out = append(out, eventView{
			Title:       e.Title,
			URL:         e.URL,
			Category:    string(e.Category),
			Window:      e.TimeWindow,
			Competition: e.Competition,
			Outcome:     string(e.Outcome),
			Class:       strings.ToLower(string(e.Outcome)),
			Reason:      e.Reason(),
		})
	}

	return out
}

func runViews(runs []RunLine) []runView {
	out := make([]runView, 0, len(runs))

	for _, r := range runs {
		started := ""
		if !r.StartedAt.IsZero() {
			started = r.StartedAt.Format(time.DateTime)
		}

		out = append(out, runView{
			Site:      r.Site,
			Sport:     r.Sport,
			Started:   started,
			Total:     r.Counts.Total,
			Percent:   r.Counts.Percent,
			RunErrors: r.RunErrors,
		})
	}

	return out
}

func frameworkViews(tests []FrameworkTest) []frameworkTestView {
	out := make([]frameworkTestView, 0, len(tests))

	for _, t := range tests {
		out = append(out, frameworkTestView{
			Title:    t.Title,
			Sport:    t.Sport,
			Duration: fmt.Sprintf("%.2fs", t.Duration.Seconds()),
			Error:    t.Error,
		})
	}

	return out
}

// WriteFiles writes the HTML report and the JSON summary of the model.
// Empty paths are skipped.
func WriteFiles(htmlPath, summaryPath, html string, m *Model) error {
	if htmlPath != "" {
		if err := writeFile(htmlPath, []byte(html)); err != nil {
			return err
		}
	}

	if summaryPath != "" {
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}

		if err := writeFile(summaryPath, data); err != nil {
			return err
		}
	}

	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
