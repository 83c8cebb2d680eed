package report

import (
	"math"
	"sort"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/results"
)

// unknownLabel names a bucket whose key could not be derived.
const unknownLabel = "Unknown"

// Bucket holds event counts for one grouping key.
type Bucket struct {
	Name    string  `json:"name"`
	Total   int     `json:"total"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Errors  int     `json:"error"`
	Rate    float64 `json:"rate"`
	Percent int     `json:"percent"`
}

func (b *Bucket) add(o results.Outcome) {
	b.Total++

	switch o {
	case results.OutcomePass:
		b.Passed++
	case results.OutcomeFail:
		b.Failed++
	default:
		b.Errors++
	}
}

func (b *Bucket) finish() {
	b.Rate = results.Rate(b.Passed, b.Total)
	b.Percent = Percent(b.Rate)
}

// Percent rounds a percentage to the nearest whole number.
func Percent(rate float64) int {
	return int(math.Round(rate))
}

// RunLine is one run summary as listed in the report.
type RunLine struct {
	Site       string           `json:"site"`
	TestName   string           `json:"testName"`
	Sport      string           `json:"sport"`
	Category   results.Category `json:"category"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Counts     Bucket           `json:"counts"`
	RunErrors  []string         `json:"runErrors,omitempty"`
}

// Model is the read-only aggregate a report is rendered from.
type Model struct {
	GeneratedAt      time.Time             `json:"generatedAt"`
	Overall          Bucket                `json:"overall"`
	Rating           Rating                `json:"rating"`
	Categories       []*Bucket             `json:"categories"`
	Windows          []*Bucket             `json:"timeWindows"`
	Competitions     []*Bucket             `json:"competitions"`
	Runs             []RunLine             `json:"runs"`
	FailedEvents     []results.EventRecord `json:"failedEvents"`
	Framework        *FrameworkResults     `json:"framework,omitempty"`
	FrameworkBySport []*Bucket             `json:"frameworkBySport,omitempty"`
}

// AggregateByCategory groups event counts by category. Summaries of the same
// category are merged.
func AggregateByCategory(summaries []*results.RunSummary) map[results.Category]*Bucket {
	out := make(map[results.Category]*Bucket)

	for _, s := range summaries {
		key := s.Category
		if key == "" {
			key = unknownLabel
		}

		b, ok := out[key]
		if !ok {
			b = &Bucket{Name: string(key)}
			out[key] = b
		}

		b.Total += s.TotalEvents
		b.Passed += s.PassedEvents
		b.Failed += s.FailedEvents
		b.Errors += s.ErrorEvents
	}

	for _, b := range out {
		b.finish()
	}

	return out
}

// Build derives the report model. framework may be nil.
func Build(summaries []*results.RunSummary, framework *FrameworkResults, generatedAt time.Time) *Model {
	m := &Model{
		GeneratedAt:  generatedAt,
		Categories:   orderedCategories(AggregateByCategory(summaries)),
		Runs:         make([]RunLine, 0, len(summaries)),
		FailedEvents: make([]results.EventRecord, 0),
		Framework:    framework,
	}

	if framework != nil && len(framework.Tests) > 0 {
		m.FrameworkBySport = framework.BySport()
	}

	var (
		windows      = newGrouping()
		competitions = newGrouping()
	)

	for _, s := range summaries {
		line := RunLine{
			Site:       s.Site,
			TestName:   s.TestName,
			Sport:      s.Sport,
			Category:   s.Category,
			StartedAt:  s.StartedAt,
			FinishedAt: s.FinishedAt,
			RunErrors:  s.RunErrors,
			Counts: Bucket{
				Name:   s.Sport,
				Total:  s.TotalEvents,
				Passed: s.PassedEvents,
				Failed: s.FailedEvents,
				Errors: s.ErrorEvents,
			},
		}
		line.Counts.finish()
		m.Runs = append(m.Runs, line)

		m.Overall.Total += s.TotalEvents
		m.Overall.Passed += s.PassedEvents
		m.Overall.Failed += s.FailedEvents
		m.Overall.Errors += s.ErrorEvents

		for _, e := range s.Events {
			windows.get(e.TimeWindow).add(e.Outcome)
			competitions.get(e.Competition).add(e.Outcome)

			if e.Outcome != results.OutcomePass {
				m.FailedEvents = append(m.FailedEvents, e)
			}
		}
	}

	m.Overall.Name = "Overall"
	m.Overall.finish()
	m.Rating = RatingFor(m.Overall.Rate, m.Overall.Total)

	m.Windows = windows.buckets()
	m.Competitions = competitions.buckets()

	sort.SliceStable(m.Competitions, func(i, j int) bool {
		if m.Competitions[i].Total != m.Competitions[j].Total {
			return m.Competitions[i].Total > m.Competitions[j].Total
		}

		return m.Competitions[i].Name < m.Competitions[j].Name
	})

	return m
}

// orderedCategories lists known categories in display order, then any
// others by name.
func orderedCategories(byCategory map[results.Category]*Bucket) []*Bucket {
	out := make([]*Bucket, 0, len(byCategory))
	seen := make(map[results.Category]bool, len(results.Categories))

	for _, c := range results.Categories {
		seen[c] = true

		if b, ok := byCategory[c]; ok {
			out = append(out, b)
		}
	}

	var rest []*Bucket

	for c, b := range byCategory {
		if !seen[c] {
			rest = append(rest, b)
		}
	}

	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })

	return append(out, rest...)
}

// grouping accumulates buckets in first-seen order.
type grouping struct {
	order []*Bucket
	index map[string]*Bucket
}

func newGrouping() *grouping {
	return &grouping{index: make(map[string]*Bucket)}
}

func (g *grouping) get(name string) *Bucket {
	if name == "" {
		name = unknownLabel
	}

	b, ok := g.index[name]
	if !ok {
		b = &Bucket{Name: name}
		g.index[name] = b
		g.order = append(g.order, b)
	}

	return b
}

func (g *grouping) buckets() []*Bucket {
	for _, b := range g.order {
		b.finish()
	}

	if g.order == nil {
		return []*Bucket{}
	}

	return g.order
}
