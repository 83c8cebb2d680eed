package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/results"
)

// FrameworkResults is the outcome of the browser test framework's own run,
// read from its JSON reporter output.
type FrameworkResults struct {
	Total   int             `json:"total"`
	Passed  int             `json:"passed"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
	Tests   []FrameworkTest `json:"tests"`
}

// FrameworkTest is one test case of the framework run.
type FrameworkTest struct {
	Title    string        `json:"title"`
	Sport    string        `json:"sport"`
	File     string        `json:"file,omitempty"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// FailedTests returns the tests whose status is "failed".
func (f *FrameworkResults) FailedTests() []FrameworkTest {
	var out []FrameworkTest

	for _, t := range f.Tests {
		if t.Status == "failed" {
			out = append(out, t)
		}
	}

	return out
}

// BySport groups the tests by sport in first-seen order. Statuses other than
// passed and failed count towards the total only.
func (f *FrameworkResults) BySport() []*Bucket {
	g := newGrouping()

	for _, t := range f.Tests {
		b := g.get(t.Sport)
		b.Total++

		switch t.Status {
		case "passed":
			b.Passed++
		case "failed":
			b.Failed++
		}
	}

	return g.buckets()
}

// Playwright JSON reporter layout.
type pwReport struct {
	Stats *struct {
		Expected   int `json:"expected"`
		Unexpected int `json:"unexpected"`
		Skipped    int `json:"skipped"`
	} `json:"stats"`
	Suites []pwSuite `json:"suites"`
}

type pwSuite struct {
	Title  string    `json:"title"`
	File   string    `json:"file"`
	Specs  []pwSpec  `json:"specs"`
	Suites []pwSuite `json:"suites"`
}

type pwSpec struct {
	Title string   `json:"title"`
	File  string   `json:"file"`
	Tests []pwTest `json:"tests"`
}

type pwTest struct {
	Title   string `json:"title"`
	Results []struct {
		Status   string  `json:"status"`
		Duration float64 `json:"duration"`
		Error    *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"results"`
}

// LoadFrameworkResults parses a Playwright JSON report. A missing file
// yields empty results.
func LoadFrameworkResults(path string) (*FrameworkResults, error) {
	out := &FrameworkResults{}

	if path == "" {
		return out, nil
	}

	// #nosec G304 -- path is operator supplied
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactIO, path, err)
	}

	return ParseFrameworkResults(data)
}

// ParseFrameworkResults parses Playwright JSON reporter output.
func ParseFrameworkResults(data []byte) (*FrameworkResults, error) {
	var raw pwReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing framework results: %w", ErrArtifactIO, err)
	}

	out := &FrameworkResults{}

	if raw.Stats != nil {
		out.Total = raw.Stats.Expected + raw.Stats.Unexpected
		out.Passed = raw.Stats.Expected
		out.Failed = raw.Stats.Unexpected
		out.Skipped = raw.Stats.Skipped
	}

	for _, suite := range raw.Suites {
		out.Tests = collectTests(out.Tests, suite)
	}

	return out, nil
}

func collectTests(tests []FrameworkTest, suite pwSuite) []FrameworkTest {
	for _, spec := range suite.Specs {
		file := spec.File
		if file == "" {
			file = suite.File
		}

		for _, t := range spec.Tests {
			title := t.Title
			if title == "" {
				title = spec.Title
			}

			ft := FrameworkTest{
				Title:  title,
				Sport:  sportFromTitle(title),
				File:   file,
				Status: "unknown",
			}

			if len(t.Results) > 0 {
				r := t.Results[0]
				if r.Status != "" {
					ft.Status = r.Status
				}

				ft.Duration = time.Duration(r.Duration * float64(time.Millisecond))

				if r.Error != nil {
					ft.Error = r.Error.Message
				}
			}

			tests = append(tests, ft)
		}
	}

	for _, sub := range suite.Suites {
		tests = collectTests(tests, sub)
	}

	return tests
}

func sportFromTitle(title string) string {
	if c, ok := results.CategoryFromLabel(title); ok {
		return string(c)
	}

	return unknownLabel
}
