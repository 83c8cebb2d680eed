package output

import (
	"fmt"

	"github.com/ethpandaops/tracker-probe/internal/report"
	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/fatih/color"
)

// ColorHelper provides utilities for coloring probe output
type ColorHelper struct {
	enabled bool
}

// NewColorHelper creates a new color helper.
// Colors are enabled only when outputting to a terminal
func NewColorHelper() *ColorHelper {
	return &ColorHelper{
		enabled: !color.NoColor,
	}
}

// Success returns green colored text
func (c *ColorHelper) Success(text string) string {
	if !c.enabled {
		return text
	}

	return color.GreenString(text)
}

// Failure returns red colored text
func (c *ColorHelper) Failure(text string) string {
	if !c.enabled {
		return text
	}

	return color.RedString(text)
}

// Warning returns yellow colored text
func (c *ColorHelper) Warning(text string) string {
	if !c.enabled {
		return text
	}

	return color.YellowString(text)
}

// Muted returns gray colored text
func (c *ColorHelper) Muted(text string) string {
	if !c.enabled {
		return text
	}

	return color.New(color.FgHiBlack).Sprint(text)
}

// Bold returns bold text
func (c *ColorHelper) Bold(text string) string {
	if !c.enabled {
		return text
	}

	return color.New(color.Bold).Sprint(text)
}

// Header returns bold cyan text for section headers
func (c *ColorHelper) Header(text string) string {
	if !c.enabled {
		return text
	}

	return color.New(color.FgCyan, color.Bold).Sprint(text)
}

// FormatOutcome returns the colored outcome label.
func (c *ColorHelper) FormatOutcome(o results.Outcome) string {
	switch o {
	case results.OutcomePass:
		return c.Success("✓ PASS")
	case results.OutcomeFail:
		return c.Failure("✗ FAIL")
	default:
		return c.Warning("! ERROR")
	}
}

// FormatCount returns "passed/total" colored by completeness.
func (c *ColorHelper) FormatCount(passed, total int) string {
	text := fmt.Sprintf("%d/%d", passed, total)

	switch {
	case total > 0 && passed == total:
		return c.Success(text)
	case passed == 0:
		return c.Failure(text)
	default:
		return c.Warning(text)
	}
}

// FormatPercent returns a whole percentage colored by rating band.
func (c *ColorHelper) FormatPercent(percent int) string {
	text := fmt.Sprintf("%d%%", percent)

	switch {
	case percent >= 80:
		return c.Success(text)
	case percent >= 40:
		return c.Warning(text)
	default:
		return c.Failure(text)
	}
}

// FormatRating returns the colored coverage rating.
func (c *ColorHelper) FormatRating(r report.Rating) string {
	switch r {
	case report.RatingExcellent, report.RatingGood:
		return c.Success(string(r))
	case report.RatingModerate:
		return c.Warning(string(r))
	case report.RatingPoor:
		return c.Failure(string(r))
	default:
		return c.Muted(string(r))
	}
}
