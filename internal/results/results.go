// Package results defines the per-event records and per-run summaries
// produced by a verification run, and their JSON artifact form.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	errUnknownCategory = errors.New("unknown category")
	errUnknownOutcome  = errors.New("unknown outcome")
)

// Category is the sport a run covers.
type Category string

const (
	// CategoryFootball is association football.
	CategoryFootball Category = "Football"
	// CategoryTennis is tennis.
	CategoryTennis Category = "Tennis"
	// CategoryCricket is cricket.
	CategoryCricket Category = "Cricket"
	// CategoryNFL is American football.
	CategoryNFL Category = "NFL"
)

// Categories lists every supported category in display order.
var Categories = []Category{CategoryFootball, CategoryTennis, CategoryCricket, CategoryNFL}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", errUnknownCategory, s)
}

// CategoryFromLabel derives a category from free-form text such as an
// artifact "sport" field ("NFL (PSG)") or a test title. It returns false
// when nothing matches.
func CategoryFromLabel(label string) (Category, bool) {
	switch {
	case strings.Contains(label, "NFL"), strings.Contains(label, "American Football"):
		return CategoryNFL, true
	case strings.Contains(label, "Football"):
		return CategoryFootball, true
	case strings.Contains(label, "Tennis"):
		return CategoryTennis, true
	case strings.Contains(label, "Cricket"):
		return CategoryCricket, true
	default:
		return "", false
	}
}

// Outcome is the terminal classification of an inspected event.
type Outcome string

const (
	// OutcomePass means the widget iframe was visible with a trusted source.
	OutcomePass Outcome = "PASS"
	// OutcomeFail means the tracker or widget could not be verified.
	OutcomeFail Outcome = "FAIL"
	// OutcomeError means the inspection itself broke (navigation, driver).
	OutcomeError Outcome = "ERROR"
)

// UnmarshalJSON accepts the outcome case-insensitively.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch Outcome(strings.ToUpper(s)) {
	case OutcomePass:
		*o = OutcomePass
	case OutcomeFail:
		*o = OutcomeFail
	case OutcomeError:
		*o = OutcomeError
	default:
		return fmt.Errorf("%w: %q", errUnknownOutcome, s)
	}

	return nil
}

// EventRecord is the result of inspecting a single event.
type EventRecord struct {
	Title         string    `json:"event"`
	Category      Category  `json:"category"`
	TimeWindow    string    `json:"timePeriod"`
	Competition   string    `json:"league"`
	Outcome       Outcome   `json:"result"`
	FailureReason *string   `json:"failureReason"`
	URL           string    `json:"url,omitempty"`
	WidgetSrc     string    `json:"widgetSrc,omitempty"`
	Attempts      int       `json:"attempts,omitempty"`
	DurationMS    int64     `json:"durationMs,omitempty"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// Reason returns the failure reason or an empty string.
func (r *EventRecord) Reason() string {
	if r.FailureReason == nil {
		return ""
	}

	return *r.FailureReason
}

// RunSummary aggregates one category's verification loop.
// Counts are maintained by Append and always sum to TotalEvents.
type RunSummary struct {
	RunID        string        `json:"runId"`
	TestName     string        `json:"testName"`
	Site         string        `json:"site"`
	Sport        string        `json:"sport"`
	Category     Category      `json:"category"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
	TotalEvents  int           `json:"totalEvents"`
	PassedEvents int           `json:"passedEvents"`
	FailedEvents int           `json:"failedEvents"`
	ErrorEvents  int           `json:"errorEvents"`
	Events       []EventRecord `json:"events"`
	// RunErrors are failures that aborted part of the run, such as losing
	// the listing page. They are not events and do not affect the counts.
	RunErrors []string `json:"runErrors,omitempty"`
}

// NewRunSummary starts an empty summary for a site/category run.
func NewRunSummary(site, sport string, category Category, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		TestName:  fmt.Sprintf("%s – %s Animation Check", site, category),
		Site:      site,
		Sport:     sport,
		Category:  category,
		StartedAt: startedAt,
		Events:    make([]EventRecord, 0, 16),
	}
}

// Append adds a record and updates the counters.
func (s *RunSummary) Append(record EventRecord) {
	s.Events = append(s.Events, record)
	s.TotalEvents++

	switch record.Outcome {
	case OutcomePass:
		s.PassedEvents++
	case OutcomeFail:
		s.FailedEvents++
	default:
		s.ErrorEvents++
	}
}

// AddRunError records a run-level failure.
func (s *RunSummary) AddRunError(err error) {
	s.RunErrors = append(s.RunErrors, err.Error())
}

// Recount recomputes the counters from Events. Used on artifacts read from
// disk so the invariant holds whatever the file claimed.
func (s *RunSummary) Recount() {
	events := s.Events
	s.Events = make([]EventRecord, 0, len(events))
	s.TotalEvents, s.PassedEvents, s.FailedEvents, s.ErrorEvents = 0, 0, 0, 0

	for _, e := range events {
		s.Append(e)
	}
}

// PassRate returns passed/total as a percentage, 0 when there are no events.
func (s *RunSummary) PassRate() float64 {
	return Rate(s.PassedEvents, s.TotalEvents)
}

// Rate returns part/total as a percentage, 0 when total is 0.
func Rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}

	return float64(part) / float64(total) * 100.0
}
