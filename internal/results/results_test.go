package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reason(s string) *string { return &s }

func TestRunSummary_AppendKeepsInvariant(t *testing.T) {
	summary := NewRunSummary("planetsportbet", "Football (PSG)", CategoryFootball, time.Now())

	outcomes := []Outcome{OutcomePass, OutcomeFail, OutcomeError, OutcomePass, OutcomeFail}
	for i, o := range outcomes {
		summary.Append(EventRecord{Title: "event", Outcome: o})

		assert.Equal(t, i+1, summary.TotalEvents)
		assert.Equal(t, summary.TotalEvents, summary.PassedEvents+summary.FailedEvents+summary.ErrorEvents)
	}

	assert.Equal(t, 2, summary.PassedEvents)
	assert.Equal(t, 2, summary.FailedEvents)
	assert.Equal(t, 1, summary.ErrorEvents)
	assert.NotEmpty(t, summary.RunID)
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(0, 0))
	assert.Equal(t, 0.0, Rate(3, 0))
	assert.InDelta(t, 66.67, Rate(2, 3), 0.01)
	assert.Equal(t, 100.0, Rate(4, 4))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" nfl ")
	require.NoError(t, err)
	assert.Equal(t, CategoryNFL, c)

	_, err = ParseCategory("darts")
	require.Error(t, err)
}

func TestCategoryFromLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Category
		ok    bool
	}{
		{label: "Football (PSG)", want: CategoryFootball, ok: true},
		{label: "NFL (PSG)", want: CategoryNFL, ok: true},
		{label: "PlanetSportBet – American Football Live Tracker", want: CategoryNFL, ok: true},
		{label: "PlanetSportBet – Tennis Tab Animation Check", want: CategoryTennis, ok: true},
		{label: "Cricket", want: CategoryCricket, ok: true},
		{label: "Homepage smoke", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := CategoryFromLabel(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteAndReadArtifact(t *testing.T) {
	dir := t.TempDir()

	summary := NewRunSummary("PlanetSportBet", "Football (PSG)", CategoryFootball, time.Now().UTC())
	summary.Append(EventRecord{Title: "A v B", Category: CategoryFootball, TimeWindow: "Today", Competition: "Serie A", Outcome: OutcomePass})
	summary.Append(EventRecord{Title: "C v D", Category: CategoryFootball, TimeWindow: "Today", Competition: "Other Competition", Outcome: OutcomeFail, FailureReason: reason("widget iframe not found")})

	path, err := WriteArtifact(dir, summary)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "planetsportbet-football-results.json"), path)

	got, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, got.RunID)
	assert.Equal(t, 2, got.TotalEvents)
	assert.Equal(t, 1, got.PassedEvents)
	assert.Equal(t, "widget iframe not found", got.Events[1].Reason())

	listed, err := ListArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, listed)
}

func TestReadArtifact_LegacyFormat(t *testing.T) {
	// Files written by the old scripts carry no category and claim counts
	// that disagree with their event list.
	legacy := map[string]any{
		"testName":     "PlanetSportBet – Football Animation Check",
		"sport":        "Football (PSG)",
		"totalEvents":  5,
		"passedEvents": 1,
		"failedEvents": 1,
		"errorEvents":  0,
		"events": []map[string]any{
			{"event": "A v B", "result": "PASS", "timePeriod": "Today", "league": "Serie A", "failureReason": nil},
			{"event": "C v D", "result": "fail", "timePeriod": "Tomorrow", "league": "FA Cup", "failureReason": "Animation iframe failed to load"},
		},
	}

	data, err := json.Marshal(legacy)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "football-events-results.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	got, err := ReadArtifact(path)
	require.NoError(t, err)

	assert.Equal(t, CategoryFootball, got.Category)
	assert.Equal(t, 2, got.TotalEvents)
	assert.Equal(t, OutcomeFail, got.Events[1].Outcome)
	assert.Equal(t, CategoryFootball, got.Events[0].Category)
}

func TestReadArtifact_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadArtifact(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))

	_, err = ReadArtifact(bad)
	require.Error(t, err)

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"events":[{"result":"SKIPPED"}]}`), 0o600))

	_, err = ReadArtifact(unknown)
	require.Error(t, err)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "star-sports-nfl-results.json", ArtifactName("Star Sports", CategoryNFL))
	assert.Equal(t, "teamtalk-tennis-results.json", ArtifactName("  teamtalk!", CategoryTennis))
}
