package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/tracker-probe/internal/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() *results.RunSummary {
	started := time.Date(2026, 3, 14, 17, 5, 0, 0, time.UTC)
	s := results.NewRunSummary("testbet", "NFL (TEST)", results.CategoryNFL, started)

	s.Append(results.EventRecord{Title: "Jets v Bills", Outcome: results.OutcomePass, DurationMS: 4000})
	s.Append(results.EventRecord{Title: "Bears v Lions", Outcome: results.OutcomePass, DurationMS: 3000})
	s.Append(results.EventRecord{Title: "Rams v 49ers", Outcome: results.OutcomeFail})
	s.AddRunError(assert.AnError)
	s.FinishedAt = started.Add(time.Minute)

	return s
}

// gathered returns the value of every sample keyed by family name and its
// label values in label name order.
func gathered(t *testing.T, g prometheus.Gatherer) map[string]float64 {
	t.Helper()

	families, err := g.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "|" + l.GetValue()
			}

			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	return out
}

func TestCollector_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(logrus.New(), WithRegistry(reg))

	c.RecordRun(sampleRun())

	values := gathered(t, reg)

	assert.InDelta(t, 2, values["tracker_probe_events_total|NFL|PASS|testbet"], 0.001)
	assert.InDelta(t, 1, values["tracker_probe_events_total|NFL|FAIL|testbet"], 0.001)
	assert.Contains(t, values, "tracker_probe_events_total|NFL|ERROR|testbet")
	assert.InDelta(t, 0, values["tracker_probe_events_total|NFL|ERROR|testbet"], 0.001)
	assert.InDelta(t, 1, values["tracker_probe_run_errors_total|NFL|testbet"], 0.001)
	assert.InDelta(t, 66.667, values["tracker_probe_pass_rate_percent|NFL|testbet"], 0.01)
	assert.InDelta(t, 60, values["tracker_probe_last_run_duration_seconds|NFL|testbet"], 0.001)
	assert.InDelta(t, 2, values["tracker_probe_event_duration_seconds|NFL|testbet"], 0.001)
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector(logrus.New(), WithNamespace("probe_test"))
	c.RecordRun(sampleRun())

	path := filepath.Join(t.TempDir(), "textfile", "tracker.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `probe_test_events_total{category="NFL",outcome="PASS",site="testbet"} 2`)
	assert.Contains(t, out, "probe_test_last_run_timestamp_seconds")
}
