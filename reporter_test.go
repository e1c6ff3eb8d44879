package canary

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of every series of the named metric whose
// run_id label equals runID, keyed by the status label when present.
func gathered(t *testing.T, name, runID string) map[string]float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := labelMap(m)
			if labels["run_id"] != runID {
				continue
			}
			var v float64
			switch {
			case m.Counter != nil:
				v = m.GetCounter().GetValue()
			case m.Gauge != nil:
				v = m.GetGauge().GetValue()
			}
			values[labels["status"]] = v
		}
	}
	return values
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string)
	for _, pair := range m.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	return labels
}

func TestDefaultMetricsReporter_ReportResults(t *testing.T) {
	run := newRun(t, "reporter-pass", false)
	NewDefaultMetricsReporter().ReportResults(run.Root, run.Report)

	assert.Equal(t, map[string]float64{"passed": 2}, gathered(t, "canary_test_results_total", "reporter-pass"))
	assert.Equal(t, map[string]float64{"passed": 1}, gathered(t, "canary_run_results", "reporter-pass"))
	assert.Equal(t, map[string]float64{"": 3}, gathered(t, "canary_run_tests_total", "reporter-pass"))
	assert.Equal(t, map[string]float64{"": 3}, gathered(t, "canary_run_tests_passed", "reporter-pass"))
}

func TestDefaultMetricsReporter_ReportResults_FailedTests(t *testing.T) {
	run := newRun(t, "reporter-fail", true)
	run.Report.UnhandledError = errors.New("lost connection")
	NewDefaultMetricsReporter().ReportResults(run.Root, run.Report)

	assert.Equal(t, map[string]float64{"passed": 1, "failed": 1}, gathered(t, "canary_test_results_total", "reporter-fail"))
	assert.Equal(t, map[string]float64{"failed": 1}, gathered(t, "canary_run_results", "reporter-fail"))
	assert.Equal(t, map[string]float64{"": 2}, gathered(t, "canary_run_tests_failed", "reporter-fail"))
	assert.Equal(t, map[string]float64{"": 0}, gathered(t, "canary_run_tests_skipped", "reporter-fail"))
}
