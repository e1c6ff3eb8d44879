package canary

import (
	"github.com/ethereum-optimism/infra/op-canary/metrics"
	"github.com/ethereum-optimism/infra/op-canary/reporting"
	"github.com/ethereum-optimism/infra/op-canary/tree"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(root *tree.Node, report *reporting.Report)
}

// DefaultMetricsReporter records every run and every test without children
// in prometheus.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the test results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(root *tree.Node, report *reporting.Report) {
	suite := root.Name()
	stats := report.Stats()
	metrics.RecordRun(
		suite,
		report.RunID,
		report.Status(),
		metrics.RunCounts{
			Total:   stats.Total,
			Passed:  stats.Passed,
			Failed:  stats.Failed,
			Skipped: stats.Skipped,
		},
		report.Duration,
	)

	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		children := n.Children()
		if len(children) == 0 {
			metrics.RecordTestResult(suite, report.RunID, n.StatusString(), n.Duration())
			return
		}
		for _, child := range children {
			walk(child)
		}
	}
	walk(root)

	if report.UnhandledError != nil {
		metrics.RecordErrorDetails("unhandled", report.UnhandledError)
	}
}
