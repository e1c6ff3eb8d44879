package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/types"
)

// ReportStats contains aggregated counts for a test run
type ReportStats struct {
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	Errors   int
	PassRate float64
}

// Report classifies every node of a tree after a run. Nodes and errors are
// listed in depth-first pre-order.
type Report struct {
	RunID          string
	UnhandledError error
	StartTime      time.Time
	Duration       time.Duration

	Passed  []*tree.Node
	Failed  []*tree.Node
	Skipped []*tree.Node
	Errors  []*tree.TestError
}

// GetReport walks the tree rooted at root without modifying it.
func GetReport(root *tree.Node) *Report {
	report := &Report{}
	collect(root, report)
	return report
}

func collect(n *tree.Node, report *Report) {
	switch n.StatusString() {
	case types.StatusPassed:
		report.Passed = append(report.Passed, n)
	case types.StatusFailed:
		report.Failed = append(report.Failed, n)
	default:
		report.Skipped = append(report.Skipped, n)
	}
	report.Errors = append(report.Errors, n.Errors()...)
	for _, child := range n.Children() {
		collect(child, report)
	}
}

// Total is the number of classified nodes.
func (r *Report) Total() int {
	return len(r.Passed) + len(r.Failed) + len(r.Skipped)
}

// Status is failed when any node failed or the run itself faulted.
func (r *Report) Status() types.Status {
	if r.UnhandledError != nil || len(r.Failed) > 0 {
		return types.StatusFailed
	}
	return types.StatusPassed
}

// Stats summarizes the report counts.
func (r *Report) Stats() ReportStats {
	stats := ReportStats{
		Total:   r.Total(),
		Passed:  len(r.Passed),
		Failed:  len(r.Failed),
		Skipped: len(r.Skipped),
		Errors:  len(r.Errors),
	}
	if attempted := stats.Passed + stats.Failed; attempted > 0 {
		stats.PassRate = float64(stats.Passed) / float64(attempted) * 100
	}
	return stats
}

// FailedTitles lists the titles of failed nodes.
func (r *Report) FailedTitles() []string {
	titles := make([]string, 0, len(r.Failed))
	for _, n := range r.Failed {
		titles = append(titles, n.Title())
	}
	return titles
}

// FailedTestTitles is FailedTitles without the root of the run, which fails
// whenever any of its descendants does.
func (r *Report) FailedTestTitles() []string {
	var titles []string
	for _, n := range r.Failed {
		if n.Parent() == nil {
			continue
		}
		titles = append(titles, n.Title())
	}
	return titles
}

func (r *Report) String() string {
	var b strings.Builder
	if r.RunID != "" {
		fmt.Fprintf(&b, "run %s: ", r.RunID)
	}
	stats := r.Stats()
	fmt.Fprintf(&b, "%s (%d passed, %d failed, %d skipped, %d errors)",
		r.Status(), stats.Passed, stats.Failed, stats.Skipped, stats.Errors)
	if r.UnhandledError != nil {
		fmt.Fprintf(&b, ": unhandled error: %v", r.UnhandledError)
	}
	return b.String()
}
