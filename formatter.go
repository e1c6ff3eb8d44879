package canary

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-canary/reporting"
	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/types"
	"github.com/ethereum-optimism/infra/op-canary/ui"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(root *tree.Node, report *reporting.Report) error
}

// ConsoleResultFormatter prints a results table followed by a one-line
// summary of the run.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to
// out, or stdout when out is nil.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer) *ConsoleResultFormatter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(root *tree.Node, report *reporting.Report) error {
	f.logger.Debug("Printing results...", "run_id", report.RunID)

	title := fmt.Sprintf("Canary Test Results: %s (%s)", root.Name(), formatDuration(report.Duration))
	table := reporting.NewReportGenerator(
		reporting.NewTreeTableFormatter(title, true),
		reporting.NewStreamWriter(f.out),
	)
	if err := table.Generate(root, report); err != nil {
		return fmt.Errorf("failed to print results table: %w", err)
	}

	summary := report.String()
	if report.Status() == types.StatusFailed {
		summary = ui.Red(summary)
	} else {
		summary = ui.Green(summary)
	}
	if _, err := fmt.Fprintln(f.out, summary); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}
	for _, title := range report.FailedTestTitles() {
		fmt.Fprintf(f.out, "  %s %s\n", ui.Red("✗"), title)
	}
	return nil
}

// formatDuration formats a duration as seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
