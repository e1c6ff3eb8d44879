package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/ui"
)

// RunDirectoryPrefix names the per-run output directories.
const RunDirectoryPrefix = "testrun-"

const (
	SummaryFilename = "summary.log"
	ReportFilename  = "report.json"
	boxWidth        = 72
)

type consumedRun struct {
	root   *tree.Node
	report *Report
}

// TextSummarySink writes summary.log and report.json for each run into
// <baseDir>/testrun-<runID>/.
type TextSummarySink struct {
	baseDir string
	json    *TreeJSONFormatter

	mu   sync.Mutex
	runs map[string]consumedRun
}

// NewTextSummarySink creates a sink writing below baseDir.
func NewTextSummarySink(baseDir string, json *TreeJSONFormatter) *TextSummarySink {
	if json == nil {
		json = NewTreeJSONFormatter(nil)
	}
	return &TextSummarySink{
		baseDir: baseDir,
		json:    json,
		runs:    make(map[string]consumedRun),
	}
}

// Consume records a finished run for later output.
func (s *TextSummarySink) Consume(root *tree.Node, report *Report) error {
	if report.RunID == "" {
		return fmt.Errorf("report has no run ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[report.RunID] = consumedRun{root: root, report: report}
	return nil
}

// Complete writes the files for runID.
func (s *TextSummarySink) Complete(runID string) error {
	s.mu.Lock()
	run, ok := s.runs[runID]
	delete(s.runs, runID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no report consumed for run %s", runID)
	}

	outputDir := filepath.Join(s.baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	summaryFile := filepath.Join(outputDir, SummaryFilename)
	if err := NewReportGenerator(SummaryFormatter{}, NewFileWriter(summaryFile)).Generate(run.root, run.report); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}

	data, err := s.json.Format(run.root, run.report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outputDir, ReportFilename), data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// FormatTextSummary renders the plain text contents of summary.log.
func FormatTextSummary(root *tree.Node, report *Report) string {
	var buf strings.Builder
	stats := report.Stats()

	buf.WriteString(ui.BuildBoxHeader("Canary Test Results", boxWidth))
	buf.WriteString(ui.BuildBoxLine("Run ID:    "+report.RunID, boxWidth))
	buf.WriteString(ui.BuildBoxLine("Duration:  "+formatDuration(report.Duration), boxWidth))
	buf.WriteString(ui.BuildBoxLine(fmt.Sprintf("Tests:     %d", stats.Total), boxWidth))
	buf.WriteString(ui.BuildBoxLine(fmt.Sprintf("Passed:    %d", stats.Passed), boxWidth))
	buf.WriteString(ui.BuildBoxLine(fmt.Sprintf("Failed:    %d", stats.Failed), boxWidth))
	buf.WriteString(ui.BuildBoxLine(fmt.Sprintf("Skipped:   %d", stats.Skipped), boxWidth))
	buf.WriteString(ui.BuildBoxLine(fmt.Sprintf("Errors:    %d", stats.Errors), boxWidth))
	buf.WriteString(ui.BuildBoxLine(fmt.Sprintf("Pass Rate: %.1f%%", stats.PassRate), boxWidth))
	buf.WriteString(ui.BuildBoxLine("Status:    "+strings.ToUpper(string(report.Status())), boxWidth))
	buf.WriteString(ui.BuildBoxFooter(boxWidth))
	buf.WriteString("\n")

	if report.UnhandledError != nil {
		fmt.Fprintf(&buf, "Unhandled error: %v\n\n", report.UnhandledError)
	}

	buf.WriteString("Test Hierarchy:\n")
	buf.WriteString(strings.Repeat("-", 30) + "\n")
	buf.WriteString(stripansi.Strip(Summary(root, DefaultIndent, "")))
	buf.WriteString("\n")

	if len(report.Errors) > 0 {
		buf.WriteString("\nErrors:\n")
		buf.WriteString(strings.Repeat("-", 20) + "\n")
		for _, err := range report.Errors {
			if err.LocationSkipped() {
				continue
			}
			fmt.Fprintf(&buf, "Error at %q: %s\n", err.LocationTitle(), err.Stack())
		}
	}
	return buf.String()
}
