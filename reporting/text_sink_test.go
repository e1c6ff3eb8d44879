package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSummarySink(t *testing.T) {
	baseDir := t.TempDir()
	f := newFixture(t)
	report := GetReport(f.root)
	report.RunID = "run-42"
	report.Duration = 2 * time.Second

	sink := NewTextSummarySink(baseDir, nil)
	require.NoError(t, sink.Consume(f.root, report))
	require.NoError(t, sink.Complete("run-42"))

	runDir := filepath.Join(baseDir, RunDirectoryPrefix+"run-42")
	summary, err := os.ReadFile(filepath.Join(runDir, SummaryFilename))
	require.NoError(t, err)
	content := string(summary)
	assert.Contains(t, content, "Canary Test Results")
	assert.Contains(t, content, "Run ID:    run-42")
	assert.Contains(t, content, "Status:    FAILED")
	assert.Contains(t, content, "  X fail (1 error)")
	assert.Contains(t, content, `Error at "fail": expected 1 block`)
	assert.NotContains(t, content, "\x1b[")

	raw, err := os.ReadFile(filepath.Join(runDir, ReportFilename))
	require.NoError(t, err)
	var decoded TreeJSONResponse
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-42", decoded.RunID)

	assert.Error(t, sink.Complete("run-42"), "a run is only written once")
}

func TestTextSummarySink_StripsColors(t *testing.T) {
	text.EnableColors()
	defer text.DisableColors()

	f := newFixture(t)
	report := GetReport(f.root)
	report.RunID = "colored"

	content := FormatTextSummary(f.root, report)
	assert.NotContains(t, content, "\x1b[")
	assert.True(t, strings.Contains(content, "✓ pass"))
}

func TestTextSummarySink_RequiresRunID(t *testing.T) {
	sink := NewTextSummarySink(t.TempDir(), nil)
	f := newFixture(t)
	assert.Error(t, sink.Consume(f.root, GetReport(f.root)))
	assert.Error(t, sink.Complete("missing"))
}

func TestReportGenerator(t *testing.T) {
	f := newFixture(t)
	report := GetReport(f.root)
	report.RunID = "gen"

	var out strings.Builder
	require.NoError(t, NewReportGenerator(SummaryFormatter{}, NewStreamWriter(&out)).Generate(f.root, report))
	assert.Contains(t, out.String(), "Test Hierarchy:")

	path := filepath.Join(t.TempDir(), "table.txt")
	require.NoError(t, NewReportGenerator(NewTreeTableFormatter("Results", true), NewFileWriter(path)).Generate(f.root, report))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "Results")
}
