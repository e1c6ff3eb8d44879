package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum-optimism/infra/op-canary/tree"
)

// ReportFormatter defines the interface for different report output formats
type ReportFormatter interface {
	Format(root *tree.Node, report *Report) (string, error)
}

// ReportWriter defines the interface for writing reports to various destinations
type ReportWriter interface {
	Write(content string) error
}

// FileWriter writes reports to a file
type FileWriter struct {
	path string
}

// NewFileWriter creates a new file writer
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

func (fw *FileWriter) Write(content string) error {
	return os.WriteFile(fw.path, []byte(content), 0644)
}

// StreamWriter writes reports to an io.Writer
type StreamWriter struct {
	w io.Writer
}

// NewStreamWriter creates a writer for w
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

func (sw *StreamWriter) Write(content string) error {
	_, err := io.WriteString(sw.w, content)
	return err
}

// SummaryFormatter renders the plain text run summary.
type SummaryFormatter struct{}

func (SummaryFormatter) Format(root *tree.Node, report *Report) (string, error) {
	return FormatTextSummary(root, report), nil
}

// ReportGenerator combines a formatter and a writer
type ReportGenerator struct {
	formatter ReportFormatter
	writer    ReportWriter
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(formatter ReportFormatter, writer ReportWriter) *ReportGenerator {
	return &ReportGenerator{
		formatter: formatter,
		writer:    writer,
	}
}

// Generate formats a finished run and writes it out
func (rg *ReportGenerator) Generate(root *tree.Node, report *Report) error {
	content, err := rg.formatter.Format(root, report)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	if err := rg.writer.Write(content); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
