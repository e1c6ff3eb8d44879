package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-canary/reporting"
	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/types"
)

const (
	RunDirectoryPrefix = reporting.RunDirectoryPrefix
	OutputLogFilename  = "output.log"
	AllLogsFilename    = "all.log"
)

// ResultSink is an interface for different ways of consuming test results
type ResultSink interface {
	// Consume processes a finished run
	Consume(root *tree.Node, report *reporting.Report) error
	// Complete is called when the run's results have been consumed
	Complete(runID string) error
}

// FileLogger handles writing test output to files
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of the current run
	failedDir    string                // Directory for failed tests
	allLogsFile  string                // Path to the combined log file
	outputFile   string                // Path to the captured tree output
	mu           sync.Mutex            // Protects concurrent file operations
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string                // Current run ID
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(filepath string) (*AsyncFile, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filepath, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the directory layout for runID below baseDir and
// registers the default sinks.
func NewFileLogger(baseDir string, runID string, json *reporting.TreeJSONFormatter) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(logDir, "failed")

	for _, dir := range []string{baseDir, logDir, failedDir, filepath.Join(logDir, "passed")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    failedDir,
		allLogsFile:  filepath.Join(logDir, AllLogsFilename),
		outputFile:   filepath.Join(logDir, OutputLogFilename),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}
	logger.sinks = []ResultSink{
		&AllLogsFileSink{logger: logger},
		&PerTestFileSink{logger: logger},
		reporting.NewTextSummarySink(baseDir, json),
	}
	return logger, nil
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

// closeAllWriters closes all async writers
func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// Tee returns a log function writing every message, with colors stripped,
// to output.log before passing it on to next.
func (l *FileLogger) Tee(next tree.LogFunc) tree.LogFunc {
	return func(message string) {
		if writer, err := l.getAsyncWriter(l.outputFile); err == nil {
			_ = writer.Write([]byte(stripansi.Strip(message) + "\n"))
		}
		if next != nil {
			next(message)
		}
	}
}

// AddSink registers an additional consumer of the run's report.
func (l *FileLogger) AddSink(sink ResultSink) {
	l.sinks = append(l.sinks, sink)
}

// LogReport feeds a finished run to all registered sinks
func (l *FileLogger) LogReport(root *tree.Node, report *reporting.Report) error {
	if report.RunID != l.runID {
		return fmt.Errorf("report for run %q logged to run %q", report.RunID, l.runID)
	}
	for _, sink := range l.sinks {
		if err := sink.Consume(root, report); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	defer l.closeAllWriters()

	for _, sink := range l.sinks {
		if err := sink.Complete(runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	return nil
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetDirectory returns the directory of the current run
func (l *FileLogger) GetDirectory() string {
	return l.logDir
}

// GetFailedDir returns the directory containing logs for failed tests
func (l *FileLogger) GetFailedDir() string {
	return l.failedDir
}

// GetAllLogsFile returns the path to the all logs file
func (l *FileLogger) GetAllLogsFile() string {
	return l.allLogsFile
}

// GetOutputFile returns the path to the captured tree output
func (l *FileLogger) GetOutputFile() string {
	return l.outputFile
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	s = strings.ReplaceAll(s, " => ", "__")
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	s = replacer.Replace(s)
	s = strings.ReplaceAll(s, "...", "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// AllLogsFileSink writes every test of a run to a single "all.log" file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume writes one entry per node to the all.log file
func (s *AllLogsFileSink) Consume(root *tree.Node, report *reporting.Report) error {
	writer, err := s.logger.getAsyncWriter(s.logger.allLogsFile)
	if err != nil {
		return err
	}

	var content strings.Builder
	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		writeEntry(&content, n)
		for _, child := range n.Children() {
			walk(child)
		}
	}
	walk(root)
	return writer.Write([]byte(content.String()))
}

func writeEntry(content *strings.Builder, n *tree.Node) {
	fmt.Fprintf(content, "\n")
	fmt.Fprintf(content, "┌─────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(content, "│ TEST: %-61s │\n", truncateString(displayTitle(n), 61))
	fmt.Fprintf(content, "├─────────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(content, "│ Status:   %-57s │\n", n.StatusString())
	fmt.Fprintf(content, "│ Location: %-57s │\n", truncateString(n.Location().String(), 57))
	fmt.Fprintf(content, "│ Duration: %-57s │\n", n.Duration())
	fmt.Fprintf(content, "│ Time:     %-57s │\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(content, "└─────────────────────────────────────────────────────────────────────┘\n\n")

	for _, err := range n.Errors() {
		fmt.Fprintf(content, "ERROR at %s:\n", err.LocationTitle())
		fmt.Fprintf(content, "~~~~~~\n")
		fmt.Fprintf(content, "%s\n\n", indentText(err.Stack(), "  "))
	}
}

// displayTitle names a node in file headers. The root has an empty title.
func displayTitle(n *tree.Node) string {
	if n.Parent() == nil {
		return n.Name()
	}
	return n.Title()
}

// indentText adds indentation to each line of text for better readability
func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// PerTestFileSink writes a dedicated file for every test without children
// into the passed or failed directory of the run.
type PerTestFileSink struct {
	logger *FileLogger
}

// Consume writes a log file per leaf node. Skipped tests get no file.
func (s *PerTestFileSink) Consume(root *tree.Node, report *reporting.Report) error {
	var walk func(n *tree.Node) error
	walk = func(n *tree.Node) error {
		children := n.Children()
		if len(children) == 0 {
			return s.writeTestFile(n)
		}
		for _, child := range children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

func (s *PerTestFileSink) writeTestFile(n *tree.Node) error {
	var dir string
	switch n.StatusString() {
	case types.StatusPassed:
		dir = filepath.Join(s.logger.logDir, "passed")
	case types.StatusFailed:
		dir = s.logger.failedDir
	default:
		return nil
	}

	var content strings.Builder
	writeEntry(&content, n)
	path := filepath.Join(dir, safeFilename(displayTitle(n))+".log")
	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write test log file %s: %w", path, err)
	}
	return nil
}

// Complete is a no-op for PerTestFileSink
func (s *PerTestFileSink) Complete(runID string) error {
	return nil
}
