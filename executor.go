package canary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-canary/location"
	"github.com/ethereum-optimism/infra/op-canary/logging"
	"github.com/ethereum-optimism/infra/op-canary/registry"
	"github.com/ethereum-optimism/infra/op-canary/reporting"
	"github.com/ethereum-optimism/infra/op-canary/runner"
	"github.com/ethereum-optimism/infra/op-canary/tree"
)

// TestRun is the outcome of a single run of the suite.
type TestRun struct {
	Root   *tree.Node
	Report *reporting.Report
	LogDir string // directory holding the run's log files
}

// TestExecutor is responsible for running tests.
type TestExecutor interface {
	RunTests(ctx context.Context) (*TestRun, error)
}

// DefaultTestExecutor runs the registry's current tree through the runner and
// writes the run's log files.
type DefaultTestExecutor struct {
	registry *registry.Registry
	runner   *runner.Runner
	config   *Config
	json     *reporting.TreeJSONFormatter
	output   io.Writer
	logger   log.Logger

	mu   sync.Mutex
	runs int
}

// NewDefaultTestExecutor creates a new DefaultTestExecutor. Test output is
// written to config.Output.
func NewDefaultTestExecutor(reg *registry.Registry, config *Config) (*DefaultTestExecutor, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	resolver, err := location.NewModuleResolver(0)
	if err != nil {
		return nil, err
	}
	return &DefaultTestExecutor{
		registry: reg,
		runner:   runner.New(runner.Config{Log: config.Log}),
		config:   config,
		json:     reporting.NewTreeJSONFormatter(resolver),
		output:   output,
		logger:   config.Log,
	}, nil
}

// RunTests runs the suite once. Runs never overlap; the tree is reset
// before every run after the first one.
func (e *DefaultTestExecutor) RunTests(ctx context.Context) (*TestRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	root := e.registry.Root()
	if root == nil {
		return nil, NewRuntimeError(errors.New("no suite loaded"))
	}

	runID := uuid.New().String()
	fileLogger, err := logging.NewFileLogger(e.config.LogDir, runID, e.json)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
	}
	logFunc := fileLogger.Tee(e.print)

	// the previous run's log files are closed
	root.SetLogFunc(logFunc)
	if e.runs > 0 {
		root.Reset()
		root.ResetFilter()
	}
	e.runs++

	e.logger.Info("Running all tests...", "run_id", runID, "suite", root.Name(), "run", e.runs)
	report := e.runner.DoReport(ctx, root, runner.Options{
		Concise:   e.config.Concise,
		Silent:    e.config.Silent,
		Verbose:   e.config.Verbose,
		KeepAlive: true,
		Names:     e.config.Names,
		Tags:      e.config.Tags,
		Paths:     e.config.Paths,
		LogFunc:   logFunc,
		RunID:     runID,
	})

	run := &TestRun{Root: root, Report: report, LogDir: fileLogger.GetDirectory()}
	if err := fileLogger.LogReport(root, report); err != nil {
		e.logger.Error("Failed to write test logs", "run_id", runID, "error", err)
	}
	if err := fileLogger.Complete(runID); err != nil {
		e.logger.Error("Failed to complete test logs", "run_id", runID, "error", err)
	}

	if report.UnhandledError != nil {
		e.logger.Error("Unhandled error running tests", "run_id", runID, "error", report.UnhandledError)
		return run, NewRuntimeError(report.UnhandledError)
	}
	e.logger.Info("Test run completed", "run_id", runID, "status", report.Status(), "logs", run.LogDir)
	return run, nil
}

func (e *DefaultTestExecutor) print(message string) {
	fmt.Fprintln(e.output, message)
}
