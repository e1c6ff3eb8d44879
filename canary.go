package canary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-canary/metrics"
	"github.com/ethereum-optimism/infra/op-canary/registry"
	"github.com/ethereum-optimism/infra/op-canary/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// canary implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &canary{}

// canary runs a test suite once, periodically or whenever its manifest
// changes.
type canary struct {
	config   *Config
	version  string
	registry *registry.Registry

	executor  TestExecutor
	formatter ResultFormatter
	reporter  MetricsReporter
	scheduler TestScheduler
	watcher   TestScheduler // nil unless in watch mode

	mu      sync.Mutex
	lastRun *TestRun

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*canary, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating canary with config",
		"suite", config.SuiteFile,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"watch", config.Watch,
		"logDir", config.LogDir)

	reg, err := registry.NewRegistry(registry.Config{
		Log:            config.Log,
		SuiteFile:      config.SuiteFile,
		DefaultTimeout: config.DefaultTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	executor, err := NewDefaultTestExecutor(reg, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create test executor: %w", err)
	}
	config.Log.Info("canary.New: created registry and test executor", "suite", reg.Root().Name())

	c := &canary{
		config:           config,
		version:          version,
		registry:         reg,
		executor:         executor,
		formatter:        NewConsoleResultFormatter(config.Log, config.Output),
		reporter:         NewDefaultMetricsReporter(),
		scheduler:        NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}
	if config.Watch {
		c.watcher = NewFileWatchTrigger(config.SuiteFile, DefaultWatchDebounce, config.Log)
	}
	return c, nil
}

// Start runs the suite and, unless in run-once mode, keeps re-running it.
// Start implements the cliapp.Lifecycle interface.
func (c *canary) Start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.config.Log.Error("Runtime error occurred", "error", r)
			err = NewRuntimeError(fmt.Errorf("panic: %v", r))
		}
	}()

	c.running.Store(true)
	switch {
	case c.config.RunOnce:
		c.config.Log.Info("Starting op-canary in run-once mode", "version", c.version)
	case c.config.Watch:
		c.config.Log.Info("Starting op-canary in watch mode", "version", c.version, "interval", c.config.RunInterval)
	default:
		c.config.Log.Info("Starting op-canary in continuous mode", "version", c.version, "interval", c.config.RunInterval)
	}

	c.scheduler.RegisterCallback(c.runTests)
	if err := c.scheduler.Start(ctx); err != nil {
		c.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if c.config.RunOnce {
		c.config.Log.Info("Tests completed, exiting (run-once mode)")
		if run := c.LastRun(); run != nil && run.Report.Status() == types.StatusFailed {
			c.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(run.Report)
		}
		go c.shutdownCallback(nil)
		return nil
	}

	if c.watcher != nil {
		c.watcher.RegisterCallback(c.reloadAndRun)
		if err := c.watcher.Start(ctx); err != nil {
			return NewRuntimeError(err)
		}
	}
	c.config.Log.Debug("op-canary started successfully")
	return nil
}

// runTests runs the suite once and publishes the results
func (c *canary) runTests(ctx context.Context) error {
	run, err := c.executor.RunTests(ctx)
	if run != nil {
		c.mu.Lock()
		c.lastRun = run
		c.mu.Unlock()

		if ferr := c.formatter.FormatResults(run.Root, run.Report); ferr != nil {
			c.config.Log.Warn("Failed to print results", "error", ferr)
		}
		c.reporter.ReportResults(run.Root, run.Report)
	}
	if err != nil {
		metrics.RecordErrorDetails("run", err)
		if !IsRuntimeError(err) {
			err = NewRuntimeError(err)
		}
		return err
	}
	return nil
}

// reloadAndRun reloads the manifest and runs the new tree. A manifest that
// fails to load leaves the previous tree in place and is not run.
func (c *canary) reloadAndRun(ctx context.Context) error {
	if err := c.registry.Reload(); err != nil {
		metrics.RecordErrorDetails("reload", err)
		return fmt.Errorf("failed to reload suite: %w", err)
	}
	return c.runTests(ctx)
}

// LastRun returns the most recent run, or nil before the first run.
func (c *canary) LastRun() *TestRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}

// Stop stops the op-canary service.
// Stop implements the cliapp.Lifecycle interface.
func (c *canary) Stop(ctx context.Context) error {
	c.config.Log.Info("Stopping op-canary")
	if !c.running.Swap(false) {
		c.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	var errs []error
	if err := c.scheduler.Stop(); err != nil {
		errs = append(errs, err)
	}
	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	c.config.Log.Info("op-canary stopped")
	return errors.Join(errs...)
}

// Stopped returns true if the op-canary service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (c *canary) Stopped() bool {
	return !c.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (c *canary) WaitForShutdown(ctx context.Context) error {
	if err := c.scheduler.WaitForShutdown(ctx); err != nil {
		return err
	}
	if c.watcher != nil {
		return c.watcher.WaitForShutdown(ctx)
	}
	return nil
}
