package canary

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-canary/flags"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	SuiteFile      string        // Absolute path of the suite manifest
	Names          []string      // Only run tests with one of these names
	Tags           []string      // Only run tests carrying one of these tags
	Paths          []string      // Only run tests defined in a matching file
	Concise        bool          // Run silently and omit the summary
	Verbose        bool          // Narrate the lifecycle of every test
	Silent         bool          // Suppress the runner's own output
	RunInterval    time.Duration // Interval between test runs
	RunOnce        bool          // Indicates if the service should exit after one test run
	Watch          bool          // Re-run whenever the suite manifest changes
	LogDir         string        // Directory to store test logs
	DefaultTimeout time.Duration // Default timeout for test commands, can be overridden by the manifest
	Output         io.Writer     // Receives test output and results, stdout when nil
	Log            log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	suiteFile := ctx.String(flags.SuiteFile.Name)
	if suiteFile == "" {
		return nil, errors.New("suite file is required")
	}
	absSuiteFile, err := filepath.Abs(suiteFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for suite file '%s': %w", suiteFile, err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval must not be negative, got %v", runInterval)
	}
	watch := ctx.Bool(flags.Watch.Name)
	runOnce := runInterval == 0 && !watch

	// Get log directory, default to "logs" if not specified
	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	return &Config{
		SuiteFile:      absSuiteFile,
		Names:          ctx.StringSlice(flags.Names.Name),
		Tags:           ctx.StringSlice(flags.Tags.Name),
		Paths:          ctx.StringSlice(flags.Paths.Name),
		Concise:        ctx.Bool(flags.Concise.Name),
		Verbose:        ctx.Bool(flags.Verbose.Name),
		Silent:         ctx.Bool(flags.Silent.Name),
		RunInterval:    runInterval,
		RunOnce:        runOnce,
		Watch:          watch,
		LogDir:         logDir,
		DefaultTimeout: ctx.Duration(flags.DefaultTimeout.Name),
		Log:            log,
	}, nil
}
