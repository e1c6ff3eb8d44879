package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	pkgerrors "github.com/pkg/errors"
)

var _ CommandRunner = (*ExecRunner)(nil)

// Command describes one process run on behalf of a test or callback.
type Command struct {
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// CommandResult holds the outcome of a finished command.
type CommandResult struct {
	ExitCode  int
	Output    string
	Truncated bool
	Duration  time.Duration
}

// CommandRunner executes commands. A command that cannot be started, times
// out or exits non-zero returns an error.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (*CommandResult, error)
}

// ExecRunner runs commands as local processes.
type ExecRunner struct {
	log            log.Logger
	defaultTimeout time.Duration
	tailBytes      int
	output         io.Writer
}

// ExecRunnerOption configures an ExecRunner.
type ExecRunnerOption func(*ExecRunner)

// WithOutput copies the combined output of every command to w as it is
// produced.
func WithOutput(w io.Writer) ExecRunnerOption {
	return func(r *ExecRunner) { r.output = w }
}

// WithTailBytes limits how much output is retained per command.
func WithTailBytes(n int) ExecRunnerOption {
	return func(r *ExecRunner) { r.tailBytes = n }
}

// NewExecRunner creates a new command runner. defaultTimeout applies to
// commands without their own timeout; zero means no limit.
func NewExecRunner(logger log.Logger, defaultTimeout time.Duration, opts ...ExecRunnerOption) *ExecRunner {
	if logger == nil {
		logger = log.New()
	}
	r := &ExecRunner{
		log:            logger,
		defaultTimeout: defaultTimeout,
		tailBytes:      defaultOutputTailBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cmd and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*CommandResult, error) {
	if len(cmd.Args) == 0 {
		return nil, errors.New("command cannot be empty")
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	env := os.Environ()
	for k, v := range cmd.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	c.Env = telemetry.InstrumentEnvironment(ctx, env)

	tail := newTailBuffer(r.tailBytes)
	var out io.Writer = tail
	if r.output != nil {
		out = io.MultiWriter(tail, r.output)
	}
	c.Stdout = out
	c.Stderr = out

	r.log.Debug("Running command", "cmd", cmd.String(), "dir", cmd.Dir, "timeout", timeout)
	start := time.Now()
	runErr := c.Run()
	result := &CommandResult{
		ExitCode:  c.ProcessState.ExitCode(),
		Output:    string(bytes.TrimSpace(tail.Bytes())),
		Truncated: tail.Truncated(),
		Duration:  time.Since(start),
	}
	if runErr == nil {
		return result, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return result, pkgerrors.Errorf("command %q timed out after %v%s", cmd.String(), timeout, outputSuffix(result))
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return result, pkgerrors.Errorf("command %q exited with code %d%s", cmd.String(), exitErr.ExitCode(), outputSuffix(result))
	}
	return result, pkgerrors.Wrapf(runErr, "failed to run command %q", cmd.String())
}

// outputSuffix renders the last lines of the command's output for error
// messages.
func outputSuffix(result *CommandResult) string {
	if result.Output == "" {
		return ""
	}
	lines := strings.Split(result.Output, "\n")
	if len(lines) > maxErrorOutputLines {
		lines = lines[len(lines)-maxErrorOutputLines:]
	}
	return "\n" + strings.Join(lines, "\n")
}
