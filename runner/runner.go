package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-canary/exitcodes"
	"github.com/ethereum-optimism/infra/op-canary/pathutil"
	"github.com/ethereum-optimism/infra/op-canary/reporting"
	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/ui"
)

// Options controls a single DoReport call. The zero value runs every test,
// prints the summary and terminates the process with the run's status.
type Options struct {
	// Concise runs the tree silently and omits the summary.
	Concise bool
	// Silent suppresses the runner's own log lines.
	Silent bool
	// Verbose runs the tree in verbose mode. Ignored when Concise is set.
	Verbose bool
	// KeepAlive only returns the status instead of exiting the process.
	KeepAlive bool

	Filter tree.Filter
	Names  []string
	Tags   []string
	Paths  []string

	// LogFunc replaces the log function of the whole tree.
	LogFunc tree.LogFunc

	// RunID identifies the run in the report. A random ID is used when empty.
	RunID string
}

// Config holds configuration for creating a new runner
type Config struct {
	Log log.Logger
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
}

// Runner runs a test tree and reports on the outcome.
type Runner struct {
	log    log.Logger
	exit   func(code int)
	tracer trace.Tracer
}

// New creates a new runner instance
func New(cfg Config) *Runner {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	return &Runner{
		log:    cfg.Log,
		exit:   cfg.Exit,
		tracer: otel.Tracer("test runner"),
	}
}

// DoReport expands, filters and runs root, then logs a summary of the
// outcome. Unless opts.KeepAlive is set the process exits with
// exitcodes.Success or exitcodes.TestFailure afterwards.
func (r *Runner) DoReport(ctx context.Context, root *tree.Node, opts Options) (report *reporting.Report) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "canary run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	logf := func(message string) {
		if !opts.Silent {
			root.LogFunc()(message)
		}
	}

	defer func() {
		if v := recover(); v != nil {
			err := unhandledError(v)
			r.log.Error("Unhandled error while running tests", "run_id", runID, "err", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "unhandled error")

			logf(ui.Red("Encountered an unhandled error while running tests."))
			logf(ui.Red(fmt.Sprintf("%+v", err)))
			logf(ui.Red("Status: Failed"))
			if !opts.KeepAlive {
				root.LogVerbose("Test runner failed: Exiting with a nonzero status code.")
				r.exit(exitcodes.TestFailure)
			}
			report = &reporting.Report{
				RunID:          runID,
				UnhandledError: err,
				StartTime:      start,
				Duration:       time.Since(start),
			}
		}
	}()

	if opts.LogFunc != nil {
		root.SetLogFunc(opts.LogFunc)
	}
	logf("Running tests via Canary...")
	if opts.Concise {
		root.Silent()
	} else if opts.Verbose {
		root.Verbose()
	}

	root.ExpandGroups(ctx)

	if filter := r.buildFilter(opts, logf); filter != nil {
		root.ApplyFilter(ctx, filter)
	}

	root.Run(ctx)

	root.LogVerbose("Getting a report...")
	report = reporting.GetReport(root)
	report.RunID = runID
	report.StartTime = start
	report.Duration = time.Since(start)

	total := report.Total()
	logf(fmt.Sprintf("Finished running %d tests.", total))
	if n := len(report.Errors); n == 1 {
		logf(ui.Red("Encountered 1 error."))
	} else if n > 1 {
		logf(ui.Red(fmt.Sprintf("Encountered %d errors.", n)))
	}

	if !opts.Concise {
		root.LogVerbose("Getting a text summary...")
		logf(reporting.Summary(root, reporting.DefaultIndent, ""))
		root.LogVerbose("Showing all errors...")
		for _, testErr := range report.Errors {
			if testErr.LocationSkipped() {
				continue
			}
			if title := testErr.LocationTitle(); title != "" {
				logf(ui.Red(fmt.Sprintf("Error at %q: %s", title, testErr.Stack())))
			} else {
				logf(ui.Red("Error: " + testErr.Stack()))
			}
		}
	}

	passed, skipped, failed := len(report.Passed), len(report.Skipped), len(report.Failed)
	if passed == total {
		logf(ui.Green(fmt.Sprintf("%d of %d tests passed.", total, total)))
	} else if passed > 0 {
		logf(fmt.Sprintf("%d of %d tests %s.", passed, total, ui.Green("passed")))
	}
	if skipped > 0 {
		logf(fmt.Sprintf("%d of %d tests %s.", skipped, total, ui.Yellow("skipped")))
	}

	span.SetAttributes(
		attribute.Int("tests.total", total),
		attribute.Int("tests.passed", passed),
		attribute.Int("tests.failed", failed),
		attribute.Int("tests.skipped", skipped),
	)
	r.log.Info("Finished test run", "run_id", runID, "status", report.Status(),
		"total", total, "passed", passed, "failed", failed, "skipped", skipped,
		"errors", len(report.Errors), "duration", report.Duration)

	if failed > 0 {
		span.SetStatus(codes.Error, "tests failed")
		logf(fmt.Sprintf("%d of %d tests %s.", failed, total, ui.Red("failed")))
		logf(ui.Red("Status: Failed"))
		if !opts.KeepAlive {
			root.LogVerbose("Some tests failed: Exiting with a nonzero status code.")
			r.exit(exitcodes.TestFailure)
		}
	} else {
		logf(ui.Green("Status: OK"))
		if !opts.KeepAlive {
			root.LogVerbose("Tests ran without errors: Exiting with a zero status code.")
			r.exit(exitcodes.Success)
		}
	}
	return report
}

// buildFilter combines the filter criteria of opts, announcing each one.
// It returns nil when no criterion was given.
func (r *Runner) buildFilter(opts Options, logf func(string)) tree.Filter {
	var filters []tree.Filter
	if opts.Filter != nil {
		logf("Filtering tests by a provided filter function.")
		filters = append(filters, opts.Filter)
	}
	if len(opts.Names) > 0 {
		logf(fmt.Sprintf("Filtering tests by name: %s", quoteList(opts.Names)))
		filters = append(filters, tree.ByName(opts.Names...))
	}
	if len(opts.Tags) > 0 {
		logf(fmt.Sprintf("Filtering tests by tags: %s", quoteList(opts.Tags)))
		filters = append(filters, tree.ByTag(opts.Tags...))
	}
	if len(opts.Paths) > 0 {
		paths := make([]string, len(opts.Paths))
		for i, p := range opts.Paths {
			paths[i] = pathutil.Normalize(p)
		}
		logf(fmt.Sprintf("Filtering tests by file paths: %s", quoteList(paths)))
		filters = append(filters, tree.ByPath(paths...))
	}
	if len(filters) == 0 {
		return nil
	}
	return tree.AnyOf(filters...)
}

// quoteList renders values as "a", "b".
func quoteList(values []string) string {
	return `"` + strings.Join(values, `", "`) + `"`
}

func unhandledError(v any) error {
	if err, ok := v.(error); ok {
		return pkgerrors.WithStack(err)
	}
	return pkgerrors.Errorf("%v", v)
}
