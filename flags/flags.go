package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-canary/runner"
	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_CANARY"

var (
	SuiteFile = &cli.StringFlag{
		Name:     "suite",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "SUITE"),
		Usage:    "Path to the suite manifest describing the tests to run (eg. 'suite.yaml' or 'suite.toml')",
	}
	Names = &cli.StringSliceFlag{
		Name:    "names",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NAMES"),
		Usage:   "Only run tests with one of these names. Tests run along with their parents and descendants.",
	}
	Tags = &cli.StringSliceFlag{
		Name:    "tags",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TAGS"),
		Usage:   "Only run tests carrying one of these tags",
	}
	Paths = &cli.StringSliceFlag{
		Name:    "paths",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PATHS"),
		Usage:   "Only run tests defined in files matching one of these paths or glob patterns",
	}
	Concise = &cli.BoolFlag{
		Name:    "concise",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCISE"),
		Usage:   "Run tests silently and only print the final counts",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VERBOSE"),
		Usage:   "Narrate the lifecycle of every test",
	}
	Silent = &cli.BoolFlag{
		Name:    "silent",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SILENT"),
		Usage:   "Suppress the runner's output. Results are still written to the log directory.",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Watch = &cli.BoolFlag{
		Name:    "watch",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WATCH"),
		Usage:   "Reload the suite and run it again whenever the manifest changes",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store test logs. Defaults to 'logs' if not specified.",
	}
	DefaultTimeout = &cli.DurationFlag{
		Name:    "default-timeout",
		Value:   runner.DefaultCommandTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DEFAULT_TIMEOUT"),
		Usage:   "Default timeout of a test command when the manifest does not set one",
	}
)

var requiredFlags = []cli.Flag{
	SuiteFile,
}

var optionalFlags = []cli.Flag{
	Names,
	Tags,
	Paths,
	Concise,
	Verbose,
	Silent,
	RunInterval,
	Watch,
	LogDir,
	DefaultTimeout,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
