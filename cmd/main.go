package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	canary "github.com/ethereum-optimism/infra/op-canary"
	"github.com/ethereum-optimism/infra/op-canary/exitcodes"
	"github.com/ethereum-optimism/infra/op-canary/flags"
	"github.com/ethereum-optimism/infra/op-canary/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-canary"
	app.Usage = "Canary test runner service"
	app.Description = "op-canary runs a hierarchical suite of checks once, on an interval or whenever the suite changes"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err != nil {
			cli.HandleExitCoder(exitCoder(err))
		}
	}

	configureColors()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start server
	svc := service.New(service.DefaultConfig())
	if err := svc.Start(ctx); err != nil {
		log.Warn("Failed to start service, continuing without it", "err", err)
	} else {
		defer func() {
			if err := svc.Shutdown(context.Background()); err != nil {
				log.Warn("Failed to shut down service", "err", err)
			}
		}()
	}

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// configureColors turns off colored output when NO_COLOR is set.
func configureColors() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		text.DisableColors()
	}
}

// exitCoder maps an application error onto its exit code.
func exitCoder(err error) cli.ExitCoder {
	var coder cli.ExitCoder
	switch {
	case errors.As(err, &coder):
		return coder
	case canary.IsRuntimeError(err):
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	case canary.IsTestFailureError(err):
		return cli.Exit(err.Error(), exitcodes.TestFailure)
	default:
		// Unclassified errors count as failures
		return cli.Exit(err.Error(), exitcodes.TestFailure)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := canary.NewConfig(ctx, log)
	if err != nil {
		return nil, canary.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	c, err := canary.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, canary.NewRuntimeError(fmt.Errorf("failed to create canary: %w", err))
	}

	return c, nil
}
