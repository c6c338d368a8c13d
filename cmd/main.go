package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	junction "github.com/ethereum-optimism/infra/op-junction"
	"github.com/ethereum-optimism/infra/op-junction/exitcodes"
	"github.com/ethereum-optimism/infra/op-junction/flags"
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
	app := newApp()

	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error("Application failed", "message", err)
		shutdown()
		os.Exit(junction.ExitCode(err))
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-junction"
	app.Usage = "Runs go test plans and reports them as an execution tree"
	app.Description = "op-junction drives legacy go test runners and records every test's lifecycle"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), junction.ExitCode(err)))
		}
	}
	return app
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := junction.NewConfig(ctx, log)
	if err != nil {
		return nil, cli.Exit(junction.NewRuntimeError(fmt.Errorf("failed to create config: %w", err)).Error(), exitcodes.RuntimeErr)
	}
	cfg.Log.Debug("Config", "config", cfg)

	j, err := junction.New(cfg, Version, closeApp)
	if err != nil {
		return nil, junction.NewRuntimeError(fmt.Errorf("failed to create junction: %w", err))
	}
	return j, nil
}
