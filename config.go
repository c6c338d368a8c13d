package junction

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/flags"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// Config holds the application configuration
type Config struct {
	PlanFile       string        // Absolute path of the YAML plan
	TestDir        string        // Directory go test runs in
	GoBinary       string        // go toolchain used to run packages
	RunInterval    time.Duration // Interval between runs
	RunOnce        bool          // Exit after a single run
	Concurrency    int           // Packages executed at the same time
	DefaultTimeout time.Duration // go test timeout for packages without one
	LogDir         string        // Per-run event logs; empty disables them
	PrintTree      bool          // Print the execution tree after each run
	HealthzAddr    string        // Empty disables the healthz endpoint
	MetricsAddr    string        // Empty disables the metrics endpoint
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

	planFile, err := filepath.Abs(ctx.String(flags.Plan.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for plan '%s': %w", ctx.String(flags.Plan.Name), err)
	}
	testDir := ctx.String(flags.TestDir.Name)
	if testDir == "" {
		return nil, errors.New("test directory is required")
	}
	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		logDir, err = filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
	}

	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}
	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval must not be negative, got %s", runInterval)
	}

	var metricsAddr string
	if metricsCfg := opmetrics.ReadCLIConfig(ctx); metricsCfg.Enabled {
		metricsAddr = net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort))
	}

	return &Config{
		PlanFile:       planFile,
		TestDir:        absTestDir,
		GoBinary:       ctx.String(flags.GoBinary.Name),
		RunInterval:    runInterval,
		RunOnce:        runInterval == 0,
		Concurrency:    concurrency,
		DefaultTimeout: ctx.Duration(flags.DefaultTimeout.Name),
		LogDir:         logDir,
		PrintTree:      ctx.Bool(flags.PrintTree.Name),
		HealthzAddr:    ctx.String(flags.HealthzAddr.Name),
		MetricsAddr:    metricsAddr,
		Log:            log,
	}, nil
}
