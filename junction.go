// Package junction runs YAML test plans through legacy go test runners and
// reports them as lifecycle events, an execution tree and a summary.
package junction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-junction/discovery"
	"github.com/ethereum-optimism/infra/op-junction/engine"
	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/logging"
	"github.com/ethereum-optimism/infra/op-junction/metrics"
	"github.com/ethereum-optimism/infra/op-junction/service"
	"github.com/ethereum-optimism/infra/op-junction/tree"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/google/uuid"
)

var _ cliapp.Lifecycle = (*Junction)(nil)

// RunReport is the outcome of one run
type RunReport struct {
	RunID   string
	Summary listener.Summary
	Tree    string
	LogDir  string // Empty when event logs are disabled
}

// Junction implements cliapp.Lifecycle around a Scheduler
type Junction struct {
	config    *Config
	version   string
	plan      *discovery.PlanConfig
	engine    *engine.Engine
	scheduler *Scheduler
	service   *service.Service
	out       io.Writer

	// discover is replaced in tests to avoid spawning go test
	discover func(*discovery.PlanConfig, discovery.Config) (*discovery.Result, error)

	mu   sync.Mutex
	last *RunReport

	started          atomic.Bool
	shutdownCallback func(error)
}

// New loads the plan file and prepares the engine. Nothing runs until Start.
func New(config *Config, version string, shutdownCallback func(error)) (*Junction, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	config.Log.Debug("Creating junction with config",
		"plan", config.PlanFile,
		"testDir", config.TestDir,
		"runInterval", config.RunInterval,
		"concurrency", config.Concurrency)

	plan, err := discovery.LoadPlanConfig(config.PlanFile)
	if err != nil {
		return nil, err
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	return &Junction{
		config:    config,
		version:   version,
		plan:      plan,
		engine:    engine.New(engine.Config{Concurrency: config.Concurrency, Log: config.Log}),
		scheduler: NewScheduler(config.RunInterval, config.Log),
		service: service.New(service.Config{
			HealthzAddr: config.HealthzAddr,
			MetricsAddr: config.MetricsAddr,
			Log:         config.Log,
		}),
		out:              os.Stdout,
		discover:         discovery.Discover,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start serves the auxiliary endpoints and performs the first run. In
// run-once mode the run's outcome is returned: a TestFailureError when tests
// failed, a RuntimeError when the run could not be performed.
func (j *Junction) Start(ctx context.Context) error {
	if !j.started.CompareAndSwap(false, true) {
		return errors.New("junction already started")
	}
	if err := j.service.Start(); err != nil {
		return NewRuntimeError(err)
	}

	if j.config.RunOnce {
		j.config.Log.Info("Starting op-junction in run-once mode", "version", j.version)
	} else {
		j.config.Log.Info("Starting op-junction in continuous mode", "version", j.version, "interval", j.config.RunInterval)
	}

	if err := j.scheduler.Start(ctx, j.runScheduled); err != nil {
		return err
	}
	if !j.config.RunOnce {
		return nil
	}

	report := j.LastReport()
	if report != nil && report.Summary.HasFailures() {
		j.config.Log.Warn("Run completed with failures", "run_id", report.RunID)
		return NewTestFailureError(report.RunID, report.Summary)
	}
	go j.shutdownCallback(nil)
	return nil
}

func (j *Junction) runScheduled(ctx context.Context) error {
	_, err := j.Run(ctx)
	return err
}

// Run performs one run of the plan. Any error returned is a RuntimeError;
// test failures are reported through the summary.
func (j *Junction) Run(ctx context.Context) (report *RunReport, err error) {
	runID := uuid.New().String()
	logger := j.config.Log.New("run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			err = NewRuntimeError(fmt.Errorf("run %s panicked: %v", runID, r))
			logger.Error("Run aborted", "error", r)
			metrics.RecordErrorDetails("run panicked", err)
		}
	}()

	result, err := j.discover(j.plan, discovery.Config{
		WorkDir:        j.config.TestDir,
		GoBinary:       j.config.GoBinary,
		DefaultTimeout: j.config.DefaultTimeout,
		Log:            logger,
	})
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to discover plan: %w", err))
	}

	var treeOut io.Writer
	if j.config.PrintTree {
		treeOut = j.out
	}
	recorder := tree.NewRecorder(treeOut, tree.WithLogger(logger))
	summary := listener.NewSummaryListener()
	fanout := listener.NewMulticast(
		recorder,
		summary,
		listener.NewLoggingListener(logger),
		metrics.NewListener(runID),
	)

	var eventLog *logging.EventLog
	if j.config.LogDir != "" {
		eventLog, err = logging.NewEventLog(j.config.LogDir, runID, logger)
		if err != nil {
			return nil, NewRuntimeError(err)
		}
		defer eventLog.Close() //nolint:errcheck
		fanout.Add(eventLog)
	}

	req := result.Request(runID)
	req.Listener = fanout
	if err := j.engine.Run(ctx, req); err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to execute plan: %w", err))
	}

	report = &RunReport{
		RunID:   runID,
		Summary: summary.Summary(),
		Tree:    recorder.String(),
	}
	if eventLog != nil {
		report.LogDir = eventLog.Dir()
		if err := eventLog.WriteTree(report.Tree); err != nil {
			logger.Warn("Failed to write execution tree", "error", err)
		}
		if err := eventLog.Err(); err != nil {
			logger.Warn("Event log is incomplete", "error", err)
		}
	}

	if err := NewConsoleFormatter(j.out, logger).Format(runID, report.Summary); err != nil {
		logger.Warn("Failed to print results", "error", err)
	}
	logger.Info("Run completed",
		"tests", report.Summary.Total,
		"failed", report.Summary.Failed,
		"aborted", report.Summary.Aborted,
		"skipped", report.Summary.Skipped,
		"duration", report.Summary.Duration())

	j.mu.Lock()
	j.last = report
	j.mu.Unlock()
	return report, nil
}

// LastReport returns the report of the most recent completed run
func (j *Junction) LastReport() *RunReport {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Stop stops scheduling, waits for the scheduler and shuts the endpoints down
func (j *Junction) Stop(ctx context.Context) error {
	j.config.Log.Info("Stopping op-junction")
	j.scheduler.Stop()
	err := j.scheduler.Wait(ctx)
	j.service.Shutdown(ctx)
	j.config.Log.Info("op-junction stopped")
	return err
}

// Stopped returns true once the scheduler no longer runs
func (j *Junction) Stopped() bool {
	return j.scheduler.Stopped()
}
