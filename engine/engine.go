// Package engine orchestrates a run: it brackets the run root with started and
// finished events and drives one runner.Adapter per target, sequentially or on
// a bounded worker pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/legacy"
	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/runner"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// MaxReasonableConcurrency is the worker count above which a warning is logged
const MaxReasonableConcurrency = 32

var (
	ErrNoPlan        = errors.New("execution request has no plan")
	ErrNoListener    = errors.New("execution request has no listener")
	ErrUnknownTarget = errors.New("target is not part of the plan")
)

// Target pairs a plan identifier with the legacy runner that executes it
type Target struct {
	ID     types.Identifier
	Runner legacy.Runner
}

// ExecutionRequest describes one run
type ExecutionRequest struct {
	RunID    string // Generated when empty
	Plan     *types.TestPlan
	Root     types.Identifier // The plan's root; started first and finished last
	Targets  []Target
	Listener listener.ExecutionListener
}

// Config configures an Engine
type Config struct {
	Concurrency int // <= 1 runs targets sequentially in order
	Log         log.Logger
}

// Engine executes requests. It keeps no state between runs.
type Engine struct {
	concurrency int
	log         log.Logger
	tracer      trace.Tracer
}

// New creates an engine
func New(cfg Config) *Engine {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Concurrency > MaxReasonableConcurrency {
		cfg.Log.Warn("Very high concurrency requested", "concurrency", cfg.Concurrency,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}
	return &Engine{
		concurrency: cfg.Concurrency,
		log:         cfg.Log.New("component", "engine"),
		tracer:      otel.Tracer("junction engine"),
	}
}

func (e *Engine) validate(req *ExecutionRequest) error {
	if req.Plan == nil {
		return ErrNoPlan
	}
	if req.Listener == nil {
		return ErrNoListener
	}
	if !req.Plan.Contains(req.Root.UniqueID) {
		return fmt.Errorf("%w: root %s", ErrUnknownTarget, req.Root.UniqueID)
	}
	for _, t := range req.Targets {
		if !req.Plan.Contains(t.ID.UniqueID) {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, t.ID.UniqueID)
		}
		if t.Runner == nil {
			return fmt.Errorf("target %s has no runner", t.ID.UniqueID)
		}
	}
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	return nil
}

// Execute emits started(root), runs every target through its own adapter and
// emits finished(root, SUCCESSFUL). Target outcomes never change the root's
// result. An error is returned only for invalid requests, before any event.
func (e *Engine) Execute(ctx context.Context, req ExecutionRequest) error {
	if err := e.validate(&req); err != nil {
		return err
	}
	return e.execute(ctx, req)
}

func (e *Engine) execute(ctx context.Context, req ExecutionRequest) error {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("run %s", req.Plan.Label()))
	defer span.End()
	span.SetAttributes(
		attribute.String("junction.run_id", req.RunID),
		attribute.Int("junction.targets", len(req.Targets)),
	)

	start := time.Now()
	logger := e.log.New("run_id", req.RunID)
	logger.Info("Starting run", "plan", req.Plan.Label(), "targets", len(req.Targets), "concurrency", e.concurrency)

	req.Listener.ExecutionStarted(req.Root)
	if e.concurrency > 1 && len(req.Targets) > 1 {
		e.executeParallel(ctx, logger, req)
	} else {
		for _, t := range req.Targets {
			e.executeTarget(ctx, logger, req, t)
		}
	}
	req.Listener.ExecutionFinished(req.Root, types.Successful())

	logger.Info("Run completed", "duration", time.Since(start))
	return nil
}

// Run brackets Execute with RunStarted(plan label) and RunFinished on the
// request's listener.
func (e *Engine) Run(ctx context.Context, req ExecutionRequest) error {
	if err := e.validate(&req); err != nil {
		return err
	}
	rl := listener.AsRunListener(req.Listener)
	rl.RunStarted(req.Plan.Label())
	defer rl.RunFinished()
	return e.execute(ctx, req)
}

func (e *Engine) executeTarget(ctx context.Context, logger log.Logger, req ExecutionRequest, t Target) {
	logger.Debug("Executing target", "id", t.ID.UniqueID)
	runner.NewAdapter(req.Plan, t.Runner, logger).Execute(ctx, t.ID, req.Listener)
}

// executeParallel runs targets with at most e.concurrency adapters in flight.
// Every target is handed to a worker even after ctx is cancelled so each one
// reaches a terminal state; cancelled runners fail fast.
func (e *Engine) executeParallel(ctx context.Context, logger log.Logger, req ExecutionRequest) {
	workers := min(e.concurrency, len(req.Targets))
	logger.Debug("Executing targets in parallel", "workers", workers)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, t := range req.Targets {
		g.Go(func() error {
			e.executeTarget(ctx, logger, req, t)
			return nil
		})
	}
	_ = g.Wait()
}
