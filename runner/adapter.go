// Package runner bridges legacy runners into the lifecycle protocol.
//
// The main components are:
//   - Adapter: drives one legacy runner to completion and emits lifecycle events for its subtree
//   - testRun: per-execution state, keyed through a run-scoped registry
//   - runListenerAdapter: translates legacy callbacks into started/finished/skipped events
//
// An Adapter guarantees that every identifier it starts is also finished, even
// when the legacy runner fails, panics or is interrupted through its context.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/legacy"
	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/metrics"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrRunnerPanic wraps a panic raised while driving a legacy runner
var ErrRunnerPanic = errors.New("legacy runner panicked")

// Adapter executes exactly one legacy runner. It holds no state across
// executions, so separate adapters can run concurrently.
type Adapter struct {
	plan   *types.TestPlan
	runner legacy.Runner
	log    log.Logger
	tracer trace.Tracer
}

// NewAdapter creates an adapter for r. plan is used to resolve the runner's
// descriptions to identifiers.
func NewAdapter(plan *types.TestPlan, r legacy.Runner, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &Adapter{
		plan:   plan,
		runner: r,
		log:    logger.New("runner", r.Description().Key()),
		tracer: otel.Tracer("legacy runner"),
	}
}

// Execute drives the runner and reports its subtree to l, bracketed by
// started(root) and finished(root). The root finishes SUCCESSFUL whenever the
// runner completes, whatever its tests did, and FAILED when the runner itself
// breaks down. Execute never returns an error; only listener contract
// violations escape as panics.
func (a *Adapter) Execute(ctx context.Context, root types.Identifier, l listener.ExecutionListener) {
	ctx, span := a.tracer.Start(ctx, fmt.Sprintf("runner %s", root.DisplayName))
	defer span.End()
	span.SetAttributes(attribute.String("junction.id", root.UniqueID))

	run := newTestRun(a.plan, root, a.runner.Description(), l, a.log)
	start := time.Now()
	err := a.drive(ctx, run)
	duration := time.Since(start)

	if err != nil {
		a.log.Warn("Legacy runner terminated abnormally", "id", root.UniqueID, "duration", duration, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "runner failed")
		metrics.RecordRunnerAbort(a.runner.Description().Key(), err)
		metrics.RecordRunnerDuration(a.runner.Description().Key(), types.StatusFailed, duration)
		run.abort(err)
		return
	}

	a.log.Debug("Legacy runner completed", "id", root.UniqueID, "duration", duration)
	metrics.RecordRunnerDuration(a.runner.Description().Key(), types.StatusSuccessful, duration)
	run.complete()
}

// drive runs the legacy runner on the calling goroutine. Panics raised by the
// runner are converted to errors; contract violations are re-raised.
func (a *Adapter) drive(ctx context.Context, run *testRun) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && errors.Is(e, types.ErrContractViolation) {
			panic(r)
		}
		err = fmt.Errorf("%w: %v", ErrRunnerPanic, r)
	}()

	core := legacy.NewCore()
	core.AddListener(newRunListenerAdapter(run))
	if _, err := core.Run(ctx, a.runner); err != nil {
		return err
	}
	return nil
}
