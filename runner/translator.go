package runner

import (
	"github.com/ethereum-optimism/infra/op-junction/legacy"
	"github.com/ethereum-optimism/infra/op-junction/types"
)

var _ legacy.Listener = (*runListenerAdapter)(nil)

// Report entry keys published by the adapter
const (
	ReportKeyStdout  = "stdout"
	ReportKeyFailure = "failure"
	ReportKeyIgnored = "ignored"
)

// runListenerAdapter translates legacy callbacks into lifecycle events on a
// testRun. Every callback maps to at most one started, finished or skipped
// event for the identifier the description resolves to.
type runListenerAdapter struct {
	run *testRun
}

func newRunListenerAdapter(run *testRun) *runListenerAdapter {
	return &runListenerAdapter{run: run}
}

func (a *runListenerAdapter) TestRunStarted(legacy.Description) {
	a.run.ensureRootStarted()
}

// TestRunFinished emits nothing; the adapter owns the root's terminal event
func (a *runListenerAdapter) TestRunFinished(result legacy.Result) {
	a.run.log.Debug("Legacy run finished",
		"run", result.RunCount,
		"failed", result.FailureCount,
		"assumptions", result.AssumptionFailureCount,
		"ignored", result.IgnoreCount,
		"duration", result.Duration)
}

func (a *runListenerAdapter) TestStarted(d legacy.Description) {
	id, isRoot := a.run.resolve(d)
	if isRoot {
		a.run.ensureRootStarted()
		return
	}
	a.run.start(a.run.state(id))
}

func (a *runListenerAdapter) TestFinished(d legacy.Description) {
	id, isRoot := a.run.resolve(d)
	if isRoot {
		return
	}
	st := a.run.state(id)
	if started, _ := a.run.status(st); !started {
		a.run.log.Debug("Finish without start, synthesizing start", "id", id.UniqueID)
		a.run.start(st)
	}
	a.run.finish(st, types.Successful())
}

func (a *runListenerAdapter) TestFailure(f legacy.Failure) {
	a.fail(f, types.Failed(f.Cause))
}

func (a *runListenerAdapter) TestAssumptionFailure(f legacy.Failure) {
	a.fail(f, types.Aborted(f.Cause))
}

func (a *runListenerAdapter) fail(f legacy.Failure, result types.ExecutionResult) {
	id, isRoot := a.run.resolve(f.Description)
	if isRoot {
		a.run.ensureRootStarted()
		a.run.log.Warn("Runner reported a failure for itself", "id", id.UniqueID, "result", result)
		a.run.listener.ReportingEntryPublished(id, types.NewReportEntry(ReportKeyFailure, result.String()))
		return
	}
	st := a.run.state(id)
	a.run.record(st, result)
	if started, skipped := a.run.status(st); !started && !skipped {
		// A failure before any start, e.g. a broken fixture: report it in full
		a.run.start(st)
		a.run.finish(st, result)
	}
}

func (a *runListenerAdapter) TestIgnored(d legacy.Description, reason string) {
	id, isRoot := a.run.resolve(d)
	if isRoot {
		a.run.ensureRootStarted()
		a.run.listener.ReportingEntryPublished(id, types.NewReportEntry(ReportKeyIgnored, reason))
		return
	}
	if !a.run.skip(a.run.state(id), reason) {
		a.run.log.Debug("Ignoring skip for an identifier already reported", "id", id.UniqueID)
	}
}

func (a *runListenerAdapter) TestOutput(d legacy.Description, output string) {
	id, isRoot := a.run.resolve(d)
	if !isRoot {
		if started, _ := a.run.status(a.run.state(id)); !started {
			id = a.run.root
		}
	}
	a.run.ensureRootStarted()
	a.run.listener.ReportingEntryPublished(id, types.NewReportEntry(ReportKeyStdout, output))
}
