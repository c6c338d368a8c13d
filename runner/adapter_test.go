package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum-optimism/infra/op-junction/legacy"
	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pkg = "example.com/pkg"

// scriptedRunner replays a fixed sequence of legacy callbacks
type scriptedRunner struct {
	script func(ctx context.Context, n *legacy.Notifier) error
}

func (s *scriptedRunner) Description() legacy.Description {
	return legacy.SuiteDescription(pkg)
}

func (s *scriptedRunner) Run(ctx context.Context, n *legacy.Notifier) error {
	return s.script(ctx, n)
}

// eventLog records lifecycle events by display name
type eventLog struct {
	mu      sync.Mutex
	events  []string
	results map[string]types.ExecutionResult
	ids     map[string]types.Identifier
}

func newEventLog() *eventLog {
	return &eventLog{results: make(map[string]types.ExecutionResult), ids: make(map[string]types.Identifier)}
}

func (e *eventLog) add(format string, args ...interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, fmt.Sprintf(format, args...))
}

func (e *eventLog) ExecutionStarted(id types.Identifier) {
	e.mu.Lock()
	e.ids[id.DisplayName] = id
	e.mu.Unlock()
	e.add("started %s", id.DisplayName)
}

func (e *eventLog) ExecutionFinished(id types.Identifier, result types.ExecutionResult) {
	e.mu.Lock()
	e.results[id.DisplayName] = result
	e.mu.Unlock()
	e.add("finished %s %s", id.DisplayName, result.Status)
}

func (e *eventLog) ExecutionSkipped(id types.Identifier, reason string) {
	e.add("skipped %s %s", id.DisplayName, reason)
}

func (e *eventLog) ReportingEntryPublished(id types.Identifier, entry types.ReportEntry) {
	var kv []string
	for _, v := range entry.Values() {
		kv = append(kv, v.Key+"="+v.Value)
	}
	e.add("report %s %s", id.DisplayName, strings.Join(kv, ","))
}

func testPlan(t *testing.T) (*types.TestPlan, types.Identifier) {
	rootUID := types.Segment("package", pkg)
	plan, err := types.NewPlanBuilder("plan").
		Add(types.Identifier{UniqueID: rootUID, DisplayName: "pkg", Kind: types.KindContainer, Source: pkg}).
		Add(types.Identifier{UniqueID: types.AppendSegment(rootUID, "test", "TestA"), DisplayName: "TestA", ParentID: rootUID, Source: pkg + "::TestA"}).
		Add(types.Identifier{UniqueID: types.AppendSegment(rootUID, "test", "TestB"), DisplayName: "TestB", ParentID: rootUID, Source: pkg + "::TestB"}).
		Build()
	require.NoError(t, err)
	root, ok := plan.Get(rootUID)
	require.True(t, ok)
	return plan, root
}

func execute(t *testing.T, script func(ctx context.Context, n *legacy.Notifier) error) *eventLog {
	return executeCtx(t, context.Background(), script)
}

func executeCtx(t *testing.T, ctx context.Context, script func(ctx context.Context, n *legacy.Notifier) error) *eventLog {
	plan, root := testPlan(t)
	events := newEventLog()
	adapter := NewAdapter(plan, &scriptedRunner{script: script}, log.NewLogger(log.DiscardHandler()))
	adapter.Execute(ctx, root, events)
	return events
}

func desc(test string) legacy.Description {
	return legacy.TestDescription(pkg, test)
}

func TestExecuteRootSuccessfulRegardlessOfTests(t *testing.T) {
	events := execute(t, func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestA"))
		n.FireTestFailure(legacy.Failure{Description: desc("TestA"), Cause: errors.New("boom")})
		n.FireTestFinished(desc("TestA"))
		n.FireTestStarted(desc("TestB"))
		n.FireTestAssumptionFailure(legacy.Failure{Description: desc("TestB"), Cause: legacy.ErrAssumption})
		n.FireTestFinished(desc("TestB"))
		return nil
	})

	assert.Equal(t, []string{
		"started pkg",
		"started TestA",
		"finished TestA FAILED",
		"started TestB",
		"finished TestB ABORTED",
		"finished pkg SUCCESSFUL",
	}, events.events)
	assert.EqualError(t, events.results["TestA"].Cause, "boom")
}

func TestExecuteRunnerErrorFailsStartedTestAndRoot(t *testing.T) {
	boom := errors.New("runner exploded")
	events := execute(t, func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestA"))
		return boom
	})

	assert.Equal(t, []string{
		"started pkg",
		"started TestA",
		"finished TestA FAILED",
		"finished pkg FAILED",
	}, events.events)
	assert.ErrorIs(t, events.results["TestA"].Cause, boom)
	assert.ErrorIs(t, events.results["pkg"].Cause, boom)
	assert.NotContains(t, events.ids, "TestB", "untouched siblings receive no events")
}

func TestExecutePackageFailureFailsRun(t *testing.T) {
	plan, root := testPlan(t)
	summary := listener.NewSummaryListener()
	adapter := NewAdapter(plan, &scriptedRunner{script: func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestFast"))
		n.FireTestFinished(desc("TestFast"))
		n.FireTestStarted(desc("TestSlow"))
		return fmt.Errorf("%w: %s: panic: test timed out after 1s", legacy.ErrPackageFailed, pkg)
	}}, log.NewLogger(log.DiscardHandler()))

	summary.RunStarted("plan")
	adapter.Execute(context.Background(), root, summary)
	summary.RunFinished()

	got := summary.Summary()
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 0, got.Aborted)
	assert.Len(t, got.ContainerFailures, 1)
	assert.True(t, got.HasFailures())
}

func TestExecuteRunnerErrorBeforeAnyCallback(t *testing.T) {
	events := execute(t, func(context.Context, *legacy.Notifier) error {
		return legacy.ErrBuildFailed
	})
	assert.Equal(t, []string{"started pkg", "finished pkg FAILED"}, events.events)
	assert.ErrorIs(t, events.results["pkg"].Cause, legacy.ErrBuildFailed)
}

func TestExecuteRunnerPanic(t *testing.T) {
	events := execute(t, func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestA"))
		n.FireTestStarted(desc("TestA/nested"))
		panic("kaboom")
	})

	assert.Equal(t, []string{
		"started pkg",
		"started TestA",
		"started nested",
		"finished nested FAILED",
		"finished TestA FAILED",
		"finished pkg FAILED",
	}, events.events)
	assert.ErrorIs(t, events.results["pkg"].Cause, ErrRunnerPanic)
	assert.Contains(t, events.results["pkg"].Cause.Error(), "kaboom")
}

func TestExecuteContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := executeCtx(t, ctx, func(ctx context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestA"))
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, "finished pkg FAILED", events.events[len(events.events)-1])
	assert.ErrorIs(t, events.results["TestA"].Cause, context.Canceled)
}

func TestExecuteDanglingTestsAreAborted(t *testing.T) {
	events := execute(t, func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestA"))
		return nil
	})
	assert.Equal(t, []string{
		"started pkg",
		"started TestA",
		"finished TestA ABORTED",
		"finished pkg SUCCESSFUL",
	}, events.events)
	assert.ErrorIs(t, events.results["TestA"].Cause, ErrIncomplete)
}

func TestExecuteDynamicSubtests(t *testing.T) {
	events := execute(t, func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestA"))
		n.FireTestStarted(desc("TestA/case_1"))
		n.FireTestOutput(desc("TestA/case_1"), "hello")
		n.FireTestFinished(desc("TestA/case_1"))
		n.FireTestFinished(desc("TestA"))
		return nil
	})

	assert.Equal(t, []string{
		"started pkg",
		"started TestA",
		"started case_1",
		"report case_1 stdout=hello",
		"finished case_1 SUCCESSFUL",
		"finished TestA SUCCESSFUL",
		"finished pkg SUCCESSFUL",
	}, events.events)

	sub := events.ids["case_1"]
	assert.Equal(t, events.ids["TestA"].UniqueID, sub.ParentID)
	assert.Equal(t, sub.ParentID+"/[dynamic:case_1]", sub.UniqueID)
	assert.Equal(t, pkg+"::TestA/case_1", sub.Source)
}

func TestExecuteIgnoredAndUnstartedFailures(t *testing.T) {
	events := execute(t, func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestIgnored(desc("TestA"), "flaky")
		n.FireTestFailure(legacy.Failure{Description: desc("TestB"), Cause: errors.New("fixture broke")})
		n.FireTestFinished(desc("TestB"))
		n.FireTestFailure(legacy.Failure{Description: legacy.SuiteDescription(pkg), Cause: errors.New("setup")})
		n.FireTestOutput(desc("TestUnknown"), "stray")
		return nil
	})

	assert.Equal(t, []string{
		"started pkg",
		"skipped TestA flaky",
		"started TestB",
		"finished TestB FAILED",
		"report pkg failure=FAILED(setup)",
		"report pkg stdout=stray",
		"finished pkg SUCCESSFUL",
	}, events.events)
}

func TestExecuteRootCallbacksNeverDuplicateRootEvents(t *testing.T) {
	events := execute(t, func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestRunStarted(legacy.SuiteDescription(pkg))
		n.FireTestStarted(legacy.SuiteDescription(pkg))
		n.FireTestFinished(legacy.SuiteDescription(pkg))
		n.FireTestRunFinished()
		return nil
	})
	assert.Equal(t, []string{"started pkg", "finished pkg SUCCESSFUL"}, events.events)
}

type violatingListener struct {
	*eventLog
}

func (v violatingListener) ExecutionStarted(id types.Identifier) {
	if id.DisplayName == "TestA" {
		panic(fmt.Errorf("%w: duplicate", types.ErrContractViolation))
	}
	v.eventLog.ExecutionStarted(id)
}

func TestExecuteContractViolationEscapes(t *testing.T) {
	plan, root := testPlan(t)
	adapter := NewAdapter(plan, &scriptedRunner{script: func(_ context.Context, n *legacy.Notifier) error {
		n.FireTestStarted(desc("TestA"))
		return nil
	}}, log.NewLogger(log.DiscardHandler()))

	assert.Panics(t, func() {
		adapter.Execute(context.Background(), root, violatingListener{newEventLog()})
	})
}

func TestExecuteEveryStartedTestTerminates(t *testing.T) {
	scripts := map[string]func(context.Context, *legacy.Notifier) error{
		"normal": func(_ context.Context, n *legacy.Notifier) error {
			n.FireTestStarted(desc("TestA"))
			n.FireTestFinished(desc("TestA"))
			n.FireTestStarted(desc("TestB"))
			return nil
		},
		"error": func(_ context.Context, n *legacy.Notifier) error {
			n.FireTestStarted(desc("TestA"))
			n.FireTestStarted(desc("TestA/x"))
			n.FireTestFinished(desc("TestA/x"))
			n.FireTestStarted(desc("TestA/y"))
			return errors.New("stop")
		},
		"panic": func(_ context.Context, n *legacy.Notifier) error {
			n.FireTestStarted(desc("TestB"))
			panic(errors.New("plain error panic"))
		},
	}

	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			events := execute(t, script)
			open := map[string]int{}
			for _, e := range events.events {
				fields := strings.Fields(e)
				switch fields[0] {
				case "started":
					open[fields[1]]++
				case "finished", "skipped":
					open[fields[1]]--
				}
			}
			for id, count := range open {
				assert.Zero(t, count, "identifier %s not terminated exactly once", id)
			}
		})
	}
}
