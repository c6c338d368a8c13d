package runner

import (
	"errors"
	"sync"

	"github.com/ethereum-optimism/infra/op-junction/legacy"
	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/registry"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
)

// ErrIncomplete is the cause attached to descendants a runner started but
// never finished although it returned normally.
var ErrIncomplete = errors.New("runner returned without finishing test")

// DynamicSegment is the unique id segment type used for tests that the plan
// does not list, such as Go subtests.
const DynamicSegment = "dynamic"

// nodeState is the adapter's view of one identifier during a run
type nodeState struct {
	id       types.Identifier
	started  bool
	finished bool
	skipped  bool
	result   *types.ExecutionResult
}

// testRun holds everything one Execute call knows about its subtree. It is
// owned by a single adapter invocation and dropped when that invocation ends.
type testRun struct {
	plan      *types.TestPlan
	root      types.Identifier
	rootKey   string
	listener  listener.ExecutionListener
	log       log.Logger
	states    *registry.Registry[string, *nodeState]
	bySource  *registry.Registry[string, types.Identifier]
	startedAt []string

	mu          sync.Mutex
	rootStarted bool
}

func newTestRun(plan *types.TestPlan, root types.Identifier, rootDesc legacy.Description, l listener.ExecutionListener, logger log.Logger) *testRun {
	return &testRun{
		plan:     plan,
		root:     root,
		rootKey:  rootDesc.Key(),
		listener: l,
		log:      logger,
		states:   registry.New[string, *nodeState](),
		bySource: registry.New[string, types.Identifier](),
	}
}

// ensureRootStarted emits started(root) exactly once
func (r *testRun) ensureRootStarted() {
	r.mu.Lock()
	if r.rootStarted {
		r.mu.Unlock()
		return
	}
	r.rootStarted = true
	r.mu.Unlock()
	r.listener.ExecutionStarted(r.root)
}

func (r *testRun) isRoot(d legacy.Description) bool {
	return d.Key() == r.rootKey || (r.root.Source != "" && d.Key() == r.root.Source)
}

// resolve maps a legacy description to an identifier. The second return value
// is true when the description names the adapter's own root. Descriptions the
// plan does not know are registered as dynamic children of their closest
// known ancestor.
func (r *testRun) resolve(d legacy.Description) (types.Identifier, bool) {
	if r.isRoot(d) {
		return r.root, true
	}
	if id, ok := r.plan.BySource(d.Key()); ok {
		if id.UniqueID == r.root.UniqueID {
			return r.root, true
		}
		return id, false
	}
	if id, ok := r.bySource.Get(d.Key()); ok {
		return id, false
	}
	if d.IsSuite() {
		return r.root, true
	}

	parent := r.root
	if pd, ok := d.Parent(); ok {
		parent, _ = r.resolve(pd)
	}
	id := types.Identifier{
		UniqueID:    types.AppendSegment(parent.UniqueID, DynamicSegment, d.DisplayName()),
		DisplayName: d.DisplayName(),
		ParentID:    parent.UniqueID,
		Kind:        types.KindTest,
		Source:      d.Key(),
	}
	if err := r.bySource.Register(d.Key(), id); err != nil {
		r.log.Error("Failed to register dynamic test", "source", d.Key(), "err", err)
	}
	r.log.Debug("Registered dynamic test", "id", id.UniqueID, "parent", parent.UniqueID)
	return id, false
}

// state returns the adapter state for id, creating it on first use
func (r *testRun) state(id types.Identifier) *nodeState {
	if st, ok := r.states.Get(id.UniqueID); ok {
		return st
	}
	st := &nodeState{id: id}
	if err := r.states.Register(id.UniqueID, st); err != nil {
		// Lost a race with another callback for the same id
		existing, _ := r.states.Get(id.UniqueID)
		return existing
	}
	return st
}

func (r *testRun) status(st *nodeState) (started, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return st.started, st.skipped
}

func (r *testRun) start(st *nodeState) {
	r.ensureRootStarted()
	r.mu.Lock()
	if st.started || st.skipped {
		r.mu.Unlock()
		return
	}
	st.started = true
	r.startedAt = append(r.startedAt, st.id.UniqueID)
	r.mu.Unlock()
	r.listener.ExecutionStarted(st.id)
}

func (r *testRun) finish(st *nodeState, fallback types.ExecutionResult) {
	r.mu.Lock()
	if !st.started || st.finished {
		r.mu.Unlock()
		return
	}
	st.finished = true
	result := fallback
	if st.result != nil {
		result = *st.result
	}
	r.mu.Unlock()
	r.listener.ExecutionFinished(st.id, result)
}

// record stores the result a later finish will carry. The first recorded
// failure wins.
func (r *testRun) record(st *nodeState, result types.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st.result == nil {
		st.result = &result
	}
}

func (r *testRun) skip(st *nodeState, reason string) bool {
	r.ensureRootStarted()
	r.mu.Lock()
	if st.started || st.skipped {
		r.mu.Unlock()
		return false
	}
	st.skipped = true
	r.mu.Unlock()
	r.listener.ExecutionSkipped(st.id, reason)
	return true
}

// dangling returns started but unfinished states, most recently started first
func (r *testRun) dangling() []*nodeState {
	r.mu.Lock()
	order := make([]string, len(r.startedAt))
	copy(order, r.startedAt)
	r.mu.Unlock()

	var out []*nodeState
	for i := len(order) - 1; i >= 0; i-- {
		st, ok := r.states.Get(order[i])
		if !ok {
			continue
		}
		r.mu.Lock()
		open := st.started && !st.finished
		r.mu.Unlock()
		if open {
			out = append(out, st)
		}
	}
	return out
}

// complete terminates the run after the legacy runner returned normally
func (r *testRun) complete() {
	r.ensureRootStarted()
	for _, st := range r.dangling() {
		r.log.Warn("Test was started but never finished", "id", st.id.UniqueID)
		r.finish(st, types.Aborted(ErrIncomplete))
	}
	r.listener.ExecutionFinished(r.root, types.Successful())
}

// abort terminates the run after the legacy runner failed with err
func (r *testRun) abort(err error) {
	r.ensureRootStarted()
	for _, st := range r.dangling() {
		r.mu.Lock()
		st.result = nil
		r.mu.Unlock()
		r.finish(st, types.Failed(err))
	}
	r.listener.ExecutionFinished(r.root, types.Failed(err))
}
