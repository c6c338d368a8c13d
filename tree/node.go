package tree

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/types"
)

// StatusRunning is printed for nodes that have neither finished nor been skipped
const StatusRunning = "?"

// statusSkipped is printed for nodes skipped without a reason
const statusSkipped = "SKIPPED"

// Node mirrors one identifier of the run. A node is running until it is
// either finished (result set) or created as skipped (skip reason set).
type Node struct {
	mu sync.Mutex

	id        *types.Identifier // nil for the synthetic run root
	caption   string
	createdAt time.Time
	visible   bool

	duration   time.Duration
	result     *types.ExecutionResult
	skipped    bool
	skipReason string
	reports    []types.ReportEntry
	children   []*Node
}

func newNode(id *types.Identifier, caption string, createdAt time.Time, visible bool) *Node {
	return &Node{
		id:        id,
		caption:   caption,
		createdAt: createdAt,
		visible:   visible,
	}
}

// ID returns the identifier the node mirrors, or false for the run root
func (n *Node) ID() (types.Identifier, bool) {
	if n.id == nil {
		return types.Identifier{}, false
	}
	return *n.id, true
}

func (n *Node) Caption() string {
	return n.caption
}

func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// Visible reports whether the node's status is printed. Only the synthetic
// run root is invisible.
func (n *Node) Visible() bool {
	return n.visible
}

// Status returns the skip reason, the result tag, or "?" while running
func (n *Node) Status() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case n.skipped && n.skipReason != "":
		return n.skipReason
	case n.skipped:
		return statusSkipped
	case n.result != nil:
		return n.result.Status.String()
	default:
		return StatusRunning
	}
}

// Result returns the execution result once the node has finished
func (n *Node) Result() (types.ExecutionResult, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.result == nil {
		return types.ExecutionResult{}, false
	}
	return *n.result, true
}

// SkipReason returns the reason the node was skipped for
func (n *Node) SkipReason() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.skipReason, n.skipped
}

// Duration returns the time between creation and finish
func (n *Node) Duration() (time.Duration, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.duration, n.result != nil
}

// Reports returns the attached report entries in arrival order
func (n *Node) Reports() []types.ReportEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.ReportEntry, len(n.reports))
	copy(out, n.reports)
	return out
}

// Children returns the child nodes in attach order
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) addChild(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = append(n.children, child)
}

func (n *Node) addReport(entry types.ReportEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, entry)
}

// finish stores the result. It reports false when the node already left the
// running state.
func (n *Node) finish(result types.ExecutionResult, now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.result != nil || n.skipped {
		return false
	}
	n.result = &result
	n.duration = now.Sub(n.createdAt)
	return true
}
