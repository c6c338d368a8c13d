// Package tree rebuilds the hierarchy of a run from its lifecycle events and
// renders it as an indented text tree with one status per node.
package tree

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/registry"
	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum-optimism/infra/op-junction/ui"
	"github.com/ethereum/go-ethereum/log"
)

var _ listener.RunListener = (*Recorder)(nil)

// ErrContractViolation is the cause of every panic raised by the Recorder
var ErrContractViolation = types.ErrContractViolation

// ErrNotStarted is returned when rendering before RunStarted
var ErrNotStarted = errors.New("run not started")

// Option configures a Recorder
type Option func(*Recorder)

// WithClock replaces the clock used for creation times and durations
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithLogger sets the logger render failures are reported to
func WithLogger(logger log.Logger) Option {
	return func(r *Recorder) {
		r.log = logger
	}
}

// Recorder is a listener that mirrors the run as a tree of Nodes and prints
// it when the run finishes. It is safe for concurrent callbacks.
//
// Events that break the lifecycle protocol (a second RunStarted, an event
// before RunStarted, registering an identifier twice, an unknown parent,
// finishing or reporting on an unknown identifier, finishing twice) panic
// with an error wrapping ErrContractViolation.
type Recorder struct {
	out   io.Writer
	now   func() time.Time
	log   log.Logger
	nodes *registry.Registry[string, *Node]

	mu   sync.RWMutex
	root *Node
}

// NewRecorder creates a recorder that renders to out when the run finishes.
// A nil out disables rendering on RunFinished.
func NewRecorder(out io.Writer, opts ...Option) *Recorder {
	r := &Recorder{
		out:   out,
		now:   time.Now,
		log:   log.Root(),
		nodes: registry.New[string, *Node](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func violation(format string, args ...interface{}) {
	panic(fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...)))
}

// Root returns the synthetic run root, or nil before RunStarted
func (r *Recorder) Root() *Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// Lookup returns the node registered for a unique id
func (r *Recorder) Lookup(uniqueID string) (*Node, bool) {
	return r.nodes.Get(uniqueID)
}

func (r *Recorder) requireRoot() *Node {
	root := r.Root()
	if root == nil {
		violation("event received before the run started")
	}
	return root
}

func (r *Recorder) RunStarted(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root != nil {
		violation("run %q already started", r.root.caption)
	}
	r.root = newNode(nil, label, r.now(), false)
}

func (r *Recorder) RunFinished() {
	if r.out == nil {
		return
	}
	if err := r.Render(r.out); err != nil {
		r.log.Error("Failed to render execution tree", "err", err)
	}
}

func (r *Recorder) ExecutionStarted(id types.Identifier) {
	r.attach(id, nil)
}

func (r *Recorder) ExecutionSkipped(id types.Identifier, reason string) {
	r.attach(id, &reason)
}

// attach creates the node for id under its parent. A non-nil skipReason
// creates it in the skipped state.
func (r *Recorder) attach(id types.Identifier, skipReason *string) {
	parent := r.requireRoot()
	if id.HasParent() {
		p, ok := r.nodes.Get(id.ParentID)
		if !ok {
			violation("unknown parent %q of %q", id.ParentID, id.UniqueID)
		}
		parent = p
	}

	idCopy := id
	node := newNode(&idCopy, id.DisplayName, r.now(), true)
	if skipReason != nil {
		node.skipped = true
		node.skipReason = *skipReason
	}
	if err := r.nodes.Register(id.UniqueID, node); err != nil {
		violation("%v", err)
	}
	parent.addChild(node)
}

func (r *Recorder) mustLookup(id types.Identifier) *Node {
	r.requireRoot()
	node, ok := r.nodes.Get(id.UniqueID)
	if !ok {
		violation("unknown identifier %q", id.UniqueID)
	}
	return node
}

func (r *Recorder) ExecutionFinished(id types.Identifier, result types.ExecutionResult) {
	node := r.mustLookup(id)
	if !node.finish(result, r.now()) {
		violation("identifier %q finished after it was already terminated", id.UniqueID)
	}
}

func (r *Recorder) ReportingEntryPublished(id types.Identifier, entry types.ReportEntry) {
	r.mustLookup(id).addReport(entry)
}

// Render writes the tree depth-first, one node per line, children in attach
// order. The root is drawn as a last child with an empty prefix.
func (r *Recorder) Render(w io.Writer) error {
	root := r.Root()
	if root == nil {
		return ErrNotStarted
	}
	var b strings.Builder
	renderNode(&b, root, "", true)
	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the tree into a string
func (r *Recorder) String() string {
	var b strings.Builder
	if err := r.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

func renderNode(b *strings.Builder, n *Node, prefix string, isLast bool) {
	b.WriteString(prefix)
	b.WriteString(ui.Branch(isLast))
	b.WriteString(n.Caption())
	if n.Visible() {
		b.WriteString(" ")
		b.WriteString(n.Status())
	}
	b.WriteString("\n")

	children := n.Children()
	childPrefix := ui.ExtendPrefix(prefix, isLast)
	for i, child := range children {
		renderNode(b, child, childPrefix, i == len(children)-1)
	}
}
