package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateIdentifier is returned when a plan already holds an identifier with the same id
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrUnknownParent is returned when an identifier references a parent not yet in the plan
	ErrUnknownParent = errors.New("unknown parent identifier")
)

// TestPlan is the immutable descriptor tree handed from discovery to execution.
// The synthetic run root is not part of the plan; top-level identifiers have
// an empty ParentID.
type TestPlan struct {
	label    string
	order    []string
	nodes    map[string]Identifier
	children map[string][]string
	sources  map[string]string
}

// Label is the caption used for the synthetic root of a run
func (p *TestPlan) Label() string {
	return p.label
}

// Len returns the number of identifiers in the plan
func (p *TestPlan) Len() int {
	return len(p.order)
}

// Get returns the identifier with the given unique id
func (p *TestPlan) Get(uniqueID string) (Identifier, bool) {
	id, ok := p.nodes[uniqueID]
	return id, ok
}

// Contains reports whether the plan holds the given unique id
func (p *TestPlan) Contains(uniqueID string) bool {
	_, ok := p.nodes[uniqueID]
	return ok
}

// Roots returns the top-level identifiers in insertion order
func (p *TestPlan) Roots() []Identifier {
	return p.lookup(p.children[""])
}

// Children returns the direct children of an identifier in insertion order
func (p *TestPlan) Children(uniqueID string) []Identifier {
	return p.lookup(p.children[uniqueID])
}

// Parent returns the parent identifier, if the identifier has one in the plan
func (p *TestPlan) Parent(id Identifier) (Identifier, bool) {
	if !id.HasParent() {
		return Identifier{}, false
	}
	return p.Get(id.ParentID)
}

// BySource resolves an identifier from the key a legacy runner uses for it
func (p *TestPlan) BySource(source string) (Identifier, bool) {
	uniqueID, ok := p.sources[source]
	if !ok {
		return Identifier{}, false
	}
	return p.Get(uniqueID)
}

// Descendants returns every identifier below the given one, depth-first
func (p *TestPlan) Descendants(uniqueID string) []Identifier {
	var out []Identifier
	for _, child := range p.Children(uniqueID) {
		out = append(out, child)
		out = append(out, p.Descendants(child.UniqueID)...)
	}
	return out
}

// IsAncestor reports whether ancestorID lies on the parent chain of uniqueID
func (p *TestPlan) IsAncestor(ancestorID, uniqueID string) bool {
	current, ok := p.Get(uniqueID)
	for ok && current.HasParent() {
		if current.ParentID == ancestorID {
			return true
		}
		current, ok = p.Get(current.ParentID)
	}
	return false
}

// Walk visits identifiers depth-first in insertion order. Returning false from
// fn skips the children of the visited identifier.
func (p *TestPlan) Walk(fn func(id Identifier, depth int) bool) {
	p.walk("", 0, fn)
}

func (p *TestPlan) walk(parentID string, depth int, fn func(Identifier, int) bool) {
	for _, id := range p.lookup(p.children[parentID]) {
		if fn(id, depth) {
			p.walk(id.UniqueID, depth+1, fn)
		}
	}
}

// CountTests returns the number of test-kind identifiers in the plan
func (p *TestPlan) CountTests() int {
	count := 0
	for _, uid := range p.order {
		if p.nodes[uid].IsTest() {
			count++
		}
	}
	return count
}

func (p *TestPlan) lookup(ids []string) []Identifier {
	out := make([]Identifier, 0, len(ids))
	for _, uid := range ids {
		out = append(out, p.nodes[uid])
	}
	return out
}

// PlanBuilder assembles a TestPlan. Parents must be added before their children.
type PlanBuilder struct {
	plan *TestPlan
	err  error
}

// NewPlanBuilder creates a builder for a plan with the given root label
func NewPlanBuilder(label string) *PlanBuilder {
	return &PlanBuilder{
		plan: &TestPlan{
			label:    label,
			nodes:    make(map[string]Identifier),
			children: make(map[string][]string),
			sources:  make(map[string]string),
		},
	}
}

// Add appends an identifier to the plan. The first error sticks and is
// reported by Build.
func (b *PlanBuilder) Add(id Identifier) *PlanBuilder {
	if b.err != nil {
		return b
	}
	if id.UniqueID == "" {
		b.err = errors.New("identifier unique id cannot be empty")
		return b
	}
	if _, exists := b.plan.nodes[id.UniqueID]; exists {
		b.err = fmt.Errorf("%w: %s", ErrDuplicateIdentifier, id.UniqueID)
		return b
	}
	if id.HasParent() {
		if _, exists := b.plan.nodes[id.ParentID]; !exists {
			b.err = fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, id.ParentID, id.UniqueID)
			return b
		}
	}
	if id.DisplayName == "" {
		id.DisplayName = LastSegmentValue(id.UniqueID)
	}
	if id.Kind == "" {
		id.Kind = KindTest
	}

	b.plan.nodes[id.UniqueID] = id
	b.plan.order = append(b.plan.order, id.UniqueID)
	b.plan.children[id.ParentID] = append(b.plan.children[id.ParentID], id.UniqueID)
	if id.Source != "" {
		if _, taken := b.plan.sources[id.Source]; !taken {
			b.plan.sources[id.Source] = id.UniqueID
		}
	}
	return b
}

// Build returns the finished plan. The builder must not be reused afterwards.
func (b *PlanBuilder) Build() (*TestPlan, error) {
	if b.err != nil {
		return nil, b.err
	}
	plan := b.plan
	b.plan = nil
	return plan, nil
}
