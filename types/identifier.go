// Package types contains the descriptor model and result types shared by the
// junction packages.
package types

import "strings"

// IdentifierKind tells whether a node groups other nodes or is an executable test
type IdentifierKind string

const (
	KindContainer IdentifierKind = "container"
	KindTest      IdentifierKind = "test"
)

// String implements the Stringer interface for IdentifierKind
func (k IdentifierKind) String() string {
	return string(k)
}

// Identifier names one node of a TestPlan.
//
// UniqueID is opaque and globally unique within a plan. An empty ParentID means
// the node hangs directly off the synthetic run root.
type Identifier struct {
	UniqueID    string
	DisplayName string
	ParentID    string
	Kind        IdentifierKind
	Source      string // Lookup key used by legacy runners to refer to this node
}

// HasParent reports whether the identifier names an explicit parent
func (i Identifier) HasParent() bool {
	return i.ParentID != ""
}

// IsContainer reports whether the identifier groups other nodes
func (i Identifier) IsContainer() bool {
	return i.Kind == KindContainer
}

// IsTest reports whether the identifier names an executable test
func (i Identifier) IsTest() bool {
	return i.Kind == KindTest
}

// String returns the unique id, which is what log lines and metrics refer to
func (i Identifier) String() string {
	return i.UniqueID
}

// Segment formats one "[type:value]" element of a unique id
func Segment(segmentType, value string) string {
	return "[" + segmentType + ":" + value + "]"
}

// AppendSegment extends a parent unique id with a new segment
func AppendSegment(parentID, segmentType, value string) string {
	if parentID == "" {
		return Segment(segmentType, value)
	}
	return parentID + "/" + Segment(segmentType, value)
}

// LastSegmentValue returns the value of the last segment of a unique id, or the
// id itself when it is not segmented.
func LastSegmentValue(uniqueID string) string {
	last := uniqueID
	if idx := strings.LastIndex(uniqueID, "/["); idx >= 0 {
		last = uniqueID[idx+1:]
	}
	if !strings.HasPrefix(last, "[") || !strings.HasSuffix(last, "]") {
		return uniqueID
	}
	if colon := strings.Index(last, ":"); colon >= 0 {
		return last[colon+1 : len(last)-1]
	}
	return uniqueID
}
