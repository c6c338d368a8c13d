package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSamplePlan(t *testing.T) *TestPlan {
	t.Helper()
	engine := AppendSegment("", "engine", "gotest")
	pkg := AppendSegment(engine, "package", "./foo")
	plan, err := NewPlanBuilder("sample").
		Add(Identifier{UniqueID: engine, DisplayName: "gotest", Kind: KindContainer}).
		Add(Identifier{UniqueID: pkg, ParentID: engine, Kind: KindContainer, Source: "./foo"}).
		Add(Identifier{UniqueID: AppendSegment(pkg, "test", "TestA"), ParentID: pkg, Source: "./foo::TestA"}).
		Add(Identifier{UniqueID: AppendSegment(pkg, "test", "TestB"), ParentID: pkg, Source: "./foo::TestB"}).
		Build()
	require.NoError(t, err)
	return plan
}

func TestPlanBuilder(t *testing.T) {
	plan := buildSamplePlan(t)

	assert.Equal(t, "sample", plan.Label())
	assert.Equal(t, 4, plan.Len())
	assert.Equal(t, 2, plan.CountTests())

	roots := plan.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "[engine:gotest]", roots[0].UniqueID)
	assert.True(t, roots[0].IsContainer())

	pkgChildren := plan.Children("[engine:gotest]/[package:./foo]")
	require.Len(t, pkgChildren, 2)
	assert.Equal(t, "TestA", pkgChildren[0].DisplayName, "display name defaults to last segment value")
	assert.Equal(t, "TestB", pkgChildren[1].DisplayName)
	assert.Equal(t, KindTest, pkgChildren[0].Kind, "kind defaults to test")

	id, ok := plan.BySource("./foo::TestB")
	require.True(t, ok)
	assert.Equal(t, pkgChildren[1], id)

	parent, ok := plan.Parent(id)
	require.True(t, ok)
	assert.Equal(t, "./foo", parent.Source)

	assert.True(t, plan.IsAncestor("[engine:gotest]", id.UniqueID))
	assert.False(t, plan.IsAncestor(id.UniqueID, "[engine:gotest]"))
	assert.Len(t, plan.Descendants("[engine:gotest]"), 3)
}

func TestPlanBuilderErrors(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewPlanBuilder("dup").
			Add(Identifier{UniqueID: "a"}).
			Add(Identifier{UniqueID: "a"}).
			Build()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateIdentifier))
	})

	t.Run("unknown parent", func(t *testing.T) {
		_, err := NewPlanBuilder("orphan").
			Add(Identifier{UniqueID: "child", ParentID: "missing"}).
			Build()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownParent))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := NewPlanBuilder("empty").Add(Identifier{}).Build()
		assert.Error(t, err)
	})
}

func TestPlanWalk(t *testing.T) {
	plan := buildSamplePlan(t)

	var visited []string
	var depths []int
	plan.Walk(func(id Identifier, depth int) bool {
		visited = append(visited, id.DisplayName)
		depths = append(depths, depth)
		return true
	})
	assert.Equal(t, []string{"gotest", "./foo", "TestA", "TestB"}, visited)
	assert.Equal(t, []int{0, 1, 2, 2}, depths)

	visited = nil
	plan.Walk(func(id Identifier, depth int) bool {
		visited = append(visited, id.DisplayName)
		return id.Kind != KindContainer || depth == 0
	})
	assert.Equal(t, []string{"gotest", "./foo"}, visited, "returning false prunes children")
}

func TestSegments(t *testing.T) {
	assert.Equal(t, "[engine:gotest]", AppendSegment("", "engine", "gotest"))
	assert.Equal(t, "[engine:gotest]/[test:TestA]", AppendSegment("[engine:gotest]", "test", "TestA"))
	assert.Equal(t, "TestA", LastSegmentValue("[engine:gotest]/[test:TestA]"))
	assert.Equal(t, "a/b", LastSegmentValue("[engine:x]/[dynamic:a/b]"))
	assert.Equal(t, "plain", LastSegmentValue("plain"))
}
