package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestGlyphs(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		expected string
	}{
		{"TreeBranch", TreeBranch, "├── "},
		{"TreeLastBranch", TreeLastBranch, "└── "},
		{"TreeContinue", TreeContinue, "│   "},
		{"TreeIndent", TreeIndent, "    "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.constant)
			assert.Equal(t, 4, utf8.RuneCountInString(tt.constant), "glyphs share one column width")
		})
	}
}

func TestBranchAndPrefix(t *testing.T) {
	assert.Equal(t, TreeBranch, Branch(false))
	assert.Equal(t, TreeLastBranch, Branch(true))

	prefix := ExtendPrefix("", true)
	assert.Equal(t, "    ", prefix)
	prefix = ExtendPrefix(prefix, false)
	assert.Equal(t, "    │   ", prefix)
	prefix = ExtendPrefix(prefix, true)
	assert.Equal(t, "    │       ", prefix)
}

func TestBox(t *testing.T) {
	width := 20
	header := BuildBoxHeader("Run plan", width)
	lines := strings.Split(strings.TrimSuffix(header, "\n"), "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		assert.Equal(t, width, utf8.RuneCountInString(line), "line %q", line)
	}

	line := BuildBoxLine("a rather long line that will not fit", width)
	assert.Equal(t, width, utf8.RuneCountInString(strings.TrimSuffix(line, "\n")))
	assert.Contains(t, line, "...")

	assert.Equal(t, width, utf8.RuneCountInString(strings.TrimSuffix(BuildBoxFooter(width), "\n")))

	wide := BuildBoxHeader("a title wider than the box", 10)
	assert.Contains(t, wide, "a title wider than the box")
}
