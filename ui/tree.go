package ui

import (
	"strings"
	"unicode/utf8"
)

// Tree glyphs using box drawing characters
const (
	TreeBranch     = "├── " // Node with more siblings below it
	TreeLastBranch = "└── " // Last child of its parent
	TreeContinue   = "│   " // Indent below a node that has more siblings
	TreeIndent     = "    " // Indent below a last child

	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxVertical    = "│"
	BoxHorizontal  = "─"
	BoxTeeRight    = "├"
	BoxTeeLeft     = "┤"
)

// Branch returns the connector drawn in front of a node
func Branch(isLast bool) string {
	if isLast {
		return TreeLastBranch
	}
	return TreeBranch
}

// ExtendPrefix returns the prefix for the children of a node drawn with prefix
func ExtendPrefix(prefix string, isLast bool) string {
	if isLast {
		return prefix + TreeIndent
	}
	return prefix + TreeContinue
}

// BuildBoxHeader creates a box header with the given title and width
func BuildBoxHeader(title string, width int) string {
	titleLen := utf8.RuneCountInString(title)
	if width < titleLen+4 {
		width = titleLen + 4
	}
	padding := width - 4 - titleLen

	header := BoxTopLeft + repeatString(BoxHorizontal, width-2) + BoxTopRight + "\n"
	header += BoxVertical + " " + title + repeatString(" ", padding+1) + BoxVertical + "\n"
	header += BoxTeeRight + repeatString(BoxHorizontal, width-2) + BoxTeeLeft + "\n"
	return header
}

// BuildBoxFooter creates a box footer with the given width
func BuildBoxFooter(width int) string {
	return BoxBottomLeft + repeatString(BoxHorizontal, width-2) + BoxBottomRight + "\n"
}

// BuildBoxLine creates a content line within a box, truncating by runes
func BuildBoxLine(content string, width int) string {
	contentLen := utf8.RuneCountInString(content)
	maxContentLen := width - 4

	if contentLen > maxContentLen && maxContentLen > 3 {
		runes := []rune(content)
		content = string(runes[:maxContentLen-3]) + "..."
		contentLen = maxContentLen
	}

	padding := maxContentLen - contentLen
	return BoxVertical + " " + content + repeatString(" ", padding+1) + BoxVertical + "\n"
}

func repeatString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}
