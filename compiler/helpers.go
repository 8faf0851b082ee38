package compiler

import (
	"fmt"
	"strings"
)

// lineAt returns the 1-based line of byte offset pos in src.
func lineAt(src string, pos int) int {
	pos = min(max(pos, 0), len(src))
	return strings.Count(src[:pos], "\n") + 1
}

// estimateLineNumber finds the line where text first appears in source.
// Rewriting collapses multi-line tags, so errors found in the working copy
// are mapped back to the author's source by searching for the tag text.
func estimateLineNumber(source, text string) int {
	lines := strings.Split(source, "\n")

	// First try: exact match
	for i, line := range lines {
		if strings.Contains(line, text) {
			return i + 1
		}
	}

	// Fallback: the first line of a multi-line tag
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if len(first) > 3 {
		for i, line := range lines {
			if strings.Contains(line, first) {
				return i + 1
			}
		}
	}

	return 0
}

// getContextLines returns a formatted string with context lines around the error line.
// It shows 'contextSize' lines before and after the target line.
func getContextLines(source string, lineNumber int, contextSize int) string {
	if lineNumber <= 0 {
		return ""
	}
	lines := strings.Split(source, "\n")

	startLine := max(lineNumber-contextSize-1, 0)
	endLine := min(lineNumber+contextSize, len(lines))

	var result strings.Builder
	result.WriteString("\n")

	for i := startLine; i < endLine; i++ {
		lineNum := i + 1
		prefix := "  "

		// Highlight the error line with a marker
		if lineNum == lineNumber {
			prefix = "> "
		}

		fmt.Fprintf(&result, "%s%4d | %s\n", prefix, lineNum, lines[i])
	}

	return result.String()
}

// blankOut replaces s with the newlines it contains so removing a block
// keeps the line numbers of everything after it.
func blankOut(s string) string {
	return strings.Repeat("\n", strings.Count(s, "\n"))
}
