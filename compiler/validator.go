package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html/atom"
)

var tagNameRe = regexp.MustCompile(`^[a-z][a-z0-9._]*(-[a-z0-9._]*)+$`)

// validateTagName checks that tag can name a custom element. The HTML
// parser treats tags case-insensitively and applies HTML5 semantics to
// known elements, so a component named after one would be misparsed.
func validateTagName(tag string) error {
	lower := strings.ToLower(tag)
	if reservedCustomNames[lower] {
		return fmt.Errorf("component name '%s' is reserved by the HTML specification", tag)
	}
	if !strings.Contains(lower, "-") && atom.Lookup([]byte(lower)) != 0 {
		return fmt.Errorf(
			"component name '%s' conflicts with HTML tag '<%s>'.\n"+
				"  Custom element names must contain a hyphen, e.g. '%s-view'.",
			tag, lower, lower)
	}
	if !tagNameRe.MatchString(tag) {
		return fmt.Errorf(
			"invalid component name '%s'.\n"+
				"  Names must be lowercase, start with a letter and contain a hyphen (e.g. 'todo-list').",
			tag)
	}
	return nil
}

var openTagRe = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9-]*)`)

// checkUnknownTags returns a warning for every distinct tag that is neither
// an HTML element, a custom element nor a control tag but is within a
// small edit distance of a control tag.
func checkUnknownTags(src string) []string {
	seen := make(map[string]bool)
	var warnings []string
	for _, m := range openTagRe.FindAllStringSubmatchIndex(src, -1) {
		name := strings.ToLower(src[m[2]:m[3]])
		if seen[name] || isControlTag(name) || atom.Lookup([]byte(name)) != 0 {
			continue
		}
		seen[name] = true
		if similar := findSimilarControlTags(name); len(similar) > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"line %d: unknown tag <%s>, did you mean <%s>?",
				lineAt(src, m[0]), name, strings.Join(similar, ">, <")))
		}
	}
	return warnings
}

func isControlTag(name string) bool {
	for _, t := range controlTags {
		if t == name {
			return true
		}
	}
	return false
}

// levenshteinDistance calculates the edit distance between two strings.
// Used for fuzzy matching control tag suggestions.
// Returns the minimum number of single-character edits (insertions, deletions, substitutions)
// needed to transform one string into the other.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Use dynamic programming with space-optimized approach
	// (only need previous row, not full matrix)
	if len(a) > len(b) {
		a, b = b, a
	}

	prevRow := make([]int, len(a)+1)
	currRow := make([]int, len(a)+1)

	// Initialize first row
	for j := 0; j <= len(a); j++ {
		prevRow[j] = j
	}

	// Compute distances
	for i := 1; i <= len(b); i++ {
		currRow[0] = i

		for j := 1; j <= len(a); j++ {
			cost := 0
			if a[j-1] != b[i-1] {
				cost = 1
			}

			currRow[j] = min(
				currRow[j-1]+1,    // insertion
				prevRow[j]+1,      // deletion
				prevRow[j-1]+cost, // substitution
			)
		}

		prevRow, currRow = currRow, prevRow
	}

	return prevRow[len(a)]
}

// findSimilarControlTags returns the control tags within edit distance 2 of
// name, closest first, at most three.
func findSimilarControlTags(name string) []string {
	const threshold = 2

	type suggestion struct {
		tag      string
		distance int
	}

	var suggestions []suggestion
	for _, tag := range controlTags {
		// Very short names match almost anything.
		if len(name) < 3 && len(tag) > 3 {
			continue
		}
		if dist := levenshteinDistance(name, tag); dist <= threshold && dist > 0 {
			suggestions = append(suggestions, suggestion{tag, dist})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].distance < suggestions[j].distance
	})

	var result []string
	for i := 0; i < len(suggestions) && i < 3; i++ {
		result = append(result, suggestions[i].tag)
	}
	return result
}
