// Package textutil formats free-form text for single table cells and
// report lines.
package textutil

import "strings"

// MinLen is the smallest useful maxLen: one character plus "...".
const MinLen = 4

// OneLine collapses all whitespace runs of s into single spaces and cuts the
// result to at most maxLen runes, ending in "..." when cut. maxLen below
// MinLen is raised to MinLen.
func OneLine(s string, maxLen int) string {
	if maxLen < MinLen {
		maxLen = MinLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
