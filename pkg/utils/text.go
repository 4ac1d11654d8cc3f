// Package utils provides shared utilities for text and logging.
package utils

import "strings"

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// TruncateWords keeps the first maxWords whitespace-separated words of s,
// appending "..." when words were dropped. Whitespace runs collapse to one space
// only when truncation happens.
func TruncateWords(s string, maxWords int) string {
	if maxWords <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
