package util

import "strings"

// CollapseWhitespace trims s and folds internal whitespace runs to single
// spaces. Scraped text nodes carry newlines and indentation that must not
// leak into titles or cache keys.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateWithEllipsis shortens s to at most max runes, appending "..." when
// anything was cut. The ellipsis counts toward max, so the result never
// exceeds it.
func TruncateWithEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
