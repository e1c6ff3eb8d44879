// Package pathutil normalizes and matches the file paths that test nodes
// record as their definition site.
package pathutil

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Normalize makes all separators forward slashes, removes redundant and
// trailing separators and resolves "." and ".." segments. A leading
// separator is retained. ".." never cancels another "..", so "../../a"
// keeps both segments instead of collapsing to "a".
func Normalize(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(parts) == 1 && parts[0] == "." {
		return "."
	}

	resolved := make([]string, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == ".":
		case part == ".." && len(resolved) > 0 && resolved[len(resolved)-1] != "..":
			resolved = resolved[:len(resolved)-1]
		default:
			resolved = append(resolved, part)
		}
	}

	result := strings.Join(resolved, "/")
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) {
		result = "/" + result
	}
	return result
}

// Match reports whether path satisfies pattern. Both are normalized first.
// A pattern matches on equality, as a doublestar glob, or as a trailing
// path suffix. An empty path never matches.
func Match(pattern, path string) bool {
	if path == "" || pattern == "" {
		return false
	}
	pattern = Normalize(pattern)
	path = Normalize(path)
	if pattern == path {
		return true
	}
	if strings.HasSuffix(path, "/"+pattern) {
		return true
	}
	if !doublestar.ValidatePattern(pattern) {
		return false
	}
	matched, err := doublestar.Match(pattern, path)
	return err == nil && matched
}

// MatchAny reports whether path satisfies at least one of patterns.
func MatchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if Match(pattern, path) {
			return true
		}
	}
	return false
}
