package tree

import (
	"slices"

	"github.com/ethereum-optimism/infra/op-canary/pathutil"
)

// Filter selects nodes to run. Nodes that fail a filter, and whose
// descendants all fail it as well, are skipped.
type Filter func(t *Node) bool

// AnyOf combines filters with a logical OR. With no filters it matches
// nothing.
func AnyOf(filters ...Filter) Filter {
	return func(t *Node) bool {
		for _, f := range filters {
			if f != nil && f(t) {
				return true
			}
		}
		return false
	}
}

// ByName matches nodes whose name equals one of names.
func ByName(names ...string) Filter {
	return func(t *Node) bool {
		return slices.Contains(names, t.name)
	}
}

// ByTag matches nodes tagged with one of tags. Only the node's own tags are
// consulted; descendants of a tagged group run because the group matched.
func ByTag(tags ...string) Filter {
	return func(t *Node) bool {
		for _, tag := range tags {
			if t.OwnTag(tag) {
				return true
			}
		}
		return false
	}
}

// ByPath matches nodes declared in a file matching one of patterns. Nodes
// with an unknown location never match.
func ByPath(patterns ...string) Filter {
	return func(t *Node) bool {
		return pathutil.MatchAny(patterns, t.FilePath())
	}
}
