package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-canary/types"
)

// ExpandGroups evaluates the body of every unexpanded group in the subtree
// so that the complete tree is known before anything runs. A group body
// that fails aborts its group without running it.
func (n *Node) ExpandGroups(ctx context.Context) {
	if n.isGroup && !n.isExpandedGroup && n.body != nil {
		n.LogVerbose(fmt.Sprintf("Expanding test group %q.", n.name))
		n.expandTime = time.Now()
		n.isExpandedGroup = true

		root := n.root()
		prev := root.expanding
		root.expanding = n
		err := n.invoke(ctx, n.body)
		root.expanding = prev

		if err != nil {
			n.LogVerbose(fmt.Sprintf("Aborting test group %q due to an error encountered while expanding it.", n.name))
			n.markExpandFailed(n.addError(err, n, n.bodySite))
		}
		n.logger.Debug("Expanded test group", "group", n.Title(), "children", len(n.children), "err", err)
	}
	for _, child := range n.Children() {
		child.ExpandGroups(ctx)
	}
}

// ApplyFilter marks every node that neither satisfies filter nor has a
// descendant that does as filtered. Groups are expanded first. It reports
// whether n itself satisfied the filter or has such a descendant.
func (n *Node) ApplyFilter(ctx context.Context, filter Filter) bool {
	if n.isGroup && !n.isExpandedGroup {
		n.ExpandGroups(ctx)
	}
	if filter(n) {
		n.LogVerbose(fmt.Sprintf("Test %q satisfied the filter.", n.name))
		return true
	}
	matched := false
	for _, child := range n.children {
		if child.ApplyFilter(ctx, filter) {
			matched = true
		}
	}
	if matched {
		n.LogVerbose(fmt.Sprintf("Test %q satisfied the filter via a child.", n.name))
		return true
	}
	n.filtered = true
	n.LogVerbose(fmt.Sprintf("Test %q did not satisfy the filter.", n.name))
	return false
}

// ResetFilter clears the filtered flag throughout the subtree.
func (n *Node) ResetFilter() {
	n.filtered = false
	for _, child := range n.children {
		child.ResetFilter()
	}
}

// markExpandFailed leaves the group attempted and aborted because of
// testErr.
func (n *Node) markExpandFailed(testErr *TestError) {
	n.expandErr = testErr
	n.attempted = true
	n.aborted = types.True
	n.startTime = time.Now()
	n.endTime = n.startTime
}
