package reporting

import (
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/ui"
)

// DefaultIndent is the per-level indentation of Summary.
const DefaultIndent = "  "

// Summary renders a colored outline of the tree: one line per node with
// its outcome, then a short description of each of its errors. Children of
// skipped nodes are omitted.
func Summary(n *tree.Node, indent, prefix string) string {
	var b strings.Builder
	writeSummary(&b, n, indent, prefix)
	return b.String()
}

func writeSummary(b *strings.Builder, n *tree.Node, indent, prefix string) {
	b.WriteString(prefix)
	b.WriteString(summaryLine(n))

	if n.ShouldSkip() {
		return
	}
	for _, err := range n.Errors() {
		b.WriteString(ui.Red(fmt.Sprintf("\n%s%sError: %s", prefix, indent, firstLine(err.Message()))))
		b.WriteString(ui.Red(fmt.Sprintf("\n%s%s%s%s", prefix, indent, indent, err.Line())))
	}
	for _, child := range n.Children() {
		b.WriteString("\n")
		writeSummary(b, child, indent, prefix+indent)
	}
}

func summaryLine(n *tree.Node) string {
	name := n.Name()
	switch {
	case n.Filtered():
		return ui.Yellow(fmt.Sprintf("- %s (filtered)", name))
	case n.IsIgnored():
		return ui.Yellow(fmt.Sprintf("- %s (ignored)", name))
	case n.IsTodo():
		return ui.Yellow(fmt.Sprintf("- %s (TODO)", name))
	case n.Success().IsTrue():
		return ui.Green("✓ " + name)
	case n.AnyErrors():
		count := len(n.Errors())
		noun := "errors"
		if count == 1 {
			noun = "error"
		}
		return ui.Red(fmt.Sprintf("X %s (%d %s)", name, count, noun))
	case n.Aborted().IsTrue():
		return ui.Red(fmt.Sprintf("X %s (aborted)", name))
	case n.Failed().IsTrue():
		return ui.Red(fmt.Sprintf("X %s (failed)", name))
	case n.AnyFailedChildren():
		return ui.Red(fmt.Sprintf("X %s (failed child test)", name))
	case n.Skipped() || !n.Attempted():
		return ui.Yellow(fmt.Sprintf("- %s (skipped)", name))
	default:
		return ui.Red(fmt.Sprintf("X %s (terminated unexpectedly)", name))
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
