package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-canary/location"
	"github.com/ethereum-optimism/infra/op-canary/tree"
	"github.com/ethereum-optimism/infra/op-canary/types"
	"github.com/ethereum-optimism/infra/op-canary/ui"
)

// TreeJSONResponse is the JSON document describing one run
type TreeJSONResponse struct {
	RunID       string        `json:"runId"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration"`
	Status      types.Status  `json:"status"`
	Stats       ReportStats   `json:"stats"`
	Unhandled   string        `json:"unhandledError,omitempty"`
	Hierarchy   *TreeNodeJSON `json:"hierarchy"`
	FailedTests []string      `json:"failedTests"`
}

// TreeNodeJSON represents a tree node in JSON format
type TreeNodeJSON struct {
	Name       string          `json:"name"`
	Title      string          `json:"title"`
	Kind       string          `json:"kind"`
	Status     types.Status    `json:"status"`
	Duration   time.Duration   `json:"duration"`
	Tags       []string        `json:"tags,omitempty"`
	Location   string          `json:"location,omitempty"`
	ModulePath string          `json:"modulePath,omitempty"`
	Errors     []ErrorJSON     `json:"errors,omitempty"`
	Children   []*TreeNodeJSON `json:"children,omitempty"`
}

// ErrorJSON represents a recorded test error in JSON format
type ErrorJSON struct {
	Location string `json:"location"`
	Message  string `json:"message"`
	Line     string `json:"line,omitempty"`
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

func nodeKind(n *tree.Node) string {
	switch {
	case n.IsSeries():
		return "series"
	case n.IsGroup():
		return "group"
	default:
		return "test"
	}
}

// TreeJSONFormatter renders a run as JSON.
type TreeJSONFormatter struct {
	resolver *location.ModuleResolver
}

// NewTreeJSONFormatter creates a formatter. A nil resolver omits module
// paths.
func NewTreeJSONFormatter(resolver *location.ModuleResolver) *TreeJSONFormatter {
	return &TreeJSONFormatter{resolver: resolver}
}

// Build converts a run into its JSON document.
func (f *TreeJSONFormatter) Build(root *tree.Node, report *Report) *TreeJSONResponse {
	return &TreeJSONResponse{
		RunID:       report.RunID,
		Timestamp:   report.StartTime,
		Duration:    report.Duration,
		Status:      report.Status(),
		Stats:       report.Stats(),
		Unhandled:   errorString(report.UnhandledError),
		Hierarchy:   f.buildNode(root),
		FailedTests: report.FailedTitles(),
	}
}

// Format renders the run as indented JSON.
func (f *TreeJSONFormatter) Format(root *tree.Node, report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(f.Build(root, report), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tree: %w", err)
	}
	return data, nil
}

func (f *TreeJSONFormatter) buildNode(n *tree.Node) *TreeNodeJSON {
	node := &TreeNodeJSON{
		Name:     n.Name(),
		Title:    n.Title(),
		Kind:     nodeKind(n),
		Status:   n.StatusString(),
		Duration: n.Duration(),
		Tags:     n.GetTags(),
		Location: n.Location().String(),
	}
	if f.resolver != nil && n.FilePath() != "" {
		if qualified, err := f.resolver.Qualify(n.FilePath()); err == nil {
			node.ModulePath = qualified
		}
	}
	for _, err := range n.Errors() {
		node.Errors = append(node.Errors, ErrorJSON{
			Location: err.LocationTitle(),
			Message:  err.Message(),
			Line:     err.Line(),
		})
	}
	for _, child := range n.Children() {
		node.Children = append(node.Children, f.buildNode(child))
	}
	return node
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// TreeTableFormatter formats a run as an ASCII table using the tree structure
type TreeTableFormatter struct {
	title          string
	showContainers bool
}

// NewTreeTableFormatter creates a new tree-based table formatter
func NewTreeTableFormatter(title string, showContainers bool) *TreeTableFormatter {
	return &TreeTableFormatter{
		title:          title,
		showContainers: showContainers,
	}
}

// Format formats the tree rooted at root as an ASCII table
func (f *TreeTableFormatter) Format(root *tree.Node, report *Report) (string, error) {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(f.title)
	t.AppendHeader(table.Row{"TYPE", "ID", "DURATION", "TESTS", "PASSED", "FAILED", "SKIPPED", "STATUS", "ERRORS"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "TYPE", AutoMerge: true},
		{Name: "ID", WidthMax: 200, WidthMaxEnforcer: text.WrapSoft},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "TESTS", Align: text.AlignRight},
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
		{Name: "SKIPPED", Align: text.AlignRight},
		{Name: "ERRORS", Align: text.AlignRight},
	})

	for i, child := range root.Children() {
		f.addRows(t, child, 1, i == len(root.Children())-1, nil)
	}

	switch {
	case report.Status() == types.StatusFailed:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case len(report.Passed) == 0 && len(report.Skipped) > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	stats := report.Stats()
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(report.Duration),
		stats.Total,
		stats.Passed,
		stats.Failed,
		stats.Skipped,
		strings.ToUpper(string(report.Status())),
		stats.Errors,
	})

	t.Render()
	return buf.String(), nil
}

func (f *TreeTableFormatter) addRows(t table.Writer, n *tree.Node, depth int, isLast bool, parentIsLast []bool) {
	if f.showContainers || !n.IsGroup() {
		sub := GetReport(n)
		t.AppendRow(table.Row{
			strings.ToUpper(nodeKind(n)[:1]) + nodeKind(n)[1:],
			ui.BuildTreePrefix(depth-1, isLast, parentIsLast) + n.Name(),
			formatDuration(n.Duration()),
			sub.Total(),
			len(sub.Passed),
			len(sub.Failed),
			len(sub.Skipped),
			strings.ToUpper(string(n.StatusString())),
			len(n.Errors()),
		})
	}
	children := n.Children()
	var childAncestry []bool
	if depth > 1 {
		childAncestry = append(append([]bool(nil), parentIsLast...), isLast)
	}
	for i, child := range children {
		f.addRows(t, child, depth+1, i == len(children)-1, childAncestry)
	}
}
