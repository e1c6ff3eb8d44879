package tree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-canary/location"
	"github.com/ethereum-optimism/infra/op-canary/types"
)

var (
	// ErrNotGroup is returned when adding a child to a node that is not a group.
	ErrNotGroup = errors.New("tests can only be added as children to test groups")
	// ErrCallbackNotGroup is returned when registering a callback on a node
	// that is not a group.
	ErrCallbackNotGroup = errors.New("callbacks can only be added to test groups")
	// ErrCycle is returned when adding a node beneath itself.
	ErrCycle = errors.New("a test cannot be added beneath itself")
)

// Body is the function attached to a node. For plain tests it holds the
// test code. For groups it only registers children and callbacks, and it
// is evaluated once during expansion. The node passed in is the node the
// body belongs to.
type Body func(ctx context.Context, t *Node) error

// LogFunc receives human readable output lines.
type LogFunc func(message string)

// Option configures a root node.
type Option func(*Node)

// WithLocationProvider sets how nodes in the tree find their definition
// site.
func WithLocationProvider(p location.Provider) Option {
	return func(n *Node) {
		if p == nil {
			p = location.NopProvider{}
		}
		n.locator = p
	}
}

// WithLogFunc sets where human readable output goes.
func WithLogFunc(fn LogFunc) Option {
	return func(n *Node) {
		if fn != nil {
			n.logFunc = fn
		}
	}
}

// WithLogger sets the structured logger used for lifecycle debug records.
func WithLogger(logger log.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// Node is a test, test group, or test series.
type Node struct {
	name     string
	body     Body
	bodySite string

	parent   *Node
	children []*Node

	isGroup         bool
	isSeries        bool
	isTodo          bool
	isIgnored       bool
	isVerbose       bool
	isSilent        bool
	isExpandedGroup bool
	expandErr       *TestError // set when the group body failed during expansion

	attempted bool
	skipped   bool
	filtered  bool
	success   types.TriState
	aborted   types.TriState
	failed    types.TriState

	startTime  time.Time
	endTime    time.Time
	expandTime time.Time

	mu             sync.Mutex
	errors         []*TestError
	failedChildren []*Node

	callbacks [numCallbackTypes][]*Callback
	tags      map[string]struct{}

	logFunc  LogFunc
	logger   log.Logger
	locator  location.Provider
	location location.Location

	// expanding is only maintained on a tree's root and names the group
	// whose body is currently being evaluated.
	expanding *Node
}

var pkgPath = reflect.TypeOf((*Node)(nil)).Elem().PkgPath()

// constructors lists the functions that create nodes on behalf of a caller.
var constructors = map[string]bool{
	pkgPath + ".New":       true,
	pkgPath + ".NewGroup":  true,
	pkgPath + ".NewSeries": true,
	pkgPath + ".newRoot":   true,
	pkgPath + ".newNode":   true,
}

// isInternalFrame reports whether a stack frame belongs to the node
// machinery rather than to the code declaring or running tests.
func isInternalFrame(function string) bool {
	return constructors[function] ||
		strings.HasPrefix(function, pkgPath+".(*Node).") ||
		strings.HasPrefix(function, pkgPath+".(*Callback).")
}

// DefaultLocationProvider captures the first stack frame outside this
// package.
var DefaultLocationProvider location.Provider = location.CallerProvider{Skip: isInternalFrame}

func stdoutLog(message string) {
	fmt.Fprintln(os.Stdout, message)
}

func newNode(name string, body Body, locator location.Provider, logFunc LogFunc, logger log.Logger) *Node {
	return &Node{
		name:     name,
		body:     body,
		bodySite: funcSite(body),
		tags:     make(map[string]struct{}),
		logFunc:  logFunc,
		logger:   logger,
		locator:  locator,
	}
}

func newRoot(name string, body Body, opts []Option) *Node {
	n := newNode(name, body, DefaultLocationProvider, stdoutLog, log.Root())
	for _, opt := range opts {
		opt(n)
	}
	n.location = n.locator.Locate()
	return n
}

// New creates a standalone test.
func New(name string, body Body, opts ...Option) *Node {
	return newRoot(name, body, opts)
}

// NewGroup creates a standalone test group.
func NewGroup(name string, body Body, opts ...Option) *Node {
	n := newRoot(name, body, opts)
	n.isGroup = true
	return n
}

// NewSeries creates a standalone test series.
func NewSeries(name string, body Body, opts ...Option) *Node {
	n := newRoot(name, body, opts)
	n.isGroup = true
	n.isSeries = true
	return n
}

// funcSite renders the definition site of fn as a stack frame line.
func funcSite(fn any) string {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	file, line := f.FileLine(f.Entry())
	return formatFrame(f.Name(), file, line)
}

func (n *Node) Name() string { return n.name }

// Title identifies the node by the names of its ancestors, excluding the
// root, joined with " => ".
func (n *Node) Title() string {
	title := n.name
	for p := n.parent; p != nil; p = p.parent {
		if p.parent != nil && p.name != "" {
			title = p.name + " => " + title
		}
	}
	return title
}

func (n *Node) Parent() *Node { return n.parent }

// Children returns the current children without expanding the node.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// ExpandedChildren expands the node if it is an unexpanded group and
// returns its children.
func (n *Node) ExpandedChildren(ctx context.Context) []*Node {
	if n.isGroup && !n.isExpandedGroup {
		n.ExpandGroups(ctx)
	}
	return n.Children()
}

func (n *Node) IsGroup() bool         { return n.isGroup }
func (n *Node) IsSeries() bool        { return n.isSeries }
func (n *Node) IsTodo() bool          { return n.isTodo }
func (n *Node) IsIgnored() bool       { return n.isIgnored }
func (n *Node) IsVerbose() bool       { return n.isVerbose }
func (n *Node) IsSilent() bool        { return n.isSilent }
func (n *Node) IsExpandedGroup() bool { return n.isExpandedGroup }

func (n *Node) Attempted() bool         { return n.attempted }
func (n *Node) Skipped() bool           { return n.skipped }
func (n *Node) Filtered() bool          { return n.filtered }
func (n *Node) Success() types.TriState { return n.success }
func (n *Node) Aborted() types.TriState { return n.aborted }
func (n *Node) Failed() types.TriState  { return n.failed }

func (n *Node) StartTime() time.Time  { return n.startTime }
func (n *Node) EndTime() time.Time    { return n.endTime }
func (n *Node) ExpandTime() time.Time { return n.expandTime }

// Location is where the node was declared. It may be the zero Location.
func (n *Node) Location() location.Location { return n.location }
func (n *Node) FilePath() string            { return n.location.File }
func (n *Node) LineInFile() int             { return n.location.Line }
func (n *Node) ColumnInLine() int           { return n.location.Column }

// SetLocation overrides the declaration site, for nodes built from a
// declarative source rather than Go code.
func (n *Node) SetLocation(loc location.Location) { n.location = loc }

// ShouldSkip is evaluated on every call so that flags changed while a
// test is running take effect at the next check.
func (n *Node) ShouldSkip() bool {
	return n.isTodo || n.isIgnored || n.filtered
}

// StatusString classifies the node for reporting.
func (n *Node) StatusString() types.Status {
	switch {
	case n.ShouldSkip() || !n.attempted:
		return types.StatusSkipped
	case n.success.IsTrue():
		return types.StatusPassed
	default:
		return types.StatusFailed
	}
}

// Duration is zero unless both start and end times are set.
func (n *Node) Duration() time.Duration {
	if n.startTime.IsZero() || n.endTime.IsZero() {
		return 0
	}
	return n.endTime.Sub(n.startTime)
}

func (n *Node) DurationMilliseconds() float64 {
	return float64(n.Duration()) / float64(time.Millisecond)
}

func (n *Node) DurationSeconds() float64 {
	return n.DurationMilliseconds() * 0.001
}

// Errors returns the errors recorded on this node, not its children.
func (n *Node) Errors() []*TestError {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.errors)
}

func (n *Node) AnyErrors() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors) > 0
}

func (n *Node) NoErrors() bool { return !n.AnyErrors() }

func (n *Node) FailedChildren() []*Node { return slices.Clone(n.failedChildren) }

func (n *Node) AnyFailedChildren() bool { return len(n.failedChildren) > 0 }

// Reset clears the run state of the node and its descendants. Structure,
// flags, tags, filters and callbacks are retained.
func (n *Node) Reset() {
	n.LogVerbose(fmt.Sprintf("Resetting test %q.", n.name))
	n.attempted = false
	n.skipped = false
	n.success = types.Unset
	n.aborted = types.Unset
	n.failed = types.Unset
	n.startTime = time.Time{}
	n.endTime = time.Time{}
	n.mu.Lock()
	n.errors = nil
	if n.expandErr != nil {
		n.errors = []*TestError{n.expandErr}
	}
	n.mu.Unlock()
	n.failedChildren = nil
	if n.expandErr != nil {
		// the body is not evaluated again, so the group stays aborted
		n.markExpandFailed(n.expandErr)
	}
	for _, child := range n.children {
		child.Reset()
	}
}

func (n *Node) Todo() {
	n.LogVerbose(fmt.Sprintf("Marking test %q as todo.", n.name))
	n.isTodo = true
	for _, child := range n.children {
		child.Todo()
	}
}

func (n *Node) RemoveTodo() {
	n.LogVerbose(fmt.Sprintf("Removing todo status from test %q.", n.name))
	n.isTodo = false
	for _, child := range n.children {
		child.RemoveTodo()
	}
}

func (n *Node) Ignore() {
	n.LogVerbose(fmt.Sprintf("Marking test %q as ignored.", n.name))
	n.isIgnored = true
	for _, child := range n.children {
		child.Ignore()
	}
}

func (n *Node) Unignore() {
	n.LogVerbose(fmt.Sprintf("Marking test %q as unignored.", n.name))
	n.isIgnored = false
	for _, child := range n.children {
		child.Unignore()
	}
}

func (n *Node) Silent() {
	n.isSilent = true
	for _, child := range n.children {
		child.Silent()
	}
}

func (n *Node) NotSilent() {
	n.isSilent = false
	for _, child := range n.children {
		child.NotSilent()
	}
}

// Verbose also un-silences the node and its children.
func (n *Node) Verbose() {
	n.isVerbose = true
	n.isSilent = false
	for _, child := range n.children {
		child.Verbose()
	}
}

func (n *Node) NotVerbose() {
	n.isVerbose = false
	for _, child := range n.children {
		child.NotVerbose()
	}
}

// Tags assigns tags to this node. Descendants see them through HasTag.
func (n *Node) Tags(tags ...string) {
	for _, tag := range tags {
		n.tags[tag] = struct{}{}
	}
}

// GetTags returns the node's own tags in sorted order.
func (n *Node) GetTags() []string {
	tags := make([]string, 0, len(n.tags))
	for tag := range n.tags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// OwnTag reports whether the tag was assigned to this node itself.
func (n *Node) OwnTag(tag string) bool {
	_, ok := n.tags[tag]
	return ok
}

// HasTag reports whether this node or any ancestor carries the tag.
func (n *Node) HasTag(tag string) bool {
	for t := n; t != nil; t = t.parent {
		if t.OwnTag(tag) {
			return true
		}
	}
	return false
}

func (n *Node) root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (n *Node) isAncestorOf(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// AddTest attaches child to this group, detaching it from any previous
// parent first.
func (n *Node) AddTest(child *Node) error {
	if child == nil {
		return errors.New("cannot add a nil test")
	}
	n.LogVerbose(fmt.Sprintf("Adding test %q as a child of parent %q.", child.name, n.name))
	if child.parent == n {
		return nil
	}
	if !n.isGroup {
		return ErrNotGroup
	}
	if child.isAncestorOf(n) {
		return ErrCycle
	}
	if child.parent != nil {
		child.Orphan()
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// Test creates a test with the given body and adds it as a child. An
// empty name is replaced with an ordinal one, e.g. "3rd child test".
func (n *Node) Test(name string, body Body) (*Node, error) {
	return n.addChild(name, body, false, false)
}

// Group creates a test group and adds it as a child.
func (n *Node) Group(name string, body Body) (*Node, error) {
	return n.addChild(name, body, true, false)
}

// Series creates a test series and adds it as a child.
func (n *Node) Series(name string, body Body) (*Node, error) {
	return n.addChild(name, body, true, true)
}

func (n *Node) addChild(name string, body Body, group, series bool) (*Node, error) {
	if !n.isGroup {
		return nil, ErrNotGroup
	}
	if name == "" {
		name = Ordinal(len(n.children)+1) + " child test"
	}
	child := newNode(name, body, n.locator, n.logFunc, n.logger)
	child.location = child.locator.Locate()
	child.isGroup = group
	child.isSeries = series
	if err := n.AddTest(child); err != nil {
		return nil, err
	}
	child.isTodo = n.isTodo
	child.isIgnored = n.isIgnored
	child.isSilent = n.isSilent
	child.isVerbose = n.isVerbose

	if expanding := n.root().expanding; expanding != nil && expanding != n {
		n.Log(yellow(fmt.Sprintf(
			"Warning: Adding test %q to a group other than %q even though "+
				"the operation is taking place in that group's body function. "+
				"This is probably unintended!", name, expanding.Title())))
	}
	return child, nil
}

// Orphan removes the node from its parent. It reports false when the
// node had no parent.
func (n *Node) Orphan() bool {
	if n.parent == nil {
		return false
	}
	n.LogVerbose(fmt.Sprintf("Orphaning test %q from its parent %q.", n.name, n.parent.name))
	return n.parent.RemoveTest(n)
}

// RemoveTest detaches child from this node or from any descendant. It
// reports whether the child was found.
func (n *Node) RemoveTest(child *Node) bool {
	if child == nil {
		return false
	}
	n.LogVerbose(fmt.Sprintf("Removing child test %q from parent test %q.", child.name, n.name))
	if i := slices.Index(n.children, child); i >= 0 {
		child.parent = nil
		n.children = slices.Delete(n.children, i, i+1)
		return true
	}
	for _, c := range n.children {
		if c.RemoveTest(child) {
			return true
		}
	}
	return false
}

func (n *Node) RemoveAllTests() {
	n.LogVerbose(fmt.Sprintf("Removing all child tests from %q.", n.name))
	for _, child := range n.children {
		child.parent = nil
	}
	n.children = nil
}
