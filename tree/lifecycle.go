package tree

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ethereum-optimism/infra/op-canary/types"
)

const tracerName = "op-canary/tree"

// Run executes the node: begin callbacks, body, children in declared
// order, then success or failure callbacks and end callbacks. Faults are
// recorded on the nodes where they occur; Run itself never fails and
// always returns control to the caller.
func (n *Node) Run(ctx context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "test "+n.Title())
	defer func() {
		status := n.StatusString()
		span.SetAttributes(
			attribute.String("test.status", string(status)),
			attribute.Int("test.errors", len(n.Errors())),
			attribute.Bool("test.group", n.isGroup),
		)
		if status == types.StatusFailed {
			span.SetStatus(codes.Error, "test failed")
		}
		span.End()
	}()
	n.run(ctx)
}

func (n *Node) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			n.LogVerbose(fmt.Sprintf("Aborting due to an unhandled error encountered while running test %q.", n.name))
			n.abortUnhandled(ctx, newPanicError(r))
		}
	}()

	n.LogVerbose(fmt.Sprintf("Beginning to run test %q.", n.name))
	if n.ShouldSkip() {
		n.LogVerbose("The test was marked to be skipped.")
		n.Skip()
		return
	}
	if n.aborted.IsTrue() || n.failed.IsTrue() {
		n.LogVerbose("The test was already marked as failed.")
		return
	}
	if n.isGroup && !n.isExpandedGroup {
		n.ExpandGroups(ctx)
	}

	n.initialize()
	n.doBeginCallbacks(ctx)
	if n.terminatedOrErrored() {
		n.LogVerbose("Aborting due to errors found after executing onBegin and onEachBegin callbacks.")
		n.abort(ctx, nil, nil, "")
		return
	}

	if n.body != nil && !n.isExpandedGroup {
		if err := n.invoke(ctx, n.body); err != nil {
			n.LogVerbose("Aborting due to an error returned by the test's body function.")
			n.abort(ctx, err, n, n.bodySite)
			return
		}
		if n.terminatedOrErrored() {
			n.LogVerbose("Aborting due to errors found after evaluating the test's body function.")
			n.abort(ctx, nil, nil, "")
			return
		}
		if n.ShouldSkip() {
			n.LogVerbose("The test was found to be marked for skipping after evaluating its body function.")
			n.Skip()
			return
		}
	}

	if n.isGroup {
		for _, child := range n.Children() {
			child.Run(ctx)
			if (child.aborted.IsTrue() || child.failed.IsTrue()) && !child.ShouldSkip() {
				if n.isSeries {
					n.LogVerbose(fmt.Sprintf("Skipping remaining child tests because the child test %q was aborted.", child.name))
					n.exitTestGroup(ctx, child)
					return
				}
				n.failedChildren = append(n.failedChildren, child)
			} else if n.terminatedOrErrored() {
				n.LogVerbose(fmt.Sprintf("Aborting due to errors found after running the child test %q.", child.name))
				n.abort(ctx, nil, nil, "")
				return
			}
		}
	}

	if n.AnyErrors() || n.AnyFailedChildren() {
		n.fail(ctx, nil, nil, "")
		return
	}
	if !n.aborted.IsTrue() && !n.failed.IsTrue() {
		n.complete(ctx)
	}
}

// abortUnhandled aborts after a fault escaped the lifecycle itself. If
// aborting faults as well, the state is patched directly and the fault is
// only logged.
func (n *Node) abortUnhandled(ctx context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Unrecoverable error while aborting test", "test", n.name, "err", err, "abort_err", r)
			func() {
				defer func() { _ = recover() }()
				n.mu.Lock()
				n.errors = append(n.errors, &TestError{test: n, err: newPanicError(r), location: n})
				n.mu.Unlock()
			}()
			n.success = types.False
			n.failed = types.True
			n.aborted = types.True
			n.endTime = time.Now()
		}
	}()
	n.abort(ctx, err, n, "")
}

// invoke calls fn with n as its owner, converting a panic into an error.
func (n *Node) invoke(ctx context.Context, fn func(context.Context, *Node) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return fn(ctx, n)
}

func (n *Node) terminatedOrErrored() bool {
	return n.aborted.IsTrue() || n.failed.IsTrue() || n.AnyErrors()
}

func (n *Node) initialize() {
	n.LogVerbose(fmt.Sprintf("Initializing test %q...", n.name))
	n.startTime = time.Now()
	n.attempted = true
}

// Skip marks the node as skipped.
func (n *Node) Skip() {
	n.LogVerbose(fmt.Sprintf("Skipping test %q.", n.name))
	n.skipped = true
	n.endTime = time.Now()
}

// Fail marks the node as failed, recording err when it is not nil, and runs
// its failure and end callbacks. It does nothing if the node already failed.
func (n *Node) Fail(ctx context.Context, err error) {
	n.fail(ctx, err, n, "")
}

// Abort marks the node as aborted and then fails it.
func (n *Node) Abort(ctx context.Context, err error) {
	n.abort(ctx, err, n, "")
}

func (n *Node) fail(ctx context.Context, err error, loc ErrorLocation, site string) {
	n.LogVerbose(fmt.Sprintf("Beginning to fail test %q...", n.name))
	if n.failed.IsTrue() {
		n.LogVerbose("Ignoring because the test already failed.")
		return
	}
	n.failed = types.True
	n.success = types.False
	if err != nil {
		n.addError(err, loc, site)
	}
	n.Log(fmt.Sprintf("Failing test %q.", n.name))
	n.logger.Debug("Test failed", "test", n.Title(), "aborted", n.aborted.IsTrue())
	n.doEndCallbacks(ctx, false)
	n.endTime = time.Now()
}

func (n *Node) abort(ctx context.Context, err error, loc ErrorLocation, site string) {
	n.LogVerbose(fmt.Sprintf("Beginning to abort test %q...", n.name))
	if n.failed.IsTrue() {
		return
	}
	n.aborted = types.True
	n.fail(ctx, err, loc, site)
}

// exitTestGroup aborts a series after one of its children failed.
func (n *Node) exitTestGroup(ctx context.Context, child *Node) {
	n.LogVerbose(fmt.Sprintf("Beginning to exit test group %q due to a failed child test.", n.name))
	if n.failed.IsTrue() {
		return
	}
	n.failedChildren = append(n.failedChildren, child)
	n.abort(ctx, nil, nil, "")
}

func (n *Node) complete(ctx context.Context) {
	n.LogVerbose(fmt.Sprintf("Beginning to set success state on test %q.", n.name))
	n.success = types.True
	n.failed = types.False
	n.aborted = types.False
	n.doEndCallbacks(ctx, true)
	n.endTime = time.Now()

	// end callbacks may still have recorded errors
	if n.AnyErrors() {
		n.failed = types.True
		n.success = types.False
		n.logger.Debug("Test failed in end callbacks", "test", n.Title())
		return
	}
	kind := "test"
	if n.isGroup {
		kind = "test group"
	}
	n.Log(fmt.Sprintf("Completed %s %q. (%.3fs)", kind, n.Title(), n.DurationSeconds()))
	n.logger.Debug("Test completed", "test", n.Title(), "duration", n.Duration())
}

func (n *Node) doBeginCallbacks(ctx context.Context) {
	if n.parent != nil {
		each := n.parent.callbacks[types.OnEachBegin]
		n.LogVerbose(fmt.Sprintf("Executing parent's %d onEachBegin callbacks for test %q.", len(each), n.name))
		n.runCallbacks(ctx, true, each)
	}
	if n.terminatedOrErrored() {
		if n.parent != nil {
			n.LogVerbose(fmt.Sprintf("Skipping onBegin callbacks for test %q due to errors encountered while running onEachBegin callbacks.", n.name))
		}
		return
	}
	own := n.callbacks[types.OnBegin]
	n.LogVerbose(fmt.Sprintf("Executing %d onBegin callbacks for test %q.", len(own), n.name))
	n.runCallbacks(ctx, true, own)
}

// doEndCallbacks runs the outcome callbacks, then the end callbacks. Each
// phase runs the node's own list before the parent's onEach list, and no
// phase stops at errors.
func (n *Node) doEndCallbacks(ctx context.Context, succeeded bool) {
	own, each := types.OnFailure, types.OnEachFailure
	if succeeded {
		own, each = types.OnSuccess, types.OnEachSuccess
	}
	n.runPhase(ctx, own, each)
	n.runPhase(ctx, types.OnEnd, types.OnEachEnd)
}

func (n *Node) runPhase(ctx context.Context, own, each types.CallbackType) {
	n.LogVerbose(fmt.Sprintf("Executing %d %s callbacks for test %q.", len(n.callbacks[own]), own, n.name))
	n.runCallbacks(ctx, false, n.callbacks[own])
	if n.parent != nil {
		n.LogVerbose(fmt.Sprintf("Executing parent's %d %s callbacks for test %q.", len(n.parent.callbacks[each]), each, n.name))
		n.runCallbacks(ctx, false, n.parent.callbacks[each])
	}
}
