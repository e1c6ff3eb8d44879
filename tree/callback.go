package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-canary/types"
)

const numCallbackTypes = int(types.OnEachFailure) + 1

// ErrNoImplementation is recorded when a registered callback has no body.
var ErrNoImplementation = errors.New("callback has no implementation")

// CallbackFunc is a lifecycle hook. The node passed in is the node being
// run, which for onEach* callbacks is a child of the callback's owner.
type CallbackFunc func(ctx context.Context, t *Node) error

// Callback is a registered lifecycle hook. It is immutable.
type Callback struct {
	typ   types.CallbackType
	owner *Node
	name  string
	fn    CallbackFunc
	site  string
}

func (c *Callback) Type() types.CallbackType { return c.typ }

// Owner is the group the callback was registered on.
func (c *Callback) Owner() *Node { return c.owner }

func (c *Callback) Name() string {
	return fmt.Sprintf("%s => %s (%s)", c.owner.Name(), c.typ, c.name)
}

func (c *Callback) Title() string {
	return fmt.Sprintf("%s => %s (%s)", c.owner.Title(), c.typ, c.name)
}

func (n *Node) addCallback(typ types.CallbackType, name string, fn CallbackFunc) (*Callback, error) {
	n.LogVerbose(fmt.Sprintf("Adding %q callback to test %q...", typ, n.name))
	if !n.isGroup {
		return nil, ErrCallbackNotGroup
	}
	if name == "" {
		name = fmt.Sprintf("%s %s callback", Ordinal(len(n.callbacks[typ])+1), typ)
	}
	cb := &Callback{
		typ:   typ,
		owner: n,
		name:  name,
		fn:    fn,
		site:  funcSite(fn),
	}
	n.callbacks[typ] = append(n.callbacks[typ], cb)
	n.LogVerbose(fmt.Sprintf("Added %q callback named %q to test %q.", typ, name, n.name))
	return cb, nil
}

// Callbacks returns the callbacks of the given type registered on n.
func (n *Node) Callbacks(typ types.CallbackType) []*Callback {
	if int(typ) < 0 || int(typ) >= numCallbackTypes {
		return nil
	}
	return append([]*Callback(nil), n.callbacks[typ]...)
}

// OnBegin registers a callback run before the group's body and children.
func (n *Node) OnBegin(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnBegin, name, fn)
}

// OnEnd registers a callback run after the group ends, whatever the outcome.
func (n *Node) OnEnd(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnEnd, name, fn)
}

// OnEachBegin registers a callback run before each child begins.
func (n *Node) OnEachBegin(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnEachBegin, name, fn)
}

// OnEachEnd registers a callback run after each child ends.
func (n *Node) OnEachEnd(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnEachEnd, name, fn)
}

// OnSuccess registers a callback run when the group completes successfully.
func (n *Node) OnSuccess(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnSuccess, name, fn)
}

// OnFailure registers a callback run when the group fails or is aborted.
func (n *Node) OnFailure(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnFailure, name, fn)
}

// OnEachSuccess registers a callback run after each child that completes
// successfully.
func (n *Node) OnEachSuccess(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnEachSuccess, name, fn)
}

// OnEachFailure registers a callback run after each child that fails or is
// aborted.
func (n *Node) OnEachFailure(name string, fn CallbackFunc) (*Callback, error) {
	return n.addCallback(types.OnEachFailure, name, fn)
}

// runCallbacks invokes list in registration order. Faults are recorded on
// n at the failing callback. With exitOnError set, the remaining callbacks
// are skipped once n has errored or terminated.
func (n *Node) runCallbacks(ctx context.Context, exitOnError bool, list []*Callback) {
	for _, cb := range list {
		if cb.fn == nil {
			n.addError(ErrNoImplementation, cb, "")
		}
		if exitOnError && n.terminatedOrErrored() {
			return
		}
		if cb.fn == nil {
			continue
		}
		if err := n.invoke(ctx, cb.fn); err != nil {
			n.addError(err, cb, cb.site)
		}
	}
}
