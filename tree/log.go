package tree

import (
	"github.com/ethereum-optimism/infra/op-canary/ui"
)

var (
	red    = ui.Red
	yellow = ui.Yellow
)

// LogFunc returns the function receiving this node's output.
func (n *Node) LogFunc() LogFunc { return n.logFunc }

// SetLogFunc replaces the output function of the node and its children.
func (n *Node) SetLogFunc(fn LogFunc) {
	if fn == nil {
		fn = stdoutLog
	}
	n.logFunc = fn
	for _, child := range n.children {
		child.SetLogFunc(fn)
	}
}

// Log writes a message unless the node is silent.
func (n *Node) Log(message string) {
	if !n.isSilent {
		n.logFunc(message)
	}
}

// LogVerbose writes a message only when the node is verbose and not silent.
func (n *Node) LogVerbose(message string) {
	if n.isVerbose && !n.isSilent {
		n.logFunc(message)
	}
}
