// Package location captures the source location at which a test node was
// declared.
package location

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/ethereum-optimism/infra/op-canary/pathutil"
)

// maxDepth bounds how many frames a CallerProvider inspects.
const maxDepth = 64

// Location is a file/line/column triple. The zero value means unknown.
type Location struct {
	File     string
	Line     int
	Column   int
	Function string
}

// IsZero reports whether the location is unknown.
func (l Location) IsZero() bool {
	return l.File == ""
}

func (l Location) String() string {
	if l.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Provider infers where a node is being declared. Implementations may
// return the zero Location when nothing can be determined.
type Provider interface {
	Locate() Location
}

// NopProvider never knows a location.
type NopProvider struct{}

func (NopProvider) Locate() Location { return Location{} }

// Static always reports the same location. Declarative sources, such as
// suite manifests, use it to attribute nodes to their defining file.
type Static Location

func (s Static) Locate() Location { return Location(s) }

// CallerProvider walks the goroutine's call stack and returns the first
// frame that is not internal to the runtime, the testing package, this
// package, or a function matched by Skip. Go does not expose columns,
// so Column is always 0.
type CallerProvider struct {
	Skip func(function string) bool
}

func (p CallerProvider) Locate() Location {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !p.internal(frame.Function) && frame.File != "" {
			return Location{
				File:     pathutil.Normalize(frame.File),
				Line:     frame.Line,
				Function: frame.Function,
			}
		}
		if !more {
			return Location{}
		}
	}
}

var selfPrefix = reflect.TypeOf(NopProvider{}).PkgPath() + "."

func (p CallerProvider) internal(function string) bool {
	switch {
	case function == "":
		return true
	case strings.HasPrefix(function, "runtime."), strings.HasPrefix(function, "testing."):
		return true
	case strings.HasPrefix(function, selfPrefix):
		return true
	}
	return p.Skip != nil && p.Skip(function)
}
