package tree

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/ethereum-optimism/infra/op-canary/pathutil"
)

const maxStackDepth = 32

// ErrorLocation is where a TestError surfaced: a *Node or a *Callback.
type ErrorLocation interface {
	Name() string
	Title() string
}

// TestError records one fault encountered while running a node.
type TestError struct {
	test     *Node
	err      error
	location ErrorLocation
	frames   []string
}

// Test is the node whose errors list holds this error.
func (e *TestError) Test() *Node { return e.test }

// Err is the underlying fault.
func (e *TestError) Err() error { return e.err }

func (e *TestError) Location() ErrorLocation { return e.location }

func (e *TestError) Message() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

// Name is the Go type of the underlying fault.
func (e *TestError) Name() string {
	var p *PanicError
	if errors.As(e.err, &p) {
		if inner, ok := p.Value.(error); ok {
			return fmt.Sprintf("%T", inner)
		}
		return "panic"
	}
	if e.err == nil {
		return ""
	}
	return fmt.Sprintf("%T", e.err)
}

// Stack is the message followed by one "    at function (file:line)"
// line per frame.
func (e *TestError) Stack() string {
	if len(e.frames) == 0 {
		return e.Message()
	}
	return e.Message() + "\n" + strings.Join(e.frames, "\n")
}

// Line is the first frame following the message lines of Stack, or an
// empty string when no frame is known.
func (e *TestError) Line() string {
	messageLines := 1
	if msg := e.Message(); msg != "" {
		messageLines = len(strings.Split(msg, "\n"))
	}
	lines := strings.Split(e.Stack(), "\n")
	if messageLines >= len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[messageLines])
}

// LocationName is a short name for where the error surfaced.
func (e *TestError) LocationName() string {
	if e.location == nil {
		return ""
	}
	return e.location.Name()
}

// LocationTitle fully identifies where the error surfaced.
func (e *TestError) LocationTitle() string {
	if e.location == nil {
		return ""
	}
	return e.location.Title()
}

// LocationSkipped reports whether the node owning the error location is
// marked to be skipped.
func (e *TestError) LocationSkipped() bool {
	switch loc := e.location.(type) {
	case *Callback:
		return loc.owner.ShouldSkip()
	case *Node:
		return loc.ShouldSkip()
	}
	return false
}

// PanicError wraps a value recovered from a panicking body or callback.
type PanicError struct {
	Value  any
	frames []string
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p.Value)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// newPanicError must be called from the deferred function that recovered
// the panic, so that the panic site is still on the stack.
func newPanicError(value any) *PanicError {
	return &PanicError{Value: value, frames: captureFrames(3)}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func formatFrame(function, file string, line int) string {
	return fmt.Sprintf("    at %s (%s:%d)", function, pathutil.Normalize(file), line)
}

// errorFrames extracts the frames carried by err itself.
func errorFrames(err error) []string {
	var p *PanicError
	if errors.As(err, &p) {
		return p.frames
	}
	var st stackTracer
	if errors.As(err, &st) {
		trace := st.StackTrace()
		frames := make([]string, 0, len(trace))
		for _, f := range trace {
			pc := uintptr(f) - 1
			fn := runtime.FuncForPC(pc)
			if fn == nil {
				continue
			}
			file, line := fn.FileLine(pc)
			frames = append(frames, formatFrame(fn.Name(), file, line))
		}
		return frames
	}
	return nil
}

// captureFrames renders the current goroutine's stack, omitting the
// runtime, the testing harness and the node machinery.
func captureFrames(skip int) []string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	iter := runtime.CallersFrames(pcs[:n])
	var frames []string
	for {
		frame, more := iter.Next()
		if !skipFrame(frame.Function) {
			frames = append(frames, formatFrame(frame.Function, frame.File, frame.Line))
		}
		if !more {
			return frames
		}
	}
}

func skipFrame(function string) bool {
	return function == "" ||
		strings.HasPrefix(function, "runtime.") ||
		strings.HasPrefix(function, "testing.") ||
		isInternalFrame(function)
}

// AddError records err against the node. A nil location means the node
// itself. AddError may be called from goroutines started by a body.
func (n *Node) AddError(err error, loc ErrorLocation) *TestError {
	return n.addError(err, loc, "")
}

func (n *Node) addError(err error, loc ErrorLocation, site string) *TestError {
	if err != nil {
		n.Log(red(fmt.Sprintf("Encountered an error while running test %q:\n  %s", n.name, err)))
	} else {
		n.Log(red(fmt.Sprintf("Encountered an error while running test %q.", n.name)))
	}
	if loc == nil {
		loc = n
	}
	frames := errorFrames(err)
	if len(frames) == 0 && site != "" {
		frames = []string{site}
	}
	if len(frames) == 0 {
		frames = captureFrames(3)
	}
	testErr := &TestError{test: n, err: err, location: loc, frames: frames}

	n.mu.Lock()
	n.errors = append(n.errors, testErr)
	n.mu.Unlock()

	n.logger.Debug("Test error recorded", "test", n.Title(), "location", testErr.LocationName(), "err", err)
	return testErr
}
