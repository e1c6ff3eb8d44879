package types

import "fmt"

// Status is the reporting bucket a test node ends up in after a run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// TriState is a boolean that can also be unset, used for lifecycle flags
// that have no value until a node has been run.
type TriState int8

const (
	Unset TriState = iota
	True
	False
)

// TriStateOf converts a plain bool into a set TriState.
func TriStateOf(b bool) TriState {
	if b {
		return True
	}
	return False
}

// IsTrue reports whether the state is set and true.
func (t TriState) IsTrue() bool { return t == True }

// IsSet reports whether the state has a value.
func (t TriState) IsSet() bool { return t != Unset }

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unset"
	}
}

// CallbackType identifies a lifecycle hook point.
type CallbackType int

const (
	OnBegin CallbackType = iota
	OnEnd
	OnEachBegin
	OnEachEnd
	OnSuccess
	OnFailure
	OnEachSuccess
	OnEachFailure
)

// CallbackTypes lists every callback type in declaration order.
var CallbackTypes = []CallbackType{
	OnBegin, OnEnd, OnEachBegin, OnEachEnd,
	OnSuccess, OnFailure, OnEachSuccess, OnEachFailure,
}

func (c CallbackType) String() string {
	switch c {
	case OnBegin:
		return "onBegin"
	case OnEnd:
		return "onEnd"
	case OnEachBegin:
		return "onEachBegin"
	case OnEachEnd:
		return "onEachEnd"
	case OnSuccess:
		return "onSuccess"
	case OnFailure:
		return "onFailure"
	case OnEachSuccess:
		return "onEachSuccess"
	case OnEachFailure:
		return "onEachFailure"
	default:
		return fmt.Sprintf("CallbackType(%d)", int(c))
	}
}

// IsEach reports whether callbacks of this type are registered on a parent
// and fire around each of its children.
func (c CallbackType) IsEach() bool {
	switch c {
	case OnEachBegin, OnEachEnd, OnEachSuccess, OnEachFailure:
		return true
	}
	return false
}
