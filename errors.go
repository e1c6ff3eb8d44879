package canary

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-canary/reporting"
)

// RuntimeError is an operational fault that leads to exit code 2, e.g. an
// unreadable manifest or a panic escaping the run.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a run in which at least one test failed (exit
// code 1).
type TestFailureError struct {
	Message string
	Failed  []string // titles of the failed tests
}

func (e *TestFailureError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("test failure: %s", e.Message)
	}
	return fmt.Sprintf("test failure: %s: %s", e.Message, strings.Join(e.Failed, ", "))
}

// NewTestFailureError creates a new TestFailureError for a failed run.
func NewTestFailureError(report *reporting.Report) *TestFailureError {
	return &TestFailureError{Message: report.String(), Failed: report.FailedTestTitles()}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
