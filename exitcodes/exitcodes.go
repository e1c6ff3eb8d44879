// Package exitcodes defines the exit codes of op-canary.
package exitcodes

// A run-once invocation exits with:
//
// * Success (0) when every test passed or was skipped
// * TestFailure (1) when at least one test failed
// * RuntimeErr (2) when the suite could not be loaded or run
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
