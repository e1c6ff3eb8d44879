// Package runner drives a test tree from start to finish.
//
// The main components are:
//   - Runner: expands, filters and runs a tree, then logs a summary and
//     terminates the process with the outcome unless asked to keep alive
//   - CommandRunner: executes the external commands that manifest-defined
//     tests and callbacks consist of
//   - ExecRunner: the CommandRunner for local processes, with timeouts and a
//     bounded tail of the combined output
package runner
