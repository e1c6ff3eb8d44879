/*
Package tree implements the hierarchical test model executed by op-canary.

A Node is a single test, a group of tests, or a series of tests. Groups
hold child nodes and lifecycle callbacks; a series is a group that stops
at the first failing child. Nodes are run depth-first and strictly
sequentially:

  - Run: the lifecycle state machine (begin callbacks, body, children,
    success/failure callbacks, end callbacks)
  - ExpandGroups: one-time evaluation of group bodies to materialize children
  - ApplyFilter / ResetFilter: predicate based eligibility marking
  - Reset: clears run state so the same tree can run again

Faults raised by bodies and callbacks, whether returned as errors or
raised as panics, are recorded as TestError values on the node where they
surfaced and never propagate to the caller of Run. Misuse of the
construction API, such as adding children to a plain test, is reported
through returned errors.
*/
package tree
