package memgraph

import (
	"errors"
	"fmt"
)

// ErrUnknownNode is returned when an operation names a node the graph
// does not hold.
var ErrUnknownNode = errors.New("unknown node")

// InvalidDependencyError rejects an upsert whose edges would break the
// graph's invariants (a cycle, a changed core edge, or an edge out of a
// context leaf). The graph is left unchanged.
type InvalidDependencyError struct {
	Node     NodeID
	Upstream NodeID
	Reason   string
}

func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("invalid dependency %s -> %s: %s", e.Upstream, e.Node, e.Reason)
}

// UnknownParentError rejects a context node attached to a parent that is
// not an existing core node.
type UnknownParentError struct {
	Node   NodeID
	Parent NodeID
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("cannot attach %s: unknown parent %q (must be an existing core node)", e.Node, e.Parent)
}

// RejectedError lists context nodes Load skipped. Every other node was
// loaded; the skipped ones can be loaded again once their parents exist.
type RejectedError struct {
	Nodes []NodeID
	Errs  []error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("skipped %d context node(s): %v", len(e.Nodes), errors.Join(e.Errs...))
}

func (e *RejectedError) Unwrap() []error { return e.Errs }
