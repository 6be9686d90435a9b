package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/memgraph"
)

var (
	ErrNoSession      = errors.New("no active session: start one with a mode directive")
	ErrSessionActive  = errors.New("a session is already active: end it before starting another")
	ErrSessionDone    = errors.New("session pipeline is finished")
	ErrGateBlocked    = errors.New("waiting at the verification gate: accept or reject the approach")
	ErrSuspended      = errors.New("session is suspended for clarification: resolve it first")
	ErrNotSuspended   = errors.New("session is not waiting for clarification")
	ErrUnitDocumented = errors.New("unit of work already documented")
	ErrNotWritable    = errors.New("memory files are written only in ACT mode or while documenting a verified plan")

	// ErrStorage wraps failures of the persister or loader.
	ErrStorage = errors.New("memory file storage failed")
)

// AmbiguousModeError is returned when the mode is neither given by a
// directive nor inferable with full confidence. No mode is chosen.
type AmbiguousModeError struct {
	Reason string
}

func (e *AmbiguousModeError) Error() string {
	return fmt.Sprintf("mode is ambiguous (%s): state %q or %q explicitly", e.Reason, DirectivePlan, DirectiveAct)
}

// IncompleteMemoryError reports absent or unauthored core nodes. It is
// a notice: PLAN routes to CreatePlan and ACT schedules the missing
// nodes for writing.
type IncompleteMemoryError struct {
	Missing []memgraph.NodeID
}

func (e *IncompleteMemoryError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = string(id)
	}
	return fmt.Sprintf("core memory files missing: %s", strings.Join(ids, ", "))
}

// OutOfOrderError rejects a write while an ancestor is still pending.
type OutOfOrderError struct {
	Node    memgraph.NodeID
	Pending memgraph.NodeID
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("cannot write %s before its upstream %s", e.Node, e.Pending)
}

// PhaseError is returned when an operation does not apply to the
// current phase.
type PhaseError struct {
	Op    string
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("cannot %s during %s", e.Op, e.Phase)
}
