// Package workflow implements the PLAN/ACT mode controller.
//
// A Controller holds at most one Session. The session walks the phase
// pipeline of its mode; every blocking point (the verification gate and
// the clarification phase) is explicit state waiting for the next call,
// never a goroutine parked on a channel. Update plans produced by the
// scheduler become the session's pending list, and Apply refuses to
// write a node while one of its ancestors is still pending.
package workflow

import (
	"fmt"
	"strings"
)

// --- Mode ---

// Mode is the session mode.
type Mode string

const (
	ModePlan Mode = "PLAN"
	ModeAct  Mode = "ACT"
)

// Mode directives. Matching is case-sensitive.
const (
	DirectivePlan = "MODE = PLAN MODE"
	DirectiveAct  = "MODE = ACT MODE"
)

// ParseMode converts "plan" / "act" (any case) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModePlan:
		return ModePlan, nil
	case ModeAct:
		return ModeAct, nil
	}
	return "", fmt.Errorf("invalid mode %q: must be one of: PLAN, ACT", s)
}

// --- Phase ---

// Phase is a step of a mode pipeline.
type Phase string

const (
	// PLAN
	PhaseReadMemoryFiles       Phase = "read-memory-files"
	PhaseCheckFilesComplete    Phase = "check-files-complete"
	PhaseCreatePlan            Phase = "create-plan"
	PhaseDocumentInChat        Phase = "document-in-chat"
	PhaseVerifyContext         Phase = "verify-context"
	PhaseDevelopStrategy       Phase = "develop-strategy"
	PhasePresentApproach       Phase = "present-approach"
	PhaseVerificationGate      Phase = "verification-gate"
	PhaseDocumentInMemoryFiles Phase = "document-in-memory-files"

	// ACT
	PhaseCheckMemoryFiles    Phase = "check-memory-files"
	PhaseUpdateDocumentation Phase = "update-documentation"
	PhaseUpdateRules         Phase = "update-rules"
	PhaseExecute             Phase = "execute"
	PhaseDocumentChanges     Phase = "document-changes"

	// Shared by both modes.
	PhaseClarification Phase = "clarification"
	PhaseDone          Phase = "done"
)

// Route selects a branch of the PLAN pipeline.
type Route string

const (
	RouteComplete   Route = "complete"
	RouteIncomplete Route = "incomplete"
)

// PipelineRegistry defines the phase sequence for each mode and route.
// PLAN branches after CheckFilesComplete. ACT has a single route; its
// DocumentChanges phase loops back to Execute while more work remains.
var PipelineRegistry = map[Mode]map[Route][]Phase{
	ModePlan: {
		RouteComplete: {
			PhaseReadMemoryFiles, PhaseCheckFilesComplete,
			PhaseVerifyContext, PhaseDevelopStrategy, PhasePresentApproach,
			PhaseVerificationGate, PhaseDocumentInMemoryFiles,
		},
		RouteIncomplete: {
			PhaseReadMemoryFiles, PhaseCheckFilesComplete,
			PhaseCreatePlan, PhaseDocumentInChat,
		},
	},
	ModeAct: {
		RouteComplete: {
			PhaseCheckMemoryFiles, PhaseUpdateDocumentation, PhaseUpdateRules,
			PhaseExecute, PhaseDocumentChanges,
		},
	},
}

// Pipeline returns a copy of the phase sequence for mode and route.
func Pipeline(m Mode, r Route) ([]Phase, error) {
	routes, ok := PipelineRegistry[m]
	if !ok {
		return nil, fmt.Errorf("no pipeline defined for mode %q", m)
	}
	seq, ok := routes[r]
	if !ok {
		return nil, fmt.Errorf("no pipeline defined for %s/%s", m, r)
	}
	out := make([]Phase, len(seq))
	copy(out, seq)
	return out, nil
}

// next returns the phase after p on route r, or PhaseDone when p is last.
func next(m Mode, r Route, p Phase) (Phase, error) {
	seq, err := Pipeline(m, r)
	if err != nil {
		return "", err
	}
	for i, ph := range seq {
		if ph != p {
			continue
		}
		if i == len(seq)-1 {
			return PhaseDone, nil
		}
		return seq[i+1], nil
	}
	return "", fmt.Errorf("phase %q is not part of the %s/%s pipeline", p, m, r)
}

// --- Status ---

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusBlocked   Status = "blocked"   // waiting at the verification gate
	StatusSuspended Status = "suspended" // waiting for clarification
	StatusDone      Status = "done"
)
