// Package trigger classifies session events into update triggers.
//
// Classification is pure: an Event goes in, at most one Trigger comes
// out. The explicit update command is the only fixed literal; every
// other trigger is inferred from the event's signals or from a
// pluggable Inferrer supplied by the caller.
package trigger

import (
	"fmt"
	"strings"
)

// Trigger is a classified session event. Triggers are consumed once by
// the scheduler and never persisted.
type Trigger string

const (
	NewPatternDiscovered         Trigger = "new-pattern-discovered"
	SignificantChangeImplemented Trigger = "significant-change-implemented"
	ExplicitUpdateCommand        Trigger = "explicit-update-command"
	ContextClarificationNeeded   Trigger = "context-clarification-needed"
	PlanVerified                 Trigger = "plan-verified"
)

// UpdateCommand is the literal phrase that always requests a full review.
const UpdateCommand = "update memory files"

var validTriggers = map[Trigger]bool{
	NewPatternDiscovered:         true,
	SignificantChangeImplemented: true,
	ExplicitUpdateCommand:        true,
	ContextClarificationNeeded:   true,
	PlanVerified:                 true,
}

// Validate returns an error if t is not a known trigger.
func Validate(t Trigger) error {
	if !validTriggers[t] {
		return fmt.Errorf("invalid trigger %q: must be one of: new-pattern-discovered, "+
			"significant-change-implemented, explicit-update-command, "+
			"context-clarification-needed, plan-verified", t)
	}
	return nil
}

// --- Signals ---

// Signal is a semantic hint attached to an event by whoever observed it.
type Signal string

const (
	SignalPatternFound          Signal = "pattern-found"
	SignalChangeCompleted       Signal = "change-completed"
	SignalPlanAccepted          Signal = "plan-accepted"
	SignalRequirementsAmbiguous Signal = "requirements-ambiguous"
)

// signalPrecedence decides between several signals on one event. The
// first match wins.
var signalPrecedence = []struct {
	signal  Signal
	trigger Trigger
}{
	{SignalRequirementsAmbiguous, ContextClarificationNeeded},
	{SignalPlanAccepted, PlanVerified},
	{SignalChangeCompleted, SignificantChangeImplemented},
	{SignalPatternFound, NewPatternDiscovered},
}

// ParseSignal converts a string to a Signal, rejecting unknown values.
func ParseSignal(s string) (Signal, error) {
	sig := Signal(strings.TrimSpace(s))
	for _, p := range signalPrecedence {
		if p.signal == sig {
			return sig, nil
		}
	}
	return "", fmt.Errorf("invalid signal %q: must be one of: pattern-found, change-completed, plan-accepted, requirements-ambiguous", s)
}

// Event is an incoming session event description.
type Event struct {
	Text    string
	Signals []Signal
}

// Inferrer classifies free text when no signal is present. It reports
// ok == false when it cannot decide.
type Inferrer func(text string) (Trigger, bool)

// Detector maps events to triggers.
type Detector struct {
	infer Inferrer
}

// NewDetector creates a Detector. infer may be nil.
func NewDetector(infer Inferrer) *Detector {
	return &Detector{infer: infer}
}

// Detect returns the single trigger for ev. ok is false when nothing
// matches; there is no default trigger.
func (d *Detector) Detect(ev Event) (Trigger, bool) {
	if strings.Contains(strings.ToLower(ev.Text), UpdateCommand) {
		return ExplicitUpdateCommand, true
	}

	present := make(map[Signal]bool, len(ev.Signals))
	for _, s := range ev.Signals {
		present[s] = true
	}
	for _, p := range signalPrecedence {
		if present[p.signal] {
			return p.trigger, true
		}
	}

	if d != nil && d.infer != nil && strings.TrimSpace(ev.Text) != "" {
		t, ok := d.infer(ev.Text)
		if ok && Validate(t) == nil {
			return t, true
		}
	}
	return "", false
}
