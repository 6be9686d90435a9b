package recovery

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/HendryAvila/memflow/internal/memgraph"
)

var (
	// ErrFirstFailure means no earlier fix for these symptoms has failed;
	// handle the error through the ordinary ACT flow instead.
	ErrFirstFailure = errors.New("no failed fix attempt for these symptoms yet")

	// ErrRepeatedDiagnosis rejects a diagnosis already tried for the
	// same symptom set.
	ErrRepeatedDiagnosis = errors.New("diagnosis already tried for these symptoms")

	// ErrNoSymptoms rejects an empty symptom set.
	ErrNoSymptoms = errors.New("at least one symptom is required")

	// ErrNotRecorded means the attempt is in the history but the
	// recorder failed to persist it.
	ErrNotRecorded = errors.New("recording attempt")
)

// PhaseError is returned when a step is called out of order.
type PhaseError struct {
	Op    string
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("cannot %s during %s", e.Op, e.Phase)
}

// Diagnostics is the context gathered by Diagnose.
type Diagnostics struct {
	Symptoms      SymptomSet `json:"symptoms"`
	ActiveContext string     `json:"active_context"`
	TasksPlan     string     `json:"tasks_plan"`
	Prior         []Attempt  `json:"prior"`
}

// Routine walks Diagnose → Reason → SearchKnownPatterns → ProposeFix →
// Validate → Apply for one symptom set.
type Routine struct {
	mu       sync.Mutex
	graph    *memgraph.Graph
	history  *History
	symptoms SymptomSet
	phase    Phase
	current  Attempt
}

// Enter starts a routine for symptoms. It returns ErrFirstFailure unless
// history already holds a failed attempt for an equal symptom set.
func Enter(g *memgraph.Graph, symptoms SymptomSet, h *History) (*Routine, error) {
	symptoms = NewSymptomSet(symptoms...)
	if len(symptoms) == 0 {
		return nil, ErrNoSymptoms
	}
	if h == nil || !h.HasFailure(symptoms) {
		return nil, ErrFirstFailure
	}
	return &Routine{
		graph:    g,
		history:  h,
		symptoms: symptoms,
		phase:    PhaseDiagnose,
		current:  Attempt{Symptoms: symptoms},
	}, nil
}

// Phase returns the current step.
func (r *Routine) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Symptoms returns the symptom set the routine is working on.
func (r *Routine) Symptoms() SymptomSet {
	return r.symptoms
}

// Diagnose gathers symptoms, active-context and tasks-plan, and records
// the caller's diagnosis for this round.
func (r *Routine) Diagnose(diagnosis string) (Diagnostics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseDiagnose {
		return Diagnostics{}, &PhaseError{Op: "diagnose", Phase: r.phase}
	}
	if strings.TrimSpace(diagnosis) == "" {
		return Diagnostics{}, fmt.Errorf("diagnosis is required")
	}

	prior := r.history.For(r.symptoms)
	norm := normalizeDiagnosis(diagnosis)
	for _, a := range prior {
		if a.Diagnosis != "" && normalizeDiagnosis(a.Diagnosis) == norm {
			return Diagnostics{}, fmt.Errorf("%w: %q", ErrRepeatedDiagnosis, diagnosis)
		}
	}

	d := Diagnostics{
		Symptoms:      r.symptoms,
		ActiveContext: r.content(memgraph.KindActiveContext),
		TasksPlan:     r.content(memgraph.KindTasksPlan),
		Prior:         prior,
	}
	r.current = Attempt{Symptoms: r.symptoms, Diagnosis: strings.TrimSpace(diagnosis)}
	r.phase = PhaseReason
	return d, nil
}

// Reason records candidate causes. A design-flaw candidate is always
// part of the result.
func (r *Routine) Reason(causes []Cause) ([]Cause, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseReason {
		return nil, &PhaseError{Op: "reason", Phase: r.phase}
	}

	out := make([]Cause, 0, len(causes)+1)
	hasDesign := false
	for _, c := range causes {
		if strings.TrimSpace(c.Description) == "" {
			continue
		}
		if c.Kind == "" {
			c.Kind = CauseBug
		}
		if c.Kind == CauseDesignFlaw {
			hasDesign = true
		}
		out = append(out, c)
	}
	if !hasDesign {
		out = append(out, designFlawCandidate)
	}

	r.current.Causes = out
	r.phase = PhaseSearchKnownPatterns
	return out, nil
}

// SearchKnownPatterns returns lines of error-documentation that mention
// any of the symptoms.
func (r *Routine) SearchKnownPatterns() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseSearchKnownPatterns {
		return nil, &PhaseError{Op: "search known patterns", Phase: r.phase}
	}

	var matches []string
	doc := r.content(memgraph.KindErrorDocumentation)
	for _, line := range strings.Split(doc, "\n") {
		lower := strings.ToLower(line)
		for _, s := range r.symptoms {
			if strings.Contains(lower, s) {
				matches = append(matches, strings.TrimSpace(line))
				break
			}
		}
	}

	r.phase = PhaseProposeFix
	return matches, nil
}

// ProposeFix records the fix to validate.
func (r *Routine) ProposeFix(fix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseProposeFix {
		return &PhaseError{Op: "propose a fix", Phase: r.phase}
	}
	if strings.TrimSpace(fix) == "" {
		return fmt.Errorf("fix is required")
	}
	r.current.Fix = strings.TrimSpace(fix)
	r.phase = PhaseValidate
	return nil
}

// Validate records the validation outcome. On failure the attempt is
// appended to history and the routine returns to Diagnose. It returns
// the phase the routine moved to.
func (r *Routine) Validate(passed bool, reason string) (Phase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseValidate {
		return r.phase, &PhaseError{Op: "validate", Phase: r.phase}
	}

	if passed {
		r.current.Reason = reason
		r.phase = PhaseApply
		return r.phase, nil
	}

	failed := r.current
	failed.Passed = false
	failed.Reason = reason
	err := r.history.Append(failed)
	r.current = Attempt{Symptoms: r.symptoms}
	r.phase = PhaseDiagnose
	return r.phase, err
}

// Apply finalizes a validated fix and records it as a passing attempt.
func (r *Routine) Apply() (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseApply {
		return Attempt{}, &PhaseError{Op: "apply", Phase: r.phase}
	}
	done := r.current
	done.Passed = true
	r.phase = PhaseDone
	if err := r.history.Append(done); err != nil {
		return done, err
	}
	return done, nil
}

func (r *Routine) content(k memgraph.Kind) string {
	if r.graph == nil {
		return ""
	}
	n, ok := r.graph.Node(memgraph.CoreID(k))
	if !ok {
		return ""
	}
	return n.Content
}
