// Package recovery implements the debug routine used after a fix for
// the same symptoms has already failed.
//
// First-time errors never come here; Enter refuses them so they fall
// through to ordinary ACT handling. The attempt history only grows: a
// failed validation appends to it and sends the routine back to
// Diagnose, and a diagnosis already tried for the same symptom set is
// rejected.
package recovery

import (
	"sort"
	"strings"
	"time"
)

// SymptomSet is a canonical set of symptom descriptions: trimmed,
// lower-cased, de-duplicated and sorted. Build it with NewSymptomSet.
type SymptomSet []string

// NewSymptomSet canonicalizes items into a SymptomSet. Blank items are
// dropped.
func NewSymptomSet(items ...string) SymptomSet {
	seen := make(map[string]bool, len(items))
	out := make(SymptomSet, 0, len(items))
	for _, it := range items {
		s := strings.ToLower(strings.Join(strings.Fields(it), " "))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Key returns a stable string form used for equality and storage.
func (s SymptomSet) Key() string {
	return strings.Join(s, " | ")
}

// Equal reports whether two sets hold the same symptoms.
func (s SymptomSet) Equal(o SymptomSet) bool {
	return NewSymptomSet(s...).Key() == NewSymptomSet(o...).Key()
}

// --- Causes ---

// CauseKind classifies a candidate cause.
type CauseKind string

const (
	CauseBug         CauseKind = "bug"
	CauseDesignFlaw  CauseKind = "design-flaw"
	CauseEnvironment CauseKind = "environment"
	CauseMisuse      CauseKind = "misuse"
)

// Cause is one candidate explanation for the symptoms.
type Cause struct {
	Kind        CauseKind `json:"kind"`
	Description string    `json:"description"`
}

// designFlawCandidate is added when the caller's reasoning did not
// consider the design itself.
var designFlawCandidate = Cause{
	Kind:        CauseDesignFlaw,
	Description: "the current design cannot satisfy the requirement; the fix belongs in the architecture, not the code path",
}

// --- Attempts ---

// Attempt records one fix attempt for a symptom set.
type Attempt struct {
	Symptoms  SymptomSet `json:"symptoms"`
	Diagnosis string     `json:"diagnosis,omitempty"`
	Causes    []Cause    `json:"causes,omitempty"`
	Fix       string     `json:"fix"`
	Passed    bool       `json:"passed"`
	Reason    string     `json:"reason,omitempty"`
	At        time.Time  `json:"at"`
}

// Phase is a step of the debug routine.
type Phase string

const (
	PhaseDiagnose            Phase = "diagnose"
	PhaseReason              Phase = "reason"
	PhaseSearchKnownPatterns Phase = "search-known-patterns"
	PhaseProposeFix          Phase = "propose-fix"
	PhaseValidate            Phase = "validate"
	PhaseApply               Phase = "apply"
	PhaseDone                Phase = "done"
)

// normalizeDiagnosis folds whitespace and case so trivially reworded
// repeats are still caught.
func normalizeDiagnosis(d string) string {
	return strings.ToLower(strings.Join(strings.Fields(d), " "))
}
