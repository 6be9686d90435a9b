package recovery

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/memflow/internal/memgraph"
)

func init() {
	timeNow = func() time.Time {
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}
}

// --- Helpers ---

func testGraph(t *testing.T) *memgraph.Graph {
	t.Helper()
	g := memgraph.New()
	content := map[memgraph.Kind]string{
		memgraph.KindActiveContext:      "Working on the cache layer.",
		memgraph.KindTasksPlan:          "- [ ] cache invalidation",
		memgraph.KindErrorDocumentation: "## Stale reads\nStale read after write: flush the cache on commit.\n## Other\nUnrelated entry",
	}
	for _, k := range memgraph.CoreKinds {
		if _, err := g.UpsertNode(memgraph.CoreID(k), k, content[k]); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	return g
}

func failedHistory(t *testing.T, symptoms ...string) *History {
	t.Helper()
	h := NewHistory(nil)
	if err := h.Append(Attempt{Symptoms: NewSymptomSet(symptoms...), Fix: "retry the read", Reason: "still stale"}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return h
}

// walkToValidate drives a routine from Diagnose to Validate.
func walkToValidate(t *testing.T, r *Routine, diagnosis, fix string) {
	t.Helper()
	if _, err := r.Diagnose(diagnosis); err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if _, err := r.Reason([]Cause{{Kind: CauseBug, Description: "missing flush"}}); err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if _, err := r.SearchKnownPatterns(); err != nil {
		t.Fatalf("SearchKnownPatterns: %v", err)
	}
	if err := r.ProposeFix(fix); err != nil {
		t.Fatalf("ProposeFix: %v", err)
	}
}

type memRecorder struct{ got []Attempt }

func (m *memRecorder) RecordAttempt(a Attempt) error {
	m.got = append(m.got, a)
	return nil
}

// --- SymptomSet ---

func TestNewSymptomSet_Canonical(t *testing.T) {
	s := NewSymptomSet("  Stale Read ", "timeout", "stale   read", "")
	if s.Key() != "stale read | timeout" {
		t.Errorf("Key = %q", s.Key())
	}
	if !s.Equal(NewSymptomSet("TIMEOUT", "stale read")) {
		t.Error("sets with the same symptoms should be equal")
	}
	if s.Equal(NewSymptomSet("timeout")) {
		t.Error("subset must not be equal")
	}
}

// --- Enter ---

func TestEnter_RefusesEmptyHistory(t *testing.T) {
	_, err := Enter(testGraph(t), NewSymptomSet("stale read"), NewHistory(nil))
	if !errors.Is(err, ErrFirstFailure) {
		t.Errorf("expected ErrFirstFailure, got %v", err)
	}
}

func TestEnter_RefusesNilHistory(t *testing.T) {
	_, err := Enter(testGraph(t), NewSymptomSet("stale read"), nil)
	if !errors.Is(err, ErrFirstFailure) {
		t.Errorf("expected ErrFirstFailure, got %v", err)
	}
}

func TestEnter_RefusesDifferentSymptoms(t *testing.T) {
	h := failedHistory(t, "timeout")
	_, err := Enter(testGraph(t), NewSymptomSet("stale read"), h)
	if !errors.Is(err, ErrFirstFailure) {
		t.Errorf("expected ErrFirstFailure, got %v", err)
	}
}

func TestEnter_RefusesPassedOnly(t *testing.T) {
	h := NewHistory(nil, Attempt{Symptoms: NewSymptomSet("stale read"), Fix: "x", Passed: true})
	_, err := Enter(testGraph(t), NewSymptomSet("stale read"), h)
	if !errors.Is(err, ErrFirstFailure) {
		t.Errorf("a passed attempt is not a prior failure, got %v", err)
	}
}

func TestEnter_RefusesNoSymptoms(t *testing.T) {
	_, err := Enter(testGraph(t), NewSymptomSet(" "), failedHistory(t, "x"))
	if !errors.Is(err, ErrNoSymptoms) {
		t.Errorf("expected ErrNoSymptoms, got %v", err)
	}
}

func TestEnter_AfterFailure(t *testing.T) {
	r, err := Enter(testGraph(t), NewSymptomSet("Stale Read"), failedHistory(t, "stale read"))
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if r.Phase() != PhaseDiagnose {
		t.Errorf("Phase = %s, want diagnose", r.Phase())
	}
}

// --- Pipeline ---

func TestRoutine_HappyPath(t *testing.T) {
	rec := &memRecorder{}
	h := NewHistory(rec, Attempt{Symptoms: NewSymptomSet("stale read"), Fix: "retry"})
	r, err := Enter(testGraph(t), NewSymptomSet("stale read"), h)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}

	d, err := r.Diagnose("cache not invalidated on commit")
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if d.ActiveContext != "Working on the cache layer." {
		t.Errorf("ActiveContext = %q", d.ActiveContext)
	}
	if !strings.Contains(d.TasksPlan, "cache invalidation") {
		t.Errorf("TasksPlan = %q", d.TasksPlan)
	}
	if len(d.Prior) != 1 {
		t.Errorf("Prior = %d attempts, want 1", len(d.Prior))
	}

	causes, err := r.Reason([]Cause{{Kind: CauseBug, Description: "missing flush"}})
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if causes[len(causes)-1].Kind != CauseDesignFlaw {
		t.Errorf("design-flaw candidate should be added, got %v", causes)
	}

	matches, err := r.SearchKnownPatterns()
	if err != nil {
		t.Fatalf("SearchKnownPatterns: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("matches = %v, want heading and entry", matches)
	}

	if err := r.ProposeFix("flush on commit"); err != nil {
		t.Fatalf("ProposeFix: %v", err)
	}
	next, err := r.Validate(true, "tests green")
	if err != nil || next != PhaseApply {
		t.Fatalf("Validate = %s, %v", next, err)
	}
	done, err := r.Apply()
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !done.Passed || done.Fix != "flush on commit" {
		t.Errorf("Apply returned %+v", done)
	}
	if r.Phase() != PhaseDone {
		t.Errorf("Phase = %s, want done", r.Phase())
	}
	if len(rec.got) != 1 {
		t.Errorf("recorder got %d attempts, want 1", len(rec.got))
	}
}

func TestReason_KeepsCallerDesignFlaw(t *testing.T) {
	r, _ := Enter(testGraph(t), NewSymptomSet("stale read"), failedHistory(t, "stale read"))
	_, _ = r.Diagnose("d")
	causes, err := r.Reason([]Cause{{Kind: CauseDesignFlaw, Description: "cache is the wrong layer"}})
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if len(causes) != 1 {
		t.Errorf("causes = %v, want only the caller's", causes)
	}
}

func TestValidate_FailureReturnsToDiagnose(t *testing.T) {
	h := failedHistory(t, "stale read")
	r, _ := Enter(testGraph(t), NewSymptomSet("stale read"), h)
	walkToValidate(t, r, "cache not invalidated", "flush on commit")

	next, err := r.Validate(false, "still stale under load")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if next != PhaseDiagnose {
		t.Errorf("next = %s, want diagnose", next)
	}
	if h.Len() != 2 {
		t.Errorf("history = %d attempts, want 2 (grows monotonically)", h.Len())
	}
	last := h.Attempts()[1]
	if last.Fix != "flush on commit" || last.Passed {
		t.Errorf("failed attempt not recorded: %+v", last)
	}
}

func TestDiagnose_RejectsRepeat(t *testing.T) {
	h := failedHistory(t, "stale read")
	r, _ := Enter(testGraph(t), NewSymptomSet("stale read"), h)
	walkToValidate(t, r, "cache not invalidated", "flush on commit")
	_, _ = r.Validate(false, "no")

	_, err := r.Diagnose("  Cache NOT invalidated ")
	if !errors.Is(err, ErrRepeatedDiagnosis) {
		t.Fatalf("expected ErrRepeatedDiagnosis, got %v", err)
	}
	if r.Phase() != PhaseDiagnose {
		t.Error("rejected diagnosis must not advance")
	}
	if _, err := r.Diagnose("two writers race on the same key"); err != nil {
		t.Errorf("new diagnosis should be accepted: %v", err)
	}
}

func TestDiagnose_RepeatOnlyForSameSymptoms(t *testing.T) {
	h := NewHistory(nil,
		Attempt{Symptoms: NewSymptomSet("timeout"), Diagnosis: "cache not invalidated", Fix: "x"},
		Attempt{Symptoms: NewSymptomSet("stale read"), Fix: "y"},
	)
	r, _ := Enter(testGraph(t), NewSymptomSet("stale read"), h)
	if _, err := r.Diagnose("cache not invalidated"); err != nil {
		t.Errorf("diagnosis for another symptom set must not block: %v", err)
	}
}

func TestRoutine_OutOfOrder(t *testing.T) {
	r, _ := Enter(testGraph(t), NewSymptomSet("stale read"), failedHistory(t, "stale read"))

	var phaseErr *PhaseError
	if err := r.ProposeFix("x"); !errors.As(err, &phaseErr) {
		t.Errorf("ProposeFix before diagnose: expected PhaseError, got %v", err)
	}
	if _, err := r.Validate(true, ""); !errors.As(err, &phaseErr) {
		t.Errorf("Validate before propose: expected PhaseError, got %v", err)
	}
	if _, err := r.Apply(); !errors.As(err, &phaseErr) {
		t.Errorf("Apply before validate: expected PhaseError, got %v", err)
	}
	if _, err := r.SearchKnownPatterns(); !errors.As(err, &phaseErr) {
		t.Errorf("Search before reason: expected PhaseError, got %v", err)
	}
}

func TestRoutine_RequiredInputs(t *testing.T) {
	r, _ := Enter(testGraph(t), NewSymptomSet("stale read"), failedHistory(t, "stale read"))
	if _, err := r.Diagnose("   "); err == nil {
		t.Error("empty diagnosis should fail")
	}
	_, _ = r.Diagnose("d")
	_, _ = r.Reason(nil)
	_, _ = r.SearchKnownPatterns()
	if err := r.ProposeFix(""); err == nil {
		t.Error("empty fix should fail")
	}
}

func TestHistory_AppendRequiresSymptoms(t *testing.T) {
	h := NewHistory(nil)
	if err := h.Append(Attempt{Fix: "x"}); err == nil {
		t.Error("attempt without symptoms should fail")
	}
}

func TestHistory_AttemptsIsCopy(t *testing.T) {
	h := failedHistory(t, "a")
	got := h.Attempts()
	got[0].Fix = "mutated"
	if h.Attempts()[0].Fix == "mutated" {
		t.Error("Attempts must return a copy")
	}
}
