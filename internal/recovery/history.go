package recovery

import (
	"fmt"
	"sync"
)

// Recorder persists attempts as they are appended. It is optional.
type Recorder interface {
	RecordAttempt(a Attempt) error
}

// History is the append-only record of fix attempts. It outlives any
// single routine so the "failed before" precondition can be checked.
type History struct {
	mu       sync.RWMutex
	attempts []Attempt
	rec      Recorder
}

// NewHistory creates a History seeded with prior attempts. rec may be nil.
func NewHistory(rec Recorder, prior ...Attempt) *History {
	h := &History{rec: rec}
	for _, a := range prior {
		a.Symptoms = NewSymptomSet(a.Symptoms...)
		h.attempts = append(h.attempts, a)
	}
	return h
}

// Append adds an attempt. The attempt is kept in memory even when the
// recorder fails; the recorder error is returned to the caller.
func (h *History) Append(a Attempt) error {
	if len(a.Symptoms) == 0 {
		return fmt.Errorf("attempt has no symptoms")
	}
	a.Symptoms = NewSymptomSet(a.Symptoms...)
	if a.At.IsZero() {
		a.At = timeNow().UTC()
	}

	h.mu.Lock()
	h.attempts = append(h.attempts, a)
	rec := h.rec
	h.mu.Unlock()

	if rec != nil {
		if err := rec.RecordAttempt(a); err != nil {
			return fmt.Errorf("%w: %w", ErrNotRecorded, err)
		}
	}
	return nil
}

// Attempts returns a copy of every attempt, oldest first.
func (h *History) Attempts() []Attempt {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Attempt, len(h.attempts))
	copy(out, h.attempts)
	return out
}

// For returns the attempts whose symptom set equals s.
func (h *History) For(s SymptomSet) []Attempt {
	key := NewSymptomSet(s...).Key()
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Attempt
	for _, a := range h.attempts {
		if a.Symptoms.Key() == key {
			out = append(out, a)
		}
	}
	return out
}

// HasFailure reports whether a failed attempt exists for s.
func (h *History) HasFailure(s SymptomSet) bool {
	for _, a := range h.For(s) {
		if !a.Passed {
			return true
		}
	}
	return false
}

// Len returns the number of recorded attempts.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.attempts)
}
