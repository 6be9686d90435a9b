package trigger

import "testing"

func TestDetect_UpdateCommandAlwaysWins(t *testing.T) {
	d := NewDetector(nil)
	tests := []Event{
		{Text: "update memory files"},
		{Text: "Please UPDATE MEMORY FILES now"},
		{Text: "we found a pattern, update memory files", Signals: []Signal{SignalPatternFound}},
		{Text: "update memory files", Signals: []Signal{SignalRequirementsAmbiguous}},
	}
	for _, ev := range tests {
		got, ok := d.Detect(ev)
		if !ok || got != ExplicitUpdateCommand {
			t.Errorf("Detect(%q) = %q, %v; want explicit-update-command", ev.Text, got, ok)
		}
	}
}

func TestDetect_Signals(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		signal Signal
		want   Trigger
	}{
		{SignalPatternFound, NewPatternDiscovered},
		{SignalChangeCompleted, SignificantChangeImplemented},
		{SignalPlanAccepted, PlanVerified},
		{SignalRequirementsAmbiguous, ContextClarificationNeeded},
	}
	for _, tt := range tests {
		t.Run(string(tt.signal), func(t *testing.T) {
			got, ok := d.Detect(Event{Text: "something happened", Signals: []Signal{tt.signal}})
			if !ok || got != tt.want {
				t.Errorf("Detect = %q, %v; want %q", got, ok, tt.want)
			}
		})
	}
}

func TestDetect_SignalPrecedence(t *testing.T) {
	d := NewDetector(nil)
	got, ok := d.Detect(Event{Signals: []Signal{SignalPatternFound, SignalRequirementsAmbiguous, SignalPlanAccepted}})
	if !ok || got != ContextClarificationNeeded {
		t.Errorf("Detect = %q; ambiguity should take precedence", got)
	}
	got, _ = d.Detect(Event{Signals: []Signal{SignalPatternFound, SignalChangeCompleted}})
	if got != SignificantChangeImplemented {
		t.Errorf("Detect = %q; change-completed should beat pattern-found", got)
	}
}

func TestDetect_NoMatchNoTrigger(t *testing.T) {
	d := NewDetector(nil)
	if got, ok := d.Detect(Event{Text: "refactored the loop"}); ok {
		t.Errorf("Detect returned %q; expected no trigger", got)
	}
	if _, ok := d.Detect(Event{}); ok {
		t.Error("empty event must not trigger")
	}
}

func TestDetect_Inferrer(t *testing.T) {
	d := NewDetector(func(text string) (Trigger, bool) {
		if text == "the auth flow is unclear" {
			return ContextClarificationNeeded, true
		}
		return "", false
	})
	if got, ok := d.Detect(Event{Text: "the auth flow is unclear"}); !ok || got != ContextClarificationNeeded {
		t.Errorf("Detect = %q, %v", got, ok)
	}
	if _, ok := d.Detect(Event{Text: "shipping it"}); ok {
		t.Error("undecided inferrer must not produce a trigger")
	}
}

func TestDetect_InferrerInvalidTriggerIgnored(t *testing.T) {
	d := NewDetector(func(string) (Trigger, bool) { return "bogus", true })
	if _, ok := d.Detect(Event{Text: "x"}); ok {
		t.Error("unknown trigger from inferrer must be ignored")
	}
}

func TestParseSignal(t *testing.T) {
	if _, err := ParseSignal("plan-accepted"); err != nil {
		t.Errorf("ParseSignal(plan-accepted): %v", err)
	}
	if _, err := ParseSignal("nope"); err == nil {
		t.Error("ParseSignal should reject unknown signals")
	}
}

func TestValidate(t *testing.T) {
	for tr := range validTriggers {
		if err := Validate(tr); err != nil {
			t.Errorf("Validate(%q): %v", tr, err)
		}
	}
	if err := Validate("other"); err == nil {
		t.Error("Validate should reject unknown triggers")
	}
}
