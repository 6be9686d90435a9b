package workflow

import (
	"errors"
	"testing"
)

func TestSelectMode(t *testing.T) {
	confident := func(m Mode) ModeInferrer {
		return func(string) (Mode, bool) { return m, true }
	}
	unsure := func(string) (Mode, bool) { return ModeAct, false }

	tests := []struct {
		name    string
		request string
		infer   ModeInferrer
		want    Mode
		wantErr bool
	}{
		{"plan directive", "MODE = PLAN MODE\nadd caching", nil, ModePlan, false},
		{"act directive mid-text", "ok then, MODE = ACT MODE go", nil, ModeAct, false},
		{"directive beats inferrer", DirectivePlan, confident(ModeAct), ModePlan, false},
		{"case-sensitive", "mode = plan mode", nil, "", true},
		{"both directives", DirectivePlan + " " + DirectiveAct, nil, "", true},
		{"no directive no inferrer", "add caching", nil, "", true},
		{"inferrer not confident", "add caching", unsure, "", true},
		{"inferrer confident", "add caching", confident(ModeAct), ModeAct, false},
		{"inferrer unknown mode", "add caching", confident("DEBUG"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectMode(tt.request, tt.infer)
			if tt.wantErr {
				var amb *AmbiguousModeError
				if !errors.As(err, &amb) {
					t.Errorf("expected AmbiguousModeError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectMode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"plan": ModePlan, " ACT ": ModeAct, "Plan": ModePlan} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseMode("debug"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestPipeline_ReturnsCopy(t *testing.T) {
	seq, err := Pipeline(ModePlan, RouteComplete)
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	seq[0] = PhaseDone
	again, _ := Pipeline(ModePlan, RouteComplete)
	if again[0] != PhaseReadMemoryFiles {
		t.Error("Pipeline must return a copy")
	}
	if _, err := Pipeline(ModeAct, RouteIncomplete); err == nil {
		t.Error("ACT has no incomplete route")
	}
}
