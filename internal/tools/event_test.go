package tools

import (
	"strings"
	"testing"

	"github.com/HendryAvila/memflow/internal/workflow"
)

func startAct(t *testing.T) *workflow.Controller {
	t.Helper()
	ctrl := workflow.NewController(fullGraph(t))
	mustSucceed(t, NewStartTool(ctrl), args("request", workflow.DirectiveAct))
	return ctrl
}

func TestEventTool_Handle_UpdateCommand(t *testing.T) {
	ctrl := startAct(t)
	text := mustSucceed(t, NewEventTool(ctrl), args("text", "Please UPDATE MEMORY FILES now"))

	if !strings.Contains(text, "explicit-update-command") {
		t.Errorf("unexpected text:\n%s", text)
	}
	s, _ := ctrl.Session()
	if len(s.Pending) != 7 {
		t.Errorf("pending = %v, want all 7 core nodes", s.Pending)
	}
}

func TestEventTool_Handle_Signal(t *testing.T) {
	ctrl := startAct(t)
	text := mustSucceed(t, NewEventTool(ctrl), args("signals", "pattern-found"))
	if !strings.Contains(text, "new-pattern-discovered") || !strings.Contains(text, "`lessons-learned`") {
		t.Errorf("unexpected text:\n%s", text)
	}
}

func TestEventTool_Handle_NoMatch(t *testing.T) {
	ctrl := startAct(t)
	text := mustSucceed(t, NewEventTool(ctrl), args("text", "refactored a helper"))
	if !strings.Contains(text, "No trigger matched") {
		t.Errorf("unexpected text: %s", text)
	}
	if s, _ := ctrl.Session(); len(s.Pending) != 0 {
		t.Errorf("nothing should be scheduled, pending = %v", s.Pending)
	}
}

func TestEventTool_Handle_InvalidInput(t *testing.T) {
	ctrl := startAct(t)
	tool := NewEventTool(ctrl)

	if text := mustFail(t, tool, args()); !strings.Contains(text, "is required") {
		t.Errorf("unexpected text: %s", text)
	}
	if text := mustFail(t, tool, args("signals", "vibes")); !strings.Contains(text, "invalid signal") {
		t.Errorf("unexpected text: %s", text)
	}
	if text := mustFail(t, tool, args("trigger", "bogus")); !strings.Contains(text, "invalid trigger") {
		t.Errorf("unexpected text: %s", text)
	}
}

func TestEventTool_Handle_ExplicitTrigger(t *testing.T) {
	ctrl := startAct(t)
	text := mustSucceed(t, NewEventTool(ctrl), args("trigger", "context-clarification-needed", "text", "Which region?"))
	if !strings.Contains(text, "**Scheduled:** clarification") || !strings.Contains(text, "suspended") {
		t.Errorf("unexpected text:\n%s", text)
	}
	s, _ := ctrl.Session()
	if len(s.Questions) != 1 || s.Questions[0] != "Which region?" {
		t.Errorf("questions = %v", s.Questions)
	}
}

func TestEventTool_Handle_SignificantChangeInPlan(t *testing.T) {
	ctrl := workflow.NewController(fullGraph(t))
	mustSucceed(t, NewStartTool(ctrl), args("request", workflow.DirectivePlan))

	text := mustFail(t, NewEventTool(ctrl), args("trigger", "significant-change-implemented", "text", "unit"))
	if !strings.Contains(text, "significant change") {
		t.Errorf("unexpected text: %s", text)
	}
}
