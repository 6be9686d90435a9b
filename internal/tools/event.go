package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/trigger"
	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// EventTool handles the memflow_event MCP tool.
// It classifies a session event into a trigger and forwards it to the
// controller, or raises an explicit trigger directly.
type EventTool struct {
	ctrl *workflow.Controller
}

// NewEventTool creates an EventTool bound to the controller.
func NewEventTool(ctrl *workflow.Controller) *EventTool {
	return &EventTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *EventTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_event",
		mcp.WithDescription(
			"Report a session event. The event is classified into at most one trigger "+
				"(new-pattern-discovered, significant-change-implemented, explicit-update-command, "+
				"context-clarification-needed, plan-verified) which schedules memory file reviews. "+
				"The phrase \""+trigger.UpdateCommand+"\" always requests a full review. "+
				"Pass `trigger` to raise one explicitly instead of classifying.",
		),
		mcp.WithString("text",
			mcp.Description("What happened, in the author's words"),
		),
		mcp.WithString("signals",
			mcp.Description("Comma-separated hints: pattern-found, change-completed, plan-accepted, requirements-ambiguous"),
		),
		mcp.WithString("trigger",
			mcp.Description("Raise this trigger directly, skipping classification"),
		),
	)
}

// Handle processes the memflow_event tool call.
func (t *EventTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")

	if raw := strings.TrimSpace(req.GetString("trigger", "")); raw != "" {
		tr := trigger.Trigger(raw)
		if err := trigger.Validate(tr); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		step, err := t.ctrl.Raise(tr, text)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(formatStep(fmt.Sprintf("Trigger: %s", tr), step)), nil
	}

	var signals []trigger.Signal
	for _, s := range listArg(req, "signals") {
		sig, err := trigger.ParseSignal(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		signals = append(signals, sig)
	}
	if strings.TrimSpace(text) == "" && len(signals) == 0 {
		return mcp.NewToolResultError("'text', 'signals' or 'trigger' is required"), nil
	}

	step, ok, err := t.ctrl.Handle(trigger.Event{Text: text, Signals: signals})
	if err != nil {
		return toolError(err)
	}
	if !ok {
		return mcp.NewToolResultText("No trigger matched this event. Nothing was scheduled."), nil
	}
	title := "Event Handled"
	if step.Plan != nil {
		title = fmt.Sprintf("Trigger: %s", step.Plan.Trigger)
	}
	return mcp.NewToolResultText(formatStep(title, step)), nil
}
