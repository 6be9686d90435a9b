package tools

import (
	"context"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// AdvanceTool handles the memflow_advance MCP tool.
// It completes the current phase and moves the session to the next one.
type AdvanceTool struct {
	ctrl *workflow.Controller
}

// NewAdvanceTool creates an AdvanceTool bound to the controller.
func NewAdvanceTool(ctrl *workflow.Controller) *AdvanceTool {
	return &AdvanceTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *AdvanceTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_advance",
		mcp.WithDescription(
			"Complete the current phase and move to the next. Refused while the session "+
				"waits at the verification gate or for clarification. At document-changes, "+
				"`unit` names the finished unit of work and is required.",
		),
		mcp.WithString("note",
			mcp.Description("Context gathered in this phase, appended to the session"),
		),
		mcp.WithString("unit",
			mcp.Description("Unit of work being documented (document-changes only)"),
		),
		mcp.WithBoolean("more_work",
			mcp.Description("At document-changes, return to execute instead of finishing"),
		),
	)
}

// Handle processes the memflow_advance tool call.
func (t *AdvanceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step, err := t.ctrl.Advance(workflow.Input{
		Note:     req.GetString("note", ""),
		Unit:     req.GetString("unit", ""),
		MoreWork: boolArg(req, "more_work", false),
	})
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatStep("Phase Complete", step)), nil
}
