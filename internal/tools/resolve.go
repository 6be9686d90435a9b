package tools

import (
	"context"
	"strings"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// ResolveTool handles the memflow_resolve MCP tool.
type ResolveTool struct {
	ctrl *workflow.Controller
}

// NewResolveTool creates a ResolveTool bound to the controller.
func NewResolveTool(ctrl *workflow.Controller) *ResolveTool {
	return &ResolveTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *ResolveTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_resolve",
		mcp.WithDescription(
			"Answer the open clarification questions and resume the suspended phase.",
		),
		mcp.WithString("answer",
			mcp.Required(),
			mcp.Description("The user's answer"),
		),
	)
}

// Handle processes the memflow_resolve tool call.
func (t *ResolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answer := strings.TrimSpace(req.GetString("answer", ""))
	if answer == "" {
		return mcp.NewToolResultError("'answer' is required"), nil
	}

	step, err := t.ctrl.Resolve(answer)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(formatStep("Clarification Resolved", step)), nil
}
