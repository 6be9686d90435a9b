package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// StartTool handles the memflow_start MCP tool.
// It opens a PLAN or ACT session for a request.
type StartTool struct {
	ctrl *workflow.Controller
}

// NewStartTool creates a StartTool bound to the controller.
func NewStartTool(ctrl *workflow.Controller) *StartTool {
	return &StartTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *StartTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_start",
		mcp.WithDescription(
			"Start a workflow session for a request. The request must contain "+
				"`"+workflow.DirectivePlan+"` or `"+workflow.DirectiveAct+"`. "+
				"Without a directive the mode is ambiguous and no session is opened. "+
				"Returns the first phase and the memory files to read.",
		),
		mcp.WithString("request",
			mcp.Required(),
			mcp.Description("The user's request, including the mode directive"),
		),
	)
}

// Handle processes the memflow_start tool call.
func (t *StartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	request := req.GetString("request", "")
	if request == "" {
		return mcp.NewToolResultError("'request' is required"), nil
	}

	step, err := t.ctrl.Start(request)
	if err != nil {
		var amb *workflow.AmbiguousModeError
		if errors.As(err, &amb) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"No session started: %v\n\nAsk the user which mode they want before doing anything.", err,
			)), nil
		}
		return toolError(err)
	}

	s, _ := t.ctrl.Session()
	title := fmt.Sprintf("%s Session Started", s.Mode)
	return mcp.NewToolResultText(fmt.Sprintf("%s\n**Session:** `%s`\n", formatStep(title, step), s.ID)), nil
}
