package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// GateTool handles the memflow_gate MCP tool.
// It records the user's decision at the verification gate.
type GateTool struct {
	ctrl *workflow.Controller
}

// NewGateTool creates a GateTool bound to the controller.
func NewGateTool(ctrl *workflow.Controller) *GateTool {
	return &GateTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *GateTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_gate",
		mcp.WithDescription(
			"Resolve the verification gate with the user's decision. "+
				"Only call this after the user has explicitly accepted or rejected the approach. "+
				"Reject loops back to develop-strategy; accept schedules the memory files to update.",
		),
		mcp.WithString("decision",
			mcp.Required(),
			mcp.Description("accept or reject"),
			mcp.Enum("accept", "reject"),
		),
		mcp.WithString("reason",
			mcp.Description("The user's reason, recorded in the session context"),
		),
	)
}

// Handle processes the memflow_gate tool call.
func (t *GateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var accept bool
	switch strings.ToLower(strings.TrimSpace(req.GetString("decision", ""))) {
	case "accept":
		accept = true
	case "reject":
	case "":
		return mcp.NewToolResultError("'decision' is required"), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid decision %q: must be accept or reject", req.GetString("decision", ""))), nil
	}

	step, err := t.ctrl.Decide(accept, req.GetString("reason", ""))
	if err != nil {
		return toolError(err)
	}
	title := "Approach Rejected"
	if accept {
		title = "Approach Accepted"
	}
	return mcp.NewToolResultText(formatStep(title, step)), nil
}
