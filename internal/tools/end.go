package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// EndTool handles the memflow_end MCP tool.
type EndTool struct {
	ctrl *workflow.Controller
}

// NewEndTool creates an EndTool bound to the controller.
func NewEndTool(ctrl *workflow.Controller) *EndTool {
	return &EndTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *EndTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_end",
		mcp.WithDescription(
			"Close the current session and show its final state. "+
				"Memory files and debug history are kept.",
		),
	)
}

// Handle processes the memflow_end tool call.
func (t *EndTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := t.ctrl.End()
	if err != nil {
		return toolError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Session Ended\n\n**Session:** `%s`\n**Mode:** %s\n**Final phase:** %s\n", s.ID, s.Mode, s.Phase)
	fmt.Fprintf(&b, "**Transitions:** %d\n", len(s.History))
	if len(s.Units) > 0 {
		fmt.Fprintf(&b, "**Units documented:** %s\n", strings.Join(s.Units, ", "))
	}
	if len(s.Pending) > 0 {
		fmt.Fprintf(&b, "\n⚠️ Ended with pending writes: %s\n", joinIDs(s.Pending))
	}
	if len(s.Stale) > 0 {
		fmt.Fprintf(&b, "\n**Still stale:** %s\n", joinIDs(s.Stale))
	}
	return mcp.NewToolResultText(b.String()), nil
}
