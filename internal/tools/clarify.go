package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// ClarifyTool handles the memflow_clarify MCP tool.
// It suspends the session until the user answers.
type ClarifyTool struct {
	ctrl *workflow.Controller
}

// NewClarifyTool creates a ClarifyTool bound to the controller.
func NewClarifyTool(ctrl *workflow.Controller) *ClarifyTool {
	return &ClarifyTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *ClarifyTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_clarify",
		mcp.WithDescription(
			"Suspend the session to ask the user a question. Works from any phase; "+
				"the session resumes exactly where it stopped once `memflow_resolve` is called.",
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("What needs clarifying"),
		),
	)
}

// Handle processes the memflow_clarify tool call.
func (t *ClarifyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := strings.TrimSpace(req.GetString("question", ""))
	if question == "" {
		return mcp.NewToolResultError("'question' is required"), nil
	}

	step, err := t.ctrl.Clarify(question)
	if err != nil {
		return toolError(err)
	}

	var b strings.Builder
	b.WriteString(formatStep("Clarification Needed", step))
	if s, ok := t.ctrl.Session(); ok {
		fmt.Fprintf(&b, "\n**Resumes at:** %s\n\n## Open Questions\n\n", s.Resume)
		for i, q := range s.Questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
