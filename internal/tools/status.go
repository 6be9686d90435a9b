package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatusTool handles the memflow_status MCP tool.
// It shows the current session and the state of core memory.
type StatusTool struct {
	ctrl *workflow.Controller
}

// NewStatusTool creates a StatusTool bound to the controller.
func NewStatusTool(ctrl *workflow.Controller) *StatusTool {
	return &StatusTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_status",
		mcp.WithDescription(
			"Show the current session: mode, phase, status, pending writes, stale files, "+
				"open questions and phase history. Also reports missing core memory files.",
		),
	)
}

// Handle processes the memflow_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g := t.ctrl.Graph()
	var b strings.Builder
	b.WriteString("# Memflow Status\n\n")

	s, ok := t.ctrl.Session()
	if !ok {
		b.WriteString("No active session. Start one with `memflow_start`.\n")
	} else {
		fmt.Fprintf(&b, "**Session:** `%s`\n**Mode:** %s\n**Phase:** %s\n**Status:** %s\n",
			s.ID, s.Mode, s.Phase, s.Status)
		if s.Mode == workflow.ModePlan {
			fmt.Fprintf(&b, "**Route:** %s\n**Committed:** %t\n", s.Route, s.Committed)
		}
		fmt.Fprintf(&b, "**Pending writes:** %s\n", joinIDs(s.Pending))
		if s.Status == workflow.StatusSuspended {
			fmt.Fprintf(&b, "**Resumes at:** %s\n", s.Resume)
			for i, q := range s.Questions {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
			}
		}
		if len(s.Units) > 0 {
			fmt.Fprintf(&b, "**Units documented:** %s\n", strings.Join(s.Units, ", "))
		}

		b.WriteString("\n## Phase History\n\n")
		b.WriteString("| From | To | At |\n|------|----|----|\n")
		for _, tr := range s.History {
			from := string(tr.From)
			if from == "" {
				from = "—"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", from, tr.To, tr.At.Format("2006-01-02 15:04:05"))
		}
	}

	b.WriteString("\n## Memory\n\n")
	fmt.Fprintf(&b, "**Nodes:** %d\n", g.Len())
	fmt.Fprintf(&b, "**Stale:** %s\n", joinIDs(g.StaleNodes()))
	if missing := g.Missing(); len(missing) > 0 {
		fmt.Fprintf(&b, "**Missing core files:** %s\n", joinIDs(missing))
	} else {
		b.WriteString("**Core memory:** complete\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
