package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// WriteTool handles the memflow_write MCP tool.
// It writes one memory node through the controller, which enforces
// mode and ordering and then saves the file.
type WriteTool struct {
	ctrl *workflow.Controller
}

// NewWriteTool creates a WriteTool bound to the controller.
func NewWriteTool(ctrl *workflow.Controller) *WriteTool {
	return &WriteTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *WriteTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_write",
		mcp.WithDescription(
			"Write the full content of a memory file. Core files use their kind as id "+
				"(product-requirements, architecture, technical, tasks-plan, active-context, "+
				"error-documentation, lessons-learned). Context files (e.g. kind=literature, kind=rfc) "+
				"need an id and one or more core upstream ids. Writes are refused in PLAN mode "+
				"before the approach is accepted, and while an upstream file is still pending.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Node kind"),
		),
		mcp.WithString("id",
			mcp.Description("Node id. Defaults to the kind for core files"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Full markdown content of the file"),
		),
		mcp.WithString("upstream",
			mcp.Description("Comma-separated core ids a context file attaches to"),
		),
	)
}

// Handle processes the memflow_write tool call.
func (t *WriteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := memgraph.Kind(strings.TrimSpace(req.GetString("kind", "")))
	if kind == "" {
		return mcp.NewToolResultError("'kind' is required"), nil
	}
	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	id := memgraph.NodeID(strings.TrimSpace(req.GetString("id", "")))
	if id == "" {
		if !memgraph.IsCore(kind) {
			return mcp.NewToolResultError(fmt.Sprintf("'id' is required for context kind %q", kind)), nil
		}
		id = memgraph.CoreID(kind)
	}

	n, err := t.ctrl.Apply(id, kind, content, idsArg(req, "upstream")...)
	if err != nil {
		return toolError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Memory File Written\n\n**ID:** `%s`\n**Kind:** %s\n**Size:** %d bytes\n", n.ID, n.Kind, len(n.Content))
	if len(n.Upstream) > 0 {
		fmt.Fprintf(&b, "**Upstream:** %s\n", joinIDs(n.Upstream))
	}
	if s, ok := t.ctrl.Session(); ok {
		fmt.Fprintf(&b, "**Still pending:** %s\n", joinIDs(s.Pending))
	}
	return mcp.NewToolResultText(b.String()), nil
}
