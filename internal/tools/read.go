package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/mark3labs/mcp-go/mcp"
)

// previewLen caps node content in the listing view.
const previewLen = 300

// ReadTool handles the memflow_read MCP tool.
type ReadTool struct {
	graph *memgraph.Graph
}

// NewReadTool creates a ReadTool over the memory graph.
func NewReadTool(g *memgraph.Graph) *ReadTool {
	return &ReadTool{graph: g}
}

// Definition returns the MCP tool definition for registration.
func (t *ReadTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_read",
		mcp.WithDescription(
			"Read memory files. With `id`, returns that file's full content and its edges. "+
				"Without it, lists every node in dependency order with a short preview.",
		),
		mcp.WithString("id",
			mcp.Description("Node id to read in full"),
		),
	)
}

// Handle processes the memflow_read tool call.
func (t *ReadTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := memgraph.NodeID(strings.TrimSpace(req.GetString("id", "")))
	if id != "" {
		return t.one(id)
	}

	order := t.graph.TopoOrder()
	if len(order) == 0 {
		return mcp.NewToolResultText("No memory files yet. Core files are created during PLAN or ACT."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Memory (%d nodes)\n\n", len(order))
	for _, nid := range order {
		n, ok := t.graph.Node(nid)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "## %s (%s)%s\n\n", n.ID, n.Kind, t.marker(n))
		if n.Content == "" {
			b.WriteString("_empty_\n\n")
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", truncate(n.Content, previewLen))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *ReadTool) one(id memgraph.NodeID) (*mcp.CallToolResult, error) {
	n, ok := t.graph.Node(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Memory node %q not found", id)), nil
	}
	ups, _ := t.graph.Upstream(id)
	deps, _ := t.graph.Dependents(id)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s%s\n\n**Kind:** %s\n", n.ID, t.marker(n), n.Kind)
	if n.Authored() {
		fmt.Fprintf(&b, "**Updated:** %s\n", n.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "**Upstream:** %s\n**Dependents:** %s\n\n---\n\n%s\n", joinIDs(ups), joinIDs(deps), n.Content)
	return mcp.NewToolResultText(b.String()), nil
}

func (t *ReadTool) marker(n memgraph.Node) string {
	switch {
	case !n.Authored():
		return " [placeholder]"
	case t.graph.IsStale(n.ID):
		return " [stale]"
	}
	return ""
}
