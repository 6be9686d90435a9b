package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/index"
	"github.com/mark3labs/mcp-go/mcp"
)

// Searcher finds memory nodes by content.
type Searcher interface {
	Search(query string, limit int) ([]index.SearchResult, error)
}

// SearchTool handles the memflow_search MCP tool.
// It is registered only when the index is available.
type SearchTool struct {
	idx Searcher
}

// NewSearchTool creates a SearchTool over the index.
func NewSearchTool(idx Searcher) *SearchTool {
	return &SearchTool{idx: idx}
}

// Definition returns the MCP tool definition for registration.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_search",
		mcp.WithDescription(
			"Full-text search over every memory file written in this project. "+
				"An empty query lists the most recently updated files.",
		),
		mcp.WithString("query",
			mcp.Description("Keywords to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10)"),
		),
	)
}

// Handle processes the memflow_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := intArg(req, "limit", 10)

	results, err := t.idx.Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No memory files found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memory files:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s) | updated %s\n    %s\n\n",
			i+1, r.ID, r.Kind, r.UpdatedAt.Format("2006-01-02"), r.Snippet)
	}
	return mcp.NewToolResultText(b.String()), nil
}
