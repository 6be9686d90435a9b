// Package resources implements MCP resource handlers for the memflow workflow.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (memflow://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	StatusURI = "memflow://session/status"
	GraphURI  = "memflow://graph"
)

// Handler manages memflow resource endpoints.
type Handler struct {
	ctrl *workflow.Controller
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(ctrl *workflow.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// StatusResource returns the MCP resource definition for session status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"Memflow Session Status",
		mcp.WithResourceDescription("Current session mode, phase, status, pending writes and phase history"),
		mcp.WithMIMEType("application/json"),
	)
}

// GraphResource returns the MCP resource definition for the memory graph.
func (h *Handler) GraphResource() mcp.Resource {
	return mcp.NewResource(
		GraphURI,
		"Memflow Memory Graph",
		mcp.WithResourceDescription("Memory nodes in dependency order with their edges, staleness and missing core files"),
		mcp.WithMIMEType("application/json"),
	)
}

type statusDoc struct {
	Active  bool              `json:"active"`
	Session *workflow.Session `json:"session,omitempty"`
}

// HandleStatus returns the current session as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc := statusDoc{}
	if s, ok := h.ctrl.Session(); ok {
		doc.Active = true
		doc.Session = &s
	}
	return jsonResource(req.Params.URI, doc)
}

type graphNode struct {
	ID         memgraph.NodeID   `json:"id"`
	Kind       memgraph.Kind     `json:"kind"`
	Authored   bool              `json:"authored"`
	Stale      bool              `json:"stale"`
	Size       int               `json:"size"`
	Upstream   []memgraph.NodeID `json:"upstream,omitempty"`
	Dependents []memgraph.NodeID `json:"dependents,omitempty"`
}

type graphDoc struct {
	Nodes   []graphNode       `json:"nodes"`
	Missing []memgraph.NodeID `json:"missing"`
}

// HandleGraph returns the memory graph as JSON. Content is omitted;
// read it with memflow_read.
func (h *Handler) HandleGraph(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	g := h.ctrl.Graph()
	doc := graphDoc{Nodes: []graphNode{}, Missing: g.Missing()}
	for _, id := range g.TopoOrder() {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		ups, _ := g.Upstream(id)
		deps, _ := g.Dependents(id)
		doc.Nodes = append(doc.Nodes, graphNode{
			ID:         n.ID,
			Kind:       n.Kind,
			Authored:   n.Authored(),
			Stale:      g.IsStale(id),
			Size:       len(n.Content),
			Upstream:   ups,
			Dependents: deps,
		})
	}
	return jsonResource(req.Params.URI, doc)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
