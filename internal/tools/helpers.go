// Package tools implements the MCP tool handlers for the memflow workflow.
//
// Each tool is a struct that receives its dependencies via constructor
// and exposes Definition() for registration and Handle() for calls.
// Workflow errors the author can act on become tool errors; storage
// failures are returned as Go errors.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on the controller and small interfaces, not on storage
package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/recovery"
	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg splits a comma- or newline-separated argument, dropping blanks.
func listArg(req mcp.CallToolRequest, key string) []string {
	raw := req.GetString(key, "")
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func idsArg(req mcp.CallToolRequest, key string) []memgraph.NodeID {
	items := listArg(req, key)
	out := make([]memgraph.NodeID, len(items))
	for i, s := range items {
		out[i] = memgraph.NodeID(s)
	}
	return out
}

// toolError converts a controller error into a tool result. Storage
// and recorder failures stay Go errors so the host sees them as internal.
func toolError(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, workflow.ErrStorage) || errors.Is(err, recovery.ErrNotRecorded) {
		return nil, err
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func joinIDs(ids []memgraph.NodeID) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "`" + string(id) + "`"
	}
	return strings.Join(parts, ", ")
}

// phaseGuide tells the author what to do while a session sits in a phase.
var phaseGuide = map[workflow.Phase]string{
	workflow.PhaseReadMemoryFiles:       "Read every memory file listed above, then call `memflow_advance`.",
	workflow.PhaseCheckFilesComplete:    "Call `memflow_advance` to check that all core memory files exist.",
	workflow.PhaseCreatePlan:            "Core memory is incomplete. Draft a plan for creating the missing files, then call `memflow_advance`.",
	workflow.PhaseDocumentInChat:        "Present the plan in chat. Nothing is written in this route. Call `memflow_advance` to finish.",
	workflow.PhaseVerifyContext:         "Verify the context against the files listed above and note any gaps with `memflow_advance(note=...)`.",
	workflow.PhaseDevelopStrategy:       "Develop an implementation strategy, then call `memflow_advance`.",
	workflow.PhasePresentApproach:       "Present the approach to the user, then call `memflow_advance` to wait at the gate.",
	workflow.PhaseVerificationGate:      "Waiting for the user. Call `memflow_gate` with decision=accept or decision=reject.",
	workflow.PhaseDocumentInMemoryFiles: "Write the scheduled files with `memflow_write` in the listed order, then call `memflow_advance`.",
	workflow.PhaseCheckMemoryFiles:      "Call `memflow_advance` to check core memory before changing anything.",
	workflow.PhaseUpdateDocumentation:   "Update documentation affected by the task, then call `memflow_advance`.",
	workflow.PhaseUpdateRules:           "Update rules files if needed, then call `memflow_advance`.",
	workflow.PhaseExecute:               "Implement the change. When a unit of work is complete, call `memflow_advance`.",
	workflow.PhaseDocumentChanges:       "Call `memflow_advance(unit=...)` to document the finished unit, and set more_work=true to keep executing.",
	workflow.PhaseClarification:         "Ask the user the open questions and call `memflow_resolve` with the answer.",
	workflow.PhaseDone:                  "The pipeline is finished. Call `memflow_end` to close the session.",
}

// formatStep renders a controller step as markdown.
func formatStep(title string, step workflow.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if step.From != "" && step.From != step.To {
		fmt.Fprintf(&b, "**Phase:** %s → %s\n", step.From, step.To)
	} else {
		fmt.Fprintf(&b, "**Phase:** %s\n", step.To)
	}
	fmt.Fprintf(&b, "**Status:** %s\n", step.Status)

	if len(step.Read) > 0 {
		fmt.Fprintf(&b, "**Read:** %s\n", joinIDs(step.Read))
	}
	if step.Plan != nil {
		if step.Plan.Clarify {
			b.WriteString("**Scheduled:** clarification\n")
		} else {
			fmt.Fprintf(&b, "**Scheduled for review (%s):** %s\n", step.Plan.Trigger, joinIDs(step.Plan.Nodes))
		}
	}
	if step.Notice != nil {
		fmt.Fprintf(&b, "\n⚠️ %v\n", step.Notice)
	}
	if guide, ok := phaseGuide[step.To]; ok {
		fmt.Fprintf(&b, "\n## Next\n\n%s\n", guide)
	}
	return b.String()
}

// truncate shortens s to at most max bytes, cutting at a line boundary
// when one is close enough.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if nl := strings.LastIndex(cut, "\n"); nl > max/2 {
		cut = cut[:nl]
	}
	return cut + "\n\n[...truncated]"
}
