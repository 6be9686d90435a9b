package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/memflow/internal/recovery"
	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// DebugTool handles the memflow_debug MCP tool.
// It records failed fixes and drives the debug routine once a fix for
// the same symptoms has already failed.
type DebugTool struct {
	ctrl *workflow.Controller
}

// NewDebugTool creates a DebugTool bound to the controller.
func NewDebugTool(ctrl *workflow.Controller) *DebugTool {
	return &DebugTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for registration.
func (t *DebugTool) Definition() mcp.Tool {
	return mcp.NewTool("memflow_debug",
		mcp.WithDescription(
			"Debug routine for persistent errors (ACT mode). Record a failed fix with "+
				"action=record-failure. When a fix for the same symptoms fails again, "+
				"action=enter opens the routine; then call diagnose, reason, search, propose, "+
				"validate and apply in order. A failed validation returns to diagnose, and a "+
				"diagnosis already tried for the same symptoms is refused.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("record-failure, enter, diagnose, reason, search, propose, validate, apply or status"),
			mcp.Enum("record-failure", "enter", "diagnose", "reason", "search", "propose", "validate", "apply", "status"),
		),
		mcp.WithString("symptoms",
			mcp.Description("Comma-separated symptoms (record-failure, enter)"),
		),
		mcp.WithString("diagnosis",
			mcp.Description("What is believed to be wrong (record-failure, diagnose)"),
		),
		mcp.WithString("causes",
			mcp.Description("One candidate cause per line, optionally prefixed with bug:, design-flaw:, environment: or misuse: (reason)"),
		),
		mcp.WithString("fix",
			mcp.Description("The fix tried or proposed (record-failure, propose)"),
		),
		mcp.WithBoolean("passed",
			mcp.Description("Whether the fix passed validation (validate)"),
		),
		mcp.WithString("reason",
			mcp.Description("Why the fix failed or passed (record-failure, validate)"),
		),
	)
}

// Handle processes the memflow_debug tool call.
func (t *DebugTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := strings.TrimSpace(req.GetString("action", ""))
	switch action {
	case "":
		return mcp.NewToolResultError("'action' is required"), nil
	case "record-failure":
		return t.recordFailure(req)
	case "enter":
		return t.enter(req)
	}

	r, ok := t.ctrl.Debug()
	if !ok {
		return mcp.NewToolResultError("No debug routine is open. Use action=enter after a fix has failed."), nil
	}

	switch action {
	case "status":
		return t.status(r), nil

	case "diagnose":
		diagnosis := strings.TrimSpace(req.GetString("diagnosis", ""))
		if diagnosis == "" {
			return mcp.NewToolResultError("'diagnosis' is required"), nil
		}
		d, err := r.Diagnose(diagnosis)
		if err != nil {
			if errors.Is(err, recovery.ErrRepeatedDiagnosis) {
				return mcp.NewToolResultError(fmt.Sprintf("%v\n\nThis diagnosis already failed. Look for a different cause.", err)), nil
			}
			return toolError(err)
		}
		return mcp.NewToolResultText(formatDiagnostics(d)), nil

	case "reason":
		causes, err := r.Reason(parseCauses(req.GetString("causes", "")))
		if err != nil {
			return toolError(err)
		}
		var b strings.Builder
		b.WriteString("# Candidate Causes\n\n")
		for _, c := range causes {
			fmt.Fprintf(&b, "- **%s**: %s\n", c.Kind, c.Description)
		}
		b.WriteString("\nNext: `memflow_debug(action=search)`.\n")
		return mcp.NewToolResultText(b.String()), nil

	case "search":
		matches, err := r.SearchKnownPatterns()
		if err != nil {
			return toolError(err)
		}
		var b strings.Builder
		b.WriteString("# Known Patterns\n\n")
		if len(matches) == 0 {
			b.WriteString("No entry in error-documentation mentions these symptoms.\n")
		}
		for _, m := range matches {
			fmt.Fprintf(&b, "- %s\n", m)
		}
		b.WriteString("\nNext: `memflow_debug(action=propose, fix=...)`.\n")
		return mcp.NewToolResultText(b.String()), nil

	case "propose":
		fix := strings.TrimSpace(req.GetString("fix", ""))
		if fix == "" {
			return mcp.NewToolResultError("'fix' is required"), nil
		}
		if err := r.ProposeFix(fix); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText("Fix recorded. Validate it, then call `memflow_debug(action=validate, passed=...)`."), nil

	case "validate":
		if _, ok := req.GetArguments()["passed"].(bool); !ok {
			return mcp.NewToolResultError("'passed' is required"), nil
		}
		phase, err := r.Validate(boolArg(req, "passed", false), req.GetString("reason", ""))
		if err != nil {
			return toolError(err)
		}
		if phase == recovery.PhaseDiagnose {
			return mcp.NewToolResultText("Validation failed. The attempt was recorded; diagnose again with a new diagnosis."), nil
		}
		return mcp.NewToolResultText("Validation passed. Call `memflow_debug(action=apply)`."), nil

	case "apply":
		a, err := r.Apply()
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"# Fix Applied\n\n**Symptoms:** %s\n**Diagnosis:** %s\n**Fix:** %s\n\n"+
				"Document the root cause in error-documentation with `memflow_write`.",
			strings.Join(a.Symptoms, ", "), a.Diagnosis, a.Fix,
		)), nil
	}

	return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
}

func (t *DebugTool) recordFailure(req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symptoms := listArg(req, "symptoms")
	if len(symptoms) == 0 {
		return mcp.NewToolResultError("'symptoms' is required"), nil
	}
	err := t.ctrl.RecordFailure(symptoms, req.GetString("diagnosis", ""), req.GetString("fix", ""), req.GetString("reason", ""))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Failed fix recorded for: %s\n\nIf the next fix fails too, open the routine with `memflow_debug(action=enter)`.",
		recovery.NewSymptomSet(symptoms...).Key(),
	)), nil
}

func (t *DebugTool) enter(req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symptoms := listArg(req, "symptoms")
	if len(symptoms) == 0 {
		return mcp.NewToolResultError("'symptoms' is required"), nil
	}
	r, err := t.ctrl.EnterDebug(symptoms)
	if err != nil {
		if errors.Is(err, recovery.ErrFirstFailure) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"%v\n\nHandle this error in the normal ACT flow and record the attempt with action=record-failure if the fix fails.", err,
			)), nil
		}
		return toolError(err)
	}
	return t.status(r), nil
}

func (t *DebugTool) status(r *recovery.Routine) *mcp.CallToolResult {
	prior := t.ctrl.History().For(r.Symptoms())
	var b strings.Builder
	fmt.Fprintf(&b, "# Debug Routine\n\n**Symptoms:** %s\n**Phase:** %s\n**Prior attempts:** %d\n",
		strings.Join(r.Symptoms(), ", "), r.Phase(), len(prior))
	for i, a := range prior {
		result := "failed"
		if a.Passed {
			result = "passed"
		}
		fmt.Fprintf(&b, "  %d. %s: %s", i+1, result, a.Fix)
		if a.Diagnosis != "" {
			fmt.Fprintf(&b, " (diagnosis: %s)", a.Diagnosis)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String())
}

func formatDiagnostics(d recovery.Diagnostics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Diagnostics\n\n**Symptoms:** %s\n**Prior attempts:** %d\n\n", strings.Join(d.Symptoms, ", "), len(d.Prior))
	fmt.Fprintf(&b, "## Active Context\n\n%s\n\n", orEmpty(truncate(d.ActiveContext, 1000)))
	fmt.Fprintf(&b, "## Tasks Plan\n\n%s\n\n", orEmpty(truncate(d.TasksPlan, 1000)))
	b.WriteString("Next: `memflow_debug(action=reason, causes=...)`.\n")
	return b.String()
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_empty_"
	}
	return s
}

var causeKinds = []recovery.CauseKind{
	recovery.CauseBug, recovery.CauseDesignFlaw, recovery.CauseEnvironment, recovery.CauseMisuse,
}

// parseCauses reads one cause per line. A leading "kind:" selects the
// cause kind; lines without one are bugs.
func parseCauses(raw string) []recovery.Cause {
	var out []recovery.Cause
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if line == "" {
			continue
		}
		c := recovery.Cause{Kind: recovery.CauseBug, Description: line}
		if k, rest, ok := strings.Cut(line, ":"); ok {
			for _, ck := range causeKinds {
				if strings.EqualFold(strings.TrimSpace(k), string(ck)) {
					c = recovery.Cause{Kind: ck, Description: strings.TrimSpace(rest)}
					break
				}
			}
		}
		out = append(out, c)
	}
	return out
}
