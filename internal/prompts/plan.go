// Package prompts implements MCP prompt handlers for the memflow workflow.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// PlanPrompt handles the memflow-plan MCP prompt.
// It opens a PLAN session and walks the AI to the verification gate.
type PlanPrompt struct{}

// NewPlanPrompt creates a PlanPrompt.
func NewPlanPrompt() *PlanPrompt {
	return &PlanPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("memflow-plan",
		mcp.WithPromptDescription(
			"Plan a change in PLAN mode: read the memory files, verify context, "+
				"develop a strategy and stop at the verification gate for your approval.",
		),
		mcp.WithArgument("request",
			mcp.ArgumentDescription("What you want planned"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the memflow-plan prompt request.
func (p *PlanPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	request := argOr(req, "request", "the next task in tasks/tasks_plan.md")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan: %s", request),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"%s\n\n%s\n\n"+
						"Please:\n"+
						"1. Run `memflow_start` with request=\"%s %s\"\n"+
						"2. Read every memory file it lists with `memflow_read`, then call `memflow_advance` for each phase\n"+
						"3. If core files are missing, draft a plan to create them in chat and write nothing\n"+
						"4. Otherwise verify the context, develop a strategy and present the approach to me\n"+
						"5. Stop at the verification gate and wait for my decision. Do not call `memflow_gate` until I answer\n"+
						"6. Whenever something is unclear, call `memflow_clarify` and ask me instead of guessing",
					workflow.DirectivePlan, request, workflow.DirectivePlan, request,
				)),
			},
		},
	}, nil
}

// argOr returns the named prompt argument or def when it is empty.
func argOr(req mcp.GetPromptRequest, name, def string) string {
	if args := req.Params.Arguments; args != nil {
		if v, ok := args[name]; ok && v != "" {
			return v
		}
	}
	return def
}
