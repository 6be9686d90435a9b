package prompts

import (
	"context"
	"fmt"

	"github.com/HendryAvila/memflow/internal/workflow"
	"github.com/mark3labs/mcp-go/mcp"
)

// ActPrompt handles the memflow-act MCP prompt.
// It opens an ACT session that keeps memory files current while working.
type ActPrompt struct{}

// NewActPrompt creates an ActPrompt.
func NewActPrompt() *ActPrompt {
	return &ActPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ActPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("memflow-act",
		mcp.WithPromptDescription(
			"Implement a change in ACT mode: check memory, execute, and document "+
				"each finished unit of work in the memory files.",
		),
		mcp.WithArgument("request",
			mcp.ArgumentDescription("What you want implemented"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the memflow-act prompt request.
func (p *ActPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	request := argOr(req, "request", "the active task in tasks/active_context.md")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Act: %s", request),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"%s\n\n%s\n\n"+
						"Please:\n"+
						"1. Run `memflow_start` with request=\"%s %s\"\n"+
						"2. Call `memflow_advance` through check-memory-files, update-documentation and update-rules, "+
						"writing any scheduled files with `memflow_write` in the order given\n"+
						"3. Implement the change. After each complete unit of work, call `memflow_advance(unit=...)` "+
						"and update the files it schedules\n"+
						"4. Report discoveries with `memflow_event`: signals=pattern-found for a new pattern, "+
						"signals=requirements-ambiguous when you need me to clarify\n"+
						"5. If a fix fails, record it with `memflow_debug(action=record-failure)`. "+
						"If it fails again, work through `memflow_debug` from action=enter\n"+
						"6. When done, call `memflow_end`",
					workflow.DirectiveAct, request, workflow.DirectiveAct, request,
				)),
			},
		},
	}, nil
}
