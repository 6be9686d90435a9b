// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools, prompts and resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memflow/internal/config"
	"github.com/HendryAvila/memflow/internal/index"
	"github.com/HendryAvila/memflow/internal/logging"
	"github.com/HendryAvila/memflow/internal/memfiles"
	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/prompts"
	"github.com/HendryAvila/memflow/internal/recovery"
	"github.com/HendryAvila/memflow/internal/resources"
	"github.com/HendryAvila/memflow/internal/tools"
	"github.com/HendryAvila/memflow/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Project is a memflow project opened from disk.
type Project struct {
	Root   string
	Config config.Config
	Store  *memfiles.FileStore
}

// OpenProject finds the project containing dir, loads its configuration
// and builds the memory file store.
func OpenProject(dir string) (*Project, error) {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	layout, err := memfiles.DefaultLayout().WithOverrides(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", config.FileName, err)
	}
	return &Project{Root: root, Config: cfg, Store: memfiles.NewFileStore(root, layout)}, nil
}

// New creates and configures the MCP server for the project containing
// dir, with all tools, prompts and resources registered.
//
// The returned cleanup function closes the index database and must be
// called on shutdown (typically via defer). It is always non-nil and
// safe to call even if the index failed to open.
func New(dir string) (*server.MCPServer, func(), error) {
	p, err := OpenProject(dir)
	if err != nil {
		return nil, noop, err
	}

	logger, err := logging.New(os.Stderr, p.Config.LogLevel)
	if err != nil {
		return nil, noop, err
	}

	ctrl, idx, err := newController(p, logger)
	if err != nil {
		return nil, noop, err
	}
	cleanup := noop
	if idx != nil {
		cleanup = func() {
			if err := idx.Close(); err != nil {
				logger.Warn("index close", "err", err)
			}
		}
	}

	s := server.NewMCPServer(
		"memflow",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerTools(s, ctrl)
	if idx != nil {
		searchTool := tools.NewSearchTool(idx)
		s.AddTool(searchTool.Definition(), searchTool.Handle)
	}

	// --- Register prompts ---

	planPrompt := prompts.NewPlanPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	actPrompt := prompts.NewActPrompt()
	s.AddPrompt(actPrompt.Definition(), actPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(ctrl)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)
	s.AddResource(resourceHandler.GraphResource(), resourceHandler.HandleGraph)

	return s, cleanup, nil
}

// newController loads the project's memory into a graph and builds the
// controller over it. The returned index is nil when it is disabled or
// failed to open.
func newController(p *Project, logger *log.Logger) (*workflow.Controller, *index.Store, error) {
	p.Store.SetLogger(logger)

	// The seven core nodes always exist. Files not written yet stay
	// unauthored placeholders and are still reported as missing.
	g := memgraph.New()
	g.EnsureCore()
	nodes, err := p.Store.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading memory files: %w", err)
	}
	if err := g.Load(nodes); err != nil {
		var rejected *memgraph.RejectedError
		if !errors.As(err, &rejected) {
			return nil, nil, fmt.Errorf("loading memory files: %w", err)
		}
		logger.Warn("memory files skipped", "nodes", rejected.Nodes, "err", err)
	}
	logger.Info("memory loaded", "root", p.Root, "nodes", len(nodes), "missing", len(g.Missing()))

	// The index is an independent subsystem: if it fails to open, the
	// workflow keeps running on the files alone. Search is not
	// registered and debug history lives only in memory.
	idx := openIndex(p, g, logger)
	history := recovery.NewHistory(nil)
	opts := []workflow.Option{
		workflow.WithPersister(p.Store),
		workflow.WithLogger(logger),
	}
	if idx != nil {
		prior, err := idx.Attempts()
		if err != nil {
			logger.Warn("debug history unavailable", "err", err)
		}
		history = recovery.NewHistory(idx, prior...)
		opts = append(opts, workflow.WithObserver(idx))
	}
	opts = append(opts, workflow.WithHistory(history))

	return workflow.NewController(g, opts...), idx, nil
}

// openIndex opens the search index and mirrors the loaded graph into
// it. It returns nil when the index is disabled or fails.
func openIndex(p *Project, g *memgraph.Graph, logger *log.Logger) *index.Store {
	if !p.Config.Index {
		logger.Info("index disabled")
		return nil
	}
	idx, err := index.New(index.Config{
		DataDir:          p.Config.DataDir,
		Project:          p.Root,
		MaxSearchResults: p.Config.MaxSearchResults,
	}, logger)
	if err != nil {
		logger.Warn("index subsystem disabled", "err", err)
		return nil
	}
	if err := idx.Sync(g.Nodes()); err != nil {
		logger.Warn("index subsystem disabled", "err", err)
		_ = idx.Close()
		return nil
	}
	return idx
}

// noop is the default cleanup when the index is disabled.
func noop() {}

// registerTools registers the workflow tools with the server.
func registerTools(s *server.MCPServer, ctrl *workflow.Controller) {
	// --- Session lifecycle ---
	startTool := tools.NewStartTool(ctrl)
	s.AddTool(startTool.Definition(), startTool.Handle)

	statusTool := tools.NewStatusTool(ctrl)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	advanceTool := tools.NewAdvanceTool(ctrl)
	s.AddTool(advanceTool.Definition(), advanceTool.Handle)

	gateTool := tools.NewGateTool(ctrl)
	s.AddTool(gateTool.Definition(), gateTool.Handle)

	endTool := tools.NewEndTool(ctrl)
	s.AddTool(endTool.Definition(), endTool.Handle)

	// --- Suspensions and events ---
	clarifyTool := tools.NewClarifyTool(ctrl)
	s.AddTool(clarifyTool.Definition(), clarifyTool.Handle)

	resolveTool := tools.NewResolveTool(ctrl)
	s.AddTool(resolveTool.Definition(), resolveTool.Handle)

	eventTool := tools.NewEventTool(ctrl)
	s.AddTool(eventTool.Definition(), eventTool.Handle)

	// --- Memory files ---
	writeTool := tools.NewWriteTool(ctrl)
	s.AddTool(writeTool.Definition(), writeTool.Handle)

	readTool := tools.NewReadTool(ctrl.Graph())
	s.AddTool(readTool.Definition(), readTool.Handle)

	// --- Debugging ---
	debugTool := tools.NewDebugTool(ctrl)
	s.AddTool(debugTool.Definition(), debugTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use memflow.
func serverInstructions() string {
	return `You have access to memflow, a PLAN/ACT workflow server backed by project memory files.

## Memory files
The project keeps seven core files, each depending on the one before it:
product requirements → architecture → technical → tasks plan → active context
→ error documentation → lessons learned. Context files (literature, RFCs and
others) hang off a core file. Read them with memflow_read and write them only
with memflow_write.

## Modes
Every session runs in exactly one mode. Start it with memflow_start, prefixing
the request with "MODE = PLAN MODE" or "MODE = ACT MODE". If the request has no
directive, ask the user which mode they want. Do not guess.

### PLAN
Read the memory files, check the core files exist, verify the context,
develop a strategy and present the approach. The session then waits at the
verification gate: call memflow_gate with the user's decision. Only after
acceptance may you write the scheduled files, in the order given. If core
files are missing, the plan covers creating them and is documented in chat
only.

### ACT
Read and check memory, update documentation and rules, then execute. After
each finished unit of work call memflow_advance(unit=...) so the affected
files are scheduled for review. Set more_work=true to keep executing.

## Phases
Advance one phase at a time with memflow_advance. memflow_status shows the
current phase, pending writes and the phase history. Follow the "Next" section
of every response.

## Events
Report what happens during the session with memflow_event: a significant
change, a newly found pattern, the user saying "update memory files", or
ambiguous context. The event schedules the files to review. When context is
ambiguous, call memflow_clarify with the question and memflow_resolve with the
answer; the session resumes where it stopped.

## Debugging
When a fix fails, record it with memflow_debug(action=record-failure). When a
fix for the same symptoms fails again, open the debug routine with
action=enter and work through diagnose, reason, search, propose, validate and
apply. A diagnosis that already failed for the same symptoms is refused.

## Search
When the index is enabled, memflow_search finds memory files by content.

## Finishing
Call memflow_end when the work is done. It reports any writes still pending
and files still stale.`
}
