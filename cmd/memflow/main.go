// memflow: PLAN/ACT workflow MCP server over project memory files.
//
// Runs a mode-gated engineering workflow for any AI coding tool that
// speaks MCP, keeping the project's memory files in dependency order.
//
// Usage:
//
//	memflow serve    # Start MCP server (stdio transport)
//	memflow check    # List missing core memory files
//	memflow update   # Update to the latest version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memflow/internal/memgraph"
	mfserver "github.com/HendryAvila/memflow/internal/server"
	"github.com/HendryAvila/memflow/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "check":
		os.Exit(runCheck())
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("memflow v%s\n", mfserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	s, cleanup, err := mfserver.New(cwd)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background version check. It prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates(ctx)

	return server.ServeStdio(s)
}

// checkForUpdates prints a notice to stderr if an update is available.
// Network failures are ignored.
func checkForUpdates(ctx context.Context) {
	result := updater.CheckVersion(ctx, mfserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  📦 Update available: v%s → v%s\n"+
				"     Run: memflow update\n"+
				"     Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runCheck reports missing core memory files. It exits 1 when any are
// missing so it can gate CI.
func runCheck() int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	p, err := mfserver.OpenProject(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	missing, err := p.Store.Missing()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Project: %s\n", p.Root)
	if len(missing) == 0 {
		fmt.Println("✅ All core memory files present")
		return 0
	}
	fmt.Printf("❌ %d core memory file(s) missing:\n", len(missing))
	for _, id := range missing {
		path, err := p.Store.Path(id, memgraph.Kind(id))
		if err != nil {
			path = string(id)
		}
		fmt.Printf("  - %s (%s)\n", id, path)
	}
	return 1
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "🔍 Checking for updates...\n")

	result := updater.CheckVersion(ctx, mfserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "✅ Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "📦 New version available: v%s → v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "⬇️  Downloading...\n")

	if err := updater.SelfUpdate(ctx, mfserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\n   You can download manually from:\n   %s\n", result.ReleaseURL)
		stop()
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "✅ Updated to v%s!\n", result.LatestVersion)
	fmt.Fprintf(os.Stderr, "   Restart memflow to use the new version.\n")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `memflow v%s — PLAN/ACT workflow MCP server

Usage:
  memflow serve    Start the MCP server (stdio transport)
  memflow check    List missing core memory files
  memflow update   Update to the latest version

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "memflow": {
        "command": "memflow",
        "args": ["serve"]
      }
    }
  }

  Project settings live in memflow.yaml at the project root.
  MEMFLOW_DATA_DIR, MEMFLOW_LOG_LEVEL, MEMFLOW_INDEX and
  MEMFLOW_MAX_SEARCH_RESULTS override them.
`, mfserver.Version)
}
