// Package memfiles persists memory nodes as markdown files.
//
// Each node is one file. An optional YAML front matter block carries
// the node id, kind, upstream ids (context nodes only) and the last
// update time; everything after it is the node content. Files written
// by hand without front matter are accepted, their id is taken from the
// layout and their timestamp from the file's modification time.
package memfiles

import (
	"fmt"
	"path/filepath"

	"github.com/HendryAvila/memflow/internal/memgraph"
)

// Layout maps memory kinds to paths relative to the project root.
type Layout struct {
	// Core holds one file path per core kind.
	Core map[memgraph.Kind]string
	// Context holds one directory per well-known context kind.
	Context map[memgraph.Kind]string
	// ContextRoot holds <kind>/ directories for every other context kind.
	ContextRoot string
}

// DefaultLayout returns the standard docs/, tasks/ and rules/ layout.
func DefaultLayout() Layout {
	return Layout{
		Core: map[memgraph.Kind]string{
			memgraph.KindProductRequirements: "docs/product_requirement_docs.md",
			memgraph.KindArchitecture:        "docs/architecture.md",
			memgraph.KindTechnical:           "docs/technical.md",
			memgraph.KindTasksPlan:           "tasks/tasks_plan.md",
			memgraph.KindActiveContext:       "tasks/active_context.md",
			memgraph.KindErrorDocumentation:  "rules/error-documentation.md",
			memgraph.KindLessonsLearned:      "rules/lessons-learned.md",
		},
		Context: map[memgraph.Kind]string{
			memgraph.KindLiterature: "docs/literature",
			memgraph.KindRFC:        "tasks/rfc",
		},
		ContextRoot: "docs/context",
	}
}

// WithOverrides returns a copy of l with the given kind → path entries
// replaced. Core kinds take a file path, context kinds a directory.
func (l Layout) WithOverrides(paths map[string]string) (Layout, error) {
	out := Layout{
		Core:        make(map[memgraph.Kind]string, len(l.Core)),
		Context:     make(map[memgraph.Kind]string, len(l.Context)),
		ContextRoot: l.ContextRoot,
	}
	for k, p := range l.Core {
		out.Core[k] = p
	}
	for k, p := range l.Context {
		out.Context[k] = p
	}
	for name, p := range paths {
		k := memgraph.Kind(name)
		if err := memgraph.ValidateKind(k); err != nil {
			return Layout{}, fmt.Errorf("path override: %w", err)
		}
		if p == "" || filepath.IsAbs(p) {
			return Layout{}, fmt.Errorf("path override for %s must be a relative path, got %q", k, p)
		}
		if memgraph.IsCore(k) {
			out.Core[k] = filepath.ToSlash(p)
		} else {
			out.Context[k] = filepath.ToSlash(p)
		}
	}
	return out, nil
}

// contextDir returns the directory holding context nodes of kind k.
func (l Layout) contextDir(k memgraph.Kind) string {
	if dir, ok := l.Context[k]; ok {
		return dir
	}
	return filepath.ToSlash(filepath.Join(l.ContextRoot, string(k)))
}

// RelPath returns the path of node id relative to the project root.
func (l Layout) RelPath(id memgraph.NodeID, kind memgraph.Kind) (string, error) {
	if err := memgraph.ValidateKind(kind); err != nil {
		return "", err
	}
	if memgraph.IsCore(kind) {
		p, ok := l.Core[kind]
		if !ok {
			return "", fmt.Errorf("no path configured for core kind %s", kind)
		}
		return p, nil
	}
	if err := validateName(id); err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join(l.contextDir(kind), string(id)+".md")), nil
}

// validateName rejects context ids that cannot be used as a file name.
func validateName(id memgraph.NodeID) error {
	s := string(id)
	if s == "" {
		return fmt.Errorf("context node id is required")
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return fmt.Errorf("invalid context node id %q: use letters, digits, '-', '_' or '.'", id)
		}
	}
	if s == "." || s == ".." {
		return fmt.Errorf("invalid context node id %q", id)
	}
	return nil
}

// defaultParents is where well-known context kinds attach when their
// file carries no upstream list.
var defaultParents = map[memgraph.Kind][]memgraph.NodeID{
	memgraph.KindLiterature: {memgraph.CoreID(memgraph.KindTechnical)},
	memgraph.KindRFC:        {memgraph.CoreID(memgraph.KindTasksPlan)},
}
