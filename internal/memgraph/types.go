// Package memgraph holds the memory-file dependency graph.
//
// The graph owns every MemoryNode. Seven core kinds are always part of
// the topology and are wired by a fixed, immutable edge table. Optional
// context nodes (literature entries, per-task RFCs, ...) attach under
// existing core nodes as leaves.
//
// The package is split the same way as the rest of the repo:
// - types.go: kinds, ids and the node record
// - edges.go: the fixed core edge table
// - graph.go: mutation and staleness propagation
// - order.go: topological ordering
// - errors.go: typed errors
package memgraph

import (
	"fmt"
	"strings"
	"time"
)

// --- Kind enum ---

// Kind identifies what a memory node documents.
type Kind string

const (
	KindProductRequirements Kind = "product-requirements"
	KindArchitecture        Kind = "architecture"
	KindTechnical           Kind = "technical"
	KindTasksPlan           Kind = "tasks-plan"
	KindActiveContext       Kind = "active-context"
	KindErrorDocumentation  Kind = "error-documentation"
	KindLessonsLearned      Kind = "lessons-learned"
)

// Well-known optional context kinds. Any other non-core kind is accepted
// as long as it passes ValidateKind.
const (
	KindLiterature Kind = "literature"
	KindRFC        Kind = "rfc"
)

// CoreKinds lists the seven core kinds in canonical (topological) order.
var CoreKinds = []Kind{
	KindProductRequirements,
	KindArchitecture,
	KindTechnical,
	KindTasksPlan,
	KindActiveContext,
	KindErrorDocumentation,
	KindLessonsLearned,
}

// coreRank maps each core kind to its position in CoreKinds.
var coreRank = func() map[Kind]int {
	m := make(map[Kind]int, len(CoreKinds))
	for i, k := range CoreKinds {
		m[k] = i
	}
	return m
}()

// IsCore reports whether k is one of the seven core kinds.
func IsCore(k Kind) bool {
	_, ok := coreRank[k]
	return ok
}

// ValidateKind returns an error if k is empty or contains characters
// that cannot appear in a stable id.
func ValidateKind(k Kind) error {
	s := string(k)
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("kind is required")
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("invalid kind %q: use lowercase letters, digits and hyphens", k)
		}
	}
	return nil
}

// --- Node ---

// NodeID is the stable identifier of a memory node. Core nodes use
// their kind as id.
type NodeID string

// CoreID returns the id of the core node for kind k.
func CoreID(k Kind) NodeID { return NodeID(k) }

// Node is a snapshot of a memory node. Values returned by the graph are
// copies; mutate the graph through UpsertNode.
type Node struct {
	ID        NodeID    `json:"id"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
	Upstream  []NodeID  `json:"upstream,omitempty"`
}

// Authored reports whether content has ever been written to the node.
// Placeholders created by EnsureCore are not authored.
func (n Node) Authored() bool {
	return !n.UpdatedAt.IsZero()
}
