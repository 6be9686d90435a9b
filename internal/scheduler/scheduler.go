// Package scheduler turns triggers into ordered review plans.
//
// The scheduler decides which memory nodes need attention and in what
// order. It never writes content; producing the content is left to the
// external author, and the workflow controller enforces the order.
package scheduler

import (
	"fmt"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/trigger"
)

// Plan is the outcome of scheduling one trigger.
type Plan struct {
	Trigger trigger.Trigger   `json:"trigger"`
	Nodes   []memgraph.NodeID `json:"nodes"`
	// Clarify asks the controller to enter the clarification phase
	// instead of touching any file.
	Clarify bool `json:"clarify,omitempty"`
}

// Scheduler computes review plans over a memory graph.
type Scheduler struct {
	graph *memgraph.Graph
}

// New creates a Scheduler bound to g.
func New(g *memgraph.Graph) *Scheduler {
	return &Scheduler{graph: g}
}

// commitTargets are the nodes a verified plan is committed to, in
// dependency order.
var commitTargets = []memgraph.NodeID{
	memgraph.CoreID(memgraph.KindTasksPlan),
	memgraph.CoreID(memgraph.KindActiveContext),
}

// Plan returns the ordered node ids requiring review for t.
func (s *Scheduler) Plan(t trigger.Trigger) (Plan, error) {
	if err := trigger.Validate(t); err != nil {
		return Plan{}, err
	}
	plan := Plan{Trigger: t}

	switch t {
	case trigger.ExplicitUpdateCommand:
		plan.Nodes = memgraph.CoreOrder()

	case trigger.SignificantChangeImplemented:
		for _, id := range commitTargets {
			if _, err := s.graph.MarkStale(id); err != nil {
				return Plan{}, fmt.Errorf("scheduling %s: %w", t, err)
			}
		}
		plan.Nodes = s.graph.StaleNodes()

	case trigger.NewPatternDiscovered:
		lessons := memgraph.CoreID(memgraph.KindLessonsLearned)
		if _, err := s.graph.MarkStale(lessons); err != nil {
			return Plan{}, fmt.Errorf("scheduling %s: %w", t, err)
		}
		plan.Nodes = []memgraph.NodeID{lessons}

	case trigger.ContextClarificationNeeded:
		plan.Clarify = true

	case trigger.PlanVerified:
		for _, id := range commitTargets {
			if s.graph.IsStale(id) || s.hasStaleUpstream(id) {
				continue
			}
			if _, err := s.graph.MarkStale(id); err != nil {
				return Plan{}, fmt.Errorf("scheduling %s: %w", t, err)
			}
		}
		plan.Nodes = s.graph.StaleNodes()
	}

	return plan, nil
}

func (s *Scheduler) hasStaleUpstream(id memgraph.NodeID) bool {
	ups, err := s.graph.Upstream(id)
	if err != nil {
		return false
	}
	for _, u := range ups {
		if s.graph.IsStale(u) {
			return true
		}
	}
	return false
}
