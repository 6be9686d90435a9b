package workflow

import (
	"time"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/scheduler"
)

// Transition records one phase change.
type Transition struct {
	From Phase     `json:"from"`
	To   Phase     `json:"to"`
	At   time.Time `json:"at"`
}

// Session is the state of one PLAN or ACT run. It references memory
// nodes by id only; content is always read through the graph.
type Session struct {
	ID      string `json:"id"`
	Request string `json:"request"`
	Mode    Mode   `json:"mode"`
	Route   Route  `json:"route"`
	Phase   Phase  `json:"phase"`
	Status  Status `json:"status"`

	// Resume is the phase a suspended session returns to.
	Resume       Phase  `json:"resume,omitempty"`
	ResumeStatus Status `json:"resume_status,omitempty"`

	Questions []string `json:"questions,omitempty"`
	Context   []string `json:"context,omitempty"`
	Units     []string `json:"units,omitempty"`

	// Committed is set once a PLAN session passes the verification gate.
	Committed bool `json:"committed,omitempty"`

	Pending []memgraph.NodeID `json:"pending,omitempty"`
	Stale   []memgraph.NodeID `json:"stale,omitempty"`

	History   []Transition `json:"history"`
	StartedAt time.Time    `json:"started_at"`
}

func (s *Session) clone() Session {
	out := *s
	out.Questions = append([]string(nil), s.Questions...)
	out.Context = append([]string(nil), s.Context...)
	out.Units = append([]string(nil), s.Units...)
	out.Pending = append([]memgraph.NodeID(nil), s.Pending...)
	out.History = append([]Transition(nil), s.History...)
	return out
}

func (s *Session) hasUnit(unit string) bool {
	for _, u := range s.Units {
		if u == unit {
			return true
		}
	}
	return false
}

// Input carries what the author supplies when completing a phase.
type Input struct {
	// Note is appended to the session context.
	Note string
	// Unit names the logically complete unit of work being documented
	// at DocumentChanges.
	Unit string
	// MoreWork sends DocumentChanges back to Execute instead of done.
	MoreWork bool
}

// Step describes the outcome of a controller call.
type Step struct {
	From   Phase  `json:"from,omitempty"`
	To     Phase  `json:"to"`
	Status Status `json:"status"`
	// Read lists the nodes the author should read for the new phase.
	Read []memgraph.NodeID `json:"read,omitempty"`
	// Plan is set when the call ran the scheduler.
	Plan *scheduler.Plan `json:"plan,omitempty"`
	// Notice is a non-fatal condition, such as IncompleteMemoryError.
	Notice error `json:"-"`
}
