package workflow

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/HendryAvila/memflow/internal/memgraph"
	"github.com/HendryAvila/memflow/internal/recovery"
	"github.com/HendryAvila/memflow/internal/scheduler"
	"github.com/HendryAvila/memflow/internal/trigger"
)

// Persister writes a node's content by id. The controller calls it
// after the graph has accepted the write.
type Persister interface {
	Save(n memgraph.Node) error
}

// Loader reads persisted nodes. A Persister that also implements Loader
// is consulted during ReadMemoryFiles.
type Loader interface {
	Load() ([]memgraph.Node, error)
}

// Checker is implemented by persisters that can tell whether a node is
// storable before the graph accepts it.
type Checker interface {
	Check(id memgraph.NodeID, kind memgraph.Kind) error
}

// NodeObserver is notified after every successful write.
type NodeObserver interface {
	OnNodeWritten(n memgraph.Node)
}

// Option configures a Controller.
type Option func(*Controller)

// WithInferrer sets the mode inferrer used when a request has no
// directive. Without one, such requests are always ambiguous.
func WithInferrer(f ModeInferrer) Option {
	return func(c *Controller) { c.infer = f }
}

// WithPersister sets where applied nodes are saved.
func WithPersister(p Persister) Option {
	return func(c *Controller) { c.persist = p }
}

// WithObserver adds a write observer.
func WithObserver(o NodeObserver) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHistory sets the debug attempt history shared across sessions.
func WithHistory(h *recovery.History) Option {
	return func(c *Controller) {
		if h != nil {
			c.history = h
		}
	}
}

// WithDetector sets the trigger detector used by Handle.
func WithDetector(d *trigger.Detector) Option {
	return func(c *Controller) {
		if d != nil {
			c.detector = d
		}
	}
}

// Controller drives one session at a time over a single memory graph.
// All methods are safe for concurrent use; calls are serialized.
type Controller struct {
	mu sync.Mutex

	graph     *memgraph.Graph
	sched     *scheduler.Scheduler
	detector  *trigger.Detector
	infer     ModeInferrer
	persist   Persister
	observers []NodeObserver
	logger    *log.Logger
	history   *recovery.History

	session *Session
	debug   *recovery.Routine
}

// NewController creates a Controller over g.
func NewController(g *memgraph.Graph, opts ...Option) *Controller {
	c := &Controller{
		graph:    g,
		sched:    scheduler.New(g),
		detector: trigger.NewDetector(nil),
		logger:   log.New(io.Discard),
		history:  recovery.NewHistory(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Graph returns the graph the controller operates on.
func (c *Controller) Graph() *memgraph.Graph { return c.graph }

// History returns the debug attempt history.
func (c *Controller) History() *recovery.History { return c.history }

// Session returns a snapshot of the current session.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return c.snapshot(), true
}

func (c *Controller) snapshot() Session {
	out := c.session.clone()
	out.Stale = c.graph.StaleNodes()
	return out
}

// --- Lifecycle ---

// Start selects the mode for request and opens a session at the first
// phase of that mode. A finished session is replaced; an unfinished one
// must be ended first.
func (c *Controller) Start(request string) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Status != StatusDone {
		return Step{}, ErrSessionActive
	}

	mode, err := SelectMode(request, c.infer)
	if err != nil {
		c.logger.Info("mode selection halted", "err", err)
		return Step{}, err
	}

	seq, err := Pipeline(mode, RouteComplete)
	if err != nil {
		return Step{}, err
	}

	now := timeNow().UTC()
	c.session = &Session{
		ID:        uuid.NewString(),
		Request:   request,
		Mode:      mode,
		Route:     RouteComplete,
		Phase:     seq[0],
		Status:    StatusActive,
		History:   []Transition{{To: seq[0], At: now}},
		StartedAt: now,
	}
	c.debug = nil

	c.logger.Info("session started", "id", c.session.ID, "mode", mode)
	return Step{To: seq[0], Status: StatusActive, Read: c.readSet(mode)}, nil
}

// End closes the current session and returns its final state.
func (c *Controller) End() (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, ErrNoSession
	}
	final := c.snapshot()
	if len(final.Pending) > 0 {
		c.logger.Warn("session ended with pending writes", "id", final.ID, "pending", final.Pending)
	}
	c.session = nil
	c.debug = nil
	c.logger.Info("session ended", "id", final.ID, "phase", final.Phase)
	return final, nil
}

// --- Phase pipeline ---

// Advance completes the current phase and moves to the next one.
func (c *Controller) Advance(in Input) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return Step{}, ErrNoSession
	}
	if err := c.checkRunnable(); err != nil {
		return Step{}, err
	}

	from := s.Phase
	step := Step{From: from}

	switch from {
	case PhaseReadMemoryFiles:
		if err := c.refresh(); err != nil {
			return Step{}, err
		}

	case PhaseCheckFilesComplete:
		if missing := c.graph.Missing(); len(missing) > 0 {
			s.Route = RouteIncomplete
			step.Notice = &IncompleteMemoryError{Missing: missing}
			c.logger.Info("core memory incomplete", "missing", missing)
		}

	case PhaseCreatePlan:
		if created := c.graph.EnsureCore(); len(created) > 0 {
			c.logger.Debug("core placeholders created", "ids", created)
		}

	case PhaseCheckMemoryFiles:
		if missing := c.graph.Missing(); len(missing) > 0 {
			c.graph.EnsureCore()
			c.mergePending(missing)
			step.Notice = &IncompleteMemoryError{Missing: missing}
			c.logger.Info("core memory incomplete, scheduled for writing", "missing", missing)
		}

	case PhaseDocumentChanges:
		plan, err := c.documentUnit(in.Unit)
		if err != nil {
			return Step{}, err
		}
		step.Plan = &plan
	}

	to, err := next(s.Mode, s.Route, from)
	if err != nil {
		return Step{}, err
	}
	if from == PhaseDocumentChanges && in.MoreWork {
		to = PhaseExecute
	}
	if note := strings.TrimSpace(in.Note); note != "" {
		s.Context = append(s.Context, note)
	}

	c.moveTo(to)
	if to == PhaseVerificationGate {
		s.Status = StatusBlocked
		c.logger.Info("waiting at verification gate", "id", s.ID)
	}

	step.To = s.Phase
	step.Status = s.Status
	if to == PhaseVerifyContext {
		step.Read = c.readSet(s.Mode)
	}
	return step, nil
}

// Decide resolves the verification gate. A rejection loops back to
// DevelopStrategy with the reason added to the session context; an
// acceptance commits the plan through the scheduler.
func (c *Controller) Decide(accept bool, reason string) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decide(accept, reason)
}

func (c *Controller) decide(accept bool, reason string) (Step, error) {
	s := c.session
	if s == nil {
		return Step{}, ErrNoSession
	}
	if s.Status == StatusSuspended {
		return Step{}, ErrSuspended
	}
	if s.Phase != PhaseVerificationGate {
		return Step{}, &PhaseError{Op: "decide on the approach", Phase: s.Phase}
	}

	step := Step{From: s.Phase}
	reason = strings.TrimSpace(reason)

	if !accept {
		note := "approach rejected"
		if reason != "" {
			note += ": " + reason
		}
		s.Context = append(s.Context, note)
		s.Status = StatusActive
		c.moveTo(PhaseDevelopStrategy)
		c.logger.Info("approach rejected", "id", s.ID, "reason", reason)
	} else {
		plan, err := c.schedule(trigger.PlanVerified)
		if err != nil {
			return Step{}, err
		}
		if reason != "" {
			s.Context = append(s.Context, "approach accepted: "+reason)
		}
		s.Committed = true
		s.Status = StatusActive
		c.moveTo(PhaseDocumentInMemoryFiles)
		step.Plan = &plan
		c.logger.Info("approach accepted", "id", s.ID, "pending", s.Pending)
	}

	step.To = s.Phase
	step.Status = s.Status
	return step, nil
}

// --- Clarification ---

// Clarify suspends the current phase until Resolve is called. Asking
// again while suspended adds the question and keeps the original
// resume point.
func (c *Controller) Clarify(question string) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clarify(question)
}

func (c *Controller) clarify(question string) (Step, error) {
	s := c.session
	if s == nil {
		return Step{}, ErrNoSession
	}
	if s.Status == StatusDone {
		return Step{}, ErrSessionDone
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return Step{}, fmt.Errorf("question is required")
	}

	s.Questions = append(s.Questions, question)
	if s.Status == StatusSuspended {
		return Step{From: s.Phase, To: s.Phase, Status: s.Status}, nil
	}

	from := s.Phase
	s.Resume = from
	s.ResumeStatus = s.Status
	c.moveTo(PhaseClarification)
	s.Status = StatusSuspended
	c.logger.Info("suspended for clarification", "id", s.ID, "resume", from)
	return Step{From: from, To: s.Phase, Status: s.Status}, nil
}

// Resolve answers the open questions and resumes exactly at the phase
// that was suspended.
func (c *Controller) Resolve(answer string) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return Step{}, ErrNoSession
	}
	if s.Status != StatusSuspended {
		return Step{}, ErrNotSuspended
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Step{}, fmt.Errorf("answer is required")
	}

	s.Context = append(s.Context, "clarified: "+answer)
	s.Questions = nil
	to, status := s.Resume, s.ResumeStatus
	s.Resume, s.ResumeStatus = "", ""
	c.moveTo(to)
	s.Status = status
	c.logger.Info("clarification resolved", "id", s.ID, "resume", to)
	return Step{From: PhaseClarification, To: to, Status: status}, nil
}

// --- Triggers ---

// Raise forwards a trigger raised outside the phase pipeline. note is
// the clarification question, the unit name for a significant change,
// or the acceptance reason for a verified plan.
func (c *Controller) Raise(t trigger.Trigger, note string) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raise(t, note)
}

func (c *Controller) raise(t trigger.Trigger, note string) (Step, error) {
	if err := trigger.Validate(t); err != nil {
		return Step{}, err
	}
	s := c.session
	if s == nil {
		return Step{}, ErrNoSession
	}

	switch t {
	case trigger.ContextClarificationNeeded:
		if strings.TrimSpace(note) == "" {
			note = "context clarification needed"
		}
		plan, err := c.schedule(t)
		if err != nil {
			return Step{}, err
		}
		if !plan.Clarify {
			return Step{From: s.Phase, To: s.Phase, Status: s.Status, Plan: &plan}, nil
		}
		step, err := c.clarify(note)
		if err != nil {
			return Step{}, err
		}
		step.Plan = &plan
		return step, nil
	case trigger.PlanVerified:
		return c.decide(true, note)
	}

	if s.Status == StatusSuspended {
		return Step{}, ErrSuspended
	}

	var (
		plan scheduler.Plan
		err  error
	)
	switch t {
	case trigger.SignificantChangeImplemented:
		if s.Mode != ModeAct {
			return Step{}, &PhaseError{Op: "document a significant change", Phase: s.Phase}
		}
		plan, err = c.documentUnit(note)
	default:
		plan, err = c.schedule(t)
	}
	if err != nil {
		return Step{}, err
	}
	return Step{From: s.Phase, To: s.Phase, Status: s.Status, Plan: &plan}, nil
}

// Handle classifies ev and raises the resulting trigger. ok is false
// when the event matches no trigger; nothing happens in that case.
func (c *Controller) Handle(ev trigger.Event) (step Step, ok bool, err error) {
	t, ok := c.detector.Detect(ev)
	if !ok {
		return Step{}, false, nil
	}
	step, err = c.Raise(t, ev.Text)
	return step, true, err
}

// --- Writes ---

// Apply writes a node through the graph and the persister. A node may
// not be written while one of its ancestors is still pending, nor once
// the session is done. A node the persister cannot store is refused
// before the graph changes. The graph keeps the write when saving
// fails; the error is returned.
func (c *Controller) Apply(id memgraph.NodeID, kind memgraph.Kind, content string, upstream ...memgraph.NodeID) (memgraph.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return memgraph.Node{}, ErrNoSession
	}
	if s.Status == StatusDone {
		return memgraph.Node{}, ErrSessionDone
	}
	if s.Status == StatusSuspended {
		return memgraph.Node{}, ErrSuspended
	}
	if s.Mode == ModePlan && !s.Committed {
		return memgraph.Node{}, ErrNotWritable
	}

	for _, p := range s.Pending {
		if p != id && c.precedes(p, id, upstream) {
			return memgraph.Node{}, &OutOfOrderError{Node: id, Pending: p}
		}
	}

	if ch, ok := c.persist.(Checker); ok {
		if err := ch.Check(id, kind); err != nil {
			return memgraph.Node{}, fmt.Errorf("cannot store %s: %w", id, err)
		}
	}
	n, err := c.graph.UpsertNode(id, kind, content, upstream...)
	if err != nil {
		return memgraph.Node{}, err
	}
	c.removePending(id)
	c.logger.Debug("node written", "id", id, "pending", len(s.Pending))

	if c.persist != nil {
		if err := c.persist.Save(n); err != nil {
			return n, fmt.Errorf("%w: persisting %s: %w", ErrStorage, id, err)
		}
	}
	for _, o := range c.observers {
		o.OnNodeWritten(n)
	}
	return n, nil
}

// --- Debug routine ---

// RecordFailure records a failed fix attempt handled by ordinary ACT
// flow. A second failure for the same symptoms opens the debug routine.
func (c *Controller) RecordFailure(symptoms []string, diagnosis, fix, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAct("record a failed fix"); err != nil {
		return err
	}
	return c.history.Append(recovery.Attempt{
		Symptoms:  recovery.NewSymptomSet(symptoms...),
		Diagnosis: strings.TrimSpace(diagnosis),
		Fix:       strings.TrimSpace(fix),
		Reason:    strings.TrimSpace(reason),
	})
}

// EnterDebug opens the debug routine for symptoms. It returns
// recovery.ErrFirstFailure when no earlier fix for them has failed.
func (c *Controller) EnterDebug(symptoms []string) (*recovery.Routine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAct("enter the debug routine"); err != nil {
		return nil, err
	}
	r, err := recovery.Enter(c.graph, recovery.NewSymptomSet(symptoms...), c.history)
	if err != nil {
		return nil, err
	}
	c.debug = r
	c.logger.Info("debug routine entered", "symptoms", r.Symptoms().Key())
	return r, nil
}

// Debug returns the open debug routine, if any.
func (c *Controller) Debug() (*recovery.Routine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debug, c.debug != nil
}

// --- Internals (caller holds c.mu) ---

func (c *Controller) checkRunnable() error {
	switch c.session.Status {
	case StatusSuspended:
		return ErrSuspended
	case StatusBlocked:
		return ErrGateBlocked
	case StatusDone:
		return ErrSessionDone
	}
	return nil
}

func (c *Controller) requireAct(op string) error {
	if c.session == nil {
		return ErrNoSession
	}
	if c.session.Mode != ModeAct {
		return &PhaseError{Op: op, Phase: c.session.Phase}
	}
	return nil
}

func (c *Controller) moveTo(p Phase) {
	s := c.session
	s.History = append(s.History, Transition{From: s.Phase, To: p, At: timeNow().UTC()})
	c.logger.Debug("phase", "id", s.ID, "from", s.Phase, "to", p)
	s.Phase = p
	if p == PhaseDone {
		s.Status = StatusDone
	}
}

// readSet lists what the author reads on entry: every node in PLAN,
// only the present core nodes in ACT.
func (c *Controller) readSet(m Mode) []memgraph.NodeID {
	if m == ModePlan {
		return c.graph.TopoOrder()
	}
	var out []memgraph.NodeID
	for _, id := range memgraph.CoreOrder() {
		if _, ok := c.graph.Node(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// refresh loads persisted nodes that are absent from the graph or newer
// than the graph's copy.
func (c *Controller) refresh() error {
	loader, ok := c.persist.(Loader)
	if !ok {
		return nil
	}
	nodes, err := loader.Load()
	if err != nil {
		return fmt.Errorf("%w: reading memory files: %w", ErrStorage, err)
	}
	var fresh []memgraph.Node
	for _, n := range nodes {
		cur, ok := c.graph.Node(n.ID)
		if ok && cur.Authored() && !n.UpdatedAt.After(cur.UpdatedAt) {
			continue
		}
		fresh = append(fresh, n)
	}
	if err := c.graph.Load(fresh); err != nil {
		var rejected *memgraph.RejectedError
		if !errors.As(err, &rejected) {
			return fmt.Errorf("reading memory files: %w", err)
		}
		c.logger.Warn("memory files skipped", "nodes", rejected.Nodes, "err", err)
	}
	if len(fresh) > 0 {
		c.logger.Debug("memory files refreshed", "count", len(fresh))
	}
	return nil
}

func (c *Controller) schedule(t trigger.Trigger) (scheduler.Plan, error) {
	plan, err := c.sched.Plan(t)
	if err != nil {
		return scheduler.Plan{}, err
	}
	c.mergePending(plan.Nodes)
	c.logger.Debug("scheduled", "trigger", t, "nodes", plan.Nodes)
	return plan, nil
}

// documentUnit schedules one logically complete unit of work.
func (c *Controller) documentUnit(unit string) (scheduler.Plan, error) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return scheduler.Plan{}, fmt.Errorf("unit of work is required to document changes")
	}
	if c.session.hasUnit(unit) {
		return scheduler.Plan{}, fmt.Errorf("%w: %q", ErrUnitDocumented, unit)
	}
	plan, err := c.schedule(trigger.SignificantChangeImplemented)
	if err != nil {
		return scheduler.Plan{}, err
	}
	c.session.Units = append(c.session.Units, unit)
	return plan, nil
}

// mergePending unions ids into the pending list and keeps it in
// topological order.
func (c *Controller) mergePending(ids []memgraph.NodeID) {
	if len(ids) == 0 {
		return
	}
	set := make(map[memgraph.NodeID]bool, len(c.session.Pending)+len(ids))
	for _, id := range c.session.Pending {
		set[id] = true
	}
	for _, id := range ids {
		set[id] = true
	}
	out := make([]memgraph.NodeID, 0, len(set))
	for _, id := range c.graph.TopoOrder() {
		if set[id] {
			out = append(out, id)
			delete(set, id)
		}
	}
	for _, id := range memgraph.CoreOrder() {
		if set[id] {
			out = append(out, id)
			delete(set, id)
		}
	}
	c.session.Pending = out
}

func (c *Controller) removePending(id memgraph.NodeID) {
	out := c.session.Pending[:0]
	for _, p := range c.session.Pending {
		if p != id {
			out = append(out, p)
		}
	}
	c.session.Pending = out
}

// precedes reports whether pending node p must be written before id,
// given the upstream ids the caller is attaching id to.
func (c *Controller) precedes(p, id memgraph.NodeID, upstream []memgraph.NodeID) bool {
	if c.graph.IsAncestor(p, id) {
		return true
	}
	for _, u := range upstream {
		if u == p || c.graph.IsAncestor(p, u) {
			return true
		}
	}
	return false
}
