package memgraph

import (
	"fmt"
	"sort"
	"sync"
)

// node is the graph-internal record. Edge sets are keyed by id.
type node struct {
	Node
	upstream   map[NodeID]bool
	dependents map[NodeID]bool
}

func (n *node) snapshot() Node {
	out := n.Node
	out.Upstream = sortedIDs(n.upstream)
	return out
}

// Graph is the single owner of memory node data for a session.
type Graph struct {
	mu    sync.RWMutex
	nodes map[NodeID]*node
	stale map[NodeID]bool
}

// New creates an empty graph. The core edge table is implicit; core
// nodes are linked to their fixed neighbours as they are inserted.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*node),
		stale: make(map[NodeID]bool),
	}
}

// EnsureCore inserts an unauthored placeholder for every absent core
// kind and returns the ids it created, in canonical order.
func (g *Graph) EnsureCore() []NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var created []NodeID
	for _, k := range CoreKinds {
		id := CoreID(k)
		if _, ok := g.nodes[id]; ok {
			continue
		}
		g.insertCore(Node{ID: id, Kind: k})
		created = append(created, id)
	}
	return created
}

// UpsertNode creates or replaces a node. Core nodes must use their kind
// as id and may only name upstream ids from the fixed edge table.
// Context nodes must name at least one existing core node as parent.
// On error the graph is unchanged.
func (g *Graph) UpsertNode(id NodeID, kind Kind, content string, upstream ...NodeID) (Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := Node{
		ID:        id,
		Kind:      kind,
		Content:   content,
		UpdatedAt: timeNow().UTC(),
		Upstream:  upstream,
	}
	if err := g.upsert(n); err != nil {
		return Node{}, err
	}
	return g.nodes[id].snapshot(), nil
}

// Load inserts previously persisted nodes, keeping their timestamps.
// Core nodes are inserted before context nodes so attachments resolve.
// A bad core node fails the load. A context node that cannot attach is
// skipped and reported in a *RejectedError; the rest are loaded.
func (g *Graph) Load(nodes []Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ordered := make([]Node, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].ID, ordered[i].Kind) < rank(ordered[j].ID, ordered[j].Kind)
	})
	var rejected *RejectedError
	for _, n := range ordered {
		if err := g.upsert(n); err != nil {
			if IsCore(n.Kind) {
				return fmt.Errorf("loading %s: %w", n.ID, err)
			}
			if rejected == nil {
				rejected = &RejectedError{}
			}
			rejected.Nodes = append(rejected.Nodes, n.ID)
			rejected.Errs = append(rejected.Errs, err)
		}
	}
	if rejected != nil {
		return rejected
	}
	return nil
}

// upsert validates and applies n. Caller holds the write lock.
func (g *Graph) upsert(n Node) error {
	if err := ValidateKind(n.Kind); err != nil {
		return err
	}
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if existing, ok := g.nodes[n.ID]; ok && existing.Kind != n.Kind {
		return fmt.Errorf("node %s already exists with kind %s", n.ID, existing.Kind)
	}

	if IsCore(n.Kind) {
		if err := g.validateCore(n); err != nil {
			return err
		}
		if existing, ok := g.nodes[n.ID]; ok {
			existing.Content = n.Content
			existing.UpdatedAt = n.UpdatedAt
		} else {
			g.insertCore(n)
		}
		delete(g.stale, n.ID)
		return nil
	}

	if err := g.validateContext(n); err != nil {
		return err
	}
	g.insertContext(n)
	delete(g.stale, n.ID)
	return nil
}

func (g *Graph) validateCore(n Node) error {
	if n.ID != CoreID(n.Kind) {
		return fmt.Errorf("core node %s must use its kind %q as id", n.ID, n.Kind)
	}
	fixed := make(map[NodeID]bool)
	for _, u := range CoreUpstream(n.Kind) {
		fixed[u] = true
	}
	for _, u := range n.Upstream {
		if fixed[u] {
			continue
		}
		reason := "core edges are immutable"
		if u == n.ID || g.reaches(n.ID, u) || g.coreReaches(n.Kind, u) {
			reason = "would create a cycle"
		}
		return &InvalidDependencyError{Node: n.ID, Upstream: u, Reason: reason}
	}
	return nil
}

func (g *Graph) validateContext(n Node) error {
	if IsCore(Kind(n.ID)) {
		return fmt.Errorf("context node cannot use core id %q", n.ID)
	}
	if len(n.Upstream) == 0 {
		return &UnknownParentError{Node: n.ID}
	}
	for _, u := range n.Upstream {
		if u == n.ID || g.reaches(n.ID, u) {
			return &InvalidDependencyError{Node: n.ID, Upstream: u, Reason: "would create a cycle"}
		}
		parent, ok := g.nodes[u]
		if ok && !IsCore(parent.Kind) {
			return &InvalidDependencyError{Node: n.ID, Upstream: u, Reason: "context nodes never gain dependents"}
		}
		if !ok {
			return &UnknownParentError{Node: n.ID, Parent: u}
		}
	}
	return nil
}

// insertCore adds a core node and links it to whichever fixed
// neighbours are already present.
func (g *Graph) insertCore(n Node) {
	nd := &node{
		Node:       n,
		upstream:   make(map[NodeID]bool),
		dependents: make(map[NodeID]bool),
	}
	nd.Upstream = nil
	g.nodes[n.ID] = nd
	for _, u := range CoreUpstream(n.Kind) {
		if _, ok := g.nodes[u]; ok {
			g.link(u, n.ID)
		}
	}
	for _, d := range CoreDependents(n.Kind) {
		if _, ok := g.nodes[d]; ok {
			g.link(n.ID, d)
		}
	}
}

// insertContext adds or replaces a context leaf, relinking its parents.
func (g *Graph) insertContext(n Node) {
	if existing, ok := g.nodes[n.ID]; ok {
		for u := range existing.upstream {
			delete(g.nodes[u].dependents, n.ID)
		}
	}
	nd := &node{
		Node:       n,
		upstream:   make(map[NodeID]bool),
		dependents: make(map[NodeID]bool),
	}
	nd.Upstream = nil
	g.nodes[n.ID] = nd
	for _, u := range n.Upstream {
		g.link(u, n.ID)
	}
}

func (g *Graph) link(from, to NodeID) {
	g.nodes[from].dependents[to] = true
	g.nodes[to].upstream[from] = true
}

// reaches reports whether to is reachable from from via dependents.
func (g *Graph) reaches(from, to NodeID) bool {
	if _, ok := g.nodes[from]; !ok {
		return false
	}
	seen := map[NodeID]bool{from: true}
	queue := []NodeID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for d := range g.nodes[cur].dependents {
			if d == to {
				return true
			}
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	return false
}

// coreReaches checks the fixed table directly, so cycles are reported
// even when the intermediate core nodes are not present yet.
func (g *Graph) coreReaches(from Kind, to NodeID) bool {
	seen := map[Kind]bool{from: true}
	queue := []Kind{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range coreEdges[cur] {
			if CoreID(d) == to {
				return true
			}
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	return false
}

// --- Staleness ---

// MarkStale marks id and every node reachable through dependent edges as
// stale. Traversal is breadth-first; a node already visited in this call
// is not enqueued again. It returns the visited ids in BFS order.
func (g *Graph) MarkStale(id NodeID) ([]NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("mark stale %q: %w", id, ErrUnknownNode)
	}

	visited := map[NodeID]bool{id: true}
	order := []NodeID{id}
	for i := 0; i < len(order); i++ {
		cur := order[i]
		g.stale[cur] = true
		for _, d := range sortedIDs(g.nodes[cur].dependents) {
			if visited[d] {
				continue
			}
			visited[d] = true
			order = append(order, d)
		}
	}
	return order, nil
}

// ClearStale removes id from the stale set.
func (g *Graph) ClearStale(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.stale, id)
}

// IsStale reports whether id is currently stale.
func (g *Graph) IsStale(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stale[id]
}

// StaleNodes returns the stale set in topological order, so producers
// are reviewed before their consumers.
func (g *Graph) StaleNodes() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []NodeID
	for _, id := range g.topoOrder() {
		if g.stale[id] {
			out = append(out, id)
		}
	}
	return out
}

// --- Queries ---

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.snapshot(), true
}

// Nodes returns copies of all nodes in topological order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	order := g.topoOrder()
	out := make([]Node, len(order))
	for i, id := range order {
		out[i] = g.nodes[id].snapshot()
	}
	return out
}

// Dependents returns the ids that directly depend on id.
func (g *Graph) Dependents(id NodeID) ([]NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("dependents of %q: %w", id, ErrUnknownNode)
	}
	return sortedIDs(n.dependents), nil
}

// Upstream returns the ids id directly depends on.
func (g *Graph) Upstream(id NodeID) ([]NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("upstream of %q: %w", id, ErrUnknownNode)
	}
	return sortedIDs(n.upstream), nil
}

// IsAncestor reports whether a is a transitive upstream dependency of b.
func (g *Graph) IsAncestor(a, b NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return a != b && g.reaches(a, b)
}

// Missing returns the core ids that are absent or not yet authored, in
// canonical order.
func (g *Graph) Missing() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []NodeID
	for _, k := range CoreKinds {
		n, ok := g.nodes[CoreID(k)]
		if !ok || !n.Authored() {
			out = append(out, CoreID(k))
		}
	}
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Complete reports whether every core node exists and has been authored.
func (g *Graph) Complete() bool {
	return len(g.Missing()) == 0
}

func sortedIDs(set map[NodeID]bool) []NodeID {
	if len(set) == 0 {
		return nil
	}
	out := make([]NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
