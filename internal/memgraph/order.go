package memgraph

import "sort"

// rank orders nodes for tie-breaking: core kinds by canonical position,
// then context nodes. Lower ranks come first among ready nodes.
func rank(id NodeID, k Kind) int {
	if r, ok := coreRank[k]; ok && id == CoreID(k) {
		return r
	}
	return len(CoreKinds)
}

// TopoOrder returns every node in dependency order (upstream before
// downstream). Ties are broken by canonical core order, then by id, so
// the result is stable across calls.
func (g *Graph) TopoOrder() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topoOrder()
}

// CoreOrder returns the seven core ids in an order that respects the
// fixed edge table, whether or not the nodes are present.
func CoreOrder() []NodeID {
	out := make([]NodeID, len(CoreKinds))
	for i, k := range CoreKinds {
		out[i] = CoreID(k)
	}
	return out
}

// topoOrder runs Kahn's algorithm. Caller holds at least a read lock.
func (g *Graph) topoOrder() []NodeID {
	indegree := make(map[NodeID]int, len(g.nodes))
	var ready []NodeID
	for id, n := range g.nodes {
		indegree[id] = len(n.upstream)
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	less := func(a, b NodeID) bool {
		ra, rb := rank(a, g.nodes[a].Kind), rank(b, g.nodes[b].Kind)
		if ra != rb {
			return ra < rb
		}
		return a < b
	}

	out := make([]NodeID, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		cur := ready[0]
		ready = ready[1:]
		out = append(out, cur)
		for d := range g.nodes[cur].dependents {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return out
}
