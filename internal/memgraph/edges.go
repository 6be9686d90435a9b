package memgraph

// coreEdges is the immutable dependency table for the core kinds,
// expressed as producer → consumers.
var coreEdges = map[Kind][]Kind{
	KindProductRequirements: {KindArchitecture, KindTechnical, KindTasksPlan},
	KindArchitecture:        {KindTasksPlan},
	KindTechnical:           {KindTasksPlan},
	KindTasksPlan:           {KindActiveContext},
	KindActiveContext:       {KindErrorDocumentation, KindLessonsLearned},
}

// coreUpstream is the inverse of coreEdges: consumer → producers.
var coreUpstream = func() map[Kind][]Kind {
	m := make(map[Kind][]Kind)
	for _, from := range CoreKinds {
		for _, to := range coreEdges[from] {
			m[to] = append(m[to], from)
		}
	}
	return m
}()

// CoreUpstream returns the fixed upstream ids of a core kind. It returns
// nil for product-requirements and for non-core kinds.
func CoreUpstream(k Kind) []NodeID {
	ups := coreUpstream[k]
	if len(ups) == 0 {
		return nil
	}
	ids := make([]NodeID, len(ups))
	for i, u := range ups {
		ids[i] = CoreID(u)
	}
	return ids
}

// CoreDependents returns the fixed downstream ids of a core kind.
func CoreDependents(k Kind) []NodeID {
	downs := coreEdges[k]
	ids := make([]NodeID, len(downs))
	for i, d := range downs {
		ids[i] = CoreID(d)
	}
	return ids
}
