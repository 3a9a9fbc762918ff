package deadlock

// Edge is a wait-for edge: From is blocked on a resource held by To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ProjectWaitFor derives the wait-for edges from the current allocation and
// requests. For every pending (P, R), if R is held by some Q != P the edge
// P -> Q is emitted, in request order. Free resources and resources held by
// the requester produce no edge. The result is recomputed on every call.
func (g *ResourceGraph) ProjectWaitFor() []Edge {
	edges := make([]Edge, 0, len(g.requests))
	for _, r := range g.requests {
		h, held := g.holder[r.Resource]
		if !held || h == r.Process {
			continue
		}
		edges = append(edges, Edge{From: r.Process, To: h})
	}
	return edges
}
