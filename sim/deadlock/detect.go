// Cycle detection over the wait-for graph.
//
// Processes are mapped to integer indices and the edges packed into an
// array-backed adjacency (offsets/targets). Traversal is an iterative
// depth-first search with an explicit frame stack, so depth is bounded by
// heap memory rather than the goroutine stack. Each node moves through three
// states: unvisited, on-stack and finished. Strongly connected components
// are closed the way Tarjan's algorithm does; every member of a component
// with more than one node lies on a cycle and is reported.

package deadlock

const (
	unvisited uint8 = iota
	onStack
	finished
)

// adjacency is a compressed sparse row view of a directed graph over nodes 0..n-1.
// The successors of v are targets[offsets[v]:offsets[v+1]].
type adjacency struct {
	offsets []int
	targets []int
}

func newAdjacency(n int, edges [][2]int) adjacency {
	offsets := make([]int, n+1)
	for _, e := range edges {
		offsets[e[0]+1]++
	}
	for v := 0; v < n; v++ {
		offsets[v+1] += offsets[v]
	}
	targets := make([]int, len(edges))
	fill := append([]int(nil), offsets[:n]...)
	for _, e := range edges {
		targets[fill[e[0]]] = e[1]
		fill[e[0]]++
	}
	return adjacency{offsets: offsets, targets: targets}
}

func (a adjacency) len() int {
	return len(a.offsets) - 1
}

type frame struct {
	node int
	next int // index into targets of the next successor to visit
}

// cycleMembers returns, for each node, whether it lies on some directed cycle.
// Every node is tried as a DFS root so disconnected components are covered.
// Runs in O(V+E).
func cycleMembers(adj adjacency) []bool {
	n := adj.len()
	state := make([]uint8, n)
	index := make([]int, n)
	low := make([]int, n)
	inCycle := make([]bool, n)

	var (
		counter int
		stack   []int   // nodes visited and not yet assigned to a component
		frames  []frame // explicit DFS path
	)
	visit := func(v int) {
		index[v], low[v] = counter, counter
		counter++
		state[v] = onStack
		stack = append(stack, v)
		frames = append(frames, frame{node: v, next: adj.offsets[v]})
	}

	for root := 0; root < n; root++ {
		if state[root] != unvisited {
			continue
		}
		visit(root)
		for len(frames) > 0 {
			top := len(frames) - 1
			v := frames[top].node
			if i := frames[top].next; i < adj.offsets[v+1] {
				frames[top].next++
				w := adj.targets[i]
				switch state[w] {
				case unvisited:
					visit(w)
				case onStack:
					low[v] = min(low[v], index[w])
				}
				continue
			}

			// all successors of v explored
			frames = frames[:top]
			if top > 0 {
				parent := frames[top-1].node
				low[parent] = min(low[parent], low[v])
			}
			if low[v] != index[v] {
				continue
			}
			// v roots a component: everything above it on the stack belongs to it
			start := len(stack) - 1
			for stack[start] != v {
				start--
			}
			component := stack[start:]
			for _, w := range component {
				state[w] = finished
				if len(component) > 1 {
					inCycle[w] = true
				}
			}
			stack = stack[:start]
		}
	}
	return inCycle
}

// DetectDeadlock returns the processes lying on any cycle of the current
// wait-for graph, in registration order. It is empty iff the wait-for graph
// is acyclic. No detection state is kept between calls.
func (g *ResourceGraph) DetectDeadlock() []string {
	edges := g.ProjectWaitFor()
	indexed := make([][2]int, 0, len(edges))
	for _, e := range edges {
		from, okFrom := g.procIndex[e.From]
		to, okTo := g.procIndex[e.To]
		if !okFrom || !okTo {
			continue
		}
		indexed = append(indexed, [2]int{from, to})
	}

	inCycle := cycleMembers(newAdjacency(len(g.processes), indexed))
	deadlocked := make([]string, 0)
	for i, id := range g.processes {
		if inCycle[i] {
			deadlocked = append(deadlocked, id)
		}
	}
	return deadlocked
}
