package dag

// PostorderFrom returns the node identities reachable from start, in
// depth-first postorder: a node appears only after everything reachable from
// it has appeared. Edges point toward producers, so every stage's producers
// come before the stage itself — the build order reproduction needs.
//
// The caller must have run the graph through Build (or detectCycles); the
// traversal assumes an acyclic graph.
func (g *Graph) PostorderFrom(start string) []string {
	visited := make(map[string]bool, len(g.order))
	var order []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, producer := range g.producers[id] {
			visit(producer)
		}
		order = append(order, id)
	}

	if _, ok := g.nodes[start]; ok {
		visit(start)
	}
	return order
}

// Components splits the graph into its weakly connected components: maximal
// sets of stages reachable from one another ignoring edge direction. Each
// component is returned as an induced subgraph; node and edge order within a
// component follows the parent graph's insertion order.
func (g *Graph) Components() []*Graph {
	assigned := make(map[string]int, len(g.order))
	var members [][]string

	for _, id := range g.order {
		if _, ok := assigned[id]; ok {
			continue
		}

		comp := len(members)
		var group []string
		queue := []string{id}
		assigned[id] = comp
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			group = append(group, cur)
			for _, next := range g.producers[cur] {
				if _, ok := assigned[next]; !ok {
					assigned[next] = comp
					queue = append(queue, next)
				}
			}
			for _, next := range g.consumers[cur] {
				if _, ok := assigned[next]; !ok {
					assigned[next] = comp
					queue = append(queue, next)
				}
			}
		}
		members = append(members, group)
	}

	subgraphs := make([]*Graph, len(members))
	for i := range members {
		subgraphs[i] = New()
	}
	// Re-add in parent insertion order so each subgraph stays deterministic.
	for _, id := range g.order {
		sub := subgraphs[assigned[id]]
		sub.AddNode(id, g.nodes[id])
	}
	for _, id := range g.order {
		sub := subgraphs[assigned[id]]
		for _, producer := range g.producers[id] {
			// Producers are always in the same component as their consumers.
			_ = sub.AddEdge(id, producer)
		}
	}
	return subgraphs
}
