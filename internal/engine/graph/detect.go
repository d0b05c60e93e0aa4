package graph

// DetectCycles returns the import cycles found by a depth-first walk in chunk
// order. Each cycle is listed once per back edge, starting at the chunk where
// the walk entered it. The walk keeps its own stack; module chains in large
// bundles run thousands of chunks deep.
func (g *Graph) DetectCycles() [][]string {
	type frame struct {
		id   string
		next []string
	}

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]int) // id -> index in path, -1 once popped

	for _, root := range g.set.IDs() {
		if visited[root] {
			continue
		}
		visited[root] = true
		onStack[root] = 0
		path := []string{root}
		stack := []frame{{id: root, next: g.Imports(root)}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				onStack[top.id] = -1
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
				continue
			}
			next := top.next[0]
			top.next = top.next[1:]

			if at, ok := onStack[next]; ok && at >= 0 {
				cycle := make([]string, len(path)-at)
				copy(cycle, path[at:])
				cycles = append(cycles, cycle)
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			onStack[next] = len(path)
			path = append(path, next)
			stack = append(stack, frame{id: next, next: g.Imports(next)})
		}
	}
	return cycles
}

// FindImportChain returns the shortest chain of imports leading from one
// chunk to another.
func (g *Graph) FindImportChain(from, to string) ([]string, bool) {
	if _, ok := g.set.Get(from); !ok {
		return nil, false
	}
	if _, ok := g.set.Get(to); !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range g.Imports(curr) {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; {
					p, ok := prev[node]
					if !ok {
						return nil, false
					}
					path = append(path, p)
					node = p
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}
