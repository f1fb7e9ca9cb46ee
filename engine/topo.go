package engine

import "github.com/patchgrid/patchgrid"

// topoOrder orders the module ids so that every connection's source comes
// before its destination (Kahn's algorithm), or fails with
// patchgrid.ErrCycle. ids gives the tie-breaking order, so repeated builds of
// the same graph evaluate in the same order. Multiple edges between the same
// pair of modules are fine.
func topoOrder(ids []int, conns []patchgrid.Connection) ([]int, error) {
	indegree := make(map[int]int, len(ids))
	adjacency := make(map[int][]int, len(ids))
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, c := range conns {
		adjacency[c.From] = append(adjacency[c.From], c.To)
		indegree[c.To]++
	}
	queue := make([]int, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]int, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) < len(ids) {
		return nil, patchgrid.ErrCycle
	}
	return order, nil
}
