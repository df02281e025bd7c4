// Package graph maintains the task dependency graph. An edge A -> B means
// task A cannot be done until task B is done. The edge set is kept acyclic.
package graph

import (
	"context"
	"slices"

	"github.com/JunoAX/familytasks-go/internal/models"
)

// AdjacencyFunc returns the tasks the given task depends on.
type AdjacencyFunc func(ctx context.Context, taskID int64) ([]int64, error)

// SearchResult describes one reachability search.
type SearchResult struct {
	// Path runs from the start node to the target along existing edges.
	// Empty when the target is unreachable.
	Path    []int64
	Visited int
}

// Found reports whether the target was reached.
func (r SearchResult) Found() bool {
	return len(r.Path) > 0
}

// FindPath searches depth-first from `from` along outgoing edges for `to`.
// The visited set keeps diamonds from being expanded twice and guarantees
// termination on any graph, cyclic or not.
func FindPath(ctx context.Context, next AdjacencyFunc, from, to int64) (SearchResult, error) {
	if from == to {
		return SearchResult{Path: []int64{from}, Visited: 1}, nil
	}

	visited := map[int64]bool{from: true}
	parent := map[int64]int64{}
	stack := []int64{from}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return SearchResult{Visited: len(visited)}, err
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		neighbors, err := next(ctx, current)
		if err != nil {
			return SearchResult{Visited: len(visited)}, err
		}

		for _, n := range neighbors {
			if n == to {
				parent[n] = current
				return SearchResult{Path: walkBack(parent, from, to), Visited: len(visited) + 1}, nil
			}
			if visited[n] {
				continue
			}
			visited[n] = true
			parent[n] = current
			stack = append(stack, n)
		}
	}

	return SearchResult{Visited: len(visited)}, nil
}

func walkBack(parent map[int64]int64, from, to int64) []int64 {
	path := []int64{to}
	for node := to; node != from; {
		node = parent[node]
		path = append(path, node)
	}
	slices.Reverse(path)
	return path
}

// WouldCreateCycle reports whether adding taskID -> dependsOnTaskID closes a
// cycle, i.e. whether taskID is already reachable from dependsOnTaskID.
func WouldCreateCycle(ctx context.Context, next AdjacencyFunc, taskID, dependsOnTaskID int64) (bool, error) {
	res, err := FindPath(ctx, next, dependsOnTaskID, taskID)
	if err != nil {
		return false, err
	}
	return res.Found(), nil
}

// CyclePath returns the cycle the edge taskID -> dependsOnTaskID would close,
// starting and ending at taskID, or nil if it closes none.
func CyclePath(ctx context.Context, next AdjacencyFunc, taskID, dependsOnTaskID int64) ([]int64, int, error) {
	res, err := FindPath(ctx, next, dependsOnTaskID, taskID)
	if err != nil || !res.Found() {
		return nil, res.Visited, err
	}
	return append([]int64{taskID}, res.Path...), res.Visited, nil
}

// Adjacency builds outgoing adjacency lists from an edge list. Lists are sorted.
func Adjacency(edges []models.Dependency) map[int64][]int64 {
	adj := make(map[int64][]int64)
	for _, e := range edges {
		adj[e.TaskID] = append(adj[e.TaskID], e.DependsOnTaskID)
	}
	for k := range adj {
		slices.Sort(adj[k])
	}
	return adj
}

// FromMap adapts an in-memory adjacency map to an AdjacencyFunc.
func FromMap(adj map[int64][]int64) AdjacencyFunc {
	return func(_ context.Context, taskID int64) ([]int64, error) {
		return adj[taskID], nil
	}
}

// FindCycle audits a whole edge set and returns one cycle as a closed path
// (first id repeated at the end), or nil when the set is acyclic.
func FindCycle(edges []models.Dependency) []int64 {
	adj := Adjacency(edges)

	nodes := make([]int64, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[int64]int, len(adj))

	type frame struct {
		node int64
		next int
	}

	for _, root := range nodes {
		if state[root] != unvisited {
			continue
		}

		stack := []frame{{node: root}}
		state[root] = inProgress

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := adj[top.node]

			if top.next == len(neighbors) {
				state[top.node] = done
				stack = stack[:len(stack)-1]
				continue
			}

			n := neighbors[top.next]
			top.next++

			switch state[n] {
			case inProgress:
				// n is on the stack; the cycle is the stack from n to the top.
				var cycle []int64
				for i := range stack {
					if stack[i].node == n {
						for _, f := range stack[i:] {
							cycle = append(cycle, f.node)
						}
						break
					}
				}
				return append(cycle, n)
			case unvisited:
				state[n] = inProgress
				stack = append(stack, frame{node: n})
			}
		}
	}
	return nil
}
