package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edges(pairs ...[2]int64) []models.Dependency {
	deps := make([]models.Dependency, len(pairs))
	for i, p := range pairs {
		deps[i] = models.Dependency{ID: int64(i + 1), TaskID: p[0], DependsOnTaskID: p[1]}
	}
	return deps
}

func TestWouldCreateCycle(t *testing.T) {
	ctx := context.Background()
	// 1 -> 2 -> 3, 1 -> 4 -> 3 (diamond), 5 isolated
	adj := FromMap(Adjacency(edges([2]int64{1, 2}, [2]int64{2, 3}, [2]int64{1, 4}, [2]int64{4, 3})))

	tests := []struct {
		name            string
		taskID, depends int64
		want            bool
	}{
		{"closing edge from sink", 3, 1, true},
		{"closing edge mid chain", 3, 2, true},
		{"back edge two hops", 4, 1, true},
		{"parallel edge in same direction", 1, 3, false},
		{"across the diamond", 2, 4, false},
		{"isolated node", 5, 1, false},
		{"self loop", 2, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WouldCreateCycle(ctx, adj, tt.taskID, tt.depends)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCyclePath(t *testing.T) {
	ctx := context.Background()
	adj := FromMap(Adjacency(edges([2]int64{1, 2}, [2]int64{2, 3})))

	path, visited, err := CyclePath(ctx, adj, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2, 3}, path)
	assert.Positive(t, visited)

	path, _, err = CyclePath(ctx, adj, 1, 3)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindPathTerminatesOnExistingCycle(t *testing.T) {
	// A corrupted graph must not hang the search.
	adj := FromMap(map[int64][]int64{1: {2}, 2: {3}, 3: {1}})

	res, err := FindPath(context.Background(), adj, 1, 99)
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, 3, res.Visited)
}

func TestFindPathVisitsDiamondOnce(t *testing.T) {
	calls := map[int64]int{}
	adj := map[int64][]int64{1: {2, 3}, 2: {4}, 3: {4}, 4: {5}}
	next := func(_ context.Context, id int64) ([]int64, error) {
		calls[id]++
		return adj[id], nil
	}

	res, err := FindPath(context.Background(), next, 1, 99)
	require.NoError(t, err)
	assert.False(t, res.Found())
	for id, n := range calls {
		assert.Equal(t, 1, n, "node %d expanded more than once", id)
	}
}

func TestFindPathPropagatesErrors(t *testing.T) {
	boom := errors.New("connection lost")
	next := func(context.Context, int64) ([]int64, error) { return nil, boom }

	_, err := FindPath(context.Background(), next, 1, 2)
	assert.ErrorIs(t, err, boom)
}

func TestFindPathHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FindPath(ctx, FromMap(map[int64][]int64{1: {2}}), 1, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindCycle(t *testing.T) {
	tests := []struct {
		name  string
		edges []models.Dependency
		want  []int64
	}{
		{"empty", nil, nil},
		{"chain", edges([2]int64{1, 2}, [2]int64{2, 3}), nil},
		{"diamond", edges([2]int64{1, 2}, [2]int64{1, 3}, [2]int64{2, 4}, [2]int64{3, 4}), nil},
		{"triangle", edges([2]int64{1, 2}, [2]int64{2, 3}, [2]int64{3, 1}), []int64{1, 2, 3, 1}},
		{"cycle off the root", edges([2]int64{1, 2}, [2]int64{2, 3}, [2]int64{3, 2}), []int64{2, 3, 2}},
		{"two components", edges([2]int64{1, 2}, [2]int64{5, 6}, [2]int64{6, 5}), []int64{5, 6, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindCycle(tt.edges))
		})
	}
}
