package trace

import (
	"context"
	"testing"

	"github.com/dyluth/warren/pkg/maze"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordN(t *testing.T, store Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.Record(context.Background(), maze.PlanOf(maze.Door(i%maze.Doors)), []maze.Label{0, maze.Label(i % maze.Labels)})
		require.NoError(t, err)
	}
}

func collect(t *testing.T, r *Replayer) []int {
	t.Helper()
	var seqs []int
	for r.Next(context.Background()) {
		seqs = append(seqs, r.Observation().Seq)
	}
	require.NoError(t, r.Err())
	return seqs
}

func TestReplayerPagesInOrder(t *testing.T) {
	store := NewMemoryStore()
	recordN(t, store, 7)

	r := NewReplayer(store, 0)
	r.pageSize = 3

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, collect(t, r))
}

func TestReplayerIsRestartable(t *testing.T) {
	store := NewMemoryStore()
	recordN(t, store, 4)

	r := NewReplayer(store, 2)
	first := collect(t, r)
	r.Reset()
	second := collect(t, r)

	assert.Equal(t, []int{2, 3}, first)
	assert.Equal(t, first, second)
}

func TestReplayerSeesAppendsAfterPageBoundary(t *testing.T) {
	store := NewMemoryStore()
	recordN(t, store, 2)

	r := NewReplayer(store, 0)
	require.True(t, r.Next(context.Background()))
	require.True(t, r.Next(context.Background()))

	recordN(t, store, 1)
	require.True(t, r.Next(context.Background()))
	assert.Equal(t, 2, r.Observation().Seq)
	assert.False(t, r.Next(context.Background()))
}
