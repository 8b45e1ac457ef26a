package ambiguity

import (
	"context"
	"fmt"
	"testing"

	"github.com/dyluth/warren/internal/hypothesis"
	"github.com/dyluth/warren/internal/simulator"
	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lookalikes has two label-0 rooms behind doors 0 and 1 of the start. Their
// fingerprints are identical: door 0 leads back to the start and every other
// door loops.
var lookalikes = simulator.Problem{
	Name: "lookalikes",
	Rooms: []simulator.Room{
		{Label: 1, Doors: [maze.Doors]int{1, 2, 0, 0, 0, 0}},
		{Label: 0, Doors: [maze.Doors]int{0, 1, 1, 1, 1, 1}},
		{Label: 0, Doors: [maze.Doors]int{0, 2, 2, 2, 2, 2}},
	},
}

// explore walks each plan through m and applies it.
func explore(t *testing.T, b *hypothesis.Builder, store trace.Store, m *simulator.Maze, plans ...string) {
	t.Helper()
	ctx := context.Background()
	for _, p := range plans {
		plan := maze.MustParsePlan(p)
		labels, err := m.Walk(plan)
		require.NoError(t, err)
		obs, err := store.Record(ctx, plan, labels)
		require.NoError(t, err)
		_, err = b.Apply(ctx, obs)
		require.NoError(t, err, "plan %s", p)
	}
}

func plans(ds []Discriminator) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Plan.String()
	}
	return out
}

func pairOf(ds []Discriminator, room, node hypothesis.NodeID) (Discriminator, bool) {
	for _, d := range ds {
		if d.Nodes[0] == room && d.Nodes[1] == node {
			return d, true
		}
	}
	return Discriminator{}, false
}

func TestLookalikeRoomsGetDiscriminatorBeforeConfidence(t *testing.T) {
	m, err := simulator.New(lookalikes)
	require.NoError(t, err)
	store := trace.NewMemoryStore()
	b := hypothesis.New(store, hypothesis.Options{RoomCount: 3})
	ctx := context.Background()

	first := []string{"0", "1"}
	for d := 0; d < maze.Doors; d++ {
		first = append(first, fmt.Sprintf("0%d", d), fmt.Sprintf("1%d", d))
	}
	first = append(first, "2", "3", "4", "5")
	explore(t, b, store, m, first...)

	snap := b.Snapshot()
	require.Equal(t, [][]hypothesis.NodeID{{1, 2}}, snap.Lookalikes)
	assert.False(t, snap.Distinct(1, 2))
	assert.False(t, b.IsConfident())

	ds, err := New(Options{}).Resolve(ctx, snap)
	require.NoError(t, err)
	d, ok := pairOf(ds, 1, 2)
	require.True(t, ok, "the lookalike pair has a discriminator: %v", plans(ds))
	assert.Equal(t, Frontier, d.Kind, "no known route joins the pair yet")
	assert.Equal(t, "100", d.Plan.String())
	for _, d := range ds {
		assert.True(t, d.Valid(snap), d.String())
	}

	rounds := 0
	for ; rounds < 10 && !b.IsConfident(); rounds++ {
		ds, err := New(Options{}).Resolve(ctx, b.Snapshot())
		require.NoError(t, err)
		require.NotEmpty(t, ds, "round %d", rounds)
		explore(t, b, store, m, plans(ds)...)
	}
	require.True(t, b.IsConfident(), "still ambiguous after %d rounds", rounds)

	snap = b.Snapshot()
	assert.Equal(t, []hypothesis.NodeID{0, 1, 2}, snap.Reachable())
	assert.True(t, snap.Proven(1, 2))
	assert.False(t, d.Valid(snap))
	require.NoError(t, b.Validate())
}

func TestResolveMarksUnresolvedNode(t *testing.T) {
	store := trace.NewMemoryStore()
	b := hypothesis.New(store, hypothesis.Options{})
	ctx := context.Background()
	obs, err := store.Record(ctx, maze.MustParsePlan("00"), []maze.Label{0, 1, 0})
	require.NoError(t, err)
	_, err = b.Apply(ctx, obs)
	require.NoError(t, err)

	snap := b.Snapshot()
	require.Equal(t, [][2]hypothesis.NodeID{{0, 2}}, snap.Undistinguished())
	require.Equal(t, []hypothesis.NodeID{0}, snap.Candidates(2))

	ds, err := New(Options{Workers: 1}).Resolve(ctx, snap)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, Lookalike, ds[0].Kind)
	assert.Equal(t, "[1]00", ds[0].Plan.String())
	assert.Equal(t, []hypothesis.NodeID{0, 2}, ds[0].Nodes)
	assert.Equal(t, 3, ds[0].Score)
	assert.True(t, ds[0].Valid(snap))

	t.Run("the mark merges the pair", func(t *testing.T) {
		obs, err := store.Record(ctx, ds[0].Plan, []maze.Label{0, 1, 1, 1})
		require.NoError(t, err)
		report, err := b.Apply(ctx, obs)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ForcedMerges)

		after := b.Snapshot()
		assert.Equal(t, []hypothesis.NodeID{0, 1}, after.Reachable())
		assert.False(t, ds[0].Valid(after))
	})
}

func TestResolveFrontier(t *testing.T) {
	m, err := simulator.New(lookalikes)
	require.NoError(t, err)
	store := trace.NewMemoryStore()
	b := hypothesis.New(store, hypothesis.Options{RoomCount: 3})
	explore(t, b, store, m, "0", "1")

	snap := b.Snapshot()
	ds, err := New(Options{Workers: 1}).Resolve(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, Frontier, ds[0].Kind)
	assert.Equal(t, "10", ds[0].Plan.String())
	assert.Equal(t, []hypothesis.NodeID{1, 2}, ds[0].Nodes)
	assert.Equal(t, 2, ds[0].Score)
	assert.True(t, ds[0].Valid(snap))
}

func TestResolveEmpty(t *testing.T) {
	b := hypothesis.New(trace.NewMemoryStore(), hypothesis.Options{})
	ds, err := New(Options{}).Resolve(context.Background(), b.Snapshot())
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestResolveCancelled(t *testing.T) {
	m, err := simulator.New(lookalikes)
	require.NoError(t, err)
	store := trace.NewMemoryStore()
	b := hypothesis.New(store, hypothesis.Options{RoomCount: 3})
	explore(t, b, store, m, "0", "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(Options{}).Resolve(ctx, b.Snapshot())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "lookalike", Lookalike.String())
	assert.Equal(t, "frontier", Frontier.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
