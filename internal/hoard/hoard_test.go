package hoard

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const session = "test-session"

// setupStore returns a Redis-backed trace store on miniredis plus a raw
// client for seeding observations with chosen IDs.
func setupStore(t *testing.T) (*trace.RedisStore, *redis.Client) {
	mr := miniredis.RunT(t)
	opts := &redis.Options{Addr: mr.Addr()}

	store, err := trace.NewRedisStore(opts, session)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	return store, rdb
}

// seed writes an observation under a fixed ID the way RedisStore.Record lays
// it out.
func seed(t *testing.T, rdb *redis.Client, o maze.Observation) {
	ctx := context.Background()
	hash, err := trace.ObservationToHash(o)
	require.NoError(t, err)
	require.NoError(t, rdb.HSet(ctx, trace.ObservationKey(session, o.ID), hash).Err())
	require.NoError(t, rdb.RPush(ctx, trace.OrderKey(session), o.ID).Err())
}

func record(t *testing.T, store trace.Store, plan string, labels ...maze.Label) maze.Observation {
	o, err := store.Record(context.Background(), maze.MustParsePlan(plan), labels)
	require.NoError(t, err)
	return o
}

func TestListObservations(t *testing.T) {
	ctx := context.Background()

	t.Run("empty trace - default format", func(t *testing.T) {
		store, _ := setupStore(t)

		var buf bytes.Buffer
		require.NoError(t, ListObservations(ctx, store, session, OutputFormatDefault, nil, &buf))
		assert.Contains(t, buf.String(), "No observations found for session 'test-session'")
	})

	t.Run("empty trace - JSONL format", func(t *testing.T) {
		store, _ := setupStore(t)

		var buf bytes.Buffer
		require.NoError(t, ListObservations(ctx, store, session, OutputFormatJSONL, nil, &buf))
		assert.Empty(t, buf.String())
	})

	t.Run("table in recording order", func(t *testing.T) {
		store, _ := setupStore(t)
		first := record(t, store, "", 0)
		record(t, store, "0[3]1", 0, 1, 3, 0)

		var buf bytes.Buffer
		require.NoError(t, ListObservations(ctx, store, session, OutputFormatDefault, nil, &buf))
		out := buf.String()

		assert.Contains(t, out, "Observations for session 'test-session':")
		assert.Contains(t, out, "SEQ")
		assert.Contains(t, out, first.ID[:8])
		assert.Contains(t, out, "0[3]1")
		assert.Contains(t, out, "0130")
		assert.Contains(t, out, "2 observations found")
		assert.Less(t, strings.Index(out, first.ID[:8]), strings.Index(out, "0[3]1"))
	})

	t.Run("JSONL carries complete observations", func(t *testing.T) {
		store, _ := setupStore(t)
		record(t, store, "012", 0, 1, 2, 2)
		record(t, store, "5", 0, 0)

		var buf bytes.Buffer
		require.NoError(t, ListObservations(ctx, store, session, OutputFormatJSONL, nil, &buf))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		var o maze.Observation
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &o))
		assert.Equal(t, 0, o.Seq)
		assert.Equal(t, "012", o.Plan.String())
		assert.Equal(t, []maze.Label{0, 1, 2, 2}, o.Labels)
	})

	t.Run("filters", func(t *testing.T) {
		store, rdb := setupStore(t)
		now := time.Now().UnixMilli()
		seed(t, rdb, maze.Observation{ID: "aaaaaaaa-0000-0000-0000-000000000000", Seq: 0, Plan: maze.MustParsePlan("01"), Labels: []maze.Label{0, 1, 2}, RecordedAtMs: now - 3_600_000})
		seed(t, rdb, maze.Observation{ID: "bbbbbbbb-0000-0000-0000-000000000000", Seq: 1, Plan: maze.MustParsePlan("0[2]1"), Labels: []maze.Label{0, 1, 2, 0}, RecordedAtMs: now - 60_000})
		seed(t, rdb, maze.Observation{ID: "cccccccc-0000-0000-0000-000000000000", Seq: 2, Plan: maze.MustParsePlan("10"), Labels: []maze.Label{0, 1, 1}, RecordedAtMs: now})

		tests := []struct {
			name    string
			filters *FilterCriteria
			want    []int
		}{
			{"no filters", &FilterCriteria{}, []int{0, 1, 2}},
			{"since", &FilterCriteria{SinceTimestampMs: now - 120_000}, []int{1, 2}},
			{"until", &FilterCriteria{UntilTimestampMs: now - 120_000}, []int{0}},
			{"plan prefix", &FilterCriteria{PlanPrefix: "0"}, []int{0, 1}},
			{"marks only", &FilterCriteria{MarksOnly: true}, []int{1}},
			{"from seq", &FilterCriteria{FromSeq: 2}, []int{2}},
			{"combined", &FilterCriteria{PlanPrefix: "0", SinceTimestampMs: now - 120_000}, []int{1}},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, ListObservations(ctx, store, session, OutputFormatJSONL, tt.filters, &buf))

				var got []int
				for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
					if line == "" {
						continue
					}
					var o maze.Observation
					require.NoError(t, json.Unmarshal([]byte(line), &o))
					got = append(got, o.Seq)
				}
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		store, _ := setupStore(t)
		err := ListObservations(ctx, store, session, OutputFormat("xml"), nil, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown output format: xml")
	})
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestGetObservation(t *testing.T) {
	ctx := context.Background()

	t.Run("full ID", func(t *testing.T) {
		store, _ := setupStore(t)
		o := record(t, store, "0[1]", 0, 1, 1)

		var buf bytes.Buffer
		require.NoError(t, GetObservation(ctx, store, o.ID, &buf))

		var got maze.Observation
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, o.ID, got.ID)
		assert.Equal(t, "0[1]", got.Plan.String())
		assert.Contains(t, buf.String(), "\n  \"plan\": \"0[1]\"")
	})

	t.Run("short ID", func(t *testing.T) {
		store, rdb := setupStore(t)
		seed(t, rdb, maze.Observation{ID: "abc12345-0000-0000-0000-000000000000", Seq: 0, Labels: []maze.Label{3}})

		var buf bytes.Buffer
		require.NoError(t, GetObservation(ctx, store, "abc123", &buf))
		assert.Contains(t, buf.String(), "abc12345-0000-0000-0000-000000000000")
	})

	t.Run("not found", func(t *testing.T) {
		store, _ := setupStore(t)

		err := GetObservation(ctx, store, "550e8400-e29b-41d4-a716-446655440000", &bytes.Buffer{})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Equal(t, "observation with ID '550e8400-e29b-41d4-a716-446655440000' not found", err.Error())
	})
}

func TestResolveID(t *testing.T) {
	ctx := context.Background()
	store, rdb := setupStore(t)
	seed(t, rdb, maze.Observation{ID: "abc12345-0000-0000-0000-000000000000", Seq: 0, Labels: []maze.Label{0}})
	seed(t, rdb, maze.Observation{ID: "abc12399-0000-0000-0000-000000000000", Seq: 1, Labels: []maze.Label{0}})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := ResolveID(ctx, store, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, "abc12345-0000-0000-0000-000000000000", id)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := ResolveID(ctx, store, "abc123")
		require.Error(t, err)
		assert.True(t, IsAmbiguous(err))
		ae := err.(*AmbiguousError)
		assert.Len(t, ae.Matches, 2)
		assert.Equal(t, "  abc12345-0000-0000-0000-000000000000\n  abc12399-0000-0000-0000-000000000000\n", ae.Details())
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveID(ctx, store, "abc")
		assert.ErrorContains(t, err, "at least 6 characters")
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveID(ctx, store, "ffffff")
		assert.True(t, IsNotFound(err))
	})
}

func TestAmbiguousErrorDetailsTruncates(t *testing.T) {
	ae := &AmbiguousError{ShortID: "abcdef"}
	for i := 0; i < 12; i++ {
		ae.Matches = append(ae.Matches, "id")
	}
	assert.Equal(t, 10, strings.Count(ae.Details(), "  id\n"))
	assert.Contains(t, ae.Details(), "...and 2 more")
}

func TestParseRange(t *testing.T) {
	t.Run("durations are relative to now", func(t *testing.T) {
		since, until, err := ParseRange("2h", "1h")
		require.NoError(t, err)
		assert.InDelta(t, time.Now().Add(-2*time.Hour).UnixMilli(), since, 5000)
		assert.Equal(t, int64(3_600_000), until-since)
	})

	t.Run("RFC3339 and milliseconds", func(t *testing.T) {
		since, until, err := ParseRange("2025-10-29T13:00:00Z", "1761746400000")
		require.NoError(t, err)
		assert.Equal(t, int64(1761742800000), since)
		assert.Equal(t, int64(1761746400000), until)
	})

	t.Run("empty bounds", func(t *testing.T) {
		since, until, err := ParseRange("", "")
		require.NoError(t, err)
		assert.Zero(t, since)
		assert.Zero(t, until)
	})

	t.Run("errors", func(t *testing.T) {
		_, _, err := ParseRange("yesterday", "")
		assert.ErrorContains(t, err, "invalid --since")
		_, _, err = ParseRange("", "soon")
		assert.ErrorContains(t, err, "invalid --until")
		_, _, err = ParseRange("1h", "2h")
		assert.ErrorContains(t, err, "--since must be before --until")
	})
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "abcdefgh", formatID("abcdefgh-1234"))
	assert.Equal(t, "short", formatID("short"))
	assert.Equal(t, "-", formatPlan(nil))
	assert.Equal(t, strings.Repeat("0", 25)+"...", formatPlan(make(maze.Plan, 40)))
	assert.Equal(t, "0123", formatLabels([]maze.Label{0, 1, 2, 3}))
	assert.Equal(t, "-", formatTimestamp(0))
	assert.Equal(t, "5m ago", formatTimestamp(time.Now().Add(-5*time.Minute-time.Second).UnixMilli()))
	assert.Equal(t, "2d ago", formatTimestamp(time.Now().Add(-49*time.Hour).UnixMilli()))
}
