package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	events chan maze.Observation
	errs   chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan maze.Observation, 4), errs: make(chan error, 4)}
}

func (f *fakeSource) Events() <-chan maze.Observation { return f.events }
func (f *fakeSource) Errors() <-chan error            { return f.errs }

func TestStream(t *testing.T) {
	recorded := time.Date(2025, 10, 29, 13, 4, 5, 0, time.Local).UnixMilli()

	t.Run("default format until the source closes", func(t *testing.T) {
		src := newFakeSource()
		src.events <- maze.Observation{Seq: 0, Labels: []maze.Label{1}, RecordedAtMs: recorded}
		src.errs <- errors.New("bad payload")
		close(src.errs)
		src.events <- maze.Observation{Seq: 1, Plan: maze.MustParsePlan("0[2]"), Labels: []maze.Label{1, 0, 2}, RecordedAtMs: recorded}
		close(src.events)

		var buf bytes.Buffer
		require.NoError(t, Stream(context.Background(), src, OutputFormatDefault, &buf))
		assert.Equal(t, "[13:04:05] #0 (empty) -> 1\n[13:04:05] #1 0[2] -> 102\n", buf.String())
	})

	t.Run("json format", func(t *testing.T) {
		src := newFakeSource()
		src.events <- maze.Observation{ID: "x", Seq: 3, Plan: maze.MustParsePlan("5"), Labels: []maze.Label{0, 3}}
		close(src.events)

		var buf bytes.Buffer
		require.NoError(t, Stream(context.Background(), src, OutputFormatJSON, &buf))
		var o maze.Observation
		require.NoError(t, json.Unmarshal(buf.Bytes(), &o))
		assert.Equal(t, 3, o.Seq)
		assert.Equal(t, "5", o.Plan.String())
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, Stream(ctx, newFakeSource(), OutputFormatDefault, &bytes.Buffer{}))
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		err := Stream(context.Background(), newFakeSource(), OutputFormat("xml"), &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestStreamFromRedisSubscription(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := trace.NewRedisStore(&redis.Options{Addr: mr.Addr()}, "watched")
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	_, err = store.Record(ctx, maze.MustParsePlan("01"), []maze.Label{0, 1, 2})
	require.NoError(t, err)

	var buf safeBuffer
	done := make(chan error, 1)
	go func() { done <- Stream(ctx, sub, OutputFormatDefault, &buf) }()

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "#0 01 -> 012")
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestPollForObservations(t *testing.T) {
	ctx := context.Background()

	t.Run("returns when already present", func(t *testing.T) {
		store := trace.NewMemoryStore()
		_, err := store.Record(ctx, nil, []maze.Label{0})
		require.NoError(t, err)

		n, err := PollForObservations(ctx, store, 1, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("returns after observations arrive", func(t *testing.T) {
		store := trace.NewMemoryStore()
		go func() {
			time.Sleep(300 * time.Millisecond)
			store.Record(context.Background(), nil, []maze.Label{0})
			store.Record(context.Background(), nil, []maze.Label{0})
		}()

		start := time.Now()
		n, err := PollForObservations(ctx, store, 2, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	})

	t.Run("times out", func(t *testing.T) {
		n, err := PollForObservations(ctx, trace.NewMemoryStore(), 1, 300*time.Millisecond)
		require.Error(t, err)
		assert.Zero(t, n)
		assert.Contains(t, err.Error(), "timeout waiting for 1 observations")
	})
}

// safeBuffer is a bytes.Buffer safe for one writer and one reader goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
