package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/simulator"
	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns what it printed. Flags are reset
// to their defaults first since cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	prevOut, prevErr, prevColor := printer.Out, printer.Err, color.NoColor
	printer.Out, printer.Err, color.NoColor = &out, &errOut, true
	t.Cleanup(func() { printer.Out, printer.Err, color.NoColor = prevOut, prevErr, prevColor })
	t.Setenv("REDIS_URL", "")
	t.Setenv("WARREN_QUERY_BUDGET", "")

	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(nil)
			} else {
				f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), errOut.String(), err
}

// singleRoomFile writes a one-room maze whose doors all lead back to it.
func singleRoomFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "single.yml")
	require.NoError(t, simulator.Save(path, simulator.Problem{
		Name:  "single",
		Rooms: []simulator.Room{{Label: 2}},
	}))
	return path
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, _, err := execute(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "solve")
	assert.Contains(t, out, "traces")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, _, err := execute(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestSolveCommand_OfflineFile(t *testing.T) {
	mazeFile := singleRoomFile(t)
	mapFile := filepath.Join(t.TempDir(), "map.json")

	out, _, err := execute(t, "solve", "--file", mazeFile, "--output", mapFile, "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "→ Solving 'single' offline (1 rooms, session single-")
	assert.Contains(t, out, "✓ Solved 'single'")
	assert.Contains(t, out, "1 rooms, start 0")
	assert.Contains(t, out, "✓ Guess accepted")

	data, err := os.ReadFile(mapFile)
	require.NoError(t, err)
	var m maze.Map
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, []maze.Label{2}, m.Rooms)
	assert.NoError(t, m.Validate())
}

func TestSolveCommand_BudgetExhausted(t *testing.T) {
	_, errOut, err := execute(t, "solve", "--simulate", "--problem", "probatio", "--budget", "5")
	require.Error(t, err)
	assert.Equal(t, "budget exhausted", err.Error())
	assert.Contains(t, errOut, "query budget 5 spent")
	assert.Contains(t, errOut, "  Queries: 5\n")
}

func TestSolveCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no problem", []string{"solve"}, "no problem given"},
		{"unknown built-in", []string{"solve", "--simulate", "--problem", "nope"}, "unknown built-in problem 'nope'"},
		{"online without server", []string{"solve", "--problem", "primus", "--rooms", "6"}, "invalid problem description"},
		{"missing maze file", []string{"solve", "--file", "/nonexistent/maze.yml"}, "failed to load maze file"},
		{"bad config file", []string{"solve", "--config", "/nonexistent/warren.yml"}, "invalid configuration"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WARREN_API_URL", "")
			t.Setenv("WARREN_TEAM_ID", "")
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSolveCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	mazeFile := singleRoomFile(t)
	path := filepath.Join(dir, config.DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(`version: "1.0"
session: "single-cfg"
problem:
  name: "single"
  rooms: 1
  file: "`+mazeFile+`"
explore:
  seed: 3
`), 0644))

	out, _, err := execute(t, "solve", "--config", path, "--no-guess")
	require.NoError(t, err)
	assert.Contains(t, out, "session single-cfg")
	assert.NotContains(t, out, "Guess accepted")
}

func TestSolveReplayAndTraces_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	redisURL := "redis://" + mr.Addr()

	_, _, err := execute(t, "solve", "--file", singleRoomFile(t), "--redis-url", redisURL, "--session", "single-1", "--no-guess")
	require.NoError(t, err)

	store, err := trace.NewRedisStore(&redis.Options{Addr: mr.Addr()}, "single-1")
	require.NoError(t, err)
	defer store.Close()
	all, err := trace.All(context.Background(), store)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	t.Run("replay rebuilds the solved graph", func(t *testing.T) {
		mapFile := filepath.Join(t.TempDir(), "map.json")
		out, _, err := execute(t, "replay", "--session", "single-1", "--rooms", "1", "--redis-url", redisURL, "--output", mapFile)
		require.NoError(t, err)
		assert.Contains(t, out, "Session 'single-1':")
		assert.Contains(t, out, "1 representatives")
		assert.Contains(t, out, "✓ Graph is closed and confident")
		assert.Contains(t, out, "1 rooms, start 0")
		assert.FileExists(t, mapFile)
	})

	t.Run("replay waits for observations", func(t *testing.T) {
		out, _, err := execute(t, "replay", "--session", "single-1", "--rooms", "1", "--redis-url", redisURL,
			"--wait-for", "1", "--timeout", "1s")
		require.NoError(t, err)
		assert.Contains(t, out, "→ Waiting for 1 observations...")
	})

	t.Run("traces lists the session", func(t *testing.T) {
		out, _, err := execute(t, "traces", "--session", "single-1", "--redis-url", redisURL)
		require.NoError(t, err)
		assert.Contains(t, out, "Observations for session 'single-1':")
		assert.Contains(t, out, all[0].ID[:8])
	})

	t.Run("traces JSONL with filters", func(t *testing.T) {
		out, _, err := execute(t, "traces", "--session", "single-1", "--redis-url", redisURL, "--output", "jsonl", "--from", "1")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		assert.Len(t, lines, len(all)-1)
	})

	t.Run("traces get by short ID", func(t *testing.T) {
		out, _, err := execute(t, "traces", "--session", "single-1", "--redis-url", redisURL, all[0].ID[:8])
		require.NoError(t, err)
		var o maze.Observation
		require.NoError(t, json.Unmarshal([]byte(out), &o))
		assert.Equal(t, all[0].ID, o.ID)
	})

	t.Run("traces get unknown ID", func(t *testing.T) {
		_, _, err := execute(t, "traces", "--session", "single-1", "--redis-url", redisURL, "ffffffff")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "observation with ID 'ffffffff' not found")
	})

	t.Run("traces rejects bad filters", func(t *testing.T) {
		_, _, err := execute(t, "traces", "--session", "single-1", "--redis-url", redisURL, "--since", "yesterday")
		assert.EqualError(t, err, "invalid time filter")

		_, _, err = execute(t, "traces", "--session", "single-1", "--redis-url", redisURL, "--output", "xml")
		assert.EqualError(t, err, "invalid output format")
	})

	t.Run("replay of an empty session", func(t *testing.T) {
		_, _, err := execute(t, "replay", "--session", "nobody", "--redis-url", redisURL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no observations in session 'nobody'")
	})
}

func TestTracesCommand_NeedsRedis(t *testing.T) {
	_, _, err := execute(t, "traces", "--session", "single-1")
	assert.EqualError(t, err, "Redis URL required")

	_, _, err = execute(t, "traces", "--redis-url", "redis://localhost:6379")
	assert.ErrorContains(t, err, `required flag(s) "session" not set`)
}

func TestServeProblems(t *testing.T) {
	problems, err := serveProblems([]string{singleRoomFile(t)}, 5, 2)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Equal(t, "single", problems[0].Name)
	assert.Equal(t, "random-5-2", problems[1].Name)
	assert.Len(t, problems[1].Rooms, 5)

	_, err = serveProblems([]string{"/nonexistent.yml"}, 0, 0)
	assert.Error(t, err)
}

func TestDefaultSession(t *testing.T) {
	for _, problem := range []string{"probatio", "Primus_Big", "", strings.Repeat("x", 80), "--"} {
		name := defaultSession(problem)
		assert.NoError(t, config.ValidateSessionName(name), name)
	}
	assert.True(t, strings.HasPrefix(defaultSession("Primus_Big"), "primus-big-"))
}
