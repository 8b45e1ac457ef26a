package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/warren/internal/ambiguity"
	"github.com/dyluth/warren/internal/emitter"
	"github.com/dyluth/warren/internal/hypothesis"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var (
	replaySession  string
	replayRedisURL string
	replayRooms    int
	replayWaitFor  int
	replayTimeout  time.Duration
	replayOutput   string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the hypothesis graph from a recorded trace",
	Long: `Rebuild the hypothesis graph of a session from its trace in Redis and
report what is known: rooms, unknown doors, outstanding ambiguities and, when
the graph is closed, the map that would be submitted.

Replaying the same trace always produces the same graph.

Examples:
  # Inspect a finished or interrupted session
  warren replay --session primus-1 --rooms 6 --redis-url redis://localhost:6379

  # Wait until a running solver has recorded 50 observations
  warren replay --session primus-1 --rooms 6 --wait-for 50 --timeout 2m`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replaySession, "session", "s", "", "Session to replay (required)")
	replayCmd.Flags().StringVar(&replayRedisURL, "redis-url", "", "Redis URL (default: $REDIS_URL)")
	replayCmd.Flags().IntVar(&replayRooms, "rooms", 0, "Known number of rooms (0 = unknown)")
	replayCmd.Flags().IntVar(&replayWaitFor, "wait-for", 0, "Wait until the trace holds this many observations")
	replayCmd.Flags().DurationVar(&replayTimeout, "timeout", 30*time.Second, "How long --wait-for waits")
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "", "Write the map as JSON to this file when the graph is closed")
	replayCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openRedisStore(ctx, replayRedisURL, replaySession)
	if err != nil {
		return err
	}
	defer store.Close()

	if replayWaitFor > 0 {
		printer.Step("Waiting for %d observations...\n", replayWaitFor)
		if _, err := watch.PollForObservations(ctx, store, replayWaitFor, replayTimeout); err != nil {
			return printer.Error("trace incomplete", err.Error(), []string{"Increase --timeout or lower --wait-for"})
		}
	}

	b := hypothesis.New(store, hypothesis.Options{RoomCount: replayRooms})
	if err := b.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to rebuild hypothesis: %w", err)
	}
	st := b.Stats()
	if st.Applied == 0 && st.Rejected == 0 {
		return printer.Error(
			fmt.Sprintf("no observations in session '%s'", replaySession),
			"The trace is empty.",
			[]string{"Check the session name:\n  warren traces --session <name>"},
		)
	}

	snap := b.Snapshot()
	printer.Info("Session '%s': %d observations applied, %d rejected, %d rollbacks\n",
		replaySession, st.Applied, st.Rejected, st.Rollbacks)
	printer.Info("Rooms: %d representatives (%d arena nodes), %d unknown doors\n",
		len(snap.Reachable()), st.Nodes, snap.UnknownDoors())
	printer.Info("Merges: %d (%d unconfirmed), %d distinctness proofs\n", st.Merges, st.Unconfirmed, st.Proofs)

	ds, err := ambiguity.New(ambiguity.Options{}).Resolve(ctx, snap)
	if err != nil {
		return err
	}
	if len(ds) > 0 {
		printer.Warning("%d outstanding ambiguities, first: %s\n", len(ds), ds[0])
	}

	if !snap.Closed() {
		printer.Warning("Graph is not closed; no map to emit\n")
		return nil
	}

	m, err := emitter.Emit(snap)
	if err != nil {
		return fmt.Errorf("failed to emit map: %w", err)
	}
	if snap.Confident() {
		printer.Success("Graph is closed and confident\n")
	} else {
		printer.Warning("Graph is closed but not confident\n")
	}
	printer.Solution(m)

	if replayOutput != "" {
		if err := writeMap(replayOutput, m); err != nil {
			return err
		}
		printer.Info("Map written to %s\n", replayOutput)
	}
	return nil
}
