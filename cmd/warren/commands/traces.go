package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dyluth/warren/internal/hoard"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/watch"
	"github.com/spf13/cobra"
)

var (
	tracesSession      string
	tracesRedisURL     string
	tracesOutputFormat string
	tracesSince        string
	tracesUntil        string
	tracesPlan         string
	tracesMarks        bool
	tracesFrom         int
	tracesWatch        bool
)

var tracesCmd = &cobra.Command{
	Use:   "traces [OBSERVATION_ID]",
	Short: "Inspect recorded observations with filtering",
	Long: `Inspect the observations of a session in list, get or watch mode.

List Mode (no OBSERVATION_ID):
  Displays observations matching filters as a table or JSONL stream.

Get Mode (with OBSERVATION_ID):
  Displays one observation as pretty-printed JSON.
  Supports short IDs (e.g., "abc123" instead of full UUID).

Watch Mode (--watch):
  Streams observations as a running solver records them.

Filters (list mode only):
  --since  - Recorded after this time (duration, RFC3339 or Unix ms)
  --until  - Recorded before this time
  --plan   - Plan text prefix ("01", "0[2]")
  --marks  - Only plans that overwrite labels
  --from   - Lowest sequence number

Examples:
  # List a session's observations
  warren traces --session primus-1

  # Label-editing plans of the last hour as JSONL for jq
  warren traces --session primus-1 --marks --since=1h --output=jsonl | jq .plan

  # One observation by short ID
  warren traces --session primus-1 abc123

  # Follow a running solve
  warren traces --session primus-1 --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTraces,
}

func init() {
	tracesCmd.Flags().StringVarP(&tracesSession, "session", "s", "", "Session to inspect (required)")
	tracesCmd.Flags().StringVar(&tracesRedisURL, "redis-url", "", "Redis URL (default: $REDIS_URL)")
	tracesCmd.Flags().StringVarP(&tracesOutputFormat, "output", "o", "default", "Output format: default or jsonl (json in watch mode)")
	tracesCmd.Flags().StringVar(&tracesSince, "since", "", "Show observations after time (duration, RFC3339 or Unix ms)")
	tracesCmd.Flags().StringVar(&tracesUntil, "until", "", "Show observations before time (duration, RFC3339 or Unix ms)")
	tracesCmd.Flags().StringVar(&tracesPlan, "plan", "", "Filter by plan text prefix")
	tracesCmd.Flags().BoolVar(&tracesMarks, "marks", false, "Only plans that overwrite labels")
	tracesCmd.Flags().IntVar(&tracesFrom, "from", 0, "Lowest sequence number")
	tracesCmd.Flags().BoolVarP(&tracesWatch, "watch", "w", false, "Stream new observations")
	tracesCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(tracesCmd)
}

func runTraces(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := openRedisStore(ctx, tracesRedisURL, tracesSession)
	if err != nil {
		return err
	}
	defer store.Close()

	if tracesWatch {
		format := watch.OutputFormatDefault
		switch tracesOutputFormat {
		case "default":
		case "json", "jsonl":
			format = watch.OutputFormatJSON
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", tracesOutputFormat),
				[]string{"Valid formats: default, json"},
			)
		}

		sub, err := store.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		defer sub.Close()

		printer.Step("Watching session '%s' (Ctrl-C to stop)\n", tracesSession)
		return watch.Stream(ctx, sub, format, printer.Out)
	}

	if len(args) > 0 {
		err := hoard.GetObservation(ctx, store, args[0], printer.Out)
		switch {
		case hoard.IsNotFound(err):
			return printer.Error(
				fmt.Sprintf("observation with ID '%s' not found", args[0]),
				"The specified observation does not exist in this session.",
				[]string{fmt.Sprintf("List observations:\n  warren traces --session %s", tracesSession)},
			)
		case hoard.IsAmbiguous(err):
			ae := err.(*hoard.AmbiguousError)
			return printer.Error(
				fmt.Sprintf("ambiguous short ID '%s'", ae.ShortID),
				fmt.Sprintf("Matches %d observations:\n%s", len(ae.Matches), ae.Details()),
				[]string{"Use a longer prefix to uniquely identify the observation."},
			)
		case err != nil:
			return fmt.Errorf("failed to get observation: %w", err)
		}
		return nil
	}

	format, err := hoard.ParseOutputFormat(tracesOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", tracesOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMs, untilMs, err := hoard.ParseRange(tracesSince, tracesUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}

	filters := &hoard.FilterCriteria{
		SinceTimestampMs: sinceMs,
		UntilTimestampMs: untilMs,
		PlanPrefix:       tracesPlan,
		MarksOnly:        tracesMarks,
		FromSeq:          tracesFrom,
	}
	if err := hoard.ListObservations(ctx, store, tracesSession, format, filters, printer.Out); err != nil {
		return fmt.Errorf("failed to list observations: %w", err)
	}
	return nil
}
