// Package watch follows a session's trace while a solver writes to it.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
)

// OutputFormat specifies how streamed observations are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one human-readable line per observation
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes one JSON object per line
	OutputFormatJSON OutputFormat = "json"
)

// Source delivers observations as they are recorded. *trace.Subscription
// implements it.
type Source interface {
	Events() <-chan maze.Observation
	Errors() <-chan error
}

// Stream writes observations from src until ctx is cancelled or src closes.
// Decoding errors on the source are logged and skipped.
func Stream(ctx context.Context, src Source, format OutputFormat, w io.Writer) error {
	if format != OutputFormatDefault && format != OutputFormatJSON {
		return fmt.Errorf("unknown output format: %s", format)
	}

	errs := src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case o, ok := <-src.Events():
			if !ok {
				return nil
			}
			if err := write(w, o, format); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[Watch] Subscription error: %v", err)
		}
	}
}

func write(w io.Writer, o maze.Observation, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to marshal observation: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	_, err := fmt.Fprintln(w, FormatObservation(o))
	return err
}

// FormatObservation renders "[15:04:05] #seq plan -> labels".
func FormatObservation(o maze.Observation) string {
	ts := time.UnixMilli(o.RecordedAtMs).Format("15:04:05")
	plan := o.Plan.String()
	if plan == "" {
		plan = "(empty)"
	}
	var labels strings.Builder
	for _, l := range o.Labels {
		fmt.Fprintf(&labels, "%d", l)
	}
	return fmt.Sprintf("[%s] #%d %s -> %s", ts, o.Seq, plan, labels.String())
}

// PollForObservations polls store every 200ms until it holds at least count
// observations. Returns the length seen or an error on timeout.
func PollForObservations(ctx context.Context, store trace.Store, count int, timeout time.Duration) (int, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		n, err := store.Len(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read trace length: %w", err)
		}
		if n >= count {
			return n, nil
		}

		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-timeoutCh:
			return n, fmt.Errorf("timeout waiting for %d observations after %v (have %d)", count, timeout, n)
		case <-ticker.C:
		}
	}
}
