// Package hoard inspects recorded observations: listing with filters,
// fetching one by full or short ID, and formatting for the terminal or jq.
package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
)

// OutputFormat specifies how to format the observation list.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with truncated plans and labels
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete observations as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// ListObservations writes the session's observations in recording order,
// applying filters when given.
func ListObservations(ctx context.Context, store trace.Store, session string, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	all, err := trace.All(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to load observations: %w", err)
	}

	observations := make([]maze.Observation, 0, len(all))
	for _, o := range all {
		if filters != nil && !filters.matches(o) {
			continue
		}
		observations = append(observations, o)
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, observations, session)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, observations); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
