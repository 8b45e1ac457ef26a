package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/warren/pkg/maze"
)

// FormatTable writes observations as a table with columns SEQ, ID, MOVES,
// AGE, PLAN and LABELS. Returns the number of observations formatted.
func FormatTable(w io.Writer, observations []maze.Observation, session string) int {
	if len(observations) == 0 {
		fmt.Fprintf(w, "No observations found for session '%s'\n", session)
		return 0
	}

	fmt.Fprintf(w, "Observations for session '%s':\n\n", session)

	fmt.Fprintf(w, "%-5s %-10s %-5s %-8s %-28s %s\n",
		"SEQ", "ID", "MOVES", "AGE", "PLAN", "LABELS")
	fmt.Fprintf(w, "%-5s %-10s %-5s %-8s %-28s %s\n",
		"-----", "----------", "-----", "--------", "----------------------------", "----------------------------")

	for _, o := range observations {
		fmt.Fprintf(w, "%-5d %-10s %-5d %-8s %-28s %s\n",
			o.Seq,
			formatID(o.ID),
			o.Plan.Moves(),
			formatTimestamp(o.RecordedAtMs),
			formatPlan(o.Plan),
			formatLabels(o.Labels),
		)
	}

	countMsg := "observation"
	if len(observations) != 1 {
		countMsg = "observations"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(observations), countMsg)

	return len(observations)
}

// FormatJSONL writes observations as line-delimited JSON, one per line.
func FormatJSONL(w io.Writer, observations []maze.Observation) error {
	for _, o := range observations {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to marshal observation to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes one observation as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, o maze.Observation) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal observation to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

// formatID truncates an observation ID to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatPlan renders the plan text, "-" for the empty plan, truncated to 28
// characters.
func formatPlan(p maze.Plan) string {
	s := p.String()
	if s == "" {
		return "-"
	}
	return truncate(s, 28)
}

// formatLabels renders labels as a digit string, truncated to 28 characters.
func formatLabels(labels []maze.Label) string {
	var b strings.Builder
	for _, l := range labels {
		fmt.Fprintf(&b, "%d", l)
	}
	return truncate(b.String(), 28)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// formatTimestamp shows a Unix millisecond timestamp as relative time like
// "2m ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
