package hoard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/warren/pkg/maze"
)

// FilterCriteria selects observations for listing. All filters are ANDed.
type FilterCriteria struct {
	SinceTimestampMs int64  // 0 = no lower bound
	UntilTimestampMs int64  // 0 = no upper bound
	PlanPrefix       string // Plan text prefix, e.g. "01[2]"; empty = no filter
	MarksOnly        bool   // Only plans that overwrite labels
	FromSeq          int    // Lowest sequence number; 0 = from the start
}

func (fc *FilterCriteria) matches(o maze.Observation) bool {
	if fc.SinceTimestampMs > 0 && o.RecordedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && o.RecordedAtMs > fc.UntilTimestampMs {
		return false
	}
	if fc.PlanPrefix != "" && !strings.HasPrefix(o.Plan.String(), fc.PlanPrefix) {
		return false
	}
	if fc.MarksOnly && !o.Plan.HasMarks() {
		return false
	}
	return o.Seq >= fc.FromSeq
}

// ParseTime turns a time specification into Unix milliseconds. It accepts an
// RFC3339 timestamp ("2025-10-29T13:00:00Z"), a Unix millisecond count, or a
// Go duration ("1h30m") meaning that long before now.
func ParseTime(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}
	if ms, err := strconv.ParseInt(spec, 10, 64); err == nil && ms > 0 {
		return ms, nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		return now.Add(-d).UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m', RFC3339 like '2025-10-29T13:00:00Z' or Unix milliseconds)", spec)
}

// ParseRange parses --since and --until into (sinceMs, untilMs). Zero means
// unbounded on that side.
func ParseRange(since, until string) (int64, int64, error) {
	now := time.Now()
	var sinceMs, untilMs int64
	var err error

	if since != "" {
		if sinceMs, err = ParseTime(since, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if untilMs, err = ParseTime(until, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMs > 0 && untilMs > 0 && sinceMs >= untilMs {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}
	return sinceMs, untilMs, nil
}
