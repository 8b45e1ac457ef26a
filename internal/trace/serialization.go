package trace

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dyluth/warren/pkg/maze"
)

// Serialization helpers for converting observations to and from Redis hashes.
// The plan is kept in its text form and the labels as a JSON array.

// ObservationToHash converts an observation to Redis hash fields.
func ObservationToHash(o maze.Observation) (map[string]interface{}, error) {
	labelsJSON, err := json.Marshal(o.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal labels: %w", err)
	}

	return map[string]interface{}{
		"id":             o.ID,
		"seq":            o.Seq,
		"plan":           o.Plan.String(),
		"labels":         string(labelsJSON),
		"recorded_at_ms": o.RecordedAtMs,
	}, nil
}

// HashToObservation converts Redis hash fields back to an observation.
func HashToObservation(hash map[string]string) (maze.Observation, error) {
	seq, err := strconv.Atoi(hash["seq"])
	if err != nil {
		return maze.Observation{}, fmt.Errorf("invalid seq field: %w", err)
	}

	plan, err := maze.ParsePlan(hash["plan"])
	if err != nil {
		return maze.Observation{}, fmt.Errorf("invalid plan field: %w", err)
	}

	var labels []maze.Label
	if err := json.Unmarshal([]byte(hash["labels"]), &labels); err != nil {
		return maze.Observation{}, fmt.Errorf("failed to unmarshal labels: %w", err)
	}

	recordedAtMs, _ := strconv.ParseInt(hash["recorded_at_ms"], 10, 64)

	o := maze.Observation{
		ID:           hash["id"],
		Seq:          seq,
		Plan:         plan,
		Labels:       labels,
		RecordedAtMs: recordedAtMs,
	}
	if err := o.Validate(); err != nil {
		return maze.Observation{}, fmt.Errorf("stored observation %s: %w", o.ID, err)
	}
	return o, nil
}
