// Package trace is the append-only log of exploration observations. Every
// hypothesis the engine builds is derived from this log, and replaying it in
// recording order rebuilds the hypothesis deterministically.
//
// Two backends are provided: MemoryStore for a single run, and RedisStore for
// traces that outlive the process or are watched from another terminal.
package trace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/warren/pkg/maze"
	"github.com/google/uuid"
)

var (
	// ErrMalformedObservation is returned by Record when the label sequence
	// does not fit the plan. The observation is dropped.
	ErrMalformedObservation = errors.New("trace: malformed observation")

	// ErrNotFound is returned when an observation id is unknown.
	ErrNotFound = errors.New("trace: observation not found")
)

// Store is an append-only observation log.
type Store interface {
	// Record validates and appends an observation, assigning its id,
	// sequence number and timestamp.
	Record(ctx context.Context, plan maze.Plan, labels []maze.Label) (maze.Observation, error)

	// Len returns the number of recorded observations.
	Len(ctx context.Context) (int, error)

	// Range returns observations with start <= Seq < stop in recording order.
	Range(ctx context.Context, start, stop int) ([]maze.Observation, error)

	// Get returns a single observation by id.
	Get(ctx context.Context, id string) (maze.Observation, error)

	// Scan returns the ids of all observations whose id starts with prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// newObservation validates the raw result and builds the immutable record.
func newObservation(seq int, plan maze.Plan, labels []maze.Label) (maze.Observation, error) {
	if err := maze.ValidateResult(plan, labels); err != nil {
		return maze.Observation{}, fmt.Errorf("%w: %v", ErrMalformedObservation, err)
	}

	p := make(maze.Plan, len(plan))
	copy(p, plan)
	l := make([]maze.Label, len(labels))
	copy(l, labels)

	return maze.Observation{
		ID:           uuid.New().String(),
		Seq:          seq,
		Plan:         p,
		Labels:       l,
		RecordedAtMs: time.Now().UnixMilli(),
	}, nil
}

// All loads the complete trace in recording order.
func All(ctx context.Context, s Store) ([]maze.Observation, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	return s.Range(ctx, 0, n)
}
