package hypothesis

import (
	"errors"
	"fmt"

	"github.com/dyluth/warren/pkg/maze"
)

var (
	// ErrLabelContradiction is matched by every *ContradictionError.
	ErrLabelContradiction = errors.New("hypothesis: label contradiction")

	// ErrMergeConflict reports a refused merge. It never leaves the graph
	// modified.
	ErrMergeConflict = errors.New("hypothesis: merge conflict")
)

// ContradictionError describes an observed label that disagrees with the
// hypothesis. Recovered is true when a rollback of speculative merges made the
// observation consistent; otherwise the observation was rejected and the
// graph is exactly as it was before Apply.
type ContradictionError struct {
	Seq       int
	Step      int
	Node      NodeID
	Expected  maze.Label
	Observed  maze.Label
	Recovered bool

	plan       maze.Plan
	implicated []*mergeRecord
	last       []*mergeRecord
}

func (e *ContradictionError) Error() string {
	outcome := "observation rejected"
	if e.Recovered {
		outcome = "recovered by rollback"
	}
	return fmt.Sprintf("label contradiction in observation %d at step %d: node %d expected label %d, observed %d (%s)",
		e.Seq, e.Step, e.Node, e.Expected, e.Observed, outcome)
}

// Unwrap lets errors.Is match ErrLabelContradiction.
func (e *ContradictionError) Unwrap() error {
	return ErrLabelContradiction
}

// IsContradiction reports whether err is a label contradiction.
func IsContradiction(err error) bool {
	return errors.Is(err, ErrLabelContradiction)
}
