package trace

import (
	"context"

	"github.com/dyluth/warren/pkg/maze"
)

// DefaultPageSize is the number of observations a Replayer fetches per page.
const DefaultPageSize = 256

// Replayer is a lazy, restartable pass over a trace in recording order.
//
//	r := trace.NewReplayer(store, 0)
//	for r.Next(ctx) {
//		apply(r.Observation())
//	}
//	if err := r.Err(); err != nil { ... }
type Replayer struct {
	store    Store
	from     int
	pageSize int

	next int
	page []maze.Observation
	pos  int
	cur  maze.Observation
	err  error
}

// NewReplayer returns a replayer starting at sequence number from.
func NewReplayer(store Store, from int) *Replayer {
	return &Replayer{store: store, from: from, next: from, pageSize: DefaultPageSize}
}

// Next advances to the next observation. It returns false at the end of the
// trace or on error; check Err afterwards. Observations recorded while
// replaying are picked up by later pages.
func (r *Replayer) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if r.pos >= len(r.page) {
		page, err := r.store.Range(ctx, r.next, r.next+r.pageSize)
		if err != nil {
			r.err = err
			return false
		}
		if len(page) == 0 {
			return false
		}
		r.page = page
		r.pos = 0
		r.next += len(page)
	}
	r.cur = r.page[r.pos]
	r.pos++
	return true
}

// Observation returns the current observation.
func (r *Replayer) Observation() maze.Observation {
	return r.cur
}

// Err returns the first error encountered.
func (r *Replayer) Err() error {
	return r.err
}

// Reset rewinds the replayer to its starting point.
func (r *Replayer) Reset() {
	r.next = r.from
	r.page = nil
	r.pos = 0
	r.cur = maze.Observation{}
	r.err = nil
}
