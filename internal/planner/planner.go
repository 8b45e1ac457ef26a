// Package planner chooses the next batch of exploration plans from the
// current hypothesis and the resolver's discriminators.
package planner

import (
	"log"
	"math/rand"
	"sort"

	"github.com/dyluth/warren/internal/ambiguity"
	"github.com/dyluth/warren/internal/hypothesis"
	"github.com/dyluth/warren/pkg/maze"
)

// Options tunes batch construction.
type Options struct {
	// MaxPlanLength caps the moves of every plan. It is further capped at the
	// contest limit of 18 moves per room when the room count is known.
	MaxPlanLength int
	// MaxPlansPerBatch caps the plans per batch. Default 16.
	MaxPlansPerBatch int
	// TailLength is the number of doors taken past an unknown door. Default 2.
	TailLength int
	// RandomWalks is the number of seeded random walks added to every batch
	// that has room. Default 1.
	RandomWalks int
	// Seed seeds the random walks.
	Seed int64
}

// Graph is what Done needs to know about the hypothesis.
type Graph interface {
	IsClosed() bool
	IsConfident() bool
}

// Done reports whether exploration can stop.
func Done(g Graph) bool {
	return g.IsClosed() && g.IsConfident()
}

// Planner builds batches. It is not safe for concurrent use.
type Planner struct {
	opts  Options
	rng   *rand.Rand
	batch int
}

// New returns a planner.
func New(opts Options) *Planner {
	if opts.MaxPlansPerBatch <= 0 {
		opts.MaxPlansPerBatch = 16
	}
	if opts.TailLength <= 0 {
		opts.TailLength = 2
	}
	if opts.RandomWalks <= 0 {
		opts.RandomWalks = 1
	}
	return &Planner{opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

// Next returns the next batch. Priority: unknown doors on the rooms closest
// to the start, then discriminators still valid for s, then walks along
// unconfirmed merges and random walks over known doors. Plans are
// deduplicated and truncated.
func (p *Planner) Next(s *hypothesis.Snapshot, ds []ambiguity.Discriminator) []maze.Plan {
	p.batch++
	b := newBatch(p.limit(s), p.opts.MaxPlansPerBatch)

	if s.Start == hypothesis.None {
		b.add(maze.Plan{})
		for d := maze.Door(0); d < maze.Doors; d++ {
			b.add(maze.PlanOf(d))
		}
		log.Printf("[Planner] Batch %d: %d initial plans", p.batch, len(b.plans))
		return b.plans
	}

	unknown := p.unknownDoors(s, b)
	discriminating := 0
	for _, d := range ds {
		if d.Valid(s) && b.add(d.Plan) {
			discriminating++
		}
	}
	frontier := p.frontier(s, b)

	log.Printf("[Planner] Batch %d: %d unknown-door, %d discriminating, %d frontier plans",
		p.batch, unknown, discriminating, frontier)
	return b.plans
}

func (p *Planner) limit(s *hypothesis.Snapshot) int {
	limit := p.opts.MaxPlanLength
	if s.RoomCount > 0 {
		contest := maze.MaxMovesPerRoom * s.RoomCount
		if limit <= 0 || limit > contest {
			limit = contest
		}
	}
	if limit <= 0 {
		limit = maze.MaxMovesPerRoom
	}
	return limit
}

// unknownDoors adds, for every reachable room by distance from the start,
// one plan per unknown door followed by a short tail. Nodes that might still be
// another room are left to the discriminators.
func (p *Planner) unknownDoors(s *hypothesis.Snapshot, b *batch) int {
	paths := s.ShortestPaths()
	var ids []hypothesis.NodeID
	for _, id := range s.Rooms {
		if _, ok := paths[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return len(paths[ids[i]]) < len(paths[ids[j]])
	})

	added := 0
	for _, id := range ids {
		for d := maze.Door(0); d < maze.Doors; d++ {
			if s.Dest(id, d) != hypothesis.None {
				continue
			}
			plan := paths[id].Extend(d).Extend(p.tail(d)...).Plan()
			if b.add(plan) {
				added++
			}
		}
	}
	return added
}

// tail is the door sequence taken past unknown door d: the following doors
// in rotation.
func (p *Planner) tail(d maze.Door) maze.Path {
	out := make(maze.Path, p.opts.TailLength)
	for i := range out {
		out[i] = (d + maze.Door(i) + 1) % maze.Doors
	}
	return out
}

// frontier adds walks that retrace unconfirmed speculative merges and go on
// at random, then plain random walks from the start.
func (p *Planner) frontier(s *hypothesis.Snapshot, b *batch) int {
	added := 0
	for _, m := range s.Unconfirmed() {
		if b.full() {
			return added
		}
		if b.add(m.Path.Extend(p.walk(s, m.Into, b.limit-len(m.Path))...).Plan()) {
			added++
		}
	}
	for i := 0; i < p.opts.RandomWalks; i++ {
		if b.add(p.walk(s, s.Start, b.limit).Plan()) {
			added++
		}
	}
	return added
}

// walk takes up to n random doors from node from. It ends right after the
// first unknown door so that one walk adds at most one new node.
func (p *Planner) walk(s *hypothesis.Snapshot, from hypothesis.NodeID, n int) maze.Path {
	var out maze.Path
	pos := from
	for len(out) < n {
		d := maze.Door(p.rng.Intn(maze.Doors))
		out = append(out, d)
		if pos = s.Dest(pos, d); pos == hypothesis.None {
			break
		}
	}
	return out
}

// batch collects unique, truncated plans up to a size cap.
type batch struct {
	limit int
	size  int
	plans []maze.Plan
	seen  map[string]bool
}

func newBatch(limit, size int) *batch {
	return &batch{limit: limit, size: size, seen: make(map[string]bool)}
}

func (b *batch) full() bool {
	return len(b.plans) >= b.size
}

func (b *batch) add(plan maze.Plan) bool {
	if b.full() {
		return false
	}
	plan = plan.Truncate(b.limit)
	key := plan.String()
	if b.seen[key] {
		return false
	}
	b.seen[key] = true
	b.plans = append(b.plans, plan)
	return true
}
