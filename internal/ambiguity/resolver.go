// Package ambiguity finds the places where the hypothesis graph could still
// be wrong and synthesizes plans whose answers would settle them.
//
// A node is ambiguous while it is not one of the snapshot's rooms: it could
// still be any room it is not known to differ from. For each such pairing
// the resolver prefers a mark plan, which settles it in one query, and falls
// back to exploring the unknown door where the two might turn out to differ.
//
// The resolver works on an immutable hypothesis.Snapshot, so per-ambiguity
// synthesis runs in parallel.
package ambiguity

import (
	"context"
	"fmt"
	"sort"

	"github.com/dyluth/warren/internal/hypothesis"
	"github.com/dyluth/warren/pkg/maze"
	"golang.org/x/sync/errgroup"
)

// Kind says how a discriminator settles its pair.
type Kind int

const (
	// Frontier plans explore the unknown door where a pair might turn out to
	// differ.
	Frontier Kind = iota
	// Lookalike plans mark a room and walk to the node that might be it. The
	// label seen there either merges the two or proves them distinct.
	Lookalike
)

var kindNames = map[Kind]string{
	Frontier:  "frontier",
	Lookalike: "lookalike",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// weight is the base score of each kind.
var weight = map[Kind]int{
	Frontier:  1,
	Lookalike: 3,
}

// Discriminator is a plan expected to shrink the ambiguity of the graph.
type Discriminator struct {
	Kind Kind
	Plan maze.Plan
	// Nodes are the room and the node that might be it, in that order.
	Nodes []hypothesis.NodeID
	Score int
}

func (d Discriminator) String() string {
	return fmt.Sprintf("%s %v score=%d plan=%q", d.Kind, d.Nodes, d.Score, d.Plan.String())
}

// Options tunes the resolver.
type Options struct {
	// Workers bounds parallel synthesis. Default 4.
	Workers int
}

// Resolver synthesizes discriminators.
type Resolver struct {
	opts Options
}

// New returns a resolver.
func New(opts Options) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Resolver{opts: opts}
}

type task struct {
	room, node hypothesis.NodeID
}

// Resolve lists the outstanding ambiguities of s and returns one
// discriminator per distinct plan, best first: higher score, then fewer
// actions, then plan text.
func (r *Resolver) Resolve(ctx context.Context, s *hypothesis.Snapshot) ([]Discriminator, error) {
	if s.Start == hypothesis.None {
		return nil, nil
	}
	paths := s.ShortestPaths()
	tasks := r.tasks(s, paths)
	if len(tasks) == 0 {
		return nil, nil
	}

	found := make([]*Discriminator, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found[i] = synthesize(s, paths, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to synthesize discriminators: %w", err)
	}

	var out []Discriminator
	for _, d := range found {
		if d != nil {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if len(out[i].Plan) != len(out[j].Plan) {
			return len(out[i].Plan) < len(out[j].Plan)
		}
		return out[i].Plan.String() < out[j].Plan.String()
	})

	seen := make(map[string]bool)
	unique := out[:0]
	for _, d := range out {
		key := d.Plan.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, d)
	}
	return unique, nil
}

// tasks pairs every reachable node that is not a room with each room it
// could still be.
func (r *Resolver) tasks(s *hypothesis.Snapshot, paths map[hypothesis.NodeID]maze.Path) []task {
	var tasks []task
	for _, id := range s.Reachable() {
		if s.IsRoom(id) {
			continue
		}
		for _, c := range s.Candidates(id) {
			if _, ok := paths[c]; ok {
				tasks = append(tasks, task{room: c, node: id})
			}
		}
	}
	return tasks
}

func synthesize(s *hypothesis.Snapshot, paths map[hypothesis.NodeID]maze.Path, t task) *Discriminator {
	d := &Discriminator{Kind: Lookalike, Nodes: []hypothesis.NodeID{t.room, t.node}}
	plan, ok := markPlan(s, paths, t.room, t.node)
	if !ok {
		plan, ok = markPlan(s, paths, t.node, t.room)
	}
	if !ok {
		sep := s.Separate(t.node, t.room)
		if sep.Kind != hypothesis.Frontier {
			return nil
		}
		d.Kind = Frontier
		if plan, ok = frontierPlan(paths, sep); !ok {
			return nil
		}
	}
	d.Plan = plan

	d.Score = weight[d.Kind]
	if _, known := s.Predict(d.Plan); !known {
		d.Score++
	}
	return d
}

// markPlan reaches x, overwrites its label with one it does not have and walks
// to y over known doors, directly or back through the start. The label seen
// at y tells whether x and y are the same room.
func markPlan(s *hypothesis.Snapshot, paths map[hypothesis.NodeID]maze.Path, x, y hypothesis.NodeID) (maze.Plan, bool) {
	reach, ok := paths[x]
	if !ok {
		return nil, false
	}
	route, ok := s.PathBetween(x, y)
	if !ok {
		back, found := s.PathBetween(x, s.Start)
		rest, known := paths[y]
		if !found || !known {
			return nil, false
		}
		route = back.Extend(rest...)
	}
	label, _ := s.Label(x)
	plan := append(reach.Plan(), maze.MarkWith((label+1)%maze.Labels))
	return plan.Then(route.Plan()), true
}

// frontierPlan walks to the side of a pair whose separating search stopped
// at an unknown door and goes through it.
func frontierPlan(paths map[hypothesis.NodeID]maze.Path, sep hypothesis.Separation) (maze.Plan, bool) {
	reach, ok := paths[sep.Side]
	if !ok {
		return nil, false
	}
	return reach.Extend(sep.Suffix...).Plan(), true
}

// Valid reports whether d still addresses an open ambiguity of s. The
// planner drops discriminators computed against an older snapshot once their
// pair has been merged or told apart.
func (d Discriminator) Valid(s *hypothesis.Snapshot) bool {
	if len(d.Nodes) != 2 {
		return false
	}
	reach := s.ShortestPaths()
	for _, id := range d.Nodes {
		if _, ok := reach[id]; !ok {
			return false
		}
	}
	return !s.Distinct(d.Nodes[0], d.Nodes[1])
}
