// Package hypothesis maintains the current best-guess graph of the maze.
//
// Candidate nodes live in an arena addressed by NodeID and are grouped by a
// union-find merge relation; the oldest node of a class is its
// representative. Nodes merge only on evidence: a mark that shows up again, a
// room count that leaves a single possibility, or a fingerprint that matches
// exactly one known room. Every mutation is recorded in an undo journal with
// a mark at the start of each observation, so a contradiction rolls back only
// the merges it implicates and replays the trace suffix from the trace store
// instead of resetting the graph.
//
// The Builder is not safe for concurrent use. Readers that need to work in
// parallel take a Snapshot.
package hypothesis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/dyluth/warren/internal/fingerprint"
	"github.com/dyluth/warren/internal/trace"
	"github.com/dyluth/warren/pkg/maze"
)

// Options tunes the builder.
type Options struct {
	// RoomCount is the known number of rooms, or 0 when unknown.
	RoomCount int
	// ConfirmDepth is how many known moves past a speculative merge a later
	// observation must make for the merge to count as confirmed.
	ConfirmDepth int
	// MaxRollbacks bounds the rollbacks a single Apply may perform.
	MaxRollbacks int
	// MaxPaths caps the reaching paths kept per node.
	MaxPaths int
}

func (o *Options) applyDefaults() {
	if o.ConfirmDepth <= 0 {
		o.ConfirmDepth = 2
	}
	if o.MaxRollbacks <= 0 {
		o.MaxRollbacks = 16
	}
	if o.MaxPaths <= 0 {
		o.MaxPaths = 4
	}
}

// Report summarises what one Apply did, including any replayed observations.
type Report struct {
	Seq               int
	NewNodes          int
	SpeculativeMerges int
	ForcedMerges      int
	DeducedMerges     int
	Conflicts         int
	DistinctProofs    int
	Confirmed         int
	Rollbacks         int
}

func (r *Report) add(o Report) {
	r.NewNodes += o.NewNodes
	r.SpeculativeMerges += o.SpeculativeMerges
	r.ForcedMerges += o.ForcedMerges
	r.DeducedMerges += o.DeducedMerges
	r.Conflicts += o.Conflicts
	r.DistinctProofs += o.DistinctProofs
	r.Confirmed += o.Confirmed
}

type obsMark struct {
	seq     int
	journal int
}

// Builder applies observations to the hypothesis graph.
type Builder struct {
	store trace.Store
	opts  Options

	nodes    []*node
	start    NodeID
	index    *fingerprint.Index
	merges   []*mergeRecord
	byOrigin map[Position]NodeID
	proofs   map[pairKey]struct{}
	j        journal
	marks    []obsMark

	// Survive rollbacks; cleared only by Rebuild.
	forbidden map[pairKey]struct{}
	rejected  map[int]bool
	rollbacks int
}

// New returns an empty builder that replays from store when it has to roll
// back.
func New(store trace.Store, opts Options) *Builder {
	opts.applyDefaults()
	b := &Builder{store: store, opts: opts}
	b.reset()
	return b
}

func (b *Builder) reset() {
	b.nodes = nil
	b.start = None
	b.index = fingerprint.NewIndex()
	b.merges = nil
	b.byOrigin = make(map[Position]NodeID)
	b.proofs = make(map[pairKey]struct{})
	b.j = journal{}
	b.marks = nil
	b.forbidden = make(map[pairKey]struct{})
	b.rejected = make(map[int]bool)
	b.rollbacks = 0
}

// Options returns the effective options.
func (b *Builder) Options() Options {
	return b.opts
}

// Start returns the representative of the start node, or None before the
// first observation.
func (b *Builder) Start() NodeID {
	if b.start == None {
		return None
	}
	return b.find(b.start)
}

// Applied returns the sequence number of the last applied observation, or -1.
func (b *Builder) Applied() int {
	if len(b.marks) == 0 {
		return -1
	}
	return b.marks[len(b.marks)-1].seq
}

// Apply folds one observation into the graph. Observations must be applied in
// increasing sequence order and must already be in the trace store.
//
// A *ContradictionError is returned when the observation disagreed with the
// graph; by then the builder has either rolled back and replayed (Recovered)
// or rejected the observation. Either way the graph is consistent.
func (b *Builder) Apply(ctx context.Context, obs maze.Observation) (Report, error) {
	if err := obs.Validate(); err != nil {
		return Report{Seq: obs.Seq}, fmt.Errorf("%w: %v", trace.ErrMalformedObservation, err)
	}
	if obs.Seq <= b.Applied() || b.rejected[obs.Seq] {
		return Report{Seq: obs.Seq}, fmt.Errorf("observation %d already applied", obs.Seq)
	}

	report, err := b.applyOne(obs)
	if err == nil {
		return report, nil
	}
	var ce *ContradictionError
	if !errors.As(err, &ce) {
		return report, err
	}
	return b.recover(ctx, obs, ce)
}

func (b *Builder) recover(ctx context.Context, obs maze.Observation, first *ContradictionError) (Report, error) {
	total := Report{Seq: obs.Seq}
	ce := first
	for {
		failing := ce.Seq
		from := failing + 1
		if rec := culprit(ce); rec != nil && total.Rollbacks < b.opts.MaxRollbacks {
			log.Printf("[Hypothesis] Contradiction in observation %d step %d: undoing %s merge %s~%s from observation %d",
				failing, ce.Step, rec.kind, rec.a, rec.b, rec.seq)
			b.forbidden[keyOf(rec.a, rec.b)] = struct{}{}
			b.rollbackTo(rec.seq)
			b.rollbacks++
			total.Rollbacks++
			from = rec.seq
		} else {
			log.Printf("[Hypothesis] Rejecting observation %d: %v", failing, ce)
			b.rejected[failing] = true
		}
		if from > obs.Seq {
			break
		}

		next, err := b.replay(ctx, from, obs.Seq, &total)
		if err != nil {
			return total, fmt.Errorf("failed to replay observations %d..%d: %w", from, obs.Seq, err)
		}
		if next == nil {
			break
		}
		ce = next
	}
	first.Recovered = !b.rejected[obs.Seq]
	return total, first
}

func (b *Builder) replay(ctx context.Context, from, to int, total *Report) (*ContradictionError, error) {
	if b.store == nil {
		return nil, errors.New("no trace store to replay from")
	}
	r := trace.NewReplayer(b.store, from)
	for r.Next(ctx) {
		obs := r.Observation()
		if obs.Seq > to {
			break
		}
		if b.rejected[obs.Seq] {
			continue
		}
		report, err := b.applyOne(obs)
		if err != nil {
			var ce *ContradictionError
			if errors.As(err, &ce) {
				return ce, nil
			}
			return nil, err
		}
		total.add(report)
	}
	return nil, r.Err()
}

// Rebuild discards all state and replays the whole trace store. Two rebuilds
// of the same trace produce identical graphs.
func (b *Builder) Rebuild(ctx context.Context) error {
	b.reset()
	r := trace.NewReplayer(b.store, 0)
	for r.Next(ctx) {
		obs := r.Observation()
		if obs.Seq <= b.Applied() || b.rejected[obs.Seq] {
			continue
		}
		if _, err := b.Apply(ctx, obs); err != nil && !IsContradiction(err) {
			return fmt.Errorf("failed to apply observation %d: %w", obs.Seq, err)
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	return nil
}

func (b *Builder) applyOne(obs maze.Observation) (Report, error) {
	mark := b.j.len()
	report, err := b.walk(obs)
	if err != nil {
		b.j.rewind(mark)
		return Report{Seq: obs.Seq}, err
	}
	b.marks = append(b.marks, obsMark{seq: obs.Seq, journal: mark})
	return report, nil
}

// rollbackTo undoes every observation with sequence number >= seq.
func (b *Builder) rollbackTo(seq int) {
	i := sort.Search(len(b.marks), func(i int) bool { return b.marks[i].seq >= seq })
	if i == len(b.marks) {
		return
	}
	b.j.rewind(b.marks[i].journal)
	b.marks = b.marks[:i]
}

type overlayEntry struct {
	node  NodeID
	label maze.Label
}

// walker carries the per-observation state of one walk.
type walker struct {
	b          *Builder
	obs        maze.Observation
	report     Report
	overlay    []overlayEntry
	implicated []*mergeRecord
}

func (b *Builder) walk(obs maze.Observation) (Report, error) {
	w := &walker{b: b, obs: obs, report: Report{Seq: obs.Seq}}
	if b.start == None {
		b.setStart(b.newNode(obs.Labels[0], Position{Seq: obs.Seq}, maze.Path{}))
		w.report.NewNodes++
	}
	pos := b.find(b.start)
	w.implicated = b.classMerges(pos, nil)
	if l := b.nodes[pos].label; obs.Labels[0] != l {
		return w.report, w.contradiction(0, pos, l, nil)
	}
	b.seen(pos, obs.Seq)

	path := maze.Path{}
	marked := false
	known := make([]bool, obs.Plan.Moves())
	move := -1
	for i, a := range obs.Plan {
		if a.Mark {
			w.overlay = append(w.overlay, overlayEntry{node: pos, label: a.Label})
			marked = true
			continue
		}

		move++
		t := b.nodes[pos].doors[a.Door]
		if t == None {
			// Past a mark the labels no longer identify new rooms.
			if marked {
				break
			}
			pos = w.extend(i, pos, a.Door, path.Extend(a.Door))
		} else {
			known[move] = true
			recs := b.classMerges(b.find(t), nil)
			if via := b.nodes[pos].via[a.Door]; via >= 0 {
				recs = append(recs, b.merges[via])
			}
			w.implicated = append(w.implicated, recs...)

			next, err := w.arrive(i+1, b.find(t), recs)
			if err != nil {
				return w.report, err
			}
			pos = next
			if !marked {
				b.seen(pos, obs.Seq)
			}
		}

		if !marked {
			path = path.Extend(a.Door)
			b.addPath(pos, path, obs.Seq)
		}
	}

	b.confirm(obs, known, &w.report)
	b.settle(obs.Seq, &w.report)
	return w.report, nil
}

// extend handles the move from r through unknown door d (plan index i): a new
// node is created and, when a single room fits, speculatively merged into it.
func (w *walker) extend(i int, r NodeID, d maze.Door, here maze.Path) NodeID {
	b := w.b
	origin := Position{Seq: w.obs.Seq, Step: i + 1}
	c := b.candidate(w.obs, i, r, d)

	n := b.newNode(w.obs.Labels[i+1], origin, here)
	b.setDoor(r, d, n, -1)
	w.report.NewNodes++
	if c == None {
		return n
	}

	mark := b.j.len()
	rec := b.newRecord(Speculative, w.obs.Seq, b.nodes[c].origin, origin, here)
	if err := b.union(c, n, rec); err != nil {
		b.j.rewind(mark)
		w.report.Conflicts++
		log.Printf("[Hypothesis] Refused speculative merge in observation %d: %v", w.obs.Seq, err)
		return n
	}
	w.report.SpeculativeMerges++
	w.implicated = append(w.implicated, rec)
	return b.find(n)
}

// arrive checks the label observed at step on reaching dest through a known
// door. recs are the merges the door depended on.
func (w *walker) arrive(step int, dest NodeID, recs []*mergeRecord) (NodeID, error) {
	b := w.b
	observed := w.obs.Labels[step]

	if l, ok := w.overlayOf(dest); ok {
		if observed == l {
			return dest, nil
		}
		// A later mark through another node of the same room explains it.
		for _, e := range w.marked() {
			if e.node != dest && b.nodes[e.node].label == b.nodes[dest].label && e.label == observed {
				return dest, nil
			}
		}
		return dest, w.contradiction(step, dest, l, recs)
	}

	own := b.nodes[dest].label
	if observed == own {
		marks := w.marked()
		for _, e := range marks {
			if e.label == own && b.nodes[e.node].label == own {
				// A room restored to its own label tells nothing apart.
				return dest, nil
			}
		}
		for _, e := range marks {
			if e.node == dest || b.nodes[e.node].label != own || e.label == own {
				continue
			}
			if b.prove(e.node, dest) {
				w.report.DistinctProofs++
			}
		}
		return dest, nil
	}

	var matches []NodeID
	for _, e := range w.marked() {
		if e.node != dest && b.nodes[e.node].label == own && e.label == observed {
			matches = append(matches, e.node)
		}
	}
	switch len(matches) {
	case 0:
		return dest, w.contradiction(step, dest, own, recs)
	case 1:
	default:
		// dest is one of the marked rooms but the marks do not say which.
		return dest, nil
	}

	m := matches[0]
	mark := b.j.len()
	rec := b.newRecord(Forced, w.obs.Seq, b.nodes[m].origin, b.nodes[dest].origin, nil)
	if err := b.union(m, dest, rec); err != nil {
		b.j.rewind(mark)
		w.report.Conflicts++
		log.Printf("[Hypothesis] Refused forced merge in observation %d: %v", w.obs.Seq, err)
		return dest, w.contradiction(step, dest, own, recs)
	}
	w.report.ForcedMerges++
	w.implicated = append(w.implicated, rec)
	return b.find(dest), nil
}

// marked resolves the overlay to current representatives, latest mark wins.
func (w *walker) marked() []overlayEntry {
	var out []overlayEntry
	for _, e := range w.overlay {
		r := w.b.find(e.node)
		found := false
		for k := range out {
			if out[k].node == r {
				out[k].label = e.label
				found = true
			}
		}
		if !found {
			out = append(out, overlayEntry{node: r, label: e.label})
		}
	}
	return out
}

func (w *walker) overlayOf(r NodeID) (maze.Label, bool) {
	for _, e := range w.marked() {
		if e.node == r {
			return e.label, true
		}
	}
	return 0, false
}

func (w *walker) contradiction(step int, n NodeID, expected maze.Label, last []*mergeRecord) *ContradictionError {
	seen := make(map[*mergeRecord]bool)
	var recs []*mergeRecord
	for _, m := range w.implicated {
		if !seen[m] {
			seen[m] = true
			recs = append(recs, m)
		}
	}
	return &ContradictionError{
		Seq:        w.obs.Seq,
		Step:       step,
		Node:       n,
		Expected:   expected,
		Observed:   w.obs.Labels[step],
		plan:       w.obs.Plan,
		implicated: recs,
		last:       last,
	}
}

// confirm marks speculative merges whose origin path obs retraced and then
// followed for ConfirmDepth known moves. known is indexed by move, marks
// excluded.
func (b *Builder) confirm(obs maze.Observation, known []bool, report *Report) {
	path := obs.Plan.Path()
	depth := b.opts.ConfirmDepth
	for _, m := range b.merges {
		if m.confirmed || m.kind != Speculative || m.seq >= obs.Seq {
			continue
		}
		k := len(m.path)
		if !path.HasPrefix(m.path) || len(path) < k+depth {
			continue
		}
		ok := true
		for i := k; i < k+depth; i++ {
			if !known[i] {
				ok = false
				break
			}
		}
		if ok {
			b.setConfirmed(m)
			report.Confirmed++
		}
	}
}

// settle merges what the room count pins down. Once RoomCount pairwise
// distinct rooms are known, a node that is distinct from all of them but one
// is that room. Each merge can expose more, so settle repeats until nothing
// changes.
func (b *Builder) settle(seq int, report *Report) {
	if b.opts.RoomCount <= 0 {
		return
	}
	for {
		rel := b.relation()
		if !rel.full(b.opts.RoomCount) {
			return
		}
		merged := false
		for _, x := range rel.reps {
			var into []NodeID
			for _, c := range rel.candidates(x) {
				if !b.barred(c, x) {
					into = append(into, c)
				}
			}
			if len(into) != 1 {
				continue
			}
			mark := b.j.len()
			rec := b.newRecord(Deduced, seq, b.nodes[into[0]].origin, b.nodes[x].origin, nil)
			if err := b.union(into[0], x, rec); err != nil {
				b.j.rewind(mark)
				report.Conflicts++
				log.Printf("[Hypothesis] Refused deduced merge in observation %d: %v", seq, err)
				continue
			}
			report.DeducedMerges++
			merged = true
			break
		}
		if !merged {
			return
		}
	}
}
