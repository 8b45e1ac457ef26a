package hypothesis

import (
	"fmt"
	"sort"

	"github.com/dyluth/warren/internal/fingerprint"
	"github.com/dyluth/warren/pkg/maze"
)

// MergeKind says what evidence produced a merge.
type MergeKind int

const (
	// Speculative merges identify a freshly reached position with an existing
	// node because their fingerprints and the rest of the observation agree.
	Speculative MergeKind = iota
	// Forced merges follow from a mark: the position showed another node's
	// overwritten label.
	Forced
	// Deduced merges follow from the room count: every room is known and the
	// node is distinct from all of them but one.
	Deduced
)

func (k MergeKind) String() string {
	switch k {
	case Forced:
		return "forced"
	case Deduced:
		return "deduced"
	}
	return "speculative"
}

type mergeRecord struct {
	id        int
	kind      MergeKind
	seq       int
	a, b      Position  // origins of the surviving side and the absorbed side
	path      maze.Path // door path to b's origin, speculative merges only
	confirmed bool
}

func (b *Builder) newRecord(kind MergeKind, seq int, a, bPos Position, path maze.Path) *mergeRecord {
	rec := &mergeRecord{
		id:        len(b.merges),
		kind:      kind,
		seq:       seq,
		a:         a,
		b:         bPos,
		path:      path,
		confirmed: kind == Forced,
	}
	b.merges = append(b.merges, rec)
	b.j.push(func() { b.merges = b.merges[:rec.id] })
	return rec
}

func (b *Builder) setConfirmed(rec *mergeRecord) {
	rec.confirmed = true
	b.j.push(func() { rec.confirmed = false })
}

// prove records that the classes of x and y are distinct physical rooms.
func (b *Builder) prove(x, y NodeID) bool {
	k := keyOf(b.nodes[x].origin, b.nodes[y].origin)
	if _, ok := b.proofs[k]; ok {
		return false
	}
	b.proofs[k] = struct{}{}
	b.j.push(func() { delete(b.proofs, k) })
	return true
}

// separated reports whether any member pair of the two classes is proven
// distinct or, when withForbidden is set, forbidden from merging.
func (b *Builder) separated(ra, rb NodeID, withForbidden bool) bool {
	for _, ma := range b.nodes[ra].members {
		for _, mb := range b.nodes[rb].members {
			k := keyOf(b.nodes[ma].origin, b.nodes[mb].origin)
			if _, ok := b.forbidden[k]; ok && withForbidden {
				return true
			}
			if _, ok := b.proofs[k]; ok {
				return true
			}
		}
	}
	return false
}

// union merges the classes of x and y and propagates the merge through
// doors known on both sides. On conflict every change is undone and an
// ErrMergeConflict is returned. Forbidden pairs bind every merge but a forced
// one.
func (b *Builder) union(x, y NodeID, rec *mergeRecord) error {
	mark := b.j.len()
	pending := [][2]NodeID{{x, y}}
	for len(pending) > 0 {
		p := pending[0]
		pending = pending[1:]

		ra, rb := b.find(p[0]), b.find(p[1])
		if ra == rb {
			continue
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		if la, lb := b.nodes[ra].label, b.nodes[rb].label; la != lb {
			b.j.rewind(mark)
			return fmt.Errorf("%w: node %d has label %d, node %d has label %d", ErrMergeConflict, ra, la, rb, lb)
		}
		if b.separated(ra, rb, rec.kind != Forced) {
			b.j.rewind(mark)
			return fmt.Errorf("%w: nodes %d and %d are known to be distinct", ErrMergeConflict, ra, rb)
		}

		b.link(ra, rb, rec.id)
		nb := b.nodes[rb]
		for d := maze.Door(0); d < maze.Doors; d++ {
			tb := nb.doors[d]
			if tb == None {
				continue
			}
			if ta := b.nodes[ra].doors[d]; ta == None {
				b.setDoor(ra, d, tb, rec.id)
			} else {
				pending = append(pending, [2]NodeID{ta, tb})
			}
		}
	}
	return nil
}

type ranked struct {
	id     NodeID
	prefix int
	seen   int
}

// candidate picks the room a newly reached position should merge into, or
// None. step is the plan index of the move that reached the position through
// door d of r. A merge happens only once every room is known and exactly one
// room with a compatible fingerprint passes the look-ahead; lookalike rooms
// leave the position unresolved.
func (b *Builder) candidate(obs maze.Observation, step int, r NodeID, d maze.Door) NodeID {
	if b.opts.RoomCount <= 0 || b.index.Len() < b.opts.RoomCount {
		return None
	}
	rel := b.relation()
	if !rel.full(b.opts.RoomCount) {
		return None
	}
	fp := fingerprint.New(obs.Labels[step+1])
	if next := step + 1; next < len(obs.Plan) && !obs.Plan[next].Mark {
		fp = fp.With(obs.Plan[next].Door, obs.Labels[next+1])
	}
	origin := Position{Seq: obs.Seq, Step: step + 1}

	found := None
	for _, raw := range b.index.CandidatesFor(fp) {
		c := NodeID(raw)
		if !rel.room(c) || b.forbids(c, origin) || !b.lookahead(obs, step+1, c, r, d) {
			continue
		}
		if found != None {
			return None
		}
		found = c
	}
	return found
}

func (b *Builder) forbids(c NodeID, origin Position) bool {
	for _, m := range b.nodes[c].members {
		if _, ok := b.forbidden[keyOf(b.nodes[m].origin, origin)]; ok {
			return true
		}
	}
	return false
}

// barred reports whether a rollback forbade merging any member pair of the
// two classes.
func (b *Builder) barred(ra, rb NodeID) bool {
	for _, ma := range b.nodes[ra].members {
		if b.forbids(rb, b.nodes[ma].origin) {
			return true
		}
	}
	return false
}

// rank scores c for the locality order: the longest common prefix between any
// path reaching c and here, then the most recent observation that walked into
// c through known doors.
func (b *Builder) rank(c NodeID, here maze.Path) ranked {
	out := ranked{id: c, seen: -1}
	for _, m := range b.nodes[c].members {
		n := b.nodes[m]
		for _, p := range n.paths {
			if cp := p.path.CommonPrefix(here); cp > out.prefix {
				out.prefix = cp
			}
		}
		if n.lastSeen > out.seen {
			out.seen = n.lastSeen
		}
	}
	return out
}

// byLocality orders candidates by rank, best first, lower ids winning ties.
func byLocality(rs []ranked) {
	sort.Slice(rs, func(i, j int) bool {
		x, y := rs[i], rs[j]
		if x.prefix != y.prefix {
			return x.prefix > y.prefix
		}
		if x.seen != y.seen {
			return x.seen > y.seen
		}
		return x.id < y.id
	})
}

// lookahead checks that the rest of obs, from plan index from onwards, is
// consistent with the position being c. Checking stops at the first mark or
// unknown door. The pending door r.d -> c is taken into account.
func (b *Builder) lookahead(obs maze.Observation, from int, c, r NodeID, d maze.Door) bool {
	pos := c
	for i := from; i < len(obs.Plan); i++ {
		a := obs.Plan[i]
		if a.Mark {
			return true
		}
		var t NodeID
		if pos == b.find(r) && a.Door == d {
			t = c
		} else {
			t = b.nodes[pos].doors[a.Door]
		}
		if t == None {
			return true
		}
		pos = b.find(t)
		if b.nodes[pos].label != obs.Labels[i+1] {
			return false
		}
	}
	return true
}

// culprit picks the merge to undo for a contradiction: merges behind the door
// where the contradiction showed first, then unconfirmed before confirmed,
// merges whose path the failing plan retraces, and finally the most recent.
// Forced merges are never blamed since the same mark would force them again.
func culprit(ce *ContradictionError) *mergeRecord {
	path := ce.plan.Path()
	retraced := func(m *mergeRecord) bool {
		return path.HasPrefix(m.path)
	}
	onStep := func(m *mergeRecord) bool {
		for _, x := range ce.last {
			if x == m {
				return true
			}
		}
		return false
	}
	var best *mergeRecord
	for _, m := range ce.implicated {
		if m.kind == Forced {
			continue
		}
		if best == nil {
			best = m
			continue
		}
		switch {
		case onStep(m) != onStep(best):
			if onStep(m) {
				best = m
			}
		case m.confirmed != best.confirmed:
			if !m.confirmed {
				best = m
			}
		case retraced(m) != retraced(best):
			if retraced(m) {
				best = m
			}
		case m.id > best.id:
			best = m
		}
	}
	return best
}
