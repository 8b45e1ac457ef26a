package hypothesis

import (
	"fmt"

	"github.com/dyluth/warren/pkg/maze"
)

// Stats is a numeric summary of the builder's state.
type Stats struct {
	Nodes           int `json:"nodes"`
	Representatives int `json:"representatives"`
	KnownDoors      int `json:"known_doors"`
	Merges          int `json:"merges"`
	Unconfirmed     int `json:"unconfirmed"`
	Rooms           int `json:"rooms"`
	Proofs          int `json:"proofs"`
	Rollbacks       int `json:"rollbacks"`
	Rejected        int `json:"rejected"`
	Applied         int `json:"applied"`
}

// Stats returns counts over the arena. KnownDoors counts filled door slots on
// every arena node, merged or not.
func (b *Builder) Stats() Stats {
	st := Stats{
		Nodes:     len(b.nodes),
		Merges:    len(b.merges),
		Proofs:    len(b.proofs),
		Rollbacks: b.rollbacks,
		Rejected:  len(b.rejected),
		Applied:   len(b.marks),
	}
	for i, n := range b.nodes {
		if n.parent == NodeID(i) {
			st.Representatives++
		}
		for _, t := range n.doors {
			if t != None {
				st.KnownDoors++
			}
		}
	}
	for _, m := range b.merges {
		if m.kind == Speculative && !m.confirmed {
			st.Unconfirmed++
		}
	}
	st.Rooms = len(b.relation().rooms)
	return st
}

// IsClosed reports whether the start and every node reachable from it are
// complete.
func (b *Builder) IsClosed() bool {
	return b.Snapshot().Closed()
}

// IsConfident reports whether the graph is closed and free of outstanding
// ambiguity, lookalike rooms included. See Snapshot.Confident.
func (b *Builder) IsConfident() bool {
	return b.Snapshot().Confident()
}

// Validate checks the graph's internal consistency: merged nodes agree on
// labels, their known doors lead to the same class, no merged pair is proven
// distinct, and the fingerprint index matches the graph.
func (b *Builder) Validate() error {
	for i, n := range b.nodes {
		id := NodeID(i)
		r := b.find(id)
		rep := b.nodes[r]
		if n.label != rep.label {
			return fmt.Errorf("node %d has label %d but its representative %d has label %d", id, n.label, r, rep.label)
		}
		for d, t := range n.doors {
			if t == None {
				continue
			}
			rt := rep.doors[d]
			if rt == None {
				return fmt.Errorf("node %d knows door %d but its representative %d does not", id, d, r)
			}
			if b.find(t) != b.find(rt) {
				return fmt.Errorf("door %d of node %d leads to %d but representative %d leads to %d",
					d, id, b.find(t), r, b.find(rt))
			}
		}
		if r != id {
			continue
		}

		for x, mx := range n.members {
			for _, my := range n.members[x+1:] {
				if _, ok := b.proofs[keyOf(b.nodes[mx].origin, b.nodes[my].origin)]; ok {
					return fmt.Errorf("nodes %d and %d are merged but proven distinct", mx, my)
				}
			}
		}
		fp, ok := b.index.Get(int(id))
		if !ok {
			return fmt.Errorf("representative %d is missing from the fingerprint index", id)
		}
		if want := b.fingerprintOf(id); fp != want {
			return fmt.Errorf("representative %d indexed as %s, expected %s", id, fp, want)
		}
	}
	if reps := b.representatives(); b.index.Len() != reps {
		return fmt.Errorf("fingerprint index holds %d entries for %d representatives", b.index.Len(), reps)
	}
	if b.start == None && len(b.nodes) > 0 {
		return fmt.Errorf("graph has %d nodes but no start", len(b.nodes))
	}
	return nil
}

// Predict returns the labels the graph expects for plan, following known
// doors and applying marks. ok is false when the plan leaves the known graph.
func (s *Snapshot) Predict(plan maze.Plan) (labels []maze.Label, ok bool) {
	if s.Start == None {
		return nil, false
	}
	overlay := make(map[NodeID]maze.Label)
	label := func(id NodeID) maze.Label {
		if l, ok := overlay[id]; ok {
			return l
		}
		l, _ := s.Label(id)
		return l
	}
	pos := s.Start
	labels = append(labels, label(pos))
	for _, a := range plan {
		if a.Mark {
			overlay[pos] = a.Label
			labels = append(labels, a.Label)
			continue
		}
		next := s.Dest(pos, a.Door)
		if next == None {
			return labels, false
		}
		pos = next
		labels = append(labels, label(pos))
	}
	return labels, true
}
