package hypothesis

import (
	"fmt"

	"github.com/dyluth/warren/internal/fingerprint"
	"github.com/dyluth/warren/pkg/maze"
)

// NodeID addresses a candidate node in the builder's arena.
type NodeID int

// None marks an unknown door destination or a missing node.
const None NodeID = -1

// Position is where a candidate node was first created: the sequence number
// of the observation and the step within it. Positions are stable across
// replays and identify nodes in merge constraints.
type Position struct {
	Seq  int `json:"seq"`
	Step int `json:"step"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d.%d", p.Seq, p.Step)
}

func (p Position) less(q Position) bool {
	if p.Seq != q.Seq {
		return p.Seq < q.Seq
	}
	return p.Step < q.Step
}

// pairKey is an unordered pair of positions.
type pairKey struct{ a, b Position }

func keyOf(a, b Position) pairKey {
	if b.less(a) {
		a, b = b, a
	}
	return pairKey{a, b}
}

type reachingPath struct {
	path maze.Path
	seq  int
}

// node is one arena entry. Only representatives carry members; doors on a
// merged node are kept so its evidence survives an undo of the merge.
type node struct {
	label    maze.Label
	doors    [maze.Doors]NodeID
	via      [maze.Doors]int // merge record that supplied the door, -1 if observed
	parent   NodeID
	rec      int // merge record that set parent, -1 for representatives
	origin   Position
	paths    []reachingPath
	members  []NodeID
	lastSeen int
}

// journal is the undo log. Every graph mutation pushes its inverse; rewinding
// to an earlier length restores the graph exactly.
type journal struct {
	undo []func()
}

func (j *journal) push(f func()) {
	j.undo = append(j.undo, f)
}

func (j *journal) len() int {
	return len(j.undo)
}

func (j *journal) rewind(n int) {
	for len(j.undo) > n {
		f := j.undo[len(j.undo)-1]
		j.undo = j.undo[:len(j.undo)-1]
		f()
	}
}

func (b *Builder) find(id NodeID) NodeID {
	for b.nodes[id].parent != id {
		id = b.nodes[id].parent
	}
	return id
}

// classMerges appends the merge records that built the class of r.
func (b *Builder) classMerges(r NodeID, recs []*mergeRecord) []*mergeRecord {
	for _, m := range b.nodes[r].members {
		if rec := b.nodes[m].rec; rec >= 0 {
			recs = append(recs, b.merges[rec])
		}
	}
	return recs
}

func (b *Builder) newNode(label maze.Label, origin Position, path maze.Path) NodeID {
	id := NodeID(len(b.nodes))
	n := &node{
		label:    label,
		parent:   id,
		rec:      -1,
		origin:   origin,
		paths:    []reachingPath{{path: path, seq: origin.Seq}},
		members:  []NodeID{id},
		lastSeen: -1,
	}
	for d := range n.doors {
		n.doors[d] = None
		n.via[d] = -1
	}
	b.nodes = append(b.nodes, n)
	b.byOrigin[origin] = id
	b.index.Update(int(id), fingerprint.New(label))
	b.j.push(func() {
		b.nodes = b.nodes[:id]
		delete(b.byOrigin, origin)
		b.index.Remove(int(id))
	})
	return id
}

func (b *Builder) setStart(id NodeID) {
	prev := b.start
	b.start = id
	b.j.push(func() { b.start = prev })
}

func (b *Builder) setDoor(r NodeID, d maze.Door, target NodeID, via int) {
	n := b.nodes[r]
	n.doors[d], n.via[d] = target, via
	b.reindex(r)
	b.j.push(func() {
		n.doors[d], n.via[d] = None, -1
		b.reindex(r)
	})
}

func (b *Builder) link(ra, rb NodeID, rec int) {
	na, nb := b.nodes[ra], b.nodes[rb]
	kept := len(na.members)
	nb.parent, nb.rec = ra, rec
	na.members = append(na.members, nb.members...)
	b.index.Remove(int(rb))
	b.j.push(func() {
		nb.parent, nb.rec = rb, -1
		na.members = na.members[:kept]
		b.reindex(rb)
	})
}

func (b *Builder) seen(r NodeID, seq int) {
	n := b.nodes[r]
	if n.lastSeen == seq {
		return
	}
	prev := n.lastSeen
	n.lastSeen = seq
	b.j.push(func() { n.lastSeen = prev })
}

func (b *Builder) addPath(r NodeID, path maze.Path, seq int) {
	n := b.nodes[r]
	if len(n.paths) >= b.opts.MaxPaths {
		return
	}
	for _, p := range n.paths {
		if p.path.String() == path.String() {
			return
		}
	}
	kept := len(n.paths)
	n.paths = append(n.paths, reachingPath{path: path, seq: seq})
	b.j.push(func() { n.paths = n.paths[:kept] })
}

func (b *Builder) fingerprintOf(r NodeID) fingerprint.Fingerprint {
	n := b.nodes[r]
	fp := fingerprint.New(n.label)
	for d, t := range n.doors {
		if t != None {
			fp = fp.With(maze.Door(d), b.nodes[b.find(t)].label)
		}
	}
	return fp
}

func (b *Builder) reindex(id NodeID) {
	if b.nodes[id].parent == id {
		b.index.Update(int(id), b.fingerprintOf(id))
	} else {
		b.index.Remove(int(id))
	}
}

func (b *Builder) representatives() int {
	n := 0
	for id, nd := range b.nodes {
		if nd.parent == NodeID(id) {
			n++
		}
	}
	return n
}
