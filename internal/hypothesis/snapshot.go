package hypothesis

import (
	"sort"

	"github.com/dyluth/warren/internal/fingerprint"
	"github.com/dyluth/warren/pkg/maze"
)

// Node is a representative node as seen in a Snapshot. Doors point at
// representatives.
type Node struct {
	ID          NodeID
	Label       maze.Label
	Doors       [maze.Doors]NodeID
	Fingerprint fingerprint.Fingerprint
	Origin      Position
	Paths       []maze.Path
}

// Complete reports whether every door of the node is known.
func (n Node) Complete() bool {
	for _, t := range n.Doors {
		if t == None {
			return false
		}
	}
	return true
}

// Merge is a merge record as seen in a Snapshot.
type Merge struct {
	ID        int
	Kind      MergeKind
	Seq       int
	Into      NodeID    // representative now holding the merged position
	Origin    Position  // position that was merged away
	Path      maze.Path // door path to Origin, speculative merges only
	Confirmed bool
}

// Snapshot is an immutable view of the hypothesis graph. It is safe to read
// from several goroutines.
type Snapshot struct {
	Start     NodeID
	RoomCount int
	Nodes     []Node
	Merges    []Merge
	Proofs    [][2]NodeID // pairs of representatives proven distinct by a mark
	// Rooms are pairwise distinct representatives, one per physical room
	// identified so far, ascending.
	Rooms []NodeID
	// Lookalikes groups representatives whose complete fingerprints are
	// identical.
	Lookalikes [][]NodeID

	index      map[NodeID]int
	proven     map[[2]NodeID]bool
	distinct   map[[2]NodeID]bool
	rooms      map[NodeID]bool
	candidates map[NodeID][]NodeID
}

// Snapshot captures the current graph. Identical traces yield identical
// snapshots.
func (b *Builder) Snapshot() *Snapshot {
	s := &Snapshot{
		Start:     b.Start(),
		RoomCount: b.opts.RoomCount,
		index:      make(map[NodeID]int),
		proven:     make(map[[2]NodeID]bool),
		distinct:   make(map[[2]NodeID]bool),
		rooms:      make(map[NodeID]bool),
		candidates: make(map[NodeID][]NodeID),
	}

	for i, n := range b.nodes {
		id := NodeID(i)
		if n.parent != id {
			continue
		}
		sn := Node{
			ID:          id,
			Label:       n.label,
			Fingerprint: b.fingerprintOf(id),
			Origin:      n.origin,
			Paths:       b.pathsOf(id),
		}
		for d, t := range n.doors {
			sn.Doors[d] = None
			if t != None {
				sn.Doors[d] = b.find(t)
			}
		}
		s.index[id] = len(s.Nodes)
		s.Nodes = append(s.Nodes, sn)
	}

	for _, m := range b.merges {
		sm := Merge{
			ID:        m.id,
			Kind:      m.kind,
			Seq:       m.seq,
			Into:      b.resolve(m.a),
			Origin:    m.b,
			Path:      append(maze.Path(nil), m.path...),
			Confirmed: m.confirmed,
		}
		s.Merges = append(s.Merges, sm)
	}

	for k := range b.proofs {
		x, y := b.resolve(k.a), b.resolve(k.b)
		if x == None || y == None || x == y {
			continue
		}
		if y < x {
			x, y = y, x
		}
		pair := [2]NodeID{x, y}
		if !s.proven[pair] {
			s.proven[pair] = true
			s.Proofs = append(s.Proofs, pair)
		}
	}
	sort.Slice(s.Proofs, func(i, j int) bool {
		if s.Proofs[i][0] != s.Proofs[j][0] {
			return s.Proofs[i][0] < s.Proofs[j][0]
		}
		return s.Proofs[i][1] < s.Proofs[j][1]
	})

	rel := b.relation()
	for i, x := range rel.reps {
		for j := i + 1; j < len(rel.reps); j++ {
			if rel.labels[i] == rel.labels[j] && rel.distinct[i][j] {
				s.distinct[[2]NodeID{x, rel.reps[j]}] = true
			}
		}
	}
	s.Rooms = append(s.Rooms, rel.rooms...)
	for _, r := range rel.rooms {
		s.rooms[r] = true
	}
	for _, x := range rel.reps {
		cands := rel.candidates(x)
		if len(cands) == 0 {
			continue
		}
		var here maze.Path
		if paths := b.pathsOf(x); len(paths) > 0 {
			here = paths[0]
		}
		rs := make([]ranked, 0, len(cands))
		for _, c := range cands {
			rs = append(rs, b.rank(c, here))
		}
		byLocality(rs)
		for _, r := range rs {
			s.candidates[x] = append(s.candidates[x], r.id)
		}
	}

	for _, group := range b.index.Duplicates() {
		ids := make([]NodeID, len(group))
		for i, id := range group {
			ids[i] = NodeID(id)
		}
		s.Lookalikes = append(s.Lookalikes, ids)
	}
	return s
}

func (b *Builder) resolve(p Position) NodeID {
	id, ok := b.byOrigin[p]
	if !ok {
		return None
	}
	return b.find(id)
}

// pathsOf returns the shortest reaching paths over the class of r.
func (b *Builder) pathsOf(r NodeID) []maze.Path {
	seen := make(map[string]bool)
	var paths []maze.Path
	for _, m := range b.nodes[r].members {
		for _, p := range b.nodes[m].paths {
			key := p.path.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			paths = append(paths, append(maze.Path(nil), p.path...))
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return paths[i].String() < paths[j].String()
	})
	if len(paths) > b.opts.MaxPaths {
		paths = paths[:b.opts.MaxPaths]
	}
	return paths
}

// Node returns the representative with the given id.
func (s *Snapshot) Node(id NodeID) (Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// Label returns the label of a representative. ok is false when id is not a
// representative in s.
func (s *Snapshot) Label(id NodeID) (maze.Label, bool) {
	i, ok := s.index[id]
	if !ok {
		return 0, false
	}
	return s.Nodes[i].Label, true
}

// sameLabel reports whether a and b are both representatives with one label.
func (s *Snapshot) sameLabel(a, b NodeID) bool {
	la, ok := s.Label(a)
	lb, ok2 := s.Label(b)
	return ok && ok2 && la == lb
}

// Dest returns the representative behind door d of id, or None.
func (s *Snapshot) Dest(id NodeID, d maze.Door) NodeID {
	i, ok := s.index[id]
	if !ok {
		return None
	}
	return s.Nodes[i].Doors[d]
}

// Proven reports whether a mark proved a and b distinct.
func (s *Snapshot) Proven(a, b NodeID) bool {
	if b < a {
		a, b = b, a
	}
	return s.proven[[2]NodeID{a, b}]
}

// Distinct reports whether a and b are known to be different rooms: their
// labels differ, a mark proved it, or some door sequence known on both leads
// to different labels.
func (s *Snapshot) Distinct(a, b NodeID) bool {
	if a == b {
		return false
	}
	la, ok := s.Label(a)
	lb, ok2 := s.Label(b)
	if !ok || !ok2 {
		return false
	}
	if la != lb {
		return true
	}
	if b < a {
		a, b = b, a
	}
	return s.distinct[[2]NodeID{a, b}]
}

// IsRoom reports whether id is one of Rooms.
func (s *Snapshot) IsRoom(id NodeID) bool {
	return s.rooms[id]
}

// Candidates returns the rooms an unresolved representative could still be,
// most local first. It is empty for rooms.
func (s *Snapshot) Candidates(id NodeID) []NodeID {
	return s.candidates[id]
}

// ShortestPaths returns, for every representative reachable from the start,
// the shortest door path to it. Lower doors win ties.
func (s *Snapshot) ShortestPaths() map[NodeID]maze.Path {
	paths := make(map[NodeID]maze.Path)
	if s.Start == None {
		return paths
	}
	paths[s.Start] = maze.Path{}
	queue := []NodeID{s.Start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for d := maze.Door(0); d < maze.Doors; d++ {
			v := s.Dest(u, d)
			if v == None {
				continue
			}
			if _, ok := paths[v]; ok {
				continue
			}
			paths[v] = paths[u].Extend(d)
			queue = append(queue, v)
		}
	}
	return paths
}

// Reachable returns the representatives reachable from the start, ascending.
func (s *Snapshot) Reachable() []NodeID {
	paths := s.ShortestPaths()
	ids := make([]NodeID, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PathBetween returns the shortest known door path from one representative to
// another.
func (s *Snapshot) PathBetween(from, to NodeID) (maze.Path, bool) {
	if from == to {
		return maze.Path{}, true
	}
	prev := map[NodeID]maze.Path{from: {}}
	queue := []NodeID{from}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for d := maze.Door(0); d < maze.Doors; d++ {
			v := s.Dest(u, d)
			if v == None {
				continue
			}
			if _, ok := prev[v]; ok {
				continue
			}
			prev[v] = prev[u].Extend(d)
			if v == to {
				return prev[v], true
			}
			queue = append(queue, v)
		}
	}
	return nil, false
}

// Closed reports whether the start and every node reachable from it have all
// six doors known.
func (s *Snapshot) Closed() bool {
	if s.Start == None {
		return false
	}
	for _, id := range s.Reachable() {
		n, _ := s.Node(id)
		if !n.Complete() {
			return false
		}
	}
	return true
}

// UnknownDoors counts unknown doors on reachable representatives.
func (s *Snapshot) UnknownDoors() int {
	count := 0
	for _, id := range s.Reachable() {
		n, _ := s.Node(id)
		for _, t := range n.Doors {
			if t == None {
				count++
			}
		}
	}
	return count
}

// SeparationKind classifies how two nodes compare within the graph.
type SeparationKind int

const (
	// Bisimilar nodes produce the same labels on every known door sequence
	// and no unknown door is reachable from the pair.
	Bisimilar SeparationKind = iota
	// Separated nodes produce different labels on Suffix.
	Separated
	// Frontier means no separating suffix is known yet, but Suffix from Side
	// ends at an unknown door that could provide one.
	Frontier
)

// Separation is the result of comparing two nodes.
type Separation struct {
	Kind   SeparationKind
	Suffix maze.Path
	Side   NodeID
}

// Separate searches the product graph of a and b breadth-first for the
// shortest door sequence whose labels differ.
func (s *Snapshot) Separate(a, b NodeID) Separation {
	if !s.sameLabel(a, b) {
		return Separation{Kind: Separated, Suffix: maze.Path{}}
	}
	type pair struct{ x, y NodeID }
	type step struct {
		from pair
		door maze.Door
	}
	origin := pair{a, b}
	prev := map[pair]step{}
	trail := func(p pair) maze.Path {
		var rev maze.Path
		for p != origin {
			st := prev[p]
			rev = append(rev, st.door)
			p = st.from
		}
		out := make(maze.Path, len(rev))
		for i, d := range rev {
			out[len(rev)-1-i] = d
		}
		return out
	}

	var frontier *Separation
	visited := map[pair]bool{origin: true}
	queue := []pair{origin}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for d := maze.Door(0); d < maze.Doors; d++ {
			x, y := s.Dest(p.x, d), s.Dest(p.y, d)
			if x == None || y == None {
				if frontier == nil {
					side := a
					if x != None {
						side = b
					}
					frontier = &Separation{Kind: Frontier, Suffix: trail(p).Extend(d), Side: side}
				}
				continue
			}
			if !s.sameLabel(x, y) {
				return Separation{Kind: Separated, Suffix: trail(p).Extend(d)}
			}
			q := pair{x, y}
			if x == y || visited[q] {
				continue
			}
			visited[q] = true
			prev[q] = step{from: p, door: d}
			queue = append(queue, q)
		}
	}
	if frontier != nil {
		return *frontier
	}
	return Separation{Kind: Bisimilar}
}

// Undistinguished returns pairs of reachable representatives with equal labels
// that are not known to be different rooms.
func (s *Snapshot) Undistinguished() [][2]NodeID {
	reach := s.Reachable()
	var pairs [][2]NodeID
	for i, x := range reach {
		for _, y := range reach[i+1:] {
			if s.sameLabel(x, y) && !s.Distinct(x, y) {
				pairs = append(pairs, [2]NodeID{x, y})
			}
		}
	}
	return pairs
}

// Unconfirmed returns the speculative merges not yet confirmed.
func (s *Snapshot) Unconfirmed() []Merge {
	var out []Merge
	for _, m := range s.Merges {
		if m.Kind == Speculative && !m.Confirmed {
			out = append(out, m)
		}
	}
	return out
}

// Confident reports whether the graph is closed, has exactly the known number
// of rooms, and tells every pair of same-label rooms apart, lookalikes
// included.
func (s *Snapshot) Confident() bool {
	if !s.Closed() {
		return false
	}
	if s.RoomCount > 0 && len(s.Reachable()) != s.RoomCount {
		return false
	}
	for _, group := range s.Lookalikes {
		for i, x := range group {
			for _, y := range group[i+1:] {
				if !s.Distinct(x, y) {
					return false
				}
			}
		}
	}
	return len(s.Undistinguished()) == 0
}
