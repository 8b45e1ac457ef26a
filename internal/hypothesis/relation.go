package hypothesis

import "github.com/dyluth/warren/pkg/maze"

// relation is the distinctness relation over the current representatives.
// Two representatives are distinct when their labels differ, when a mark
// proved it, or when one door known on both leads to distinct representatives.
// Distinct representatives are different physical rooms, so rooms holds a set
// of pairwise distinct representatives picked greedily in id order.
type relation struct {
	reps     []NodeID
	pos      map[NodeID]int
	labels   []maze.Label
	distinct [][]bool
	rooms    []NodeID
	isRoom   []bool
}

func (b *Builder) relation() *relation {
	r := &relation{pos: make(map[NodeID]int)}
	for i, n := range b.nodes {
		if n.parent == NodeID(i) {
			r.pos[NodeID(i)] = len(r.reps)
			r.reps = append(r.reps, NodeID(i))
			r.labels = append(r.labels, n.label)
		}
	}
	size := len(r.reps)
	r.distinct = make([][]bool, size)
	for i := range r.distinct {
		r.distinct[i] = make([]bool, size)
	}

	dest := make([][maze.Doors]int, size)
	preds := make([][maze.Doors][]int, size)
	for i, id := range r.reps {
		for d := maze.Door(0); d < maze.Doors; d++ {
			dest[i][d] = -1
			if t := b.nodes[id].doors[d]; t != None {
				j := r.pos[b.find(t)]
				dest[i][d] = j
				preds[j][d] = append(preds[j][d], i)
			}
		}
	}

	var queue [][2]int
	set := func(i, j int) {
		if i == j || r.labels[i] != r.labels[j] || r.distinct[i][j] {
			return
		}
		r.distinct[i][j], r.distinct[j][i] = true, true
		queue = append(queue, [2]int{i, j})
	}
	for k := range b.proofs {
		x, y := b.resolve(k.a), b.resolve(k.b)
		if x != None && y != None {
			set(r.pos[x], r.pos[y])
		}
	}
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			if r.labels[i] != r.labels[j] {
				continue
			}
			for d := maze.Door(0); d < maze.Doors; d++ {
				x, y := dest[i][d], dest[j][d]
				if x >= 0 && y >= 0 && r.labels[x] != r.labels[y] {
					set(i, j)
					break
				}
			}
		}
	}
	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for d := maze.Door(0); d < maze.Doors; d++ {
			for _, x := range preds[p[0]][d] {
				for _, y := range preds[p[1]][d] {
					set(x, y)
				}
			}
		}
	}

	r.isRoom = make([]bool, size)
	var picked []int
	for i := range r.reps {
		ok := true
		for _, j := range picked {
			if !r.apart(i, j) {
				ok = false
				break
			}
		}
		if ok {
			picked = append(picked, i)
			r.isRoom[i] = true
			r.rooms = append(r.rooms, r.reps[i])
		}
	}
	return r
}

func (r *relation) apart(i, j int) bool {
	return i != j && (r.labels[i] != r.labels[j] || r.distinct[i][j])
}

// Distinct reports whether two representatives are different rooms.
func (r *relation) Distinct(x, y NodeID) bool {
	i, ok := r.pos[x]
	j, ok2 := r.pos[y]
	return ok && ok2 && r.apart(i, j)
}

func (r *relation) room(x NodeID) bool {
	i, ok := r.pos[x]
	return ok && r.isRoom[i]
}

// full reports whether rooms already holds every one of n rooms.
func (r *relation) full(n int) bool {
	return n > 0 && len(r.rooms) == n
}

// candidates returns the rooms x could still be. A room is only itself.
func (r *relation) candidates(x NodeID) []NodeID {
	i, ok := r.pos[x]
	if !ok || r.isRoom[i] {
		return nil
	}
	var out []NodeID
	for _, c := range r.rooms {
		if !r.apart(i, r.pos[c]) {
			out = append(out, c)
		}
	}
	return out
}
