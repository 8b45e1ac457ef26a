// Package emitter turns a closed hypothesis into the submission map.
package emitter

import (
	"errors"
	"fmt"
	"log"

	"github.com/dyluth/warren/internal/hypothesis"
	"github.com/dyluth/warren/pkg/maze"
)

// ErrIncompleteGraph is returned when the hypothesis still has unknown doors
// reachable from the start.
var ErrIncompleteGraph = errors.New("emitter: incomplete graph")

// Warning reports a door that could not be paired with a door leading back.
type Warning struct {
	From   maze.RoomDoor
	To     maze.RoomDoor
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("room %d door %d paired with room %d door %d: %s",
		w.From.Room, w.From.Door, w.To.Room, w.To.Door, w.Reason)
}

// Rooms numbers the reachable representatives of s in ascending id order
// and returns their labels and door destinations by room index.
func Rooms(s *hypothesis.Snapshot) (labels []maze.Label, dest [][maze.Doors]int, start int, err error) {
	if !s.Closed() {
		return nil, nil, 0, fmt.Errorf("%w: %d unknown doors", ErrIncompleteGraph, s.UnknownDoors())
	}
	ids := s.Reachable()
	index := make(map[hypothesis.NodeID]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	labels = make([]maze.Label, len(ids))
	dest = make([][maze.Doors]int, len(ids))
	for i, id := range ids {
		n, _ := s.Node(id)
		labels[i] = n.Label
		for d, t := range n.Doors {
			dest[i][d] = index[t]
		}
	}
	return labels, dest, index[s.Start], nil
}

// Emit builds the submission map of a closed hypothesis. Doors that cannot be
// paired consistently are logged and paired anyway, so the map is always
// well-formed.
func Emit(s *hypothesis.Snapshot) (*maze.Map, error) {
	labels, dest, start, err := Rooms(s)
	if err != nil {
		return nil, err
	}
	conns, warnings := PairDoors(dest)
	for _, w := range warnings {
		log.Printf("[Emitter] Warning: %s", w)
	}

	m := &maze.Map{Rooms: labels, StartingRoom: start, Connections: conns}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build a valid map: %w", err)
	}
	return m, nil
}

// PairDoors turns directed door destinations into undirected connections.
// Rooms and doors are taken in ascending order; door (u,d) leading to v is
// paired with the lowest unused door e of v that leads back to u, which is d
// itself for a door leading back into its own room. When no such door is
// free, (u,d) takes v's lowest unused door, or pairs with itself when v has
// none; both cases yield a warning.
func PairDoors(dest [][maze.Doors]int) ([]maze.Connection, []Warning) {
	used := make([][maze.Doors]bool, len(dest))
	var conns []maze.Connection
	var warnings []Warning

	pair := func(from, to maze.RoomDoor) {
		used[from.Room][from.Door] = true
		used[to.Room][to.Door] = true
		conns = append(conns, maze.Connection{From: from, To: to})
	}

	for u := range dest {
		u := u
		for d := maze.Door(0); d < maze.Doors; d++ {
			if used[u][d] {
				continue
			}
			from := maze.RoomDoor{Room: u, Door: d}
			v := dest[u][d]

			if e, ok := lowestUnused(used[v], func(e maze.Door) bool { return dest[v][e] == u }); ok {
				pair(from, maze.RoomDoor{Room: v, Door: e})
				continue
			}
			if e, ok := lowestUnused(used[v], nil); ok {
				to := maze.RoomDoor{Room: v, Door: e}
				warnings = append(warnings, Warning{From: from, To: to,
					Reason: fmt.Sprintf("no free door of room %d leads back to room %d", v, u)})
				pair(from, to)
				continue
			}
			warnings = append(warnings, Warning{From: from, To: from,
				Reason: fmt.Sprintf("room %d has no free door", v)})
			pair(from, from)
		}
	}
	return conns, warnings
}

func lowestUnused(used [maze.Doors]bool, accept func(maze.Door) bool) (maze.Door, bool) {
	for e := maze.Door(0); e < maze.Doors; e++ {
		if !used[e] && (accept == nil || accept(e)) {
			return e, true
		}
	}
	return 0, false
}
