// Package simulator provides an in-process hidden maze that answers
// exploration queries and verifies submitted maps the way the contest server
// does. It backs tests, offline solving and the local mock server.
package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/dyluth/warren/pkg/maze"
)

// Room is one room of a problem: its label and the room behind each door.
type Room struct {
	Label maze.Label      `yaml:"label" json:"label"`
	Doors [maze.Doors]int `yaml:"connections" json:"connections"`
}

// Problem is a named maze definition.
type Problem struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Start       int    `yaml:"start" json:"start"`
	Rooms       []Room `yaml:"rooms" json:"rooms"`
}

// Validate checks that the start and every door destination name real rooms
// and that labels are in range.
func (p *Problem) Validate() error {
	if len(p.Rooms) == 0 {
		return fmt.Errorf("problem %q has no rooms", p.Name)
	}
	if p.Start < 0 || p.Start >= len(p.Rooms) {
		return fmt.Errorf("problem %q: start room %d out of range", p.Name, p.Start)
	}
	for i, r := range p.Rooms {
		if !r.Label.Valid() {
			return fmt.Errorf("problem %q: room %d has invalid label %d", p.Name, i, r.Label)
		}
		for d, to := range r.Doors {
			if to < 0 || to >= len(p.Rooms) {
				return fmt.Errorf("problem %q: room %d door %d leads to unknown room %d", p.Name, i, d, to)
			}
		}
	}
	return nil
}

// Maze answers queries against one problem and counts their cost.
type Maze struct {
	problem Problem

	mu      sync.Mutex
	queries int
}

// New returns a maze for p.
func New(p Problem) (*Maze, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rooms := make([]Room, len(p.Rooms))
	copy(rooms, p.Rooms)
	p.Rooms = rooms
	return &Maze{problem: p}, nil
}

// FromMap returns a maze with the layout of a submission map.
func FromMap(name string, m *maze.Map) (*Maze, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid map: %w", err)
	}
	p := Problem{Name: name, Start: m.StartingRoom, Rooms: make([]Room, len(m.Rooms))}
	for i, l := range m.Rooms {
		p.Rooms[i].Label = l
		for d := maze.Door(0); d < maze.Doors; d++ {
			p.Rooms[i].Doors[d] = m.Destination(i, d)
		}
	}
	return New(p)
}

// Problem returns a copy of the maze definition.
func (m *Maze) Problem() Problem {
	p := m.problem
	p.Rooms = append([]Room(nil), m.problem.Rooms...)
	return p
}

// RoomCount returns the number of rooms.
func (m *Maze) RoomCount() int {
	return len(m.problem.Rooms)
}

// Queries returns the query cost spent so far: one per Explore call plus one
// per plan.
func (m *Maze) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

// Walk runs a single plan. Marks overwrite labels for the rest of this plan
// only and are echoed in the result.
func (m *Maze) Walk(plan maze.Plan) ([]maze.Label, error) {
	if limit := maze.MaxMovesPerRoom * len(m.problem.Rooms); plan.Moves() > limit {
		return nil, fmt.Errorf("plan too long: %d moves > %d", plan.Moves(), limit)
	}
	labels := make([]maze.Label, len(m.problem.Rooms))
	for i, r := range m.problem.Rooms {
		labels[i] = r.Label
	}

	room := m.problem.Start
	out := make([]maze.Label, 0, len(plan)+1)
	out = append(out, labels[room])
	for i, a := range plan {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		if a.Mark {
			labels[room] = a.Label
			out = append(out, a.Label)
			continue
		}
		room = m.problem.Rooms[room].Doors[a.Door]
		out = append(out, labels[room])
	}
	return out, nil
}

// Explore runs a batch of plans and charges for it.
func (m *Maze) Explore(ctx context.Context, plans []maze.Plan) ([][]maze.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([][]maze.Label, len(plans))
	for i, p := range plans {
		labels, err := m.Walk(p)
		if err != nil {
			return nil, fmt.Errorf("plan %d %q: %w", i, p.String(), err)
		}
		results[i] = labels
	}

	m.mu.Lock()
	m.queries += 1 + len(plans)
	m.mu.Unlock()
	return results, nil
}

// Guess reports whether candidate describes the same maze: equal room count
// and, from the two start rooms, equal labels along every door sequence.
func (m *Maze) Guess(ctx context.Context, candidate *maze.Map) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := candidate.Validate(); err != nil {
		return false, fmt.Errorf("invalid map: %w", err)
	}
	if len(candidate.Rooms) != len(m.problem.Rooms) {
		return false, nil
	}

	type pair struct{ hidden, guessed int }
	first := pair{m.problem.Start, candidate.StartingRoom}
	seen := map[pair]bool{first: true}
	queue := []pair{first}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if m.problem.Rooms[p.hidden].Label != candidate.Rooms[p.guessed] {
			return false, nil
		}
		for d := maze.Door(0); d < maze.Doors; d++ {
			next := pair{m.problem.Rooms[p.hidden].Doors[d], candidate.Destination(p.guessed, d)}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return true, nil
}
