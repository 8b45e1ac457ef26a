package maze

import (
	"fmt"
)

const (
	// Doors is the fixed number of doors on every room.
	Doors = 6

	// Labels is the size of the label range; labels are 0..Labels-1.
	Labels = 4

	// MaxMovesPerRoom bounds the number of moves in a single plan to
	// MaxMovesPerRoom times the room count.
	MaxMovesPerRoom = 18
)

// Door identifies one of the six doors of a room.
type Door int

// Valid reports whether d is in [0, Doors).
func (d Door) Valid() bool {
	return d >= 0 && d < Doors
}

// Label is the small, non-unique marker observed in a room.
type Label int

// Valid reports whether l is in [0, Labels).
func (l Label) Valid() bool {
	return l >= 0 && l < Labels
}

// Observation is one recorded exploration result. Observations are immutable
// once recorded: they are the ground truth every hypothesis is derived from.
type Observation struct {
	ID           string  `json:"id"`             // UUID assigned by the trace store
	Seq          int     `json:"seq"`            // Position in the trace, starting at 0
	Plan         Plan    `json:"plan"`           // Submitted actions
	Labels       []Label `json:"labels"`         // len(Plan)+1 labels, start room first
	RecordedAtMs int64   `json:"recorded_at_ms"` // Unix timestamp in milliseconds
}

// Validate checks the shape of an observation: one label per action plus the
// start label, labels in range, and marks echoed verbatim.
func (o *Observation) Validate() error {
	return ValidateResult(o.Plan, o.Labels)
}

// ValidateResult checks that labels is a well-formed response to plan.
func ValidateResult(plan Plan, labels []Label) error {
	if len(labels) != len(plan)+1 {
		return fmt.Errorf("expected %d labels for plan %q, got %d", len(plan)+1, plan.String(), len(labels))
	}
	for i, l := range labels {
		if !l.Valid() {
			return fmt.Errorf("label %d at position %d out of range", l, i)
		}
	}
	for i, a := range plan {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		if a.Mark && labels[i+1] != a.Label {
			return fmt.Errorf("mark [%d] at action %d echoed label %d", a.Label, i, labels[i+1])
		}
	}
	return nil
}

// RoomDoor names one door of one room in a submission map.
type RoomDoor struct {
	Room int  `json:"room"`
	Door Door `json:"door"`
}

// Connection is an undirected door-to-door passage between two rooms.
type Connection struct {
	From RoomDoor `json:"from"`
	To   RoomDoor `json:"to"`
}

// Map is the submission format: room labels in index order, the starting
// room index, and every passage listed once.
type Map struct {
	Rooms        []Label      `json:"rooms"`
	StartingRoom int          `json:"startingRoom"`
	Connections  []Connection `json:"connections"`
}

// Validate checks that the map is well formed: the starting room exists,
// every connection endpoint names a real room and door, and every door of
// every room is used by exactly one connection.
func (m *Map) Validate() error {
	if len(m.Rooms) == 0 {
		return fmt.Errorf("map has no rooms")
	}
	if m.StartingRoom < 0 || m.StartingRoom >= len(m.Rooms) {
		return fmt.Errorf("starting room %d out of range [0,%d)", m.StartingRoom, len(m.Rooms))
	}
	for i, l := range m.Rooms {
		if !l.Valid() {
			return fmt.Errorf("room %d has invalid label %d", i, l)
		}
	}

	used := make(map[RoomDoor]int, len(m.Rooms)*Doors)
	for i, c := range m.Connections {
		for _, end := range []RoomDoor{c.From, c.To} {
			if end.Room < 0 || end.Room >= len(m.Rooms) || !end.Door.Valid() {
				return fmt.Errorf("connection %d has invalid endpoint room=%d door=%d", i, end.Room, end.Door)
			}
		}
		used[c.From]++
		if c.To != c.From {
			used[c.To]++
		}
	}

	for room := range m.Rooms {
		for d := Door(0); d < Doors; d++ {
			switch n := used[RoomDoor{Room: room, Door: d}]; {
			case n == 0:
				return fmt.Errorf("room %d door %d is not connected", room, d)
			case n > 1:
				return fmt.Errorf("room %d door %d is used by %d connections", room, d, n)
			}
		}
	}
	return nil
}

// Destination returns the room reached from room through door according to
// the map's connections, or -1 if the door is not connected.
func (m *Map) Destination(room int, door Door) int {
	for _, c := range m.Connections {
		if c.From.Room == room && c.From.Door == door {
			return c.To.Room
		}
		if c.To.Room == room && c.To.Door == door {
			return c.From.Room
		}
	}
	return -1
}
