package simulator

import (
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/dyluth/warren/pkg/maze"
	"gopkg.in/yaml.v3"
)

// builtin are the fallback problems of the mock contest server. Every door
// pairs with a door of its destination, so both mazes can be written down as
// a submission map.
var builtin = map[string]Problem{
	"probatio": {
		Name:        "probatio",
		Description: "3 rooms, unique labels",
		Rooms: []Room{
			{Label: 0, Doors: [maze.Doors]int{1, 2, 2, 1, 2, 2}},
			{Label: 1, Doors: [maze.Doors]int{0, 0, 1, 1, 1, 1}},
			{Label: 2, Doors: [maze.Doors]int{0, 0, 0, 0, 2, 2}},
		},
	},
	"primus": {
		Name:        "primus",
		Description: "6 rooms on a ring with chords, labels 0 and 1 used twice",
		Rooms: []Room{
			{Label: 0, Doors: [maze.Doors]int{1, 5, 2, 4, 3, 0}},
			{Label: 0, Doors: [maze.Doors]int{2, 0, 3, 5, 4, 1}},
			{Label: 1, Doors: [maze.Doors]int{3, 1, 4, 0, 5, 2}},
			{Label: 1, Doors: [maze.Doors]int{4, 2, 5, 1, 0, 3}},
			{Label: 2, Doors: [maze.Doors]int{5, 3, 0, 2, 1, 4}},
			{Label: 3, Doors: [maze.Doors]int{0, 4, 1, 3, 2, 5}},
		},
	},
}

// Builtin returns a fresh maze for a named built-in problem.
func Builtin(name string) (*Maze, error) {
	p, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem %q (available: %v)", name, BuiltinNames())
	}
	return New(p)
}

// BuiltinNames lists the built-in problems in name order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a problem definition from a YAML or JSON file.
func Load(path string) (*Maze, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	var p Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse problem file: %w", err)
	}
	return New(p)
}

// Save writes a problem definition as YAML.
func Save(path string, p Problem) error {
	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("failed to marshal problem: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write problem file: %w", err)
	}
	return nil
}

// GenerateMap builds a random connected maze of n rooms in submission form.
// Labels cycle through the label range in shuffled room order; doors are
// paired by a random perfect matching over all door slots, so every passage
// works in both directions. The same seed always yields the same maze.
func GenerateMap(n int, seed int64) *maze.Map {
	rng := rand.New(rand.NewSource(seed))
	for {
		m := &maze.Map{Rooms: make([]maze.Label, n)}
		for i, room := range rng.Perm(n) {
			m.Rooms[room] = maze.Label(i % maze.Labels)
		}

		slots := make([]maze.RoomDoor, 0, n*maze.Doors)
		for room := 0; room < n; room++ {
			for d := maze.Door(0); d < maze.Doors; d++ {
				slots = append(slots, maze.RoomDoor{Room: room, Door: d})
			}
		}
		rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
		for i := 0; i < len(slots); i += 2 {
			m.Connections = append(m.Connections, maze.Connection{From: slots[i], To: slots[i+1]})
		}

		if connected(m) {
			return m
		}
	}
}

// Generate builds a random maze of n rooms. See GenerateMap.
func Generate(n int, seed int64) *Maze {
	m, err := FromMap(fmt.Sprintf("random-%d-%d", n, seed), GenerateMap(n, seed))
	if err != nil {
		panic(fmt.Sprintf("generated an invalid maze: %v", err))
	}
	return m
}

func connected(m *maze.Map) bool {
	seen := make([]bool, len(m.Rooms))
	seen[m.StartingRoom] = true
	queue := []int{m.StartingRoom}
	count := 1
	for len(queue) > 0 {
		room := queue[0]
		queue = queue[1:]
		for d := maze.Door(0); d < maze.Doors; d++ {
			next := m.Destination(room, d)
			if next >= 0 && !seen[next] {
				seen[next] = true
				count++
				queue = append(queue, next)
			}
		}
	}
	return count == len(m.Rooms)
}
