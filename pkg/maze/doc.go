// Package maze provides the shared domain types for exploring a hidden maze of
// rooms: doors, labels, exploration plans, recorded observations and the
// submission map.
//
// # Overview
//
// A maze is a fixed set of rooms. Every room carries a small label (0-3) and
// exactly six doors, each leading to some room (possibly itself). The maze is
// only visible through exploration: a Plan is submitted and the label of every
// room visited along it is returned.
//
// # Plans
//
// Plans have a compact text form used on the wire and on the command line.
// Digits 0-5 move through a door, and "[k]" overwrites the label of the current
// room with k for the remainder of that plan:
//
//	plan, err := maze.ParsePlan("01[2]3")
//	// plan.Moves() == 3, len(plan) == 4
//
// Every action yields exactly one label, so an observation of a plan with n
// actions carries n+1 labels: the start room first, then one per action.
// A mark echoes the label it wrote.
//
// # Submission
//
// Map is the JSON document accepted by the /guess endpoint: room labels in
// index order, the starting room index, and a door-to-door connection list in
// which every door of every room appears exactly once.
package maze
