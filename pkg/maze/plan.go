package maze

import (
	"fmt"
	"strings"
)

// Action is a single step of a plan: either a move through a door or a mark
// that overwrites the current room's label for the rest of the plan.
type Action struct {
	Door  Door  // Door to move through; unused for marks
	Mark  bool  // True when the action overwrites the current label
	Label Label // Label written by a mark
}

// Move returns the action moving through door d.
func Move(d Door) Action {
	return Action{Door: d}
}

// MarkWith returns the action overwriting the current room's label with l.
func MarkWith(l Label) Action {
	return Action{Mark: true, Label: l}
}

// Validate checks that the action's door or label is in range.
func (a Action) Validate() error {
	if a.Mark {
		if !a.Label.Valid() {
			return fmt.Errorf("mark label %d out of range", a.Label)
		}
		return nil
	}
	if !a.Door.Valid() {
		return fmt.Errorf("door %d out of range", a.Door)
	}
	return nil
}

// String renders the action in plan text form.
func (a Action) String() string {
	if a.Mark {
		return fmt.Sprintf("[%d]", a.Label)
	}
	return fmt.Sprintf("%d", a.Door)
}

// Plan is an ordered sequence of actions submitted as one exploration query.
type Plan []Action

// Path is a door-only route from the start room.
type Path []Door

// PlanOf builds a move-only plan from doors.
func PlanOf(doors ...Door) Plan {
	p := make(Plan, len(doors))
	for i, d := range doors {
		p[i] = Move(d)
	}
	return p
}

// ParsePlan parses the plan text form, e.g. "012" or "0[3]12".
func ParsePlan(s string) (Plan, error) {
	plan := make(Plan, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			a := Move(Door(c - '0'))
			if err := a.Validate(); err != nil {
				return nil, fmt.Errorf("invalid plan %q at offset %d: %w", s, i, err)
			}
			plan = append(plan, a)
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end != 2 || s[i+1] < '0' || s[i+1] > '9' {
				return nil, fmt.Errorf("invalid plan %q: malformed mark at offset %d", s, i)
			}
			a := MarkWith(Label(s[i+1] - '0'))
			if err := a.Validate(); err != nil {
				return nil, fmt.Errorf("invalid plan %q at offset %d: %w", s, i, err)
			}
			plan = append(plan, a)
			i += end
		default:
			return nil, fmt.Errorf("invalid plan %q: unexpected character %q at offset %d", s, c, i)
		}
	}
	return plan, nil
}

// MustParsePlan is like ParsePlan but panics on error. Intended for
// constants and tests.
func MustParsePlan(s string) Plan {
	p, err := ParsePlan(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the plan in text form.
func (p Plan) String() string {
	var b strings.Builder
	for _, a := range p {
		b.WriteString(a.String())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler so plans travel as strings.
func (p Plan) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Plan) UnmarshalText(text []byte) error {
	parsed, err := ParsePlan(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Moves counts the move actions in the plan.
func (p Plan) Moves() int {
	n := 0
	for _, a := range p {
		if !a.Mark {
			n++
		}
	}
	return n
}

// HasMarks reports whether the plan overwrites any label.
func (p Plan) HasMarks() bool {
	for _, a := range p {
		if a.Mark {
			return true
		}
	}
	return false
}

// Path returns the doors of the plan up to (not including) the first mark.
func (p Plan) Path() Path {
	path := make(Path, 0, len(p))
	for _, a := range p {
		if a.Mark {
			break
		}
		path = append(path, a.Door)
	}
	return path
}

// Then returns a new plan of p followed by q.
func (p Plan) Then(q Plan) Plan {
	out := make(Plan, 0, len(p)+len(q))
	out = append(out, p...)
	return append(out, q...)
}

// Truncate returns a copy of p holding at most maxMoves moves. Marks after the
// last kept move are dropped.
func (p Plan) Truncate(maxMoves int) Plan {
	out := make(Plan, 0, len(p))
	moves := 0
	for _, a := range p {
		if !a.Mark {
			if moves == maxMoves {
				break
			}
			moves++
		}
		out = append(out, a)
	}
	return out
}

// Plan converts the path to a move-only plan.
func (p Path) Plan() Plan {
	return PlanOf(p...)
}

// String renders the path as door digits.
func (p Path) String() string {
	var b strings.Builder
	for _, d := range p {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

// HasPrefix reports whether prefix is a prefix of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// CommonPrefix returns the length of the longest common prefix of p and q.
func (p Path) CommonPrefix(q Path) int {
	n := 0
	for n < len(p) && n < len(q) && p[n] == q[n] {
		n++
	}
	return n
}

// Extend returns a new path of p followed by doors.
func (p Path) Extend(doors ...Door) Path {
	out := make(Path, 0, len(p)+len(doors))
	out = append(out, p...)
	return append(out, doors...)
}
