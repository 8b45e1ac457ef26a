// Package fingerprint derives and indexes room signatures: a room's own label
// together with the labels seen behind each of its six doors.
//
// Unknown door slots act as wildcards. A fingerprint with unknown slots is a
// superset of every complete fingerprint it could resolve to; two
// fingerprints are merge candidates when their labels agree and every slot
// known in both agrees.
package fingerprint

import (
	"strings"

	"github.com/dyluth/warren/pkg/maze"
)

// Unknown marks a door slot whose destination label is not yet observed.
const Unknown int8 = -1

// Fingerprint is a room's (label, neighbour labels) signature.
type Fingerprint struct {
	Label maze.Label
	Doors [maze.Doors]int8
}

// New returns a fingerprint with the given label and every slot unknown.
func New(label maze.Label) Fingerprint {
	fp := Fingerprint{Label: label}
	for i := range fp.Doors {
		fp.Doors[i] = Unknown
	}
	return fp
}

// With returns a copy of fp with door d resolved to label l.
func (fp Fingerprint) With(d maze.Door, l maze.Label) Fingerprint {
	fp.Doors[d] = int8(l)
	return fp
}

// Known reports whether door d is resolved.
func (fp Fingerprint) Known(d maze.Door) bool {
	return fp.Doors[d] != Unknown
}

// Complete reports whether every door slot is resolved.
func (fp Fingerprint) Complete() bool {
	for _, l := range fp.Doors {
		if l == Unknown {
			return false
		}
	}
	return true
}

// KnownSlots counts resolved door slots.
func (fp Fingerprint) KnownSlots() int {
	n := 0
	for _, l := range fp.Doors {
		if l != Unknown {
			n++
		}
	}
	return n
}

// Compatible reports whether a and b could describe the same room: equal
// labels, and agreement on every slot known in both.
func Compatible(a, b Fingerprint) bool {
	if a.Label != b.Label {
		return false
	}
	for d := range a.Doors {
		if a.Doors[d] != Unknown && b.Doors[d] != Unknown && a.Doors[d] != b.Doors[d] {
			return false
		}
	}
	return true
}

// String renders the fingerprint as "label:slots", e.g. "2:01?3??".
func (fp Fingerprint) String() string {
	var b strings.Builder
	b.WriteByte(byte('0' + fp.Label))
	b.WriteByte(':')
	for _, l := range fp.Doors {
		if l == Unknown {
			b.WriteByte('?')
		} else {
			b.WriteByte(byte('0' + l))
		}
	}
	return b.String()
}
