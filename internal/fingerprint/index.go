package fingerprint

import (
	"sort"

	"github.com/dyluth/warren/pkg/maze"
)

// Index maps fingerprints to the ids currently holding them. Updates are
// incremental: re-indexing an id removes its previous entry first.
//
// Index is not safe for concurrent mutation; the hypothesis builder owns it.
type Index struct {
	current map[int]Fingerprint
	exact   map[Fingerprint]map[int]struct{}
	byLabel [maze.Labels]map[int]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	ix := &Index{
		current: make(map[int]Fingerprint),
		exact:   make(map[Fingerprint]map[int]struct{}),
	}
	for i := range ix.byLabel {
		ix.byLabel[i] = make(map[int]struct{})
	}
	return ix
}

// Update sets id's fingerprint, replacing any previous entry.
func (ix *Index) Update(id int, fp Fingerprint) {
	if old, ok := ix.current[id]; ok {
		if old == fp {
			return
		}
		ix.remove(id, old)
	}
	ix.current[id] = fp
	set := ix.exact[fp]
	if set == nil {
		set = make(map[int]struct{})
		ix.exact[fp] = set
	}
	set[id] = struct{}{}
	ix.byLabel[fp.Label][id] = struct{}{}
}

// Remove drops id from the index.
func (ix *Index) Remove(id int) {
	if old, ok := ix.current[id]; ok {
		ix.remove(id, old)
		delete(ix.current, id)
	}
}

func (ix *Index) remove(id int, fp Fingerprint) {
	if set := ix.exact[fp]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(ix.exact, fp)
		}
	}
	delete(ix.byLabel[fp.Label], id)
}

// Get returns id's indexed fingerprint.
func (ix *Index) Get(id int) (Fingerprint, bool) {
	fp, ok := ix.current[id]
	return fp, ok
}

// Len returns the number of indexed ids.
func (ix *Index) Len() int {
	return len(ix.current)
}

// CandidatesFor returns the ids whose fingerprints are compatible with fp,
// ascending.
func (ix *Index) CandidatesFor(fp Fingerprint) []int {
	var ids []int
	for id := range ix.byLabel[fp.Label] {
		if Compatible(ix.current[id], fp) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Duplicates returns every group of two or more ids sharing an identical
// complete fingerprint. Groups are sorted internally and by first id.
func (ix *Index) Duplicates() [][]int {
	var groups [][]int
	for fp, set := range ix.exact {
		if len(set) > 1 && fp.Complete() {
			groups = append(groups, sortedKeys(set))
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

func sortedKeys(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
