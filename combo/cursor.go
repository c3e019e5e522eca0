package combo

import (
	"sort"

	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

// listPosKey addresses one composite's position inside one partition
// list: the list's owning use (resolved through aliases) and the tag key
// the partition was materialized under.
type listPosKey struct {
	c    *Composite
	u    shape.Use
	tags string
}

// resumeTables holds the construction cursors. They live beside the
// composites, never inside them: a composite is immutable once published,
// but the scan position that produced it keeps advancing.
type resumeTables struct {
	// lastLeaf records the last same-kind leaf a grouping took.
	lastLeaf map[*Composite]*core.Leaf

	// lastSub records the last same-use sub-composite a grouping took.
	lastSub map[*Composite]*Composite

	// listPos records where a composite sits in each partition list it
	// was registered in, written at append time and when merged
	// partitions are materialized.
	listPos map[listPosKey]int
}

func newResumeTables() *resumeTables {
	r := &resumeTables{}
	r.reset()

	return r
}

func (r *resumeTables) reset() {
	r.lastLeaf = make(map[*Composite]*core.Leaf)
	r.lastSub = make(map[*Composite]*Composite)
	r.listPos = make(map[listPosKey]int)
}

// leafResume returns the index in cands (ID-sorted) at which the scan
// for extending g continues: just past the last leaf g took, or 0 for a
// fresh group.
func (r *resumeTables) leafResume(g *Composite, cands []*core.Leaf) int {
	last, ok := r.lastLeaf[g]
	if !ok {
		return 0
	}

	return sort.Search(len(cands), func(i int) bool { return cands[i].ID > last.ID })
}

// comboResume returns the index at which the scan for extending g over
// the (u, tags) partition continues. ok=false means the cursor's target
// was never registered in that partition, which is an invariant breach.
func (r *resumeTables) comboResume(g *Composite, u shape.Use, tags string) (int, bool) {
	last, found := r.lastSub[g]
	if !found {
		return 0, true
	}
	pos, ok := r.listPos[listPosKey{c: last, u: u, tags: tags}]
	if !ok {
		return 0, false
	}

	return pos + 1, true
}
