package combo

import (
	"sort"

	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

// Member is one direct leaf of a composite.
type Member struct {
	Kind core.Kind
	Leaf *core.Leaf
}

// SubList holds the sub-composites nested under one use, in the order
// they were attached.
type SubList struct {
	Use    shape.Use
	Combos []*Composite
}

// Composite is one assembled candidate: direct members plus nested
// sub-composites keyed by use. Composites come out of the engine's pool,
// are immutable once published into a result list, and are recycled in
// bulk at the next ResetForNewEvent unless exported.
type Composite struct {
	members []Member
	subs    []SubList

	zoneFree bool
	exported bool
	seq      uint32 // event-local creation order
}

// Members returns the direct leaves in attachment order. Read-only view.
func (c *Composite) Members() []Member { return c.members }

// Subs returns the nested sub-lists. Read-only view.
func (c *Composite) Subs() []SubList { return c.subs }

// SubsFor returns the sub-composites nested under u, or nil.
func (c *Composite) SubsFor(u shape.Use) []*Composite {
	for i := range c.subs {
		if c.subs[i].Use == u {
			return c.subs[i].Combos
		}
	}

	return nil
}

// ZoneFree reports whether the entire content is zone-independent.
func (c *Composite) ZoneFree() bool { return c.zoneFree }

// Exported reports whether ownership has been transferred to the caller.
func (c *Composite) Exported() bool { return c.exported }

// Export transfers ownership of c and its whole nested chain to the
// caller; the pool will not recycle exported composites. Returns c.
func (c *Composite) Export() *Composite {
	if c.exported {
		return c
	}
	c.exported = true
	for i := range c.subs {
		for _, s := range c.subs[i].Combos {
			s.Export()
		}
	}

	return c
}

// Leaves appends the composite's leaves to dst in attachment order,
// descending into sub-composites when recursive is set.
func (c *Composite) Leaves(dst []*core.Leaf, recursive bool) []*core.Leaf {
	for _, m := range c.members {
		dst = append(dst, m.Leaf)
	}
	if recursive {
		for i := range c.subs {
			for _, s := range c.subs[i].Combos {
				dst = s.Leaves(dst, true)
			}
		}
	}

	return dst
}

// addSubs nests combos under u, extending an existing entry for u if one
// is already present. The inner slices are owned by c; sources are never
// aliased.
func (c *Composite) addSubs(u shape.Use, combos ...*Composite) {
	for i := range c.subs {
		if c.subs[i].Use == u {
			c.subs[i].Combos = append(c.subs[i].Combos, combos...)

			return
		}
	}
	c.subs = append(c.subs, SubList{Use: u, Combos: append([]*Composite(nil), combos...)})
}

// reset clears a pooled composite for reuse, keeping the backing arrays
// of members and subs.
func (c *Composite) reset(seq uint32) {
	c.members = c.members[:0]
	c.subs = c.subs[:0]
	c.zoneFree = false
	c.exported = false
	c.seq = seq
}

// appendSortedLeafIDs appends the recursive leaf chain of c to dst and
// returns it sorted. The result backs the binary-search disjointness
// checks.
func appendSortedLeafIDs(dst []core.LeafID, c *Composite) []core.LeafID {
	dst = appendLeafIDs(dst, c)
	sort.Slice(dst, func(i, j int) bool { return dst[i] < dst[j] })

	return dst
}

func appendLeafIDs(dst []core.LeafID, c *Composite) []core.LeafID {
	for _, m := range c.members {
		dst = append(dst, m.Leaf.ID)
	}
	for i := range c.subs {
		for _, s := range c.subs[i].Combos {
			dst = appendLeafIDs(dst, s)
		}
	}

	return dst
}

// leafIn reports whether id occurs in the sorted slice.
func leafIn(sorted []core.LeafID, id core.LeafID) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= id })

	return i < len(sorted) && sorted[i] == id
}

// sharesAnyLeaf reports whether any leaf in cand's chain occurs in the
// sorted id slice.
func sharesAnyLeaf(sorted []core.LeafID, cand *Composite) bool {
	for _, m := range cand.members {
		if leafIn(sorted, m.Leaf.ID) {
			return true
		}
	}
	for i := range cand.subs {
		for _, s := range cand.subs[i].Combos {
			if sharesAnyLeaf(sorted, s) {
				return true
			}
		}
	}

	return false
}
