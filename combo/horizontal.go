package combo

import (
	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

// comboHorizontallyAll assembles a multi-component shape from a cached
// all-but-one result plus the missing component. Search order is fixed:
// sub entries (decays) before loose leaf entries, in canonical shape
// order. When nothing is cached, the subset missing the first component
// is built recursively, never the full set at once.
func (e *Engine) comboHorizontallyAll(u shape.Use, stage Stage) error {
	sh := u.Shape
	leaves, subs := sh.Leaves(), sh.Subs()

	// Single-entry shapes: repeated entries were grouped vertically, a
	// lone count-1 leaf emits one composite per candidate.
	if len(subs) == 0 && len(leaves) == 1 {
		if leaves[0].Count > 1 {
			return nil
		}

		return e.emitSingles(u, leaves[0].Kind, stage)
	}
	if len(leaves) == 0 && len(subs) == 1 {
		return nil // grouped vertically, or aliased by createGrouping
	}

	var subset shape.Use

	// 1. all-but-one over sub entries.
	for i, sc := range subs {
		ab, err := e.allButOne(u, i, -1)
		if err != nil {
			return err
		}
		if e.cached(ab) {
			add, err := e.groupingForSub(sc, u.Zone)
			if err != nil {
				return err
			}

			return e.addCombo(u, ab, add, stage, expandable(ab))
		}
		if i == 0 {
			subset = ab
		}
	}

	// 2. all-but-one over leaf entries.
	for j, lc := range leaves {
		ab, err := e.allButOne(u, -1, j)
		if err != nil {
			return err
		}
		if e.cached(ab) {
			if lc.Count > 1 {
				add, err := e.groupingForLeaf(lc, u.Zone)
				if err != nil {
					return err
				}

				return e.addCombo(u, ab, add, stage, expandable(ab))
			}

			return e.addLeaf(u, ab, lc.Kind, stage, expandable(ab))
		}
		if j == 0 && len(subs) == 0 {
			subset = ab
		}
	}

	// 3. nothing cached: build the subset missing the first component,
	//    then attach that component.
	if err := e.ensure(subset, stage); err != nil {
		return err
	}
	if len(subs) > 0 {
		add, err := e.groupingForSub(subs[0], u.Zone)
		if err != nil {
			return err
		}

		return e.addCombo(u, subset, add, stage, expandable(subset))
	}
	lc := leaves[0]
	if lc.Count > 1 {
		add, err := e.groupingForLeaf(lc, u.Zone)
		if err != nil {
			return err
		}

		return e.addCombo(u, subset, add, stage, expandable(subset))
	}

	return e.addLeaf(u, subset, lc.Kind, stage, expandable(subset))
}

// expandable reports whether a partial's own content sits at the
// target's level and must be merged rather than nested.
func expandable(u shape.Use) bool { return u.Shape.NumEntries() > 1 }

// allButOne derives the grouping use for u's shape minus one entry.
// A remainder that is exactly one count-1 sub collapses to that sub-use.
func (e *Engine) allButOne(u shape.Use, subIdx, leafIdx int) (shape.Use, error) {
	sh := u.Shape
	var ls []shape.LeafCount
	for j, lc := range sh.Leaves() {
		if j != leafIdx {
			ls = append(ls, lc)
		}
	}
	var ss []shape.SubCount
	for i, sc := range sh.Subs() {
		if i != subIdx {
			ss = append(ss, sc)
		}
	}
	if len(ls) == 0 && len(ss) == 1 && ss[0].Count == 1 {
		return ss[0].Use, nil
	}
	g, err := e.reg.GetOrIntern(ls, ss)
	if err != nil {
		return shape.Use{}, err
	}

	return e.groupingUse(g, u.Zone), nil
}

// groupingForSub resolves the use whose list supplies one sub entry's
// worth of candidates: the sub-use itself, or its vertical grouping for
// repeated subs.
func (e *Engine) groupingForSub(sc shape.SubCount, zone core.Zone) (shape.Use, error) {
	if sc.Count == 1 {
		return sc.Use, nil
	}
	g, err := e.reg.GetOrIntern(nil, []shape.SubCount{{Use: sc.Use, Count: sc.Count}})
	if err != nil {
		return shape.Use{}, err
	}

	return e.groupingUse(g, zone), nil
}

func (e *Engine) groupingForLeaf(lc shape.LeafCount, zone core.Zone) (shape.Use, error) {
	g, err := e.reg.GetOrIntern([]shape.LeafCount{{Kind: lc.Kind, Count: lc.Count}}, nil)
	if err != nil {
		return shape.Use{}, err
	}

	return e.groupingUse(g, zone), nil
}

// addCombo merges every all-but-one partial with every disjoint,
// tag-compatible candidate of the missing component's use.
func (e *Engine) addCombo(u, ab, add shape.Use, stage Stage, expand bool) error {
	if !e.cached(add) {
		if err := e.createForUse(add, stage); err != nil {
			return err
		}
	}
	dst, err := e.listFor(u, stage)
	if err != nil {
		return err
	}
	flattenA := expand || e.promote(ab, u.Shape)
	flattenB := e.promote(add, u.Shape)
	for _, a := range e.itemsOf(ab) {
		atags := e.tags[a]
		cands, _, err := e.combosFor(add, atags)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			continue
		}
		aids := e.sortedLeafIDs(a)
		for _, b := range cands {
			zoneFree := a.zoneFree && b.zoneFree
			if stage == StageFull && zoneFree {
				continue // already built in the zone-free pass
			}
			if sharesAnyLeaf(aids, b) {
				continue
			}
			tags, ok := e.intersect(atags, e.tags[b])
			if !ok {
				continue
			}
			c := e.pool.Composite()
			e.mergeInto(c, a, ab, flattenA)
			e.mergeInto(c, b, add, flattenB)
			c.zoneFree = zoneFree
			dst.items = append(dst.items, c)
			e.register(u, c, tags, stage)
		}
	}

	return nil
}

// addLeaf merges every all-but-one partial with every unused,
// tag-compatible leaf of the missing kind.
func (e *Engine) addLeaf(u, ab shape.Use, kind core.Kind, stage Stage, expand bool) error {
	dst, err := e.listFor(u, stage)
	if err != nil {
		return err
	}
	flattenA := expand || e.promote(ab, u.Shape)
	for _, a := range e.itemsOf(ab) {
		atags := e.tags[a]
		cands := e.index.leavesFor(kind, stage, atags, u.Zone)
		if len(cands) == 0 {
			continue
		}
		aids := e.sortedLeafIDs(a)
		for _, lf := range cands {
			zoneFree := a.zoneFree && e.leafZoneFree(lf)
			if stage == StageFull && zoneFree {
				continue
			}
			if leafIn(aids, lf.ID) {
				continue
			}
			tags, ok := e.intersect(atags, e.leafTags(lf))
			if !ok {
				continue
			}
			c := e.pool.Composite()
			e.mergeInto(c, a, ab, flattenA)
			c.members = append(c.members, Member{Kind: kind, Leaf: lf})
			c.zoneFree = zoneFree
			dst.items = append(dst.items, c)
			e.register(u, c, tags, stage)
		}
	}

	return nil
}

// emitSingles builds the one-leaf composites for a lone count-1 entry.
func (e *Engine) emitSingles(u shape.Use, kind core.Kind, stage Stage) error {
	dst, err := e.listFor(u, stage)
	if err != nil {
		return err
	}
	for _, lf := range e.index.leavesFor(kind, stage, nil, u.Zone) {
		zoneFree := e.leafZoneFree(lf)
		if stage == StageFull && zoneFree {
			continue
		}
		c := e.pool.Composite()
		c.members = append(c.members, Member{Kind: kind, Leaf: lf})
		c.zoneFree = zoneFree
		dst.items = append(dst.items, c)
		e.register(u, c, e.leafTags(lf), stage)
	}

	return nil
}

// promote decides whether a component's content is flattened into the
// target's direct level: only when it carries no parent label and its
// leading entry already appears verbatim at that level. Everything else
// stays nested under its use.
func (e *Engine) promote(u shape.Use, target *shape.Shape) bool {
	if u.Parent != shape.LabelNone {
		return false
	}
	if subs := u.Shape.Subs(); len(subs) > 0 {
		return target.HasSubEntry(subs[0])
	}
	if ls := u.Shape.Leaves(); len(ls) > 0 {
		return target.HasLeafEntry(ls[0])
	}

	return false
}

// mergeInto attaches one source composite to the one under construction:
// flattened (members and subs hoisted to c's level) or nested under its
// use.
func (e *Engine) mergeInto(c, x *Composite, xu shape.Use, flatten bool) {
	if flatten {
		c.members = append(c.members, x.members...)
		for i := range x.subs {
			c.addSubs(x.subs[i].Use, x.subs[i].Combos...)
		}

		return
	}
	c.addSubs(xu, x)
}
