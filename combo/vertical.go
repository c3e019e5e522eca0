package combo

import (
	"fmt"

	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

// comboVerticallyAllSubs builds the same-use groupings for every sub
// entry of u's shape: the sub's own list first, then the 2..N grouping
// chain, each level extending the memoized level below it.
func (e *Engine) comboVerticallyAllSubs(u shape.Use, stage Stage) error {
	sh := u.Shape
	for _, sc := range sh.Subs() {
		var target shape.Use
		if len(sh.Leaves()) == 0 && len(sh.Subs()) == 1 && sc.Count > 1 {
			target = u // the shape is exactly this grouping
		}
		if err := e.buildSubChain(target, sc, u.Zone, stage); err != nil {
			return err
		}
	}

	return nil
}

// buildSubChain ensures the sub-use list exists and grows the grouping
// chain {sub: 2} … {sub: Count}. A non-zero target receives the final
// level instead of a derived grouping use.
func (e *Engine) buildSubChain(target shape.Use, sc shape.SubCount, zone core.Zone, stage Stage) error {
	if !e.cached(sc.Use) {
		if err := e.createForUse(sc.Use, stage); err != nil {
			return err
		}
	}
	if sc.Count == 1 {
		return nil
	}
	prev := sc.Use
	for n := 2; n <= sc.Count; n++ {
		tgt := target
		if n < sc.Count || target.Shape == nil {
			gsh, err := e.reg.GetOrIntern(nil, []shape.SubCount{{Use: sc.Use, Count: n}})
			if err != nil {
				return err
			}
			tgt = e.groupingUse(gsh, zone)
		}
		if tgt != target && e.cached(tgt) {
			prev = tgt

			continue
		}
		if err := e.comboVerticallyNSubs(tgt, prev, sc.Use, n, stage); err != nil {
			return err
		}
		prev = tgt
	}

	return nil
}

// comboVerticallyNSubs extends each (n-1)-grouping with one more
// sub-composite. For n == 2 the "grouping" is the sub list itself and
// the scan resumes just past the seed's own position; for n > 2 it
// resumes past the last sub the group took. Either way, candidates come
// from the partition filtered by the group's tag set, so no ordering or
// duplicate checks are needed — only leaf disjointness and tag
// compatibility.
func (e *Engine) comboVerticallyNSubs(target, prev, sub shape.Use, n int, stage Stage) error {
	dst, err := e.listFor(target, stage)
	if err != nil {
		return err
	}
	for _, g := range e.itemsOf(prev) {
		gtags := e.tags[g]
		cands, key, err := e.combosFor(sub, gtags)
		if err != nil {
			return err
		}
		var start int
		if n == 2 {
			pos, ok := e.resume.listPos[listPosKey{c: g, u: e.identOf(sub), tags: key}]
			if !ok {
				return fmt.Errorf("%w: pair seed unregistered in %s", ErrInvariant, sub)
			}
			start = pos + 1
		} else {
			var ok bool
			start, ok = e.resume.comboResume(g, e.identOf(sub), key)
			if !ok {
				return fmt.Errorf("%w: resume cursor lost for %s", ErrInvariant, sub)
			}
		}
		if start >= len(cands) {
			continue
		}
		gids := e.sortedLeafIDs(g)
		for _, b := range cands[start:] {
			zoneFree := g.zoneFree && b.zoneFree
			if stage == StageFull && zoneFree {
				continue // already built in the zone-free pass
			}
			if sharesAnyLeaf(gids, b) {
				continue
			}
			tags, ok := e.intersect(gtags, e.tags[b])
			if !ok {
				continue
			}
			c := e.pool.Composite()
			if n == 2 {
				c.addSubs(sub, g, b)
			} else {
				prev, err := e.nestedSubs(g, sub)
				if err != nil {
					return err
				}
				c.addSubs(sub, prev...)
				c.addSubs(sub, b)
			}
			c.zoneFree = zoneFree
			if len(c.SubsFor(sub)) != n {
				return fmt.Errorf("%w: grouping of %s grew past %d", ErrInvariant, sub, n)
			}
			dst.items = append(dst.items, c)
			e.register(target, c, tags, stage)
			e.resume.lastSub[c] = b
		}
	}

	return nil
}

// nestedSubs resolves g's nested list for sub. A group seeded forward
// from the zone-free pass keys its subs under the zone-free sub-use, so
// a miss falls back to that variant.
func (e *Engine) nestedSubs(g *Composite, sub shape.Use) ([]*Composite, error) {
	if s := g.SubsFor(sub); s != nil {
		return s, nil
	}
	zf, err := e.reg.Rezone(sub, core.ZoneFree)
	if err != nil {
		return nil, err
	}
	if zf == sub {
		return nil, nil
	}

	return g.SubsFor(zf), nil
}

// comboVerticallyAllLeaves builds the same-kind leaf groupings for every
// repeated leaf entry of u's shape.
func (e *Engine) comboVerticallyAllLeaves(u shape.Use, stage Stage) error {
	sh := u.Shape
	for _, lc := range sh.Leaves() {
		if lc.Count < 2 {
			continue // lone leaves are attached horizontally
		}
		if stage == StageBaseline && !e.kinds[lc.Kind].Charged {
			continue
		}
		var target shape.Use
		if len(sh.Subs()) == 0 && len(sh.Leaves()) == 1 {
			target = u
		}
		if err := e.buildLeafChain(target, lc, u.Zone, stage); err != nil {
			return err
		}
	}

	return nil
}

// buildLeafChain grows the {kind: 2} … {kind: Count} grouping chain.
func (e *Engine) buildLeafChain(target shape.Use, lc shape.LeafCount, zone core.Zone, stage Stage) error {
	var prev shape.Use
	for n := 2; n <= lc.Count; n++ {
		tgt := target
		if n < lc.Count || target.Shape == nil {
			gsh, err := e.reg.GetOrIntern([]shape.LeafCount{{Kind: lc.Kind, Count: n}}, nil)
			if err != nil {
				return err
			}
			tgt = e.groupingUse(gsh, zone)
		}
		if tgt != target && e.cached(tgt) {
			prev = tgt

			continue
		}
		if err := e.comboVerticallyNLeaves(tgt, prev, lc.Kind, n, stage); err != nil {
			return err
		}
		prev = tgt
	}

	return nil
}

// comboVerticallyNLeaves builds n-leaf groupings of one kind. n == 2 is
// the i<j double loop over the candidate list; n > 2 extends each (n-1)
// group with candidates past its last leaf, which by ID-sortedness also
// guarantees disjointness.
func (e *Engine) comboVerticallyNLeaves(target, prev shape.Use, kind core.Kind, n int, stage Stage) error {
	dst, err := e.listFor(target, stage)
	if err != nil {
		return err
	}
	if n == 2 {
		cands := e.index.leavesFor(kind, stage, nil, target.Zone)
		for i := 0; i < len(cands); i++ {
			for j := i + 1; j < len(cands); j++ {
				l1, l2 := cands[i], cands[j]
				zoneFree := e.leafZoneFree(l1) && e.leafZoneFree(l2)
				if stage == StageFull && zoneFree {
					continue
				}
				tags, ok := e.intersect(e.leafTags(l1), e.leafTags(l2))
				if !ok {
					continue
				}
				c := e.pool.Composite()
				c.members = append(c.members, Member{Kind: kind, Leaf: l1}, Member{Kind: kind, Leaf: l2})
				c.zoneFree = zoneFree
				dst.items = append(dst.items, c)
				e.register(target, c, tags, stage)
				e.resume.lastLeaf[c] = l2
			}
		}

		return nil
	}
	for _, g := range e.itemsOf(prev) {
		gtags := e.tags[g]
		cands := e.index.leavesFor(kind, stage, gtags, target.Zone)
		start := e.resume.leafResume(g, cands)
		for _, lf := range cands[start:] {
			zoneFree := g.zoneFree && e.leafZoneFree(lf)
			if stage == StageFull && zoneFree {
				continue
			}
			tags, ok := e.intersect(gtags, e.leafTags(lf))
			if !ok {
				continue
			}
			c := e.pool.Composite()
			c.members = append(append(c.members, g.members...), Member{Kind: kind, Leaf: lf})
			c.zoneFree = zoneFree
			dst.items = append(dst.items, c)
			e.register(target, c, tags, stage)
			e.resume.lastLeaf[c] = lf
		}
	}

	return nil
}
