package combo

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

// Engine holds all construction state for one event stream. It is not
// safe for concurrent use; run one Engine per worker.
type Engine struct {
	reg   *shape.Registry
	kinds core.KindTable
	opt   Options
	log   *zap.Logger

	pool  *Pool
	index *leafIndex

	// Per-event memoization. results is the use → result-list table;
	// byTag partitions each list by single tag (plus memoized merged
	// keys); tags is the composite → tag-set side table; ident resolves
	// aliased uses to the use that owns the shared list; uncut marks
	// labeled lists whose cut was deferred.
	results map[shape.Use]*comboList
	byTag   map[shape.Use]map[string]*comboList
	tags    map[*Composite]core.TagSet
	ident   map[shape.Use]shape.Use
	uncut   map[shape.Use]bool

	resume  *resumeTables
	scratch []core.LeafID
}

// NewEngine creates an engine over a frozen registry.
func NewEngine(reg *shape.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, ErrRegistryNil
	}
	if !reg.Frozen() {
		return nil, ErrNotFrozen
	}
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.Intersect == nil {
		o.Intersect = core.IntersectTags
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	e := &Engine{
		reg:    reg,
		kinds:  reg.Kinds(),
		opt:    o,
		log:    o.Logger,
		pool:   NewPool(o.PoolCapacity),
		index:  newLeafIndex(reg.Kinds()),
		resume: newResumeTables(),
	}
	e.clearEventState()

	return e, nil
}

// Pool exposes the engine's arena, mainly for instrumentation and tests.
func (e *Engine) Pool() *Pool { return e.pool }

// ResetForNewEvent recycles everything the previous event built (except
// exported composites) and indexes the new event's leaves.
func (e *Engine) ResetForNewEvent(leaves []*core.Leaf) error {
	recycled, exported := e.pool.RecycleAll()
	e.clearEventState()
	if err := e.index.reset(leaves); err != nil {
		return err
	}
	e.log.Debug("event reset",
		zap.Int("leaves", len(leaves)),
		zap.Int("recycled", recycled),
		zap.Int("exported", exported))

	return nil
}

func (e *Engine) clearEventState() {
	e.results = make(map[shape.Use]*comboList)
	e.byTag = make(map[shape.Use]map[string]*comboList)
	e.tags = make(map[*Composite]core.TagSet)
	e.ident = make(map[shape.Use]shape.Use)
	e.uncut = make(map[shape.Use]bool)
	e.resume.reset()
}

// Build runs all three stages for u and returns the final result list:
// the zone-free results once, plus every zone-dependent composite from
// each observed zone. Shorthand for BuildComposites(u, StageFull).
func (e *Engine) Build(u shape.Use) ([]*Composite, error) {
	return e.BuildComposites(u, StageFull)
}

// BuildComposites builds u up to the given stage and returns that
// stage's result list. Results are memoized: repeated calls and shared
// sub-uses reuse the cached lists. For StageFull with an unresolved
// zone the per-zone lists are concatenated without duplicating the
// shared zone-free prefix; with a concrete u.Zone (obtain it through
// Registry.Rezone) only that zone is built.
//
// The returned slice is owned by the caller; the composites it points at
// are owned by the pool until exported.
func (e *Engine) BuildComposites(u shape.Use, stage Stage) ([]*Composite, error) {
	if u.Shape == nil {
		return nil, ErrNilShape
	}
	e.log.Debug("build requested", zap.Stringer("use", u), zap.Stringer("stage", stage))

	// 1. Baseline: every maximal charged sub-use, enumerated and cut
	//    before anything downstream consumes it.
	if err := e.buildBaseline(u); err != nil {
		return nil, err
	}
	if u.Shape.Class() == core.ClassCharged {
		return append([]*Composite(nil), e.itemsOf(u)...), nil
	}
	if stage == StageBaseline {
		return nil, nil // non-charged shapes are deferred past baseline
	}

	// 2. Zone-free pass.
	zf, err := e.reg.Rezone(u, core.ZoneFree)
	if err != nil {
		return nil, err
	}
	if err := e.ensure(zf, StageZoneFree); err != nil {
		return nil, err
	}
	if stage == StageZoneFree {
		return append([]*Composite(nil), e.itemsOf(zf)...), nil
	}

	// 3. Full pass.
	if u.Zone != core.ZoneUnknown && u.Zone != core.ZoneFree {
		if err := e.ensure(u, StageFull); err != nil {
			return nil, err
		}

		return append([]*Composite(nil), e.itemsOf(u)...), nil
	}
	out := append([]*Composite(nil), e.itemsOf(zf)...)
	zones := e.index.observedZones()
	if len(zones) == 0 {
		// No leaf pinned a concrete zone this event; run the full pass
		// once on the unresolved variant so non-timing content still
		// combines.
		zones = []core.Zone{core.ZoneUnknown}
	}
	for _, z := range zones {
		uz, err := e.reg.Rezone(u, z)
		if err != nil {
			return nil, err
		}
		if err := e.ensure(uz, StageFull); err != nil {
			return nil, err
		}
		for _, c := range e.itemsOf(uz) {
			if !c.ZoneFree() {
				out = append(out, c)
			}
		}
	}

	return out, nil
}

// Results returns the cached result list for u, or nil. Read-only view.
func (e *Engine) Results(u shape.Use) []*Composite { return e.itemsOf(u) }

// TagsOf returns the compatibility-tag set recorded for c; nil means
// compatible with all.
func (e *Engine) TagsOf(c *Composite) core.TagSet { return e.tags[c] }

// Deferred reports whether u's result list was cached uncut because its
// shape has massive content.
func (e *Engine) Deferred(u shape.Use) bool { return e.uncut[u] }

// ApplyDeferredCuts replays the cut for a deferred list once the zone is
// resolved. The input is not mutated.
func (e *Engine) ApplyDeferredCuts(u shape.Use, combos []*Composite, zone core.Zone) []*Composite {
	if e.opt.Cut == nil || u.Parent == shape.LabelNone {
		return combos
	}
	out := make([]*Composite, 0, len(combos))
	for _, c := range combos {
		if e.opt.Cut(u.Parent, c, zone) {
			out = append(out, c)
		}
	}

	return out
}

// buildBaseline descends u and builds every maximal charged-class
// sub-use (and the in-shape groupings of repeated charged subs) at the
// baseline stage.
func (e *Engine) buildBaseline(u shape.Use) error {
	if u.Shape == nil {
		return ErrNilShape
	}
	if u.Shape.Class() == core.ClassCharged {
		if e.cached(u) {
			return nil
		}

		return e.createForUse(u, StageBaseline)
	}
	for _, sc := range u.Shape.Subs() {
		if err := e.buildBaseline(sc.Use); err != nil {
			return err
		}
		if sc.Count > 1 && sc.Use.Shape.Class() == core.ClassCharged {
			if err := e.buildSubChain(shape.Use{}, sc, core.ZoneUnknown, StageBaseline); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) ensure(u shape.Use, stage Stage) error {
	if e.cached(u) {
		return nil
	}

	return e.createForUse(u, stage)
}

// createForUse builds the grouping results for u's shape, then derives
// u's own list: identical for an unlabeled use, cut for a labeled one,
// aliased uncut when the shape has massive content (the cut needs a
// resolved zone and is deferred).
func (e *Engine) createForUse(u shape.Use, stage Stage) error {
	if u.Shape == nil {
		return ErrNilShape
	}
	if stage == StageBaseline && u.Shape.Class() != core.ClassCharged {
		return fmt.Errorf("%w: baseline build of %s shape %s", ErrInvariant, u.Shape.Class(), u)
	}
	g := u.Grouping()
	if !e.cached(g) {
		e.log.Debug("building grouping", zap.Stringer("use", g), zap.Stringer("stage", stage))
		if err := e.createGrouping(g, stage); err != nil {
			return fmt.Errorf("combo: grouping %s: %w", g, err)
		}
	}
	if u == g || e.cached(u) {
		return nil
	}
	if u.Shape.HasMassive() || e.opt.Cut == nil {
		e.aliasResults(u, g)
		if u.Shape.HasMassive() && e.opt.Cut != nil {
			e.uncut[u] = true
		}

		return nil
	}
	dst := e.pool.List()
	e.results[u] = dst

	// At the full stage the zone-free labeled survivors are carried
	// forward as-is; their cut already ran in the zone-free pass and
	// must not run again.
	seeded := false
	if stage == StageFull {
		zfu, err := e.reg.Rezone(u, core.ZoneFree)
		if err != nil {
			return err
		}
		if src, ok := e.results[zfu]; ok && zfu != u {
			for _, c := range src.items {
				dst.items = append(dst.items, c)
				e.register(u, c, e.tags[c], stage)
			}
			seeded = true
		}
	}
	for _, c := range e.itemsOf(g) {
		if seeded && c.ZoneFree() {
			continue
		}
		if !e.opt.Cut(u.Parent, c, u.Zone) {
			continue
		}
		dst.items = append(dst.items, c)
		e.register(u, c, e.tags[c], stage)
	}

	return nil
}

// createGrouping enumerates the unlabeled grouping for u's shape:
// vertical same-component groupings first, then the horizontal assembly
// across components.
func (e *Engine) createGrouping(u shape.Use, stage Stage) error {
	sh := u.Shape

	// A lone count-1 sub entry: the grouping is the sub's list itself.
	if len(sh.Leaves()) == 0 && len(sh.Subs()) == 1 && sh.Subs()[0].Count == 1 {
		sc := sh.Subs()[0]
		if !e.cached(sc.Use) {
			if err := e.createForUse(sc.Use, stage); err != nil {
				return err
			}
		}
		e.aliasResults(u, sc.Use)

		return nil
	}

	if _, err := e.listFor(u, stage); err != nil {
		return err
	}
	if err := e.comboVerticallyAllSubs(u, stage); err != nil {
		return err
	}
	if stage == StageBaseline || sh.Class() == core.ClassNeutral {
		if err := e.comboVerticallyAllLeaves(u, stage); err != nil {
			return err
		}
	}

	return e.comboHorizontallyAll(u, stage)
}

// listFor returns u's result list, creating it on first touch. At the
// full stage a fresh list is seeded with the zone-free variant's
// composites so they are shared, not rebuilt.
func (e *Engine) listFor(u shape.Use, stage Stage) (*comboList, error) {
	if l, ok := e.results[u]; ok {
		return l, nil
	}
	l := e.pool.List()
	e.results[u] = l
	if stage == StageFull {
		if err := e.seedZoneFree(u, l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// seedZoneFree copies the zone-free variant's results into a full-stage
// list, re-registering positions and partitions under the new use.
func (e *Engine) seedZoneFree(u shape.Use, l *comboList) error {
	zf, err := e.reg.Rezone(u, core.ZoneFree)
	if err != nil {
		return err
	}
	if zf == u {
		return nil
	}
	src, ok := e.results[zf]
	if !ok {
		return nil
	}
	for _, c := range src.items {
		l.items = append(l.items, c)
		e.register(u, c, e.tags[c], StageFull)
	}

	return nil
}

// aliasResults makes u share g's list, partitions and positions.
func (e *Engine) aliasResults(u, g shape.Use) {
	e.ident[u] = e.identOf(g)
	e.results[u] = e.results[g]
}

// register records a composite that was just appended to u's list: its
// tag set, its position for the resume cursors, and its membership in
// the per-single-tag partitions.
func (e *Engine) register(u shape.Use, c *Composite, tags core.TagSet, stage Stage) {
	if len(tags) > 0 {
		e.tags[c] = tags
	}
	id := e.identOf(u)
	if len(tags) == 0 {
		e.resume.listPos[listPosKey{c: c, u: id, tags: ""}] = len(e.results[id].items) - 1

		return
	}
	if stage == StageBaseline {
		return
	}
	parts := e.partsFor(id)
	for _, t := range tags {
		key := core.TagSet{t}.Key()
		pl := parts[key]
		if pl == nil {
			pl = e.pool.List()
			parts[key] = pl
		}
		pl.items = append(pl.items, c)
		e.resume.listPos[listPosKey{c: c, u: id, tags: key}] = len(pl.items) - 1
	}
}

// combosFor returns the tag-filtered candidates of u and the partition
// key the caller must use for resume lookups. Charged-class uses and
// empty filters read the full list; multi-tag filters materialize a
// memoized union of the single-tag partitions, in creation order.
func (e *Engine) combosFor(u shape.Use, tags core.TagSet) ([]*Composite, string, error) {
	id := e.identOf(u)
	if u.Shape.Class() == core.ClassCharged || len(tags) == 0 {
		return e.itemsOf(id), "", nil
	}
	key := tags.Key()
	parts := e.partsFor(id)
	if pl, ok := parts[key]; ok {
		return pl.items, key, nil
	}
	if len(tags) == 1 {
		pl := e.pool.List()
		parts[key] = pl

		return pl.items, key, nil
	}
	prefix, _, err := e.combosFor(u, tags[:len(tags)-1])
	if err != nil {
		return nil, "", err
	}
	var last []*Composite
	if pl, ok := parts[core.TagSet{tags[len(tags)-1]}.Key()]; ok {
		last = pl.items
	}
	merged := e.pool.List()
	merged.items = unionBySeq(merged.items, prefix, last)
	for i, c := range merged.items {
		e.resume.listPos[listPosKey{c: c, u: id, tags: key}] = i
	}
	parts[key] = merged

	return merged.items, key, nil
}

func (e *Engine) partsFor(id shape.Use) map[string]*comboList {
	parts := e.byTag[id]
	if parts == nil {
		parts = make(map[string]*comboList)
		e.byTag[id] = parts
	}

	return parts
}

func (e *Engine) identOf(u shape.Use) shape.Use {
	if v, ok := e.ident[u]; ok {
		return v
	}

	return u
}

func (e *Engine) itemsOf(u shape.Use) []*Composite {
	if l, ok := e.results[u]; ok {
		return l.items
	}

	return nil
}

func (e *Engine) cached(u shape.Use) bool {
	_, ok := e.results[u]

	return ok
}

func (e *Engine) intersect(a, b core.TagSet) (core.TagSet, bool) {
	return e.opt.Intersect(a, b)
}

// groupingUse wraps a derived grouping shape in an unlabeled use.
// Charged-class groupings normalize to ZoneUnknown so every stage shares
// the baseline-built list.
func (e *Engine) groupingUse(sh *shape.Shape, zone core.Zone) shape.Use {
	if sh.Class() == core.ClassCharged {
		zone = core.ZoneUnknown
	}

	return shape.Use{Zone: zone, Shape: sh}
}

// leafZoneFree reports whether adding l keeps a composite zone-free.
func (e *Engine) leafZoneFree(l *core.Leaf) bool {
	tr := e.kinds[l.Kind]
	if tr.Charged {
		return true
	}
	if tr.Timing {
		return l.ZoneFree
	}

	return !tr.ZoneDep
}

// leafTags returns the tag set a leaf contributes to intersections;
// only timing kinds constrain.
func (e *Engine) leafTags(l *core.Leaf) core.TagSet {
	if e.kinds[l.Kind].Timing {
		return l.Tags
	}

	return nil
}

// sortedLeafIDs resolves c's full leaf chain into the engine's scratch
// buffer, sorted by ID. Valid until the next call.
func (e *Engine) sortedLeafIDs(c *Composite) []core.LeafID {
	e.scratch = appendSortedLeafIDs(e.scratch[:0], c)

	return e.scratch
}

// unionBySeq merges two creation-ordered composite lists into dst,
// deduplicating by sequence number.
func unionBySeq(dst, a, b []*Composite) []*Composite {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].seq < b[j].seq:
			dst = append(dst, a[i])
			i++
		case a[i].seq > b[j].seq:
			dst = append(dst, b[j])
			j++
		default:
			dst = append(dst, a[i])
			i++
			j++
		}
	}
	dst = append(dst, a[i:]...)
	dst = append(dst, b[j:]...)

	return dst
}
