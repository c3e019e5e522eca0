// Package combo is the staged combinatorial construction engine: it
// enumerates every valid composite an event's leaves can form under the
// registered shapes, memoizing each (use, stage) result exactly once.
//
// What?
//
//   - Engine: per-instance state (no globals). ResetForNewEvent indexes
//     the event's leaves and bulk-recycles everything the previous event
//     allocated; Build / BuildComposites run the staged construction.
//   - Composite: one assembled candidate — direct leaf members plus
//     sub-composites nested by use. Composites are pooled; ownership of a
//     result transfers to the caller only through Export.
//   - Pool: the per-event arena. Acquire is O(1) off a free list;
//     RecycleAll returns every non-exported composite in bulk.
//
// How the construction works
//
// Vertical steps grow N same-component groupings from the memoized N−1
// grouping, resuming each group's candidate scan after the last element
// it took (a side-table cursor), which enumerates combinations rather
// than permutations with no ordering checks. Horizontal steps assemble a
// multi-component shape from a cached all-but-one result plus the missing
// component, preferring decays over loose leaves and recursively building
// the cheapest subset when nothing is cached. Every merge intersects
// compatibility tags (empty set = compatible with all; two constrained
// sets with no overlap prune the branch) and rejects candidates sharing a
// leaf with the partial (binary search against its sorted leaf chain).
//
// Stages: StageBaseline builds pure charged-class shapes once, shared by
// reference ever after; StageZoneFree adds zone-free timing leaves;
// StageFull adds zone-dependent leaves per concrete zone, seeding each
// list with the zone-free results so nothing is enumerated twice.
//
// Complexity: output-sensitive; each composite is constructed once and
// every later consumer reads the cached list.
//
// Errors: ErrRegistryNil, ErrNotFrozen, ErrNilShape, ErrDuplicateLeafID,
// ErrKindUnknown, ErrInvariant.
package combo
