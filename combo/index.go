package combo

import (
	"fmt"
	"sort"

	"github.com/ostrov-d/combinat/core"
)

// leafIndex partitions an event's leaves for candidate retrieval.
//
// Charged and massive kinds get one per-kind list (tag and zone filters
// never apply to them). Timing kinds are partitioned by (zone, single
// tag); multi-tag queries are answered by memoized incremental set-unions
// of the single-tag lists. All lists are sorted by LeafID, which is what
// lets the resume cursors binary-search their way back in.
type leafIndex struct {
	kinds core.KindTable

	byKind map[core.Kind][]*core.Leaf
	parts  map[core.Kind]map[core.Zone]map[string][]*core.Leaf
	zones  []core.Zone
}

func newLeafIndex(kinds core.KindTable) *leafIndex {
	return &leafIndex{kinds: kinds}
}

// reset rebuilds the index for a new event's leaves.
func (x *leafIndex) reset(leaves []*core.Leaf) error {
	x.byKind = make(map[core.Kind][]*core.Leaf)
	x.parts = make(map[core.Kind]map[core.Zone]map[string][]*core.Leaf)
	x.zones = x.zones[:0]

	seen := make(map[core.LeafID]struct{}, len(leaves))
	zoneSet := make(map[core.Zone]struct{})
	for _, l := range leaves {
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateLeafID, l.ID)
		}
		seen[l.ID] = struct{}{}
		tr, ok := x.kinds.Traits(l.Kind)
		if !ok {
			return fmt.Errorf("%w: %d", ErrKindUnknown, l.Kind)
		}
		if !tr.Charged && !l.ZoneFree && l.Zone >= 0 {
			zoneSet[l.Zone] = struct{}{}
		}
	}
	for z := range zoneSet {
		x.zones = append(x.zones, z)
	}
	sort.Slice(x.zones, func(i, j int) bool { return x.zones[i] < x.zones[j] })

	for _, l := range leaves {
		tr := x.kinds[l.Kind]
		if !tr.Timing {
			x.byKind[l.Kind] = append(x.byKind[l.Kind], l)

			continue
		}
		x.place(l, core.ZoneUnknown)
		if l.ZoneFree {
			x.place(l, core.ZoneFree)
			for _, z := range x.zones {
				x.place(l, z)
			}
		} else {
			x.place(l, l.Zone)
		}
	}

	for k := range x.byKind {
		byID(x.byKind[k])
	}
	for _, zp := range x.parts {
		for _, tp := range zp {
			for key := range tp {
				byID(tp[key])
			}
		}
	}

	return nil
}

// place registers a timing leaf in one zone partition: under the
// all-tags key and under each of its single tags.
func (x *leafIndex) place(l *core.Leaf, z core.Zone) {
	zp := x.parts[l.Kind]
	if zp == nil {
		zp = make(map[core.Zone]map[string][]*core.Leaf)
		x.parts[l.Kind] = zp
	}
	tp := zp[z]
	if tp == nil {
		tp = make(map[string][]*core.Leaf)
		zp[z] = tp
	}
	tp[""] = append(tp[""], l)
	for _, t := range l.Tags {
		key := core.TagSet{t}.Key()
		tp[key] = append(tp[key], l)
	}
}

// leavesFor returns the candidate leaves of a kind for the given stage,
// tag filter and zone. The returned slice is shared and read-only.
func (x *leafIndex) leavesFor(kind core.Kind, stage Stage, tags core.TagSet, zone core.Zone) []*core.Leaf {
	tr, ok := x.kinds.Traits(kind)
	if !ok {
		return nil
	}
	if tr.Charged {
		return x.byKind[kind]
	}
	if !tr.Timing {
		// Non-timing neutrals join once their kinematics settle:
		// zone-independent ones from the zone-free stage on,
		// zone-dependent ones only with a concrete zone.
		if !tr.ZoneDep {
			if stage == StageBaseline {
				return nil
			}

			return x.byKind[kind]
		}
		if stage == StageFull {
			return x.byKind[kind]
		}

		return nil
	}
	if stage == StageBaseline {
		return nil
	}
	z := zone
	if stage == StageZoneFree {
		z = core.ZoneFree
	}
	zp := x.parts[kind]
	if zp == nil {
		return nil
	}
	tp := zp[z]
	if tp == nil {
		return nil
	}
	key := tags.Key()
	if l, cached := tp[key]; cached {
		return l
	}
	if len(tags) < 2 {
		return nil // absent single-tag partition: no such leaves
	}
	// Incremental memoized union: (n-1)-tag union ∪ nth single-tag list.
	prefix := x.leavesFor(kind, stage, tags[:len(tags)-1], zone)
	last := tp[core.TagSet{tags[len(tags)-1]}.Key()]
	merged := unionByID(prefix, last)
	tp[key] = merged

	return merged
}

// observedZones lists the concrete zones seen in this event, sorted.
func (x *leafIndex) observedZones() []core.Zone { return x.zones }

func byID(ls []*core.Leaf) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
}

// unionByID merges two ID-sorted leaf lists, deduplicating.
func unionByID(a, b []*core.Leaf) []*core.Leaf {
	out := make([]*core.Leaf, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].ID < b[j].ID:
			out = append(out, a[i])
			i++
		case a[i].ID > b[j].ID:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)

	return out
}
