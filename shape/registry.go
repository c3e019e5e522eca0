package shape

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ostrov-d/combinat/core"
)

// ErrFrozen is returned by Intern after Freeze; construction-phase
// interning is over at that point.
var ErrFrozen = errors.New("shape: registry is frozen")

// ErrKindUnknown is returned when a shape references a kind missing from
// the registry's KindTable.
var ErrKindUnknown = errors.New("shape: unknown kind")

// ErrBadCount is returned for non-positive entry counts.
var ErrBadCount = errors.New("shape: entry count must be positive")

// ErrNilShape is returned when a Use without a shape reaches the registry.
var ErrNilShape = errors.New("shape: use has no shape")

// ErrEmptyShape is returned when a shape has no content at all.
var ErrEmptyShape = errors.New("shape: no leaves and no subs")

type rezoneKey struct {
	u    Use
	zone core.Zone
}

// Registry interns shapes over a fixed KindTable. Not safe for concurrent
// use; the engine is single-threaded per instance.
type Registry struct {
	table core.KindTable

	byKey  map[string]*Shape // construction table
	sorted []*Shape          // hot table, ordered by content key
	frozen bool

	rezone map[rezoneKey]Use
}

// NewRegistry creates an empty registry over table.
func NewRegistry(table core.KindTable) *Registry {
	return &Registry{
		table:  table,
		byKey:  make(map[string]*Shape),
		rezone: make(map[rezoneKey]Use),
	}
}

// Kinds exposes the registry's kind table.
func (r *Registry) Kinds() core.KindTable { return r.table }

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen }

// Len is the number of interned shapes.
func (r *Registry) Len() int {
	if r.frozen {
		return len(r.sorted)
	}

	return len(r.byKey)
}

// Intern canonicalizes and interns a shape in the construction table.
// Identical content returns the identical pointer. Fails after Freeze.
func (r *Registry) Intern(leaves []LeafCount, subs []SubCount) (*Shape, error) {
	if r.frozen {
		return nil, ErrFrozen
	}

	return r.intern(leaves, subs)
}

// Freeze moves the construction table into the sorted hot table. After
// Freeze only GetOrIntern may add shapes.
func (r *Registry) Freeze() {
	if r.frozen {
		return
	}
	r.sorted = make([]*Shape, 0, len(r.byKey))
	for _, s := range r.byKey {
		r.sorted = append(r.sorted, s)
	}
	// The hot table orders by canonical content key: the binary search
	// only needs a consistent total order over content, and the key is
	// already materialized per shape.
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].key < r.sorted[j].key })
	r.frozen = true
}

// GetOrIntern interns via the hot table: binary search on the canonical
// key, insert in place on a miss. Before Freeze it falls through to the
// construction table.
func (r *Registry) GetOrIntern(leaves []LeafCount, subs []SubCount) (*Shape, error) {
	if !r.frozen {
		return r.intern(leaves, subs)
	}
	ls, ss, err := r.canonicalize(leaves, subs)
	if err != nil {
		return nil, err
	}
	key := contentKey(ls, ss)
	i := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i].key >= key })
	if i < len(r.sorted) && r.sorted[i].key == key {
		return r.sorted[i], nil
	}
	s, err := r.build(ls, ss, key)
	if err != nil {
		return nil, err
	}
	r.sorted = append(r.sorted, nil)
	copy(r.sorted[i+1:], r.sorted[i:])
	r.sorted[i] = s

	return s, nil
}

// Rezone rebuilds a use tree for a target zone. Charged-class shapes do
// not depend on zone and are returned unchanged; other shapes are
// re-interned with every non-charged sub-use retargeted recursively.
// Results are memoized for the registry's lifetime.
func (r *Registry) Rezone(u Use, zone core.Zone) (Use, error) {
	if u.Shape == nil {
		return Use{}, ErrNilShape
	}
	if u.Shape.class == core.ClassCharged || u.Zone == zone {
		return u, nil
	}
	k := rezoneKey{u: u, zone: zone}
	if out, ok := r.rezone[k]; ok {
		return out, nil
	}
	subs := make([]SubCount, len(u.Shape.subs))
	copy(subs, u.Shape.subs)
	for i, d := range subs {
		if d.Use.Shape.class == core.ClassCharged {
			continue
		}
		ru, err := r.Rezone(d.Use, zone)
		if err != nil {
			return Use{}, err
		}
		subs[i].Use = ru
	}
	sh, err := r.GetOrIntern(u.Shape.leaves, subs)
	if err != nil {
		return Use{}, err
	}
	out := Use{Parent: u.Parent, Zone: zone, Shape: sh}
	r.rezone[k] = out

	return out, nil
}

func (r *Registry) intern(leaves []LeafCount, subs []SubCount) (*Shape, error) {
	ls, ss, err := r.canonicalize(leaves, subs)
	if err != nil {
		return nil, err
	}
	key := contentKey(ls, ss)
	if s, ok := r.byKey[key]; ok {
		return s, nil
	}
	s, err := r.build(ls, ss, key)
	if err != nil {
		return nil, err
	}
	r.byKey[key] = s

	return s, nil
}

// canonicalize validates entries and returns sorted copies: leaves by
// kind, subs by (label, zone, recursive content).
func (r *Registry) canonicalize(leaves []LeafCount, subs []SubCount) ([]LeafCount, []SubCount, error) {
	if len(leaves) == 0 && len(subs) == 0 {
		return nil, nil, ErrEmptyShape
	}
	var ls []LeafCount
	if len(leaves) > 0 {
		ls = make([]LeafCount, len(leaves))
		copy(ls, leaves)
		for _, l := range ls {
			if l.Count <= 0 {
				return nil, nil, fmt.Errorf("%w: kind %d count %d", ErrBadCount, l.Kind, l.Count)
			}
			if _, ok := r.table[l.Kind]; !ok {
				return nil, nil, fmt.Errorf("%w: kind %d", ErrKindUnknown, l.Kind)
			}
		}
		sort.Slice(ls, func(i, j int) bool { return ls[i].Kind < ls[j].Kind })
	}
	var ss []SubCount
	if len(subs) > 0 {
		ss = make([]SubCount, len(subs))
		copy(ss, subs)
		for _, d := range ss {
			if d.Count <= 0 {
				return nil, nil, fmt.Errorf("%w: sub %s count %d", ErrBadCount, d.Use, d.Count)
			}
			if d.Use.Shape == nil {
				return nil, nil, ErrNilShape
			}
		}
		sort.Slice(ss, func(i, j int) bool {
			a, b := ss[i].Use, ss[j].Use
			if a.Parent != b.Parent {
				return a.Parent < b.Parent
			}
			if a.Zone != b.Zone {
				return a.Zone < b.Zone
			}

			return a.Shape.key < b.Shape.key
		})
	}

	return ls, ss, nil
}

// build derives the cached shape properties from the canonical entries.
func (r *Registry) build(leaves []LeafCount, subs []SubCount, key string) (*Shape, error) {
	var hasCharged, hasOther, zoneDep, massive bool
	for _, l := range leaves {
		tr := r.table[l.Kind]
		if tr.Charged {
			hasCharged = true
		} else {
			hasOther = true
		}
		zoneDep = zoneDep || tr.ZoneDep
		massive = massive || tr.Massive
	}
	for _, d := range subs {
		switch d.Use.Shape.class {
		case core.ClassCharged:
			hasCharged = true
		case core.ClassNeutral:
			hasOther = true
		case core.ClassMixed:
			hasCharged = true
			hasOther = true
		}
		zoneDep = zoneDep || d.Use.Shape.zoneDep
		massive = massive || d.Use.Shape.massive
	}
	class := core.ClassMixed
	switch {
	case hasCharged && !hasOther:
		class = core.ClassCharged
	case !hasCharged && hasOther:
		class = core.ClassNeutral
	}

	return &Shape{
		leaves:  leaves,
		subs:    subs,
		key:     key,
		class:   class,
		zoneDep: zoneDep,
		massive: massive,
	}, nil
}
