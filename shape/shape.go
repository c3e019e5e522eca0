package shape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ostrov-d/combinat/core"
)

// Label names a decaying parent whose cut gates a result list.
// LabelNone marks a pure grouping with no cut attached.
type Label int16

// LabelNone is the zero label.
const LabelNone Label = 0

// LeafCount is one leaf-kind entry of a shape.
type LeafCount struct {
	Kind  core.Kind
	Count int
}

// SubCount is one sub-use entry of a shape.
type SubCount struct {
	Use   Use
	Count int
}

// Shape is an interned multiset recipe: so many leaves of each kind plus
// so many composites of each sub-use. Immutable after interning; compare
// shapes by pointer.
type Shape struct {
	leaves []LeafCount
	subs   []SubCount

	key     string
	class   core.ChargeClass
	zoneDep bool
	massive bool
}

// Leaves returns the leaf entries, sorted by kind. Read-only view.
func (s *Shape) Leaves() []LeafCount { return s.leaves }

// Subs returns the sub-use entries in canonical order. Read-only view.
func (s *Shape) Subs() []SubCount { return s.subs }

// NumEntries is the number of distinct components (leaf kinds plus
// sub-uses) at the direct level.
func (s *Shape) NumEntries() int { return len(s.leaves) + len(s.subs) }

// Class is the charge class of the full content, cached at interning.
func (s *Shape) Class() core.ChargeClass { return s.class }

// ZoneDep reports whether any content kind has zone-dependent kinematics.
func (s *Shape) ZoneDep() bool { return s.zoneDep }

// HasMassive reports whether any content kind is massive; such shapes are
// cached uncut until a zone is resolved.
func (s *Shape) HasMassive() bool { return s.massive }

// HasLeafEntry reports whether e appears verbatim at the direct level.
func (s *Shape) HasLeafEntry(e LeafCount) bool {
	for _, l := range s.leaves {
		if l == e {
			return true
		}
	}

	return false
}

// HasSubEntry reports whether e appears verbatim at the direct level.
func (s *Shape) HasSubEntry(e SubCount) bool {
	for _, d := range s.subs {
		if d == e {
			return true
		}
	}

	return false
}

// String returns the canonical content key.
func (s *Shape) String() string { return s.key }

// Use applies a shape in a context. The zero Parent means no cut; Zone
// scopes the memoized result lists by stage variant. Use is comparable
// and is the key of every per-event result table.
type Use struct {
	Parent Label
	Zone   core.Zone
	Shape  *Shape
}

// Grouping strips the parent label, yielding the pure-grouping variant
// whose uncut results back the labeled list.
func (u Use) Grouping() Use {
	u.Parent = LabelNone

	return u
}

// WithZone returns u retargeted at zone. The shape is not rezoned; see
// Registry.Rezone for the deep variant.
func (u Use) WithZone(z core.Zone) Use {
	u.Zone = z

	return u
}

// String renders the use for logs and errors.
func (u Use) String() string {
	if u.Shape == nil {
		return "use(nil)"
	}

	return fmt.Sprintf("use(p%d z%d %s)", u.Parent, u.Zone, u.Shape.key)
}

// contentKey builds the canonical key for a shape's (sorted) content.
// Sub keys embed the sub shape's own key, so equality of keys is equality
// of recursive content.
func contentKey(leaves []LeafCount, subs []SubCount) string {
	var b strings.Builder
	for i, l := range leaves {
		if i > 0 {
			b.WriteByte('+')
		}
		b.WriteByte('k')
		b.WriteString(strconv.Itoa(int(l.Kind)))
		b.WriteByte('x')
		b.WriteString(strconv.Itoa(l.Count))
	}
	for _, d := range subs {
		b.WriteString("[p")
		b.WriteString(strconv.Itoa(int(d.Use.Parent)))
		b.WriteByte('z')
		b.WriteString(strconv.Itoa(int(d.Use.Zone)))
		b.WriteByte(' ')
		b.WriteString(d.Use.Shape.key)
		b.WriteByte('x')
		b.WriteString(strconv.Itoa(d.Count))
		b.WriteByte(']')
	}

	return b.String()
}
