package core

import "fmt"

// Kind identifies a leaf type within the caller's fixed enumeration.
type Kind uint16

// LeafID is the caller-assigned identity of a leaf. IDs must be unique
// within one event; they define the total candidate order used by the
// resume cursors and the disjointness checks.
type LeafID int

// Zone is a coarse position bucket. Concrete zones are non-negative;
// the two sentinels below never collide with them.
type Zone int8

const (
	// ZoneUnknown marks an unresolved or irrelevant zone.
	ZoneUnknown Zone = -1
	// ZoneFree marks content whose kinematics do not depend on the zone.
	ZoneFree Zone = -2
)

// ChargeClass partitions shapes by the traits of their full content.
type ChargeClass uint8

const (
	// ClassCharged: every leaf kind in the shape is charged.
	ClassCharged ChargeClass = iota
	// ClassNeutral: no leaf kind in the shape is charged.
	ClassNeutral
	// ClassMixed: both charged and non-charged kinds appear.
	ClassMixed
)

// String implements fmt.Stringer.
func (c ChargeClass) String() string {
	switch c {
	case ClassCharged:
		return "charged"
	case ClassNeutral:
		return "neutral"
	case ClassMixed:
		return "mixed"
	default:
		return fmt.Sprintf("ChargeClass(%d)", uint8(c))
	}
}

// KindTraits holds the per-kind properties that drive the staged build.
type KindTraits struct {
	// Charged kinds are combined in the baseline stage and ignore tag
	// and zone filters.
	Charged bool

	// Timing kinds carry a TagSet; candidate retrieval is filtered by
	// tag intersection.
	Timing bool

	// Massive kinds are compatible with every tag and zone until a cut
	// with a resolved zone is applied; shapes containing them are cached
	// uncut.
	Massive bool

	// ZoneDep kinds have zone-dependent kinematics and are only added in
	// the full stage.
	ZoneDep bool
}

// KindTable maps every kind the caller uses to its traits. It is built
// once at setup and read-only afterwards.
type KindTable map[Kind]KindTraits

// Traits returns the traits of k and whether k is registered.
func (t KindTable) Traits(k Kind) (KindTraits, bool) {
	tr, ok := t[k]

	return tr, ok
}

// Leaf is one detected signal. The engine stores *Leaf pointers and never
// copies or mutates leaves; the caller owns them.
type Leaf struct {
	// ID is the unique identity within the event.
	ID LeafID

	// Kind selects the traits row in the KindTable.
	Kind Kind

	// Zone is the concrete zone for zone-dependent timing kinds;
	// ZoneUnknown otherwise.
	Zone Zone

	// Tags is the compatibility-tag set. Empty means compatible with all.
	Tags TagSet

	// ZoneFree marks a timing leaf whose measurement does not depend on
	// the zone; such leaves participate in the zone-free stage and in
	// every concrete zone.
	ZoneFree bool
}
