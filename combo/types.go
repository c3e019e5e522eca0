package combo

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

// ErrRegistryNil is returned by NewEngine for a nil registry.
var ErrRegistryNil = errors.New("combo: registry is nil")

// ErrNotFrozen is returned by NewEngine when the registry still accepts
// construction-phase interning; the engine needs the hot table.
var ErrNotFrozen = errors.New("combo: registry is not frozen")

// ErrNilShape is returned when a use without a shape reaches the engine.
var ErrNilShape = errors.New("combo: use has no shape")

// ErrDuplicateLeafID is returned by ResetForNewEvent when two leaves
// share an ID.
var ErrDuplicateLeafID = errors.New("combo: duplicate leaf id")

// ErrKindUnknown is returned when an event leaf carries a kind missing
// from the registry's table.
var ErrKindUnknown = errors.New("combo: unknown leaf kind")

// ErrInvariant reports a broken internal invariant (a missing memoized
// dependency or a grouping growing past its declared count). It always
// indicates a bug, never bad input.
var ErrInvariant = errors.New("combo: internal invariant violated")

// Stage selects which leaf kinds participate in a build pass.
type Stage uint8

const (
	// StageBaseline combines charged kinds only. Pure charged-class
	// shapes are built here exactly once and shared by reference.
	StageBaseline Stage = iota

	// StageZoneFree adds timing leaves whose measurement does not depend
	// on the zone.
	StageZoneFree

	// StageFull adds zone-dependent leaves for a concrete zone, seeded
	// with the zone-free results.
	StageFull
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageBaseline:
		return "baseline"
	case StageZoneFree:
		return "zone-free"
	case StageFull:
		return "full"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// CutFunc decides whether a candidate composite for the labeled parent
// survives. zone is the zone the composite was built for; for shapes
// with massive content the cut is deferred and replayed later through
// ApplyDeferredCuts with a resolved zone.
type CutFunc func(label shape.Label, c *Composite, zone core.Zone) bool

// IntersectFunc merges two tag sets and reports compatibility; see
// core.IntersectTags for the default semantics.
type IntersectFunc func(a, b core.TagSet) (core.TagSet, bool)

// Options configures an Engine.
type Options struct {
	// Cut gates labeled result lists. Nil passes everything.
	Cut CutFunc

	// Intersect overrides the tag-set intersection. Defaults to
	// core.IntersectTags.
	Intersect IntersectFunc

	// Logger receives debug traces of stage transitions and grouping
	// builds. Defaults to zap.NewNop().
	Logger *zap.Logger

	// PoolCapacity pre-sizes the composite free list.
	PoolCapacity int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Intersect:    core.IntersectTags,
		Logger:       zap.NewNop(),
		PoolCapacity: 256,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithCut installs the cut function gating labeled result lists.
func WithCut(f CutFunc) Option { return func(o *Options) { o.Cut = f } }

// WithIntersect overrides the tag-set intersection function.
func WithIntersect(f IntersectFunc) Option { return func(o *Options) { o.Intersect = f } }

// WithLogger installs a structured logger for engine traces.
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithPoolCapacity pre-sizes the composite pool.
func WithPoolCapacity(n int) Option { return func(o *Options) { o.PoolCapacity = n } }
