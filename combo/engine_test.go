package combo_test

import (
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ostrov-d/combinat/combo"
	"github.com/ostrov-d/combinat/core"
	"github.com/ostrov-d/combinat/shape"
)

const (
	kTrack  core.Kind = 1 // charged
	kShower core.Kind = 2 // timing, zone-dependent
	kHadron core.Kind = 3 // massive, zone-dependent
)

func testTable() core.KindTable {
	return core.KindTable{
		kTrack:  {Charged: true},
		kShower: {Timing: true, ZoneDep: true},
		kHadron: {Massive: true, ZoneDep: true},
	}
}

// intern is a must-style wrapper for registry construction in tests.
func intern(t *testing.T, reg *shape.Registry, ls []shape.LeafCount, ss []shape.SubCount) *shape.Shape {
	t.Helper()
	sh, err := reg.Intern(ls, ss)
	require.NoError(t, err)

	return sh
}

func track(id core.LeafID) *core.Leaf {
	return &core.Leaf{ID: id, Kind: kTrack, Zone: core.ZoneUnknown}
}

func shower(id core.LeafID, zone core.Zone, tags ...core.Tag) *core.Leaf {
	return &core.Leaf{ID: id, Kind: kShower, Zone: zone, Tags: core.NewTagSet(tags...)}
}

func freeShower(id core.LeafID, tags ...core.Tag) *core.Leaf {
	return &core.Leaf{ID: id, Kind: kShower, Zone: core.ZoneUnknown, Tags: core.NewTagSet(tags...), ZoneFree: true}
}

func hadron(id core.LeafID) *core.Leaf {
	return &core.Leaf{ID: id, Kind: kHadron, Zone: core.ZoneUnknown}
}

// idsOf returns the sorted recursive leaf IDs of one composite.
func idsOf(c *combo.Composite) []core.LeafID {
	ls := c.Leaves(nil, true)
	ids := make([]core.LeafID, 0, len(ls))
	for _, l := range ls {
		ids = append(ids, l.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// idSets collects the leaf-ID sets of a result list for order-insensitive
// comparison against expectations.
func idSets(cs []*combo.Composite) [][]core.LeafID {
	out := make([][]core.LeafID, 0, len(cs))
	for _, c := range cs {
		out = append(out, idsOf(c))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}

		return len(a) < len(b)
	})

	return out
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := combo.NewEngine(nil)
	assert.ErrorIs(t, err, combo.ErrRegistryNil)

	reg := shape.NewRegistry(testTable())
	_, err = combo.NewEngine(reg)
	assert.ErrorIs(t, err, combo.ErrNotFrozen)

	reg.Freeze()
	e, err := combo.NewEngine(reg)
	require.NoError(t, err)

	_, err = e.BuildComposites(shape.Use{}, combo.StageFull)
	assert.ErrorIs(t, err, combo.ErrNilShape)
}

func TestResetForNewEvent_Validation(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	reg.Freeze()
	e, err := combo.NewEngine(reg)
	require.NoError(t, err)

	err = e.ResetForNewEvent([]*core.Leaf{track(1), track(1)})
	assert.ErrorIs(t, err, combo.ErrDuplicateLeafID)

	err = e.ResetForNewEvent([]*core.Leaf{{ID: 1, Kind: 99}})
	assert.ErrorIs(t, err, combo.ErrKindUnknown)
}

func TestBuildComposites_ChargedPairs(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kTrack, Count: 2}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: pair}

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{track(1), track(2), track(3), track(4)}))

	out, err := e.BuildComposites(u, combo.StageBaseline)
	require.NoError(t, err)

	want := [][]core.LeafID{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}}
	assert.Empty(t, cmp.Diff(want, idSets(out)))
	for _, c := range out {
		assert.Len(t, c.Members(), 2)
		assert.True(t, c.ZoneFree())
	}

	// Later stages reuse the baseline list by reference.
	full, err := e.Build(u)
	require.NoError(t, err)
	assert.Equal(t, out, full)
}

func TestBuildComposites_TripleGrouping(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	triple := intern(t, reg, []shape.LeafCount{{Kind: kTrack, Count: 3}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: triple}

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{track(1), track(2), track(3), track(4)}))

	out, err := e.BuildComposites(u, combo.StageBaseline)
	require.NoError(t, err)

	want := [][]core.LeafID{{1, 2, 3}, {1, 2, 4}, {1, 3, 4}, {2, 3, 4}}
	assert.Equal(t, want, idSets(out))
}

func TestBuild_LabeledDecayWithCut(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kTrack, Count: 2}}, nil)
	const decayLabel shape.Label = 7
	pairUse := shape.Use{Parent: decayLabel, Zone: core.ZoneUnknown, Shape: pair}

	top := intern(t, reg,
		[]shape.LeafCount{{Kind: kTrack, Count: 1}},
		[]shape.SubCount{{Use: pairUse, Count: 1}})
	reg.Freeze()

	// One spectator track plus the decay pair; the pair {4,5} fails the cut.
	cutCalls := 0
	cut := func(label shape.Label, c *combo.Composite, zone core.Zone) bool {
		cutCalls++
		assert.Equal(t, decayLabel, label)

		return !assert.ObjectsAreEqual([]core.LeafID{4, 5}, idsOf(c))
	}

	e, err := combo.NewEngine(reg, combo.WithCut(cut))
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		track(1), track(2), track(3), track(4), track(5),
	}))

	topUse := shape.Use{Zone: core.ZoneUnknown, Shape: top}
	out, err := e.Build(topUse)
	require.NoError(t, err)

	// The spectator leaf 1 is consumed by the direct entry, so surviving
	// pairs draw from {2..5} when combined with it: C(4,2)=6 minus the
	// overlap-free accounting below. Every composite nests the pair under
	// its labeled use rather than flattening it.
	for _, c := range out {
		require.Len(t, c.Members(), 1)
		sub := c.SubsFor(pairUse)
		require.Len(t, sub, 1)
		assert.Len(t, sub[0].Members(), 2)
		assert.NotEqual(t, []core.LeafID{4, 5}, idsOf(sub[0]))
	}

	// 10 candidate pairs, each cut exactly once; 9 survive, and each pair
	// leaves 3 tracks for the spectator slot.
	assert.Equal(t, 10, cutCalls)
	assert.Len(t, out, 27)

	// Memoized: rebuilding runs no further cuts.
	again, err := e.Build(topUse)
	require.NoError(t, err)
	assert.Equal(t, 10, cutCalls)
	assert.Len(t, again, 27)
}

func TestBuild_SharedDecayList(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kTrack, Count: 2}}, nil)
	const decayLabel shape.Label = 3
	pairUse := shape.Use{Parent: decayLabel, Zone: core.ZoneUnknown, Shape: pair}
	double := intern(t, reg, nil, []shape.SubCount{{Use: pairUse, Count: 2}})
	reg.Freeze()

	cutCalls := 0
	cut := func(label shape.Label, c *combo.Composite, zone core.Zone) bool {
		cutCalls++

		return !assert.ObjectsAreEqual([]core.LeafID{3, 4}, idsOf(c))
	}

	e, err := combo.NewEngine(reg, combo.WithCut(cut))
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		track(1), track(2), track(3), track(4),
	}))

	u := shape.Use{Zone: core.ZoneUnknown, Shape: double}
	out, err := e.Build(u)
	require.NoError(t, err)

	// 6 candidate pairs, {3,4} cut; of the disjoint pairings
	// {12|34}, {13|24}, {14|23} the first lost a member.
	assert.Equal(t, 6, cutCalls)
	require.Len(t, out, 2)
	for _, c := range out {
		assert.Empty(t, c.Members())
		assert.Len(t, c.SubsFor(pairUse), 2)
		assert.Equal(t, []core.LeafID{1, 2, 3, 4}, idsOf(c))
	}

	// The decay list is shared: a second consumer runs no further cuts.
	direct, err := e.Build(pairUse)
	require.NoError(t, err)
	assert.Len(t, direct, 5)
	assert.Equal(t, 6, cutCalls)
}

func TestBuildComposites_TagIntersection(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kShower, Count: 2}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: pair}

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		freeShower(1, 1, 2),
		freeShower(2, 2, 3),
		freeShower(3, 5),
	}))

	out, err := e.BuildComposites(u, combo.StageZoneFree)
	require.NoError(t, err)

	// Only {1,2} and {2,3} share a tag; both pairings with leaf 3 are
	// pruned. The surviving pair carries the narrowed set.
	require.Len(t, out, 1)
	assert.Equal(t, []core.LeafID{1, 2}, idsOf(out[0]))
	assert.True(t, e.TagsOf(out[0]).Equal(core.TagSet{2}))
}

func TestBuild_StagedZones(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kShower, Count: 2}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: pair}

	e, err := combo.NewEngine(reg, combo.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		freeShower(1, 1),
		freeShower(2, 1),
		shower(3, 1, 1),
		shower(4, 1, 1),
	}))

	zf, err := e.BuildComposites(u, combo.StageZoneFree)
	require.NoError(t, err)
	require.Len(t, zf, 1)
	assert.Equal(t, []core.LeafID{1, 2}, idsOf(zf[0]))
	assert.True(t, zf[0].ZoneFree())

	// The full build returns the zone-free pair once plus every pair that
	// touches a zone-dependent leaf.
	out, err := e.Build(u)
	require.NoError(t, err)

	want := [][]core.LeafID{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}}
	assert.Empty(t, cmp.Diff(want, idSets(out)))

	free := 0
	for _, c := range out {
		if c.ZoneFree() {
			free++
		}
	}
	assert.Equal(t, 1, free)
}

func TestBuild_ConcreteZone(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kShower, Count: 2}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: pair}

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		freeShower(1, 1),
		shower(2, 0, 1),
		shower(3, 1, 1),
		shower(4, 1, 1),
	}))

	u1, err := reg.Rezone(u, 1)
	require.NoError(t, err)
	out, err := e.BuildComposites(u1, combo.StageFull)
	require.NoError(t, err)

	// Zone 1 sees the zone-free leaf plus its own two; the zone-0 leaf
	// never enters, and the purely zone-free pairing does not exist here.
	want := [][]core.LeafID{{1, 3}, {1, 4}, {3, 4}}
	assert.Equal(t, want, idSets(out))
}

func TestBuild_MixedTopLevel(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	chargedPair := intern(t, reg, []shape.LeafCount{{Kind: kTrack, Count: 2}}, nil)
	neutralPair := intern(t, reg, []shape.LeafCount{{Kind: kShower, Count: 2}}, nil)
	cpUse := shape.Use{Zone: core.ZoneUnknown, Shape: chargedPair}
	npUse := shape.Use{Zone: core.ZoneUnknown, Shape: neutralPair}
	top := intern(t, reg, nil, []shape.SubCount{
		{Use: cpUse, Count: 1},
		{Use: npUse, Count: 1},
	})
	reg.Freeze()

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		track(1), track(2),
		freeShower(10, 1),
		shower(11, 1, 1),
		shower(12, 1, 1),
	}))

	u := shape.Use{Zone: core.ZoneUnknown, Shape: top}
	out, err := e.Build(u)
	require.NoError(t, err)

	// One charged pair crossed with the three shower pairs that touch
	// zone 1. A lone zone-free shower cannot pair, so the zone-free pass
	// contributes nothing.
	want := [][]core.LeafID{
		{1, 2, 10, 11},
		{1, 2, 10, 12},
		{1, 2, 11, 12},
	}
	assert.Equal(t, want, idSets(out))
	for _, c := range out {
		assert.Empty(t, c.Members())
		assert.Len(t, c.Subs(), 2)
		assert.False(t, c.ZoneFree())
		require.Len(t, c.SubsFor(cpUse), 1)
		assert.Equal(t, []core.LeafID{1, 2}, idsOf(c.SubsFor(cpUse)[0]))
	}
}

func TestBuild_DeferredMassiveCut(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kHadron, Count: 2}}, nil)
	const massLabel shape.Label = 9
	u := shape.Use{Parent: massLabel, Zone: core.ZoneUnknown, Shape: pair}
	reg.Freeze()

	cutCalls := 0
	cut := func(label shape.Label, c *combo.Composite, zone core.Zone) bool {
		cutCalls++

		return zone == 2
	}

	e, err := combo.NewEngine(reg, combo.WithCut(cut))
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{hadron(1), hadron(2), hadron(3)}))

	out, err := e.Build(u)
	require.NoError(t, err)

	// Massive content: the list is cached uncut and the cut never ran.
	want := [][]core.LeafID{{1, 2}, {1, 3}, {2, 3}}
	assert.Equal(t, want, idSets(out))
	assert.Equal(t, 0, cutCalls)
	assert.True(t, e.Deferred(u))

	kept := e.ApplyDeferredCuts(u, out, 2)
	assert.Len(t, kept, 3)
	dropped := e.ApplyDeferredCuts(u, out, 5)
	assert.Empty(t, dropped)
	assert.Equal(t, 6, cutCalls)
	assert.Len(t, out, 3)
}

func TestBuild_TripleSubChainAcrossStages(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kShower, Count: 2}}, nil)
	pairUse := shape.Use{Zone: core.ZoneUnknown, Shape: pair}
	triple := intern(t, reg, nil, []shape.SubCount{{Use: pairUse, Count: 3}})
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: triple}

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		freeShower(1, 1),
		freeShower(2, 1),
		freeShower(3, 1),
		freeShower(4, 1),
		shower(5, 1, 1),
		shower(6, 1, 1),
	}))

	out, err := e.Build(u)
	require.NoError(t, err)

	// Every perfect matching of the six showers into three pairs, each
	// exactly once. Four zone-free showers cannot fill three pairs, so
	// all matchings carry zone-1 content; the two-pair groupings built
	// in the zone-free pass are extended, not rebuilt.
	require.Len(t, out, 15)
	pairZ1, err := reg.Rezone(pairUse, 1)
	require.NoError(t, err)
	for _, c := range out {
		assert.Equal(t, []core.LeafID{1, 2, 3, 4, 5, 6}, idsOf(c))
		assert.Len(t, c.SubsFor(pairZ1), 3)
		assert.False(t, c.ZoneFree())
	}
}

func TestBuild_ZoneFreeMassivePairs(t *testing.T) {
	// A massive kind without zone-dependent kinematics combines from the
	// zone-free stage on.
	reg := shape.NewRegistry(core.KindTable{kHadron: {Massive: true}})
	pair := intern(t, reg, []shape.LeafCount{{Kind: kHadron, Count: 2}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: pair}

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{hadron(1), hadron(2), hadron(3)}))

	zf, err := e.BuildComposites(u, combo.StageZoneFree)
	require.NoError(t, err)
	assert.Len(t, zf, 3)

	out, err := e.Build(u)
	require.NoError(t, err)

	want := [][]core.LeafID{{1, 2}, {1, 3}, {2, 3}}
	assert.Equal(t, want, idSets(out))
	for _, c := range out {
		assert.True(t, c.ZoneFree())
	}
}

func TestBuild_CutOncePerComposite(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kShower, Count: 2}}, nil)
	const pairLabel shape.Label = 4
	u := shape.Use{Parent: pairLabel, Zone: core.ZoneUnknown, Shape: pair}
	reg.Freeze()

	cutsPer := make(map[string]int)
	cut := func(label shape.Label, c *combo.Composite, zone core.Zone) bool {
		cutsPer[fmt.Sprint(idsOf(c))]++

		return true
	}

	e, err := combo.NewEngine(reg, combo.WithCut(cut))
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{
		freeShower(1, 1),
		freeShower(2, 1),
		shower(3, 1, 1),
		shower(4, 1, 1),
	}))

	out, err := e.Build(u)
	require.NoError(t, err)
	require.Len(t, out, 6)

	// The zone-free pair is carried into the concrete zone as a survivor;
	// its cut must not run a second time there.
	assert.Len(t, cutsPer, 6)
	for ids, n := range cutsPer {
		assert.Equal(t, 1, n, "pair %s cut %d times", ids, n)
	}
}

func TestEngine_RecycleAndExport(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kTrack, Count: 2}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: pair}

	e, err := combo.NewEngine(reg, combo.WithPoolCapacity(0))
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{track(1), track(2), track(3)}))

	out, err := e.BuildComposites(u, combo.StageBaseline)
	require.NoError(t, err)
	require.Len(t, out, 3)

	kept := out[0].Export()
	keptIDs := idsOf(kept)
	assert.True(t, kept.Exported())

	require.NoError(t, e.ResetForNewEvent([]*core.Leaf{track(7), track(8)}))
	free, live := e.Pool().Size()
	assert.Equal(t, 2, free)
	assert.Equal(t, 0, live)

	// The exported composite survived the reset untouched.
	assert.Equal(t, keptIDs, idsOf(kept))

	next, err := e.BuildComposites(u, combo.StageBaseline)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, []core.LeafID{7, 8}, idsOf(next[0]))
}

func TestBuild_EmptyEvent(t *testing.T) {
	reg := shape.NewRegistry(testTable())
	pair := intern(t, reg, []shape.LeafCount{{Kind: kShower, Count: 2}}, nil)
	reg.Freeze()
	u := shape.Use{Zone: core.ZoneUnknown, Shape: pair}

	e, err := combo.NewEngine(reg)
	require.NoError(t, err)
	require.NoError(t, e.ResetForNewEvent(nil))

	out, err := e.Build(u)
	require.NoError(t, err)
	assert.Empty(t, out)
}
