// Package combinat is a staged combinatorial construction engine: it
// assembles every valid composite of an event's detected signals against
// a registry of interned shape recipes.
//
// 🚀 What is combinat?
//
//	A memoization-first engine for exhaustive candidate building:
//		• Interned shapes: every recipe canonicalized once, compared by pointer
//		• Vertical combining: N-of-a-kind groupings grown from the N-1 level
//		• Horizontal combining: multi-component shapes assembled from a cached
//		  all-but-one result plus the missing component
//		• Staged builds: charged baseline → zone-free → full per-zone results
//		• Resume cursors: combinations, never permutations, without dedup scans
//		• Pooled composites: bulk recycling at event boundaries, explicit export
//
// ✨ Why choose combinat?
//
//   - Shared sub-results – a decay list is built and cut once, no matter how
//     many parent shapes consume it
//   - Pruned search – tag intersection and zone partitioning cut branches
//     before they multiply
//   - Caller-owned physics – cuts, tags and zones are plain callbacks and
//     data; the engine only does the combinatorics
//
// Under the hood, everything is organized under four subpackages:
//
//	core/    — leaf model: kinds, traits, zones and compatibility tags
//	shape/   — interned shape recipes, uses and the dual-table registry
//	combo/   — the staged engine: pool, index, cursors, combiners
//	catalog/ — YAML kind/shape declarations resolved into a frozen registry
//
// Quick sketch: with shapes
//
//	pair  = {track × 2}
//	event = {track × 1, pair × 1}
//
// and four tracks, Build(event) yields every spectator+pair split exactly
// once, with the pair lists shared by reference.
//
//	go get github.com/ostrov-d/combinat
package combinat
