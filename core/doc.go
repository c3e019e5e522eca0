// Package core defines the shared vocabulary of the combinat engine:
// leaves (detected signals), kinds and their traits, zones, and
// compatibility-tag sets.
//
// What?
//
//   - Leaf: one detected signal, owned by the caller and referenced by the
//     engine. Identity is the caller-assigned LeafID, which also fixes the
//     total candidate order.
//   - Kind / KindTraits / KindTable: the fixed enumeration of signal types
//     and the per-kind properties that drive staging (Charged), tag
//     filtering (Timing), deferred cuts (Massive) and zone sensitivity
//     (ZoneDep).
//   - Zone: coarse position bucket, with the sentinels ZoneUnknown and
//     ZoneFree.
//   - TagSet: sorted compatibility tags. An empty set is compatible with
//     everything and never narrows an intersection.
//
// Why?
//
// Every other package (shape registration, combinatorial construction,
// catalog loading) speaks in these types; keeping them dependency-free at
// the root avoids import cycles and keeps the engine's hot paths on plain
// slices and small values.
//
// Complexity: TagSet operations are O(len) merges over sorted slices;
// Contains is a binary search.
package core
