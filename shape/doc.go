// Package shape defines the declarative recipes the engine builds from:
// interned Shape values, Use contexts, and the dual-table Registry.
//
// What?
//
//   - Shape: a canonical multiset of leaf kinds and sub-uses. Shapes are
//     interned: identical content yields the same pointer, so downstream
//     equality is pointer equality and shapes work as map-key components.
//   - Use: a shape applied in a context — an optional parent Label (whose
//     cut gates the result list) and a Zone. Use is a comparable value
//     and keys every memoized result table in the engine.
//   - Registry: the interner. During catalog resolution it runs a hash
//     table (Intern); after Freeze it runs a sorted slice with binary
//     search (GetOrIntern), which is what the combiners use when they
//     derive grouping shapes mid-event.
//
// Why two tables?
//
// Catalog resolution interns thousands of shapes once and wants O(1)
// inserts; the hot path interns rarely, reads constantly, and wants the
// compact sorted slice. Freeze moves the first into the second.
//
// Errors: ErrFrozen, ErrKindUnknown, ErrBadCount, ErrNilShape,
// ErrEmptyShape.
package shape
