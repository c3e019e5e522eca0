package core

import (
	"sort"
	"strconv"
	"strings"
)

// Tag is one compatibility tag (in the original domain: a beam-timing
// bucket a signal may belong to).
type Tag int16

// TagSet is a sorted, deduplicated set of tags. The empty set means
// "compatible with all" and never narrows an intersection.
type TagSet []Tag

// NewTagSet builds a TagSet from arbitrary input, sorting and removing
// duplicates.
func NewTagSet(tags ...Tag) TagSet {
	if len(tags) == 0 {
		return nil
	}
	s := make(TagSet, len(tags))
	copy(s, tags)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	out := s[:1]
	for _, t := range s[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}

	return out
}

// Empty reports whether s is the all-compatible set.
func (s TagSet) Empty() bool { return len(s) == 0 }

// Contains reports whether t is in s. The empty set contains every tag.
func (s TagSet) Contains(t Tag) bool {
	if len(s) == 0 {
		return true
	}
	i := sort.Search(len(s), func(i int) bool { return s[i] >= t })

	return i < len(s) && s[i] == t
}

// Equal reports element-wise equality.
func (s TagSet) Equal(o TagSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}

	return true
}

// Key returns the canonical string form of s, usable as a map key.
// The empty set maps to "".
func (s TagSet) Key() string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(t)))
	}

	return b.String()
}

// IntersectTags merges two tag sets under the empty-means-all convention
// and reports compatibility. The rules:
//
//   - either side empty → the other side is returned unchanged, ok=true;
//   - both non-empty → the sorted intersection is returned; ok=false when
//     it is empty (two constrained sets with no common tag are
//     incompatible and the consuming branch must be pruned).
//
// The result may alias an input; treat it as read-only.
func IntersectTags(a, b TagSet) (TagSet, bool) {
	if len(a) == 0 {
		return b, true
	}
	if len(b) == 0 {
		return a, true
	}
	var out TagSet
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}

	return out, len(out) > 0
}
