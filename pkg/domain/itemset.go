package domain

import (
	"encoding/json"
	"sort"
)

// ItemSet is a set of integer item IDs.
// The zero value is an empty, read-only set; use NewItemSet to get a writable one.
type ItemSet map[int]struct{}

// NewItemSet creates a set holding the given IDs. Duplicates collapse.
func NewItemSet(ids ...int) ItemSet {
	s := make(ItemSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s ItemSet) Add(id int) {
	s[id] = struct{}{}
}

// Contains reports whether id is in the set.
func (s ItemSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// Len returns the cardinality of the set.
func (s ItemSet) Len() int {
	return len(s)
}

// Clone returns an independent copy of the set. Cloning nil yields an empty set.
func (s ItemSet) Clone() ItemSet {
	out := make(ItemSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the IDs in ascending order.
func (s ItemSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IsSubsetOf reports whether every ID of s is also in other.
func (s ItemSet) IsSubsetOf(other ItemSet) bool {
	if len(s) > len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold exactly the same IDs.
func (s ItemSet) Equal(other ItemSet) bool {
	return len(s) == len(other) && s.IsSubsetOf(other)
}

// Intersect returns the IDs present in both a and b.
// It iterates the smaller operand, so the cost is O(min(|a|, |b|)).
func Intersect(a, b ItemSet) ItemSet {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(ItemSet, len(small))
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Union returns the IDs present in any of the sets.
func Union(sets ...ItemSet) ItemSet {
	size := 0
	for _, s := range sets {
		if len(s) > size {
			size = len(s)
		}
	}
	out := make(ItemSet, size)
	for _, s := range sets {
		for id := range s {
			out[id] = struct{}{}
		}
	}
	return out
}

// Difference returns the IDs of a that are not in b.
func Difference(a, b ItemSet) ItemSet {
	out := make(ItemSet, len(a))
	for id := range a {
		if _, ok := b[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array of IDs.
func (s ItemSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of IDs.
func (s *ItemSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewItemSet(ids...)
	return nil
}
