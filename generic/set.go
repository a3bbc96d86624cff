package generic

import (
	"cmp"
	"slices"
)

// Set is an unordered collection of distinct items. The zero value is not usable; create sets with NewSet.
type Set[T cmp.Ordered] map[T]Void

func NewSet[T cmp.Ordered](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s[item] = Void{}
	}
	return s
}

// Add inserts item, returning false if it was already present.
func (s Set[T]) Add(item T) bool {
	if s.Contains(item) {
		return false
	}
	s[item] = Void{}
	return true
}

func (s Set[T]) Contains(item T) bool {
	_, found := s[item]
	return found
}

// Sorted returns the items in ascending order, for stable logging and output.
func (s Set[T]) Sorted() []T {
	items := make([]T, 0, len(s))
	for item := range s {
		items = append(items, item)
	}
	slices.Sort(items)
	return items
}
