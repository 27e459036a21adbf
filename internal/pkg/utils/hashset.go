package utils

import "strings"

// HashSet represents a hash set.
type HashSet[T comparable] map[T]struct{}

// NewHashSet creates a new HashSet holding elems.
func NewHashSet[T comparable](elems ...T) HashSet[T] {
	hs := make(HashSet[T], len(elems))
	for _, e := range elems {
		hs.Add(e)
	}
	return hs
}

// ParseList splits a comma separated list into a set, skipping blanks.
func ParseList(list string) HashSet[string] {
	hs := NewHashSet[string]()
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			hs.Add(v)
		}
	}
	return hs
}

// Contains checks if a set contains specified element.
func (hs HashSet[T]) Contains(elem T) bool {
	_, ok := hs[elem]
	return ok
}

// Empty checks if hash set is empty.
func (hs HashSet[T]) Empty() bool {
	return len(hs) == 0
}

// Add inserts an element into a hash set.
func (hs HashSet[T]) Add(elem T) {
	hs[elem] = struct{}{}
}

// Remove deletes an element from a hash set.
func (hs HashSet[T]) Remove(elem T) {
	delete(hs, elem)
}
