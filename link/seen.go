package link

import "sort"

// SeenSets holds, per property, the item ids already discovered in a run.
// A run owns exactly one; it only grows.
type SeenSets map[string]map[int64]struct{}

// NewSeenSets returns empty seen-sets
func NewSeenSets() SeenSets {
	return SeenSets{}
}

// Add records id for field and reports whether it was new
func (s SeenSets) Add(field string, id int64) bool {
	set, ok := s[field]
	if !ok {
		set = map[int64]struct{}{}
		s[field] = set
	}
	if _, seen := set[id]; seen {
		return false
	}
	set[id] = struct{}{}
	return true
}

// Contains reports whether id was already seen for field
func (s SeenSets) Contains(field string, id int64) bool {
	_, ok := s[field][id]
	return ok
}

// Len returns the number of ids seen for field
func (s SeenSets) Len(field string) int {
	return len(s[field])
}

// IDs returns the ids seen for field in ascending order
func (s SeenSets) IDs(field string) []int64 {
	ids := make([]int64, 0, len(s[field]))
	for id := range s[field] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
