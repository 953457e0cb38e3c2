// Package util holds small generic helpers shared by commands and tests.
package util

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// OptionalID maps an item-set id to the optional form used by pagers:
// non-positive ids mean "no filter" and yield nil.
func OptionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return Ptr(id)
}
