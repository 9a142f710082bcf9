package storage

import (
	"slices"
)

// SortRecords orders records by a nullable sort key: records whose key is nil
// come first ordered by id, then the rest ordered by (key, id). When desc is
// set the whole sequence is reversed. The slice is sorted in place.
func SortRecords(records []any, key func(any) any, id func(any) any, desc bool) {
	var nils, present []any
	for _, r := range records {
		if Indirect(key(r)) == nil {
			nils = append(nils, r)
		} else {
			present = append(present, r)
		}
	}
	slices.SortStableFunc(nils, func(a, b any) int {
		return compareIDs(id(a), id(b))
	})
	slices.SortStableFunc(present, func(a, b any) int {
		if c := Compare(key(a), key(b)); c != 0 {
			return c
		}
		return compareIDs(id(a), id(b))
	})
	n := copy(records, nils)
	copy(records[n:], present)
	if desc {
		slices.Reverse(records)
	}
}

func compareIDs(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return Compare(a, b)
}
