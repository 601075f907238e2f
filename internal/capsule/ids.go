package capsule

import "slices"

// ContainsID reports whether id is in ids.
func ContainsID(ids []uint32, id uint32) bool {
	return slices.Contains(ids, id)
}

// AppendID appends id unless it is already present. Order is preserved.
func AppendID(ids []uint32, id uint32) []uint32 {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveID returns ids without id. The input slice is not modified.
func RemoveID(ids []uint32, id uint32) []uint32 {
	out := make([]uint32, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// UnionIDs returns a followed by every id of b not already in a.
func UnionIDs(a, b []uint32) []uint32 {
	out := cloneIDs(a)
	for _, id := range b {
		out = AppendID(out, id)
	}
	return out
}
