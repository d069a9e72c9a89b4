package blockstore

import "sort"

// sortEntries orders entries by slot, then id.
func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		cmp := entries[i].Slot().Compare(entries[j].Slot())
		if cmp != 0 {
			return cmp < 0
		}
		return entries[i].ID.Less(entries[j].ID)
	})
}
