package search

import (
	"sort"
	"time"

	"github.com/conduit-lang/metabridge/internal/cohort"
	"github.com/conduit-lang/metabridge/internal/native"
)

// Paginate returns items[from : min(from+pageSize, len(items))]. A page size of zero
// returns everything from the offset on; an offset past the end returns nothing.
func Paginate[T any](items []T, from, pageSize int) []T {
	start, end := native.Window(len(items), from, pageSize)
	return items[start:end]
}

type sortKey struct {
	guid    string
	created time.Time
	updated time.Time
}

func entityKey(e *native.Entity) sortKey {
	return sortKey{guid: e.GUID, created: e.CreateTime, updated: e.UpdateTime}
}

func relationshipKey(r *native.Relationship) sortKey {
	return sortKey{guid: r.GUID, created: r.CreateTime, updated: r.UpdateTime}
}

// sequence orders items for the requested sequencing. Results are always put in a
// stable order so that consecutive pages do not overlap.
func sequence[T any](items []T, key func(T) sortKey, order cohort.SequencingOrder) {
	less := func(a, b sortKey) bool {
		switch order {
		case cohort.SequenceGUID:
			return a.guid < b.guid
		case cohort.SequenceCreationDateRecent:
			if !a.created.Equal(b.created) {
				return a.created.After(b.created)
			}
		case cohort.SequenceLastUpdateRecent:
			if !a.updated.Equal(b.updated) {
				return a.updated.After(b.updated)
			}
		case cohort.SequenceLastUpdateOldest:
			if !a.updated.Equal(b.updated) {
				return a.updated.Before(b.updated)
			}
		default:
			if !a.created.Equal(b.created) {
				return a.created.Before(b.created)
			}
		}
		return a.guid < b.guid
	}
	sort.SliceStable(items, func(i, j int) bool {
		return less(key(items[i]), key(items[j]))
	})
}
