// Package diff classifies a freshly fetched record batch against the
// previous snapshot. Compute is pure: no I/O, no clock reads, and the
// output ordering never depends on map iteration order.
package diff

import (
	"sort"

	"airnav/notamwatch/notam"
)

// Compute compares current against previous and classifies every key as
// NEW, UPDATED, DELETED, or unchanged. Duplicate keys within current keep
// the last occurrence (the upstream re-issues supersede earlier rows in
// the same response).
func Compute(previous map[notam.Key]notam.Record, current []notam.Record) ChangeSet {
	currentByKey := make(map[notam.Key]notam.Record, len(current))
	for _, rec := range current {
		currentByKey[rec.Key()] = rec
	}

	var cs ChangeSet

	for key, curr := range currentByKey {
		prev, exists := previous[key]
		if !exists {
			curr := curr
			cs.New = append(cs.New, Change{Key: key, Kind: KindNew, After: &curr})
			continue
		}

		diffs := notam.CompareFields(prev, curr)
		if len(diffs) == 0 {
			cs.Unchanged++
			continue
		}

		prev, curr := prev, curr
		cs.Updated = append(cs.Updated, Change{
			Key:        key,
			Kind:       KindUpdated,
			Before:     &prev,
			After:      &curr,
			FieldDiffs: diffs,
		})
	}

	for key, prev := range previous {
		if _, exists := currentByKey[key]; exists {
			continue
		}
		prev := prev
		cs.Deleted = append(cs.Deleted, Change{Key: key, Kind: KindDeleted, Before: &prev})
	}

	sortByKey(cs.New)
	sortByKey(cs.Updated)
	sortByKey(cs.Deleted)

	return cs
}

// Apply replays the ChangeSet onto previous and returns the resulting
// state. Applying Compute(previous, current) to previous reproduces the
// current set exactly; the monitor uses the same upsert/delete split for
// the snapshot commit.
func (cs ChangeSet) Apply(previous map[notam.Key]notam.Record) map[notam.Key]notam.Record {
	next := make(map[notam.Key]notam.Record, len(previous)+len(cs.New))
	for k, v := range previous {
		next[k] = v
	}
	for _, c := range cs.New {
		next[c.Key] = *c.After
	}
	for _, c := range cs.Updated {
		next[c.Key] = *c.After
	}
	for _, c := range cs.Deleted {
		delete(next, c.Key)
	}
	return next
}

// Upserts returns the records to write into the snapshot store (NEW and
// UPDATED afters, sorted by key).
func (cs ChangeSet) Upserts() []notam.Record {
	out := make([]notam.Record, 0, len(cs.New)+len(cs.Updated))
	for _, c := range cs.New {
		out = append(out, *c.After)
	}
	for _, c := range cs.Updated {
		out = append(out, *c.After)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

// Deletes returns the keys to remove from the snapshot store, sorted.
func (cs ChangeSet) Deletes() []notam.Key {
	out := make([]notam.Key, 0, len(cs.Deleted))
	for _, c := range cs.Deleted {
		out = append(out, c.Key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sortByKey(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Key.String() < changes[j].Key.String()
	})
}
