package diff

import "airnav/notamwatch/notam"

// Kind classifies a detected transition.
type Kind string

const (
	KindNew     Kind = "NEW"
	KindUpdated Kind = "UPDATED"
	KindDeleted Kind = "DELETED"
)

// Change represents one detected transition for one record key.
// Before is nil for NEW, After is nil for DELETED, and FieldDiffs is
// populated only for UPDATED.
type Change struct {
	Key        notam.Key
	Kind       Kind
	Before     *notam.Record
	After      *notam.Record
	FieldDiffs map[string]notam.FieldDiff
}

// ChangeSet is the classified result of comparing one fetched batch
// against the previous snapshot. Unchanged keys produce no Change, only
// the counter. All slices are sorted by key string, so the same inputs
// always yield the same ChangeSet.
type ChangeSet struct {
	New       []Change
	Updated   []Change
	Deleted   []Change
	Unchanged int
}

// Empty reports whether the ChangeSet carries no transitions.
func (cs ChangeSet) Empty() bool {
	return len(cs.New) == 0 && len(cs.Updated) == 0 && len(cs.Deleted) == 0
}

// Events returns all changes in one slice, NEW then UPDATED then DELETED,
// each group sorted by key.
func (cs ChangeSet) Events() []Change {
	out := make([]Change, 0, len(cs.New)+len(cs.Updated)+len(cs.Deleted))
	out = append(out, cs.New...)
	out = append(out, cs.Updated...)
	out = append(out, cs.Deleted...)
	return out
}
