// Package ledger durably records what each acquisition cycle did: one
// Batch row per cycle and an append-only stream of change events. Events
// are the audit trail; once written they are never edited or deleted.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"airnav/notamwatch/diff"
	"airnav/notamwatch/notam"
)

// Status is the lifecycle state of a batch. A batch is created RUNNING
// and finalized exactly once into one of the terminal states.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	// StatusPartial marks a cycle that fetched and diffed but failed a
	// downstream persistence step; the next cycle re-diffs from the last
	// committed snapshot.
	StatusPartial Status = "PARTIAL"
)

// ErrBatchFinalized is returned when a terminal batch is finalized again.
var ErrBatchFinalized = errors.New("batch already finalized")

// ErrBatchNotFound is returned for operations on an unknown batch id.
var ErrBatchNotFound = errors.New("batch not found")

// Stats are the per-cycle counters.
type Stats struct {
	RecordsFetched int
	New            int
	Updated        int
	Deleted        int
	Unchanged      int
}

// StatsFor derives the cycle counters from a change set and the fetched
// record count.
func StatsFor(cs diff.ChangeSet, fetched int) Stats {
	return Stats{
		RecordsFetched: fetched,
		New:            len(cs.New),
		Updated:        len(cs.Updated),
		Deleted:        len(cs.Deleted),
		Unchanged:      cs.Unchanged,
	}
}

// Batch is one acquisition cycle for one source.
type Batch struct {
	ID          uuid.UUID
	Source      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      Status
	Stats       Stats
	ErrorDetail string
}

// Event is one recorded change. Before/After hold the full record value
// on either side of the transition (nil per Kind), FieldDiffs only the
// differing fields for UPDATED.
type Event struct {
	ID         uuid.UUID
	BatchID    uuid.UUID
	Key        notam.Key
	Kind       diff.Kind
	Before     *notam.Record
	After      *notam.Record
	FieldDiffs map[string]notam.FieldDiff
	DetectedAt time.Time
}

// EventFilter selects events for historical queries. Zero-value fields do
// not filter. Results are ordered newest-first.
type EventFilter struct {
	Key     *notam.Key
	Kind    diff.Kind
	BatchID *uuid.UUID
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Ledger is the change log / batch ledger contract. Implementations must
// be safe for concurrent invocation across sources.
type Ledger interface {
	// StartBatch creates a RUNNING batch for a source.
	StartBatch(ctx context.Context, source string) (Batch, error)

	// RecordChanges appends one event per change in the set. Each event
	// is written once; UNCHANGED keys produce no event.
	RecordChanges(ctx context.Context, batchID uuid.UUID, cs diff.ChangeSet) error

	// CompleteBatch finalizes a batch into a terminal status with its
	// stats and optional error detail. Finalizing twice is an error.
	CompleteBatch(ctx context.Context, batchID uuid.UUID, stats Stats, status Status, errorDetail string) error

	// Events queries the change history, newest first.
	Events(ctx context.Context, filter EventFilter) ([]Event, error)

	// Batches returns the most recent batches for a source, newest first.
	Batches(ctx context.Context, source string, limit int) ([]Batch, error)
}
