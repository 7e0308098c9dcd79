// Package snapshot holds the last-known record state per source: the full
// set of notices believed to be currently present upstream, as of the last
// successfully committed acquisition cycle.
package snapshot

import (
	"context"

	"airnav/notamwatch/notam"
)

// Store is the snapshot contract. Implementations must be safe for
// concurrent use across different sources; serializing cycles for the
// same source is the caller's responsibility.
type Store interface {
	// Get returns the snapshot for a source as of the end of the previous
	// successful cycle. A source never committed before yields an empty
	// map, not an error.
	Get(ctx context.Context, source string) (map[notam.Key]notam.Record, error)

	// Commit applies one cycle's upserts and deletes atomically: either
	// all apply or none do. A failed commit leaves the stored snapshot
	// exactly as it was.
	Commit(ctx context.Context, source string, upserts []notam.Record, deletes []notam.Key) error
}
