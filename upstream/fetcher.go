// Package upstream acquires notice records from the portal. Two transports
// implement the same Fetcher contract: a direct form-POST API client and a
// headless-browser fallback that replicates the query through the UI. Both
// normalize payloads through the shared field-mapping table, so everything
// downstream is transport-agnostic.
package upstream

import (
	"context"
	"errors"

	"airnav/notamwatch/notam"
	"airnav/notamwatch/notam/fieldmap"
)

// Fetcher retrieves all records for a source within a window. A nil error
// with zero records is a legitimate empty result; failures are never
// folded into an empty success.
type Fetcher interface {
	Fetch(ctx context.Context, source notam.Source, window Window) ([]notam.Record, *FetchReport, error)
}

// FetchReport carries per-fetch observability data back to the cycle.
type FetchReport struct {
	Pages      int
	TotalCount int // -1 when the upstream advertised no total
	Drift      []fieldmap.Drift
}

// Sentinel errors for cycle-level classification.
var (
	// ErrPageDuplicate is the pagination integrity failure: two
	// consecutive pages opened with identical record keys, meaning the
	// page parameter was ignored upstream. Non-retryable.
	ErrPageDuplicate = errors.New("pagination integrity violation: consecutive pages identical")

	// ErrTotalMismatch is the pagination integrity failure for a stream
	// that ended before the advertised total was reached. A truncated
	// stream must not pass for a complete one: the diff would read every
	// missing record as deleted.
	ErrTotalMismatch = errors.New("pagination integrity violation: stream shorter than advertised total")

	// ErrRetriesExhausted wraps the final transport error after the
	// retry budget is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrMalformedResponse marks a body that matched no known response
	// shape. Treated as transient (the portal intermittently serves
	// error pages).
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// duplicateProbeKeys is how many leading record keys of consecutive pages
// are compared to detect a stuck paginator.
const duplicateProbeKeys = 5

// samePageStart reports whether two pages start with the same record keys.
// Comparison covers the first duplicateProbeKeys keys (or the full page if
// shorter). Empty pages never match: the pagination loop stops on those
// before probing.
func samePageStart(prev, curr []notam.Record) bool {
	if len(prev) == 0 || len(curr) == 0 || len(prev) != len(curr) {
		return false
	}
	n := duplicateProbeKeys
	if len(prev) < n {
		n = len(prev)
	}
	for i := 0; i < n; i++ {
		if prev[i].Key() != curr[i].Key() {
			return false
		}
	}
	return true
}
