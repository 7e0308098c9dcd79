package snapshot

import (
	"context"
	"sync"

	"airnav/notamwatch/notam"
)

// MemoryStore is an in-memory Store used by tests and dry runs. Commits
// build the next state on a copy and swap it in under the lock, so a
// mid-commit failure can never leave a partially applied snapshot.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[string]map[notam.Key]notam.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sources: make(map[string]map[notam.Key]notam.Record)}
}

func (s *MemoryStore) Get(_ context.Context, source string) (map[notam.Key]notam.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[notam.Key]notam.Record, len(s.sources[source]))
	for k, v := range s.sources[source] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Commit(ctx context.Context, source string, upserts []notam.Record, deletes []notam.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[notam.Key]notam.Record, len(s.sources[source])+len(upserts))
	for k, v := range s.sources[source] {
		next[k] = v
	}
	for _, rec := range upserts {
		next[rec.Key()] = rec
	}
	for _, key := range deletes {
		delete(next, key)
	}

	s.sources[source] = next
	return nil
}
