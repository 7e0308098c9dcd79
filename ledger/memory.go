package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"airnav/notamwatch/diff"
)

// MemoryLedger is an in-memory Ledger for tests and dry runs.
type MemoryLedger struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*Batch
	order   []uuid.UUID
	events  []Event
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{batches: make(map[uuid.UUID]*Batch)}
}

func (l *MemoryLedger) StartBatch(_ context.Context, source string) (Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := Batch{
		ID:        uuid.New(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}
	l.batches[b.ID] = &b
	l.order = append(l.order, b.ID)
	return b, nil
}

func (l *MemoryLedger) RecordChanges(_ context.Context, batchID uuid.UUID, cs diff.ChangeSet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.batches[batchID]; !ok {
		return fmt.Errorf("record changes: %w", ErrBatchNotFound)
	}

	now := time.Now().UTC()
	for _, c := range cs.Events() {
		l.events = append(l.events, Event{
			ID:         uuid.New(),
			BatchID:    batchID,
			Key:        c.Key,
			Kind:       c.Kind,
			Before:     c.Before,
			After:      c.After,
			FieldDiffs: c.FieldDiffs,
			DetectedAt: now,
		})
	}
	return nil
}

func (l *MemoryLedger) CompleteBatch(_ context.Context, batchID uuid.UUID, stats Stats, status Status, errorDetail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.batches[batchID]
	if !ok {
		return fmt.Errorf("complete batch: %w", ErrBatchNotFound)
	}
	if b.Status != StatusRunning {
		return fmt.Errorf("complete batch %s: %w", batchID, ErrBatchFinalized)
	}

	now := time.Now().UTC()
	b.CompletedAt = &now
	b.Status = status
	b.Stats = stats
	b.ErrorDetail = errorDetail
	return nil
}

func (l *MemoryLedger) Events(_ context.Context, filter EventFilter) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, e := range l.events {
		if filter.Key != nil && e.Key != *filter.Key {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.BatchID != nil && e.BatchID != *filter.BatchID {
			continue
		}
		if !filter.Since.IsZero() && e.DetectedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && e.DetectedAt.After(filter.Until) {
			continue
		}
		out = append(out, e)
	}

	// Newest first; ties broken by key for stable ordering.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (l *MemoryLedger) Batches(_ context.Context, source string, limit int) ([]Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Batch
	for i := len(l.order) - 1; i >= 0; i-- {
		b := l.batches[l.order[i]]
		if source != "" && b.Source != source {
			continue
		}
		out = append(out, *b)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
