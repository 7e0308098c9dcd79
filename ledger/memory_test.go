package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airnav/notamwatch/diff"
	"airnav/notamwatch/ledger"
	"airnav/notamwatch/notam"
)

func changeSet() diff.ChangeSet {
	before := notam.Record{Number: "A1001/26", Location: "RKSI", EffectiveStart: "2608251200", BodyText: "OLD"}
	after := before
	after.BodyText = "NEW TEXT"
	created := notam.Record{Number: "A1002/26", Location: "RKSS", EffectiveStart: "2608261200", BodyText: "BORN"}
	gone := notam.Record{Number: "A1000/26", Location: "RKPK", EffectiveStart: "2608201200", BodyText: "DEAD"}

	return diff.ChangeSet{
		New: []diff.Change{{Key: created.Key(), Kind: diff.KindNew, After: &created}},
		Updated: []diff.Change{{
			Key: before.Key(), Kind: diff.KindUpdated, Before: &before, After: &after,
			FieldDiffs: notam.CompareFields(before, after),
		}},
		Deleted:   []diff.Change{{Key: gone.Key(), Kind: diff.KindDeleted, Before: &gone}},
		Unchanged: 4,
	}
}

func TestMemoryLedger_BatchLifecycle(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	b, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRunning, b.Status)
	assert.Equal(t, "domestic", b.Source)

	cs := changeSet()
	require.NoError(t, l.RecordChanges(ctx, b.ID, cs))

	stats := ledger.StatsFor(cs, 7)
	require.NoError(t, l.CompleteBatch(ctx, b.ID, stats, ledger.StatusSuccess, ""))

	batches, err := l.Batches(ctx, "domestic", 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	got := batches[0]
	assert.Equal(t, ledger.StatusSuccess, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, ledger.Stats{RecordsFetched: 7, New: 1, Updated: 1, Deleted: 1, Unchanged: 4}, got.Stats)
}

func TestMemoryLedger_CompleteTwice(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	b, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)
	require.NoError(t, l.CompleteBatch(ctx, b.ID, ledger.Stats{}, ledger.StatusFailed, "fetch: boom"))

	err = l.CompleteBatch(ctx, b.ID, ledger.Stats{}, ledger.StatusSuccess, "")
	assert.ErrorIs(t, err, ledger.ErrBatchFinalized)
}

func TestMemoryLedger_UnknownBatch(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	b, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)

	other := b.ID
	other[0] ^= 0xff
	assert.ErrorIs(t, l.CompleteBatch(ctx, other, ledger.Stats{}, ledger.StatusSuccess, ""), ledger.ErrBatchNotFound)
	assert.ErrorIs(t, l.RecordChanges(ctx, other, changeSet()), ledger.ErrBatchNotFound)
}

func TestMemoryLedger_EventsFilter(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	b, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)
	cs := changeSet()
	require.NoError(t, l.RecordChanges(ctx, b.ID, cs))

	all, err := l.Events(ctx, ledger.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	updated, err := l.Events(ctx, ledger.EventFilter{Kind: diff.KindUpdated})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	e := updated[0]
	assert.Equal(t, b.ID, e.BatchID)
	require.NotNil(t, e.Before)
	require.NotNil(t, e.After)
	assert.Equal(t, "OLD", e.Before.BodyText)
	assert.Equal(t, "NEW TEXT", e.After.BodyText)
	require.Contains(t, e.FieldDiffs, notam.FieldBodyText)

	key := cs.New[0].Key
	byKey, err := l.Events(ctx, ledger.EventFilter{Key: &key})
	require.NoError(t, err)
	require.Len(t, byKey, 1)
	assert.Equal(t, diff.KindNew, byKey[0].Kind)

	limited, err := l.Events(ctx, ledger.EventFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryLedger_EventHistoryAccumulates(t *testing.T) {
	// A key's full history stays queryable across batches.
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	rec := notam.Record{Number: "A1001/26", Location: "RKSI", EffectiveStart: "2608251200", BodyText: "V1"}
	edited := rec
	edited.BodyText = "V2"

	b1, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)
	require.NoError(t, l.RecordChanges(ctx, b1.ID, diff.ChangeSet{
		New: []diff.Change{{Key: rec.Key(), Kind: diff.KindNew, After: &rec}},
	}))

	b2, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)
	require.NoError(t, l.RecordChanges(ctx, b2.ID, diff.ChangeSet{
		Updated: []diff.Change{{
			Key: rec.Key(), Kind: diff.KindUpdated, Before: &rec, After: &edited,
			FieldDiffs: notam.CompareFields(rec, edited),
		}},
	}))

	key := rec.Key()
	history, err := l.Events(ctx, ledger.EventFilter{Key: &key})
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestMemoryLedger_BatchesNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	first, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)
	_, err = l.StartBatch(ctx, "international")
	require.NoError(t, err)
	second, err := l.StartBatch(ctx, "domestic")
	require.NoError(t, err)

	batches, err := l.Batches(ctx, "domestic", 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, second.ID, batches[0].ID)
	assert.Equal(t, first.ID, batches[1].ID)

	limited, err := l.Batches(ctx, "domestic", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}
