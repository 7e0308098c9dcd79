package diff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airnav/notamwatch/diff"
	"airnav/notamwatch/notam"
)

func rec(number, location, start, end, body string) notam.Record {
	return notam.Record{
		Number:         number,
		Location:       location,
		Series:         "A",
		EffectiveStart: start,
		EffectiveEnd:   end,
		BodyText:       body,
		Source:         "domestic",
		FetchedAt:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func asMap(records ...notam.Record) map[notam.Key]notam.Record {
	out := make(map[notam.Key]notam.Record, len(records))
	for _, r := range records {
		out[r.Key()] = r
	}
	return out
}

func TestCompute_EmptyPrevious_AllNew(t *testing.T) {
	current := []notam.Record{
		rec("A1001/26", "RKSI", "2608251200", "2609251200", "RWY 15L/33R CLSD"),
		rec("A1002/26", "RKSS", "2608251200", "", "TWY B CLSD"),
	}

	cs := diff.Compute(nil, current)

	require.Len(t, cs.New, 2)
	assert.Empty(t, cs.Updated)
	assert.Empty(t, cs.Deleted)
	assert.Equal(t, 0, cs.Unchanged)
	for _, c := range cs.New {
		assert.Equal(t, diff.KindNew, c.Kind)
		assert.Nil(t, c.Before)
		require.NotNil(t, c.After)
	}
}

func TestCompute_IdenticalBatch_Unchanged(t *testing.T) {
	a := rec("A1001/26", "RKSI", "2608251200", "2609251200", "RWY 15L/33R CLSD")
	b := rec("A1002/26", "RKSS", "2608251200", "", "TWY B CLSD")

	cs := diff.Compute(asMap(a, b), []notam.Record{a, b})

	assert.True(t, cs.Empty())
	assert.Equal(t, 2, cs.Unchanged)
}

func TestCompute_BodyEdit_Updated(t *testing.T) {
	before := rec("A1001/26", "RKSI", "2608251200", "2609251200", "RWY 15L/33R CLSD")
	after := before
	after.BodyText = "RWY 15L/33R CLSD DUE TO MAINT"

	cs := diff.Compute(asMap(before), []notam.Record{after})

	require.Len(t, cs.Updated, 1)
	c := cs.Updated[0]
	assert.Equal(t, diff.KindUpdated, c.Kind)
	require.NotNil(t, c.Before)
	require.NotNil(t, c.After)
	require.Contains(t, c.FieldDiffs, notam.FieldBodyText)
	assert.Equal(t, "RWY 15L/33R CLSD", c.FieldDiffs[notam.FieldBodyText].Before)
	assert.Equal(t, "RWY 15L/33R CLSD DUE TO MAINT", c.FieldDiffs[notam.FieldBodyText].After)
	assert.Len(t, c.FieldDiffs, 1)
}

func TestCompute_ShiftedValidity_IsNewPlusDeleted(t *testing.T) {
	// A re-issued notice with a different effective window has a
	// different key, so the old entry dies and the new one is born.
	before := rec("A1001/26", "RKSI", "2608251200", "2609251200", "RWY CLSD")
	after := rec("A1001/26", "RKSI", "2608251200", "2610251200", "RWY CLSD")

	cs := diff.Compute(asMap(before), []notam.Record{after})

	require.Len(t, cs.New, 1)
	require.Len(t, cs.Deleted, 1)
	assert.Empty(t, cs.Updated)
	assert.Equal(t, before.Key(), cs.Deleted[0].Key)
	assert.Equal(t, after.Key(), cs.New[0].Key)
}

func TestCompute_Deleted_KeepsBeforeRecord(t *testing.T) {
	gone := rec("A1001/26", "RKSI", "2608251200", "2609251200", "RWY CLSD")

	cs := diff.Compute(asMap(gone), nil)

	require.Len(t, cs.Deleted, 1)
	c := cs.Deleted[0]
	assert.Equal(t, diff.KindDeleted, c.Kind)
	require.NotNil(t, c.Before)
	assert.Equal(t, "RWY CLSD", c.Before.BodyText)
	assert.Nil(t, c.After)
}

func TestCompute_FetchedAtChange_IsNotAnUpdate(t *testing.T) {
	before := rec("A1001/26", "RKSI", "2608251200", "2609251200", "RWY CLSD")
	after := before
	after.FetchedAt = before.FetchedAt.Add(time.Hour)

	cs := diff.Compute(asMap(before), []notam.Record{after})

	assert.True(t, cs.Empty())
	assert.Equal(t, 1, cs.Unchanged)
}

func TestCompute_DuplicateKeysInBatch_LastWins(t *testing.T) {
	first := rec("A1001/26", "RKSI", "2608251200", "2609251200", "FIRST ROW")
	second := first
	second.BodyText = "SECOND ROW"

	cs := diff.Compute(nil, []notam.Record{first, second})

	require.Len(t, cs.New, 1)
	assert.Equal(t, "SECOND ROW", cs.New[0].After.BodyText)
}

func TestCompute_Deterministic(t *testing.T) {
	prev := asMap(
		rec("A1001/26", "RKSI", "2608251200", "2609251200", "KEEP"),
		rec("A1002/26", "RKSS", "2608251200", "", "EDIT ME"),
		rec("A1003/26", "RKPK", "2608251200", "", "DROP ME"),
	)
	edited := rec("A1002/26", "RKSS", "2608251200", "", "EDITED")
	current := []notam.Record{
		rec("A1001/26", "RKSI", "2608251200", "2609251200", "KEEP"),
		edited,
		rec("A1009/26", "RKTN", "2608301200", "", "BRAND NEW"),
		rec("A1004/26", "RKPC", "2608301200", "", "ALSO NEW"),
	}

	first := diff.Compute(prev, current)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, diff.Compute(prev, current))
	}

	// NEW slice ordering follows the key string, not input order.
	require.Len(t, first.New, 2)
	assert.Equal(t, "A1004/26", first.New[0].Key.Number)
	assert.Equal(t, "A1009/26", first.New[1].Key.Number)
}

func TestCompute_Partition(t *testing.T) {
	prev := asMap(
		rec("A1001/26", "RKSI", "2608251200", "", "KEEP"),
		rec("A1002/26", "RKSS", "2608251200", "", "EDIT"),
		rec("A1003/26", "RKPK", "2608251200", "", "DROP"),
	)
	edited := rec("A1002/26", "RKSS", "2608251200", "", "EDITED")
	current := []notam.Record{
		rec("A1001/26", "RKSI", "2608251200", "", "KEEP"),
		edited,
		rec("A1004/26", "RKPC", "2608251200", "", "NEW"),
	}

	cs := diff.Compute(prev, current)

	// Every fetched key lands in exactly one bucket.
	total := len(cs.New) + len(cs.Updated) + cs.Unchanged
	assert.Equal(t, len(current), total)
	assert.Len(t, cs.Deleted, 1)
}

func TestApply_RoundTrip(t *testing.T) {
	prev := asMap(
		rec("A1001/26", "RKSI", "2608251200", "", "KEEP"),
		rec("A1002/26", "RKSS", "2608251200", "", "EDIT"),
		rec("A1003/26", "RKPK", "2608251200", "", "DROP"),
	)
	current := []notam.Record{
		rec("A1001/26", "RKSI", "2608251200", "", "KEEP"),
		rec("A1002/26", "RKSS", "2608251200", "", "EDITED"),
		rec("A1004/26", "RKPC", "2608251200", "", "NEW"),
	}

	cs := diff.Compute(prev, current)
	next := cs.Apply(prev)

	assert.Equal(t, asMap(current...), next)

	// Replaying the same batch against the new state is a no-op.
	again := diff.Compute(next, current)
	assert.True(t, again.Empty())
	assert.Equal(t, len(current), again.Unchanged)
}

func TestUpsertsAndDeletes_MatchChangeSet(t *testing.T) {
	prev := asMap(
		rec("A1002/26", "RKSS", "2608251200", "", "EDIT"),
		rec("A1003/26", "RKPK", "2608251200", "", "DROP"),
	)
	current := []notam.Record{
		rec("A1002/26", "RKSS", "2608251200", "", "EDITED"),
		rec("A1001/26", "RKSI", "2608251200", "", "NEW"),
	}

	cs := diff.Compute(prev, current)

	upserts := cs.Upserts()
	require.Len(t, upserts, 2)
	assert.Equal(t, "A1001/26", upserts[0].Number)
	assert.Equal(t, "A1002/26", upserts[1].Number)

	deletes := cs.Deletes()
	require.Len(t, deletes, 1)
	assert.Equal(t, "A1003/26", deletes[0].Number)
}

func TestEvents_Ordering(t *testing.T) {
	prev := asMap(
		rec("A1002/26", "RKSS", "2608251200", "", "EDIT"),
		rec("A1003/26", "RKPK", "2608251200", "", "DROP"),
	)
	current := []notam.Record{
		rec("A1002/26", "RKSS", "2608251200", "", "EDITED"),
		rec("A1001/26", "RKSI", "2608251200", "", "NEW"),
	}

	events := diff.Compute(prev, current).Events()

	require.Len(t, events, 3)
	assert.Equal(t, diff.KindNew, events[0].Kind)
	assert.Equal(t, diff.KindUpdated, events[1].Kind)
	assert.Equal(t, diff.KindDeleted, events[2].Kind)
}
