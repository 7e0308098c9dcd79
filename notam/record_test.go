package notam_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airnav/notamwatch/notam"
)

func TestRecordKey(t *testing.T) {
	r := notam.Record{
		Number:         "A1234/26",
		Location:       "RKSI",
		EffectiveStart: "2608251200",
		EffectiveEnd:   "2609251200",
		BodyText:       "RWY 15L/33R CLSD",
	}

	key := r.Key()
	assert.Equal(t, "A1234/26|RKSI|2608251200|2609251200", key.String())

	// Same number at another station is a different key.
	other := r
	other.Location = "RKSS"
	assert.NotEqual(t, key, other.Key())

	// Open-ended notices keep an empty end slot in the key.
	open := r
	open.EffectiveEnd = ""
	assert.Equal(t, "A1234/26|RKSI|2608251200|", open.Key().String())
}

func TestCompareFields(t *testing.T) {
	base := notam.Record{
		Number:         "A1234/26",
		Location:       "RKSI",
		Series:         "A",
		QualifierCode:  "RKRR/QMRLC/IV/NBO/A/000/999/3728N12655E005",
		IssuedAt:       "2608251030",
		EffectiveStart: "2608251200",
		EffectiveEnd:   "2609251200",
		BodyText:       "RWY 15L/33R CLSD",
		RawDetail:      "Q) RKRR/QMRLC/...",
	}

	t.Run("identical records produce no diffs", func(t *testing.T) {
		assert.Empty(t, notam.CompareFields(base, base))
	})

	t.Run("each changed field is reported with before and after", func(t *testing.T) {
		after := base
		after.BodyText = "RWY 15L/33R CLSD DUE WIP"
		after.EffectiveEnd = "2610251200"

		diffs := notam.CompareFields(base, after)
		require.Len(t, diffs, 2)
		assert.Equal(t, notam.FieldDiff{Before: "RWY 15L/33R CLSD", After: "RWY 15L/33R CLSD DUE WIP"},
			diffs[notam.FieldBodyText])
		assert.Equal(t, notam.FieldDiff{Before: "2609251200", After: "2610251200"},
			diffs[notam.FieldEffectiveEnd])
	})

	t.Run("source and fetched_at are outside the comparison set", func(t *testing.T) {
		after := base
		after.Source = "international"
		assert.Empty(t, notam.CompareFields(base, after))
	})
}

func TestParseQualifier(t *testing.T) {
	q := notam.ParseQualifier("RKRR/QMRLC/IV/NBO/A/000/999/3728N12655E005")

	assert.Equal(t, "RKRR", q.FIR)
	assert.Equal(t, "QMRLC", q.Code)
	assert.Equal(t, "IV", q.Traffic)
	assert.Equal(t, "NBO", q.Purpose)
	assert.Equal(t, "A", q.Scope)
	assert.Equal(t, "SFC", q.Lower, "000 lower limit reads as surface")
	assert.Equal(t, "999", q.Upper)
	assert.Equal(t, "3728N12655E005", q.Coords)
}

func TestParseQualifier_Partial(t *testing.T) {
	q := notam.ParseQualifier("RKRR/QFALC")
	assert.Equal(t, "RKRR", q.FIR)
	assert.Equal(t, "QFALC", q.Code)
	assert.Empty(t, q.Traffic)
	assert.Empty(t, q.Coords)
}

func TestQualifierString(t *testing.T) {
	q := notam.ParseQualifier("RKRR/QMRLC/IV/NBO/A/000/999/3728N12655E005")
	assert.Equal(t, "RKRR/QMRLC/IV/NBO/A/SFC/999/3728N12655E005", q.String(),
		"rendering keeps the normalized lower limit")

	partial := notam.ParseQualifier("RKRR/QFALC")
	assert.Equal(t, "RKRR/QFALC", partial.String(), "trailing empty fields are dropped")
}

func TestQualifierFromDetail(t *testing.T) {
	detail := "A1234/26 NOTAMN\n" +
		"Q) RKRR/QMRLC/IV/NBO/A/000/999/3728N12655E005\n" +
		"A) RKSI B) 2608251200 C) 2609251200\n" +
		"E) RWY 15L/33R CLSD"

	q, ok := notam.QualifierFromDetail(detail)
	require.True(t, ok)
	assert.Equal(t, "QMRLC", q.Code)

	_, ok = notam.QualifierFromDetail("E) RWY CLSD, NO Q LINE HERE")
	assert.False(t, ok)
}
