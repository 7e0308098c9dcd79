package fieldmap_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airnav/notamwatch/notam/fieldmap"
)

var fetchedAt = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestExtract_PreferredName_NoDrift(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{"NOTAM_NO": "A1234/26"}

	v, drift := table.Extract(fieldmap.FieldNumber, row)
	assert.Equal(t, "A1234/26", v)
	assert.Nil(t, drift)
}

func TestExtract_FallbackName_ReportsDrift(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{"notam_no": "A1234/26"}

	v, drift := table.Extract(fieldmap.FieldNumber, row)
	assert.Equal(t, "A1234/26", v)
	require.NotNil(t, drift)
	assert.Equal(t, fieldmap.FieldNumber, drift.Field)
	assert.Equal(t, "notam_no", drift.MatchedName)
	assert.Equal(t, "NOTAM_NO", drift.PreferredName)
}

func TestExtract_PreferredWinsOverFallback(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{"NOTAM_NO": "A1111/26", "notam_no": "A2222/26"}

	v, drift := table.Extract(fieldmap.FieldNumber, row)
	assert.Equal(t, "A1111/26", v)
	assert.Nil(t, drift)
}

func TestExtract_EmptyPreferredFallsThrough(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{"ECODE": "  ", "full_text": "RWY CLSD"}

	v, drift := table.Extract(fieldmap.FieldBodyText, row)
	assert.Equal(t, "RWY CLSD", v)
	require.NotNil(t, drift)
	assert.Equal(t, "full_text", drift.MatchedName)
}

func TestRecord_FullRow(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{
		"NOTAM_NO":       "A1234/26",
		"LOCATION":       "RKSI",
		"AIS_TYPE":       "A",
		"QCODE":          "RKRR/QMRLC/IV/NBO/A/000/999/3728N12655E005",
		"ISSUE_TIME":     "2608251030",
		"EFFECTIVESTART": "2608251200",
		"EFFECTIVEEND":   "2609251200",
		"ECODE":          "RWY 15L/33R CLSD",
		"FULL_TEXT":      "Q) RKRR/QMRLC/...",
	}

	rec, drifts, ok := table.Record(row, "domestic", fetchedAt)
	require.True(t, ok)
	assert.Empty(t, drifts)
	assert.Equal(t, "A1234/26", rec.Number)
	assert.Equal(t, "RKSI", rec.Location)
	assert.Equal(t, "A", rec.Series)
	assert.Equal(t, "2608251200", rec.EffectiveStart)
	assert.Equal(t, "domestic", rec.Source)
	assert.Equal(t, fetchedAt, rec.FetchedAt)
}

func TestRecord_MissingNumber_NotARecord(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{"LOCATION": "RKSI", "ECODE": "RWY CLSD"}

	_, _, ok := table.Record(row, "domestic", fetchedAt)
	assert.False(t, ok)
}

func TestRecord_RecoversQualifierFromDetail(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{
		"notam_no":         "A1234/26",
		"location":         "RKSI",
		"full_text":        "RWY 15L/33R CLSD",
		"full_text_detail": "A1234/26 NOTAMN\nQ) RKRR/QMRLC/IV/NBO/A/000/999/3728N12655E005\nE) RWY 15L/33R CLSD",
	}

	rec, _, ok := table.Record(row, "domestic", fetchedAt)
	require.True(t, ok)
	assert.Equal(t, "RKRR/QMRLC/IV/NBO/A/SFC/999/3728N12655E005", rec.QualifierCode)
}

func TestRecord_QcodeColumnWinsOverDetail(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{
		"NOTAM_NO":  "A1234/26",
		"QCODE":     "RKRR/QMRLC",
		"FULL_TEXT": "Q) RKRR/QFALC/IV/NBO/A/000/999/3728N12655E005",
	}

	rec, _, ok := table.Record(row, "domestic", fetchedAt)
	require.True(t, ok)
	assert.Equal(t, "RKRR/QMRLC", rec.QualifierCode)
}

func TestRecord_CollectsDriftsAcrossFields(t *testing.T) {
	table := fieldmap.Default()
	row := map[string]string{
		"notam_no":  "A1234/26",
		"location":  "RKSI",
		"full_text": "RWY CLSD",
	}

	rec, drifts, ok := table.Record(row, "domestic", fetchedAt)
	require.True(t, ok)
	assert.Equal(t, "A1234/26", rec.Number)
	assert.Len(t, drifts, 3)
}

func TestLoadFile_OverridesAndUnknownField(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte("number: [NEW_NO, NOTAM_NO]\n"), 0o644))

	table, err := fieldmap.LoadFile(path)
	require.NoError(t, err)

	v, drift := table.Extract(fieldmap.FieldNumber, map[string]string{"NOTAM_NO": "A1/26"})
	assert.Equal(t, "A1/26", v)
	require.NotNil(t, drift, "old preferred name is now a fallback")
	assert.Equal(t, "NEW_NO", drift.PreferredName)

	// Untouched fields keep their defaults.
	v, drift = table.Extract(fieldmap.FieldLocation, map[string]string{"LOCATION": "RKSI"})
	assert.Equal(t, "RKSI", v)
	assert.Nil(t, drift)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("no_such_field: [X]\n"), 0o644))
	_, err = fieldmap.LoadFile(bad)
	assert.Error(t, err)
}

func TestFields_DeterministicOrder(t *testing.T) {
	table := fieldmap.Default()
	fields := table.Fields()
	assert.Equal(t, fieldmap.FieldNumber, fields[0])
	assert.Equal(t, table.Fields(), fields)
}
