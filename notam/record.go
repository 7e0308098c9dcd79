package notam

import (
	"time"
)

// Record is one aeronautical notice as observed during a single acquisition
// cycle. Records are value objects: every cycle produces fresh candidates
// that replace, never mutate, the stored snapshot entries for their key.
type Record struct {
	// Number is the issuer-assigned notice identifier (e.g. "A1234/24").
	// It is not globally unique on its own; the same number can reappear
	// at a different issuing station.
	Number string

	// Location is the ICAO code of the issuing station (e.g. "RKSI").
	Location string

	// Series is the single-letter or token category of the notice.
	Series string

	// QualifierCode is the slash-delimited classification string from the
	// Q-line, kept verbatim. See ParseQualifier for the structured view.
	QualifierCode string

	// IssuedAt is the portal-format issue timestamp, kept verbatim so
	// comparisons never depend on timezone reinterpretation.
	IssuedAt string

	// EffectiveStart and EffectiveEnd bound the notice validity in the
	// portal's own format. An empty EffectiveEnd means open-ended
	// (the upstream renders these as "PERM" or leaves the field blank).
	EffectiveStart string
	EffectiveEnd   string

	// BodyText is the human-readable E) section.
	BodyText string

	// RawDetail is the full structured payload as opaque text, retained
	// for audit.
	RawDetail string

	// Source tags which configured upstream partition produced the record.
	Source string

	// FetchedAt records when this observation was made.
	FetchedAt time.Time
}

// Key is the natural identity of a Record within one source:
// (number, location, effective_start, effective_end). Number alone is not
// unique across stations, and a re-issued notice with shifted validity is
// a distinct record.
type Key struct {
	Number         string
	Location       string
	EffectiveStart string
	EffectiveEnd   string
}

// String returns the canonical sortable form of the key. It is the value
// used for map keys, deduplication, and deterministic event ordering.
func (k Key) String() string {
	return k.Number + "|" + k.Location + "|" + k.EffectiveStart + "|" + k.EffectiveEnd
}

// Key returns the natural key of the record.
func (r Record) Key() Key {
	return Key{
		Number:         r.Number,
		Location:       r.Location,
		EffectiveStart: r.EffectiveStart,
		EffectiveEnd:   r.EffectiveEnd,
	}
}

// FieldDiff holds the before/after values of a single changed field.
type FieldDiff struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Comparison field names, in the order they are reported.
const (
	FieldIssuedAt       = "issued_at"
	FieldLocation       = "location"
	FieldSeries         = "series"
	FieldQualifierCode  = "qualifier_code"
	FieldEffectiveStart = "effective_start"
	FieldEffectiveEnd   = "effective_end"
	FieldBodyText       = "body_text"
	FieldRawDetail      = "raw_detail"
)

// CompareFields compares the fixed set of comparison fields of two records
// and returns a map of the ones that differ. Fields outside the set
// (fetched_at, source) never participate, so re-observing an identical
// notice is not a change.
func CompareFields(before, after Record) map[string]FieldDiff {
	diffs := make(map[string]FieldDiff)

	fields := []struct {
		name   string
		before string
		after  string
	}{
		{FieldIssuedAt, before.IssuedAt, after.IssuedAt},
		{FieldLocation, before.Location, after.Location},
		{FieldSeries, before.Series, after.Series},
		{FieldQualifierCode, before.QualifierCode, after.QualifierCode},
		{FieldEffectiveStart, before.EffectiveStart, after.EffectiveStart},
		{FieldEffectiveEnd, before.EffectiveEnd, after.EffectiveEnd},
		{FieldBodyText, before.BodyText, after.BodyText},
		{FieldRawDetail, before.RawDetail, after.RawDetail},
	}

	for _, f := range fields {
		if f.before != f.after {
			diffs[f.name] = FieldDiff{Before: f.before, After: f.after}
		}
	}

	return diffs
}
