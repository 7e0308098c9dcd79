// Package fieldmap implements the resilient mapping from upstream payload
// field names to canonical Record fields. Each canonical field carries an
// ordered list of acceptable upstream names; the first non-empty match wins,
// and a match on anything other than the preferred (first) name is reported
// as a schema-drift signal rather than silently accepted.
package fieldmap

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"airnav/notamwatch/notam"
)

// Canonical field names, matching the Record comparison fields plus number.
const (
	FieldNumber         = "number"
	FieldLocation       = notam.FieldLocation
	FieldSeries         = notam.FieldSeries
	FieldQualifierCode  = notam.FieldQualifierCode
	FieldIssuedAt       = notam.FieldIssuedAt
	FieldEffectiveStart = notam.FieldEffectiveStart
	FieldEffectiveEnd   = notam.FieldEffectiveEnd
	FieldBodyText       = notam.FieldBodyText
	FieldRawDetail      = notam.FieldRawDetail
)

// canonicalOrder fixes the deterministic iteration order of the table.
var canonicalOrder = []string{
	FieldNumber,
	FieldLocation,
	FieldSeries,
	FieldQualifierCode,
	FieldIssuedAt,
	FieldEffectiveStart,
	FieldEffectiveEnd,
	FieldBodyText,
	FieldRawDetail,
}

// Drift records that a canonical field was populated from a fallback
// upstream name because the preferred name was absent. Drift is a warning,
// not a failure: the cycle proceeds, but the signal is attached to the
// batch so an upstream field rename is noticed.
type Drift struct {
	Field         string
	MatchedName   string
	PreferredName string
}

func (d Drift) String() string {
	return fmt.Sprintf("field %q matched fallback name %q (preferred %q absent)",
		d.Field, d.MatchedName, d.PreferredName)
}

// Table is an ordered field-mapping table. The zero value is unusable;
// construct with Default or LoadFile.
type Table struct {
	aliases map[string][]string
}

// Default returns the mapping table for the portal's observed payload
// shapes: the JSON search envelope uses upper-case names (NOTAM_NO,
// EFFECTIVESTART, ...), the grid extraction paths use snake_case.
func Default() *Table {
	return &Table{aliases: map[string][]string{
		FieldNumber:         {"NOTAM_NO", "notam_no"},
		FieldLocation:       {"LOCATION", "location"},
		FieldSeries:         {"AIS_TYPE", "SERIES", "notam_type"},
		FieldQualifierCode:  {"QCODE", "qcode"},
		FieldIssuedAt:       {"ISSUE_TIME", "issue_time"},
		FieldEffectiveStart: {"EFFECTIVESTART", "start_time"},
		FieldEffectiveEnd:   {"EFFECTIVEEND", "end_time"},
		FieldBodyText:       {"ECODE", "E_TEXT", "full_text"},
		FieldRawDetail:      {"FULL_TEXT", "full_text_detail"},
	}}
}

// LoadFile reads a mapping table from a YAML file of the form
//
//	number: [NOTAM_NO, notam_no]
//	body_text: [ECODE, full_text]
//
// Canonical fields missing from the file keep their defaults; unknown
// canonical field names are a configuration error.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field map: %w", err)
	}

	var loaded map[string][]string
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("parse field map: %w", err)
	}

	t := Default()
	for field, names := range loaded {
		if _, ok := t.aliases[field]; !ok {
			return nil, fmt.Errorf("field map: unknown canonical field %q", field)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("field map: canonical field %q has no upstream names", field)
		}
		t.aliases[field] = names
	}
	return t, nil
}

// Extract resolves one canonical field from an upstream row. The second
// return value is non-nil when a fallback name matched.
func (t *Table) Extract(field string, row map[string]string) (string, *Drift) {
	names := t.aliases[field]
	for i, name := range names {
		v := strings.TrimSpace(row[name])
		if v == "" {
			continue
		}
		if i == 0 {
			return v, nil
		}
		return v, &Drift{Field: field, MatchedName: name, PreferredName: names[0]}
	}
	return "", nil
}

// Record builds a canonical Record from one upstream row. Rows without a
// notice number are not records (header rows, padding) and return ok=false.
func (t *Table) Record(row map[string]string, source string, fetchedAt time.Time) (notam.Record, []Drift, bool) {
	var drifts []Drift

	get := func(field string) string {
		v, d := t.Extract(field, row)
		if d != nil {
			drifts = append(drifts, *d)
		}
		return v
	}

	number := get(FieldNumber)
	if number == "" {
		return notam.Record{}, nil, false
	}

	rec := notam.Record{
		Number:         number,
		Location:       get(FieldLocation),
		Series:         get(FieldSeries),
		QualifierCode:  get(FieldQualifierCode),
		IssuedAt:       get(FieldIssuedAt),
		EffectiveStart: get(FieldEffectiveStart),
		EffectiveEnd:   get(FieldEffectiveEnd),
		BodyText:       get(FieldBodyText),
		RawDetail:      get(FieldRawDetail),
		Source:         source,
		FetchedAt:      fetchedAt,
	}

	// The grid variant omits the qcode column on some rows; the Q) line
	// in the full text still carries it.
	if rec.QualifierCode == "" && rec.RawDetail != "" {
		if q, ok := notam.QualifierFromDetail(rec.RawDetail); ok {
			rec.QualifierCode = q.String()
		}
	}

	return rec, drifts, true
}

// Fields returns the canonical field names in deterministic order.
func (t *Table) Fields() []string {
	out := make([]string, len(canonicalOrder))
	copy(out, canonicalOrder)
	return out
}
