package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResponseParser turns one upstream response body into raw rows of
// upstream-named fields plus the advertised total record count (-1 when
// absent). The portal serves two shapes for the same search endpoint: a
// JSON envelope and a tabular grid markup. Both are normalized into the
// same row form and fed through the field-mapping table.
type ResponseParser interface {
	Parse(body []byte) (rows []map[string]string, total int, err error)
}

// SniffParser picks a parser by inspecting the body shape.
func SniffParser(body []byte) (ResponseParser, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	switch {
	case trimmed[0] == '{' || trimmed[0] == '[':
		return jsonParser{}, nil
	case bytes.Contains(trimmed, []byte("<TR")) || bytes.Contains(trimmed, []byte("<Data")):
		return gridParser{}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized shape %q", ErrMalformedResponse, preview(trimmed))
	}
}

// jsonParser handles the search envelope: an object with a DATA-like
// array and an optional Total, or a bare array.
type jsonParser struct{}

// Envelope keys tried in order for the record array.
var dataKeys = []string{"DATA", "data", "items", "rows", "records"}

// Envelope keys tried in order for the total count.
var totalKeys = []string{"Total", "total", "TOTAL", "totalCount"}

func (jsonParser) Parse(body []byte) ([]map[string]string, int, error) {
	trimmed := bytes.TrimSpace(body)

	var items []any
	total := -1

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		var envelope map[string]any
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		for _, k := range dataKeys {
			if arr, ok := envelope[k].([]any); ok {
				items = arr
				break
			}
		}
		for _, k := range totalKeys {
			if t, ok := toInt(envelope[k]); ok {
				total = t
				break
			}
		}
	}

	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := make(map[string]string, len(obj))
		for k, v := range obj {
			row[k] = stringify(v)
		}
		rows = append(rows, row)
	}
	return rows, total, nil
}

// gridParser handles the tabular markup variant: <TR> rows of <TD> cells
// in the grid's fixed column order.
type gridParser struct{}

// gridColumns maps the grid's cell positions (first cell is a row marker)
// onto upstream field names.
var gridColumns = []string{
	"", // row state marker
	"notam_type",
	"issue_time",
	"location",
	"notam_no",
	"qcode",
	"start_time",
	"end_time",
	"full_text",
	"full_text_detail",
}

func (gridParser) Parse(body []byte) ([]map[string]string, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var rows []map[string]string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < len(gridColumns) {
			return
		}
		row := make(map[string]string, len(gridColumns)-1)
		cells.Each(func(i int, td *goquery.Selection) {
			if i >= len(gridColumns) || gridColumns[i] == "" {
				return
			}
			row[gridColumns[i]] = strings.TrimSpace(td.Text())
		})
		rows = append(rows, row)
	})

	return rows, -1, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func preview(b []byte) string {
	const n = 80
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
