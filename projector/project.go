package projector

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Placeholder is displayed for a missing or null cell.
const Placeholder = "N/A"

// Messages shown instead of a table.
const (
	MsgNoResults   = "No results found."
	MsgAllFiltered = "All scraped rows were filtered out (missing key identifier)."
	MsgNoData      = "No data available."
)

// keyVocabulary lists column names that identify a row.
var keyVocabulary = map[string]struct{}{
	"name":    {},
	"title":   {},
	"product": {},
	"item":    {},
	"heading": {},
	"header":  {},
}

// Projection is the display-ready view of a payload.
type Projection struct {
	Kind Kind

	// Columns is the resolved column order. Empty for non-tabular kinds.
	Columns []string

	// Rows are the records that survived the key-column filter, in order.
	Rows []Record

	// KeyColumn is the identifying column used for filtering, if any.
	KeyColumn string

	// Dropped counts records removed by the key-column filter.
	Dropped int

	// Text holds scalar content.
	Text string

	// Message replaces the table when there is nothing to show.
	Message string

	// Raw is the pretty JSON of all unfiltered records, set when every row
	// was filtered out so the data can still be inspected.
	Raw string
}

// HasTable reports whether the projection renders as a table.
func (p *Projection) HasTable() bool {
	return p.Kind == KindTabular && len(p.Rows) > 0 && len(p.Columns) > 0
}

// Project builds the display table for payload. A non-empty fieldOrder is
// authoritative for column order; otherwise the first record's key order is
// used.
func Project(payload Payload, fieldOrder []string) *Projection {
	switch payload.Kind {
	case KindEmpty:
		return &Projection{Kind: KindEmpty, Message: MsgNoData}
	case KindScalar:
		return &Projection{Kind: KindScalar, Text: payload.Text}
	}

	p := &Projection{Kind: KindTabular}
	if len(payload.Records) == 0 {
		p.Message = MsgNoResults
		return p
	}

	first := payload.Records[0]
	if len(fieldOrder) > 0 {
		p.Columns = append([]string(nil), fieldOrder...)
	} else {
		p.Columns = Keys(first)
	}

	p.KeyColumn = KeyColumn(p.Columns, first)
	p.Rows = FilterRows(payload.Records, p.KeyColumn)
	p.Dropped = len(payload.Records) - len(p.Rows)

	if len(p.Rows) == 0 {
		p.Message = MsgAllFiltered
		p.Raw = recordsJSON(payload.Records)
	}
	return p
}

// KeyColumn returns the first column, in order, whose lower-cased name is in
// the key vocabulary and which exists in first. It returns "" when none does.
func KeyColumn(columns []string, first Record) string {
	if first == nil {
		return ""
	}
	for _, col := range columns {
		if _, ok := keyVocabulary[strings.ToLower(col)]; !ok {
			continue
		}
		if _, present := first.Get(col); present {
			return col
		}
	}
	return ""
}

// FilterRows drops records whose keyColumn value is missing, null, or blank
// after trimming. With an empty keyColumn every record is kept.
func FilterRows(records []Record, keyColumn string) []Record {
	if keyColumn == "" {
		return records
	}
	kept := make([]Record, 0, len(records))
	for _, rec := range records {
		v, ok := rec.Get(keyColumn)
		if !ok || v == nil {
			continue
		}
		if strings.TrimSpace(Stringify(v)) == "" {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// Cells returns the rows restricted to the resolved columns, with
// Placeholder for missing or null values.
func (p *Projection) Cells() [][]string {
	out := make([][]string, 0, len(p.Rows))
	for _, rec := range p.Rows {
		row := make([]string, len(p.Columns))
		for i, col := range p.Columns {
			v, ok := rec.Get(col)
			if !ok || v == nil {
				row[i] = Placeholder
				continue
			}
			row[i] = Stringify(v)
		}
		out = append(out, row)
	}
	return out
}

// Stringify converts a decoded JSON value to display text. Objects and
// arrays are rendered as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func recordsJSON(records []Record) string {
	b, err := json.Marshal(records)
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return string(b)
	}
	return buf.String()
}
