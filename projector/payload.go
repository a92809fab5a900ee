// Package projector turns raw backend scrape results into stable tables for
// display and export.
package projector

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/use-agent/scrapedesk/models"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind tags the shape of a normalized payload.
type Kind string

const (
	KindEmpty   Kind = "empty"
	KindTabular Kind = "tabular"
	KindScalar  Kind = "scalar"
)

// Record is one scraped row. Key order follows the backend's JSON.
type Record = *orderedmap.OrderedMap[string, any]

// Payload is the normalized form of a backend result.
type Payload struct {
	Kind Kind

	// Records is set for KindTabular and may be empty.
	Records []Record

	// Text is set for KindScalar: the string itself, or the pretty JSON of
	// any other value.
	Text string
}

// Normalize classifies a raw backend payload. An object with an array
// "results" field and a bare array of objects are tabular; a JSON string is
// scalar text; any other value is scalar pretty JSON; null or nothing is
// empty.
func Normalize(raw json.RawMessage) Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Payload{Kind: KindEmpty}
	}

	switch trimmed[0] {
	case '[':
		if records, ok := decodeRecords(trimmed); ok {
			return Payload{Kind: KindTabular, Records: records}
		}
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if results, ok := probe["results"]; ok {
				results = bytes.TrimSpace(results)
				if len(results) > 0 && results[0] == '[' {
					if records, ok := decodeRecords(results); ok {
						return Payload{Kind: KindTabular, Records: records}
					}
				}
			}
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return Payload{Kind: KindScalar, Text: s}
		}
	}

	return Payload{Kind: KindScalar, Text: prettyJSON(trimmed)}
}

// decodeRecords decodes a JSON array whose elements are all objects.
// Objects at every depth keep their key order.
func decodeRecords(raw []byte) ([]Record, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, false
		}
		v, err := decodeOrdered(json.NewDecoder(bytes.NewReader(item)))
		if err != nil {
			return nil, false
		}
		rec, ok := v.(Record)
		if !ok {
			return nil, false
		}
		records = append(records, rec)
	}
	return records, true
}

// decodeOrdered reads one JSON value from dec. Objects become ordered maps,
// arrays []any, and scalars the types encoding/json uses for any.
func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := orderedmap.New[string, any]()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("projector: object key is %T", kt)
			}
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		_, err = dec.Token()
		return obj, err
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		_, err = dec.Token()
		return arr, err
	}
	return nil, fmt.Errorf("projector: unexpected delimiter %q", delim)
}

// prettyJSON indents raw JSON with two spaces, keeping key order. Invalid
// JSON is returned as-is.
func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Keys returns the keys of rec in order.
func Keys(rec Record) []string {
	keys := make([]string, 0, rec.Len())
	for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// FieldOrder derives the display column order from user field specs:
// trimmed names of specs whose name and selector are both non-empty.
func FieldOrder(specs []models.FieldSpec) []string {
	order := make([]string, 0, len(specs))
	for _, s := range specs {
		if name, ok := s.Complete(); ok {
			order = append(order, name)
		}
	}
	return order
}
