package projector

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapedesk/models"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/xuri/excelize/v2"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    Kind
		records int
		text    string
	}{
		{"results object", `{"results":[{"a":1},{"a":2}],"task_id":"t"}`, KindTabular, 2, ""},
		{"bare array", `[{"a":1}]`, KindTabular, 1, ""},
		{"empty array", `[]`, KindTabular, 0, ""},
		{"empty results", `{"results":[]}`, KindTabular, 0, ""},
		{"string", `"<html>hi</html>"`, KindScalar, 0, "<html>hi</html>"},
		{"object without results", `{"title":"T","snippet":"S"}`, KindScalar, 0, "{\n  \"title\": \"T\",\n  \"snippet\": \"S\"\n}"},
		{"results not array", `{"results":"nope"}`, KindScalar, 0, "{\n  \"results\": \"nope\"\n}"},
		{"array of scalars", `[1,2]`, KindScalar, 0, "[\n  1,\n  2\n]"},
		{"number", `42`, KindScalar, 0, "42"},
		{"null", `null`, KindEmpty, 0, ""},
		{"nothing", ``, KindEmpty, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(json.RawMessage(tt.raw))
			assert.Equal(t, tt.kind, p.Kind)
			assert.Len(t, p.Records, tt.records)
			assert.Equal(t, tt.text, p.Text)
		})
	}
}

func TestNormalizeKeepsKeyOrder(t *testing.T) {
	p := Normalize(json.RawMessage(`[{"zeta":1,"alpha":2,"mid":3}]`))
	require.Equal(t, KindTabular, p.Kind)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, Keys(p.Records[0]))
}

func TestFieldOrder(t *testing.T) {
	specs := []models.FieldSpec{
		{ID: "1", Name: "  price ", Selector: ".price"},
		{ID: "2", Name: "", Selector: ".x"},
		{ID: "3", Name: "title", Selector: ""},
		{ID: "4", Name: "   ", Selector: ".y"},
		{ID: "5", Name: "name", Selector: "h2"},
	}
	assert.Equal(t, []string{"price", "name"}, FieldOrder(specs))
	assert.Empty(t, FieldOrder(nil))
}

func TestColumnsPreferFieldOrder(t *testing.T) {
	p := Normalize(json.RawMessage(`[{"b":1,"a":2,"c":3}]`))

	withOrder := Project(p, []string{"c", "a"})
	assert.Equal(t, []string{"c", "a"}, withOrder.Columns)

	withoutOrder := Project(p, nil)
	assert.Equal(t, []string{"b", "a", "c"}, withoutOrder.Columns)
}

func TestKeyColumnFilter(t *testing.T) {
	p := Normalize(json.RawMessage(`[{"name":"A","price":1},{"name":"","price":2},{"name":null,"price":3}]`))
	proj := Project(p, []string{"name", "price"})

	assert.Equal(t, "name", proj.KeyColumn)
	require.Len(t, proj.Rows, 1)
	assert.Equal(t, 2, proj.Dropped)
	assert.Equal(t, [][]string{{"A", "1"}}, proj.Cells())
}

func TestKeyColumnDropsWhitespaceAndMissing(t *testing.T) {
	p := Normalize(json.RawMessage(`[{"Title":"x","n":1},{"Title":"   ","n":2},{"n":3}]`))
	proj := Project(p, nil)

	assert.Equal(t, "Title", proj.KeyColumn)
	assert.Len(t, proj.Rows, 1)
}

func TestKeyColumnMustExistInFirstRecord(t *testing.T) {
	// "name" is listed first but absent from the first record, so "title" wins.
	p := Normalize(json.RawMessage(`[{"title":"T1"},{"name":"N","title":""}]`))
	proj := Project(p, []string{"name", "title"})

	assert.Equal(t, "title", proj.KeyColumn)
	require.Len(t, proj.Rows, 1)
	assert.Equal(t, [][]string{{Placeholder, "T1"}}, proj.Cells())
}

func TestNoKeyColumnKeepsAllRows(t *testing.T) {
	p := Normalize(json.RawMessage(`[{"price":""},{"price":null}]`))
	proj := Project(p, nil)

	assert.Empty(t, proj.KeyColumn)
	assert.Len(t, proj.Rows, 2)
	assert.Equal(t, [][]string{{""}, {Placeholder}}, proj.Cells())
}

func TestEmptyResultsMessage(t *testing.T) {
	proj := Project(Normalize(json.RawMessage(`{"results":[]}`)), []string{"name"})
	assert.Equal(t, MsgNoResults, proj.Message)
	assert.False(t, proj.HasTable())
}

func TestAllRowsFilteredKeepsRaw(t *testing.T) {
	proj := Project(Normalize(json.RawMessage(`[{"name":""},{"name":null}]`)), nil)

	assert.Equal(t, MsgAllFiltered, proj.Message)
	assert.Empty(t, proj.Rows)
	assert.Contains(t, proj.Raw, `"name": ""`)
	assert.Contains(t, proj.Raw, `"name": null`)
}

func TestScalarAndEmptyProjection(t *testing.T) {
	proj := Project(Normalize(json.RawMessage(`"plain text"`)), []string{"name"})
	assert.Equal(t, KindScalar, proj.Kind)
	assert.Equal(t, "plain text", proj.Text)
	assert.Nil(t, proj.Columns)

	empty := Project(Normalize(nil), nil)
	assert.Equal(t, KindEmpty, empty.Kind)
	assert.Equal(t, MsgNoData, empty.Message)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "1", Stringify(float64(1)))
	assert.Equal(t, "1.5", Stringify(1.5))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "x", Stringify("x"))
	assert.Equal(t, `["a","b"]`, Stringify([]any{"a", "b"}))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
	assert.Equal(t, "", Stringify(nil))
}

func TestEscapeCSV(t *testing.T) {
	assert.Equal(t, "\"He said, \"\"hi\"\"\ntoday\"", EscapeCSV("He said, \"hi\"\ntoday"))
	assert.Equal(t, "plain", EscapeCSV("plain"))
	assert.Equal(t, " leading", EscapeCSV(" leading"))
	assert.Equal(t, `"a,b"`, EscapeCSV("a,b"))
}

func TestExportCSV(t *testing.T) {
	p := Normalize(json.RawMessage(`{"results":[{"name":"Widget, large","price":9.5},{"name":"Gadget","note":"say \"hi\""}]}`))
	proj := Project(p, []string{"name", "price", "note"})

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, proj))

	want := strings.Join([]string{
		"name,price,note",
		`"Widget, large",9.5,`,
		`Gadget,,"say ""hi"""`,
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestExportCSVRefusesWithoutColumns(t *testing.T) {
	proj := Project(Normalize(json.RawMessage(`[]`)), nil)
	var buf bytes.Buffer
	assert.ErrorIs(t, ExportCSV(&buf, proj), ErrNoColumns)
	assert.Zero(t, buf.Len())

	assert.ErrorIs(t, ExportCSV(&buf, Project(Normalize(nil), nil)), ErrNothingToExport)
}

func TestExportCSVScalar(t *testing.T) {
	proj := Project(Normalize(json.RawMessage(`"a, b"`)), nil)
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, proj))
	assert.Equal(t, "content\n\"a, b\"", buf.String())
}

func TestExportJSONRoundTrip(t *testing.T) {
	p := Normalize(json.RawMessage(`[{"title":"B","z":1,"a":"x"},{"title":"","z":2},{"title":"A","z":3,"a":"<y>"}]`))
	proj := Project(p, nil)

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, proj))
	assert.Contains(t, buf.String(), "\n  {")

	var back []*orderedmap.OrderedMap[string, any]
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 2)
	assert.Equal(t, []string{"title", "z", "a"}, Keys(back[0]))

	title, _ := back[1].Get("title")
	a, _ := back[1].Get("a")
	assert.Equal(t, "A", title)
	assert.Equal(t, "<y>", a)
}

func TestExportXLSX(t *testing.T) {
	proj := Project(Normalize(json.RawMessage(`[{"name":"A","price":1}]`)), nil)

	var buf bytes.Buffer
	require.NoError(t, ExportXLSX(&buf, proj))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name", "price"}, {"A", "1"}}, rows)
}

func TestRenderMarkdown(t *testing.T) {
	proj := Project(Normalize(json.RawMessage(`[{"name":"A","price":1}]`)), nil)

	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, proj))
	out := buf.String()
	assert.Contains(t, out, "| name | price |")
	assert.Contains(t, out, "| A | 1 |")
}

func TestRenderTableFallbacks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, Project(Normalize(json.RawMessage(`[]`)), nil)))
	assert.Equal(t, MsgNoResults+"\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderTable(&buf, Project(Normalize(json.RawMessage(`"hello"`)), nil)))
	assert.Equal(t, "hello\n", buf.String())
}

func TestParseFormatAndFilename(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)

	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "scraped_data_dynamic_20240305_140709.csv", Filename("dynamic", FormatCSV, ts))
	assert.Equal(t, "scraped_data_result_20240305_140709.json", Filename("", FormatJSON, ts))
}

func TestNestedObjectsKeepKeyOrder(t *testing.T) {
	p := Normalize(json.RawMessage(`[{"name":"A","meta":{"z":1,"a":2},"tags":[{"y":true,"b":null}]}]`))
	require.Equal(t, KindTabular, p.Kind)

	meta, _ := p.Records[0].Get("meta")
	tags, _ := p.Records[0].Get("tags")
	assert.Equal(t, `{"z":1,"a":2}`, Stringify(meta))
	assert.Equal(t, `[{"y":true,"b":null}]`, Stringify(tags))

	proj := Project(p, nil)
	var csv bytes.Buffer
	require.NoError(t, ExportCSV(&csv, proj))
	assert.Equal(t, "name,meta,tags\nA,\"{\"\"z\"\":1,\"\"a\"\":2}\",\"[{\"\"y\"\":true,\"\"b\"\":null}]\"", csv.String())

	var out bytes.Buffer
	require.NoError(t, ExportJSON(&out, proj))
	js := out.String()
	assert.Less(t, strings.Index(js, `"z": 1`), strings.Index(js, `"a": 2`))
}
