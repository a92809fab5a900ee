package projector

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrNoColumns is returned when a table export has no column to write.
	ErrNoColumns = errors.New("projector: no columns to export")

	// ErrNothingToExport is returned for empty payloads.
	ErrNothingToExport = errors.New("projector: nothing to export")
)

// ScalarColumn is the single column used when exporting scalar content as a table.
const ScalarColumn = "content"

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "md"
)

// ParseFormat validates an export format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV, FormatXLSX, FormatMarkdown:
		return f, nil
	}
	return "", fmt.Errorf("projector: unsupported export format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Filename names a download for scrapeType at t.
func Filename(scrapeType string, f Format, t time.Time) string {
	if scrapeType == "" {
		scrapeType = "result"
	}
	return fmt.Sprintf("scraped_data_%s_%s.%s", scrapeType, t.Format("20060102_150405"), f)
}

// Export writes p to w in format f.
func Export(w io.Writer, p *Projection, f Format) error {
	switch f {
	case FormatJSON:
		return ExportJSON(w, p)
	case FormatCSV:
		return ExportCSV(w, p)
	case FormatXLSX:
		return ExportXLSX(w, p)
	case FormatMarkdown:
		return RenderMarkdown(w, p)
	}
	return fmt.Errorf("projector: unsupported export format %q", f)
}

// ExportJSON writes the filtered rows as pretty JSON, preserving row and key
// order. Scalar content is written as a JSON string.
func ExportJSON(w io.Writer, p *Projection) error {
	var v any
	switch p.Kind {
	case KindTabular:
		rows := p.Rows
		if rows == nil {
			rows = []Record{}
		}
		v = rows
	case KindScalar:
		v = p.Text
	default:
		return ErrNothingToExport
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ExportCSV writes the projection as CSV: a header of the resolved columns,
// then one line per row, joined by "\n". Scalar content becomes a single
// "content" column with one row.
func ExportCSV(w io.Writer, p *Projection) error {
	columns, rows, err := exportTable(p)
	if err != nil {
		return err
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, csvLine(columns))
	for _, row := range rows {
		lines = append(lines, csvLine(row))
	}
	_, err = io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// ExportXLSX writes the projection as a single-sheet workbook.
func ExportXLSX(w io.Writer, p *Projection) error {
	columns, rows, err := exportTable(p)
	if err != nil {
		return err
	}

	const sheet = "Results"
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("projector: rename sheet: %w", err)
	}

	for r, values := range append([][]string{columns}, rows...) {
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("projector: cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("projector: set cell %s: %w", cell, err)
			}
		}
	}
	return f.Write(w)
}

// exportTable resolves the header and stringified rows shared by the tabular
// exports. Missing and null cells export as empty strings.
func exportTable(p *Projection) ([]string, [][]string, error) {
	switch p.Kind {
	case KindScalar:
		return []string{ScalarColumn}, [][]string{{p.Text}}, nil
	case KindTabular:
	default:
		return nil, nil, ErrNothingToExport
	}

	if len(p.Columns) == 0 {
		return nil, nil, ErrNoColumns
	}
	rows := make([][]string, 0, len(p.Rows))
	for _, rec := range p.Rows {
		row := make([]string, len(p.Columns))
		for i, col := range p.Columns {
			if v, ok := rec.Get(col); ok {
				row[i] = Stringify(v)
			}
		}
		rows = append(rows, row)
	}
	return p.Columns, rows, nil
}

func csvLine(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = EscapeCSV(c)
	}
	return strings.Join(escaped, ",")
}

// EscapeCSV quotes a cell that contains a comma, double quote or newline,
// doubling any inner quotes. Other cells are returned unchanged.
func EscapeCSV(cell string) string {
	if !strings.ContainsAny(cell, ",\"\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}
