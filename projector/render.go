package projector

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderTable writes a boxed text table for terminals.
func RenderTable(w io.Writer, p *Projection) error {
	if !p.HasTable() {
		return renderFallback(w, p)
	}
	t := newTable(p)
	t.SetStyle(table.StyleRounded)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// RenderMarkdown writes a Markdown table.
func RenderMarkdown(w io.Writer, p *Projection) error {
	if !p.HasTable() {
		return renderFallback(w, p)
	}
	_, err := fmt.Fprintln(w, newTable(p).RenderMarkdown())
	return err
}

func newTable(p *Projection) table.Writer {
	t := table.NewWriter()

	header := make(table.Row, len(p.Columns))
	for i, c := range p.Columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, cells := range p.Cells() {
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}
	return t
}

func renderFallback(w io.Writer, p *Projection) error {
	var err error
	switch {
	case p.Kind == KindScalar:
		_, err = fmt.Fprintln(w, p.Text)
	case p.Raw != "":
		_, err = fmt.Fprintf(w, "%s\n%s\n", p.Message, p.Raw)
	default:
		_, err = fmt.Fprintln(w, p.Message)
	}
	return err
}
