// Package tabular holds the spreadsheet model and the row-expansion engine.
//
// The engine works on Document values and never touches files; the CSV and
// XLSX codecs translate between bytes and Documents while carrying enough of
// the source formatting (styles, raw cell payloads) to write it back.
package tabular

import (
	"strings"

	"golang.org/x/text/cases"
)

// CellKind is the value type of a cell.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindString
	KindNumber
	KindBool
)

func (k CellKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "empty"
	}
}

// Style is an opaque formatting token. Codecs decide what the attributes mean.
type Style struct {
	Attrs map[string]string
}

// Clone returns a deep copy; replicas never share attribute maps.
func (s Style) Clone() Style {
	if s.Attrs == nil {
		return Style{}
	}
	attrs := make(map[string]string, len(s.Attrs))
	for k, v := range s.Attrs {
		attrs[k] = v
	}
	return Style{Attrs: attrs}
}

// Get returns attribute k, or "".
func (s Style) Get(k string) string { return s.Attrs[k] }

// Cell is one spreadsheet cell. Raw, when set, is the codec's original
// payload and is written back verbatim in preference to Value.
type Cell struct {
	Value string
	Kind  CellKind
	Style Style
	Raw   string
}

// StringCell builds a plain string cell (empty values become KindEmpty).
func StringCell(v string) Cell {
	if v == "" {
		return Cell{}
	}
	return Cell{Value: v, Kind: KindString}
}

// Set replaces the value and drops any raw payload.
func (c *Cell) Set(value string, kind CellKind) {
	c.Value = value
	c.Kind = kind
	c.Raw = ""
}

// Clone returns a deep copy.
func (c Cell) Clone() Cell {
	c.Style = c.Style.Clone()
	return c
}

// Row is an ordered list of cells plus row-level formatting.
type Row struct {
	Cells []Cell
	Style Style
}

// Clone returns a deep copy.
func (r Row) Clone() Row {
	cells := make([]Cell, len(r.Cells))
	for i, c := range r.Cells {
		cells[i] = c.Clone()
	}
	return Row{Cells: cells, Style: r.Style.Clone()}
}

// Values returns the cell values.
func (r Row) Values() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Value
	}
	return out
}

// Document is a header row plus data rows. Every row has len(Header) cells.
type Document struct {
	Header []string
	Rows   []Row
}

// NewDocument builds a Document, padding or truncating rows to the header width.
func NewDocument(header []string, rows []Row) Document {
	doc := Document{Header: append([]string(nil), header...)}
	doc.Rows = make([]Row, len(rows))
	for i, r := range rows {
		doc.Rows[i] = fitRow(r, len(header))
	}
	return doc
}

// FromValues builds a Document of string cells.
func FromValues(header []string, rows [][]string) Document {
	rs := make([]Row, len(rows))
	for i, vals := range rows {
		cells := make([]Cell, len(vals))
		for j, v := range vals {
			cells[j] = StringCell(v)
		}
		rs[i] = Row{Cells: cells}
	}
	return NewDocument(header, rs)
}

func fitRow(r Row, width int) Row {
	out := r.Clone()
	switch {
	case len(out.Cells) < width:
		out.Cells = append(out.Cells, make([]Cell, width-len(out.Cells))...)
	case len(out.Cells) > width:
		out.Cells = out.Cells[:width]
	}
	return out
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{Header: append([]string(nil), d.Header...)}
	if d.Rows != nil {
		out.Rows = make([]Row, len(d.Rows))
		for i, r := range d.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	return out
}

// Values returns every row's cell values, without the header.
func (d Document) Values() [][]string {
	out := make([][]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Values()
	}
	return out
}

// RepeatColumn names the column holding per-row repeat counts. The first
// candidate found in the header wins.
type RepeatColumn struct {
	Names []string
}

// DefaultRepeatColumn matches the Spanish and English column names used by
// the upload form.
var DefaultRepeatColumn = RepeatColumn{Names: []string{"cantidad", "quantity"}}

// NewRepeatColumn returns a RepeatColumn for the given names, or the default
// when none are non-blank.
func NewRepeatColumn(names ...string) RepeatColumn {
	var out []string
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return DefaultRepeatColumn
	}
	return RepeatColumn{Names: out}
}

// ColumnIndex returns the header position of col, or -1. Names are compared
// after trimming, with Unicode case folding.
func (d Document) ColumnIndex(col RepeatColumn) int {
	fold := cases.Fold()
	norm := func(s string) string { return fold.String(strings.TrimSpace(s)) }

	for _, name := range col.Names {
		want := norm(name)
		for i, h := range d.Header {
			if norm(h) == want {
				return i
			}
		}
	}
	return -1
}
