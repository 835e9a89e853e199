package tabular

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"

	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/logfields"
)

// MaxRepeat caps the replicas produced for a single row.
const MaxRepeat = 10000

// MaxOutputRows is the most data rows a result may hold: a full sheet
// minus its header row.
const MaxOutputRows = MaxRows - 1

// Expand replaces each data row by N copies of itself, where N is the row's
// value in the repeat column (see RepeatCount). Row order is preserved and
// every replica carries a deep copy of the source formatting.
//
// A document without the repeat column is returned unchanged. A document
// with no header columns is a FORMAT error. doc is never modified.
func Expand(doc Document, col RepeatColumn) (Document, error) {
	if len(doc.Header) == 0 {
		return Document{}, qerrors.NewFormat("document has no header columns", nil)
	}

	idx := doc.ColumnIndex(col)
	if idx < 0 {
		return doc.Clone(), nil
	}

	counts := make([]int, len(doc.Rows))
	total := 0
	for i, r := range doc.Rows {
		n := 1
		if idx < len(r.Cells) {
			var clamped bool
			n, clamped = repeatCount(r.Cells[idx])
			if clamped {
				slog.Warn("Repeat count clamped",
					slog.Int("row", i+2),
					slog.String("value", strings.TrimSpace(r.Cells[idx].Value)),
					logfields.Count(n))
			}
		}
		counts[i] = n
		total += n
	}
	if total > MaxOutputRows {
		return Document{}, qerrors.NewTooManyRows(total, MaxOutputRows)
	}

	out := Document{
		Header: append([]string(nil), doc.Header...),
		Rows:   make([]Row, 0, total),
	}
	for i, r := range doc.Rows {
		for k := 0; k < counts[i]; k++ {
			out.Rows = append(out.Rows, fitRow(r, len(doc.Header)))
		}
	}
	return out, nil
}

// RepeatCount coerces a cell to a replica count. Empty, non-numeric, zero
// and negative values all count as 1; numeric cells are truncated toward
// zero; counts above MaxRepeat are clamped.
func RepeatCount(c Cell) int {
	n, _ := repeatCount(c)
	return n
}

// repeatCount is RepeatCount that also reports whether MaxRepeat was applied.
func repeatCount(c Cell) (int, bool) {
	v := strings.TrimSpace(c.Value)
	n := 1

	switch c.Kind {
	case KindNumber:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 1, false
		}
		if f > MaxRepeat {
			return MaxRepeat, true
		}
		n = int(f)
	case KindString:
		i, err := strconv.Atoi(v)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(v, "-") {
				return MaxRepeat, true
			}
			return 1, false
		}
		n = i
	}

	if n < 1 {
		return 1, false
	}
	if n > MaxRepeat {
		return MaxRepeat, true
	}
	return n, false
}

// DuplicateRow inserts count copies of the row at rowIndex immediately after
// it. rowIndex uses spreadsheet numbering: the header is row 1, so the first
// data row is 2. A count of zero or less returns the document unchanged.
func DuplicateRow(doc Document, rowIndex, count int) (Document, error) {
	if count <= 0 {
		return doc.Clone(), nil
	}
	if rowIndex < 2 || rowIndex > len(doc.Rows)+1 {
		return Document{}, qerrors.NewNotFound("row", strconv.Itoa(rowIndex))
	}
	if count > MaxRepeat {
		slog.Warn("Duplicate count clamped", slog.Int("row", rowIndex), logfields.Count(MaxRepeat))
		count = MaxRepeat
	}
	if total := len(doc.Rows) + count; total > MaxOutputRows {
		return Document{}, qerrors.NewTooManyRows(total, MaxOutputRows)
	}

	pos := rowIndex - 2
	out := Document{
		Header: append([]string(nil), doc.Header...),
		Rows:   make([]Row, 0, len(doc.Rows)+count),
	}
	for i, r := range doc.Rows {
		out.Rows = append(out.Rows, r.Clone())
		if i == pos {
			for k := 0; k < count; k++ {
				out.Rows = append(out.Rows, r.Clone())
			}
		}
	}
	return out, nil
}
