package tabular

import (
	"encoding/csv"
	"errors"
	"io"

	qerrors "github.com/hpungsan/quire/internal/errors"
)

// ReadCSV parses CSV into a Document. The first record is the header; an
// empty input yields a Document with no columns.
func ReadCSV(r io.Reader) (Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, qerrors.NewFormat("failed to parse CSV header", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, qerrors.NewFormat("failed to parse CSV", err)
		}
		rows = append(rows, rec)
	}
	return FromValues(header, rows), nil
}

// WriteCSV writes the header and every row's values.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(doc.Header); err != nil {
		return qerrors.NewResource("failed to write CSV", err)
	}
	for _, r := range doc.Rows {
		if err := cw.Write(r.Values()); err != nil {
			return qerrors.NewResource("failed to write CSV", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return qerrors.NewResource("failed to write CSV", err)
	}
	return nil
}
