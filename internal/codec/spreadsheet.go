package codec

import (
	"bytes"
	"context"

	"github.com/hpungsan/quire/internal/batch"
	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/tabular"
	"github.com/hpungsan/quire/internal/workspace"
)

// rowEdit rewrites a document's rows.
type rowEdit func(tabular.Document) (tabular.Document, error)

func (r *Registry) excelExpand(col tabular.RepeatColumn) batch.Transform {
	return batch.Transform{
		Name:          string(KindExcelExpand),
		SingleCapable: true,
		Apply: func(_ context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			return rewriteTable(ws, in, KindExcelExpand, func(doc tabular.Document) (tabular.Document, error) {
				return tabular.Expand(doc, col)
			})
		},
	}
}

func (r *Registry) duplicateRow(row, count int) batch.Transform {
	return batch.Transform{
		Name:          string(KindDuplicateRow),
		SingleCapable: true,
		Apply: func(_ context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			return rewriteTable(ws, in, KindDuplicateRow, func(doc tabular.Document) (tabular.Document, error) {
				return tabular.DuplicateRow(doc, row, count)
			})
		},
	}
}

// rewriteTable decodes an XLSX or CSV input, applies edit and writes the
// result under the input's own name.
func rewriteTable(ws *workspace.Workspace, in batch.InputItem, kind Kind, edit rowEdit) (batch.OutputItem, error) {
	var out bytes.Buffer

	switch in.Kind {
	case batch.KindSpreadsheet:
		wb, err := tabular.ReadXLSX(in.Data)
		if err != nil {
			return batch.OutputItem{}, err
		}
		doc, err := edit(wb.Document)
		if err != nil {
			return batch.OutputItem{}, err
		}
		if err := tabular.WriteXLSX(&out, wb, doc); err != nil {
			return batch.OutputItem{}, err
		}
	case batch.KindCSV:
		src, err := tabular.ReadCSV(bytes.NewReader(in.Data))
		if err != nil {
			return batch.OutputItem{}, err
		}
		doc, err := edit(src)
		if err != nil {
			return batch.OutputItem{}, err
		}
		if err := tabular.WriteCSV(&out, doc); err != nil {
			return batch.OutputItem{}, err
		}
	default:
		return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(kind))
	}

	name := workspace.SafeName(in.Name)
	path, err := ws.Register(name, out.Bytes())
	if err != nil {
		return batch.OutputItem{}, err
	}
	return output(name, path, true)
}

// ReadTable decodes an XLSX or CSV blob into a Document.
func ReadTable(in batch.InputItem) (tabular.Document, error) {
	switch in.Kind {
	case batch.KindSpreadsheet:
		wb, err := tabular.ReadXLSX(in.Data)
		if err != nil {
			return tabular.Document{}, err
		}
		return wb.Document, nil
	case batch.KindCSV:
		return tabular.ReadCSV(bytes.NewReader(in.Data))
	default:
		return tabular.Document{}, qerrors.NewUnsupported(in.Name, "table preview")
	}
}
