package ops

import (
	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/codec"
)

// PreviewInput contains parameters for the PreviewTable operation.
type PreviewInput struct {
	Item     batch.InputItem
	Page     int // 1-based, default: 1
	PageSize int // default: 50, max: 500
}

// PreviewOutput is one page of a spreadsheet's data rows.
type PreviewOutput struct {
	Name       string              `json:"name"`
	Columns    []string            `json:"columns"`
	Rows       []map[string]string `json:"data"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalRows  int                 `json:"total_rows"`
	TotalPages int                 `json:"total_pages"`
}

// PreviewTable decodes an XLSX or CSV upload and returns one page of rows
// keyed by header name. A page past the end yields no rows.
func PreviewTable(input PreviewInput) (*PreviewOutput, error) {
	doc, err := codec.ReadTable(input.Item)
	if err != nil {
		return nil, err
	}

	page := max(input.Page, 1)
	size := clampLimit(input.PageSize, DefaultPreviewPageSize, MaxPreviewPageSize)

	total := len(doc.Rows)
	out := &PreviewOutput{
		Name:       input.Item.Name,
		Columns:    doc.Header,
		Rows:       []map[string]string{},
		Page:       page,
		PageSize:   size,
		TotalRows:  total,
		TotalPages: (total + size - 1) / size,
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}

	start := (page - 1) * size
	if start >= total {
		return out, nil
	}
	end := min(start+size, total)

	for _, row := range doc.Rows[start:end] {
		values := row.Values()
		m := make(map[string]string, len(doc.Header))
		for i, col := range doc.Header {
			if i < len(values) {
				m[col] = values[i]
			}
		}
		out.Rows = append(out.Rows, m)
	}
	return out, nil
}
