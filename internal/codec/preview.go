package codec

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hpungsan/quire/internal/batch"
	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/workspace"
)

// PreviewName labels the page-preview transform in logs and metrics. It is
// not a Kind: previews produce no job and are never archived.
const PreviewName = "pdf-preview"

// Preview resolution bounds in DPI.
const (
	DefaultPreviewDPI = 72
	MinPreviewDPI     = 36
	MaxPreviewDPI     = 300
)

// PreviewPage returns a single-capable transform that renders one page of a
// PDF to PNG. A page past the end of the document is NOT_FOUND.
func (r *Registry) PreviewPage(page, dpi int) batch.Transform {
	return batch.Transform{
		Name:          PreviewName,
		SingleCapable: true,
		Apply: func(ctx context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			if err := requireKind(in, PreviewName, batch.KindPDF); err != nil {
				return batch.OutputItem{}, err
			}
			if r.raster == nil {
				return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, PreviewName)
			}
			src, err := stage(ws, in)
			if err != nil {
				return batch.OutputItem{}, err
			}
			if r.pdf != nil {
				n, err := r.pdf.PageCount(ctx, src)
				if err != nil {
					return batch.OutputItem{}, qerrors.NewFormat("cannot read "+in.Name, err)
				}
				if page > n {
					return batch.OutputItem{}, qerrors.NewNotFound("page", fmt.Sprintf("%d of %d", page, n))
				}
			}

			name := in.Stem() + "-p" + strconv.Itoa(page) + ".png"
			out, err := ws.Path(name)
			if err != nil {
				return batch.OutputItem{}, err
			}
			if err := r.raster.RenderPNG(ctx, src, out, page, dpi); err != nil {
				return batch.OutputItem{}, qerrors.NewFormat("page rendering failed", err)
			}
			return output(name, out, true)
		},
	}
}
