package codec

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/quire/internal/batch"
	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/pagerange"
	"github.com/hpungsan/quire/internal/workspace"
)

func (r *Registry) compress() batch.Transform {
	return batch.Transform{
		Name: string(KindCompress),
		Apply: func(_ context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			path, err := stage(ws, in)
			if err != nil {
				return batch.OutputItem{}, err
			}
			return output(workspace.SafeName(in.Name), path, true)
		},
	}
}

func (r *Registry) convertToPDF() batch.Transform {
	return batch.Transform{
		Name: string(KindConvertToPDF),
		Apply: func(ctx context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			name := in.Stem() + ".pdf"

			switch in.Kind {
			case batch.KindPDF:
				path, err := stage(ws, in)
				if err != nil {
					return batch.OutputItem{}, err
				}
				return output(name, path, true)

			case batch.KindImage:
				if r.pdf == nil {
					return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(KindConvertToPDF))
				}
				src, err := stage(ws, in)
				if err != nil {
					return batch.OutputItem{}, err
				}
				out, err := ws.Path(name)
				if err != nil {
					return batch.OutputItem{}, err
				}
				if err := r.pdf.ImagesToPDF(ctx, []string{src}, out); err != nil {
					return batch.OutputItem{}, qerrors.NewFormat("image conversion failed", err)
				}
				return output(name, out, true)

			case batch.KindHTML, batch.KindMarkdown, batch.KindText:
				if r.html == nil {
					return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(KindConvertToPDF))
				}
				page, err := htmlPage(in)
				if err != nil {
					return batch.OutputItem{}, err
				}
				src, err := ws.Register(in.Stem()+".html", page)
				if err != nil {
					return batch.OutputItem{}, err
				}
				out, err := ws.Path(name)
				if err != nil {
					return batch.OutputItem{}, err
				}
				if err := r.html.RenderPDF(ctx, src, out); err != nil {
					return batch.OutputItem{}, qerrors.NewFormat("HTML rendering failed", err)
				}
				return output(name, out, true)

			case batch.KindWord, batch.KindOffice, batch.KindSpreadsheet, batch.KindCSV:
				if r.office == nil {
					return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(KindConvertToPDF))
				}
				return r.officeConvert(ctx, ws, in, "pdf", name)

			default:
				return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(KindConvertToPDF))
			}
		},
	}
}

// htmlPage returns a standalone HTML document for an HTML, Markdown or text input.
func htmlPage(in batch.InputItem) ([]byte, error) {
	switch in.Kind {
	case batch.KindHTML:
		return in.Data, nil
	case batch.KindText:
		return []byte("<!DOCTYPE html><html><head><meta charset=\"utf-8\"></head><body><pre>" +
			html.EscapeString(string(in.Data)) + "</pre></body></html>"), nil
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(in.Data, &body); err != nil {
		return nil, qerrors.NewFormat("failed to render markdown", err)
	}
	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>%s</title></head><body>", html.EscapeString(in.Stem()))
	page.Write(body.Bytes())
	page.WriteString("</body></html>")
	return page.Bytes(), nil
}

// officeConvert runs the office converter into a private directory so
// concurrent items never collide on output names.
func (r *Registry) officeConvert(ctx context.Context, ws *workspace.Workspace, in batch.InputItem, format, name string) (batch.OutputItem, error) {
	src, err := stage(ws, in)
	if err != nil {
		return batch.OutputItem{}, err
	}
	dir, err := ws.Path(in.Stem() + "-" + format)
	if err != nil {
		return batch.OutputItem{}, err
	}
	if err := os.Mkdir(dir, 0o750); err != nil {
		return batch.OutputItem{}, qerrors.NewResource("failed to create conversion directory", err)
	}
	out, err := r.office.Convert(ctx, src, dir, format)
	if err != nil {
		return batch.OutputItem{}, qerrors.NewFormat(fmt.Sprintf("%s conversion failed", format), err)
	}
	return output(name, out, true)
}

func (r *Registry) split(spec pagerange.PageSpec) batch.Transform {
	return batch.Transform{
		Name:          string(KindSplit),
		SingleCapable: true,
		Apply: func(ctx context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			if err := requireKind(in, KindSplit, batch.KindPDF); err != nil {
				return batch.OutputItem{}, err
			}
			if r.pdf == nil {
				return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(KindSplit))
			}
			src, err := stage(ws, in)
			if err != nil {
				return batch.OutputItem{}, err
			}
			n, err := r.pdf.PageCount(ctx, src)
			if err != nil {
				return batch.OutputItem{}, qerrors.NewFormat("cannot read "+in.Name, err)
			}
			pages := spec.Within(n)
			if pages.Empty() {
				return batch.OutputItem{}, qerrors.NewValidation(fmt.Sprintf("no selected pages exist in %s (%d pages)", in.Name, n))
			}

			name := in.Stem() + "-split.pdf"
			out, err := ws.Path(name)
			if err != nil {
				return batch.OutputItem{}, err
			}
			if err := r.pdf.Extract(ctx, src, out, pages.Selectors()); err != nil {
				return batch.OutputItem{}, qerrors.NewFormat("page extraction failed", err)
			}
			return output(name, out, true)
		},
	}
}

// MergedName is the output name of a merge.
const MergedName = "merged.pdf"

func (r *Registry) merge() batch.Transform {
	return batch.Transform{
		Name: string(KindMerge),
		Apply: func(ctx context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			if err := requireKind(in, KindMerge, batch.KindPDF); err != nil {
				return batch.OutputItem{}, err
			}
			if r.pdf == nil {
				return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(KindMerge))
			}
			src, err := stage(ws, in)
			if err != nil {
				return batch.OutputItem{}, err
			}
			if err := r.pdf.Validate(ctx, src); err != nil {
				return batch.OutputItem{}, qerrors.NewFormat("invalid PDF "+in.Name, err)
			}
			return output(in.Name, src, false)
		},
		Combine: func(ctx context.Context, ws *workspace.Workspace, outs []batch.OutputItem) (batch.OutputItem, error) {
			paths := make([]string, len(outs))
			for i, o := range outs {
				paths[i] = o.Path
			}
			out, err := ws.Path(MergedName)
			if err != nil {
				return batch.OutputItem{}, err
			}
			if err := r.pdf.Merge(ctx, paths, out); err != nil {
				return batch.OutputItem{}, qerrors.NewFormat("merge failed", err)
			}
			return output(MergedName, out, true)
		},
	}
}

func (r *Registry) convertToWord() batch.Transform {
	return batch.Transform{
		Name:          string(KindConvertToWord),
		SingleCapable: true,
		Apply: func(ctx context.Context, ws *workspace.Workspace, in batch.InputItem) (batch.OutputItem, error) {
			if err := requireKind(in, KindConvertToWord, batch.KindPDF); err != nil {
				return batch.OutputItem{}, err
			}
			if r.office == nil {
				return batch.OutputItem{}, qerrors.NewUnsupported(in.Name, string(KindConvertToWord))
			}
			return r.officeConvert(ctx, ws, in, "docx", in.Stem()+".docx")
		},
	}
}
