package codec

import (
	"context"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCPU implements PDFEngine with pdfcpu. pdfcpu calls are not
// interruptible; ctx is only checked before each call.
type PDFCPU struct {
	conf *model.Configuration
}

// NewPDFCPU returns a PDFCPU engine using relaxed validation, which accepts
// the slightly malformed files most scanners produce.
func NewPDFCPU() *PDFCPU {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPU{conf: conf}
}

// config returns a private copy of the engine configuration. pdfcpu records
// the running command in it, and items run concurrently.
func (p *PDFCPU) config() *model.Configuration {
	c := *p.conf
	return &c
}

func (p *PDFCPU) PageCount(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return api.PageCount(f, p.config())
}

func (p *PDFCPU) Extract(ctx context.Context, in, out string, selectors []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return api.TrimFile(in, out, selectors, p.config())
}

func (p *PDFCPU) Merge(ctx context.Context, inputs []string, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return api.MergeCreateFile(inputs, out, false, p.config())
}

func (p *PDFCPU) ImagesToPDF(ctx context.Context, images []string, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return api.ImportImagesFile(images, out, pdfcpu.DefaultImportConfig(), p.config())
}

func (p *PDFCPU) Validate(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return api.ValidateFile(path, p.config())
}
