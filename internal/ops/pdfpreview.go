package ops

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/errors"
)

// PDFPreviewInput contains parameters for the PreviewPDF operation.
type PDFPreviewInput struct {
	Item batch.InputItem
	Page int // 1-based, default: 1
	DPI  int // default: 72, range 36-300
}

// PDFPreviewOutput is one rendered page as a PNG data URI.
type PDFPreviewOutput struct {
	Name      string `json:"name"`
	Page      int    `json:"page"`
	DPI       int    `json:"dpi"`
	MediaType string `json:"media_type"`
	Bytes     int64  `json:"bytes"`
	Preview   string `json:"preview"`
}

// PreviewPDF renders one page of a PDF upload to PNG. It runs in its own
// workspace like a transform but records no job.
func PreviewPDF(ctx context.Context, deps *Deps, input PDFPreviewInput) (*PDFPreviewOutput, error) {
	if deps.Runner == nil || deps.Codecs == nil {
		return nil, errors.NewInternal(nil)
	}

	page := input.Page
	switch {
	case page == 0:
		page = 1
	case page < 0:
		return nil, errors.NewInvalidRequest("page must be 1 or greater")
	}
	dpi := input.DPI
	if dpi == 0 {
		dpi = codec.DefaultPreviewDPI
	}
	if dpi < codec.MinPreviewDPI || dpi > codec.MaxPreviewDPI {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("dpi must be between %d and %d", codec.MinPreviewDPI, codec.MaxPreviewDPI))
	}

	res, err := deps.Runner.Run(ctx, []batch.InputItem{input.Item}, deps.Codecs.PreviewPage(page, dpi), batch.Packaging{})
	if err != nil {
		return nil, err
	}
	defer res.Close()

	f, err := res.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewResource("failed to read preview", err)
	}

	return &PDFPreviewOutput{
		Name:      res.Output.Name,
		Page:      page,
		DPI:       dpi,
		MediaType: res.Output.MediaType,
		Bytes:     int64(len(data)),
		Preview:   "data:" + res.Output.MediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
