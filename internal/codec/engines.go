package codec

import "context"

// PDFEngine performs page-level PDF operations on files.
type PDFEngine interface {
	PageCount(ctx context.Context, path string) (int, error)
	// Extract writes the pages selected by selectors (1-based, "1-3" or "5")
	// from in to out.
	Extract(ctx context.Context, in, out string, selectors []string) error
	Merge(ctx context.Context, inputs []string, out string) error
	ImagesToPDF(ctx context.Context, images []string, out string) error
	Validate(ctx context.Context, path string) error
}

// OfficeConverter converts documents with an office suite. It returns the
// path of the converted file, which is written inside outDir.
type OfficeConverter interface {
	Convert(ctx context.Context, in, outDir, format string) (string, error)
}

// HTMLRenderer prints an HTML file to PDF.
type HTMLRenderer interface {
	RenderPDF(ctx context.Context, htmlPath, outPath string) error
}

// Rasterizer renders a single PDF page (1-based) to a PNG at dpi.
type Rasterizer interface {
	RenderPNG(ctx context.Context, pdfPath, outPath string, page, dpi int) error
}
