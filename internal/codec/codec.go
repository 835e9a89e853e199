// Package codec maps transformation kinds to batch transforms backed by
// document engines (pdfcpu, LibreOffice, headless Chrome) and the tabular
// row-expansion engine.
package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/quire/internal/archive"
	"github.com/hpungsan/quire/internal/batch"
	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/pagerange"
	"github.com/hpungsan/quire/internal/tabular"
	"github.com/hpungsan/quire/internal/workspace"
)

// Kind names a transformation.
type Kind string

const (
	KindCompress      Kind = "compress"
	KindConvertToPDF  Kind = "convert-to-pdf"
	KindSplit         Kind = "split"
	KindMerge         Kind = "merge"
	KindConvertToWord Kind = "convert-to-word"
	KindExcelExpand   Kind = "excel-expand"
	KindDuplicateRow  Kind = "duplicate-row"
)

// Kinds lists every transformation kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindCompress, KindConvertToPDF, KindSplit, KindMerge, KindConvertToWord, KindExcelExpand, KindDuplicateRow}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", qerrors.NewInvalidRequest(fmt.Sprintf("unknown transform kind %q", s))
}

// Options carries per-kind parameters. Fields irrelevant to a kind are ignored.
type Options struct {
	// Ranges is the page-range expression for split.
	Ranges string
	// RepeatColumn lists candidate repeat-count column names for excel-expand.
	RepeatColumn []string
	// Row and Count drive duplicate-row. Row uses spreadsheet numbering.
	Row   int
	Count int
	// Compression is the archive profile name or legacy level.
	Compression string
}

// Registry builds transforms from engines.
type Registry struct {
	pdf      PDFEngine
	office   OfficeConverter
	html     HTMLRenderer
	raster   Rasterizer
	disabled map[Kind]bool
}

// NewRegistry creates a Registry. Nil engines make the kinds that need them
// fail per item with UNSUPPORTED.
func NewRegistry(pdf PDFEngine, office OfficeConverter, html HTMLRenderer, disabled ...string) *Registry {
	r := &Registry{pdf: pdf, office: office, html: html, disabled: make(map[Kind]bool)}
	for _, d := range disabled {
		r.disabled[Kind(strings.ToLower(strings.TrimSpace(d)))] = true
	}
	return r
}

// WithRasterizer sets the engine used by PreviewPage and returns r.
func (r *Registry) WithRasterizer(raster Rasterizer) *Registry {
	r.raster = raster
	return r
}

// Enabled reports whether kind may be run.
func (r *Registry) Enabled(kind Kind) bool { return !r.disabled[kind] }

// Transform returns the batch transform and packaging for kind. Options are
// validated here so bad requests fail before any workspace is opened.
func (r *Registry) Transform(kind Kind, opts Options) (batch.Transform, batch.Packaging, error) {
	if r.disabled[kind] {
		return batch.Transform{}, batch.Packaging{}, qerrors.NewInvalidRequest(fmt.Sprintf("transform %q is disabled", kind))
	}
	pkg := batch.Packaging{Profile: archive.ParseProfile(opts.Compression)}

	switch kind {
	case KindCompress:
		pkg.ArchiveName = "compressed_files.zip"
		return r.compress(), pkg, nil
	case KindConvertToPDF:
		pkg.ArchiveName = "converted_files.zip"
		return r.convertToPDF(), pkg, nil
	case KindSplit:
		spec := pagerange.Parse(opts.Ranges)
		if spec.Empty() {
			return batch.Transform{}, pkg, qerrors.NewValidation("no pages selected: ranges must contain pages like 1-3,5")
		}
		pkg.ArchiveName = "split_files.zip"
		return r.split(spec), pkg, nil
	case KindMerge:
		return r.merge(), pkg, nil
	case KindConvertToWord:
		pkg.ArchiveName = "converted_word_files.zip"
		return r.convertToWord(), pkg, nil
	case KindExcelExpand:
		pkg.ArchiveName = "expanded_files.zip"
		return r.excelExpand(tabular.NewRepeatColumn(opts.RepeatColumn...)), pkg, nil
	case KindDuplicateRow:
		if opts.Count > 0 && opts.Row < 2 {
			return batch.Transform{}, pkg, qerrors.NewNotFound("row", fmt.Sprint(opts.Row))
		}
		pkg.ArchiveName = "duplicated_files.zip"
		return r.duplicateRow(opts.Row, opts.Count), pkg, nil
	default:
		return batch.Transform{}, pkg, qerrors.NewInvalidRequest(fmt.Sprintf("unknown transform kind %q", kind))
	}
}

// stage writes the input into ws and returns its path.
func stage(ws *workspace.Workspace, in batch.InputItem) (string, error) {
	return ws.Register(in.Name, in.Data)
}

func requireKind(in batch.InputItem, kind Kind, want ...batch.ItemKind) error {
	for _, w := range want {
		if in.Kind == w {
			return nil
		}
	}
	return qerrors.NewUnsupported(in.Name, string(kind))
}

// output describes a file written by an engine.
func output(name, path string, packable bool) (batch.OutputItem, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return batch.OutputItem{}, qerrors.NewResource(fmt.Sprintf("missing output %s", filepath.Base(path)), err)
	}
	return batch.OutputItem{
		Name:      name,
		Path:      path,
		MediaType: batch.MediaTypeFor(name),
		Packable:  packable,
		Size:      fi.Size(),
	}, nil
}
