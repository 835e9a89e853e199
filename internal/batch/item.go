package batch

import (
	"mime"
	"path/filepath"
	"strings"
)

// ItemKind is the broad format family of an input, used to route it to a codec.
type ItemKind string

const (
	KindPDF         ItemKind = "pdf"
	KindImage       ItemKind = "image"
	KindWord        ItemKind = "word"
	KindOffice      ItemKind = "office"
	KindHTML        ItemKind = "html"
	KindMarkdown    ItemKind = "markdown"
	KindText        ItemKind = "text"
	KindSpreadsheet ItemKind = "spreadsheet"
	KindCSV         ItemKind = "csv"
	KindOther       ItemKind = "other"
)

// Media types for outputs.
const (
	MediaPDF  = "application/pdf"
	MediaZip  = "application/zip"
	MediaDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaCSV  = "text/csv"
)

var kindByExt = map[string]ItemKind{
	".pdf":      KindPDF,
	".png":      KindImage,
	".jpg":      KindImage,
	".jpeg":     KindImage,
	".gif":      KindImage,
	".tif":      KindImage,
	".tiff":     KindImage,
	".webp":     KindImage,
	".bmp":      KindImage,
	".docx":     KindWord,
	".doc":      KindWord,
	".odt":      KindWord,
	".rtf":      KindWord,
	".pptx":     KindOffice,
	".ppt":      KindOffice,
	".odp":      KindOffice,
	".ods":      KindOffice,
	".xls":      KindOffice,
	".html":     KindHTML,
	".htm":      KindHTML,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".txt":      KindText,
	".xlsx":     KindSpreadsheet,
	".xlsm":     KindSpreadsheet,
	".csv":      KindCSV,
}

var kindByMedia = map[string]ItemKind{
	MediaPDF:             KindPDF,
	MediaDOCX:            KindWord,
	"application/msword": KindWord,
	MediaXLSX:            KindSpreadsheet,
	MediaCSV:             KindCSV,
	"text/html":          KindHTML,
	"text/markdown":      KindMarkdown,
	"text/plain":         KindText,
}

// DetectKind infers an input's kind from its extension, then its media type.
func DetectKind(name, mediaType string) ItemKind {
	if k, ok := kindByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return KindOther
	}
	if strings.HasPrefix(mt, "image/") {
		return KindImage
	}
	if k, ok := kindByMedia[mt]; ok {
		return k
	}
	return KindOther
}

// InputItem is one uploaded blob. Treat as immutable.
type InputItem struct {
	Name      string
	Data      []byte
	MediaType string
	Kind      ItemKind
}

// NewInputItem builds an InputItem with its kind detected.
func NewInputItem(name string, data []byte, mediaType string) InputItem {
	return InputItem{
		Name:      name,
		Data:      data,
		MediaType: mediaType,
		Kind:      DetectKind(name, mediaType),
	}
}

// Stem returns the base name without extension.
func (in InputItem) Stem() string {
	base := filepath.Base(strings.ReplaceAll(in.Name, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputItem is a file produced inside a workspace.
type OutputItem struct {
	Name      string
	Path      string
	MediaType string
	// Packable marks outputs that go into an archive; intermediates don't.
	Packable bool
	Size     int64
}

// MediaTypeFor returns the output media type for a file name.
func MediaTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return MediaPDF
	case ".zip":
		return MediaZip
	case ".docx":
		return MediaDOCX
	case ".xlsx":
		return MediaXLSX
	case ".csv":
		return MediaCSV
	}
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
