package batch

import "testing"

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name, media string
		want        ItemKind
	}{
		{"report.PDF", "", KindPDF},
		{"scan.jpeg", "", KindImage},
		{"letter.docx", "", KindWord},
		{"deck.pptx", "", KindOffice},
		{"page.html", "", KindHTML},
		{"notes.md", "", KindMarkdown},
		{"orders.xlsx", "", KindSpreadsheet},
		{"orders.csv", "", KindCSV},
		{"upload", "image/png", KindImage},
		{"upload", "application/pdf; charset=binary", KindPDF},
		{"upload.bin", "application/octet-stream", KindOther},
		{"upload", "", KindOther},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.name, tt.media); got != tt.want {
			t.Errorf("DetectKind(%q, %q) = %q, want %q", tt.name, tt.media, got, tt.want)
		}
	}
}

func TestInputItem_Stem(t *testing.T) {
	in := NewInputItem(`C:\scans\invoice.v2.pdf`, nil, "")
	if got := in.Stem(); got != "invoice.v2" {
		t.Errorf("Stem() = %q", got)
	}
}

func TestMediaTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.pdf":  MediaPDF,
		"a.ZIP":  MediaZip,
		"a.docx": MediaDOCX,
		"a.xlsx": MediaXLSX,
		"a.csv":  MediaCSV,
		"a.qqq":  "application/octet-stream",
	}
	for name, want := range tests {
		if got := MediaTypeFor(name); got != want {
			t.Errorf("MediaTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
