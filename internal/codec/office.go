package codec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Soffice converts documents by running LibreOffice headless.
type Soffice struct {
	Path string
}

// NewSoffice returns a converter for the given binary; empty means "soffice" on PATH.
func NewSoffice(path string) *Soffice {
	if path == "" {
		path = "soffice"
	}
	return &Soffice{Path: path}
}

// filters maps a target format to the LibreOffice --convert-to argument and
// the input filter required to read the source.
var filters = map[string]struct{ convertTo, inFilter string }{
	"pdf":  {convertTo: "pdf"},
	"docx": {convertTo: `docx:"MS Word 2007 XML"`, inFilter: "writer_pdf_import"},
}

func (s *Soffice) Convert(ctx context.Context, in, outDir, format string) (string, error) {
	f, ok := filters[format]
	if !ok {
		return "", fmt.Errorf("soffice: unsupported target format %q", format)
	}

	// Each run gets its own profile; concurrent instances sharing one lock up.
	profile, err := os.MkdirTemp(outDir, "lo-profile-")
	if err != nil {
		return "", fmt.Errorf("soffice: create profile dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(profile) }()

	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
		"--headless", "--norestore",
	}
	if f.inFilter != "" && strings.EqualFold(filepath.Ext(in), ".pdf") {
		args = append(args, "--infilter="+f.inFilter)
	}
	args = append(args, "--convert-to", f.convertTo, "--outdir", outDir, in)

	cmd := exec.CommandContext(ctx, s.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("soffice: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	out := filepath.Join(outDir, stem+"."+format)
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("soffice: no output produced: %s", strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
