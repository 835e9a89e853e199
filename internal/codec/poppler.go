package codec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Pdftoppm rasterizes PDF pages with Poppler's pdftoppm.
type Pdftoppm struct {
	Path string
}

// NewPdftoppm returns a rasterizer for the given binary; empty means "pdftoppm" on PATH.
func NewPdftoppm(path string) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	return &Pdftoppm{Path: path}
}

func (p *Pdftoppm) RenderPNG(ctx context.Context, pdfPath, outPath string, page, dpi int) error {
	if !strings.HasSuffix(outPath, ".png") {
		return fmt.Errorf("pdftoppm: output %q must end in .png", outPath)
	}
	// pdftoppm appends the extension itself when given -singlefile.
	prefix := strings.TrimSuffix(outPath, ".png")
	n := strconv.Itoa(page)

	cmd := exec.CommandContext(ctx, p.Path,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(dpi),
		"-png", "-singlefile",
		pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("pdftoppm: no output produced: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}
