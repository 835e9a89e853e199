// Package archive packs transformation outputs into a single zip.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	qerrors "github.com/hpungsan/quire/internal/errors"
)

// Profile selects the deflate effort for an archive.
type Profile string

const (
	ProfileLow         Profile = "low"
	ProfileRecommended Profile = "recommended"
	ProfileHigh        Profile = "high"
)

// ParseProfile accepts profile names and the numeric levels 0, 1 and 2 sent
// by the upload form. Anything else means ProfileRecommended.
func ParseProfile(s string) Profile {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return ProfileLow
	case "high", "2":
		return ProfileHigh
	default:
		return ProfileRecommended
	}
}

// Level returns the deflate level for p.
func (p Profile) Level() int {
	switch p {
	case ProfileLow:
		return 1
	case ProfileHigh:
		return 9
	default:
		return 5
	}
}

// Item is one file to pack. Exactly one of Path or Data is used; Path wins.
type Item struct {
	Name string
	Path string
	Data []byte
}

// Pack writes items to w as a flat zip, in order. Entry names are the items'
// base names; repeated names get a numeric suffix (a.pdf, a-1.pdf).
func Pack(w io.Writer, items []Item, profile Profile) error {
	zw := zip.NewWriter(w)
	level := profile.Level()
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	names := newNamer()
	for _, it := range items {
		if err := addItem(zw, names.next(it.Name), it); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return qerrors.NewResource("failed to finish archive", err)
	}
	return nil
}

// PackFile creates path and packs items into it. A partial file is removed on failure.
func PackFile(path string, items []Item, profile Profile) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return qerrors.NewResource("failed to create archive", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = qerrors.NewResource("failed to close archive", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return Pack(f, items, profile)
}

func addItem(zw *zip.Writer, name string, it Item) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return qerrors.NewResource(fmt.Sprintf("failed to add %s", name), err)
	}

	if it.Path == "" {
		if _, err := fw.Write(it.Data); err != nil {
			return qerrors.NewResource(fmt.Sprintf("failed to write %s", name), err)
		}
		return nil
	}

	src, err := os.Open(it.Path)
	if err != nil {
		return qerrors.NewResource(fmt.Sprintf("failed to open %s", name), err)
	}
	defer func() { _ = src.Close() }()

	if _, err := io.Copy(fw, src); err != nil {
		return qerrors.NewResource(fmt.Sprintf("failed to write %s", name), err)
	}
	return nil
}

type namer struct {
	used map[string]struct{}
}

func newNamer() *namer { return &namer{used: make(map[string]struct{})} }

func (n *namer) next(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "file"
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for i := 1; ; i++ {
		if _, taken := n.used[candidate]; !taken {
			break
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	n.used[candidate] = struct{}{}
	return candidate
}
