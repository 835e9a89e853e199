package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/hpungsan/quire/internal/errors"
)

func entries(t *testing.T, data []byte) ([]string, map[string]string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	bodies := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		names = append(names, f.Name)
		bodies[f.Name] = string(b)
	}
	return names, bodies
}

func TestParseProfile(t *testing.T) {
	tests := map[string]Profile{
		"low":         ProfileLow,
		"0":           ProfileLow,
		" HIGH ":      ProfileHigh,
		"2":           ProfileHigh,
		"1":           ProfileRecommended,
		"recommended": ProfileRecommended,
		"":            ProfileRecommended,
		"ultra":       ProfileRecommended,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseProfile(in), "ParseProfile(%q)", in)
	}
	assert.Equal(t, 1, ProfileLow.Level())
	assert.Equal(t, 5, ProfileRecommended.Level())
	assert.Equal(t, 9, ProfileHigh.Level())
	assert.Equal(t, 5, Profile("bogus").Level())
}

func TestPack_OrderAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	onDisk := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(onDisk, []byte("from disk"), 0o600))

	items := []Item{
		{Name: "dir/a.pdf", Data: []byte("one")},
		{Name: "b.txt", Path: onDisk},
		{Name: "other/a.pdf", Data: []byte("two")},
		{Name: "a.pdf", Data: []byte("three")},
	}

	var buf bytes.Buffer
	require.NoError(t, Pack(&buf, items, ProfileHigh))

	names, bodies := entries(t, buf.Bytes())
	assert.Equal(t, []string{"a.pdf", "b.txt", "a-1.pdf", "a-2.pdf"}, names)
	assert.Equal(t, "from disk", bodies["b.txt"])
	assert.Equal(t, "two", bodies["a-1.pdf"])
}

func TestPack_ProfilesProduceValidArchives(t *testing.T) {
	payload := []byte(strings.Repeat("quire compresses repetitive text ", 500))
	sizes := make(map[Profile]int)
	for _, p := range []Profile{ProfileLow, ProfileRecommended, ProfileHigh} {
		var buf bytes.Buffer
		require.NoError(t, Pack(&buf, []Item{{Name: "x.txt", Data: payload}}, p))
		_, bodies := entries(t, buf.Bytes())
		require.Equal(t, string(payload), bodies["x.txt"])
		sizes[p] = buf.Len()
	}
	assert.Less(t, sizes[ProfileHigh], len(payload))
}

func TestPack_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Pack(&buf, nil, ProfileRecommended))
	names, _ := entries(t, buf.Bytes())
	assert.Empty(t, names)
}

func TestPackFile_MissingSourceRemovesPartial(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.zip")

	err := PackFile(out, []Item{{Name: "gone.pdf", Path: filepath.Join(dir, "gone.pdf")}}, ProfileLow)
	require.True(t, qerrors.Is(err, qerrors.ErrResource), "err = %v", err)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "partial archive left behind")
}

func TestPackFile_UnwritableDestination(t *testing.T) {
	err := PackFile(filepath.Join(t.TempDir(), "missing", "out.zip"), nil, ProfileLow)
	require.True(t, qerrors.Is(err, qerrors.ErrResource), "err = %v", err)
}
