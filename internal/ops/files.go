package ops

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/errors"
)

// ReadInputs loads files named by the caller as input items. Each path must
// pass ValidatePath in read mode. The total size is capped by max_upload_bytes.
func ReadInputs(ctx context.Context, cfg *config.Config, paths []string) ([]batch.InputItem, error) {
	if len(paths) == 0 {
		return nil, errors.NewValidation("no input files")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var total int64
	items := make([]batch.InputItem, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("read inputs")
		}
		if err := ValidatePath(p, PathCheckRead, cfg); err != nil {
			return nil, err
		}

		data, err := readNoFollow(p)
		if err != nil {
			return nil, err
		}
		total += int64(len(data))
		if cfg.MaxUploadBytes > 0 && total > cfg.MaxUploadBytes {
			return nil, errors.NewTooLarge(cfg.MaxUploadBytes)
		}

		name := filepath.Base(p)
		items = append(items, batch.NewInputItem(name, data, mime.TypeByExtension(filepath.Ext(name))))
	}
	return items, nil
}

func readNoFollow(path string) ([]byte, error) {
	f, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewResource("failed to open input", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewResource("failed to read input", err)
	}
	return data, nil
}

// SaveInput contains parameters for the SaveResult operation.
type SaveInput struct {
	// Path is the destination file, or a directory to save under the
	// result's own name. Empty means the exports dir.
	Path string
}

// SaveOutput describes a saved result.
type SaveOutput struct {
	JobID   string   `json:"job_id"`
	Path    string   `json:"path"`
	Name    string   `json:"name"`
	Shape   string   `json:"shape"`
	Bytes   int64    `json:"bytes"`
	Skipped []string `json:"skipped,omitempty"`
}

// SaveResult copies a transform output to disk. Use it as the body of a
// Deliver sink.
func SaveResult(cfg *config.Config, out *TransformOutput, input SaveInput) (*SaveOutput, error) {
	res := out.Result
	dest := strings.TrimSpace(input.Path)
	if dest == "" {
		dir, err := ExportsDir(cfg)
		if err != nil {
			return nil, err
		}
		dest = filepath.Join(dir, res.Output.Name)
	} else if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, res.Output.Name)
	}

	if err := ValidatePath(dest, PathCheckWrite, cfg, strings.ToLower(filepath.Ext(res.Output.Name))); err != nil {
		return nil, err
	}

	src, err := res.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var written int64
	err = writeAtomic(dest, func(w io.Writer) error {
		n, err := io.Copy(w, src)
		written = n
		if err != nil {
			return errors.NewResource("failed to write result", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SaveOutput{
		JobID:   out.JobID,
		Path:    dest,
		Name:    res.Output.Name,
		Shape:   string(res.Shape),
		Bytes:   written,
		Skipped: out.Skipped,
	}, nil
}
