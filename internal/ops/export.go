package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/errors"
)

// ExportInput contains parameters for the ExportJobs operation.
type ExportInput struct {
	Path string  // optional, default: <exports>/jobs-<kind|all>-<timestamp>.jsonl
	Kind *string // optional filter by kind
}

// ExportOutput contains the result of the ExportJobs operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL job export.
type ExportHeader struct {
	QuireExport   bool   `json:"_quire_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportJobs writes the job history to a JSONL file, oldest job first.
func ExportJobs(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	if database == nil {
		return nil, errors.NewInvalidRequest("job history is disabled")
	}
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(cfg, input.Kind, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too: the kind ends up in the file name
	if err := ValidatePath(exportPath, PathCheckWrite, cfg, ".jsonl"); err != nil {
		return nil, err
	}

	count := 0
	err := writeAtomic(exportPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(ExportHeader{QuireExport: true, SchemaVersion: "1.0", ExportedAt: now.Unix()}); err != nil {
			return errors.NewResource("failed to write export header", err)
		}

		rows, err := db.StreamForExport(ctx, database, input.Kind)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			if ctx.Err() != nil {
				return errors.NewCancelled("export")
			}
			j, err := db.ScanJobFromRows(rows)
			if err != nil {
				return errors.NewInternal(err)
			}
			if err := enc.Encode(j.ToExportRecord()); err != nil {
				return errors.NewResource("failed to write export record", err)
			}
			count++
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{Path: exportPath, Count: count, ExportedAt: now.Unix()}, nil
}

// defaultExportPath returns <exports>/jobs-<kind|all>-<timestamp>.jsonl.
func defaultExportPath(cfg *config.Config, kind *string, now time.Time) (string, error) {
	dir, err := ExportsDir(cfg)
	if err != nil {
		return "", err
	}
	name := "all"
	if kind != nil && *kind != "" {
		name = SanitizeForFilename(*kind)
	}
	filename := fmt.Sprintf("jobs-%s-%s.jsonl", name, now.Format("2006-01-02T150405"))
	return filepath.Join(dir, filename), nil
}
