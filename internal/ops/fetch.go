package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/job"
)

// FetchOutput is a job with its derived duration.
type FetchOutput struct {
	job.ExportRecord
	DurationMS int64 `json:"duration_ms"`
}

// FetchJob retrieves one job by ID.
func FetchJob(database *sql.DB, id string) (*FetchOutput, error) {
	if database == nil {
		return nil, errors.NewInvalidRequest("job history is disabled")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	j, err := db.GetJob(database, id)
	if err != nil {
		return nil, err
	}
	return &FetchOutput{
		ExportRecord: *j.ToExportRecord(),
		DurationMS:   j.Duration().Milliseconds(),
	}, nil
}
