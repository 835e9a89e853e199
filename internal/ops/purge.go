package ops

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/errors"
)

// PurgeInput contains parameters for the PurgeJobs operation.
type PurgeInput struct {
	Kind          *string // optional filter by kind
	OlderThanDays int     // purge finished jobs created more than N days ago; 0 means all
}

// PurgeOutput contains the result of the PurgeJobs operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeJobs permanently deletes finished jobs from the history.
func PurgeJobs(database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if database == nil {
		return nil, errors.NewInvalidRequest("job history is disabled")
	}
	if input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}

	cutoff := time.Now().Add(-time.Duration(input.OlderThanDays) * 24 * time.Hour).UnixMilli()
	if input.OlderThanDays == 0 {
		// created_at < cutoff must hold for jobs created this millisecond too
		cutoff++
	}

	count, err := db.PurgeJobs(database, input.Kind, cutoff)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.Kind, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, kind *string, olderThanDays int) string {
	if count == 0 {
		return "No finished jobs to purge"
	}

	word := "job"
	if count > 1 {
		word = "jobs"
	}
	msg := fmt.Sprintf("Permanently deleted %d %s", count, word)

	if kind != nil {
		msg += fmt.Sprintf(" of kind %q", *kind)
	}
	if olderThanDays > 0 {
		msg += fmt.Sprintf(" (created more than %d days ago)", olderThanDays)
	}
	return msg
}
