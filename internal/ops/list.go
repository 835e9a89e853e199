package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/job"
)

// ListInput contains parameters for the ListJobs operation.
type ListInput struct {
	Kind   string // optional filter
	Status string // optional filter: running, succeeded, failed, cancelled
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// ListOutput contains the result of the ListJobs operation.
type ListOutput struct {
	Items      []job.Summary `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// ListJobs retrieves job summaries, newest first, with pagination.
func ListJobs(database *sql.DB, input ListInput) (*ListOutput, error) {
	if database == nil {
		return nil, errors.NewInvalidRequest("job history is disabled")
	}

	filters := db.ListFilters{
		Kind:   strings.ToLower(strings.TrimSpace(input.Kind)),
		Status: job.Status(strings.ToLower(strings.TrimSpace(input.Status))),
	}
	switch filters.Status {
	case "", job.StatusRunning, job.StatusSucceeded, job.StatusFailed, job.StatusCancelled:
	default:
		return nil, errors.NewInvalidRequest("status must be one of running, succeeded, failed, cancelled")
	}

	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)
	offset := max(input.Offset, 0)

	summaries, total, err := db.ListJobs(database, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []job.Summary{}
	}

	return &ListOutput{
		Items: summaries,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(summaries) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
