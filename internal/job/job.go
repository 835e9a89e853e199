// Package job defines the persisted record of one transformation request.
package job

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job records one transformation request and its outcome.
type Job struct {
	// ID is a ULID, so IDs sort by creation time
	ID string

	// Kind is the transformation kind (e.g. "split")
	Kind string

	// InputCount is the number of uploaded items
	InputCount int

	// InputNames lists the uploaded item names (stored as JSON in DB)
	InputNames []string

	// OutputName is the delivered file name, empty until the job finishes
	OutputName string

	// Shape is "single" or "archive" for succeeded jobs
	Shape string

	Status Status

	// Error is the failure message for failed or cancelled jobs
	Error string

	// Skipped lists items dropped by skip-and-continue (stored as JSON in DB)
	Skipped []string

	// Bytes is the size of the delivered output
	Bytes int64

	// CreatedAt is the Unix timestamp (milliseconds) when the job started
	CreatedAt int64

	// FinishedAt is the Unix timestamp (milliseconds) when the job ended (nullable)
	FinishedAt *int64
}

// New returns a running job for kind over the named inputs.
func New(kind string, inputNames []string) *Job {
	now := time.Now()
	return &Job{
		ID:         NewID(now),
		Kind:       kind,
		InputCount: len(inputNames),
		InputNames: inputNames,
		Status:     StatusRunning,
		CreatedAt:  now.UnixMilli(),
	}
}

// NewID returns a ULID for time t.
func NewID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0)).String()
}

// Duration returns how long the job ran, or zero while it is running.
func (j *Job) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return time.Duration(*j.FinishedAt-j.CreatedAt) * time.Millisecond
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status != StatusRunning
}
