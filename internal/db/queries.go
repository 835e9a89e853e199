package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/job"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.QuireError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const jobColumns = `id, kind, input_count, input_names_json, output_name, shape,
	status, error, skipped_json, bytes, created_at, finished_at`

// InsertJob stores a new job.
func InsertJob(db *sql.DB, j *job.Job) error {
	names, err := toNullJSON(j.InputNames)
	if err != nil {
		return errors.NewInternal(err)
	}
	skipped, err := toNullJSON(j.Skipped)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.Exec(query,
		j.ID, j.Kind, j.InputCount, names, toNullString(j.OutputName), toNullString(j.Shape),
		string(j.Status), toNullString(j.Error), skipped, j.Bytes, j.CreatedAt, j.FinishedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// FinishJob records the terminal state of a running job and sets j.FinishedAt.
// A job that already finished is NOT_FOUND.
func FinishJob(db *sql.DB, j *job.Job) error {
	skipped, err := toNullJSON(j.Skipped)
	if err != nil {
		return errors.NewInternal(err)
	}

	now := time.Now().UnixMilli()
	query := `
		UPDATE jobs
		SET status = ?, output_name = ?, shape = ?, error = ?, skipped_json = ?,
			bytes = ?, finished_at = ?
		WHERE id = ? AND finished_at IS NULL
	`

	result, err := db.Exec(query,
		string(j.Status), toNullString(j.OutputName), toNullString(j.Shape), toNullString(j.Error),
		skipped, j.Bytes, now, j.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("running job", j.ID)
	}

	j.FinishedAt = &now
	return nil
}

// GetJob retrieves a job by its ULID.
func GetJob(db *sql.DB, id string) (*job.Job, error) {
	row := db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("job", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return j, nil
}

// ListFilters narrows ListJobs.
type ListFilters struct {
	Kind   string
	Status job.Status
}

// ListJobs returns job summaries newest first, and the total matching count.
func ListJobs(db *sql.DB, filters ListFilters, limit, offset int) ([]job.Summary, int, error) {
	where, args := filters.clause()

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []job.Summary
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, j.ToSummary())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

func (f ListFilters) clause() (string, []any) {
	var conds []string
	var args []any
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// PurgeJobs permanently deletes finished jobs created before cutoff
// (Unix milliseconds). An optional kind narrows the purge. Running jobs are kept.
func PurgeJobs(db *sql.DB, kind *string, cutoff int64) (int, error) {
	query := `DELETE FROM jobs WHERE finished_at IS NOT NULL AND created_at < ?`
	args := []any{cutoff}
	if kind != nil {
		query += ` AND kind = ?`
		args = append(args, *kind)
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// StreamForExport returns rows for every job (optionally one kind), oldest first.
// The caller must close the rows and scan them with ScanJobFromRows.
func StreamForExport(ctx context.Context, db *sql.DB, kind *string) (*sql.Rows, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if kind != nil {
		query += ` WHERE kind = ?`
		args = append(args, *kind)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanJobFromRows scans the current row of a StreamForExport result.
func ScanJobFromRows(rows *sql.Rows) (*job.Job, error) {
	return scanJob(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanJob scans a single row into a Job struct.
func scanJob(row scanner) (*job.Job, error) {
	var (
		j          job.Job
		status     string
		names      sql.NullString
		outputName sql.NullString
		shape      sql.NullString
		errMsg     sql.NullString
		skipped    sql.NullString
		finishedAt sql.NullInt64
	)

	err := row.Scan(
		&j.ID, &j.Kind, &j.InputCount, &names, &outputName, &shape,
		&status, &errMsg, &skipped, &j.Bytes, &j.CreatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(status)
	j.OutputName = outputName.String
	j.Shape = shape.String
	j.Error = errMsg.String
	if finishedAt.Valid {
		j.FinishedAt = &finishedAt.Int64
	}
	if err := fromNullJSON(names, &j.InputNames); err != nil {
		return nil, err
	}
	if err := fromNullJSON(skipped, &j.Skipped); err != nil {
		return nil, err
	}
	return &j, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// toNullJSON encodes a non-empty list as JSON, empty as NULL.
func toNullJSON(list []string) (sql.NullString, error) {
	if len(list) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func fromNullJSON(ns sql.NullString, dst *[]string) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), dst)
}
