package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/job"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestJob(id, kind string, createdAt int64, inputs ...string) *job.Job {
	return &job.Job{
		ID:         id,
		Kind:       kind,
		InputCount: len(inputs),
		InputNames: inputs,
		Status:     job.StatusRunning,
		CreatedAt:  createdAt,
	}
}

func insertFinished(t *testing.T, db *sql.DB, j *job.Job, status job.Status) {
	t.Helper()
	if err := InsertJob(db, j); err != nil {
		t.Fatalf("InsertJob(%s) failed: %v", j.ID, err)
	}
	j.Status = status
	if err := FinishJob(db, j); err != nil {
		t.Fatalf("FinishJob(%s) failed: %v", j.ID, err)
	}
}

func TestInsertAndGetJob(t *testing.T) {
	db := openTestDB(t)

	j := newTestJob("01JOB001", "merge", 1000, "a.pdf", "b.pdf")
	if err := InsertJob(db, j); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	got, err := GetJob(db, j.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Kind != "merge" || got.InputCount != 2 {
		t.Errorf("got %+v", got)
	}
	if len(got.InputNames) != 2 || got.InputNames[1] != "b.pdf" {
		t.Errorf("InputNames = %v", got.InputNames)
	}
	if got.Status != job.StatusRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil", *got.FinishedAt)
	}
	if got.OutputName != "" || got.Skipped != nil {
		t.Errorf("unfinished job has output fields: %+v", got)
	}
}

func TestInsertJob_UniqueConstraint(t *testing.T) {
	db := openTestDB(t)

	j := newTestJob("01JOBDUP", "split", 1000, "a.pdf")
	if err := InsertJob(db, j); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}
	if err := InsertJob(db, j); err != ErrUniqueConstraint {
		t.Errorf("second InsertJob error = %v, want ErrUniqueConstraint", err)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetJob(db, "01MISSING")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetJob error = %v, want NOT_FOUND", err)
	}
}

func TestFinishJob(t *testing.T) {
	db := openTestDB(t)

	j := newTestJob("01JOB002", "convert-to-pdf", 1000, "a.docx", "b.exe")
	if err := InsertJob(db, j); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	j.Status = job.StatusSucceeded
	j.OutputName = "converted_files.zip"
	j.Shape = "archive"
	j.Skipped = []string{"b.exe"}
	j.Bytes = 2048
	if err := FinishJob(db, j); err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}
	if j.FinishedAt == nil {
		t.Fatal("FinishJob did not set FinishedAt")
	}

	got, err := GetJob(db, j.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != job.StatusSucceeded || got.Shape != "archive" || got.Bytes != 2048 {
		t.Errorf("got %+v", got)
	}
	if len(got.Skipped) != 1 || got.Skipped[0] != "b.exe" {
		t.Errorf("Skipped = %v", got.Skipped)
	}
	if got.FinishedAt == nil || *got.FinishedAt != *j.FinishedAt {
		t.Errorf("FinishedAt = %v, want %d", got.FinishedAt, *j.FinishedAt)
	}

	// Finishing twice is rejected
	if err := FinishJob(db, j); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second FinishJob error = %v, want NOT_FOUND", err)
	}
}

func TestFinishJob_Unknown(t *testing.T) {
	db := openTestDB(t)

	err := FinishJob(db, newTestJob("01NOPE", "split", 1))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("FinishJob error = %v, want NOT_FOUND", err)
	}
}

func TestListJobs_OrderAndPagination(t *testing.T) {
	db := openTestDB(t)

	for i, id := range []string{"01A", "01B", "01C", "01D", "01E"} {
		if err := InsertJob(db, newTestJob(id, "compress", int64(1000+i), "x")); err != nil {
			t.Fatalf("InsertJob failed: %v", err)
		}
	}

	items, total, err := ListJobs(db, ListFilters{}, 2, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(items) != 2 || items[0].ID != "01E" || items[1].ID != "01D" {
		t.Errorf("page 1 = %+v", items)
	}

	items, _, err = ListJobs(db, ListFilters{}, 2, 4)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "01A" {
		t.Errorf("last page = %+v", items)
	}
}

func TestListJobs_StableOrderingOnTies(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []string{"01X1", "01X3", "01X2"} {
		if err := InsertJob(db, newTestJob(id, "split", 5000, "x")); err != nil {
			t.Fatalf("InsertJob failed: %v", err)
		}
	}

	items, _, err := ListJobs(db, ListFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	want := []string{"01X3", "01X2", "01X1"}
	for i, w := range want {
		if items[i].ID != w {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, w)
		}
	}
}

func TestListJobs_Filters(t *testing.T) {
	db := openTestDB(t)

	insertFinished(t, db, newTestJob("01F1", "split", 1, "a"), job.StatusSucceeded)
	insertFinished(t, db, newTestJob("01F2", "split", 2, "b"), job.StatusFailed)
	insertFinished(t, db, newTestJob("01F3", "merge", 3, "c"), job.StatusSucceeded)

	items, total, err := ListJobs(db, ListFilters{Kind: "split"}, 10, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("kind filter: total=%d len=%d, want 2", total, len(items))
	}

	items, total, err = ListJobs(db, ListFilters{Kind: "split", Status: job.StatusFailed}, 10, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if total != 1 || items[0].ID != "01F2" {
		t.Errorf("kind+status filter: total=%d items=%+v", total, items)
	}
}

func TestListJobs_Empty(t *testing.T) {
	db := openTestDB(t)

	items, total, err := ListJobs(db, ListFilters{Kind: "merge"}, 10, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("total=%d len=%d, want empty", total, len(items))
	}
}

func TestPurgeJobs(t *testing.T) {
	db := openTestDB(t)

	insertFinished(t, db, newTestJob("01P1", "split", 100, "a"), job.StatusSucceeded)
	insertFinished(t, db, newTestJob("01P2", "merge", 200, "b"), job.StatusFailed)
	insertFinished(t, db, newTestJob("01P3", "merge", 900, "c"), job.StatusSucceeded)
	// Running jobs survive even when old
	if err := InsertJob(db, newTestJob("01P4", "merge", 50, "d")); err != nil {
		t.Fatalf("InsertJob failed: %v", err)
	}

	kind := "merge"
	n, err := PurgeJobs(db, &kind, 500)
	if err != nil {
		t.Fatalf("PurgeJobs failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1 (01P2)", n)
	}

	n, err = PurgeJobs(db, nil, 500)
	if err != nil {
		t.Fatalf("PurgeJobs failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1 (01P1)", n)
	}

	_, total, err := ListJobs(db, ListFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if total != 2 {
		t.Errorf("remaining = %d, want 2", total)
	}
}

func TestStreamForExport(t *testing.T) {
	db := openTestDB(t)

	insertFinished(t, db, newTestJob("01S2", "split", 20, "b"), job.StatusSucceeded)
	insertFinished(t, db, newTestJob("01S1", "split", 10, "a"), job.StatusSucceeded)
	insertFinished(t, db, newTestJob("01S3", "merge", 30, "c"), job.StatusSucceeded)

	kind := "split"
	rows, err := StreamForExport(context.Background(), db, &kind)
	if err != nil {
		t.Fatalf("StreamForExport failed: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		j, err := ScanJobFromRows(rows)
		if err != nil {
			t.Fatalf("ScanJobFromRows failed: %v", err)
		}
		ids = append(ids, j.ID)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if len(ids) != 2 || ids[0] != "01S1" || ids[1] != "01S2" {
		t.Errorf("ids = %v, want [01S1 01S2]", ids)
	}
}
