package ops

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/job"
)

func TestTransform_RecordsSucceededJob(t *testing.T) {
	env := newTestEnv(t)

	out, err := Transform(context.Background(), env.deps, TransformInput{
		Kind: "compress",
		Inputs: []batch.InputItem{
			batch.NewInputItem("a.txt", []byte("alpha"), ""),
			batch.NewInputItem("b.txt", []byte("beta"), ""),
		},
	})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	defer out.Result.Close()

	if out.Result.Shape != batch.ShapeArchive {
		t.Errorf("Shape = %q, want archive", out.Result.Shape)
	}

	j, err := db.GetJob(env.db, out.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if j.Status != job.StatusSucceeded {
		t.Errorf("Status = %q, want succeeded", j.Status)
	}
	if j.OutputName != "compressed_files.zip" || j.Shape != "archive" {
		t.Errorf("job = %+v", j)
	}
	if j.Bytes != out.Result.Output.Size || j.Bytes == 0 {
		t.Errorf("Bytes = %d, want %d", j.Bytes, out.Result.Output.Size)
	}
	if j.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	ev := env.events.last(t)
	if ev.JobID != out.JobID || ev.Status != "succeeded" || ev.Inputs != 2 {
		t.Errorf("event = %+v", ev)
	}
}

func TestTransform_UnknownKindRecordsNothing(t *testing.T) {
	env := newTestEnv(t)

	_, err := Transform(context.Background(), env.deps, TransformInput{
		Kind:   "shred",
		Inputs: []batch.InputItem{csvItem("a.csv", "x\n1\n")},
	})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}

	out, err := ListJobs(env.db, ListInput{})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if out.Pagination.Total != 0 {
		t.Errorf("jobs recorded = %d, want 0", out.Pagination.Total)
	}
	if len(env.events.events) != 0 {
		t.Errorf("events = %d, want 0", len(env.events.events))
	}
}

func TestTransform_NoInputs(t *testing.T) {
	env := newTestEnv(t)

	_, err := Transform(context.Background(), env.deps, TransformInput{Kind: "compress"})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("err = %v, want VALIDATION", err)
	}
}

func TestTransform_FailureRecordsFailedJob(t *testing.T) {
	env := newTestEnv(t)

	_, err := Transform(context.Background(), env.deps, TransformInput{
		Kind:   "duplicate-row",
		Inputs: []batch.InputItem{csvItem("list.csv", "k\na\n")},
		Row:    9,
		Count:  1,
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}

	ev := env.events.last(t)
	if ev.Status != "failed" || !strings.Contains(ev.Error, "row not found") {
		t.Errorf("event = %+v", ev)
	}
	j, err := db.GetJob(env.db, ev.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if j.Status != job.StatusFailed || j.Error == "" {
		t.Errorf("job = %+v", j)
	}
}

func TestTransform_CancelledRecordsCancelledJob(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Transform(ctx, env.deps, TransformInput{
		Kind:   "compress",
		Inputs: []batch.InputItem{csvItem("a.csv", "x\n")},
	})
	if !errors.Is(err, errors.ErrCancelled) {
		t.Fatalf("err = %v, want CANCELLED", err)
	}
	if ev := env.events.last(t); ev.Status != "cancelled" {
		t.Errorf("event status = %q, want cancelled", ev.Status)
	}
}

func TestTransform_ConfigDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Config.RepeatColumns = []string{"copies"}

	out, err := Transform(context.Background(), env.deps, TransformInput{
		Kind:   "excel-expand",
		Inputs: []batch.InputItem{csvItem("labels.csv", "name,copies\nx,2\n")},
	})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	defer out.Result.Close()

	data, err := os.ReadFile(out.Result.Output.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "name,copies\nx,2\nx,2\n" {
		t.Errorf("output = %q", data)
	}
}

func TestTransform_DisabledKind(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Codecs = codecWithDisabled("compress")

	_, err := Transform(context.Background(), env.deps, TransformInput{
		Kind:   "compress",
		Inputs: []batch.InputItem{csvItem("a.csv", "x\n")},
	})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestTransform_WithoutHistory(t *testing.T) {
	env := newTestEnv(t)
	env.deps.DB = nil
	env.deps.Events = nil

	out, err := Transform(context.Background(), env.deps, TransformInput{
		Kind:   "excel-expand",
		Inputs: []batch.InputItem{csvItem("a.csv", "v\n1\n")},
	})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	out.Result.Close()
	if out.JobID == "" {
		t.Error("JobID is empty")
	}
}

func TestDeliver_ClosesResult(t *testing.T) {
	env := newTestEnv(t)

	var outputPath string
	out, err := Deliver(context.Background(), env.deps, TransformInput{
		Kind:   "excel-expand",
		Inputs: []batch.InputItem{csvItem("a.csv", "v\n1\n")},
	}, func(out *TransformOutput) error {
		outputPath = out.Result.Output.Path
		if _, err := os.Stat(outputPath); err != nil {
			return fmt.Errorf("output missing inside sink: %w", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if out.JobID == "" {
		t.Error("JobID is empty")
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Errorf("output still exists after Deliver: %v", err)
	}
	assertNoWorkspaces(t, env.workRoot)
}

func TestDeliver_SinkErrorStillCloses(t *testing.T) {
	env := newTestEnv(t)

	_, err := Deliver(context.Background(), env.deps, TransformInput{
		Kind:   "compress",
		Inputs: []batch.InputItem{csvItem("a.csv", "v\n")},
	}, func(*TransformOutput) error {
		return errors.NewResource("client went away", nil)
	})
	if !errors.Is(err, errors.ErrResource) {
		t.Fatalf("err = %v, want RESOURCE", err)
	}
	assertNoWorkspaces(t, env.workRoot)
}

func assertNoWorkspaces(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspaces left behind: %d", len(entries))
	}
}
