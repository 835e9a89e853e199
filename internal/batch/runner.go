// Package batch runs a per-item transform over a set of inputs inside one
// workspace and shapes the outcome into a single file or an archive.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hpungsan/quire/internal/archive"
	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/logfields"
	"github.com/hpungsan/quire/internal/metrics"
	"github.com/hpungsan/quire/internal/workspace"
)

// ApplyFunc transforms one input. Outputs must be written inside ws.
type ApplyFunc func(ctx context.Context, ws *workspace.Workspace, in InputItem) (OutputItem, error)

// CombineFunc folds the per-item outputs, in input order, into one output.
type CombineFunc func(ctx context.Context, ws *workspace.Workspace, outs []OutputItem) (OutputItem, error)

// Transform describes one transformation kind.
type Transform struct {
	Name string

	// SingleCapable transforms return a bare file for a one-item request.
	SingleCapable bool

	Apply ApplyFunc

	// Combine, when set, replaces archive packaging: survivors are folded
	// into a single output.
	Combine CombineFunc
}

// Packaging controls the archive built for multi-output results.
type Packaging struct {
	ArchiveName string
	Profile     archive.Profile
}

// DefaultArchiveName is used when Packaging.ArchiveName is empty.
const DefaultArchiveName = "quire-output.zip"

// Shape is the response form of a Result.
type Shape string

const (
	ShapeSingle  Shape = "single"
	ShapeArchive Shape = "archive"
)

// SkippedItem records an input dropped by skip-and-continue.
type SkippedItem struct {
	Name string
	Err  error
}

// Result is a finished transformation. It owns the workspace holding Output;
// the caller must Close it once Output has been delivered.
type Result struct {
	Shape       Shape
	Output      OutputItem
	Members     []OutputItem
	Skipped     []SkippedItem
	WorkspaceID string

	ws *workspace.Workspace
}

// Open opens the output file for reading.
func (r *Result) Open() (*os.File, error) {
	f, err := os.Open(r.Output.Path)
	if err != nil {
		return nil, qerrors.NewResource("failed to open result", err)
	}
	return f, nil
}

// Close disposes the result's workspace. Safe to call more than once.
func (r *Result) Close() {
	if r == nil {
		return
	}
	r.ws.Dispose()
}

// Runner executes transforms with a bounded worker pool.
type Runner struct {
	workspaces *workspace.Manager
	maxWorkers int
	rec        metrics.Recorder
}

// NewRunner creates a Runner. maxWorkers below 1 means 1.
func NewRunner(workspaces *workspace.Manager, maxWorkers int, rec metrics.Recorder) *Runner {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Runner{workspaces: workspaces, maxWorkers: maxWorkers, rec: metrics.OrNoop(rec)}
}

// Run applies t to inputs inside a fresh workspace.
//
// A single input with a SingleCapable transform yields ShapeSingle and any
// failure is returned as-is. Otherwise every input is processed; failures
// are skipped and listed in Result.Skipped, and the survivors are combined
// (ShapeSingle) or packed into an archive (ShapeArchive). When no input
// survives the error is EMPTY_RESULT.
//
// On error the workspace has already been disposed. On success it belongs
// to the Result.
func (r *Runner) Run(ctx context.Context, inputs []InputItem, t Transform, pkg Packaging) (res *Result, err error) {
	if len(inputs) == 0 {
		return nil, qerrors.NewValidation("no input files")
	}
	if t.Apply == nil {
		return nil, qerrors.NewInvalidRequest(fmt.Sprintf("transform %q has no apply function", t.Name))
	}

	start := time.Now()
	ws, err := r.workspaces.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		r.rec.ObserveTransformDuration(t.Name, time.Since(start))
		if err != nil {
			ws.Dispose()
			outcome := metrics.OutcomeFailed
			if qerrors.Is(err, qerrors.ErrCancelled) {
				outcome = metrics.OutcomeCancelled
			}
			r.rec.IncTransformOutcome(t.Name, outcome)
			return
		}
		if res == nil {
			ws.Dispose()
			return
		}
		r.rec.IncTransformOutcome(t.Name, metrics.Outcome(res.Shape))
	}()

	log := slog.With(logfields.WorkspaceID(ws.ID), logfields.Kind(t.Name))

	if len(inputs) == 1 && t.SingleCapable && t.Combine == nil {
		out, err := safeApply(ctx, ws, t, inputs[0])
		if cerr := cancelled(ctx, t.Name); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			return nil, err
		}
		log.Debug("Transform produced single output", logfields.Item(out.Name))
		return &Result{Shape: ShapeSingle, Output: out, Members: []OutputItem{out}, WorkspaceID: ws.ID, ws: ws}, nil
	}

	outs, skipped := r.applyAll(ctx, ws, inputs, t)
	if cerr := cancelled(ctx, t.Name); cerr != nil {
		return nil, cerr
	}
	for _, s := range skipped {
		r.rec.IncItemSkipped(t.Name)
		log.Warn("Skipping failed item", logfields.Item(s.Name), logfields.Error(s.Err))
	}
	if len(outs) == 0 {
		return nil, qerrors.NewEmptyResult(len(inputs))
	}

	if t.Combine != nil {
		out, err := safeCombine(ctx, ws, t, outs)
		if cerr := cancelled(ctx, t.Name); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			return nil, err
		}
		return &Result{Shape: ShapeSingle, Output: out, Members: outs, Skipped: skipped, WorkspaceID: ws.ID, ws: ws}, nil
	}

	arc, err := pack(ws, outs, pkg)
	if err != nil {
		return nil, err
	}
	log.Debug("Packed archive", logfields.Item(arc.Name), logfields.Count(len(outs)))
	return &Result{Shape: ShapeArchive, Output: arc, Members: packable(outs), Skipped: skipped, WorkspaceID: ws.ID, ws: ws}, nil
}

// applyAll runs t.Apply over inputs with at most maxWorkers in flight.
// Survivors are returned in input order.
func (r *Runner) applyAll(ctx context.Context, ws *workspace.Workspace, inputs []InputItem, t Transform) ([]OutputItem, []SkippedItem) {
	type result struct {
		out OutputItem
		err error
	}
	results := make([]result, len(inputs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(r.maxWorkers, len(inputs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out, err := safeApply(ctx, ws, t, inputs[i])
				results[i] = result{out: out, err: err}
			}
		}()
	}

feed:
	for i := range inputs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(inputs); j++ {
				results[j].err = ctx.Err()
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var outs []OutputItem
	var skipped []SkippedItem
	for i, res := range results {
		if res.err != nil {
			skipped = append(skipped, SkippedItem{Name: inputs[i].Name, Err: res.err})
			continue
		}
		outs = append(outs, res.out)
	}
	return outs, skipped
}

// safeApply runs t.Apply and turns a codec panic into an INTERNAL error so
// the item is skipped (or the run fails) with the workspace still disposed.
func safeApply(ctx context.Context, ws *workspace.Workspace, t Transform, in InputItem) (out OutputItem, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Recovered from panic in transform",
				logfields.Kind(t.Name), logfields.Item(in.Name), slog.Any("panic", p))
			err = qerrors.NewInternal(fmt.Errorf("%s panicked on %s: %v", t.Name, in.Name, p))
		}
	}()
	return t.Apply(ctx, ws, in)
}

func safeCombine(ctx context.Context, ws *workspace.Workspace, t Transform, outs []OutputItem) (out OutputItem, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Recovered from panic in combine", logfields.Kind(t.Name), slog.Any("panic", p))
			err = qerrors.NewInternal(fmt.Errorf("%s combine panicked: %v", t.Name, p))
		}
	}()
	return t.Combine(ctx, ws, outs)
}

func pack(ws *workspace.Workspace, outs []OutputItem, pkg Packaging) (OutputItem, error) {
	name := pkg.ArchiveName
	if name == "" {
		name = DefaultArchiveName
	}
	path, err := ws.Path(name)
	if err != nil {
		return OutputItem{}, err
	}

	var items []archive.Item
	for _, o := range packable(outs) {
		items = append(items, archive.Item{Name: o.Name, Path: o.Path})
	}
	if err := archive.PackFile(path, items, pkg.Profile); err != nil {
		return OutputItem{}, err
	}

	out := OutputItem{Name: name, Path: path, MediaType: MediaZip}
	if fi, err := os.Stat(path); err == nil {
		out.Size = fi.Size()
	}
	return out, nil
}

func packable(outs []OutputItem) []OutputItem {
	var keep []OutputItem
	for _, o := range outs {
		if o.Packable {
			keep = append(keep, o)
		}
	}
	return keep
}

func cancelled(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return qerrors.NewCancelled(op)
	}
	return nil
}
