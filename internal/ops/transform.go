package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/events"
	"github.com/hpungsan/quire/internal/job"
	"github.com/hpungsan/quire/internal/logfields"
)

// TransformInput contains parameters for the Transform operation.
type TransformInput struct {
	Kind   string // required, one of codec.Kinds()
	Inputs []batch.InputItem

	Ranges       string   // split
	RepeatColumn []string // excel-expand, default: config repeat_columns
	Row          int      // duplicate-row, spreadsheet numbering
	Count        int      // duplicate-row
	Compression  string   // default: config default_compression
}

// TransformOutput contains the result of the Transform operation.
// The caller owns Result and must Close it once the output is delivered.
type TransformOutput struct {
	JobID   string        `json:"job_id"`
	Result  *batch.Result `json:"-"`
	Skipped []string      `json:"skipped,omitempty"`
}

// Transform validates the request, records a job, runs the transform and
// finishes the job with its outcome.
func Transform(ctx context.Context, deps *Deps, input TransformInput) (*TransformOutput, error) {
	if deps.Runner == nil || deps.Codecs == nil {
		return nil, errors.NewInternal(nil)
	}
	cfg := deps.config()

	kind, err := codec.ParseKind(input.Kind)
	if err != nil {
		return nil, err
	}
	if len(input.Inputs) == 0 {
		return nil, errors.NewValidation("no input files")
	}

	opts := codec.Options{
		Ranges:       input.Ranges,
		RepeatColumn: input.RepeatColumn,
		Row:          input.Row,
		Count:        input.Count,
		Compression:  input.Compression,
	}
	if len(opts.RepeatColumn) == 0 {
		opts.RepeatColumn = cfg.RepeatColumns
	}
	if opts.Compression == "" {
		opts.Compression = cfg.DefaultCompression
	}

	t, pkg, err := deps.Codecs.Transform(kind, opts)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(input.Inputs))
	for i, in := range input.Inputs {
		names[i] = in.Name
	}
	j := job.New(string(kind), names)
	log := slog.With(logfields.JobID(j.ID), logfields.Kind(j.Kind))

	if deps.DB != nil {
		if err := db.InsertJob(deps.DB, j); err != nil {
			log.Warn("Failed to record job", logfields.Error(err))
		}
	}

	res, runErr := deps.Runner.Run(ctx, input.Inputs, t, pkg)
	finish(ctx, deps, j, res, runErr)
	if runErr != nil {
		log.Info("Transform failed", logfields.Error(runErr), logfields.DurationMS(float64(j.Duration().Microseconds())/1000))
		return nil, runErr
	}

	log.Info("Transform finished",
		logfields.Shape(string(res.Shape)),
		logfields.Item(res.Output.Name),
		logfields.Count(len(res.Members)),
		logfields.DurationMS(float64(j.Duration().Microseconds())/1000))

	return &TransformOutput{JobID: j.ID, Result: res, Skipped: j.Skipped}, nil
}

// finish records the outcome on j, persists it and publishes the event.
// History and event failures are logged, never returned.
func finish(ctx context.Context, deps *Deps, j *job.Job, res *batch.Result, runErr error) {
	switch {
	case runErr == nil:
		j.Status = job.StatusSucceeded
		j.Shape = string(res.Shape)
		j.OutputName = res.Output.Name
		j.Bytes = res.Output.Size
		for _, s := range res.Skipped {
			j.Skipped = append(j.Skipped, s.Name)
		}
	case errors.Is(runErr, errors.ErrCancelled):
		j.Status = job.StatusCancelled
		j.Error = runErr.Error()
	default:
		j.Status = job.StatusFailed
		j.Error = runErr.Error()
	}

	if deps.DB != nil {
		if err := db.FinishJob(deps.DB, j); err != nil {
			slog.Warn("Failed to finish job", logfields.JobID(j.ID), logfields.Error(err))
		}
	}
	if j.FinishedAt == nil {
		now := time.Now().UnixMilli()
		j.FinishedAt = &now
	}

	// The request context may already be cancelled; the event still goes out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	ev := events.JobEvent{
		JobID:      j.ID,
		Kind:       j.Kind,
		Status:     string(j.Status),
		Shape:      j.Shape,
		OutputName: j.OutputName,
		Inputs:     j.InputCount,
		Skipped:    j.Skipped,
		Bytes:      j.Bytes,
		Error:      j.Error,
		Timestamp:  time.UnixMilli(*j.FinishedAt).UTC(),
	}
	if err := deps.publisher().Publish(pubCtx, ev); err != nil {
		slog.Warn("Failed to publish job event", logfields.JobID(j.ID), logfields.Error(err))
	}
}

// Sink consumes a finished result, e.g. by streaming it to a client.
type Sink func(out *TransformOutput) error

// Deliver runs Transform, hands the output to sink and always releases the
// result's workspace afterwards.
func Deliver(ctx context.Context, deps *Deps, input TransformInput, sink Sink) (*TransformOutput, error) {
	out, err := Transform(ctx, deps, input)
	if err != nil {
		return nil, err
	}
	defer out.Result.Close()

	if err := sink(out); err != nil {
		return nil, err
	}
	return out, nil
}
