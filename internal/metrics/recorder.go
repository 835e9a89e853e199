// Package metrics defines the observability hooks used by the transformation
// pipeline. The default is NoopRecorder; PrometheusRecorder backs /metrics.
package metrics

import "time"

// Outcome enumerates transform result categories for counters.
type Outcome string

const (
	OutcomeSingle    Outcome = "single"
	OutcomeArchive   Outcome = "archive"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Recorder receives pipeline observations. Implementations must be safe for
// concurrent use; per-item hooks are called from worker goroutines.
type Recorder interface {
	ObserveTransformDuration(kind string, d time.Duration)
	IncTransformOutcome(kind string, outcome Outcome)
	IncItemSkipped(kind string)
	IncWorkspaceOpened()
	IncWorkspaceDisposed()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTransformDuration(string, time.Duration) {}
func (NoopRecorder) IncTransformOutcome(string, Outcome)            {}
func (NoopRecorder) IncItemSkipped(string)                          {}
func (NoopRecorder) IncWorkspaceOpened()                            {}
func (NoopRecorder) IncWorkspaceDisposed()                          {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
