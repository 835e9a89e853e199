package metrics

import (
	"sync"
	"time"
)

// CountingRecorder keeps observations in memory.
type CountingRecorder struct {
	mu                 sync.Mutex
	Outcomes           map[string]int
	Skipped            map[string]int
	Durations          map[string]int
	WorkspacesOpened   int
	WorkspacesDisposed int
}

// NewCountingRecorder returns an empty CountingRecorder.
func NewCountingRecorder() *CountingRecorder {
	return &CountingRecorder{
		Outcomes:  make(map[string]int),
		Skipped:   make(map[string]int),
		Durations: make(map[string]int),
	}
}

func (c *CountingRecorder) ObserveTransformDuration(kind string, _ time.Duration) {
	c.mu.Lock()
	c.Durations[kind]++
	c.mu.Unlock()
}

func (c *CountingRecorder) IncTransformOutcome(kind string, outcome Outcome) {
	c.mu.Lock()
	c.Outcomes[kind+"/"+string(outcome)]++
	c.mu.Unlock()
}

func (c *CountingRecorder) IncItemSkipped(kind string) {
	c.mu.Lock()
	c.Skipped[kind]++
	c.mu.Unlock()
}

func (c *CountingRecorder) IncWorkspaceOpened() {
	c.mu.Lock()
	c.WorkspacesOpened++
	c.mu.Unlock()
}

func (c *CountingRecorder) IncWorkspaceDisposed() {
	c.mu.Lock()
	c.WorkspacesDisposed++
	c.mu.Unlock()
}

// Opened returns the number of workspaces opened so far.
func (c *CountingRecorder) Opened() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WorkspacesOpened
}

// Disposed returns the number of workspaces disposed so far.
func (c *CountingRecorder) Disposed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WorkspacesDisposed
}

// Outcome returns the count recorded for kind/outcome.
func (c *CountingRecorder) Outcome(kind string, outcome Outcome) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Outcomes[kind+"/"+string(outcome)]
}

// SkippedFor returns the skipped-item count for kind.
func (c *CountingRecorder) SkippedFor(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Skipped[kind]
}
