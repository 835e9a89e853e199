package ops

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/hpungsan/quire/internal/batch"
	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/config"
	"github.com/hpungsan/quire/internal/db"
	"github.com/hpungsan/quire/internal/events"
	"github.com/hpungsan/quire/internal/workspace"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.JobEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) last(t *testing.T) events.JobEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("no events published")
	}
	return p.events[len(p.events)-1]
}

type testEnv struct {
	deps      *Deps
	db        *sql.DB
	events    *recordingPublisher
	workRoot  string
	exportDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	database, err := db.Init(base)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.ExportsDir = t.TempDir()
	workRoot := t.TempDir()
	pub := &recordingPublisher{}

	return &testEnv{
		deps: &Deps{
			DB:     database,
			Config: cfg,
			Runner: batch.NewRunner(workspace.NewManager(workRoot, nil), 2, nil),
			Codecs: codec.NewRegistry(nil, nil, nil),
			Events: pub,
		},
		db:        database,
		events:    pub,
		workRoot:  workRoot,
		exportDir: cfg.ExportsDir,
	}
}

func csvItem(name, content string) batch.InputItem {
	return batch.NewInputItem(name, []byte(content), "text/csv")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{7, 7},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tc := range tests {
		if got := clampLimit(tc.in, DefaultListLimit, MaxListLimit); got != tc.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func codecWithDisabled(kinds ...string) *codec.Registry {
	return codec.NewRegistry(nil, nil, nil, kinds...)
}
