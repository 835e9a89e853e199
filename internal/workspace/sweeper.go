package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/hpungsan/quire/internal/logfields"
)

// Sweeper periodically removes workspace directories left behind by a crash.
type Sweeper struct {
	root string
	ttl  time.Duration

	scheduler gocron.Scheduler
	now       func() time.Time
}

// NewSweeper creates a sweeper for workspaces under root older than ttl.
func NewSweeper(root string, ttl time.Duration) (*Sweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Sweeper{root: root, ttl: ttl, scheduler: s, now: time.Now}, nil
}

// Start schedules a sweep every interval and starts the scheduler.
func (s *Sweeper) Start(interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(context.Background()); err != nil {
				slog.Warn("Workspace sweep failed", logfields.Error(err))
			}
		}),
		gocron.WithName("workspace-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep job: %w", err)
	}
	slog.Info("Starting workspace sweeper",
		logfields.Path(s.root),
		slog.Duration("interval", interval),
		slog.Duration("ttl", s.ttl))
	s.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

// Sweep removes expired workspace directories once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read workspace root: %w", err)
	}

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !e.IsDir() || !strings.HasPrefix(e.Name(), DirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove orphaned workspace", logfields.Path(path), logfields.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Swept orphaned workspaces", logfields.Path(s.root), logfields.Count(removed))
	}
	return removed, nil
}
