package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/logfields"
	"github.com/hpungsan/quire/internal/metrics"
)

// DirPrefix marks directories owned by a Manager. The Sweeper only touches these.
const DirPrefix = "quire-"

// Manager creates workspaces under a root directory.
type Manager struct {
	root string
	rec  metrics.Recorder
}

// NewManager creates a workspace manager. An empty root means os.TempDir().
func NewManager(root string, rec metrics.Recorder) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{root: root, rec: metrics.OrNoop(rec)}
}

// Root returns the directory workspaces are created in.
func (m *Manager) Root() string { return m.root }

// Open creates a fresh, uniquely named workspace directory.
func (m *Manager) Open(ctx context.Context) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, qerrors.NewCancelled("workspace open")
	}
	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return nil, qerrors.NewResource("failed to create workspace root", err)
	}

	id := uuid.NewString()
	dir := filepath.Join(m.root, DirPrefix+id)
	if err := os.Mkdir(dir, 0o750); err != nil {
		return nil, qerrors.NewResource("failed to create workspace", err)
	}

	m.rec.IncWorkspaceOpened()
	slog.Debug("Created workspace", logfields.WorkspaceID(id), logfields.Path(dir))

	return &Workspace{
		ID:    id,
		Root:  dir,
		rec:   m.rec,
		names: make(map[string]struct{}),
	}, nil
}

// Workspace is a request-scoped scratch directory. Safe for concurrent
// Register/Path calls from batch workers.
type Workspace struct {
	ID   string
	Root string

	rec metrics.Recorder

	mu    sync.Mutex
	names map[string]struct{}
	files []string

	disposeOnce sync.Once
}

// Register writes data under the workspace and returns its path. Only the
// base name of name is used; collisions get a numeric suffix (a.pdf, a-1.pdf).
func (w *Workspace) Register(name string, data []byte) (string, error) {
	path, err := w.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", qerrors.NewResource(fmt.Sprintf("failed to write %s", filepath.Base(path)), err)
	}
	return path, nil
}

// Path reserves a unique path under the workspace without writing to it.
// Codec engines that produce their own files write to the returned path.
func (w *Workspace) Path(name string) (string, error) {
	base := SafeName(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.names == nil {
		return "", qerrors.NewResource("workspace disposed", nil)
	}

	candidate := base
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		if _, taken := w.names[candidate]; !taken {
			break
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	w.names[candidate] = struct{}{}

	path := filepath.Join(w.Root, candidate)
	w.files = append(w.files, path)
	return path, nil
}

// Files returns the reserved paths in registration order.
func (w *Workspace) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.files))
	copy(out, w.files)
	return out
}

// Dispose removes the workspace directory. Safe to call multiple times;
// removal errors are logged, never returned.
func (w *Workspace) Dispose() {
	if w == nil {
		return
	}
	w.disposeOnce.Do(func() {
		w.mu.Lock()
		w.names = nil
		w.mu.Unlock()

		if err := os.RemoveAll(w.Root); err != nil {
			slog.Warn("Failed to remove workspace",
				logfields.WorkspaceID(w.ID),
				logfields.Path(w.Root),
				logfields.Error(err))
		} else {
			slog.Debug("Removed workspace", logfields.WorkspaceID(w.ID))
		}
		w.rec.IncWorkspaceDisposed()
	})
}

// SafeName reduces an untrusted file name to a usable base name.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	switch base {
	case ".", "..", "/", "":
		return "file"
	}
	return base
}
