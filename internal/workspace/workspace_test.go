package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	qerrors "github.com/hpungsan/quire/internal/errors"
	"github.com/hpungsan/quire/internal/metrics"
)

func TestManager_OpenCreatesUniqueDirs(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)

	a, err := mgr.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer a.Dispose()
	b, err := mgr.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Dispose()

	if a.Root == b.Root {
		t.Fatalf("workspaces share a root: %s", a.Root)
	}
	if !strings.HasPrefix(filepath.Base(a.Root), DirPrefix) {
		t.Errorf("root %s missing prefix %q", a.Root, DirPrefix)
	}
	if _, err := os.Stat(a.Root); err != nil {
		t.Errorf("workspace dir missing: %v", err)
	}
}

func TestManager_OpenUnwritableRoot(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(filepath.Join(blocker, "nested"), nil)
	_, err := mgr.Open(context.Background())
	if !qerrors.Is(err, qerrors.ErrResource) {
		t.Fatalf("Open() error = %v, want RESOURCE", err)
	}
}

func TestManager_OpenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewManager(t.TempDir(), nil).Open(ctx)
	if !qerrors.Is(err, qerrors.ErrCancelled) {
		t.Fatalf("Open() error = %v, want CANCELLED", err)
	}
}

func TestWorkspace_RegisterDedupesNames(t *testing.T) {
	ws, err := NewManager(t.TempDir(), nil).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Dispose()

	p1, err := ws.Register("a.pdf", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ws.Register("../../etc/a.pdf", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(p1) != "a.pdf" || filepath.Base(p2) != "a-1.pdf" {
		t.Errorf("names = %s, %s; want a.pdf, a-1.pdf", filepath.Base(p1), filepath.Base(p2))
	}
	if filepath.Dir(p2) != ws.Root {
		t.Errorf("registered outside workspace: %s", p2)
	}
	got, _ := os.ReadFile(p2)
	if string(got) != "two" {
		t.Errorf("content = %q", got)
	}
	if files := ws.Files(); len(files) != 2 || files[0] != p1 || files[1] != p2 {
		t.Errorf("Files() = %v", files)
	}
}

func TestWorkspace_PathConcurrent(t *testing.T) {
	ws, err := NewManager(t.TempDir(), nil).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Dispose()

	var wg sync.WaitGroup
	paths := make([]string, 20)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := ws.Path("out.pdf")
			if err != nil {
				t.Error(err)
				return
			}
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("duplicate path %s", p)
		}
		seen[p] = true
	}
}

func TestWorkspace_DisposeIdempotent(t *testing.T) {
	rec := metrics.NewCountingRecorder()
	ws, err := NewManager(t.TempDir(), rec).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ws.Register("a.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}

	ws.Dispose()
	ws.Dispose()

	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Dispose: %v", err)
	}
	if rec.Opened() != 1 || rec.Disposed() != 1 {
		t.Errorf("opened=%d disposed=%d, want 1/1", rec.Opened(), rec.Disposed())
	}
	if _, err := ws.Register("b.txt", nil); !qerrors.Is(err, qerrors.ErrResource) {
		t.Errorf("Register after Dispose error = %v, want RESOURCE", err)
	}
}

func TestWorkspace_DisposeMissingDir(t *testing.T) {
	ws, err := NewManager(t.TempDir(), nil).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		t.Fatal(err)
	}
	ws.Dispose()

	var nilWS *Workspace
	nilWS.Dispose()
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"dir/report.pdf":      "report.pdf",
		`C:\Users\x\scan.png`: "scan.png",
		"..":                  "file",
		"":                    "file",
		"/":                   "file",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSweeper_RemovesExpiredOnly(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, DirPrefix+"old")
	fresh := filepath.Join(root, DirPrefix+"fresh")
	foreign := filepath.Join(root, "other-old")
	for _, d := range []string{old, fresh, foreign} {
		if err := os.Mkdir(d, 0o750); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	for _, d := range []string{old, foreign} {
		if err := os.Chtimes(d, past, past); err != nil {
			t.Fatal(err)
		}
	}

	s, err := NewSweeper(root, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired workspace not removed")
	}
	for _, d := range []string{fresh, foreign} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("%s removed unexpectedly", d)
		}
	}
}

func TestSweeper_MissingRoot(t *testing.T) {
	s, err := NewSweeper(filepath.Join(t.TempDir(), "absent"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Sweep(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Sweep() = %d, %v", n, err)
	}
}
