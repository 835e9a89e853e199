package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.MaxWorkers != def.MaxWorkers {
		t.Errorf("MaxWorkers = %d, want %d", cfg.MaxWorkers, def.MaxWorkers)
	}
	if cfg.DefaultCompression != "recommended" {
		t.Errorf("DefaultCompression = %q, want recommended", cfg.DefaultCompression)
	}
	if cfg.WorkspaceTTL() != time.Hour {
		t.Errorf("WorkspaceTTL() = %v, want 1h", cfg.WorkspaceTTL())
	}
	if cfg.SweepInterval() != 10*time.Minute {
		t.Errorf("SweepInterval() = %v, want 10m", cfg.SweepInterval())
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{"max_workers": 8, "default_compression": "high"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", cfg.MaxWorkers)
	}
	if cfg.DefaultCompression != "high" {
		t.Errorf("DefaultCompression = %q, want high", cfg.DefaultCompression)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), "max_upload_bytes: 2048\nrepeat_columns:\n  - copies\n  - qty\nnats_url: nats://localhost:4222\n")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxUploadBytes != 2048 {
		t.Errorf("MaxUploadBytes = %d, want 2048", cfg.MaxUploadBytes)
	}
	if len(cfg.RepeatColumns) != 2 || cfg.RepeatColumns[1] != "qty" {
		t.Errorf("RepeatColumns = %v, want [copies qty]", cfg.RepeatColumns)
	}
	if cfg.NATSURL != "nats://localhost:4222" {
		t.Errorf("NATSURL = %q", cfg.NATSURL)
	}
}

func TestLoad_JSONPreferredOverYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{"max_workers": 2}`)
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), "max_workers: 9\n")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxWorkers != 2 {
		t.Errorf("MaxWorkers = %d, want 2", cfg.MaxWorkers)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.yaml"), "max_workers: [1, 2\n")

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledLists(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "config.json"), `{"disabled_tools": ["jobs_purge", "transform_run"], "disabled_kinds": ["convert-to-word"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "jobs_purge" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "jobs_purge")
	}
	if len(cfg.DisabledKinds) != 1 || cfg.DisabledKinds[0] != "convert-to-word" {
		t.Errorf("DisabledKinds = %v", cfg.DisabledKinds)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeFile(t, filepath.Join(globalDir, "config.json"), `{"max_workers": 8, "disabled_tools": ["jobs_purge"]}`)
	writeFile(t, filepath.Join(repoRoot, DirName, "config.json"), `{"max_workers": 2, "disabled_tools": ["transform_run"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.MaxWorkers != 2 {
		t.Errorf("MaxWorkers = %d, want 2 (repo override)", cfg.MaxWorkers)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.MaxWorkers != DefaultConfig().MaxWorkers {
		t.Errorf("MaxWorkers = %d, want default", cfg.MaxWorkers)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, DirName, "config.yaml"), "disabled_kinds: [merge]\n")

	subdir := filepath.Join(tmpDir, "subdir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if len(cfg.DisabledKinds) != 1 || cfg.DisabledKinds[0] != "merge" {
		t.Errorf("DisabledKinds = %v, want [merge]", cfg.DisabledKinds)
	}
}

func TestFindRepoConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, DirName, "config.json")
	writeFile(t, configPath, `{}`)

	deeper := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(deeper, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(tmpDir); found != configPath {
		t.Errorf("FindRepoConfig(root) = %q, want %q", found, configPath)
	}
	if found := FindRepoConfig(deeper); found != configPath {
		t.Errorf("FindRepoConfig(deeper) = %q, want %q", found, configPath)
	}
	if found := FindRepoConfig(""); found != "" {
		t.Errorf("FindRepoConfig(\"\") = %q, want empty", found)
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"QUIRE_MAX_WORKERS":        " 6 ",
		"QUIRE_MAX_UPLOAD_BYTES":   "1048576",
		"QUIRE_ALLOW_UNSAFE_PATHS": "true",
		"QUIRE_DISABLED_KINDS":     "merge, split",
		"QUIRE_LOG_FORMAT":         "json",
		"QUIRE_PDFTOPPM_PATH":      "/opt/poppler/bin/pdftoppm",
		"OTHER_MAX_WORKERS":        "99",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.MaxWorkers != 6 {
		t.Errorf("MaxWorkers = %d, want 6", cfg.MaxWorkers)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if !cfg.AllowUnsafePaths {
		t.Error("AllowUnsafePaths = false, want true")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.PdftoppmPath != "/opt/poppler/bin/pdftoppm" {
		t.Errorf("PdftoppmPath = %q", cfg.PdftoppmPath)
	}

	merged := Merge(DefaultConfig(), cfg)
	if len(merged.DisabledKinds) != 2 || merged.DisabledKinds[1] != "split" {
		t.Errorf("DisabledKinds = %v, want [merge split]", merged.DisabledKinds)
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"QUIRE_MAX_WORKERS":      "many",
		"QUIRE_DOWNLOAD_BROWSER": "maybe",
	}))
	if err == nil {
		t.Fatal("FromEnv() expected error, got nil")
	}
}

func TestLoadAll_EnvFileAndProcessEnv(t *testing.T) {
	startDir := t.TempDir()
	writeFile(t, filepath.Join(startDir, ".env"), "QUIRE_NATS_SUBJECT=from.dotenv\nQUIRE_SOFFICE_PATH=/opt/lo/soffice\n")
	t.Setenv("QUIRE_SOFFICE_PATH", "/usr/bin/soffice")
	// Cleared after the test so the .env value does not leak.
	t.Setenv("QUIRE_NATS_SUBJECT", "")
	if err := os.Unsetenv("QUIRE_NATS_SUBJECT"); err != nil {
		t.Fatalf("Unsetenv() error = %v", err)
	}

	cfg, err := LoadAll(t.TempDir(), startDir)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if cfg.NATSSubject != "from.dotenv" {
		t.Errorf("NATSSubject = %q, want from.dotenv", cfg.NATSSubject)
	}
	if cfg.SofficePath != "/usr/bin/soffice" {
		t.Errorf("SofficePath = %q, want process env to win", cfg.SofficePath)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{MaxWorkers: 10, DBMaxOpenConns: 5, MaxUploadBytes: 100}
	overlay := &Config{MaxWorkers: 3}

	result := Merge(base, overlay)

	if result.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3 (overlay)", result.MaxWorkers)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.MaxUploadBytes != 100 {
		t.Errorf("MaxUploadBytes = %d, want 100", result.MaxUploadBytes)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{AllowUnsafePaths: true}, &Config{DownloadBrowser: true})

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
	if !result.DownloadBrowser {
		t.Error("DownloadBrowser should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{RepeatColumns: []string{"cantidad", " copies "}}
	overlay := &Config{RepeatColumns: []string{"copies", "qty", ""}}

	result := Merge(base, overlay)

	want := []string{"cantidad", "copies", "qty"}
	if len(result.RepeatColumns) != len(want) {
		t.Fatalf("RepeatColumns = %v, want %v", result.RepeatColumns, want)
	}
	for i := range want {
		if result.RepeatColumns[i] != want[i] {
			t.Errorf("RepeatColumns[%d] = %q, want %q", i, result.RepeatColumns[i], want[i])
		}
	}
}
