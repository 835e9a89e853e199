package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DirName is the name of the global and per-repo config directory.
const DirName = ".quire"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUIRE_"

// Config holds application configuration.
type Config struct {
	// WorkRoot is where request workspaces are created. Empty means the OS temp dir.
	WorkRoot string `json:"work_root,omitempty" yaml:"work_root,omitempty"`

	// ExportsDir is the default destination for CLI and MCP outputs.
	// Empty means ~/.quire/exports.
	ExportsDir string `json:"exports_dir,omitempty" yaml:"exports_dir,omitempty"`

	// AllowedPaths is an allowlist of directories for reading inputs and writing outputs.
	// Paths outside ExportsDir require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions (symlink checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// DefaultCompression is the archive profile used when a request names none:
	// "low", "recommended" or "high".
	DefaultCompression string `json:"default_compression,omitempty" yaml:"default_compression,omitempty"`

	// MaxWorkers bounds per-request item concurrency.
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`

	// MaxUploadBytes caps the total size of one HTTP upload.
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty" yaml:"max_upload_bytes,omitempty"`

	// WorkspaceTTLMinutes is the age after which the sweeper removes a
	// leftover workspace directory.
	WorkspaceTTLMinutes int `json:"workspace_ttl_minutes,omitempty" yaml:"workspace_ttl_minutes,omitempty"`

	// SweepIntervalMinutes is how often the server runs the sweeper.
	SweepIntervalMinutes int `json:"sweep_interval_minutes,omitempty" yaml:"sweep_interval_minutes,omitempty"`

	// RepeatColumns lists the header names excel-expand accepts as the
	// repeat-count column when a request names none.
	RepeatColumns []string `json:"repeat_columns,omitempty" yaml:"repeat_columns,omitempty"`

	// SofficePath is the LibreOffice binary. Empty means "soffice" on PATH.
	SofficePath string `json:"soffice_path,omitempty" yaml:"soffice_path,omitempty"`
	// PdftoppmPath is the Poppler rasterizer used for PDF previews. Empty
	// means "pdftoppm" on PATH.
	PdftoppmPath string `json:"pdftoppm_path,omitempty" yaml:"pdftoppm_path,omitempty"`

	// ChromePath is the Chrome/Chromium binary used for HTML rendering.
	ChromePath string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`

	// DownloadBrowser lets the renderer fetch a Chromium build when none is installed.
	DownloadBrowser bool `json:"download_browser,omitempty" yaml:"download_browser,omitempty"`

	// NATSURL enables job events when set.
	NATSURL string `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`

	// NATSSubject is the subject job events are published on.
	NATSSubject string `json:"nats_subject,omitempty" yaml:"nats_subject,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// DisabledKinds is a list of transform kinds to refuse on every front-end.
	DisabledKinds []string `json:"disabled_kinds,omitempty" yaml:"disabled_kinds,omitempty"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// LogFormat is text or json.
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultCompression:   "recommended",
		MaxWorkers:           4,
		MaxUploadBytes:       100 << 20,
		WorkspaceTTLMinutes:  60,
		SweepIntervalMinutes: 10,
		NATSSubject:          "quire.jobs",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// WorkspaceTTL returns WorkspaceTTLMinutes as a duration.
func (c *Config) WorkspaceTTL() time.Duration {
	return time.Duration(c.WorkspaceTTLMinutes) * time.Minute
}

// SweepInterval returns SweepIntervalMinutes as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// Load loads configuration from baseDir/config.json (or config.yaml).
// Returns default config if neither file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.quire.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(findConfigFile(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.quire) and repo (.quire) directories.
// Repo config is found by walking upward from startDir to find the nearest .quire/config file.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(findConfigFile(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// LoadAll is LoadWithRepo followed by environment overrides. .env files in
// startDir are read first; variables already set in the process win.
func LoadAll(globalDir, startDir string) (*Config, error) {
	cfg, err := LoadWithRepo(globalDir, startDir)
	if err != nil {
		return nil, err
	}
	LoadEnvFiles(filepath.Join(startDir, ".env"), filepath.Join(startDir, ".env.local"))
	env, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	return Merge(cfg, env), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .quire config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		if path := findConfigFile(filepath.Join(dir, DirName)); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// findConfigFile returns dir/config.json, else dir/config.yaml, else "".
func findConfigFile(dir string) string {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or missing (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch filepath.Ext(configPath) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE files into the process environment. Missing
// files are skipped and existing variables are not overwritten.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// FromEnv builds an overlay config from QUIRE_* variables. Lists are
// comma-separated.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.Split(v, ",")
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("WORK_ROOT", &cfg.WorkRoot)
	str("EXPORTS_DIR", &cfg.ExportsDir)
	list("ALLOWED_PATHS", &cfg.AllowedPaths)
	flag("ALLOW_UNSAFE_PATHS", &cfg.AllowUnsafePaths)
	str("DEFAULT_COMPRESSION", &cfg.DefaultCompression)
	num("MAX_WORKERS", &cfg.MaxWorkers)
	if v, ok := lookup(EnvPrefix + "MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", EnvPrefix, err))
		} else {
			cfg.MaxUploadBytes = n
		}
	}
	num("WORKSPACE_TTL_MINUTES", &cfg.WorkspaceTTLMinutes)
	num("SWEEP_INTERVAL_MINUTES", &cfg.SweepIntervalMinutes)
	list("REPEAT_COLUMNS", &cfg.RepeatColumns)
	str("SOFFICE_PATH", &cfg.SofficePath)
	str("PDFTOPPM_PATH", &cfg.PdftoppmPath)
	str("CHROME_PATH", &cfg.ChromePath)
	flag("DOWNLOAD_BROWSER", &cfg.DownloadBrowser)
	str("NATS_URL", &cfg.NATSURL)
	str("NATS_SUBJECT", &cfg.NATSSubject)
	num("DB_MAX_OPEN_CONNS", &cfg.DBMaxOpenConns)
	num("DB_MAX_IDLE_CONNS", &cfg.DBMaxIdleConns)
	list("DISABLED_TOOLS", &cfg.DisabledTools)
	list("DISABLED_KINDS", &cfg.DisabledKinds)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.WorkRoot = pick(overlay.WorkRoot, base.WorkRoot)
	result.ExportsDir = pick(overlay.ExportsDir, base.ExportsDir)
	result.DefaultCompression = pick(overlay.DefaultCompression, base.DefaultCompression)
	result.MaxWorkers = pick(overlay.MaxWorkers, base.MaxWorkers)
	result.MaxUploadBytes = pick(overlay.MaxUploadBytes, base.MaxUploadBytes)
	result.WorkspaceTTLMinutes = pick(overlay.WorkspaceTTLMinutes, base.WorkspaceTTLMinutes)
	result.SweepIntervalMinutes = pick(overlay.SweepIntervalMinutes, base.SweepIntervalMinutes)
	result.SofficePath = pick(overlay.SofficePath, base.SofficePath)
	result.PdftoppmPath = pick(overlay.PdftoppmPath, base.PdftoppmPath)
	result.ChromePath = pick(overlay.ChromePath, base.ChromePath)
	result.NATSURL = pick(overlay.NATSURL, base.NATSURL)
	result.NATSSubject = pick(overlay.NATSSubject, base.NATSSubject)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pick(overlay.LogFormat, base.LogFormat)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.DownloadBrowser = base.DownloadBrowser || overlay.DownloadBrowser

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.RepeatColumns = mergeStringSlice(base.RepeatColumns, overlay.RepeatColumns)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledKinds = mergeStringSlice(base.DisabledKinds, overlay.DisabledKinds)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
