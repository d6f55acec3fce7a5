// Package config loads the mmvec command line configuration.
//
// Files are HuJSON (JSON with comments and trailing commas). Precedence,
// highest wins: defaults, global file, project file (or an explicit
// --config path), command line flags.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/mmvec/pkg/fs"
	"github.com/calvinalkan/mmvec/pkg/mmvec"
	"github.com/tailscale/hujson"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".mmvec.json"

var (
	// ErrInvalid wraps every parse or validation failure.
	ErrInvalid = errors.New("invalid config")

	// ErrNotFound is returned when an explicit config file does not exist.
	ErrNotFound = errors.New("config file not found")
)

// Config holds all configuration options.
//
//nolint:tagliatelle // snake_case for config file
type Config struct {
	// DataDir is where relative array paths are resolved.
	DataDir string `json:"data_dir"`

	// AccessPattern is advised for every opened array: none, random or sequential.
	AccessPattern string `json:"access_pattern,omitempty"`

	// CacheMaxCost bounds the number of memoised shell results.
	CacheMaxCost int64 `json:"cache_max_cost,omitempty"`

	// CacheCounters is the ristretto admission counter count; 0 derives it
	// from CacheMaxCost.
	CacheCounters int64 `json:"cache_counters,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // path to global config if loaded, empty otherwise
	Project string // path to project config if loaded, empty otherwise
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DataDir:       ".",
		AccessPattern: "none",
		CacheMaxCost:  4096,
		LogLevel:      "info",
	}
}

// GlobalPath returns $XDG_CONFIG_HOME/mmvec/config.json, falling back to
// ~/.config/mmvec/config.json. env entries win over the process environment.
// Returns "" if no home directory can be determined.
func GlobalPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok && after != "" {
			return filepath.Join(after, "mmvec", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mmvec", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "mmvec", "config.json")
	}

	return ""
}

// Load merges defaults, the global file, the project file and overrides.
// If explicitPath is non-empty it replaces the project file and must exist.
// Only non-zero override fields are applied.
func Load(fsys fs.FS, workDir, explicitPath string, overrides Config, env []string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	if global := GlobalPath(env); global != "" {
		globalCfg, loaded, err := loadFile(fsys, global, false)
		if err != nil {
			return Config{}, Sources{}, err
		}

		if loaded {
			sources.Global = global
			cfg = merge(cfg, globalCfg)
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if explicitPath != "" {
		projectPath = explicitPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	projectCfg, loaded, err := loadFile(fsys, projectPath, mustExist)
	if err != nil {
		return Config{}, Sources{}, err
	}

	if loaded {
		sources.Project = projectPath
		cfg = merge(cfg, projectCfg)
	}

	cfg = merge(cfg, overrides)

	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(workDir, cfg.DataDir)
	}

	validateErr := Validate(cfg)
	if validateErr != nil {
		return Config{}, Sources{}, validateErr
	}

	return cfg, sources, nil
}

func loadFile(fsys fs.FS, path string, mustExist bool) (Config, bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, parseErr := Parse(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%s: %w", path, parseErr)
	}

	return cfg, true, nil
}

// Parse decodes a HuJSON document. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalid, err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var cfg Config

	decodeErr := dec.Decode(&cfg)
	if decodeErr != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, decodeErr)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.AccessPattern != "" {
		base.AccessPattern = overlay.AccessPattern
	}

	if overlay.CacheMaxCost != 0 {
		base.CacheMaxCost = overlay.CacheMaxCost
	}

	if overlay.CacheCounters != 0 {
		base.CacheCounters = overlay.CacheCounters
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	return base
}

// Validate checks that every field holds a usable value.
func Validate(cfg Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("%w: data_dir cannot be empty", ErrInvalid)
	}

	if _, err := mmvec.ParseAccessPattern(cfg.AccessPattern); err != nil {
		return fmt.Errorf("%w: access_pattern: %w", ErrInvalid, err)
	}

	if cfg.CacheMaxCost <= 0 {
		return fmt.Errorf("%w: cache_max_cost must be positive, got %d", ErrInvalid, cfg.CacheMaxCost)
	}

	if cfg.CacheCounters < 0 {
		return fmt.Errorf("%w: cache_counters cannot be negative, got %d", ErrInvalid, cfg.CacheCounters)
	}

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}

	return nil
}

// Pattern returns the parsed access pattern. cfg must be valid.
func (c Config) Pattern() mmvec.AccessPattern {
	p, _ := mmvec.ParseAccessPattern(c.AccessPattern)

	return p
}

// Level returns the parsed log level. cfg must be valid.
func (c Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)

	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level

	if s == "" {
		return slog.LevelInfo, nil
	}

	err := l.UnmarshalText([]byte(s))
	if err != nil {
		return slog.LevelInfo, err
	}

	return l, nil
}

// Format returns cfg as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

// Template returns a commented default config file.
func Template() []byte {
	d := Default()

	return fmt.Appendf(nil, `{
  // Directory relative array paths are resolved against.
  "data_dir": %q,

  // Kernel read-ahead hint for every array: none, random or sequential.
  "access_pattern": %q,

  // Maximum number of memoised "sum" results in the shell.
  "cache_max_cost": %d,

  // debug, info, warn or error.
  "log_level": %q,
}
`, d.DataDir, d.AccessPattern, d.CacheMaxCost, d.LogLevel)
}

// WriteTemplate writes [Template] to path atomically, creating parent
// directories. An existing file is only replaced if force is set.
func WriteTemplate(fsys fs.FS, path string, force bool) error {
	exists, err := fsys.Exists(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if exists && !force {
		return fmt.Errorf("%s already exists: %w", path, os.ErrExist)
	}

	mkdirErr := fsys.MkdirAll(filepath.Dir(path), 0o750)
	if mkdirErr != nil {
		return fmt.Errorf("create config directory: %w", mkdirErr)
	}

	writeErr := fsys.WriteFileAtomic(path, Template())
	if writeErr != nil {
		return fmt.Errorf("write config %s: %w", path, writeErr)
	}

	return nil
}
