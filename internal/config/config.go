package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// ModificationWindowHours is how long after creation a capsule and its items stay mutable.
	ModificationWindowHours int `json:"modification_window_hours"`

	// DefaultPerPage is used when a list request omits per_page.
	DefaultPerPage int `json:"default_per_page"`

	// MaxPerPage caps per_page on list requests.
	MaxPerPage int `json:"max_per_page"`

	// IdempotencyMaxEntries bounds the duplicate-submission ledger.
	// 0 keeps every fingerprint for the life of the process.
	IdempotencyMaxEntries int `json:"idempotency_max_entries,omitempty"`

	// HTTPBind and HTTPPort are the listen address of `keepsake serve`.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// SeedDir is a directory of JSON/YAML seed files loaded at startup.
	SeedDir string `json:"seed_dir,omitempty"`

	// SeedDB is a SQLite snapshot file loaded at startup. Ignored when SeedDir is set.
	SeedDB string `json:"seed_db,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// All tools are enabled by default. Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// All tools belonging to disabled types are excluded from registration.
	// Known types: "contributor", "capsule", "item", "merge".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ModificationWindowHours: 168,
		DefaultPerPage:          10,
		MaxPerPage:              100,
		HTTPBind:                "127.0.0.1",
		HTTPPort:                8080,
		LogLevel:                "info",
	}
}

// ModificationWindow returns the capsule modification window as a duration.
func (c *Config) ModificationWindow() time.Duration {
	return time.Duration(c.ModificationWindowHours) * time.Hour
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.keepsake.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.keepsake) and repo (.keepsake) directories.
// Repo config is found by walking upward from startDir to find the nearest .keepsake/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .keepsake/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".keepsake", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
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
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		ModificationWindowHours: pickInt(overlay.ModificationWindowHours, base.ModificationWindowHours),
		DefaultPerPage:          pickInt(overlay.DefaultPerPage, base.DefaultPerPage),
		MaxPerPage:              pickInt(overlay.MaxPerPage, base.MaxPerPage),
		IdempotencyMaxEntries:   pickInt(overlay.IdempotencyMaxEntries, base.IdempotencyMaxEntries),
		HTTPBind:                pickString(overlay.HTTPBind, base.HTTPBind),
		HTTPPort:                pickInt(overlay.HTTPPort, base.HTTPPort),
		LogLevel:                pickString(overlay.LogLevel, base.LogLevel),
		SeedDir:                 pickString(overlay.SeedDir, base.SeedDir),
		SeedDB:                  pickString(overlay.SeedDB, base.SeedDB),
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
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
