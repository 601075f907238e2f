package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.ModificationWindowHours != def.ModificationWindowHours {
		t.Fatalf("ModificationWindowHours = %d, want %d", cfg.ModificationWindowHours, def.ModificationWindowHours)
	}
	if cfg.DefaultPerPage != 10 || cfg.MaxPerPage != 100 {
		t.Fatalf("paging = %d/%d, want 10/100", cfg.DefaultPerPage, cfg.MaxPerPage)
	}
	if cfg.IdempotencyMaxEntries != 0 {
		t.Fatalf("IdempotencyMaxEntries = %d, want 0", cfg.IdempotencyMaxEntries)
	}
	if cfg.HTTPBind != "127.0.0.1" || cfg.HTTPPort != 8080 {
		t.Fatalf("listen = %s:%d, want 127.0.0.1:8080", cfg.HTTPBind, cfg.HTTPPort)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"modification_window_hours": 24, "max_per_page": 50, "log_level": "debug"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ModificationWindowHours != 24 {
		t.Fatalf("ModificationWindowHours = %d, want 24", cfg.ModificationWindowHours)
	}
	if cfg.MaxPerPage != 50 {
		t.Fatalf("MaxPerPage = %d, want 50", cfg.MaxPerPage)
	}
	if cfg.DefaultPerPage != 10 {
		t.Fatalf("DefaultPerPage = %d, want 10 (default)", cfg.DefaultPerPage)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"disabled_tools": ["capsule_merge", "contributor_delete"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "capsule_merge" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "capsule_merge")
	}
	if cfg.DisabledTools[1] != "contributor_delete" {
		t.Errorf("DisabledTools[1] = %q, want %q", cfg.DisabledTools[1], "contributor_delete")
	}
}

func TestModificationWindow(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ModificationWindow(); got != 7*24*time.Hour {
		t.Errorf("ModificationWindow() = %v, want one week", got)
	}

	cfg.ModificationWindowHours = 2
	if got := cfg.ModificationWindow(); got != 2*time.Hour {
		t.Errorf("ModificationWindow() = %v, want 2h", got)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"modification_window_hours": 48, "disabled_tools": ["capsule_merge"]}`)
	writeConfig(t, filepath.Join(repoRoot, ".keepsake"), `{"modification_window_hours": 12, "disabled_tools": ["item_delete"]}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.ModificationWindowHours != 12 {
		t.Errorf("ModificationWindowHours = %d, want 12 (repo override)", cfg.ModificationWindowHours)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_OnlyGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	writeConfig(t, globalDir, `{"http_port": 9090, "disabled_types": ["merge"]}`)

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if len(cfg.DisabledTypes) != 1 || cfg.DisabledTypes[0] != "merge" {
		t.Errorf("DisabledTypes = %v, want [merge]", cfg.DisabledTypes)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.ModificationWindowHours != 168 {
		t.Errorf("ModificationWindowHours = %d, want 168", cfg.ModificationWindowHours)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{MaxPerPage: 100, HTTPPort: 8080, SeedDir: "/seed"}
	overlay := &Config{MaxPerPage: 20, SeedDir: "  "}

	result := Merge(base, overlay)

	if result.MaxPerPage != 20 {
		t.Errorf("MaxPerPage = %d, want 20 (overlay)", result.MaxPerPage)
	}
	if result.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080 (base, overlay is zero)", result.HTTPPort)
	}
	if result.SeedDir != "/seed" {
		t.Errorf("SeedDir = %q, want /seed (blank overlay ignored)", result.SeedDir)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"capsule_merge", "item_delete"}}
	overlay := &Config{DisabledTools: []string{" item_delete ", "contributor_delete"}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}

	has := make(map[string]bool)
	for _, s := range result.DisabledTools {
		has[s] = true
	}
	for _, want := range []string{"capsule_merge", "item_delete", "contributor_delete"} {
		if !has[want] {
			t.Errorf("DisabledTools missing %q", want)
		}
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, filepath.Join(tmpDir, ".keepsake"), `{}`)
	configPath := filepath.Join(tmpDir, ".keepsake", "config.json")

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(subdir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
	if found := FindRepoConfig(tmpDir); found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}
