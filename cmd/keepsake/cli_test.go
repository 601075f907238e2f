package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/ops"
)

const seedYAML = `
contributors:
  - id: 1
    name: Ada
    email: ada@x.com
    capsule_ids: [1]
capsules:
  - id: 1
    contributor_id: 1
    name: Summer
    description: beach week
    time_created: 2024-06-01T00:00:00Z
    time_open: 2030-07-01T00:00:00Z
    time_until_changed: 2024-06-08T00:00:00Z
    item_ids: [1, 2]
    version: 3
  - id: 9
    contributor_id: 42
    name: orphan
    time_open: 2030-07-01T00:00:00Z
items:
  - id: 1
    capsule_id: 1
    type: photo
    version: 1
  - id: 2
    capsule_id: 1
    type: letter
    version: 2
`

// writeSeed creates a seed directory holding seedYAML.
func writeSeed(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "seed")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seedYAML), 0600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return dir
}

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(cfg)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"keepsake"}, args...))
	return out.String(), err
}

func TestCLICheck(t *testing.T) {
	dir := writeSeed(t)

	out, err := runApp(t, config.DefaultConfig(), "check", "--seed-dir", dir)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	var report CheckOutput
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if !report.OK {
		t.Error("expected ok=true")
	}
	if report.Contributors != 1 || report.Capsules != 1 || report.Items != 2 {
		t.Errorf("counts = %d/%d/%d, want 1/1/2", report.Contributors, report.Capsules, report.Items)
	}
	if len(report.DroppedCapsules) != 1 || report.DroppedCapsules[0] != 9 {
		t.Errorf("dropped_capsules = %v, want [9]", report.DroppedCapsules)
	}
}

func TestCLICheck_SeedFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SeedDir = writeSeed(t)

	out, err := runApp(t, cfg, "check")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, `"ok": true`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCLIExport_RoundTrip(t *testing.T) {
	dir := writeSeed(t)
	dbPath := filepath.Join(t.TempDir(), "snap.db")

	out, err := runApp(t, config.DefaultConfig(), "export", "--seed-dir", dir, "--out", dbPath, "--format", "sqlite")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var exported ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if exported.Format != ops.FormatSQLite {
		t.Errorf("format = %q, want sqlite", exported.Format)
	}
	if exported.Items != 2 {
		t.Errorf("items = %d, want 2", exported.Items)
	}

	jsonDir := filepath.Join(t.TempDir(), "json")
	if _, err := runApp(t, config.DefaultConfig(), "export", "--seed-db", dbPath, "--out", jsonDir); err != nil {
		t.Fatalf("export from sqlite failed: %v", err)
	}

	out, err = runApp(t, config.DefaultConfig(), "check", "--seed-dir", jsonDir)
	if err != nil {
		t.Fatalf("check of exported seed failed: %v", err)
	}
	var report CheckOutput
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if report.Capsules != 1 || report.Items != 2 || len(report.DroppedCapsules) != 0 {
		t.Errorf("round trip report = %+v", report.LoadReport)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	dir := writeSeed(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "check without seed", args: []string{"check"}, wantErr: "INVALID_REQUEST"},
		{name: "export without out", args: []string{"export", "--seed-dir", dir}, wantErr: "--out is required"},
		{name: "export bad format", args: []string{"export", "--seed-dir", dir, "--out", t.TempDir(), "--format", "xml"}, wantErr: "unknown export format"},
		{name: "missing seed dir", args: []string{"check", "--seed-dir", filepath.Join(dir, "nope")}, wantErr: "failed to read seed"},
		{name: "bad log level", args: []string{"check", "--seed-dir", dir, "--log-level", "loud"}, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, config.DefaultConfig(), tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", logger.GetLevel())
	}
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output: %q", buf.String())
	}

	logger, err = newLogger(io.Discard, "")
	if err != nil {
		t.Fatalf("newLogger default: %v", err)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("default level = %v, want info", logger.GetLevel())
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"keepsake"}, expected: false},
		{name: "serve command", args: []string{"keepsake", "serve"}, expected: true},
		{name: "mcp command", args: []string{"keepsake", "mcp"}, expected: true},
		{name: "check command", args: []string{"keepsake", "check"}, expected: true},
		{name: "help flag", args: []string{"keepsake", "--help"}, expected: true},
		{name: "short version flag", args: []string{"keepsake", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"keepsake", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{args: []string{"keepsake"}, expected: false},
		{args: []string{"keepsake", "help"}, expected: true},
		{args: []string{"keepsake", "-h"}, expected: true},
		{args: []string{"keepsake", "--version"}, expected: true},
		{args: []string{"keepsake", "serve"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
