// Package seed reads and writes bootstrap snapshots as JSON or YAML files.
package seed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/keepsake/internal/store"
)

// SnapshotFile is the file name WriteDir uses.
const SnapshotFile = "keepsake.json"

// LoadDir reads every .json, .yaml and .yml file in dir (not recursive), in
// name order, and concatenates their collections into one snapshot. Each file
// holds any subset of the contributors, capsules, items and merges keys.
func LoadDir(dir string) (*store.Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	snap := &store.Snapshot{}
	for _, name := range names {
		part, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		snap.Contributors = append(snap.Contributors, part.Contributors...)
		snap.Capsules = append(snap.Capsules, part.Capsules...)
		snap.Items = append(snap.Items, part.Items...)
		snap.Merges = append(snap.Merges, part.Merges...)
	}
	return snap, nil
}

// LoadFile decodes a single seed file, choosing the format from its extension.
// Unknown keys are rejected so typos do not silently drop data.
func LoadFile(path string) (*store.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	snap := &store.Snapshot{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(snap); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(snap); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return snap, nil
}

// WriteDir writes snap as a single JSON seed file in dir, creating dir if needed.
// The result loads back with LoadDir.
func WriteDir(dir string, snap store.Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create seed directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	path := filepath.Join(dir, SnapshotFile)
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}
