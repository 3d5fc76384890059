// Package storage persists the per-run JSON snapshots that merge-only
// reruns and the report stage read back.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Sentinel errors.
var (
	// ErrNotFound indicates the snapshot file does not exist.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt indicates the snapshot file could not be decoded.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// SaveJSON writes v to path as indented JSON using an atomic writer.
func SaveJSON(path string, v any) error {
	writer, err := NewAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		writer.Abort()
		return fmt.Errorf("save %s: %w", path, err)
	}

	if err := writer.Commit(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// LoadJSON decodes the JSON file at path into v. A missing file reports
// ErrNotFound so callers can fall back instead of failing the run.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("load %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("load %s: %w", path, ErrCorrupt)
	}
	return nil
}

// SaveRaw writes pre-encoded bytes (a raw API response) to path atomically.
func SaveRaw(path string, data []byte) error {
	writer, err := NewAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Abort()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := writer.Commit(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
