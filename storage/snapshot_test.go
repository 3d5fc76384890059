package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")

	in := sample{Name: "run", Count: 3}
	if err := SaveJSON(path, in); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}

	var out sample
	if err := LoadJSON(path, &out); err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}
	if out != in {
		t.Errorf("LoadJSON() = %+v, want %+v", out, in)
	}
}

func TestLoadJSONNotFound(t *testing.T) {
	var out sample
	err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadJSON() error = %v, want ErrNotFound", err)
	}
}

func TestLoadJSONCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	var out sample
	err := LoadJSON(path, &out)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("LoadJSON() error = %v, want ErrCorrupt", err)
	}
}

func TestAtomicWriterCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	w, err := NewAtomicWriter(path)
	if err != nil {
		t.Fatalf("NewAtomicWriter() error = %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Target must not exist before Commit.
	if _, err := os.Stat(path); err == nil {
		t.Error("target exists before Commit")
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("target = %q, want %q", data, "hello")
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries after Commit, want 1", len(entries))
	}
}

func TestAtomicWriterAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	w, err := NewAtomicWriter(path)
	if err != nil {
		t.Fatalf("NewAtomicWriter() error = %v", err)
	}
	w.Write([]byte("discarded"))
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}

	if _, err := os.Stat(path); err == nil {
		t.Error("target exists after Abort")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dir has %d entries after Abort, want 0", len(entries))
	}
}
