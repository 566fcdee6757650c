package dump

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/untoldecay/shopmirror/internal/types"
)

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	records := []types.Product{
		{Handle: "widget", Title: "Widget"},
		{Handle: "gadget", Title: "Gadget", Tags: []string{"new"}},
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if w.Count() != 2 {
		t.Errorf("expected count 2, got %d", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadAll[types.Product](path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 || got[0].Handle != "widget" || got[1].Tags[0] != "new" {
		t.Errorf("unexpected records: %+v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestWriterDiscardLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(types.Page{Handle: "about"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Discard()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file after discard, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty dir after discard, found %v", entries)
	}
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	got, err := ReadAll[types.Product](filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestWriteAndReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redirects.json")
	in := []types.Redirect{{Path: "/old", Target: "/new"}}

	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSON[[]types.Redirect](path)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/old" || got[0].Target != "/new" {
		t.Errorf("unexpected round trip: %+v", got)
	}

	missing, err := ReadJSON[[]types.Redirect](filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing file, got %v", missing)
	}
}

func TestAcquireLockExcludes(t *testing.T) {
	dir := t.TempDir()

	release, err := AcquireLock(dir, time.Second)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	if _, err := AcquireLock(dir, 50*time.Millisecond); err == nil {
		t.Fatal("expected second lock to fail while held")
	}

	release()
	release2, err := AcquireLock(dir, time.Second)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	release2()
}
