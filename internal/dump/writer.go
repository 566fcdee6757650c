// Package dump exports a source tenant into a directory of portable
// artifacts: one JSONL file per record family (products, collections, pages,
// blogs, articles, files, shop metafields, metaobjects per type), single
// JSON documents for the content families (menus, redirects, policies,
// discounts, markets) and definitions, plus a TOML manifest. A dump closes
// with the enrichment pass, which back-fills list-reference annotations from
// the dump's own ground truth.
package dump

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Writer appends records to a JSONL dump file. The file is written to a
// temp sibling and renamed into place on Close, so readers never observe a
// half-written dump.
type Writer struct {
	path string
	tmp  *os.File
	enc  *json.Encoder
	n    int
}

// NewWriter opens a writer for the given dump file path.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &Writer{path: path, tmp: tmp, enc: json.NewEncoder(tmp)}, nil
}

// Write appends one record as a JSON line.
func (w *Writer) Write(record any) error {
	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	w.n++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.n
}

// Close finishes the file and moves it into place.
func (w *Writer) Close() error {
	tmpPath := w.tmp.Name()
	if err := w.tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace dump file: %w", err)
	}
	if err := os.Chmod(w.path, 0o600); err != nil {
		return fmt.Errorf("failed to set dump file permissions: %w", err)
	}
	return nil
}

// Discard aborts the write and removes the temp file.
func (w *Writer) Discard() {
	tmpPath := w.tmp.Name()
	_ = w.tmp.Close()
	_ = os.Remove(tmpPath)
}

// WriteJSON stores a single JSON document (the content families and
// definitions) atomically with the same temp-and-rename dance.
func WriteJSON(path string, doc any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	return nil
}

// ReadAll decodes every line of a JSONL dump file. A missing file reads as
// an empty family: older dumps may not contain every family this tool knows.
func ReadAll[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []T
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec T
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadJSON decodes a single-document dump file. A missing file reads as the
// zero value.
func ReadJSON[T any](path string) (T, error) {
	var out T
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// AcquireLock takes the dump-directory lock shared by the dump, enrich,
// apply, and drop commands. The returned release function must be called
// when the run finishes.
func AcquireLock(dir string, timeout time.Duration) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".shopmirror.lock"))

	deadline := time.Now().Add(timeout)
	for {
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire dump lock: %w", err)
		}
		if ok {
			return func() { _ = lock.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("dump directory %s is locked by another run", dir)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
