// Package manifest records dump-session metadata: which tool version wrote
// the dump, against which API version and source shop, and what it contains.
// The apply side reads it back to refuse dumps it cannot interpret.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
)

// Filename is the manifest's name inside a dump directory.
const Filename = "manifest.toml"

// Manifest describes one dump session.
type Manifest struct {
	Version    string     `toml:"version"`
	APIVersion string     `toml:"api-version"`
	SourceShop string     `toml:"source-shop"`
	CreatedAt  time.Time  `toml:"created-at"`
	EnrichedAt *time.Time `toml:"enriched-at,omitempty"`

	Counts map[string]int `toml:"counts,omitempty"`
}

// Write stores the manifest atomically in dir.
func Write(dir string, m *Manifest) error {
	tmp, err := os.CreateTemp(dir, ".manifest-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := toml.NewEncoder(tmp).Encode(m); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close manifest temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, Filename)); err != nil {
		return fmt.Errorf("failed to move manifest into place: %w", err)
	}
	return nil
}

// Read loads the manifest from dir.
func Read(dir string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(filepath.Join(dir, Filename), &m); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return &m, nil
}

// CheckCompatible reports whether a dump written by m.Version can be applied
// by toolVersion. Major versions must match, and the tool must be at least as
// new as the writer: an older tool may not know record families a newer one
// dumped.
func (m *Manifest) CheckCompatible(toolVersion string) error {
	dump := canonical(m.Version)
	tool := canonical(toolVersion)
	if !semver.IsValid(dump) {
		return fmt.Errorf("manifest has invalid tool version %q", m.Version)
	}
	if !semver.IsValid(tool) {
		return fmt.Errorf("invalid tool version %q", toolVersion)
	}

	if semver.Major(dump) != semver.Major(tool) {
		return fmt.Errorf("dump written by %s is incompatible with %s (major version mismatch)", m.Version, toolVersion)
	}
	if semver.Compare(tool, dump) < 0 {
		return fmt.Errorf("dump written by %s is newer than this tool (%s); upgrade to apply it", m.Version, toolVersion)
	}
	return nil
}

func canonical(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
