package manifest

import (
	"strings"
	"testing"
	"time"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	enriched := time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)
	in := &Manifest{
		Version:    "0.3.0",
		APIVersion: "2025-10",
		SourceShop: "src-shop.myshopify.com",
		CreatedAt:  time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		EnrichedAt: &enriched,
		Counts: map[string]int{
			"products": 120,
			"files":    31,
		},
	}

	if err := Write(dir, in); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out, err := Read(dir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if out.Version != in.Version || out.APIVersion != in.APIVersion || out.SourceShop != in.SourceShop {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("created-at mismatch: %v", out.CreatedAt)
	}
	if out.EnrichedAt == nil || !out.EnrichedAt.Equal(enriched) {
		t.Errorf("enriched-at mismatch: %v", out.EnrichedAt)
	}
	if out.Counts["products"] != 120 {
		t.Errorf("counts mismatch: %v", out.Counts)
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read(t.TempDir()); err == nil {
		t.Error("expected error for missing manifest")
	}
}

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		name    string
		dump    string
		tool    string
		wantErr string
	}{
		{"same version", "0.3.0", "0.3.0", ""},
		{"tool newer patch", "0.3.0", "0.3.4", ""},
		{"tool newer minor", "0.3.0", "0.4.0", ""},
		{"major mismatch", "1.0.0", "0.9.9", "major version mismatch"},
		{"tool older than dump", "0.4.0", "0.3.0", "upgrade"},
		{"invalid dump version", "not-a-version", "0.3.0", "invalid"},
		{"v prefix accepted", "v0.3.0", "0.3.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Version: tt.dump}
			err := m.CheckCompatible(tt.tool)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected compatible, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
