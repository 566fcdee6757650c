package shopmirror_test

import (
	"context"
	"io"
	"strings"
	"testing"

	shopmirror "github.com/untoldecay/shopmirror"
)

func TestNewClient(t *testing.T) {
	client := shopmirror.NewClient("demo.myshopify.com", "shpat_test", "2025-10")
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.Domain != "demo.myshopify.com" {
		t.Errorf("Domain = %q", client.Domain)
	}
	if !strings.Contains(client.Endpoint, "/admin/api/2025-10/") {
		t.Errorf("Endpoint = %q, want the pinned API version in the path", client.Endpoint)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := shopmirror.NewLogger(io.Discard, "debug", "structured")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	if _, err := shopmirror.NewLogger(io.Discard, "shouting", "pretty"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNewSessionAndPipeline(t *testing.T) {
	client := shopmirror.NewClient("demo.myshopify.com", "shpat_test", "2025-10")
	dir := t.TempDir()

	session := shopmirror.NewSession(client, dir)
	if session.Dir != dir {
		t.Errorf("session Dir = %q, want %q", session.Dir, dir)
	}

	pipe := shopmirror.NewPipeline(client, dir)
	if pipe.Dir != dir {
		t.Errorf("pipeline Dir = %q, want %q", pipe.Dir, dir)
	}
}

func TestEnrichEmptyDirectory(t *testing.T) {
	logger, err := shopmirror.NewLogger(io.Discard, "info", "pretty")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	n, err := shopmirror.Enrich(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if n != 0 {
		t.Errorf("annotated %d fields in an empty directory", n)
	}
}

func TestDiffRejectsNonDump(t *testing.T) {
	client := shopmirror.NewClient("demo.myshopify.com", "shpat_test", "2025-10")
	_, err := shopmirror.Diff(context.Background(), client, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "not a dump directory") {
		t.Fatalf("err = %v, want the dump guard", err)
	}
}
