// Package shopmirror provides a minimal public API for driving storefront
// duplication programmatically.
//
// Most integrations should shell out to the shopmirror binary; this package
// exports only the essential types and entry points for Go programs that
// want to embed a dump/apply run: the client, the dump session, the
// enrichment pass, and the apply pipeline.
package shopmirror

import (
	"context"
	"io"

	log "charm.land/log/v2"

	"github.com/untoldecay/shopmirror/internal/apply"
	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/logging"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
	"github.com/untoldecay/shopmirror/internal/ui"
)

// Version is stamped into dump manifests and checked against them on apply.
// Dumps and tools must agree on the major version.
const Version = "0.1.0"

// Client is an admin API client bound to one tenant.
type Client = shopify.Client

// NewClient builds a client for the tenant at domain, authenticating with
// an admin token, pinned to the given API version (e.g. "2025-10").
func NewClient(domain, token, version string) *Client {
	return shopify.NewClient(domain, token, version)
}

// NewLogger builds a structured logger for the clients to carry. Level is
// one of debug, info, warn, error; format is pretty or structured.
func NewLogger(w io.Writer, level, format string) (*log.Logger, error) {
	return logging.New(w, logging.Options{Level: level, Format: format})
}

// Session drives one dump run against a source tenant.
type Session = dump.Session

// NewSession sets up a dump of the tenant behind client into dir.
func NewSession(client *Client, dir string) *Session {
	return dump.NewSession(client, dir, Version)
}

// Enrich back-fills natural-key annotations across a dump directory and
// returns the number of fields annotated. The dump session runs this
// automatically; call it directly to repair an interrupted dump.
func Enrich(dir string, logger *log.Logger) (int, error) {
	return dump.Enrich(dir, logger)
}

// Pipeline drives one apply run against a destination tenant.
type Pipeline = apply.Pipeline

// Report collects per-phase outcomes across an apply run.
type Report = apply.Report

// NewPipeline sets up an apply of the dump in dir against the tenant
// behind client.
func NewPipeline(client *Client, dir string) *Pipeline {
	return apply.New(client, dir, Version)
}

// Definitions is a tenant's metaobject and metafield definition schema.
type Definitions = types.Definitions

// DumpDefinitions reads the tenant's definition schema and writes it to
// path as JSON.
func DumpDefinitions(ctx context.Context, client *Client, path string) (*Definitions, error) {
	return dump.DumpDefinitions(ctx, client, path)
}

// ApplyDefinitions creates the definitions the destination tenant is
// missing from the dump in dir. Existing definitions are never modified.
func ApplyDefinitions(ctx context.Context, client *Client, dir string) (*Report, error) {
	return apply.ApplyDefinitions(ctx, client, dir)
}

// DropStats counts one file-library drop.
type DropStats = apply.DropStats

// DropFiles deletes the tenant's entire file library. There is no
// confirmation at this layer; the caller has already decided.
func DropFiles(ctx context.Context, client *Client) (*DropStats, error) {
	return apply.DropFiles(ctx, client)
}

// FamilyDiff is one record family's dump-versus-destination comparison.
type FamilyDiff = ui.FamilyDiff

// Diff compares the dump in dir against the destination tenant without
// mutating anything.
func Diff(ctx context.Context, client *Client, dir string) ([]FamilyDiff, error) {
	return apply.Diff(ctx, client, dir)
}

// Index is a destination tenant's natural-key to id view.
type Index = index.Index

// BuildIndex pages the destination's records into a fresh index. The apply
// pipeline builds its own; this entry point serves read-only tooling.
func BuildIndex(ctx context.Context, client *Client) (*Index, error) {
	return index.Build(ctx, client)
}
