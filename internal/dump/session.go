package dump

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"charm.land/log/v2"

	"github.com/untoldecay/shopmirror/internal/manifest"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/shopify/bulk"
)

// family is one exportable record family: its artifact name and the writer
// that produces it.
type family struct {
	name string
	run  func(ctx context.Context, s *Session) (int, error)
}

// families in artifact order. The order is not load-bearing (bulk jobs are
// serialized by the runner anyway) but keeps logs and manifests predictable.
var families = []family{
	{"products", dumpProducts},
	{"collections", dumpCollections},
	{"pages", dumpPages},
	{"blogs", dumpBlogs},
	{"articles", dumpArticles},
	{"files", dumpFiles},
	{"shop-metafields", dumpShopMetafields},
	{"metaobjects", dumpMetaobjects},
	{"definitions", dumpDefinitions},
	{"menus", dumpMenus},
	{"redirects", dumpRedirects},
	{"policies", dumpPolicies},
	{"discounts", dumpDiscounts},
	{"markets", dumpMarkets},
}

// FamilyNames returns the valid --only values in artifact order.
func FamilyNames() []string {
	names := make([]string, len(families))
	for i, f := range families {
		names[i] = f.name
	}
	return names
}

// Session drives one dump run against a source tenant.
type Session struct {
	Dir         string
	Client      *shopify.Client
	Runner      *bulk.Runner
	Version     string
	LockTimeout time.Duration

	only   map[string]bool
	logger *log.Logger
	counts map[string]int
}

// NewSession sets up a dump of the given tenant into dir. Version is the
// tool version recorded in the manifest.
func NewSession(client *shopify.Client, dir, version string) *Session {
	return &Session{
		Dir:         dir,
		Client:      client,
		Runner:      bulk.NewRunner(client),
		Version:     version,
		LockTimeout: 30 * time.Second,
		logger:      client.Logger(),
		counts:      make(map[string]int),
	}
}

// Only restricts the run to the named families. Unknown names are rejected
// up front so a typo does not silently dump nothing.
func (s *Session) Only(names []string) error {
	valid := make(map[string]bool, len(families))
	for _, f := range families {
		valid[f.name] = true
	}
	s.only = make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !valid[n] {
			return fmt.Errorf("unknown family %q (valid: %s)", n, strings.Join(FamilyNames(), ", "))
		}
		s.only[n] = true
	}
	return nil
}

// Run dumps every selected family, runs the enrichment pass, and writes the
// manifest. The dump directory is locked for the duration. Family failures
// are collected, not fatal: the run finishes the remaining families and
// returns an error naming the losers.
func (s *Session) Run(ctx context.Context) error {
	release, err := AcquireLock(s.Dir, s.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	var failed []string
	for _, f := range families {
		if len(s.only) > 0 && !s.only[f.name] {
			continue
		}
		famStart := time.Now()
		s.logger.Info("dumping", "family", f.name)
		n, err := f.run(ctx, s)
		if err != nil {
			// A family failure (a terminal bulk job, usually) does not stop
			// the others; the operator redumps just the losers with --only.
			if ctx.Err() != nil {
				return err
			}
			s.logger.Error("family failed", "family", f.name, "error", err)
			failed = append(failed, f.name)
			continue
		}
		s.counts[f.name] = n
		s.logger.Info("dumped", "family", f.name, "records", n, "took", time.Since(famStart).Round(time.Millisecond))
	}

	if err := s.writeManifest(); err != nil {
		return err
	}

	annotated, err := Enrich(s.Dir, s.logger)
	if err != nil {
		return fmt.Errorf("enrichment failed: %w", err)
	}

	s.logger.Info("dump complete", "dir", s.Dir, "annotated", annotated, "took", time.Since(start).Round(time.Second))
	if len(failed) > 0 {
		return fmt.Errorf("failed to dump %s", strings.Join(failed, ", "))
	}
	return nil
}

// Counts returns per-family record counts from the completed run.
func (s *Session) Counts() map[string]int {
	return s.counts
}

// writeManifest records the run. A partial dump (--only) carries forward the
// counts of families it did not touch, provided the existing manifest belongs
// to the same source shop.
func (s *Session) writeManifest() error {
	m := &manifest.Manifest{
		Version:    s.Version,
		APIVersion: s.Client.Version,
		SourceShop: s.Client.Domain,
		CreatedAt:  time.Now().UTC(),
		Counts:     s.counts,
	}
	if len(s.only) > 0 {
		if prev, err := manifest.Read(s.Dir); err == nil && prev.SourceShop == s.Client.Domain {
			m.CreatedAt = prev.CreatedAt
			for k, v := range prev.Counts {
				if _, ok := s.counts[k]; !ok {
					s.counts[k] = v
				}
			}
		}
	}
	return manifest.Write(s.Dir, m)
}

func (s *Session) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// dumpBulk runs one bulk query, reassembles its flattened result, maps each
// record through convert, and writes the survivors to path. convert returning
// false skips the record.
func dumpBulk[Raw any, Rec any](ctx context.Context, s *Session, path, query string, childKeys map[string]string, convert func(Raw) (Rec, bool)) (int, error) {
	body, err := s.Runner.Run(ctx, query)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	w, err := NewWriter(path)
	if err != nil {
		return 0, err
	}

	st := bulk.NewStream(body, childKeys).WithLogger(s.logger)
	for st.Next() {
		var raw Raw
		if err := decodeRecord(st.Record(), &raw); err != nil {
			w.Discard()
			return 0, err
		}
		rec, ok := convert(raw)
		if !ok {
			continue
		}
		if err := w.Write(rec); err != nil {
			w.Discard()
			return 0, err
		}
	}
	if err := st.Err(); err != nil {
		w.Discard()
		return 0, err
	}
	if n := st.Skipped(); n > 0 {
		s.logger.Warn("skipped unparseable bulk lines", "file", filepath.Base(path), "lines", n)
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Count(), nil
}
