// Package apply replays a dump directory against a destination tenant. The
// pipeline runs a fixed phase sequence, each phase keyed on natural keys so
// a re-run converges instead of duplicating, and reports per-phase stats
// instead of aborting on record failures.
package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"charm.land/log/v2"

	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/manifest"
	"github.com/untoldecay/shopmirror/internal/shopify"
)

const (
	// DefaultWorkers is the per-phase mutation fan-out.
	DefaultWorkers = 4

	// MaxWorkers caps the --workers flag; the platform's cost throttle makes
	// wider pools counterproductive.
	MaxWorkers = 8
)

// phase is one pipeline step. Phases in the rebuild group need the
// destination index refreshed first so they can resolve records the earlier
// phases created.
type phase struct {
	name    string
	rebuild bool
	run     func(ctx context.Context, st *Stats) error
}

// Pipeline drives one apply run against a destination tenant.
type Pipeline struct {
	Dir     string
	Client  *shopify.Client
	Workers int

	version string
	only    map[string]bool
	logger  *log.Logger
	ix      *index.Index
	files   *FileSync
	shopGID string
	report  *Report
}

// New sets up an apply of the dump in dir against the given tenant. The tool
// version is checked against the dump manifest before anything runs.
func New(client *shopify.Client, dir, version string) *Pipeline {
	return &Pipeline{
		Dir:     dir,
		Client:  client,
		Workers: DefaultWorkers,
		version: version,
		logger:  client.Logger(),
		report:  &Report{},
	}
}

func (p *Pipeline) phases() []phase {
	return []phase{
		{name: "files", run: p.applyFiles},
		{name: "products", run: p.applyProducts},
		{name: "collections", run: p.applyCollections},
		{name: "blogs", run: p.applyBlogs},
		{name: "articles", run: p.applyArticles},
		{name: "pages", run: p.applyPages},
		{name: "metaobjects", rebuild: true, run: p.applyMetaobjects},
		{name: "metafields", rebuild: true, run: p.applyMetafields},
		{name: "menus", rebuild: true, run: p.applyMenus},
		{name: "redirects", rebuild: true, run: p.applyRedirects},
		{name: "policies", rebuild: true, run: p.applyPolicies},
		{name: "discounts", rebuild: true, run: p.applyDiscounts},
		{name: "markets", rebuild: true, run: p.applyMarkets},
	}
}

// PhaseNames returns the valid --only values in pipeline order.
func (p *Pipeline) PhaseNames() []string {
	phases := p.phases()
	names := make([]string, len(phases))
	for i, ph := range phases {
		names[i] = ph.name
	}
	return names
}

// Only restricts the run to the named phases. Unknown names are rejected up
// front so a typo does not silently apply nothing.
func (p *Pipeline) Only(names []string) error {
	valid := make(map[string]bool)
	for _, ph := range p.phases() {
		valid[ph.name] = true
	}
	p.only = make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !valid[n] {
			return fmt.Errorf("unknown phase %q (valid: %s)", n, strings.Join(p.PhaseNames(), ", "))
		}
		p.only[n] = true
	}
	return nil
}

// Run executes the pipeline. Record failures are collected into the report,
// never raised; the returned error covers only run-level problems (index
// build, dump files unreadable, cancellation).
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if p.Workers < 1 {
		p.Workers = DefaultWorkers
	}
	if p.Workers > MaxWorkers {
		p.Workers = MaxWorkers
	}

	m, err := manifest.Read(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("not a dump directory: %w", err)
	}
	if err := m.CheckCompatible(p.version); err != nil {
		return nil, err
	}
	if m.EnrichedAt == nil {
		p.logger.Warn("dump was never enriched; cross-references will not resolve", "dir", p.Dir)
	}

	start := time.Now()
	p.logger.Info("building destination index", "shop", p.Client.Domain)
	ix, err := index.Build(ctx, p.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to build destination index: %w", err)
	}
	p.ix = ix
	p.files = NewFileSync(p.Client)

	// Phases created between the initial build and the rebuild group register
	// their records incrementally; the rebuild additionally picks up what the
	// platform derived on its own (default variants, generated publications).
	rebuilt := false
	needRebuild := false
	for _, ph := range p.phases() {
		if len(p.only) > 0 && !p.only[ph.name] {
			continue
		}
		if ph.rebuild && needRebuild && !rebuilt {
			p.logger.Info("rebuilding destination index")
			ix, err := index.Build(ctx, p.Client)
			if err != nil {
				return nil, fmt.Errorf("failed to rebuild destination index: %w", err)
			}
			p.ix = ix
			rebuilt = true
		}

		phStart := time.Now()
		p.logger.Info("applying", "phase", ph.name)
		st := &Stats{}
		if err := ph.run(ctx, st); err != nil {
			return nil, fmt.Errorf("phase %s: %w", ph.name, err)
		}
		if !ph.rebuild && st.Created > 0 {
			needRebuild = true
		}
		p.report.add(ph.name, *st)
		p.logger.Info("applied", "phase", ph.name,
			"total", st.Total, "created", st.Created, "updated", st.Updated,
			"skipped", st.Skipped, "failed", st.Failed,
			"took", time.Since(phStart).Round(time.Millisecond))
	}

	p.logger.Info("apply complete", "failed", p.report.FailedTotal(), "took", time.Since(start).Round(time.Second))
	return p.report, nil
}

// action classifies a completed record sync.
type action string

const (
	actCreated action = "created"
	actUpdated action = "updated"
	actSkipped action = "skipped"
)

// task is one prepared record mutation.
type task struct {
	key string
	run func(ctx context.Context) (action, error)
}

type taskResult struct {
	key string
	act action
	err error
}

// runTasks fans the phase's prepared mutations out over the worker pool and
// folds the results into the phase stats. Failures land in the stats bundle,
// not in an error: a phase never aborts the pipeline.
func (p *Pipeline) runTasks(ctx context.Context, st *Stats, tasks []task) {
	st.Total += len(tasks)
	if len(tasks) == 0 {
		return
	}

	workCh := make(chan task, len(tasks))
	resultCh := make(chan taskResult, len(tasks))

	var wg sync.WaitGroup
	for range p.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- taskResult{key: t.key, err: err}
					continue
				}
				act, err := t.run(ctx)
				resultCh <- taskResult{key: t.key, act: act, err: err}
			}
		}()
	}

	for _, t := range tasks {
		workCh <- t
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		switch {
		case r.err != nil:
			st.fail(r.key, r.err)
			p.logger.Error("record failed", "key", r.key, "error", r.err)
		case r.act == actCreated:
			st.Created++
		case r.act == actUpdated:
			st.Updated++
		default:
			st.Skipped++
		}
	}
}

// mutate runs one mutation and decodes its root payload into out, folding
// platform userErrors into the returned error.
func (p *Pipeline) mutate(ctx context.Context, mutation, root string, vars map[string]any, out any) error {
	return execMutation(ctx, p.Client, mutation, root, vars, out)
}

func execMutation(ctx context.Context, client *shopify.Client, mutation, root string, vars map[string]any, out any) error {
	data, err := client.Execute(ctx, mutation, vars)
	if err != nil {
		return err
	}
	var payloads map[string]json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", root, err)
	}
	raw, ok := payloads[root]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%s returned no payload", root)
	}
	var env struct {
		UserErrors shopify.UserErrors `json:"userErrors"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", root, err)
	}
	if err := env.UserErrors.Err(); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", root, err)
		}
	}
	return nil
}

// shopID resolves and caches the destination shop's GID, the owner of
// shop-level metafields.
func (p *Pipeline) shopID(ctx context.Context) (string, error) {
	if p.shopGID != "" {
		return p.shopGID, nil
	}
	data, err := p.Client.Execute(ctx, `{ shop { id } }`, nil)
	if err != nil {
		return "", fmt.Errorf("failed to resolve shop id: %w", err)
	}
	var resp struct {
		Shop struct {
			ID string `json:"id"`
		} `json:"shop"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse shop id: %w", err)
	}
	p.shopGID = resp.Shop.ID
	return p.shopGID, nil
}
