package apply

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/refs"
	"github.com/untoldecay/shopmirror/internal/types"
)

const metaobjectUpsertMutation = `mutation metaobjectUpsert($handle: MetaobjectHandleInput!, $metaobject: MetaobjectUpsertInput!) {
	metaobjectUpsert(handle: $handle, metaobject: $metaobject) {
		metaobject { id type handle }
		userErrors { field message code }
	}
}`

// pendingMetaobject is a record upserted with some reference fields left out
// because their targets did not exist yet. Metaobjects may reference each
// other, so later upserts in the same phase can make these resolvable.
type pendingMetaobject struct {
	rec        types.Metaobject
	unresolved []string
}

func (p *Pipeline) applyMetaobjects(ctx context.Context, st *Stats) error {
	paths, err := filepath.Glob(filepath.Join(p.Dir, "metaobjects-*.jsonl"))
	if err != nil {
		return fmt.Errorf("failed to list metaobject dumps: %w", err)
	}

	var records []types.Metaobject
	for _, path := range paths {
		recs, err := dump.ReadAll[types.Metaobject](path)
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}

	var mu sync.Mutex
	var pending []pendingMetaobject

	tasks := make([]task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, task{key: "metaobject " + index.MetaobjectKey(rec.Type, rec.Handle), run: func(ctx context.Context) (action, error) {
			act, unresolved, err := p.upsertMetaobject(ctx, rec)
			if err != nil {
				return "", err
			}
			if len(unresolved) > 0 {
				mu.Lock()
				pending = append(pending, pendingMetaobject{rec: rec, unresolved: unresolved})
				mu.Unlock()
			}
			return act, nil
		}})
	}
	p.runTasks(ctx, st, tasks)

	p.settleMetaobjects(ctx, st, pending)
	return nil
}

// settleMetaobjects re-upserts records whose skipped references have become
// resolvable, passing until a round makes no progress. Records already count
// in the stats; only new failures are recorded here.
func (p *Pipeline) settleMetaobjects(ctx context.Context, st *Stats, pending []pendingMetaobject) {
	for len(pending) > 0 {
		progress := false
		var next []pendingMetaobject

		for _, pm := range pending {
			if ctx.Err() != nil {
				return
			}
			if !p.anyResolvable(pm) {
				next = append(next, pm)
				continue
			}
			progress = true
			_, unresolved, err := p.upsertMetaobject(ctx, pm.rec)
			key := index.MetaobjectKey(pm.rec.Type, pm.rec.Handle)
			if err != nil {
				st.fail(key, err)
				p.logger.Error("record failed", "key", "metaobject "+key, "error", err)
				continue
			}
			if len(unresolved) > 0 {
				next = append(next, pendingMetaobject{rec: pm.rec, unresolved: unresolved})
			}
		}

		if !progress {
			break
		}
		pending = next
	}

	for _, pm := range pending {
		p.logger.Warn("metaobject references stay unresolved",
			"metaobject", index.MetaobjectKey(pm.rec.Type, pm.rec.Handle),
			"fields", pm.unresolved)
	}
}

func (p *Pipeline) anyResolvable(pm pendingMetaobject) bool {
	skipped := make(map[string]bool, len(pm.unresolved))
	for _, k := range pm.unresolved {
		skipped[k] = true
	}
	for _, f := range pm.rec.Fields {
		if !skipped[f.Key] {
			continue
		}
		if _, err := refs.Resolve(f, p.ix); err == nil {
			return true
		}
	}
	return false
}

// upsertMetaobject writes one record. Reference fields that do not resolve
// are left out rather than failing the record; their keys come back for the
// settle passes.
func (p *Pipeline) upsertMetaobject(ctx context.Context, rec types.Metaobject) (action, []string, error) {
	fields := make([]map[string]any, 0, len(rec.Fields))
	var unresolved []string
	for _, f := range rec.Fields {
		res, err := refs.Resolve(f, p.ix)
		if err != nil {
			if errors.Is(err, refs.ErrUnresolved) {
				p.logger.Warn("field skipped", "metaobject", index.MetaobjectKey(rec.Type, rec.Handle), "field", f.Key, "error", err)
				unresolved = append(unresolved, f.Key)
				continue
			}
			return "", nil, err
		}
		for _, d := range res.Dropped {
			p.logger.Warn("list entry dropped", "metaobject", index.MetaobjectKey(rec.Type, rec.Handle), "field", f.Key, "entry", d)
		}
		fields = append(fields, map[string]any{"key": f.Key, "value": res.Value})
	}

	metaobject := map[string]any{"fields": fields}
	if rec.Status != "" {
		metaobject["capabilities"] = map[string]any{
			"publishable": map[string]any{"status": rec.Status},
		}
	}

	_, existed := p.ix.Metaobject(rec.Type, rec.Handle)

	var out struct {
		Metaobject *struct {
			ID string `json:"id"`
		} `json:"metaobject"`
	}
	vars := map[string]any{
		"handle":     map[string]any{"type": rec.Type, "handle": rec.Handle},
		"metaobject": metaobject,
	}
	if err := p.mutate(ctx, metaobjectUpsertMutation, "metaobjectUpsert", vars, &out); err != nil {
		return "", nil, err
	}
	if out.Metaobject == nil || out.Metaobject.ID == "" {
		return "", nil, fmt.Errorf("no metaobject id returned")
	}
	p.ix.SetMetaobject(rec.Type, rec.Handle, out.Metaobject.ID)

	act := actCreated
	if existed {
		act = actUpdated
	}
	return act, unresolved, nil
}
