package apply

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/refs"
	"github.com/untoldecay/shopmirror/internal/types"
)

// metafieldsSetBatch is the platform's per-call input cap.
const metafieldsSetBatch = 25

const metafieldsSetMutation = `mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
	metafieldsSet(metafields: $metafields) {
		metafields { id }
		userErrors { field message code }
	}
}`

// metafieldInput is one resolved MetafieldsSetInput plus the owner key for
// error reporting.
type metafieldInput struct {
	owner string
	input map[string]any
}

// applyMetafields writes every dumped metafield against its destination
// owner. Owners come first in the pipeline, so by this phase each one either
// exists in the index or its metafields are skipped. Values are batched
// through metafieldsSet; batching is the latency lever here, so batches run
// in order rather than through the pool.
func (p *Pipeline) applyMetafields(ctx context.Context, st *Stats) error {
	inputs, err := p.collectMetafields(ctx, st)
	if err != nil {
		return err
	}
	st.Total += len(inputs)

	for start := 0; start < len(inputs); start += metafieldsSetBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+metafieldsSetBatch, len(inputs))
		batch := inputs[start:end]

		vars := make([]map[string]any, 0, len(batch))
		for _, in := range batch {
			vars = append(vars, in.input)
		}
		err := p.mutate(ctx, metafieldsSetMutation, "metafieldsSet", map[string]any{"metafields": vars}, nil)
		if err != nil {
			st.Failed += len(batch)
			if len(st.Errors) < maxErrorSample {
				st.Errors = append(st.Errors, fmt.Sprintf("%s (+%d more): %v", batch[0].owner, len(batch)-1, err))
			}
			p.logger.Error("metafield batch failed", "first", batch[0].owner, "size", len(batch), "error", err)
			continue
		}
		// metafieldsSet is an upsert with no created/updated signal;
		// successes count as updates.
		st.Updated += len(batch)
	}
	return nil
}

func (p *Pipeline) collectMetafields(ctx context.Context, st *Stats) ([]metafieldInput, error) {
	var inputs []metafieldInput

	add := func(ownerKey, ownerGID string, fields []types.Field) {
		for _, f := range fields {
			res, err := refs.Resolve(f, p.ix)
			if err != nil {
				if errors.Is(err, refs.ErrUnresolved) {
					st.Total++
					st.Skipped++
					p.logger.Warn("field skipped", "owner", ownerKey, "field", f.Namespace+"."+f.Key, "error", err)
					continue
				}
				p.logger.Error("field failed", "owner", ownerKey, "field", f.Namespace+"."+f.Key, "error", err)
				st.Total++
				st.fail(ownerKey+" "+f.Namespace+"."+f.Key, err)
				continue
			}
			for _, d := range res.Dropped {
				p.logger.Warn("list entry dropped", "owner", ownerKey, "field", f.Namespace+"."+f.Key, "entry", d)
			}
			inputs = append(inputs, metafieldInput{
				owner: ownerKey + " " + f.Namespace + "." + f.Key,
				input: map[string]any{
					"ownerId":   ownerGID,
					"namespace": f.Namespace,
					"key":       f.Key,
					"type":      f.Type,
					"value":     res.Value,
				},
			})
		}
	}

	skipOwner := func(ownerKey string, fields []types.Field) {
		if len(fields) == 0 {
			return
		}
		st.Total += len(fields)
		st.Skipped += len(fields)
		p.logger.Warn("owner not in destination; metafields skipped", "owner", ownerKey, "fields", len(fields))
	}

	products, err := dump.ReadAll[types.Product](filepath.Join(p.Dir, "products.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, rec := range products {
		if gid, ok := p.ix.Product(rec.Handle); ok {
			add("product "+rec.Handle, gid, rec.Metafields)
		} else {
			skipOwner("product "+rec.Handle, rec.Metafields)
		}
	}

	collections, err := dump.ReadAll[types.Collection](filepath.Join(p.Dir, "collections.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, rec := range collections {
		if gid, ok := p.ix.Collection(rec.Handle); ok {
			add("collection "+rec.Handle, gid, rec.Metafields)
		} else {
			skipOwner("collection "+rec.Handle, rec.Metafields)
		}
	}

	pages, err := dump.ReadAll[types.Page](filepath.Join(p.Dir, "pages.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, rec := range pages {
		if gid, ok := p.ix.Page(rec.Handle); ok {
			add("page "+rec.Handle, gid, rec.Metafields)
		} else {
			skipOwner("page "+rec.Handle, rec.Metafields)
		}
	}

	blogs, err := dump.ReadAll[types.Blog](filepath.Join(p.Dir, "blogs.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, rec := range blogs {
		if gid, ok := p.ix.Blog(rec.Handle); ok {
			add("blog "+rec.Handle, gid, rec.Metafields)
		} else {
			skipOwner("blog "+rec.Handle, rec.Metafields)
		}
	}

	articles, err := dump.ReadAll[types.Article](filepath.Join(p.Dir, "articles.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, rec := range articles {
		key := rec.BlogHandle + "/" + rec.Handle
		if gid, ok := p.ix.Article(rec.BlogHandle, rec.Handle); ok {
			add("article "+key, gid, rec.Metafields)
		} else {
			skipOwner("article "+key, rec.Metafields)
		}
	}

	shopFields, err := dump.ReadAll[types.Field](filepath.Join(p.Dir, "shop-metafields.jsonl"))
	if err != nil {
		return nil, err
	}
	if len(shopFields) > 0 {
		shopGID, err := p.shopID(ctx)
		if err != nil {
			return nil, err
		}
		add("shop", shopGID, shopFields)
	}

	return inputs, nil
}
