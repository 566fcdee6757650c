package apply

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/manifest"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
	"github.com/untoldecay/shopmirror/internal/ui"
)

// diffSampleSize bounds the missing-key sample kept per family.
const diffSampleSize = 5

// Diff compares a dump directory against the destination without mutating
// anything: per family, how many dumped records already have a destination
// match by natural key, and a sample of the keys that do not. Policies are
// fixed slots on every shop and shop metafields have no key, so neither
// appears.
func Diff(ctx context.Context, client *shopify.Client, dir string) ([]ui.FamilyDiff, error) {
	if _, err := manifest.Read(dir); err != nil {
		return nil, fmt.Errorf("not a dump directory: %w", err)
	}

	logger := client.Logger()
	logger.Info("building destination index", "shop", client.Domain)
	ix, err := index.Build(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to build destination index: %w", err)
	}

	var rows []ui.FamilyDiff

	products, err := dump.ReadAll[types.Product](filepath.Join(dir, "products.jsonl"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "products", products, func(p types.Product) (string, bool) {
		_, ok := ix.Product(p.Handle)
		return p.Handle, ok
	})
	var variants []ui.FamilyDiff
	for _, p := range products {
		variants = appendDiff(variants, "variants", p.Variants, func(v types.Variant) (string, bool) {
			_, ok := ix.Variant(p.Handle, v.SKU, v.Position)
			return index.VariantKey(p.Handle, v.SKU, v.Position), ok
		})
	}
	rows = append(rows, mergeDiffs("variants", variants)...)

	collections, err := dump.ReadAll[types.Collection](filepath.Join(dir, "collections.jsonl"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "collections", collections, func(c types.Collection) (string, bool) {
		_, ok := ix.Collection(c.Handle)
		return c.Handle, ok
	})

	pages, err := dump.ReadAll[types.Page](filepath.Join(dir, "pages.jsonl"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "pages", pages, func(pg types.Page) (string, bool) {
		_, ok := ix.Page(pg.Handle)
		return pg.Handle, ok
	})

	blogs, err := dump.ReadAll[types.Blog](filepath.Join(dir, "blogs.jsonl"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "blogs", blogs, func(b types.Blog) (string, bool) {
		_, ok := ix.Blog(b.Handle)
		return b.Handle, ok
	})

	articles, err := dump.ReadAll[types.Article](filepath.Join(dir, "articles.jsonl"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "articles", articles, func(a types.Article) (string, bool) {
		_, ok := ix.Article(a.BlogHandle, a.Handle)
		return index.ArticleKey(a.BlogHandle, a.Handle), ok
	})

	paths, err := filepath.Glob(filepath.Join(dir, "metaobjects-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list metaobject dumps: %w", err)
	}
	var metaobjects []types.Metaobject
	for _, path := range paths {
		recs, err := dump.ReadAll[types.Metaobject](path)
		if err != nil {
			return nil, err
		}
		metaobjects = append(metaobjects, recs...)
	}
	rows = appendDiff(rows, "metaobjects", metaobjects, func(m types.Metaobject) (string, bool) {
		_, ok := ix.Metaobject(m.Type, m.Handle)
		return index.MetaobjectKey(m.Type, m.Handle), ok
	})

	files, err := dump.ReadAll[types.File](filepath.Join(dir, "files.jsonl"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "files", files, func(f types.File) (string, bool) {
		name := f.Filename
		if name == "" {
			name = index.Filename(f.URL)
		}
		_, ok := ix.File(name)
		return name, ok
	})

	menus, err := dump.ReadJSON[[]types.Menu](filepath.Join(dir, "menus.json"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "menus", menus, func(m types.Menu) (string, bool) {
		_, ok := ix.Menu(m.Handle)
		return m.Handle, ok
	})

	redirects, err := dump.ReadJSON[[]types.Redirect](filepath.Join(dir, "redirects.json"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "redirects", redirects, func(r types.Redirect) (string, bool) {
		_, ok := ix.Redirect(r.Path)
		return r.Path, ok
	})

	discounts, err := dump.ReadJSON[[]types.Discount](filepath.Join(dir, "discounts.json"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "discounts", discounts, func(d types.Discount) (string, bool) {
		_, ok := ix.Discount(d.Kind, d.Title)
		return index.DiscountKey(d.Kind, d.Title), ok
	})

	markets, err := dump.ReadJSON[[]types.Market](filepath.Join(dir, "markets.json"))
	if err != nil {
		return nil, err
	}
	rows = appendDiff(rows, "markets", markets, func(m types.Market) (string, bool) {
		_, ok := ix.Market(m.Handle)
		return m.Handle, ok
	})

	return rows, nil
}

// appendDiff folds one family's records into a diff row. Families absent from
// the dump contribute no row at all, so a partial dump renders a short table
// instead of a wall of zeros.
func appendDiff[T any](rows []ui.FamilyDiff, family string, recs []T, probe func(T) (string, bool)) []ui.FamilyDiff {
	if len(recs) == 0 {
		return rows
	}
	row := ui.FamilyDiff{Family: family}
	for _, rec := range recs {
		key, ok := probe(rec)
		if ok {
			row.Present++
			continue
		}
		row.Missing++
		if len(row.Sample) < diffSampleSize {
			row.Sample = append(row.Sample, key)
		}
	}
	return append(rows, row)
}

// mergeDiffs collapses per-product variant rows into one family row.
func mergeDiffs(family string, rows []ui.FamilyDiff) []ui.FamilyDiff {
	if len(rows) == 0 {
		return nil
	}
	merged := ui.FamilyDiff{Family: family}
	for _, r := range rows {
		merged.Present += r.Present
		merged.Missing += r.Missing
		for _, s := range r.Sample {
			if len(merged.Sample) < diffSampleSize {
				merged.Sample = append(merged.Sample, s)
			}
		}
	}
	return []ui.FamilyDiff{merged}
}
