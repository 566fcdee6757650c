package dump

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"charm.land/log/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/untoldecay/shopmirror/internal/manifest"
	"github.com/untoldecay/shopmirror/internal/refs"
	"github.com/untoldecay/shopmirror/internal/types"
)

const maxEnrichLineBytes = 16 * 1024 * 1024

// enrichTargets lists the dump files carrying reference-typed fields and
// where those fields live inside each line. An empty path means the line
// itself is the field (shop metafields).
var enrichTargets = []struct {
	glob string
	path string
}{
	{"products.jsonl", "metafields"},
	{"collections.jsonl", "metafields"},
	{"pages.jsonl", "metafields"},
	{"blogs.jsonl", "metafields"},
	{"articles.jsonl", "metafields"},
	{"metaobjects-*.jsonl", "fields"},
	{"shop-metafields.jsonl", ""},
}

// Enrich back-fills natural-key annotations across a dump directory. List
// references cannot be resolved inline by the bulk API, so the pass builds
// identifier → natural-key maps from the dump files themselves and injects
// refList entries in place. Injection goes through gjson/sjson so existing
// keys, key order, and unknown fields are preserved byte-for-byte; running
// the pass twice leaves the files identical. Returns the number of fields
// annotated.
func Enrich(dir string, logger *log.Logger) (int, error) {
	src, err := LoadSource(dir)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, target := range enrichTargets {
		paths, err := filepath.Glob(filepath.Join(dir, target.glob))
		if err != nil {
			return changed, fmt.Errorf("failed to list %s: %w", target.glob, err)
		}
		for _, p := range paths {
			n, err := enrichJSONL(p, src, target.path)
			if err != nil {
				return changed, fmt.Errorf("failed to enrich %s: %w", filepath.Base(p), err)
			}
			if n > 0 {
				logger.Debug("enriched", "file", filepath.Base(p), "fields", n)
			}
			changed += n
		}
	}

	n, err := enrichMenus(filepath.Join(dir, "menus.json"), src)
	if err != nil {
		return changed, fmt.Errorf("failed to enrich menus.json: %w", err)
	}
	changed += n

	if m, err := manifest.Read(dir); err == nil {
		now := time.Now().UTC()
		m.EnrichedAt = &now
		if err := manifest.Write(dir, m); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// LoadSource builds the export-side ground truth from the dump files. Records
// without an id (hand-written dumps) simply contribute nothing.
func LoadSource(dir string) (*refs.Source, error) {
	src := refs.NewSource()

	products, err := ReadAll[types.Product](filepath.Join(dir, "products.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.ID != "" {
			src.Products[p.ID] = types.ProductRef{Handle: p.Handle}
		}
		for _, v := range p.Variants {
			if v.ID != "" {
				src.Variants[v.ID] = types.VariantRef{ProductHandle: p.Handle, SKU: v.SKU, Position: v.Position}
			}
		}
	}

	collections, err := ReadAll[types.Collection](filepath.Join(dir, "collections.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, c := range collections {
		if c.ID != "" {
			src.Collections[c.ID] = types.CollectionRef{Handle: c.Handle}
		}
	}

	pages, err := ReadAll[types.Page](filepath.Join(dir, "pages.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		if p.ID != "" {
			src.Pages[p.ID] = types.PageRef{Handle: p.Handle}
		}
	}

	blogs, err := ReadAll[types.Blog](filepath.Join(dir, "blogs.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, b := range blogs {
		if b.ID != "" {
			src.Blogs[b.ID] = types.BlogRef{Handle: b.Handle}
		}
	}

	articles, err := ReadAll[types.Article](filepath.Join(dir, "articles.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, a := range articles {
		if a.ID != "" {
			src.Articles[a.ID] = types.ArticleRef{BlogHandle: a.BlogHandle, ArticleHandle: a.Handle}
		}
	}

	files, err := ReadAll[types.File](filepath.Join(dir, "files.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.ID != "" {
			src.Files[f.ID] = types.FileRef{URL: f.URL, Filename: f.Filename}
		}
	}

	moFiles, err := filepath.Glob(filepath.Join(dir, "metaobjects-*.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, path := range moFiles {
		metaobjects, err := ReadAll[types.Metaobject](path)
		if err != nil {
			return nil, err
		}
		for _, m := range metaobjects {
			if m.ID != "" {
				src.Metaobjects[m.ID] = types.MetaobjectRef{Type: m.Type, Handle: m.Handle}
			}
		}
	}

	return src, nil
}

// enrichJSONL rewrites one dump file line by line. Untouched lines are copied
// verbatim; annotated lines change only by the injected key.
func enrichJSONL(path string, src *refs.Source, fieldsPath string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	changed := 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxEnrichLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) > 0 {
			out, n, err := enrichLine(line, src, fieldsPath)
			if err != nil {
				_ = tmp.Close()
				return 0, err
			}
			line = out
			changed += n
		}
		if _, err := w.Write(line); err != nil {
			_ = tmp.Close()
			return 0, err
		}
		if err := w.WriteByte('\n'); err != nil {
			_ = tmp.Close()
			return 0, err
		}
	}
	if err := sc.Err(); err != nil {
		_ = tmp.Close()
		return 0, err
	}

	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return 0, err
	}
	return changed, nil
}

// enrichLine annotates the reference-typed fields of one record in place.
func enrichLine(line []byte, src *refs.Source, fieldsPath string) ([]byte, int, error) {
	if fieldsPath == "" {
		return annotateAt(line, "", src)
	}

	arr := gjson.GetBytes(line, fieldsPath)
	if !arr.IsArray() {
		return line, 0, nil
	}
	n := len(arr.Array())

	changed := 0
	for i := 0; i < n; i++ {
		out, c, err := annotateAt(line, fieldsPath+"."+strconv.Itoa(i), src)
		if err != nil {
			return nil, changed, err
		}
		line = out
		changed += c
	}
	return line, changed, nil
}

// annotateAt runs the rewriter on the field at path ("" = whole line) and
// injects only the annotation key it produced.
func annotateAt(line []byte, path string, src *refs.Source) ([]byte, int, error) {
	raw := line
	if path != "" {
		el := gjson.GetBytes(line, path)
		if !el.Exists() {
			return line, 0, nil
		}
		raw = []byte(el.Raw)
	}

	var f types.Field
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, 0, fmt.Errorf("failed to parse field: %w", err)
	}
	if !refs.Annotate(&f, src) {
		return line, 0, nil
	}
	key, val := annotationKeyValue(&f)
	if key == "" {
		return line, 0, nil
	}
	if path != "" {
		key = path + "." + key
	}
	out, err := sjson.SetBytes(line, key, val)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to inject annotation: %w", err)
	}
	return out, 1, nil
}

// annotationKeyValue extracts the single annotation Annotate just attached.
func annotationKeyValue(f *types.Field) (string, any) {
	switch {
	case f.RefProduct != nil:
		return "refProduct", f.RefProduct
	case f.RefVariant != nil:
		return "refVariant", f.RefVariant
	case f.RefCollection != nil:
		return "refCollection", f.RefCollection
	case f.RefPage != nil:
		return "refPage", f.RefPage
	case f.RefBlog != nil:
		return "refBlog", f.RefBlog
	case f.RefArticle != nil:
		return "refArticle", f.RefArticle
	case f.RefMetaobject != nil:
		return "refMetaobject", f.RefMetaobject
	case f.RefFile != nil:
		return "refFile", f.RefFile
	case f.RefList != nil:
		return "refList", f.RefList
	}
	return "", nil
}

// enrichMenus resolves menu items the URL heuristic could not annotate at
// dump time, metaobject links above all, against the ground truth.
func enrichMenus(path string, src *refs.Source) (int, error) {
	menus, err := ReadJSON[[]types.Menu](path)
	if err != nil || len(menus) == 0 {
		return 0, err
	}
	changed := 0
	for i := range menus {
		changed += annotateMenuResources(menus[i].Items, src)
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, WriteJSON(path, menus)
}

func annotateMenuResources(items []types.MenuItem, src *refs.Source) int {
	n := 0
	for i := range items {
		it := &items[i]
		n += annotateMenuResources(it.Items, src)
		if it.ResourceID == "" || menuItemAnnotated(it) {
			continue
		}
		if ref, ok := src.Products[it.ResourceID]; ok {
			it.RefProduct = &ref
			n++
			continue
		}
		if ref, ok := src.Collections[it.ResourceID]; ok {
			it.RefCollection = &ref
			n++
			continue
		}
		if ref, ok := src.Pages[it.ResourceID]; ok {
			it.RefPage = &ref
			n++
			continue
		}
		if ref, ok := src.Blogs[it.ResourceID]; ok {
			it.RefBlog = &ref
			n++
			continue
		}
		if ref, ok := src.Articles[it.ResourceID]; ok {
			it.RefArticle = &ref
			n++
			continue
		}
		if ref, ok := src.Metaobjects[it.ResourceID]; ok {
			it.RefMetaobject = &ref
			n++
		}
	}
	return n
}

func menuItemAnnotated(it *types.MenuItem) bool {
	return it.RefProduct != nil || it.RefCollection != nil || it.RefPage != nil ||
		it.RefBlog != nil || it.RefArticle != nil || it.RefMetaobject != nil
}
