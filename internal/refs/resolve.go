package refs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

// ErrUnresolved marks a reference field whose target does not exist in the
// destination. The apply pipeline skips such fields instead of writing a
// dangling source identifier.
var ErrUnresolved = errors.New("reference does not resolve in destination")

// Result is a rewritten field value. Dropped lists the refList entries that
// did not resolve and were left out of the rebuilt list, for the caller to
// log.
type Result struct {
	Value   string
	Dropped []string
}

// Resolve rewrites a field value for the destination tenant. Non-reference
// fields pass through unchanged. Reference fields are rewritten from their
// annotation; taxonomy identifiers, which are global across tenants, pass
// through without one. Anything else without a usable annotation returns
// ErrUnresolved.
func Resolve(f types.Field, ix *index.Index) (Result, error) {
	switch {
	case f.IsListReference():
		return resolveList(f, ix)
	case f.IsReference():
		return resolveSingle(f, ix)
	default:
		return Result{Value: f.Value}, nil
	}
}

func resolveSingle(f types.Field, ix *index.Index) (Result, error) {
	switch {
	case f.RefProduct != nil:
		if gid, ok := ix.Product(f.RefProduct.Handle); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: product %q", ErrUnresolved, f.RefProduct.Handle)
	case f.RefVariant != nil:
		r := f.RefVariant
		if gid, ok := ix.Variant(r.ProductHandle, r.SKU, r.Position); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: variant %s", ErrUnresolved, index.VariantKey(r.ProductHandle, r.SKU, r.Position))
	case f.RefCollection != nil:
		if gid, ok := ix.Collection(f.RefCollection.Handle); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: collection %q", ErrUnresolved, f.RefCollection.Handle)
	case f.RefPage != nil:
		if gid, ok := ix.Page(f.RefPage.Handle); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: page %q", ErrUnresolved, f.RefPage.Handle)
	case f.RefBlog != nil:
		if gid, ok := ix.Blog(f.RefBlog.Handle); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: blog %q", ErrUnresolved, f.RefBlog.Handle)
	case f.RefArticle != nil:
		r := f.RefArticle
		if gid, ok := ix.Article(r.BlogHandle, r.ArticleHandle); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: article %s", ErrUnresolved, index.ArticleKey(r.BlogHandle, r.ArticleHandle))
	case f.RefMetaobject != nil:
		r := f.RefMetaobject
		if gid, ok := ix.Metaobject(r.Type, r.Handle); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: metaobject %s", ErrUnresolved, index.MetaobjectKey(r.Type, r.Handle))
	case f.RefFile != nil:
		name := f.RefFile.Filename
		if name == "" {
			name = index.Filename(f.RefFile.URL)
		}
		if gid, ok := ix.File(name); ok {
			return Result{Value: gid}, nil
		}
		return Result{}, fmt.Errorf("%w: file %q", ErrUnresolved, name)
	}

	// No annotation. Taxonomy identifiers are shared platform data and carry
	// across tenants verbatim.
	if gid, ok := shopify.ParseGID(f.Value); ok && portableKind(gid.Kind) {
		return Result{Value: f.Value}, nil
	}
	return Result{}, fmt.Errorf("%w: %s has no annotation", ErrUnresolved, fieldName(f))
}

func resolveList(f types.Field, ix *index.Index) (Result, error) {
	if f.RefList == nil {
		if allPortable(f.Value) {
			return Result{Value: f.Value}, nil
		}
		return Result{}, fmt.Errorf("%w: %s has no annotation", ErrUnresolved, fieldName(f))
	}

	gids := make([]string, 0, len(f.RefList))
	var dropped []string
	for _, e := range f.RefList {
		gid, ok := resolveListEntry(e, ix)
		if !ok {
			dropped = append(dropped, describeEntry(e))
			continue
		}
		gids = append(gids, gid)
	}
	if len(gids) == 0 {
		return Result{Dropped: dropped}, fmt.Errorf("%w: no entries of %s resolve", ErrUnresolved, fieldName(f))
	}

	b, err := json.Marshal(gids)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode list value: %w", err)
	}
	return Result{Value: string(b), Dropped: dropped}, nil
}

func resolveListEntry(e types.ListRef, ix *index.Index) (string, bool) {
	switch e.Type {
	case ListProduct:
		return ix.Product(e.ProductHandle)
	case ListVariant:
		return ix.Variant(e.ProductHandle, e.SKU, e.Position)
	case ListCollection:
		return ix.Collection(e.CollectionHandle)
	case ListPage:
		return ix.Page(e.PageHandle)
	case ListBlog:
		return ix.Blog(e.BlogHandle)
	case ListArticle:
		return ix.Article(e.BlogHandle, e.ArticleHandle)
	case ListMetaobject:
		return ix.Metaobject(e.MetaobjectType, e.MetaobjectHandle)
	case ListFile:
		name := e.Filename
		if name == "" {
			name = index.Filename(e.URL)
		}
		return ix.File(name)
	}
	return "", false
}

func describeEntry(e types.ListRef) string {
	switch e.Type {
	case ListProduct:
		return "product " + e.ProductHandle
	case ListVariant:
		return "variant " + index.VariantKey(e.ProductHandle, e.SKU, e.Position)
	case ListCollection:
		return "collection " + e.CollectionHandle
	case ListPage:
		return "page " + e.PageHandle
	case ListBlog:
		return "blog " + e.BlogHandle
	case ListArticle:
		return "article " + index.ArticleKey(e.BlogHandle, e.ArticleHandle)
	case ListMetaobject:
		return "metaobject " + index.MetaobjectKey(e.MetaobjectType, e.MetaobjectHandle)
	case ListFile:
		return "file " + e.Filename
	}
	return "unknown entry"
}

// portableKind reports whether a GID kind is shared platform data rather
// than tenant-local.
func portableKind(kind string) bool {
	return strings.HasPrefix(kind, "Taxonomy")
}

func allPortable(value string) bool {
	var gids []string
	if err := json.Unmarshal([]byte(value), &gids); err != nil || len(gids) == 0 {
		return false
	}
	for _, g := range gids {
		gid, ok := shopify.ParseGID(g)
		if !ok || !portableKind(gid.Kind) {
			return false
		}
	}
	return true
}

func fieldName(f types.Field) string {
	if f.Namespace != "" {
		return f.Namespace + "." + f.Key
	}
	return f.Key
}
