// Package refs rewrites cross-references between tenants. The export side
// annotates reference-typed field values with natural keys resolved from the
// dump's own ground truth; the apply side resolves those annotations against
// the destination index and rewrites the values to destination identifiers.
package refs

import (
	"encoding/json"

	"github.com/untoldecay/shopmirror/internal/types"
)

// List entry type tags used in refList annotations.
const (
	ListProduct    = "product"
	ListVariant    = "variant"
	ListCollection = "collection"
	ListPage       = "page"
	ListBlog       = "blog"
	ListArticle    = "article"
	ListMetaobject = "metaobject"
	ListFile       = "file"
)

// Source is the export-side ground truth: per family, the source tenant's
// opaque identifiers mapped to natural keys. It is assembled from the dump
// files themselves, so enrichment never talks to the network.
type Source struct {
	Products    map[string]types.ProductRef
	Variants    map[string]types.VariantRef
	Collections map[string]types.CollectionRef
	Pages       map[string]types.PageRef
	Blogs       map[string]types.BlogRef
	Articles    map[string]types.ArticleRef
	Metaobjects map[string]types.MetaobjectRef
	Files       map[string]types.FileRef
}

// NewSource returns an empty ground truth.
func NewSource() *Source {
	return &Source{
		Products:    make(map[string]types.ProductRef),
		Variants:    make(map[string]types.VariantRef),
		Collections: make(map[string]types.CollectionRef),
		Pages:       make(map[string]types.PageRef),
		Blogs:       make(map[string]types.BlogRef),
		Articles:    make(map[string]types.ArticleRef),
		Metaobjects: make(map[string]types.MetaobjectRef),
		Files:       make(map[string]types.FileRef),
	}
}

// Annotate fills the natural-key annotation on a reference-typed field when
// the ground truth can name the target. It only ever adds: a field that
// already carries an annotation is left untouched, and unresolvable values
// keep their raw identifier with no annotation. Running it twice over the
// same dump is a no-op the second time.
func Annotate(f *types.Field, src *Source) bool {
	if Annotated(f) {
		return false
	}
	switch {
	case f.IsListReference():
		return annotateList(f, src)
	case f.IsReference():
		return annotateSingle(f, src)
	}
	return false
}

// Annotated reports whether the field already carries any natural-key
// annotation.
func Annotated(f *types.Field) bool {
	return f.RefProduct != nil || f.RefVariant != nil || f.RefCollection != nil ||
		f.RefPage != nil || f.RefBlog != nil || f.RefArticle != nil ||
		f.RefMetaobject != nil || f.RefFile != nil || f.RefList != nil
}

func annotateSingle(f *types.Field, src *Source) bool {
	gid := f.Value
	if ref, ok := src.Products[gid]; ok {
		f.RefProduct = &ref
		return true
	}
	if ref, ok := src.Variants[gid]; ok {
		f.RefVariant = &ref
		return true
	}
	if ref, ok := src.Collections[gid]; ok {
		f.RefCollection = &ref
		return true
	}
	if ref, ok := src.Pages[gid]; ok {
		f.RefPage = &ref
		return true
	}
	if ref, ok := src.Blogs[gid]; ok {
		f.RefBlog = &ref
		return true
	}
	if ref, ok := src.Articles[gid]; ok {
		f.RefArticle = &ref
		return true
	}
	if ref, ok := src.Metaobjects[gid]; ok {
		f.RefMetaobject = &ref
		return true
	}
	if ref, ok := src.Files[gid]; ok {
		f.RefFile = &ref
		return true
	}
	return false
}

func annotateList(f *types.Field, src *Source) bool {
	var gids []string
	if err := json.Unmarshal([]byte(f.Value), &gids); err != nil {
		return false
	}

	var entries []types.ListRef
	for _, gid := range gids {
		if e, ok := src.listEntry(gid); ok {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return false
	}
	f.RefList = entries
	return true
}

// listEntry maps one identifier to a flat refList entry.
func (s *Source) listEntry(gid string) (types.ListRef, bool) {
	if ref, ok := s.Products[gid]; ok {
		return types.ListRef{Type: ListProduct, ProductHandle: ref.Handle}, true
	}
	if ref, ok := s.Variants[gid]; ok {
		return types.ListRef{Type: ListVariant, ProductHandle: ref.ProductHandle, SKU: ref.SKU, Position: ref.Position}, true
	}
	if ref, ok := s.Collections[gid]; ok {
		return types.ListRef{Type: ListCollection, CollectionHandle: ref.Handle}, true
	}
	if ref, ok := s.Pages[gid]; ok {
		return types.ListRef{Type: ListPage, PageHandle: ref.Handle}, true
	}
	if ref, ok := s.Blogs[gid]; ok {
		return types.ListRef{Type: ListBlog, BlogHandle: ref.Handle}, true
	}
	if ref, ok := s.Articles[gid]; ok {
		return types.ListRef{Type: ListArticle, BlogHandle: ref.BlogHandle, ArticleHandle: ref.ArticleHandle}, true
	}
	if ref, ok := s.Metaobjects[gid]; ok {
		return types.ListRef{Type: ListMetaobject, MetaobjectType: ref.Type, MetaobjectHandle: ref.Handle}, true
	}
	if ref, ok := s.Files[gid]; ok {
		return types.ListRef{Type: ListFile, URL: ref.URL, Filename: ref.Filename}, true
	}
	return types.ListRef{}, false
}
