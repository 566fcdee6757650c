// Package index maintains the destination shop's natural-key catalog: the
// mapping from portable identifiers (handles, SKUs, filenames, paths) to the
// GIDs the destination assigned. The apply pipeline consults it to decide
// create-versus-update and to rewrite references; it is rebuilt between phase
// groups so later phases see records created by earlier ones.
package index

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// family is one natural-key → GID map, safe for the apply worker pool.
type family struct {
	mu sync.RWMutex
	m  map[string]string
}

func newFamily() *family {
	return &family{m: make(map[string]string)}
}

func (f *family) get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	gid, ok := f.m[key]
	return gid, ok
}

func (f *family) set(key, gid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = gid
}

// setIfAbsent keeps the first mapping for an ambiguous key.
func (f *family) setIfAbsent(key, gid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[key]; ok {
		return false
	}
	f.m[key] = gid
	return true
}

func (f *family) len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.m)
}

// Index holds the destination's natural-key catalog.
type Index struct {
	products     *family
	variants     *family
	collections  *family
	pages        *family
	blogs        *family
	articles     *family
	metaobjects  *family
	files        *family
	menus        *family
	redirects    *family
	publications *family
	markets      *family
	discounts    *family
}

// New returns an empty index.
func New() *Index {
	return &Index{
		products:     newFamily(),
		variants:     newFamily(),
		collections:  newFamily(),
		pages:        newFamily(),
		blogs:        newFamily(),
		articles:     newFamily(),
		metaobjects:  newFamily(),
		files:        newFamily(),
		menus:        newFamily(),
		redirects:    newFamily(),
		publications: newFamily(),
		markets:      newFamily(),
		discounts:    newFamily(),
	}
}

// VariantKey builds the composite variant key: "{productHandle}:{sku}", or
// "{productHandle}:pos{position}" when the shop leaves SKUs blank.
func VariantKey(productHandle, sku string, position int) string {
	if sku != "" {
		return productHandle + ":" + sku
	}
	return fmt.Sprintf("%s:pos%d", productHandle, position)
}

// ArticleKey builds the composite article key.
func ArticleKey(blogHandle, articleHandle string) string {
	return blogHandle + "/" + articleHandle
}

// MetaobjectKey builds the composite metaobject key.
func MetaobjectKey(typeName, handle string) string {
	return typeName + "/" + handle
}

// DiscountKey builds the composite discount key: discounts have no handle,
// so the kind plus title identifies them across tenants.
func DiscountKey(kind, title string) string {
	return kind + ":" + title
}

// Filename extracts a file's natural key from its CDN URL: the path basename
// with any query string dropped. CDN URLs embed version parameters that
// change between shops; the basename is what survives a copy.
func Filename(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p := u.Path
		if i := strings.LastIndexByte(p, '/'); i >= 0 {
			p = p[i+1:]
		}
		return p
	}
	s := rawURL
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func (ix *Index) Product(handle string) (string, bool) { return ix.products.get(handle) }
func (ix *Index) SetProduct(handle, gid string)        { ix.products.set(handle, gid) }

// Variant looks a variant up by SKU first, falling back to the position key
// when the SKU misses or is empty.
func (ix *Index) Variant(productHandle, sku string, position int) (string, bool) {
	if sku != "" {
		if gid, ok := ix.variants.get(productHandle + ":" + sku); ok {
			return gid, true
		}
	}
	if position > 0 {
		return ix.variants.get(VariantKey(productHandle, "", position))
	}
	return "", false
}

// SetVariant indexes a variant under both its keys: the SKU key when a SKU
// exists, and always the position key so SKU-less references still resolve.
func (ix *Index) SetVariant(productHandle, sku string, position int, gid string) {
	if sku != "" {
		ix.variants.set(productHandle+":"+sku, gid)
	}
	if position > 0 {
		ix.variants.set(VariantKey(productHandle, "", position), gid)
	}
}

func (ix *Index) Collection(handle string) (string, bool) { return ix.collections.get(handle) }
func (ix *Index) SetCollection(handle, gid string)        { ix.collections.set(handle, gid) }

func (ix *Index) Page(handle string) (string, bool) { return ix.pages.get(handle) }
func (ix *Index) SetPage(handle, gid string)        { ix.pages.set(handle, gid) }

func (ix *Index) Blog(handle string) (string, bool) { return ix.blogs.get(handle) }
func (ix *Index) SetBlog(handle, gid string)        { ix.blogs.set(handle, gid) }

func (ix *Index) Article(blogHandle, articleHandle string) (string, bool) {
	return ix.articles.get(ArticleKey(blogHandle, articleHandle))
}
func (ix *Index) SetArticle(blogHandle, articleHandle, gid string) {
	ix.articles.set(ArticleKey(blogHandle, articleHandle), gid)
}

func (ix *Index) Metaobject(typeName, handle string) (string, bool) {
	return ix.metaobjects.get(MetaobjectKey(typeName, handle))
}
func (ix *Index) SetMetaobject(typeName, handle, gid string) {
	ix.metaobjects.set(MetaobjectKey(typeName, handle), gid)
}

func (ix *Index) File(filename string) (string, bool) { return ix.files.get(filename) }

// SetFile records a file mapping. The first mapping for a filename wins;
// duplicate filenames in a library are ambiguous and the caller logs them.
func (ix *Index) SetFile(filename, gid string) bool {
	return ix.files.setIfAbsent(filename, gid)
}

func (ix *Index) Menu(handle string) (string, bool) { return ix.menus.get(handle) }
func (ix *Index) SetMenu(handle, gid string)        { ix.menus.set(handle, gid) }

func (ix *Index) Redirect(path string) (string, bool) { return ix.redirects.get(path) }
func (ix *Index) SetRedirect(path, gid string)        { ix.redirects.set(path, gid) }

func (ix *Index) Publication(name string) (string, bool) { return ix.publications.get(name) }
func (ix *Index) SetPublication(name, gid string)        { ix.publications.set(name, gid) }

// Publications returns every known publication as name → GID. The publication
// resync unpublishes from channels outside the source's set, so it needs the
// full list, not point lookups.
func (ix *Index) Publications() map[string]string {
	ix.publications.mu.RLock()
	defer ix.publications.mu.RUnlock()
	out := make(map[string]string, len(ix.publications.m))
	for k, v := range ix.publications.m {
		out[k] = v
	}
	return out
}

func (ix *Index) Market(handle string) (string, bool) { return ix.markets.get(handle) }
func (ix *Index) SetMarket(handle, gid string)        { ix.markets.set(handle, gid) }

func (ix *Index) Discount(kind, title string) (string, bool) {
	return ix.discounts.get(DiscountKey(kind, title))
}
func (ix *Index) SetDiscount(kind, title, gid string) {
	ix.discounts.set(DiscountKey(kind, title), gid)
}

// Counts reports the number of indexed records per family.
func (ix *Index) Counts() map[string]int {
	return map[string]int{
		"products":     ix.products.len(),
		"variants":     ix.variants.len(),
		"collections":  ix.collections.len(),
		"pages":        ix.pages.len(),
		"blogs":        ix.blogs.len(),
		"articles":     ix.articles.len(),
		"metaobjects":  ix.metaobjects.len(),
		"files":        ix.files.len(),
		"menus":        ix.menus.len(),
		"redirects":    ix.redirects.len(),
		"publications": ix.publications.len(),
		"markets":      ix.markets.len(),
		"discounts":    ix.discounts.len(),
	}
}
