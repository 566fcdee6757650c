package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/untoldecay/shopmirror/internal/shopify"
)

func TestVariantKey(t *testing.T) {
	if got := VariantKey("widget", "W-1", 1); got != "widget:W-1" {
		t.Errorf("unexpected key %q", got)
	}
	if got := VariantKey("widget", "", 3); got != "widget:pos3" {
		t.Errorf("expected position fallback, got %q", got)
	}
}

func TestVariantDualKeys(t *testing.T) {
	ix := New()
	ix.SetVariant("widget", "W-1", 2, "gid://shopify/ProductVariant/10")

	if gid, ok := ix.Variant("widget", "W-1", 2); !ok || gid != "gid://shopify/ProductVariant/10" {
		t.Errorf("SKU lookup failed: %q %v", gid, ok)
	}
	// A reference that only knows the position still resolves.
	if gid, ok := ix.Variant("widget", "", 2); !ok || gid != "gid://shopify/ProductVariant/10" {
		t.Errorf("position lookup failed: %q %v", gid, ok)
	}
	// A stale SKU falls back to the position key.
	if gid, ok := ix.Variant("widget", "OLD-SKU", 2); !ok || gid != "gid://shopify/ProductVariant/10" {
		t.Errorf("SKU-miss fallback failed: %q %v", gid, ok)
	}
	if _, ok := ix.Variant("widget", "OLD-SKU", 0); ok {
		t.Error("no position to fall back to should miss")
	}
}

func TestArticleAndMetaobjectKeys(t *testing.T) {
	if got := ArticleKey("news", "hello-world"); got != "news/hello-world" {
		t.Errorf("unexpected article key %q", got)
	}
	if got := MetaobjectKey("shop_feature", "main"); got != "shop_feature/main" {
		t.Errorf("unexpected metaobject key %q", got)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://cdn.shopify.com/s/files/1/0001/products/hero.png?v=12345", "hero.png"},
		{"https://cdn.shopify.com/s/files/1/0001/products/hero.png", "hero.png"},
		{"https://cdn.shopify.com/videos/c/o/v/abc123.mp4?width=800", "abc123.mp4"},
		{"hero.png", "hero.png"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Filename(tt.in); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetAndLookup(t *testing.T) {
	ix := New()

	ix.SetProduct("widget", "gid://shopify/Product/1")
	if gid, ok := ix.Product("widget"); !ok || gid != "gid://shopify/Product/1" {
		t.Errorf("product lookup failed: %q %v", gid, ok)
	}
	if _, ok := ix.Product("missing"); ok {
		t.Error("expected miss for unknown handle")
	}

	ix.SetVariant("widget", "W-1", 1, "gid://shopify/ProductVariant/10")
	if gid, ok := ix.Variant("widget", "W-1", 1); !ok || gid != "gid://shopify/ProductVariant/10" {
		t.Errorf("variant lookup failed: %q %v", gid, ok)
	}

	ix.SetArticle("news", "hello", "gid://shopify/Article/5")
	if _, ok := ix.Article("news", "hello"); !ok {
		t.Error("article lookup failed")
	}
	if _, ok := ix.Article("other", "hello"); ok {
		t.Error("article key must include blog handle")
	}
}

func TestSetFileFirstWins(t *testing.T) {
	ix := New()
	if !ix.SetFile("hero.png", "gid://shopify/MediaImage/1") {
		t.Fatal("first insert should win")
	}
	if ix.SetFile("hero.png", "gid://shopify/MediaImage/2") {
		t.Error("duplicate insert should be rejected")
	}
	gid, _ := ix.File("hero.png")
	if gid != "gid://shopify/MediaImage/1" {
		t.Errorf("first mapping should be kept, got %q", gid)
	}
}

// fakeShop answers the index queries with canned single pages.
func fakeShop(t *testing.T) *shopify.Client {
	t.Helper()
	page := func(conn, nodes string) string {
		return fmt.Sprintf(`{"data":{"%s":{"nodes":%s,"pageInfo":{"hasNextPage":false,"endCursor":""}}}}`, conn, nodes)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req shopify.GraphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		q := req.Query
		switch {
		case strings.Contains(q, "productVariants("):
			fmt.Fprint(w, page("productVariants", `[{"id":"gid://shopify/ProductVariant/10","sku":"W-1","position":1,"product":{"handle":"widget"}},{"id":"gid://shopify/ProductVariant/11","sku":"","position":2,"product":{"handle":"widget"}}]`))
		case strings.Contains(q, "products("):
			fmt.Fprint(w, page("products", `[{"id":"gid://shopify/Product/1","handle":"widget"}]`))
		case strings.Contains(q, "collections("):
			fmt.Fprint(w, page("collections", `[{"id":"gid://shopify/Collection/3","handle":"sale"}]`))
		case strings.Contains(q, "pages("):
			fmt.Fprint(w, page("pages", `[]`))
		case strings.Contains(q, "blogs("):
			fmt.Fprint(w, page("blogs", `[{"id":"gid://shopify/Blog/4","handle":"news"}]`))
		case strings.Contains(q, "articles("):
			fmt.Fprint(w, page("articles", `[{"id":"gid://shopify/Article/5","handle":"hello","blog":{"handle":"news"}}]`))
		case strings.Contains(q, "metaobjectDefinitions("):
			fmt.Fprint(w, page("metaobjectDefinitions", `[{"type":"shop_feature"}]`))
		case strings.Contains(q, "metaobjects("):
			if req.Variables["type"] != "shop_feature" {
				t.Errorf("unexpected metaobject type %v", req.Variables["type"])
			}
			fmt.Fprint(w, page("metaobjects", `[{"id":"gid://shopify/Metaobject/6","type":"shop_feature","handle":"main"}]`))
		case strings.Contains(q, "files("):
			fmt.Fprint(w, page("files", `[{"id":"gid://shopify/MediaImage/7","image":{"url":"https://cdn.example.com/s/hero.png?v=1"}},{"id":"gid://shopify/GenericFile/8","url":"https://cdn.example.com/s/manual.pdf"}]`))
		case strings.Contains(q, "menus("):
			fmt.Fprint(w, page("menus", `[{"id":"gid://shopify/Menu/9","handle":"main-menu"}]`))
		case strings.Contains(q, "urlRedirects("):
			fmt.Fprint(w, page("urlRedirects", `[{"id":"gid://shopify/UrlRedirect/12","path":"/old"}]`))
		case strings.Contains(q, "publications("):
			fmt.Fprint(w, page("publications", `[{"id":"gid://shopify/Publication/2","catalog":{"title":"Online Store"}}]`))
		case strings.Contains(q, "markets("):
			fmt.Fprint(w, page("markets", `[{"id":"gid://shopify/Market/13","handle":"us"}]`))
		case strings.Contains(q, "discountNodes("):
			fmt.Fprint(w, page("discountNodes", `[{"id":"gid://shopify/DiscountNode/14","discount":{"__typename":"DiscountCodeBasic","title":"SUMMER10"}}]`))
		default:
			t.Errorf("unexpected query: %s", q)
		}
	}))
	t.Cleanup(srv.Close)
	return shopify.NewClient("dst-shop.example.com", "tok", "2025-10").WithEndpoint(srv.URL)
}

func TestBuild(t *testing.T) {
	ix, err := Build(context.Background(), fakeShop(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if gid, ok := ix.Product("widget"); !ok || gid != "gid://shopify/Product/1" {
		t.Errorf("product not indexed: %q %v", gid, ok)
	}
	if _, ok := ix.Variant("widget", "W-1", 1); !ok {
		t.Error("variant with SKU not indexed")
	}
	if _, ok := ix.Variant("widget", "", 2); !ok {
		t.Error("variant without SKU should index by position")
	}
	if _, ok := ix.Collection("sale"); !ok {
		t.Error("collection not indexed")
	}
	if _, ok := ix.Article("news", "hello"); !ok {
		t.Error("article not indexed")
	}
	if _, ok := ix.Metaobject("shop_feature", "main"); !ok {
		t.Error("metaobject not indexed")
	}
	if _, ok := ix.File("hero.png"); !ok {
		t.Error("media image not indexed by filename")
	}
	if _, ok := ix.File("manual.pdf"); !ok {
		t.Error("generic file not indexed by filename")
	}
	if _, ok := ix.Menu("main-menu"); !ok {
		t.Error("menu not indexed")
	}
	if _, ok := ix.Redirect("/old"); !ok {
		t.Error("redirect not indexed")
	}
	if _, ok := ix.Publication("Online Store"); !ok {
		t.Error("publication not indexed")
	}
	if _, ok := ix.Market("us"); !ok {
		t.Error("market not indexed")
	}
	if _, ok := ix.Discount("code_basic", "SUMMER10"); !ok {
		t.Error("discount not indexed")
	}

	counts := ix.Counts()
	// The SKU-bearing variant indexes under both keys, the SKU-less one
	// under its position key only.
	if counts["products"] != 1 || counts["variants"] != 3 || counts["files"] != 2 {
		t.Errorf("unexpected counts %v", counts)
	}
}
