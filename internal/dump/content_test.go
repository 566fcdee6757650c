package dump

import (
	"testing"

	"github.com/untoldecay/shopmirror/internal/types"
)

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://demo.myshopify.com/products/red-tee", "red-tee"},
		{"/collections/summer", "summer"},
		{"/pages/about/", "about"},
		{"red-tee", "red-tee"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := lastPathSegment(tt.url); got != tt.want {
			t.Errorf("lastPathSegment(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestArticlePath(t *testing.T) {
	tests := []struct {
		url          string
		blog, handle string
		ok           bool
	}{
		{"https://demo.myshopify.com/blogs/news/launch-post", "news", "launch-post", true},
		{"/blogs/news/launch-post/", "news", "launch-post", true},
		{"/blogs/news", "", "", false},
		{"/blogs/news/a/b", "", "", false},
		{"/pages/about", "", "", false},
	}
	for _, tt := range tests {
		blog, handle, ok := articlePath(tt.url)
		if blog != tt.blog || handle != tt.handle || ok != tt.ok {
			t.Errorf("articlePath(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.url, blog, handle, ok, tt.blog, tt.handle, tt.ok)
		}
	}
}

func TestAnnotateMenuItemsFromURLs(t *testing.T) {
	items := []types.MenuItem{
		{
			Title:      "Shop",
			Type:       "COLLECTION",
			URL:        "/collections/all",
			ResourceID: "gid://shopify/Collection/1",
			Items: []types.MenuItem{
				{
					Title:      "Red Tee",
					Type:       "PRODUCT",
					URL:        "https://demo.myshopify.com/products/red-tee",
					ResourceID: "gid://shopify/Product/1",
				},
			},
		},
		{
			Title:      "Launch",
			Type:       "ARTICLE",
			URL:        "/blogs/news/launch-post",
			ResourceID: "gid://shopify/Article/1",
		},
		{
			Title:      "FAQ",
			Type:       "METAOBJECT",
			URL:        "/pages/faq-lookalike",
			ResourceID: "gid://shopify/Metaobject/1",
		},
		{Title: "Search", Type: "SEARCH", URL: "/search"},
	}

	annotateMenuItemsFromURLs(items)

	if items[0].RefCollection == nil || items[0].RefCollection.Handle != "all" {
		t.Errorf("collection item not annotated: %+v", items[0].RefCollection)
	}
	nested := items[0].Items[0]
	if nested.RefProduct == nil || nested.RefProduct.Handle != "red-tee" {
		t.Errorf("nested product item not annotated: %+v", nested.RefProduct)
	}
	if a := items[1].RefArticle; a == nil || a.BlogHandle != "news" || a.ArticleHandle != "launch-post" {
		t.Errorf("article item not annotated: %+v", items[1].RefArticle)
	}
	if items[2].RefMetaobject != nil {
		t.Error("metaobject items resolve during enrichment, not from URLs")
	}
	if items[3].RefProduct != nil || items[3].RefCollection != nil {
		t.Error("items without a resource id must stay untouched")
	}
}
