package dump

import (
	"encoding/json"
	"testing"

	"github.com/untoldecay/shopmirror/internal/types"
)

func TestFieldFromMetafieldAnnotations(t *testing.T) {
	tests := []struct {
		name  string
		node  metafieldNode
		check func(t *testing.T, f types.Field)
	}{
		{
			name: "product reference",
			node: metafieldNode{
				Namespace: "custom", Key: "companion", Type: "product_reference",
				Value:     "gid://shopify/Product/2",
				Reference: &referenceNode{Typename: "Product", Handle: "gadget"},
			},
			check: func(t *testing.T, f types.Field) {
				if f.RefProduct == nil || f.RefProduct.Handle != "gadget" {
					t.Errorf("expected product annotation, got %+v", f.RefProduct)
				}
				if f.Value != "gid://shopify/Product/2" {
					t.Errorf("raw value must be preserved, got %q", f.Value)
				}
			},
		},
		{
			name: "variant reference carries product handle",
			node: metafieldNode{
				Key: "v", Type: "variant_reference", Value: "gid://shopify/ProductVariant/11",
				Reference: &referenceNode{
					Typename: "ProductVariant", SKU: "W-1", Position: 2,
					Product: &handleRef{Handle: "widget"},
				},
			},
			check: func(t *testing.T, f types.Field) {
				if f.RefVariant == nil || f.RefVariant.ProductHandle != "widget" || f.RefVariant.SKU != "W-1" || f.RefVariant.Position != 2 {
					t.Errorf("unexpected variant annotation: %+v", f.RefVariant)
				}
			},
		},
		{
			name: "article reference carries blog handle",
			node: metafieldNode{
				Key: "a", Type: "article_reference", Value: "gid://shopify/Article/5",
				Reference: &referenceNode{
					Typename: "Article", Handle: "welcome",
					Blog: &handleRef{Handle: "news"},
				},
			},
			check: func(t *testing.T, f types.Field) {
				if f.RefArticle == nil || f.RefArticle.BlogHandle != "news" || f.RefArticle.ArticleHandle != "welcome" {
					t.Errorf("unexpected article annotation: %+v", f.RefArticle)
				}
			},
		},
		{
			name: "metaobject reference",
			node: metafieldNode{
				Key: "m", Type: "metaobject_reference", Value: "gid://shopify/Metaobject/9",
				Reference: &referenceNode{Typename: "Metaobject", Type: "faq", Handle: "shipping"},
			},
			check: func(t *testing.T, f types.Field) {
				if f.RefMetaobject == nil || f.RefMetaobject.Type != "faq" || f.RefMetaobject.Handle != "shipping" {
					t.Errorf("unexpected metaobject annotation: %+v", f.RefMetaobject)
				}
			},
		},
		{
			name: "image file reference derives filename",
			node: metafieldNode{
				Key: "img", Type: "file_reference", Value: "gid://shopify/MediaImage/3",
				Reference: &referenceNode{
					Typename: "MediaImage",
					Image:    &urlRef{URL: "https://cdn.shopify.com/s/files/1/logo.png?v=123"},
				},
			},
			check: func(t *testing.T, f types.Field) {
				if f.RefFile == nil || f.RefFile.Filename != "logo.png" {
					t.Errorf("unexpected file annotation: %+v", f.RefFile)
				}
			},
		},
		{
			name: "taxonomy value stays unannotated",
			node: metafieldNode{
				Key: "color", Type: "metaobject_reference", Value: "gid://shopify/TaxonomyValue/7",
				Reference: &referenceNode{Typename: "TaxonomyValue"},
			},
			check: func(t *testing.T, f types.Field) {
				if f.RefMetaobject != nil || f.RefProduct != nil {
					t.Errorf("taxonomy reference must not be annotated: %+v", f)
				}
				if f.Value != "gid://shopify/TaxonomyValue/7" {
					t.Errorf("raw value must be preserved, got %q", f.Value)
				}
			},
		},
		{
			name: "plain field passes through",
			node: metafieldNode{Namespace: "custom", Key: "note", Type: "single_line_text_field", Value: "hello"},
			check: func(t *testing.T, f types.Field) {
				if f.Namespace != "custom" || f.Key != "note" || f.Value != "hello" {
					t.Errorf("unexpected field: %+v", f)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, fieldFromMetafield(tt.node))
		})
	}
}

func TestPublicationTitles(t *testing.T) {
	var pubs []publicationNode
	raw := `[
		{"publication":{"catalog":{"title":"Online Store"}},"isPublished":true},
		{"publication":{"catalog":{"title":"POS"}},"isPublished":false},
		{"publication":{"catalog":null},"isPublished":true}
	]`
	if err := json.Unmarshal([]byte(raw), &pubs); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	got := publicationTitles(pubs)
	if len(got) != 1 || got[0] != "Online Store" {
		t.Errorf("expected [Online Store], got %v", got)
	}
}

func TestTrimSEO(t *testing.T) {
	if trimSEO(&types.SEO{}) != nil {
		t.Error("empty SEO should trim to nil")
	}
	if trimSEO(nil) != nil {
		t.Error("nil SEO should stay nil")
	}
	if got := trimSEO(&types.SEO{Title: "T"}); got == nil || got.Title != "T" {
		t.Errorf("non-empty SEO should survive, got %+v", got)
	}
}
