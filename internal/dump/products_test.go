package dump

import (
	"encoding/json"
	"testing"

	"github.com/untoldecay/shopmirror/internal/types"
)

// Records arrive from the stream as reassembled maps; decodeRecord is the
// bridge the session uses, so the tests go through it too.
func TestProductFromRaw(t *testing.T) {
	rec := map[string]any{}
	line := `{
		"id": "gid://shopify/Product/1",
		"handle": "widget",
		"title": "Widget",
		"descriptionHtml": "<p>w</p>",
		"vendor": "Acme",
		"productType": "Tools",
		"tags": ["a", "b"],
		"status": "ACTIVE",
		"templateSuffix": null,
		"options": [{"name": "Size", "values": ["S", "M"]}],
		"seo": {"title": null, "description": null},
		"variants": [
			{"id": "gid://shopify/ProductVariant/11", "sku": "W-1", "position": 1,
			 "price": "10.00", "taxable": true, "inventoryPolicy": "DENY",
			 "selectedOptions": [{"name": "Size", "value": "S"}]}
		],
		"metafields": [
			{"namespace": "custom", "key": "companion", "type": "product_reference",
			 "value": "gid://shopify/Product/2",
			 "reference": {"__typename": "Product", "handle": "gadget"}}
		],
		"publications": [
			{"publication": {"catalog": {"title": "Online Store"}}, "isPublished": true}
		]
	}`
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	var raw productRaw
	if err := decodeRecord(rec, &raw); err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	p := productFromRaw(raw)

	if p.Handle != "widget" || p.Title != "Widget" || p.Status != "ACTIVE" {
		t.Errorf("unexpected product: %+v", p)
	}
	if p.SEO != nil {
		t.Errorf("empty SEO should be dropped, got %+v", p.SEO)
	}
	if len(p.Variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(p.Variants))
	}
	v := p.Variants[0]
	if v.SKU != "W-1" || v.Position != 1 || v.Price != "10.00" || len(v.Options) != 1 {
		t.Errorf("unexpected variant: %+v", v)
	}
	if len(p.Metafields) != 1 {
		t.Fatalf("expected 1 metafield, got %d", len(p.Metafields))
	}
	if mf := p.Metafields[0]; mf.RefProduct == nil || mf.RefProduct.Handle != "gadget" {
		t.Errorf("expected inline reference annotation, got %+v", mf)
	}
	if len(p.Publications) != 1 || p.Publications[0] != "Online Store" {
		t.Errorf("unexpected publications: %v", p.Publications)
	}
}

func TestCollectionFromRawDropsSmartMembership(t *testing.T) {
	smart := collectionRaw{
		ID: "gid://shopify/Collection/1", Handle: "sale", Title: "Sale",
		RuleSet:  ruleSet(t, `{"appliedDisjunctively":false,"rules":[{"column":"TAG","relation":"EQUALS","condition":"sale"}]}`),
		Products: []handleRef{{Handle: "widget"}},
	}
	c := collectionFromRaw(smart)
	if c.RuleSet == nil || len(c.RuleSet.Rules) != 1 {
		t.Fatalf("expected rule set, got %+v", c.RuleSet)
	}
	if c.Products != nil {
		t.Errorf("smart collection must not carry membership, got %v", c.Products)
	}

	manual := smart
	manual.RuleSet = nil
	c = collectionFromRaw(manual)
	if len(c.Products) != 1 || c.Products[0] != "widget" {
		t.Errorf("manual collection should keep membership, got %v", c.Products)
	}
}

func TestFileFromRaw(t *testing.T) {
	tests := []struct {
		name    string
		raw     fileRaw
		wantURL string
		want    string
		ok      bool
	}{
		{
			name:    "image",
			raw:     fileRaw{ID: "1", Kind: "MediaImage", Image: &urlRef{URL: "https://cdn.example.com/a/logo.png?v=9"}},
			wantURL: "https://cdn.example.com/a/logo.png?v=9",
			want:    "image",
			ok:      true,
		},
		{
			name:    "video",
			raw:     fileRaw{ID: "2", Kind: "Video", OriginalSource: &sourceRef{URL: "https://cdn.example.com/v/clip.mp4", MimeType: "video/mp4"}},
			wantURL: "https://cdn.example.com/v/clip.mp4",
			want:    "video",
			ok:      true,
		},
		{
			name:    "generic file",
			raw:     fileRaw{ID: "3", Kind: "GenericFile", URL: "https://cdn.example.com/f/terms.pdf", MimeType: "application/pdf"},
			wantURL: "https://cdn.example.com/f/terms.pdf",
			want:    "file",
			ok:      true,
		},
		{
			name: "still processing",
			raw:  fileRaw{ID: "4", Kind: "MediaImage"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := fileFromRaw(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if f.URL != tt.wantURL || f.Kind != tt.want {
				t.Errorf("got %+v", f)
			}
			if f.Filename == "" {
				t.Error("expected derived filename")
			}
		})
	}
}

func ruleSet(t *testing.T, raw string) *types.CollectionRuleSet {
	t.Helper()
	var rs types.CollectionRuleSet
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return &rs
}
