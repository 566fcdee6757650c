package refs

import (
	"errors"
	"testing"

	"github.com/untoldecay/shopmirror/internal/index"
	"github.com/untoldecay/shopmirror/internal/types"
)

func testSource() *Source {
	src := NewSource()
	src.Products["gid://shopify/Product/1"] = types.ProductRef{Handle: "widget"}
	src.Variants["gid://shopify/ProductVariant/10"] = types.VariantRef{ProductHandle: "widget", SKU: "W-1", Position: 1}
	src.Collections["gid://shopify/Collection/3"] = types.CollectionRef{Handle: "sale"}
	src.Metaobjects["gid://shopify/Metaobject/6"] = types.MetaobjectRef{Type: "shop_feature", Handle: "main"}
	src.Files["gid://shopify/MediaImage/7"] = types.FileRef{URL: "https://cdn.example.com/s/hero.png?v=1", Filename: "hero.png"}
	return src
}

func TestAnnotateSingleReference(t *testing.T) {
	f := types.Field{
		Namespace: "custom",
		Key:       "featured",
		Type:      "product_reference",
		Value:     "gid://shopify/Product/1",
	}

	if !Annotate(&f, testSource()) {
		t.Fatal("expected annotation")
	}
	if f.RefProduct == nil || f.RefProduct.Handle != "widget" {
		t.Errorf("unexpected annotation %+v", f.RefProduct)
	}
	if f.Value != "gid://shopify/Product/1" {
		t.Errorf("raw value must be preserved, got %q", f.Value)
	}
}

func TestAnnotateKeepsExisting(t *testing.T) {
	f := types.Field{
		Type:       "product_reference",
		Value:      "gid://shopify/Product/1",
		RefProduct: &types.ProductRef{Handle: "already-set"},
	}

	if Annotate(&f, testSource()) {
		t.Error("annotated field must not be touched again")
	}
	if f.RefProduct.Handle != "already-set" {
		t.Errorf("existing annotation overwritten: %+v", f.RefProduct)
	}
}

func TestAnnotateUnresolvable(t *testing.T) {
	f := types.Field{
		Type:  "product_reference",
		Value: "gid://shopify/Product/999",
	}

	if Annotate(&f, testSource()) {
		t.Error("unresolvable reference should not annotate")
	}
	if Annotated(&f) {
		t.Error("no annotation expected")
	}
	if f.Value != "gid://shopify/Product/999" {
		t.Errorf("raw value must survive, got %q", f.Value)
	}
}

func TestAnnotateNonReference(t *testing.T) {
	f := types.Field{Type: "single_line_text_field", Value: "gid://shopify/Product/1"}
	if Annotate(&f, testSource()) {
		t.Error("non-reference types must never be annotated")
	}
}

func TestAnnotateListPartial(t *testing.T) {
	f := types.Field{
		Key:   "related",
		Type:  "list.mixed_reference",
		Value: `["gid://shopify/Product/1","gid://shopify/Product/999","gid://shopify/Collection/3"]`,
	}

	if !Annotate(&f, testSource()) {
		t.Fatal("expected partial annotation")
	}
	if len(f.RefList) != 2 {
		t.Fatalf("expected 2 entries, got %+v", f.RefList)
	}
	if f.RefList[0].Type != ListProduct || f.RefList[0].ProductHandle != "widget" {
		t.Errorf("unexpected first entry %+v", f.RefList[0])
	}
	if f.RefList[1].Type != ListCollection || f.RefList[1].CollectionHandle != "sale" {
		t.Errorf("unexpected second entry %+v", f.RefList[1])
	}

	// A second pass over the already-annotated field changes nothing.
	if Annotate(&f, testSource()) {
		t.Error("second pass must be a no-op")
	}
}

func TestAnnotateListNoHits(t *testing.T) {
	f := types.Field{
		Type:  "list.product_reference",
		Value: `["gid://shopify/Product/998","gid://shopify/Product/999"]`,
	}
	if Annotate(&f, testSource()) {
		t.Error("list with no resolvable entries should stay unannotated")
	}
	if f.RefList != nil {
		t.Errorf("unexpected refList %+v", f.RefList)
	}
}

func destIndex() *index.Index {
	ix := index.New()
	ix.SetProduct("widget", "gid://shopify/Product/201")
	ix.SetVariant("widget", "W-1", 1, "gid://shopify/ProductVariant/210")
	ix.SetCollection("sale", "gid://shopify/Collection/203")
	ix.SetMetaobject("shop_feature", "main", "gid://shopify/Metaobject/206")
	ix.SetFile("hero.png", "gid://shopify/MediaImage/207")
	return ix
}

func TestResolveSingle(t *testing.T) {
	f := types.Field{
		Type:       "product_reference",
		Value:      "gid://shopify/Product/1",
		RefProduct: &types.ProductRef{Handle: "widget"},
	}

	res, err := Resolve(f, destIndex())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Value != "gid://shopify/Product/201" {
		t.Errorf("expected destination identifier, got %q", res.Value)
	}
}

func TestResolveSingleMiss(t *testing.T) {
	f := types.Field{
		Type:       "product_reference",
		Value:      "gid://shopify/Product/1",
		RefProduct: &types.ProductRef{Handle: "gone"},
	}

	_, err := Resolve(f, destIndex())
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestResolveVariantByPosition(t *testing.T) {
	ix := destIndex()
	ix.SetVariant("widget", "", 2, "gid://shopify/ProductVariant/211")

	f := types.Field{
		Type:       "variant_reference",
		RefVariant: &types.VariantRef{ProductHandle: "widget", Position: 2},
	}
	res, err := Resolve(f, ix)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Value != "gid://shopify/ProductVariant/211" {
		t.Errorf("unexpected value %q", res.Value)
	}
}

func TestResolveFileByURLFallback(t *testing.T) {
	f := types.Field{
		Type:    "file_reference",
		RefFile: &types.FileRef{URL: "https://cdn.example.com/s/hero.png?v=99"},
	}
	res, err := Resolve(f, destIndex())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Value != "gid://shopify/MediaImage/207" {
		t.Errorf("unexpected value %q", res.Value)
	}
}

func TestResolveTaxonomyPassthrough(t *testing.T) {
	f := types.Field{
		Type:  "taxonomy_value_reference",
		Value: "gid://shopify/TaxonomyValue/123",
	}
	res, err := Resolve(f, destIndex())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Value != "gid://shopify/TaxonomyValue/123" {
		t.Errorf("taxonomy values must pass through, got %q", res.Value)
	}
}

func TestResolveUnannotatedSkipped(t *testing.T) {
	f := types.Field{
		Namespace: "custom",
		Key:       "featured",
		Type:      "product_reference",
		Value:     "gid://shopify/Product/1",
	}
	_, err := Resolve(f, destIndex())
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved for unannotated reference, got %v", err)
	}
}

func TestResolveNonReferencePassthrough(t *testing.T) {
	f := types.Field{Type: "single_line_text_field", Value: "plain"}
	res, err := Resolve(f, destIndex())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Value != "plain" {
		t.Errorf("unexpected value %q", res.Value)
	}
}

func TestResolveListOrderAndSkip(t *testing.T) {
	f := types.Field{
		Key:  "related",
		Type: "list.mixed_reference",
		RefList: []types.ListRef{
			{Type: ListCollection, CollectionHandle: "sale"},
			{Type: ListProduct, ProductHandle: "gone"},
			{Type: ListProduct, ProductHandle: "widget"},
			{Type: ListFile, Filename: "hero.png"},
		},
	}

	res, err := Resolve(f, destIndex())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := `["gid://shopify/Collection/203","gid://shopify/Product/201","gid://shopify/MediaImage/207"]`
	if res.Value != want {
		t.Errorf("expected order-preserving subset\n got %s\nwant %s", res.Value, want)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != "product gone" {
		t.Errorf("unexpected dropped entries %v", res.Dropped)
	}
}

func TestResolveListAllMiss(t *testing.T) {
	f := types.Field{
		Type: "list.product_reference",
		RefList: []types.ListRef{
			{Type: ListProduct, ProductHandle: "gone"},
		},
	}
	_, err := Resolve(f, destIndex())
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved when nothing resolves, got %v", err)
	}
}

func TestResolveListTaxonomyPassthrough(t *testing.T) {
	f := types.Field{
		Type:  "list.taxonomy_value_reference",
		Value: `["gid://shopify/TaxonomyValue/1","gid://shopify/TaxonomyValue/2"]`,
	}
	res, err := Resolve(f, destIndex())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Value != f.Value {
		t.Errorf("taxonomy lists must pass through, got %q", res.Value)
	}
}
