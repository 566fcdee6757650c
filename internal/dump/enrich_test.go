package dump

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"charm.land/log/v2"
	"github.com/tidwall/gjson"

	"github.com/untoldecay/shopmirror/internal/manifest"
	"github.com/untoldecay/shopmirror/internal/types"
)

// Raw lines with deliberate key order and an unknown key. The second product
// already carries its annotation and must come back byte-identical.
const enrichProductLines = `{"id":"gid://shopify/Product/1","handle":"widget","title":"Widget","customExtra":true,"metafields":[{"namespace":"custom","key":"related","type":"list.product_reference","value":"[\"gid://shopify/Product/2\",\"gid://shopify/Product/1\"]"}]}
{"id":"gid://shopify/Product/2","handle":"gadget","title":"Gadget","metafields":[{"namespace":"custom","key":"companion","type":"product_reference","value":"gid://shopify/Product/1","refProduct":{"handle":"widget"}}]}
`

const enrichShopLine = `{"namespace":"custom","key":"hero","type":"metaobject_reference","value":"gid://shopify/Metaobject/9"}
`

const enrichMetaobjectLine = `{"id":"gid://shopify/Metaobject/9","type":"faq","handle":"shipping","fields":[{"key":"body","type":"multi_line_text_field","value":"We ship."}]}
`

func writeEnrichFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"products.jsonl":        enrichProductLines,
		"shop-metafields.jsonl": enrichShopLine,
		"metaobjects-faq.jsonl": enrichMetaobjectLine,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	menus := []types.Menu{{
		Handle: "main-menu",
		Title:  "Main menu",
		Items: []types.MenuItem{{
			Title:      "FAQ",
			Type:       "METAOBJECT",
			URL:        "/pages/faq",
			ResourceID: "gid://shopify/Metaobject/9",
		}},
	}}
	if err := WriteJSON(filepath.Join(dir, "menus.json"), menus); err != nil {
		t.Fatal(err)
	}
	if err := manifest.Write(dir, &manifest.Manifest{
		Version:    "0.1.0",
		APIVersion: "2025-07",
		SourceShop: "src.myshopify.com",
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestEnrichInjectsListAnnotations(t *testing.T) {
	dir := writeEnrichFixture(t)
	logger := log.New(io.Discard)

	changed, err := Enrich(dir, logger)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	// One refList, one shop metafield, one menu item.
	if changed != 3 {
		t.Errorf("changed = %d, want 3", changed)
	}

	lines := readLines(t, filepath.Join(dir, "products.jsonl"))
	if len(lines) != 2 {
		t.Fatalf("products.jsonl has %d lines, want 2", len(lines))
	}

	// The list annotation lands inside the metafield, in value order.
	refList := gjson.Get(lines[0], "metafields.0.refList")
	if !refList.IsArray() || len(refList.Array()) != 2 {
		t.Fatalf("refList not injected: %s", lines[0])
	}
	if h := refList.Get("0.productHandle").String(); h != "gadget" {
		t.Errorf("refList[0] = %q, want gadget", h)
	}
	if h := refList.Get("1.productHandle").String(); h != "widget" {
		t.Errorf("refList[1] = %q, want widget", h)
	}

	// Surrounding bytes survive untouched: unknown keys, key order, the raw
	// value string.
	if !strings.Contains(lines[0], `"customExtra":true`) {
		t.Error("unknown key dropped from enriched line")
	}
	if !strings.Contains(lines[0], `"value":"[\"gid://shopify/Product/2\",\"gid://shopify/Product/1\"]"`) {
		t.Error("raw value rewritten by enrichment")
	}
	if idIdx, handleIdx := strings.Index(lines[0], `"id"`), strings.Index(lines[0], `"handle"`); idIdx > handleIdx {
		t.Error("key order not preserved")
	}

	// Already-annotated lines come back byte-identical.
	wantLine2 := strings.Split(strings.TrimSuffix(enrichProductLines, "\n"), "\n")[1]
	if lines[1] != wantLine2 {
		t.Errorf("annotated line rewritten:\n got %s\nwant %s", lines[1], wantLine2)
	}
}

func TestEnrichAnnotatesShopMetafieldsAndMenus(t *testing.T) {
	dir := writeEnrichFixture(t)
	if _, err := Enrich(dir, log.New(io.Discard)); err != nil {
		t.Fatalf("Enrich: %v", err)
	}

	// Shop metafields are bare fields: the annotation sits at the line root.
	lines := readLines(t, filepath.Join(dir, "shop-metafields.jsonl"))
	ref := gjson.Get(lines[0], "refMetaobject")
	if ref.Get("type").String() != "faq" || ref.Get("handle").String() != "shipping" {
		t.Errorf("shop metafield not annotated: %s", lines[0])
	}

	menus, err := ReadJSON[[]types.Menu](filepath.Join(dir, "menus.json"))
	if err != nil {
		t.Fatal(err)
	}
	item := menus[0].Items[0]
	if item.RefMetaobject == nil || item.RefMetaobject.Handle != "shipping" {
		t.Errorf("metaobject menu item not resolved: %+v", item)
	}

	m, err := manifest.Read(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.EnrichedAt == nil {
		t.Error("manifest EnrichedAt not stamped")
	}
}

func TestEnrichIsIdempotent(t *testing.T) {
	dir := writeEnrichFixture(t)
	logger := log.New(io.Discard)
	if _, err := Enrich(dir, logger); err != nil {
		t.Fatalf("first Enrich: %v", err)
	}

	dataFiles := []string{"products.jsonl", "shop-metafields.jsonl", "metaobjects-faq.jsonl", "menus.json"}
	before := make(map[string][]byte, len(dataFiles))
	for _, name := range dataFiles {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		before[name] = b
	}

	changed, err := Enrich(dir, logger)
	if err != nil {
		t.Fatalf("second Enrich: %v", err)
	}
	if changed != 0 {
		t.Errorf("second pass changed %d fields, want 0", changed)
	}
	for _, name := range dataFiles {
		after, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(after) != string(before[name]) {
			t.Errorf("%s not byte-stable across passes", name)
		}
	}
}
