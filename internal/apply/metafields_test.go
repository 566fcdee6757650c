package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/untoldecay/shopmirror/internal/index"
)

func TestMetafieldBatchSplit(t *testing.T) {
	shop := newFakeShop(t)
	dir := t.TempDir()

	// Thirty shop metafields: one full batch of 25 and a remainder of 5.
	var lines strings.Builder
	for i := range 30 {
		fmt.Fprintf(&lines, `{"namespace":"custom","key":"k%d","type":"single_line_text_field","value":"v%d"}`+"\n", i, i)
	}
	if err := os.WriteFile(filepath.Join(dir, "shop-metafields.jsonl"), []byte(lines.String()), 0o600); err != nil {
		t.Fatalf("Failed to write shop-metafields.jsonl: %v", err)
	}

	pipe := New(shop.client(), dir, "0.1.0")
	pipe.ix = index.New()

	var st Stats
	if err := pipe.applyMetafields(context.Background(), &st); err != nil {
		t.Fatalf("applyMetafields failed: %v", err)
	}

	if got := shop.callCount("metafieldsSet"); got != 2 {
		t.Fatalf("metafieldsSet calls = %d, want 2", got)
	}
	last, ok := dig(shop.lastVars("metafieldsSet"), "metafields").([]any)
	if !ok {
		t.Fatalf("last metafieldsSet call carries no metafields list")
	}
	if len(last) != 5 {
		t.Errorf("last batch size = %d, want 5", len(last))
	}
	if st.Total != 30 || st.Updated != 30 || st.Failed != 0 {
		t.Errorf("stats = %+v, want 30 total, 30 updated", st)
	}
}

func TestMetafieldOwnerMissingSkips(t *testing.T) {
	shop := newFakeShop(t)
	dir := t.TempDir()

	rec := `{"handle":"ghost","title":"Ghost","status":"ACTIVE","metafields":[{"namespace":"custom","key":"a","type":"single_line_text_field","value":"x"},{"namespace":"custom","key":"b","type":"single_line_text_field","value":"y"}]}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "products.jsonl"), []byte(rec), 0o600); err != nil {
		t.Fatalf("Failed to write products.jsonl: %v", err)
	}

	pipe := New(shop.client(), dir, "0.1.0")
	pipe.ix = index.New()

	var st Stats
	if err := pipe.applyMetafields(context.Background(), &st); err != nil {
		t.Fatalf("applyMetafields failed: %v", err)
	}

	if got := shop.callCount("metafieldsSet"); got != 0 {
		t.Errorf("metafieldsSet calls = %d, want 0", got)
	}
	if st.Total != 2 || st.Skipped != 2 {
		t.Errorf("stats = %+v, want 2 total, 2 skipped", st)
	}
}
