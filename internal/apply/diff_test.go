package apply

import (
	"context"
	"strings"
	"testing"

	"github.com/untoldecay/shopmirror/internal/ui"
)

func TestDiffAgainstEmptyShop(t *testing.T) {
	ctx := context.Background()
	shop := newFakeShop(t)
	dir := writeApplyDump(t)

	rows, err := Diff(ctx, shop.client(), dir)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	want := []struct {
		family  string
		missing int
	}{
		{"products", 2},
		{"variants", 2},
		{"collections", 1},
		{"pages", 1},
		{"blogs", 1},
		{"articles", 1},
		{"metaobjects", 1},
		{"files", 1},
		{"menus", 1},
		{"redirects", 1},
		{"discounts", 1},
		{"markets", 1},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(rows), len(want), rows)
	}
	for i, w := range want {
		row := rows[i]
		if row.Family != w.family {
			t.Errorf("row %d family = %q, want %q", i, row.Family, w.family)
			continue
		}
		if row.Present != 0 || row.Missing != w.missing {
			t.Errorf("%s present=%d missing=%d, want 0/%d", w.family, row.Present, row.Missing, w.missing)
		}
		if len(row.Sample) != min(w.missing, 5) {
			t.Errorf("%s sample = %v", w.family, row.Sample)
		}
	}

	products := rows[0]
	if len(products.Sample) != 2 || products.Sample[0] != "widget" || products.Sample[1] != "gadget" {
		t.Errorf("products sample = %v, want the dump handles in order", products.Sample)
	}
}

func TestDiffAfterApply(t *testing.T) {
	ctx := context.Background()
	shop := newFakeShop(t)
	dir := writeApplyDump(t)

	pipe := New(shop.client(), dir, "0.1.0")
	if _, err := pipe.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, err := Diff(ctx, shop.client(), dir)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected rows for every dumped family")
	}
	for _, row := range rows {
		if row.Missing != 0 {
			t.Errorf("%s missing = %d after a full apply (sample %v)", row.Family, row.Missing, row.Sample)
		}
		if row.Present == 0 {
			t.Errorf("%s present = 0, the dump is not empty", row.Family)
		}
		if len(row.Sample) != 0 {
			t.Errorf("%s sample = %v, want none", row.Family, row.Sample)
		}
	}
	var total int
	for _, row := range rows {
		total += row.Present
	}
	if total != 14 {
		t.Errorf("present across families = %d, want 14", total)
	}
}

func TestDiffRequiresDump(t *testing.T) {
	shop := newFakeShop(t)
	_, err := Diff(context.Background(), shop.client(), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "not a dump directory") {
		t.Fatalf("err = %v, want the dump guard", err)
	}
}

func TestMergeDiffs(t *testing.T) {
	rows := []ui.FamilyDiff{
		{Family: "variants", Present: 2, Missing: 1, Sample: []string{"a/1"}},
		{Family: "variants", Present: 1, Missing: 2, Sample: []string{"b/1", "b/2"}},
	}
	merged := mergeDiffs("variants", rows)
	if len(merged) != 1 {
		t.Fatalf("got %d rows, want 1", len(merged))
	}
	m := merged[0]
	if m.Present != 3 || m.Missing != 3 {
		t.Errorf("merged present=%d missing=%d, want 3/3", m.Present, m.Missing)
	}
	if len(m.Sample) != 3 {
		t.Errorf("merged sample = %v", m.Sample)
	}
	if got := mergeDiffs("variants", nil); got != nil {
		t.Errorf("empty merge = %v, want nil", got)
	}
}
