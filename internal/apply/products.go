package apply

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/types"
)

const productCreateMutation = `mutation productCreate($input: ProductInput!) {
	productCreate(input: $input) {
		product { id handle }
		userErrors { field message code }
	}
}`

const productUpdateMutation = `mutation productUpdate($input: ProductInput!) {
	productUpdate(input: $input) {
		product { id handle }
		userErrors { field message code }
	}
}`

const variantsBulkCreateMutation = `mutation variantsBulkCreate($productId: ID!, $strategy: ProductVariantsBulkCreateStrategy!, $variants: [ProductVariantsBulkInput!]!) {
	productVariantsBulkCreate(productId: $productId, strategy: $strategy, variants: $variants) {
		productVariants { id sku position }
		userErrors { field message code }
	}
}`

const variantsBulkUpdateMutation = `mutation variantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
	productVariantsBulkUpdate(productId: $productId, variants: $variants) {
		productVariants { id sku position }
		userErrors { field message code }
	}
}`

const publishMutation = `mutation publish($id: ID!, $input: [PublicationInput!]!) {
	publishablePublish(id: $id, input: $input) {
		userErrors { field message }
	}
}`

const unpublishMutation = `mutation unpublish($id: ID!, $input: [PublicationInput!]!) {
	publishableUnpublish(id: $id, input: $input) {
		userErrors { field message }
	}
}`

func (p *Pipeline) applyProducts(ctx context.Context, st *Stats) error {
	products, err := dump.ReadAll[types.Product](filepath.Join(p.Dir, "products.jsonl"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(products))
	for _, rec := range products {
		tasks = append(tasks, task{key: "product " + rec.Handle, run: func(ctx context.Context) (action, error) {
			return p.syncProduct(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncProduct(ctx context.Context, rec types.Product) (action, error) {
	gid, exists := p.ix.Product(rec.Handle)

	input := map[string]any{
		"handle": rec.Handle,
		"title":  rec.Title,
		"status": rec.Status,
	}
	if rec.DescriptionHTML != "" {
		input["descriptionHtml"] = rec.DescriptionHTML
	}
	if rec.Vendor != "" {
		input["vendor"] = rec.Vendor
	}
	if rec.ProductType != "" {
		input["productType"] = rec.ProductType
	}
	if len(rec.Tags) > 0 {
		input["tags"] = rec.Tags
	}
	if rec.TemplateSuffix != "" {
		input["templateSuffix"] = rec.TemplateSuffix
	}
	if rec.SEO != nil {
		input["seo"] = map[string]any{"title": rec.SEO.Title, "description": rec.SEO.Description}
	}

	var out struct {
		Product *struct {
			ID string `json:"id"`
		} `json:"product"`
	}

	act := actCreated
	if exists {
		act = actUpdated
		input["id"] = gid
		if err := p.mutate(ctx, productUpdateMutation, "productUpdate", map[string]any{"input": input}, &out); err != nil {
			return "", err
		}
	} else {
		// Options are create-only input; on existing products the option
		// names already-shipped variants rely on stay untouched.
		if len(rec.Options) > 0 {
			opts := make([]map[string]any, 0, len(rec.Options))
			for _, o := range rec.Options {
				values := make([]map[string]any, 0, len(o.Values))
				for _, v := range o.Values {
					values = append(values, map[string]any{"name": v})
				}
				opts = append(opts, map[string]any{"name": o.Name, "values": values})
			}
			input["productOptions"] = opts
		}
		if err := p.mutate(ctx, productCreateMutation, "productCreate", map[string]any{"input": input}, &out); err != nil {
			return "", err
		}
	}
	if out.Product != nil && out.Product.ID != "" {
		gid = out.Product.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no product id returned")
	}
	p.ix.SetProduct(rec.Handle, gid)

	if err := p.syncVariants(ctx, gid, rec, exists); err != nil {
		return "", err
	}
	if err := p.syncPublications(ctx, gid, rec.Publications); err != nil {
		return "", err
	}
	return act, nil
}

// syncVariants splits the source variants into creates and updates against
// the composite-key index. Creating into a fresh product removes the
// placeholder variant productCreate left behind.
func (p *Pipeline) syncVariants(ctx context.Context, productGID string, rec types.Product, exists bool) error {
	var create, update []map[string]any
	for _, v := range rec.Variants {
		input := variantInput(v)
		if exists {
			if vgid, ok := p.ix.Variant(rec.Handle, v.SKU, v.Position); ok {
				input["id"] = vgid
				update = append(update, input)
				continue
			}
		}
		create = append(create, input)
	}

	var out struct {
		ProductVariants []struct {
			ID       string `json:"id"`
			SKU      string `json:"sku"`
			Position int    `json:"position"`
		} `json:"productVariants"`
	}

	if len(create) > 0 {
		strategy := "DEFAULT"
		if !exists {
			strategy = "REMOVE_STANDALONE_VARIANT"
		}
		vars := map[string]any{"productId": productGID, "strategy": strategy, "variants": create}
		if err := p.mutate(ctx, variantsBulkCreateMutation, "productVariantsBulkCreate", vars, &out); err != nil {
			return fmt.Errorf("variants: %w", err)
		}
		for _, v := range out.ProductVariants {
			p.ix.SetVariant(rec.Handle, v.SKU, v.Position, v.ID)
		}
	}
	if len(update) > 0 {
		vars := map[string]any{"productId": productGID, "variants": update}
		if err := p.mutate(ctx, variantsBulkUpdateMutation, "productVariantsBulkUpdate", vars, nil); err != nil {
			return fmt.Errorf("variants: %w", err)
		}
	}
	return nil
}

func variantInput(v types.Variant) map[string]any {
	input := map[string]any{
		"taxable": v.Taxable,
	}
	if v.Price != "" {
		input["price"] = v.Price
	}
	if v.CompareAtPrice != "" {
		input["compareAtPrice"] = v.CompareAtPrice
	}
	if v.Barcode != "" {
		input["barcode"] = v.Barcode
	}
	if v.InventoryPolicy != "" {
		input["inventoryPolicy"] = v.InventoryPolicy
	}
	if v.SKU != "" {
		input["inventoryItem"] = map[string]any{"sku": v.SKU}
	}
	if len(v.Options) > 0 {
		values := make([]map[string]any, 0, len(v.Options))
		for _, o := range v.Options {
			values = append(values, map[string]any{"optionName": o.Name, "name": o.Value})
		}
		input["optionValues"] = values
	}
	return input
}

// syncPublications resyncs a record's sales channels to exactly the source
// set: unpublish from channels outside it, publish to those inside. The
// result is the same whatever the destination's prior state.
func (p *Pipeline) syncPublications(ctx context.Context, gid string, titles []string) error {
	known := p.ix.Publications()
	if len(known) == 0 {
		return nil
	}
	want := make(map[string]bool, len(titles))
	for _, t := range titles {
		want[t] = true
	}

	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)

	var publish, unpublish []map[string]any
	for _, name := range names {
		entry := map[string]any{"publicationId": known[name]}
		if want[name] {
			publish = append(publish, entry)
		} else {
			unpublish = append(unpublish, entry)
		}
	}

	if len(unpublish) > 0 {
		vars := map[string]any{"id": gid, "input": unpublish}
		if err := p.mutate(ctx, unpublishMutation, "publishableUnpublish", vars, nil); err != nil {
			return fmt.Errorf("publications: %w", err)
		}
	}
	if len(publish) > 0 {
		vars := map[string]any{"id": gid, "input": publish}
		if err := p.mutate(ctx, publishMutation, "publishablePublish", vars, nil); err != nil {
			return fmt.Errorf("publications: %w", err)
		}
	}
	return nil
}
