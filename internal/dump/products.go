package dump

import (
	"context"

	"github.com/untoldecay/shopmirror/internal/types"
)

const productsQuery = `{
	products {
		edges {
			node {
				id
				handle
				title
				descriptionHtml
				vendor
				productType
				tags
				status
				templateSuffix
				options { name values }
				seo { title description }
				variants {
					edges {
						node {
							__typename
							id
							sku
							position
							price
							compareAtPrice
							barcode
							taxable
							inventoryPolicy
							selectedOptions { name value }
						}
					}
				}
				` + metafieldsSelection + `
				resourcePublications {
					edges {
						node {
							__typename
							publication { catalog { title } }
							isPublished
						}
					}
				}
			}
		}
	}
}`

type productRaw struct {
	ID              string                `json:"id"`
	Handle          string                `json:"handle"`
	Title           string                `json:"title"`
	DescriptionHTML string                `json:"descriptionHtml"`
	Vendor          string                `json:"vendor"`
	ProductType     string                `json:"productType"`
	Tags            []string              `json:"tags"`
	Status          string                `json:"status"`
	TemplateSuffix  string                `json:"templateSuffix"`
	Options         []types.ProductOption `json:"options"`
	SEO             *types.SEO            `json:"seo"`
	Variants        []variantRaw          `json:"variants"`
	Metafields      []metafieldNode       `json:"metafields"`
	Publications    []publicationNode     `json:"publications"`
}

type variantRaw struct {
	ID              string                 `json:"id"`
	SKU             string                 `json:"sku"`
	Position        int                    `json:"position"`
	Price           string                 `json:"price"`
	CompareAtPrice  string                 `json:"compareAtPrice"`
	Barcode         string                 `json:"barcode"`
	Taxable         bool                   `json:"taxable"`
	InventoryPolicy string                 `json:"inventoryPolicy"`
	SelectedOptions []types.SelectedOption `json:"selectedOptions"`
}

func dumpProducts(ctx context.Context, s *Session) (int, error) {
	childKeys := map[string]string{
		"ProductVariant":      "variants",
		"Metafield":           "metafields",
		"ResourcePublication": "publications",
	}
	return dumpBulk(ctx, s, s.path("products.jsonl"), productsQuery, childKeys,
		func(raw productRaw) (types.Product, bool) {
			return productFromRaw(raw), true
		})
}

func productFromRaw(raw productRaw) types.Product {
	p := types.Product{
		ID:              raw.ID,
		Handle:          raw.Handle,
		Title:           raw.Title,
		DescriptionHTML: raw.DescriptionHTML,
		Vendor:          raw.Vendor,
		ProductType:     raw.ProductType,
		Tags:            raw.Tags,
		Status:          raw.Status,
		TemplateSuffix:  raw.TemplateSuffix,
		Options:         raw.Options,
		SEO:             trimSEO(raw.SEO),
		Metafields:      fieldsFromMetafields(raw.Metafields),
		Publications:    publicationTitles(raw.Publications),
	}
	for _, v := range raw.Variants {
		p.Variants = append(p.Variants, types.Variant{
			ID:              v.ID,
			SKU:             v.SKU,
			Position:        v.Position,
			Price:           v.Price,
			CompareAtPrice:  v.CompareAtPrice,
			Barcode:         v.Barcode,
			Taxable:         v.Taxable,
			InventoryPolicy: v.InventoryPolicy,
			Options:         v.SelectedOptions,
		})
	}
	return p
}
