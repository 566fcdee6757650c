package dump

import (
	"context"

	"github.com/untoldecay/shopmirror/internal/types"
)

const collectionsQuery = `{
	collections {
		edges {
			node {
				id
				handle
				title
				descriptionHtml
				sortOrder
				templateSuffix
				seo { title description }
				ruleSet { appliedDisjunctively rules { column relation condition } }
				products {
					edges { node { __typename handle } }
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

type collectionRaw struct {
	ID              string                   `json:"id"`
	Handle          string                   `json:"handle"`
	Title           string                   `json:"title"`
	DescriptionHTML string                   `json:"descriptionHtml"`
	SortOrder       string                   `json:"sortOrder"`
	TemplateSuffix  string                   `json:"templateSuffix"`
	SEO             *types.SEO               `json:"seo"`
	RuleSet         *types.CollectionRuleSet `json:"ruleSet"`
	Products        []handleRef              `json:"products"`
	Metafields      []metafieldNode          `json:"metafields"`
	Publications    []publicationNode        `json:"publications"`
}

func dumpCollections(ctx context.Context, s *Session) (int, error) {
	childKeys := map[string]string{
		"Product":             "products",
		"Metafield":           "metafields",
		"ResourcePublication": "publications",
	}
	return dumpBulk(ctx, s, s.path("collections.jsonl"), collectionsQuery, childKeys,
		func(raw collectionRaw) (types.Collection, bool) {
			return collectionFromRaw(raw), true
		})
}

func collectionFromRaw(raw collectionRaw) types.Collection {
	c := types.Collection{
		ID:              raw.ID,
		Handle:          raw.Handle,
		Title:           raw.Title,
		DescriptionHTML: raw.DescriptionHTML,
		SortOrder:       raw.SortOrder,
		TemplateSuffix:  raw.TemplateSuffix,
		SEO:             trimSEO(raw.SEO),
		RuleSet:         raw.RuleSet,
		Metafields:      fieldsFromMetafields(raw.Metafields),
		Publications:    publicationTitles(raw.Publications),
	}
	// Smart collections compute their membership from the rule set; only
	// manual collections carry explicit product handles.
	if c.RuleSet == nil {
		for _, p := range raw.Products {
			c.Products = append(c.Products, p.Handle)
		}
	}
	return c
}
