package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/untoldecay/shopmirror/internal/dump"
	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const collectionCreateMutation = `mutation collectionCreate($input: CollectionInput!) {
	collectionCreate(input: $input) {
		collection { id handle }
		userErrors { field message code }
	}
}`

const collectionUpdateMutation = `mutation collectionUpdate($input: CollectionInput!) {
	collectionUpdate(input: $input) {
		collection { id handle }
		userErrors { field message code }
	}
}`

const collectionAddProductsMutation = `mutation collectionAddProducts($id: ID!, $productIds: [ID!]!) {
	collectionAddProductsV2(id: $id, productIds: $productIds) {
		job { id }
		userErrors { field message code }
	}
}`

const collectionProductsQuery = `query collectionProducts($id: ID!, $after: String) {
	collection(id: $id) {
		products(first: 250, after: $after) {
			pageInfo { hasNextPage endCursor }
			nodes { id }
		}
	}
}`

func (p *Pipeline) applyCollections(ctx context.Context, st *Stats) error {
	collections, err := dump.ReadAll[types.Collection](filepath.Join(p.Dir, "collections.jsonl"))
	if err != nil {
		return err
	}

	tasks := make([]task, 0, len(collections))
	for _, rec := range collections {
		tasks = append(tasks, task{key: "collection " + rec.Handle, run: func(ctx context.Context) (action, error) {
			return p.syncCollection(ctx, rec)
		}})
	}
	p.runTasks(ctx, st, tasks)
	return nil
}

func (p *Pipeline) syncCollection(ctx context.Context, rec types.Collection) (action, error) {
	gid, exists := p.ix.Collection(rec.Handle)

	input := map[string]any{
		"handle": rec.Handle,
		"title":  rec.Title,
	}
	if rec.DescriptionHTML != "" {
		input["descriptionHtml"] = rec.DescriptionHTML
	}
	if rec.SortOrder != "" {
		input["sortOrder"] = rec.SortOrder
	}
	if rec.TemplateSuffix != "" {
		input["templateSuffix"] = rec.TemplateSuffix
	}
	if rec.SEO != nil {
		input["seo"] = map[string]any{"title": rec.SEO.Title, "description": rec.SEO.Description}
	}
	if rec.RuleSet != nil {
		rules := make([]map[string]any, 0, len(rec.RuleSet.Rules))
		for _, r := range rec.RuleSet.Rules {
			rules = append(rules, map[string]any{
				"column":    r.Column,
				"relation":  r.Relation,
				"condition": r.Condition,
			})
		}
		input["ruleSet"] = map[string]any{
			"appliedDisjunctively": rec.RuleSet.AppliedDisjunctively,
			"rules":                rules,
		}
	}

	// Smart collections derive membership from the rule set; manual ones
	// carry it explicitly as product handles.
	members, dropped := p.resolveMembers(rec)
	for _, d := range dropped {
		p.logger.Warn("collection member not in destination", "collection", rec.Handle, "product", d)
	}

	var out struct {
		Collection *struct {
			ID string `json:"id"`
		} `json:"collection"`
	}

	act := actCreated
	if exists {
		act = actUpdated
		input["id"] = gid
		if err := p.mutate(ctx, collectionUpdateMutation, "collectionUpdate", map[string]any{"input": input}, &out); err != nil {
			return "", err
		}
	} else {
		if rec.RuleSet == nil && len(members) > 0 {
			input["products"] = members
		}
		if err := p.mutate(ctx, collectionCreateMutation, "collectionCreate", map[string]any{"input": input}, &out); err != nil {
			return "", err
		}
	}
	if out.Collection != nil && out.Collection.ID != "" {
		gid = out.Collection.ID
	}
	if gid == "" {
		return "", fmt.Errorf("no collection id returned")
	}
	p.ix.SetCollection(rec.Handle, gid)

	if exists && rec.RuleSet == nil && len(members) > 0 {
		if err := p.addMissingMembers(ctx, gid, members); err != nil {
			return "", err
		}
	}
	if err := p.syncPublications(ctx, gid, rec.Publications); err != nil {
		return "", err
	}
	return act, nil
}

func (p *Pipeline) resolveMembers(rec types.Collection) (members, dropped []string) {
	if rec.RuleSet != nil {
		return nil, nil
	}
	for _, handle := range rec.Products {
		if gid, ok := p.ix.Product(handle); ok {
			members = append(members, gid)
			continue
		}
		dropped = append(dropped, handle)
	}
	return members, dropped
}

// addMissingMembers converges an existing manual collection toward the source
// membership. Members the destination added on its own stay: apply never
// removes data it did not put there.
func (p *Pipeline) addMissingMembers(ctx context.Context, gid string, members []string) error {
	current := make(map[string]bool)
	err := p.Client.Paginate(ctx, collectionProductsQuery, map[string]any{"id": gid}, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			Collection struct {
				Products struct {
					PageInfo shopify.PageInfo `json:"pageInfo"`
					Nodes    []struct {
						ID string `json:"id"`
					} `json:"nodes"`
				} `json:"products"`
			} `json:"collection"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse collection products: %w", err)
		}
		for _, n := range resp.Collection.Products.Nodes {
			current[n.ID] = true
		}
		return resp.Collection.Products.PageInfo, nil
	})
	if err != nil {
		return fmt.Errorf("membership: %w", err)
	}

	var missing []string
	for _, m := range members {
		if !current[m] {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vars := map[string]any{"id": gid, "productIds": missing}
	if err := p.mutate(ctx, collectionAddProductsMutation, "collectionAddProductsV2", vars, nil); err != nil {
		return fmt.Errorf("membership: %w", err)
	}
	return nil
}
