package dump

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

// metafieldOwnerTypes are the owner families this tool mirrors metafields
// for. Definitions scoped to other owners (orders, customers, companies) are
// out of scope.
var metafieldOwnerTypes = []string{
	"PRODUCT", "PRODUCTVARIANT", "COLLECTION", "PAGE", "BLOG", "ARTICLE", "SHOP",
}

const metaobjectDefinitionsQuery = `query metaobjectDefinitions($after: String) {
	metaobjectDefinitions(first: 250, after: $after) {
		nodes {
			id
			type
			name
			description
			fieldDefinitions {
				key
				name
				description
				required
				type { name }
				validations { name value }
			}
			capabilities { publishable { enabled } }
		}
		pageInfo { hasNextPage endCursor }
	}
}`

const metafieldDefinitionsQuery = `query metafieldDefinitions($ownerType: MetafieldOwnerType!, $after: String) {
	metafieldDefinitions(first: 250, ownerType: $ownerType, after: $after) {
		nodes {
			id
			namespace
			key
			name
			description
			pinnedPosition
			type { name }
			validations { name value }
		}
		pageInfo { hasNextPage endCursor }
	}
}`

// DumpDefinitions writes definitions.json for the given tenant. It is shared
// by the full dump session and the standalone defs command.
func DumpDefinitions(ctx context.Context, client *shopify.Client, path string) (*types.Definitions, error) {
	defs, err := FetchDefinitions(ctx, client)
	if err != nil {
		return nil, err
	}
	if err := WriteJSON(path, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// FetchDefinitions reads a tenant's full definition schema. The defs apply
// uses it to learn what the destination already has.
func FetchDefinitions(ctx context.Context, client *shopify.Client) (*types.Definitions, error) {
	defs := &types.Definitions{
		MetaobjectDefinitions: []types.MetaobjectDefinition{},
		MetafieldDefinitions:  []types.MetafieldDefinition{},
	}

	err := client.Paginate(ctx, metaobjectDefinitionsQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			MetaobjectDefinitions struct {
				Nodes    []metaobjectDefinitionRaw `json:"nodes"`
				PageInfo shopify.PageInfo          `json:"pageInfo"`
			} `json:"metaobjectDefinitions"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse metaobject definitions: %w", err)
		}
		for _, n := range resp.MetaobjectDefinitions.Nodes {
			defs.MetaobjectDefinitions = append(defs.MetaobjectDefinitions, metaobjectDefinitionFromRaw(n))
		}
		return resp.MetaobjectDefinitions.PageInfo, nil
	})
	if err != nil {
		return nil, err
	}

	for _, owner := range metafieldOwnerTypes {
		err := client.Paginate(ctx, metafieldDefinitionsQuery, map[string]any{"ownerType": owner}, func(data json.RawMessage) (shopify.PageInfo, error) {
			var resp struct {
				MetafieldDefinitions struct {
					Nodes    []metafieldDefinitionRaw `json:"nodes"`
					PageInfo shopify.PageInfo         `json:"pageInfo"`
				} `json:"metafieldDefinitions"`
			}
			if err := json.Unmarshal(data, &resp); err != nil {
				return shopify.PageInfo{}, fmt.Errorf("failed to parse metafield definitions: %w", err)
			}
			for _, n := range resp.MetafieldDefinitions.Nodes {
				defs.MetafieldDefinitions = append(defs.MetafieldDefinitions, metafieldDefinitionFromRaw(owner, n))
			}
			return resp.MetafieldDefinitions.PageInfo, nil
		})
		if err != nil {
			return nil, fmt.Errorf("owner %s: %w", owner, err)
		}
	}
	return defs, nil
}

func dumpDefinitions(ctx context.Context, s *Session) (int, error) {
	defs, err := DumpDefinitions(ctx, s.Client, s.path("definitions.json"))
	if err != nil {
		return 0, err
	}
	return len(defs.MetaobjectDefinitions) + len(defs.MetafieldDefinitions), nil
}

type metaobjectDefinitionRaw struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	FieldDefinitions []struct {
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Required    bool   `json:"required"`
		Type        struct {
			Name string `json:"name"`
		} `json:"type"`
		Validations []types.Validation `json:"validations"`
	} `json:"fieldDefinitions"`
	Capabilities *struct {
		Publishable *struct {
			Enabled bool `json:"enabled"`
		} `json:"publishable"`
	} `json:"capabilities"`
}

func metaobjectDefinitionFromRaw(raw metaobjectDefinitionRaw) types.MetaobjectDefinition {
	def := types.MetaobjectDefinition{
		ID:          raw.ID,
		Type:        raw.Type,
		Name:        raw.Name,
		Description: raw.Description,
	}
	if raw.Capabilities != nil && raw.Capabilities.Publishable != nil {
		def.Publishable = raw.Capabilities.Publishable.Enabled
	}
	for _, f := range raw.FieldDefinitions {
		def.Fields = append(def.Fields, types.FieldDefinition{
			Key:         f.Key,
			Name:        f.Name,
			Description: f.Description,
			Required:    f.Required,
			Type:        f.Type.Name,
			Validations: f.Validations,
		})
	}
	return def
}

type metafieldDefinitionRaw struct {
	ID             string `json:"id"`
	Namespace      string `json:"namespace"`
	Key            string `json:"key"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PinnedPosition *int   `json:"pinnedPosition"`
	Type           struct {
		Name string `json:"name"`
	} `json:"type"`
	Validations []types.Validation `json:"validations"`
}

func metafieldDefinitionFromRaw(ownerType string, raw metafieldDefinitionRaw) types.MetafieldDefinition {
	return types.MetafieldDefinition{
		ID:          raw.ID,
		OwnerType:   ownerType,
		Namespace:   raw.Namespace,
		Key:         raw.Key,
		Name:        raw.Name,
		Description: raw.Description,
		Type:        raw.Type.Name,
		Pinned:      raw.PinnedPosition != nil,
		Validations: raw.Validations,
	}
}
