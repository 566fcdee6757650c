package dump

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/shopmirror/internal/shopify"
	"github.com/untoldecay/shopmirror/internal/types"
)

const metaobjectTypesQuery = `query metaobjectTypes($after: String) {
	metaobjectDefinitions(first: 250, after: $after) {
		nodes { type }
		pageInfo { hasNextPage endCursor }
	}
}`

// metaobjectsQuery returns the bulk query for one metaobject type. The bulk
// API cannot filter across types in a single job.
func metaobjectsQuery(typeName string) string {
	return fmt.Sprintf(`{
	metaobjects(type: %q) {
		edges {
			node {
				id
				type
				handle
				capabilities { publishable { status } }
				fields {
					key
					type
					value
					`+referenceSelection+`
				}
			}
		}
	}
}`, typeName)
}

type metaobjectRaw struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Handle       string `json:"handle"`
	Capabilities *struct {
		Publishable *struct {
			Status string `json:"status"`
		} `json:"publishable"`
	} `json:"capabilities"`
	Fields []metafieldNode `json:"fields"`
}

func dumpMetaobjects(ctx context.Context, s *Session) (int, error) {
	typeNames, err := s.metaobjectTypes(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, t := range typeNames {
		n, err := dumpBulk(ctx, s, s.path("metaobjects-"+t+".jsonl"), metaobjectsQuery(t), nil,
			func(raw metaobjectRaw) (types.Metaobject, bool) {
				return metaobjectFromRaw(raw), true
			})
		if err != nil {
			return total, fmt.Errorf("type %s: %w", t, err)
		}
		s.logger.Debug("dumped metaobject type", "type", t, "records", n)
		total += n
	}
	return total, nil
}

func metaobjectFromRaw(raw metaobjectRaw) types.Metaobject {
	m := types.Metaobject{ID: raw.ID, Type: raw.Type, Handle: raw.Handle}
	if raw.Capabilities != nil && raw.Capabilities.Publishable != nil {
		m.Status = raw.Capabilities.Publishable.Status
	}
	// Metaobject fields are a plain list, not a connection: they arrive
	// inline on the root record, reference nodes included.
	m.Fields = fieldsFromMetafields(raw.Fields)
	return m
}

func (s *Session) metaobjectTypes(ctx context.Context) ([]string, error) {
	var typeNames []string
	err := s.Client.Paginate(ctx, metaobjectTypesQuery, nil, func(data json.RawMessage) (shopify.PageInfo, error) {
		var resp struct {
			MetaobjectDefinitions struct {
				Nodes []struct {
					Type string `json:"type"`
				} `json:"nodes"`
				PageInfo shopify.PageInfo `json:"pageInfo"`
			} `json:"metaobjectDefinitions"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return shopify.PageInfo{}, fmt.Errorf("failed to parse metaobject definitions: %w", err)
		}
		for _, n := range resp.MetaobjectDefinitions.Nodes {
			typeNames = append(typeNames, n.Type)
		}
		return resp.MetaobjectDefinitions.PageInfo, nil
	})
	return typeNames, err
}
